// Copyright 2024 The Ristretto Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package verifier

import "github.com/ristretto-jvm/ristretto/classfile"

// Outcome reports how a method was verified, for diagnostics and for the
// statistics a caller (such as cmd/ristretto-verify) might aggregate
// across a whole class.
type Outcome struct {
	UsedFastPath bool
	Trace        *Trace
}

// Verify checks a single method's bytecode against the JVM verifier's
// dataflow rules, per §4. ctx answers the class-hierarchy questions the
// type lattice needs; cache may be nil, in which case every call decodes
// its StackMapTable fresh.
func Verify(cf *classfile.ClassFile, m classfile.Method, ctx Context, cfg Config, cache *DecodeCache) (Outcome, error) {
	if m.AccessFlags&(classfile.AccNative|classfile.AccAbstract) != 0 {
		if m.Code != nil {
			return Outcome{}, classfile.FormatError{Msg: "native or abstract method " + m.Name + m.Descriptor + " carries a Code attribute"}
		}
		return Outcome{}, nil
	}
	if m.Code == nil {
		return Outcome{}, classfile.FormatError{Msg: "method " + m.Name + m.Descriptor + " has no Code attribute"}
	}

	info := NewCodeInfo(m.Code.Instructions)
	if err := ValidateExceptionTable(m.Code.ExceptionTable, info); err != nil {
		return Outcome{}, finalize(err, cf, m, 0)
	}

	initial, err := createInitialFrame(cf, m)
	if err != nil {
		return Outcome{}, finalize(err, cf, m, 0)
	}

	var table DecodedStackMapTable
	if cached, ok := cache.get(cf.ThisClass, m); ok {
		table = cached
	} else {
		table, err = DecodeStackMapTable(m.Code.StackMapTable, initial, int(m.Code.MaxLocals), int(m.Code.MaxStack), cf.ConstantPool, info)
		if err != nil {
			return Outcome{}, finalize(err, cf, m, 0)
		}
		cache.put(cf.ThisClass, m, table)
	}

	_, ret, err := classfile.ParseMethodDescriptor(m.Descriptor)
	if err != nil {
		return Outcome{}, finalize(err, cf, m, 0)
	}
	effects := Effects{CP: cf.ConstantPool, Ctx: ctx, ReturnType: ret}

	trace := &Trace{}
	if !cfg.Trace {
		trace = nil
	}

	fast := &FastPathVerifier{
		Info:           info,
		StackMap:       table,
		ExceptionTable: m.Code.ExceptionTable,
		Effects:        effects,
		Trace:          trace,
	}
	fastErr := fast.Run(initial, m.Code.Instructions)
	if fastErr == nil {
		return Outcome{UsedFastPath: true, Trace: trace}, nil
	}
	if _, needsFallback := fastErr.(NeedsFallback); !needsFallback {
		return Outcome{Trace: trace}, finalize(fastErr, cf, m, 0)
	}
	if cfg.StrictStackMapRequired {
		return Outcome{Trace: trace}, finalize(fastErr, cf, m, 0)
	}

	infer := &InferenceVerifier{Info: info, StackMap: table, ExceptionTable: m.Code.ExceptionTable, Effects: effects}
	if err := infer.Run(initial, m.Code.Instructions); err != nil {
		return Outcome{Trace: trace}, finalize(err, cf, m, 0)
	}
	return Outcome{UsedFastPath: false, Trace: trace}, nil
}

// createInitialFrame builds the frame at instruction 0: `this` (if the
// method isn't static) followed by its parameters, each occupying one or
// two local slots per §4.8, with every remaining local left at Top.
func createInitialFrame(cf *classfile.ClassFile, m classfile.Method) (*Frame, error) {
	if m.Code == nil {
		return nil, InternalError{Msg: "createInitialFrame called without a Code attribute"}
	}
	frame := NewFrame(int(m.Code.MaxLocals), int(m.Code.MaxStack))

	next := 0
	if m.AccessFlags&classfile.AccStatic == 0 {
		if m.Name == "<init>" {
			if err := frame.SetLocal(0, UninitializedThis); err != nil {
				return nil, err
			}
		} else {
			if err := frame.SetLocal(0, Object(cf.ThisClass)); err != nil {
				return nil, err
			}
		}
		next = 1
	}

	params, _, err := classfile.ParseMethodDescriptor(m.Descriptor)
	if err != nil {
		return nil, err
	}
	for _, p := range params {
		vt := FieldTypeToVerificationType(p)
		if p.IsCategory2() {
			if err := frame.SetLocalCategory2(next, vt); err != nil {
				return nil, err
			}
			next += 2
		} else {
			if err := frame.SetLocal(next, vt); err != nil {
				return nil, err
			}
			next++
		}
	}
	return frame, nil
}

func finalize(err error, cf *classfile.ClassFile, m classfile.Method, fallbackPC int) error {
	if err == nil {
		return nil
	}
	if e, ok := err.(Error); ok {
		if e.Class == "" {
			e.Class = cf.ThisClass
		}
		if e.Method == "" {
			e.Method = m.Name
		}
		if e.Descriptor == "" {
			e.Descriptor = m.Descriptor
		}
		return e
	}
	return Error{Class: cf.ThisClass, Method: m.Name, Descriptor: m.Descriptor, PC: fallbackPC, Err: err}
}
