package libcalls

import (
	"github.com/lumen-lang/lumen/internal/builtins"
	"github.com/lumen-lang/lumen/internal/mir"
)

// nativeFunction gets or declares the native-prefixed counterpart of desc.
func nativeFunction(m *mir.Module, desc builtins.Desc) (string, bool) {
	return desc.AsNative().Declare(m)
}

// useNative retargets one allow-listed plain single-precision call to its
// hardware-approximate native variant. sincos has no single native symbol
// and splits into a native sin plus a native cos that reuses the original
// output pointer.
func (p *Pass) useNative(m *mir.Module, f *mir.Function, bb *mir.Block, idx int, ci *mir.Call) bool {
	if ci.Intrinsic || ci.Attrs.NoBuiltin {
		return false
	}
	desc, ok := builtins.Parse(ci.Callee)
	if !ok || desc.Native {
		return false
	}
	if desc.Elem != mir.ElemF32 || !builtins.HasNative(desc.ID) {
		return false
	}
	if !desc.Compatible(callSignature(ci)) {
		return false
	}

	if desc.ID == builtins.Sincos {
		// Splitting drops the combined evaluation, so both halves must be
		// enabled before the accuracy of either is given up.
		if !p.useNativeFunc(builtins.Sin.Name()) || !p.useNativeFunc(builtins.Cos.Name()) {
			return false
		}
		sinSym, okSin := desc.WithID(builtins.Sin).AsNative().Declare(m)
		cosSym, okCos := desc.WithID(builtins.Cos).AsNative().Declare(m)
		if !okSin || !okCos {
			return false
		}
		t := desc.ValueType()
		c := mir.At(f, bb, idx)
		c.FMF = ci.FMF
		c.Ulps = ci.Ulps
		c.Loc = ci.Loc
		sinV := c.CallV(sinSym, t, "sin", ci.Args[0])
		cosV := c.CallV(cosSym, t, "cos", ci.Args[0])
		c.StoreV(cosV, ci.Args[1])
		c.ReplaceWith(sinV)
		return true
	}

	if !p.useNativeFunc(desc.ID.Name()) {
		return false
	}
	sym, ok := nativeFunction(m, desc)
	if !ok {
		return false
	}
	ci.Callee = sym
	return true
}
