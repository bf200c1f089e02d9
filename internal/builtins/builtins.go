// Package builtins is the catalogue of Lumen device math-library functions:
// a closed identity enumeration, the typed descriptor attached to each call
// site, and the symbol codec that maps descriptors to and from link names.
package builtins

import (
	"github.com/lumen-lang/lumen/internal/mir"
)

// ID identifies a library function. The enumeration is closed; rewrite
// strategies dispatch over it exhaustively.
type ID int

const (
	Invalid ID = iota
	Acos
	Acosh
	Acospi
	Asin
	Asinh
	Asinpi
	Atan
	Atanh
	Atanpi
	Cbrt
	Ceil
	Copysign
	Cos
	Cosh
	Cospi
	Divide
	Erf
	Erfc
	Exp
	Exp2
	Exp10
	Expm1
	Fabs
	Floor
	Fma
	Fmax
	Fmin
	Ldexp
	Log
	Log2
	Log10
	Mad
	Pow
	Pown
	Powr
	Recip
	Rint
	Rootn
	Round
	Rsqrt
	Sin
	Sincos
	Sinh
	Sinpi
	Sqrt
	Tan
	Tanh
	Tanpi
	Tgamma
	Trunc
	ReadPipe2
	ReadPipe4
	WritePipe2
	WritePipe4
)

var idNames = map[ID]string{
	Acos: "acos", Acosh: "acosh", Acospi: "acospi",
	Asin: "asin", Asinh: "asinh", Asinpi: "asinpi",
	Atan: "atan", Atanh: "atanh", Atanpi: "atanpi",
	Cbrt: "cbrt", Ceil: "ceil", Copysign: "copysign",
	Cos: "cos", Cosh: "cosh", Cospi: "cospi",
	Divide: "divide", Erf: "erf", Erfc: "erfc",
	Exp: "exp", Exp2: "exp2", Exp10: "exp10", Expm1: "expm1",
	Fabs: "fabs", Floor: "floor", Fma: "fma", Fmax: "fmax", Fmin: "fmin",
	Ldexp: "ldexp", Log: "log", Log2: "log2", Log10: "log10",
	Mad: "mad", Pow: "pow", Pown: "pown", Powr: "powr",
	Recip: "recip", Rint: "rint", Rootn: "rootn", Round: "round",
	Rsqrt: "rsqrt", Sin: "sin", Sincos: "sincos", Sinh: "sinh",
	Sinpi: "sinpi", Sqrt: "sqrt", Tan: "tan", Tanh: "tanh", Tanpi: "tanpi",
	Tgamma: "tgamma", Trunc: "trunc",
	ReadPipe2: "__read_pipe_2", ReadPipe4: "__read_pipe_4",
	WritePipe2: "__write_pipe_2", WritePipe4: "__write_pipe_4",
}

var namesToID = func() map[string]ID {
	m := make(map[string]ID, len(idNames))
	for id, name := range idNames {
		m[name] = id
	}
	return m
}()

// Name returns the short (unmangled) function name.
func (id ID) Name() string { return idNames[id] }

// IsPipe reports whether the identity is a pipe I/O builtin.
func (id ID) IsPipe() bool {
	switch id {
	case ReadPipe2, ReadPipe4, WritePipe2, WritePipe4:
		return true
	}
	return false
}

// NumArgs returns the argument count of the library function.
func (id ID) NumArgs() int {
	switch id {
	case Fma, Mad:
		return 3
	case Copysign, Divide, Fmax, Fmin, Ldexp, Pow, Pown, Powr, Rootn, Sincos:
		return 2
	case ReadPipe2, WritePipe2:
		return 4
	case ReadPipe4, WritePipe4:
		return 6
	default:
		return 1
	}
}

// HasNative reports whether the function has a hardware-approximate native
// counterpart in the device library.
func HasNative(id ID) bool {
	switch id {
	case Divide, Cos, Exp, Exp2, Exp10, Log, Log2, Log10,
		Powr, Recip, Rsqrt, Sin, Sincos, Sqrt, Tan:
		return true
	}
	return false
}

// NoPtr marks a descriptor without a pointer argument.
const NoPtr = -1

// Desc is the typed descriptor of a library call target, derived from the
// callee symbol and discarded once the call has been processed.
type Desc struct {
	ID       ID
	Elem     mir.Elem
	Lanes    int
	Native   bool
	PtrSpace int // address space of the pointer argument, NoPtr when absent
}

// ValueType returns the floating value type the descriptor operates on.
func (d Desc) ValueType() mir.Type { return mir.Vec(d.Elem, d.Lanes) }

// WithID returns a copy of the descriptor retargeted to another identity,
// keeping the element type and width.
func (d Desc) WithID(id ID) Desc {
	d.ID = id
	if id != Sincos && !id.IsPipe() {
		d.PtrSpace = NoPtr
	}
	return d
}

// AsNative returns the native-prefixed version of the descriptor.
func (d Desc) AsNative() Desc {
	d.Native = true
	return d
}

// Signature returns the MIR signature the descriptor declares.
func (d Desc) Signature() mir.Signature {
	t := d.ValueType()
	intT := mir.Vec(mir.ElemI32, d.Lanes)
	switch d.ID {
	case Fma, Mad:
		return mir.Signature{Params: []mir.Type{t, t, t}, Ret: t}
	case Copysign, Divide, Fmax, Fmin, Pow, Powr:
		return mir.Signature{Params: []mir.Type{t, t}, Ret: t}
	case Ldexp, Pown, Rootn:
		return mir.Signature{Params: []mir.Type{t, intT}, Ret: t}
	case Sincos:
		space := d.PtrSpace
		if space == NoPtr {
			space = mir.SpaceGeneric
		}
		return mir.Signature{Params: []mir.Type{t, mir.Pointer(t, space)}, Ret: t}
	case ReadPipe2, WritePipe2:
		i32 := mir.Scalar(mir.ElemI32)
		pipe := mir.Pointer(mir.Scalar(mir.ElemI64), mir.SpaceGlobal)
		ptr := mir.Pointer(mir.Scalar(mir.ElemI64), mir.SpaceGeneric)
		return mir.Signature{Params: []mir.Type{pipe, ptr, i32, i32}, Ret: i32}
	case ReadPipe4, WritePipe4:
		i32 := mir.Scalar(mir.ElemI32)
		pipe := mir.Pointer(mir.Scalar(mir.ElemI64), mir.SpaceGlobal)
		rsv := mir.Pointer(mir.Scalar(mir.ElemI64), mir.SpaceGlobal)
		ptr := mir.Pointer(mir.Scalar(mir.ElemI64), mir.SpaceGeneric)
		return mir.Signature{Params: []mir.Type{pipe, rsv, i32, ptr, i32, i32}, Ret: i32}
	default:
		return mir.Signature{Params: []mir.Type{t}, Ret: t}
	}
}

// Compatible checks the parsed descriptor against the call's actual
// signature. Pipe builtins are checked loosely (pointer shapes vary by
// frontend); everything else must match the declared shape exactly.
func (d Desc) Compatible(sig mir.Signature) bool {
	if d.ID.IsPipe() {
		if len(sig.Params) != d.ID.NumArgs() {
			return false
		}
		n := len(sig.Params)
		i32 := mir.Scalar(mir.ElemI32)
		return sig.Params[n-2].Equal(i32) && sig.Params[n-1].Equal(i32) &&
			sig.Ret.Equal(i32)
	}
	want := d.Signature()
	if len(sig.Params) != len(want.Params) || !sig.Ret.Equal(want.Ret) {
		return false
	}
	for i := range want.Params {
		// The sincos output pointer may differ in pointee spelling across
		// frontends; require only the address space to line up.
		if want.Params[i].IsPointer() && sig.Params[i].IsPointer() {
			if want.Params[i].AddrSpace != sig.Params[i].AddrSpace {
				return false
			}
			continue
		}
		if !sig.Params[i].Equal(want.Params[i]) {
			return false
		}
	}
	return true
}

// Declare gets or creates the declaration for the descriptor's symbol in m.
// It returns the symbol and false when the name already exists with an
// incompatible signature, in which case the rewrite must not use it.
func (d Desc) Declare(m *mir.Module) (string, bool) {
	sym := d.Mangle()
	if !m.Declare(sym, d.Signature()) {
		return "", false
	}
	return sym, true
}
