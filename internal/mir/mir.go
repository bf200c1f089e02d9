// Package mir defines the Mid-level IR of the Lumen compiler.
// It is SSA-lite and structured to enable target-agnostic optimizations;
// values are typed, and floating-point values may be fixed-width vectors.
package mir

import (
	"fmt"
	"math"
	"strings"
)

// Elem is the scalar element type of a value.
type Elem int

const (
	ElemInvalid Elem = iota
	ElemF16
	ElemF32
	ElemF64
	ElemI32
	ElemI64
	ElemPtr
)

// Bits returns the width of the element in bits.
func (e Elem) Bits() int {
	switch e {
	case ElemF16:
		return 16
	case ElemF32, ElemI32:
		return 32
	case ElemF64, ElemI64, ElemPtr:
		return 64
	default:
		return 0
	}
}

// IsFloat reports whether the element is a floating-point type.
func (e Elem) IsFloat() bool {
	return e == ElemF16 || e == ElemF32 || e == ElemF64
}

func (e Elem) String() string {
	switch e {
	case ElemF16:
		return "f16"
	case ElemF32:
		return "f32"
	case ElemF64:
		return "f64"
	case ElemI32:
		return "i32"
	case ElemI64:
		return "i64"
	case ElemPtr:
		return "ptr"
	default:
		return "?"
	}
}

// Address spaces. The numbering follows the GPU target convention.
const (
	SpaceGeneric = 0
	SpaceGlobal  = 1
	SpaceLocal   = 3
	SpacePrivate = 5
)

// Type is an element type plus a lane count. Lanes is 1 for scalars.
// Pointer types additionally carry an address space and a pointee type.
type Type struct {
	Elem      Elem
	Lanes     int
	AddrSpace int
	Pointee   *Type
}

// Scalar returns the scalar type of e.
func Scalar(e Elem) Type { return Type{Elem: e, Lanes: 1} }

// Vec returns the n-lane vector type of e.
func Vec(e Elem, n int) Type { return Type{Elem: e, Lanes: n} }

// Pointer returns a pointer type to pointee in the given address space.
func Pointer(pointee Type, space int) Type {
	p := pointee
	return Type{Elem: ElemPtr, Lanes: 1, AddrSpace: space, Pointee: &p}
}

// IsVector reports whether the type has more than one lane.
func (t Type) IsVector() bool { return t.Lanes > 1 }

// IsPointer reports whether the type is a pointer.
func (t Type) IsPointer() bool { return t.Elem == ElemPtr }

// IsFloat reports whether the element type is floating point.
func (t Type) IsFloat() bool { return t.Elem.IsFloat() }

// ScalarType returns the one-lane version of t.
func (t Type) ScalarType() Type { return Type{Elem: t.Elem, Lanes: 1} }

// WithElem keeps the lane count and swaps the element type.
func (t Type) WithElem(e Elem) Type { return Type{Elem: e, Lanes: t.Lanes} }

// IntSameWidth returns the integer type with the same per-lane width as the
// floating type t. Used for bit-pattern reinterpretation.
func (t Type) IntSameWidth() Type {
	if t.Elem == ElemF64 {
		return Type{Elem: ElemI64, Lanes: t.Lanes}
	}
	return Type{Elem: ElemI32, Lanes: t.Lanes}
}

// Equal reports structural type equality.
func (t Type) Equal(o Type) bool {
	if t.Elem != o.Elem || t.Lanes != o.Lanes {
		return false
	}
	if t.Elem == ElemPtr {
		if t.AddrSpace != o.AddrSpace {
			return false
		}
		if (t.Pointee == nil) != (o.Pointee == nil) {
			return false
		}
		if t.Pointee != nil && !t.Pointee.Equal(*o.Pointee) {
			return false
		}
	}
	return true
}

func (t Type) String() string {
	if t.Elem == ElemPtr {
		if t.Pointee != nil {
			return fmt.Sprintf("p%d%s", t.AddrSpace, t.Pointee.String())
		}
		return fmt.Sprintf("p%d", t.AddrSpace)
	}
	if t.Lanes > 1 {
		return fmt.Sprintf("v%d%s", t.Lanes, t.Elem)
	}
	return t.Elem.String()
}

// ValueKind classifies the value category.
type ValueKind int

const (
	ValInvalid ValueKind = iota
	ValConstFloat
	ValConstInt
	ValConstFloatVec
	ValConstIntVec
	ValZero // zero aggregate of any type
	ValRef
)

// Value represents an SSA-like value: a constant or a named reference to an
// instruction result or parameter.
type Value struct {
	Kind  ValueKind
	Type  Type
	F     float64
	I     int64
	FElts []float64
	IElts []int64
	Ref   string
}

// ConstFloat returns a scalar float constant of type t.
func ConstFloat(t Type, v float64) Value {
	return Value{Kind: ValConstFloat, Type: t.ScalarType(), F: quantize(t.Elem, v)}
}

// ConstInt returns a scalar integer constant of type t.
func ConstInt(t Type, v int64) Value {
	return Value{Kind: ValConstInt, Type: t.ScalarType(), I: v}
}

// FloatVec returns a float vector constant. Lane values are quantized to the
// element precision the same way materialized constants would be.
func FloatVec(t Type, elts []float64) Value {
	q := make([]float64, len(elts))
	for i, v := range elts {
		q[i] = quantize(t.Elem, v)
	}
	return Value{Kind: ValConstFloatVec, Type: Vec(t.Elem, len(elts)), FElts: q}
}

// IntVec returns an integer vector constant.
func IntVec(t Type, elts []int64) Value {
	e := make([]int64, len(elts))
	copy(e, elts)
	return Value{Kind: ValConstIntVec, Type: Vec(t.Elem, len(elts)), IElts: e}
}

// Splat returns a float constant of type t with every lane set to v.
func Splat(t Type, v float64) Value {
	if t.Lanes <= 1 {
		return ConstFloat(t, v)
	}
	elts := make([]float64, t.Lanes)
	for i := range elts {
		elts[i] = v
	}
	return FloatVec(t, elts)
}

// Zero returns the zero-aggregate constant of type t.
func Zero(t Type) Value { return Value{Kind: ValZero, Type: t} }

// Ref returns a reference value naming an instruction result or parameter.
func Ref(name string, t Type) Value { return Value{Kind: ValRef, Type: t, Ref: name} }

// quantize rounds v to the precision of the element type, so constant lane
// values always hold exactly what the target would.
func quantize(e Elem, v float64) float64 {
	if e == ElemF32 || e == ElemF16 {
		return float64(float32(v))
	}
	return v
}

// IsConst reports whether the value is any kind of constant.
func (v Value) IsConst() bool {
	return v.Kind != ValRef && v.Kind != ValInvalid
}

// FloatLane returns lane i of a float constant (scalar, vector, or zero).
func (v Value) FloatLane(i int) (float64, bool) {
	switch v.Kind {
	case ValConstFloat:
		return v.F, true
	case ValConstFloatVec:
		if i < len(v.FElts) {
			return v.FElts[i], true
		}
	case ValZero:
		return 0, true
	}
	return 0, false
}

// IntLane returns lane i of an integer constant.
func (v Value) IntLane(i int) (int64, bool) {
	switch v.Kind {
	case ValConstInt:
		return v.I, true
	case ValConstIntVec:
		if i < len(v.IElts) {
			return v.IElts[i], true
		}
	case ValZero:
		return 0, true
	}
	return 0, false
}

// SplatFloat returns the uniform float value of v if v is a scalar float
// constant or a float vector constant with identical lanes.
func (v Value) SplatFloat() (float64, bool) {
	switch v.Kind {
	case ValConstFloat:
		return v.F, true
	case ValConstFloatVec:
		for _, e := range v.FElts[1:] {
			if !SameBits(e, v.FElts[0]) {
				return 0, false
			}
		}
		return v.FElts[0], true
	}
	return 0, false
}

// SplatInt returns the uniform integer value of v if v is a scalar integer
// constant or an integer vector constant with identical lanes.
func (v Value) SplatInt() (int64, bool) {
	switch v.Kind {
	case ValConstInt:
		return v.I, true
	case ValConstIntVec:
		for _, e := range v.IElts[1:] {
			if e != v.IElts[0] {
				return 0, false
			}
		}
		return v.IElts[0], true
	}
	return 0, false
}

// IsZeroConst reports whether v is a constant equal to zero in every lane.
// Both +0.0 and -0.0 count, matching the semantics of a zero exponent.
func (v Value) IsZeroConst() bool {
	switch v.Kind {
	case ValZero:
		return true
	case ValConstFloat:
		return v.F == 0
	case ValConstInt:
		return v.I == 0
	case ValConstFloatVec:
		for _, e := range v.FElts {
			if e != 0 {
				return false
			}
		}
		return true
	case ValConstIntVec:
		for _, e := range v.IElts {
			if e != 0 {
				return false
			}
		}
		return true
	}
	return false
}

// SameBits reports bit-exact equality of two floats. +0.0 and -0.0 differ.
func SameBits(a, b float64) bool {
	return math.Float64bits(a) == math.Float64bits(b)
}

// Identical reports whether two values denote the same IR value: the same
// reference, or bit-identical constants of equal type.
func (v Value) Identical(o Value) bool {
	if v.Kind != o.Kind || !v.Type.Equal(o.Type) {
		return false
	}
	switch v.Kind {
	case ValRef:
		return v.Ref == o.Ref
	case ValConstFloat:
		return SameBits(v.F, o.F)
	case ValConstInt:
		return v.I == o.I
	case ValConstFloatVec:
		for i := range v.FElts {
			if !SameBits(v.FElts[i], o.FElts[i]) {
				return false
			}
		}
		return true
	case ValConstIntVec:
		for i := range v.IElts {
			if v.IElts[i] != o.IElts[i] {
				return false
			}
		}
		return true
	case ValZero:
		return true
	}
	return false
}

func (v Value) String() string {
	switch v.Kind {
	case ValConstFloat:
		return formatFloat(v.F)
	case ValConstInt:
		return fmt.Sprintf("%d", v.I)
	case ValConstFloatVec:
		parts := make([]string, len(v.FElts))
		for i, e := range v.FElts {
			parts[i] = formatFloat(e)
		}
		return "<" + strings.Join(parts, ", ") + ">"
	case ValConstIntVec:
		parts := make([]string, len(v.IElts))
		for i, e := range v.IElts {
			parts[i] = fmt.Sprintf("%d", e)
		}
		return "<" + strings.Join(parts, ", ") + ">"
	case ValZero:
		return "zeroinitializer"
	case ValRef:
		if v.Ref == "" {
			return "%ref?"
		}
		return v.Ref
	default:
		return "<invalid>"
	}
}

func formatFloat(f float64) string {
	if math.Signbit(f) && f == 0 {
		return "-0.0"
	}
	s := fmt.Sprintf("%g", f)
	if !strings.ContainsAny(s, ".eEnI") {
		s += ".0"
	}
	return s
}
