package libcalls

import (
	"math"

	"github.com/lumen-lang/lumen/internal/builtins"
	"github.com/lumen-lang/lumen/internal/mir"
)

// TableEntry is one exact-value pair: calling the function on In yields
// exactly Out. Tables are ordered and the first matching input wins; +0.0
// and -0.0 are separate entries wherever the function's sign behavior
// differs between them.
type TableEntry struct {
	In  float64
	Out float64
}

const invSqrt2 = 1 / math.Sqrt2

var tblAcos = []TableEntry{
	{0.0, math.Pi / 2},
	{negZero, math.Pi / 2},
	{1.0, 0.0},
	{-1.0, math.Pi},
}
var tblAcosh = []TableEntry{
	{1.0, 0.0},
}
var tblAcospi = []TableEntry{
	{0.0, 0.5},
	{negZero, 0.5},
	{1.0, 0.0},
	{-1.0, 1.0},
}
var tblAsin = []TableEntry{
	{0.0, 0.0},
	{negZero, negZero},
	{1.0, math.Pi / 2},
	{-1.0, -math.Pi / 2},
}
var tblAsinh = []TableEntry{
	{0.0, 0.0},
	{negZero, negZero},
}
var tblAsinpi = []TableEntry{
	{0.0, 0.0},
	{negZero, negZero},
	{1.0, 0.5},
	{-1.0, -0.5},
}
var tblAtan = []TableEntry{
	{0.0, 0.0},
	{negZero, negZero},
	{1.0, math.Pi / 4},
	{-1.0, -math.Pi / 4},
}
var tblAtanh = []TableEntry{
	{0.0, 0.0},
	{negZero, negZero},
}
var tblAtanpi = []TableEntry{
	{0.0, 0.0},
	{negZero, negZero},
	{1.0, 0.25},
	{-1.0, -0.25},
}
var tblCbrt = []TableEntry{
	{0.0, 0.0},
	{negZero, negZero},
	{1.0, 1.0},
	{-1.0, -1.0},
}
var tblCos = []TableEntry{
	{0.0, 1.0},
	{negZero, 1.0},
}
var tblCosh = []TableEntry{
	{0.0, 1.0},
	{negZero, 1.0},
}
var tblCospi = []TableEntry{
	{0.0, 1.0},
	{negZero, 1.0},
}
var tblErfc = []TableEntry{
	{0.0, 1.0},
	{negZero, 1.0},
}
var tblErf = []TableEntry{
	{0.0, 0.0},
	{negZero, negZero},
}
var tblExp = []TableEntry{
	{0.0, 1.0},
	{negZero, 1.0},
	{1.0, math.E},
}
var tblExp2 = []TableEntry{
	{0.0, 1.0},
	{negZero, 1.0},
	{1.0, 2.0},
}
var tblExp10 = []TableEntry{
	{0.0, 1.0},
	{negZero, 1.0},
	{1.0, 10.0},
}
var tblExpm1 = []TableEntry{
	{0.0, 0.0},
	{negZero, negZero},
}
var tblLog = []TableEntry{
	{1.0, 0.0},
	{math.E, 1.0},
}
var tblLog2 = []TableEntry{
	{1.0, 0.0},
	{2.0, 1.0},
}
var tblLog10 = []TableEntry{
	{1.0, 0.0},
	{10.0, 1.0},
}
var tblRsqrt = []TableEntry{
	{1.0, 1.0},
	{2.0, invSqrt2},
}
var tblSin = []TableEntry{
	{0.0, 0.0},
	{negZero, negZero},
}
var tblSinh = []TableEntry{
	{0.0, 0.0},
	{negZero, negZero},
}
var tblSinpi = []TableEntry{
	{0.0, 0.0},
	{negZero, negZero},
}
var tblSqrt = []TableEntry{
	{0.0, 0.0},
	{1.0, 1.0},
	{2.0, math.Sqrt2},
}
var tblTan = []TableEntry{
	{0.0, 0.0},
	{negZero, negZero},
}
var tblTanh = []TableEntry{
	{0.0, 0.0},
	{negZero, negZero},
}
var tblTanpi = []TableEntry{
	{0.0, 0.0},
	{negZero, negZero},
}
var tblTgamma = []TableEntry{
	{1.0, 1.0},
	{2.0, 1.0},
	{3.0, 2.0},
	{4.0, 6.0},
}

// negZero is the IEEE754 negative zero.
var negZero = math.Copysign(0, -1)

// optTable returns the exact-value table for the identity, or nil. Native
// variants share the table of their plain counterpart.
func optTable(id builtins.ID) []TableEntry {
	switch id {
	case builtins.Acos:
		return tblAcos
	case builtins.Acosh:
		return tblAcosh
	case builtins.Acospi:
		return tblAcospi
	case builtins.Asin:
		return tblAsin
	case builtins.Asinh:
		return tblAsinh
	case builtins.Asinpi:
		return tblAsinpi
	case builtins.Atan:
		return tblAtan
	case builtins.Atanh:
		return tblAtanh
	case builtins.Atanpi:
		return tblAtanpi
	case builtins.Cbrt:
		return tblCbrt
	case builtins.Cos:
		return tblCos
	case builtins.Cosh:
		return tblCosh
	case builtins.Cospi:
		return tblCospi
	case builtins.Erfc:
		return tblErfc
	case builtins.Erf:
		return tblErf
	case builtins.Exp:
		return tblExp
	case builtins.Exp2:
		return tblExp2
	case builtins.Exp10:
		return tblExp10
	case builtins.Expm1:
		return tblExpm1
	case builtins.Log:
		return tblLog
	case builtins.Log2:
		return tblLog2
	case builtins.Log10:
		return tblLog10
	case builtins.Rsqrt:
		return tblRsqrt
	case builtins.Sin:
		return tblSin
	case builtins.Sinh:
		return tblSinh
	case builtins.Sinpi:
		return tblSinpi
	case builtins.Sqrt:
		return tblSqrt
	case builtins.Tan:
		return tblTan
	case builtins.Tanh:
		return tblTanh
	case builtins.Tanpi:
		return tblTanpi
	case builtins.Tgamma:
		return tblTgamma
	default:
		return nil
	}
}

// matchEntry finds the first table entry whose input is bit-exactly the
// given lane value at the element's precision.
func matchEntry(tr []TableEntry, elem mir.Elem, lane float64) (float64, bool) {
	for _, e := range tr {
		in := e.In
		if elem != mir.ElemF64 {
			in = float64(float32(in))
		}
		if mir.SameBits(lane, in) {
			return e.Out, true
		}
	}
	return 0, false
}

// foldTable replaces a call whose constant argument has a known exact
// result. Vector arguments fold only when every lane matches some entry;
// a single unmatched lane leaves the whole call unmodified.
func (p *Pass) foldTable(f *mir.Function, bb *mir.Block, idx int, ci *mir.Call, desc builtins.Desc) bool {
	tr := optTable(desc.ID)
	if len(tr) == 0 || len(ci.Args) == 0 {
		return false
	}
	arg := ci.Args[0]
	c := mir.At(f, bb, idx)

	if desc.Lanes > 1 {
		if arg.Kind != mir.ValConstFloatVec {
			return false
		}
		out := make([]float64, desc.Lanes)
		for lane := 0; lane < desc.Lanes; lane++ {
			v, _ := arg.FloatLane(lane)
			r, ok := matchEntry(tr, desc.Elem, v)
			if !ok {
				return false
			}
			out[lane] = r
		}
		c.ReplaceWith(mir.FloatVec(ci.Ret, out))
		return true
	}

	if arg.Kind != mir.ValConstFloat {
		return false
	}
	if r, ok := matchEntry(tr, desc.Elem, arg.F); ok {
		c.ReplaceWith(mir.ConstFloat(ci.Ret, r))
		return true
	}
	return false
}
