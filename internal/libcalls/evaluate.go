package libcalls

import (
	"fmt"
	"math"

	"github.com/lumen-lang/lumen/internal/builtins"
	"github.com/lumen-lang/lumen/internal/mir"
)

// evaluate constant-folds a call whose operands are all compile-time
// constants, in host double precision. Vector operands evaluate lane by
// lane and any lane failure aborts the whole fold. sincos additionally
// stores the cosine through its output pointer, which is the one operand
// exempt from the constant requirement.
func (p *Pass) evaluate(f *mir.Function, bb *mir.Block, idx int, ci *mir.Call, desc builtins.Desc) bool {
	if len(ci.Args) > 3 {
		return false
	}

	numConst := len(ci.Args)
	if desc.ID == builtins.Sincos {
		numConst = 1
	}
	for i := 0; i < numConst; i++ {
		if !ci.Args[i].IsConst() {
			return false
		}
	}

	out0 := make([]float64, desc.Lanes)
	out1 := make([]float64, desc.Lanes)
	for lane := 0; lane < desc.Lanes; lane++ {
		var a [3]float64
		var n int64
		hasN := false
		for i := 0; i < numConst; i++ {
			arg := ci.Args[i]
			if arg.Type.IsFloat() {
				v, ok := arg.FloatLane(lane)
				if !ok {
					return false
				}
				a[i] = v
			} else {
				v, ok := arg.IntLane(lane)
				if !ok {
					return false
				}
				n, hasN = v, true
			}
		}
		r0, r1, ok := evalScalar(desc.ID, a, n, hasN)
		if !ok {
			return false
		}
		out0[lane] = r0
		out1[lane] = r1
	}

	c := mir.At(f, bb, idx)
	if desc.ID == builtins.Sincos {
		// Descriptor resolution guarantees the output pointer; a call shape
		// without one means resolve produced an inconsistent descriptor.
		if len(ci.Args) < 2 || !ci.Args[1].Type.IsPointer() {
			panic(fmt.Sprintf("sincos call %q has no output pointer", ci.Callee))
		}
		c.StoreV(makeConst(ci.Ret, out1), ci.Args[1])
	}
	c.ReplaceWith(makeConst(ci.Ret, out0))
	return true
}

func makeConst(t mir.Type, lanes []float64) mir.Value {
	if t.Lanes <= 1 {
		return mir.ConstFloat(t, lanes[0])
	}
	return mir.FloatVec(t, lanes)
}

// evalScalar computes one lane of the library function in host double
// precision. The identities mirror the device library's definitions, so
// inverse hyperbolics go through log/sqrt and the pi-scaled family through
// an explicit multiply by pi. It reports false for identities that are not
// evaluated at compile time, which leaves the call alone.
func evalScalar(id builtins.ID, a [3]float64, n int64, hasN bool) (r0, r1 float64, ok bool) {
	ok = true
	switch id {
	case builtins.Acos:
		r0 = math.Acos(a[0])
	case builtins.Acosh:
		r0 = math.Log(a[0] + math.Sqrt(a[0]*a[0]-1))
	case builtins.Acospi:
		r0 = math.Acos(a[0]) / math.Pi
	case builtins.Asin:
		r0 = math.Asin(a[0])
	case builtins.Asinh:
		r0 = math.Log(a[0] + math.Sqrt(a[0]*a[0]+1))
	case builtins.Asinpi:
		r0 = math.Asin(a[0]) / math.Pi
	case builtins.Atan:
		r0 = math.Atan(a[0])
	case builtins.Atanh:
		r0 = (math.Log(a[0]+1) - math.Log(a[0]-1)) / 2
	case builtins.Atanpi:
		r0 = math.Atan(a[0]) / math.Pi
	case builtins.Cbrt:
		r0 = math.Cbrt(a[0])
	case builtins.Cos:
		r0 = math.Cos(a[0])
	case builtins.Cosh:
		r0 = math.Cosh(a[0])
	case builtins.Cospi:
		r0 = math.Cos(math.Pi * a[0])
	case builtins.Divide:
		r0 = a[0] / a[1]
	case builtins.Exp:
		r0 = math.Exp(a[0])
	case builtins.Exp2:
		r0 = math.Pow(2, a[0])
	case builtins.Exp10:
		r0 = math.Pow(10, a[0])
	case builtins.Expm1:
		r0 = math.Expm1(a[0])
	case builtins.Fma, builtins.Mad:
		r0 = a[0]*a[1] + a[2]
	case builtins.Log:
		r0 = math.Log(a[0])
	case builtins.Log2:
		r0 = math.Log(a[0]) / math.Ln2
	case builtins.Log10:
		r0 = math.Log(a[0]) / math.Ln10
	case builtins.Pow, builtins.Powr:
		r0 = math.Pow(a[0], a[1])
	case builtins.Pown:
		if !hasN {
			return 0, 0, false
		}
		r0 = math.Pow(a[0], float64(n))
	case builtins.Recip:
		r0 = 1 / a[0]
	case builtins.Rootn:
		if !hasN || n == 0 {
			return 0, 0, false
		}
		r0 = math.Pow(a[0], 1/float64(n))
	case builtins.Rsqrt:
		r0 = 1 / math.Sqrt(a[0])
	case builtins.Sin:
		r0 = math.Sin(a[0])
	case builtins.Sincos:
		r0 = math.Sin(a[0])
		r1 = math.Cos(a[0])
	case builtins.Sinh:
		r0 = math.Sinh(a[0])
	case builtins.Sinpi:
		r0 = math.Sin(math.Pi * a[0])
	case builtins.Tan:
		r0 = math.Tan(a[0])
	case builtins.Tanh:
		r0 = math.Tanh(a[0])
	case builtins.Tanpi:
		r0 = math.Tan(math.Pi * a[0])
	default:
		return 0, 0, false
	}
	return r0, r1, ok
}
