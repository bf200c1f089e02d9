package libcalls

import (
	"math"

	"github.com/lumen-lang/lumen/internal/builtins"
	"github.com/lumen-lang/lumen/internal/mir"
)

// maxExpandedExponent bounds the square-and-multiply expansion of pow with
// an integral constant exponent.
const maxExpandedExponent = 12

// constPowExponent classifies the exponent operand. For vectors only a
// uniform (splat) constant counts.
func constPowExponent(opr1 mir.Value, lanes int) (cf float64, cfOK bool, ci int64, ciOK bool, zero bool) {
	zero = opr1.Kind == mir.ValZero
	if lanes == 1 {
		switch opr1.Kind {
		case mir.ValConstFloat:
			return opr1.F, true, 0, false, zero
		case mir.ValConstInt:
			return 0, false, opr1.I, true, zero
		}
		return 0, false, 0, false, zero
	}
	if f, ok := opr1.SplatFloat(); ok {
		return f, true, 0, false, zero
	}
	if i, ok := opr1.SplatInt(); ok {
		return 0, false, i, true, zero
	}
	return 0, false, 0, false, zero
}

// foldPow rewrites pow, powr, and pown calls:
//
//	pow(x, 0)    -> 1
//	pow(x, 1)    -> x
//	pow(x, 2)    -> x*x
//	pow(x, -1)   -> 1/x
//	pow(x, ±0.5) -> sqrt(x) / rsqrt(x)
//	pow(x, n)    -> square-and-multiply expansion for integral |n| <= 12
//	powr(x, y)   -> exp2(y * log2(x))
//	pow/pown     -> exp2(y * log2(|x|)) with a bit-level sign correction
func (p *Pass) foldPow(m *mir.Module, c *mir.Cursor, ci *mir.Call, desc builtins.Desc) bool {
	t := ci.Ret
	opr0, opr1 := ci.Args[0], ci.Args[1]

	cf, cfOK, cint, cintOK, czero := constPowExponent(opr1, desc.Lanes)

	// No unsafe math and no constant exponent: nothing provable.
	if !p.isUnsafeMath(ci) && !cfOK && !cintOK && !czero {
		return false
	}

	if (cfOK && cf == 0) || (cintOK && cint == 0) || czero {
		// pow/powr/pown(x, 0) == 1
		c.ReplaceWith(mir.Splat(t, 1.0))
		return true
	}
	if (cfOK && exactly(desc.Elem, cf, 1.0)) || (cintOK && cint == 1) {
		// pow/powr/pown(x, 1) == x
		c.ReplaceWith(opr0)
		return true
	}
	if (cfOK && exactly(desc.Elem, cf, 2.0)) || (cintOK && cint == 2) {
		// pow/powr/pown(x, 2) == x*x
		c.ReplaceWith(c.FMulV(opr0, opr0))
		return true
	}
	if (cfOK && exactly(desc.Elem, cf, -1.0)) || (cintOK && cint == -1) {
		// pow/powr/pown(x, -1) == 1/x
		c.ReplaceWith(c.FDivV(mir.Splat(t, 1.0), opr0))
		return true
	}

	if cfOK && (exactly(desc.Elem, cf, 0.5) || exactly(desc.Elem, cf, -0.5)) {
		// pow[r](x, ±0.5) == sqrt(x) / rsqrt(x)
		aux := builtins.Rsqrt
		stem := "pow2rsqrt"
		if exactly(desc.Elem, cf, 0.5) {
			aux = builtins.Sqrt
			stem = "pow2sqrt"
		}
		if sym, ok := desc.WithID(aux).Declare(m); ok {
			c.ReplaceWith(c.CallV(sym, t, stem, opr0))
			return true
		}
	}

	if !p.isUnsafeMath(ci) {
		return false
	}

	// Below here results may differ beyond rounding.

	// A float exponent with an exact integer value joins the integer branch.
	expInt, expIntOK := cint, cintOK
	if cfOK {
		ival := int64(cf)
		if float64(ival) == cf {
			expInt, expIntOK = ival, true
		} else {
			expIntOK = false
		}
	}

	if expIntOK {
		if abs := absInt(expInt); abs <= maxExpandedExponent {
			c.ReplaceWith(expandPow(c, t, opr0, expInt))
			return true
		}
	}

	// powr     -> exp2(y * log2(x))
	// pow/pown -> powr(|x|, y) with the result's sign patched from x and y.
	expSym, ok := desc.WithID(builtins.Exp2).Declare(m)
	if !ok {
		return false
	}

	needLog := false
	needAbs := false
	needCopysign := false
	var logConst mir.Value
	haveLogConst := false

	if desc.Lanes == 1 {
		if opr0.Kind == mir.ValConstFloat {
			logConst = mir.ConstFloat(t, math.Log2(math.Abs(opr0.F)))
			haveLogConst = true
			needCopysign = desc.ID != builtins.Powr && math.Signbit(opr0.F)
		} else {
			needLog = true
			needCopysign = desc.ID != builtins.Powr
			needAbs = needCopysign
		}
	} else {
		if opr0.Kind == mir.ValConstFloatVec {
			lanes := make([]float64, desc.Lanes)
			for i := range lanes {
				v, _ := opr0.FloatLane(i)
				if v < 0 {
					needCopysign = true
				}
				lanes[i] = math.Log2(math.Abs(v))
			}
			logConst = mir.FloatVec(t, lanes)
			haveLogConst = true
			needCopysign = needCopysign && desc.ID != builtins.Powr
		} else {
			needLog = true
			needCopysign = desc.ID != builtins.Powr
			needAbs = needCopysign
		}
	}

	// The sign patch assumes an integral exponent; pown's operand is
	// integral by type, but for pow it must be a provably integral constant
	// or the whole rewrite is abandoned.
	if needCopysign && desc.ID == builtins.Pow && !expIntOK {
		return false
	}

	nval := opr0
	if haveLogConst {
		nval = logConst
	}
	if needAbs {
		nval = c.IntrinsicV("fabs", t, "fabs", nval)
	}
	if needLog {
		logSym, ok := desc.WithID(builtins.Log2).Declare(m)
		if !ok {
			return false
		}
		nval = c.CallV(logSym, t, "log2", nval)
	}

	yf := opr1
	if desc.ID == builtins.Pown {
		// pown carries an integer exponent; the multiply needs it floating.
		yf = c.CastV(mir.SIToFP, opr1, t)
	}
	nval = c.CallV(expSym, t, "exp2", c.FMulV(yf, nval))

	if needCopysign {
		nval = applySignCorrection(c, t, opr0, opr1, nval)
	}

	c.ReplaceWith(nval)
	return true
}

// expandPow builds the square-and-multiply expansion of x**n for integral
// |n| <= 12: repeated squarings with a conditional accumulating multiply per
// set bit of |n|, and a final reciprocal for negative n.
func expandPow(c *mir.Cursor, t mir.Type, x mir.Value, n int64) mir.Value {
	abs := absInt(n)
	if abs == 0 {
		return mir.Splat(t, 1.0)
	}
	var sq, acc mir.Value
	haveSq, haveAcc := false, false
	for abs > 0 {
		if !haveSq {
			sq, haveSq = x, true
		} else {
			sq = c.FMulV(sq, sq)
		}
		if abs&1 != 0 {
			if !haveAcc {
				acc, haveAcc = sq, true
			} else {
				acc = c.FMulV(acc, sq)
			}
		}
		abs >>= 1
	}
	if n < 0 {
		acc = c.FDivV(mir.Splat(t, 1.0), acc)
	}
	return acc
}

// applySignCorrection ORs the sign of base**y into the bit pattern of val:
// per lane, the exponent's low bit is shifted into the sign position and
// ANDed with the base's sign bit, so odd integer exponents of negative
// bases come out negative. All three values are reinterpreted as integers
// of the same per-lane width.
func applySignCorrection(c *mir.Cursor, t mir.Type, base, exponent, val mir.Value) mir.Value {
	intTy := t.IntSameWidth()
	bits := int64(intTy.Elem.Bits())

	var yInt mir.Value
	if exponent.Type.IsFloat() {
		yInt = c.CastV(mir.FPToSI, exponent, intTy)
	} else if exponent.Type.Elem.Bits() != intTy.Elem.Bits() {
		yInt = c.CastV(mir.ZExt, exponent, intTy)
	} else {
		yInt = exponent
	}

	sign := c.ShlV(yInt, intSplat(intTy, bits-1))
	sign = c.AndV(c.CastV(mir.Bitcast, base, intTy), sign)
	out := c.OrV(c.CastV(mir.Bitcast, val, intTy), sign)
	return c.CastV(mir.Bitcast, out, t)
}

// foldRootn rewrites scalar rootn calls with small integer degrees. Vector
// operands are never rewritten.
func (p *Pass) foldRootn(m *mir.Module, c *mir.Cursor, ci *mir.Call, desc builtins.Desc) bool {
	if desc.Lanes != 1 {
		return false
	}
	opr0, opr1 := ci.Args[0], ci.Args[1]
	if opr1.Kind != mir.ValConstInt {
		return false
	}
	t := ci.Ret

	switch opr1.I {
	case 1: // rootn(x, 1) == x
		c.ReplaceWith(opr0)
		return true
	case 2: // rootn(x, 2) == sqrt(x)
		if sym, ok := desc.WithID(builtins.Sqrt).Declare(m); ok {
			c.ReplaceWith(c.CallV(sym, t, "rootn2sqrt", opr0))
			return true
		}
	case 3: // rootn(x, 3) == cbrt(x)
		if sym, ok := desc.WithID(builtins.Cbrt).Declare(m); ok {
			c.ReplaceWith(c.CallV(sym, t, "rootn2cbrt", opr0))
			return true
		}
	case -1: // rootn(x, -1) == 1/x
		c.ReplaceWith(c.FDivV(mir.Splat(t, 1.0), opr0))
		return true
	case -2: // rootn(x, -2) == rsqrt(x)
		if sym, ok := desc.WithID(builtins.Rsqrt).Declare(m); ok {
			c.ReplaceWith(c.CallV(sym, t, "rootn2rsqrt", opr0))
			return true
		}
	}
	return false
}

// foldSqrt retargets a scalar f32 sqrt to its native variant under unsafe
// math.
func (p *Pass) foldSqrt(m *mir.Module, c *mir.Cursor, ci *mir.Call, desc builtins.Desc) bool {
	if !p.isUnsafeMath(ci) {
		return false
	}
	if desc.Elem != mir.ElemF32 || desc.Lanes != 1 || desc.Native {
		return false
	}
	sym, ok := nativeFunction(m, desc)
	if !ok {
		return false
	}
	c.ReplaceWith(c.CallV(sym, ci.Ret, "sqrt", ci.Args[0]))
	return true
}

func exactly(elem mir.Elem, have, want float64) bool {
	if elem != mir.ElemF64 {
		want = float64(float32(want))
	}
	return mir.SameBits(have, want)
}

func absInt(n int64) int64 {
	if n < 0 {
		return -n
	}
	return n
}

func intSplat(t mir.Type, v int64) mir.Value {
	if t.Lanes <= 1 {
		return mir.ConstInt(t, v)
	}
	elts := make([]int64, t.Lanes)
	for i := range elts {
		elts[i] = v
	}
	return mir.IntVec(t, elts)
}
