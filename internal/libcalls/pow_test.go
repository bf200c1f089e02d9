package libcalls

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumen-lang/lumen/internal/mir"
)

func powSrc(exp string) string {
	return fmt.Sprintf(`module t

func k(%%x f32) f32 attrs(unsafe-fp-math) {
  %%p.1 = call f32 pow_f32(f32 %%x, f32 %s)
  ret f32 %%p.1
}
`, exp)
}

func countOp[T mir.Instr](bb *mir.Block) int {
	n := 0
	for _, in := range bb.Instrs {
		if _, ok := in.(T); ok {
			n++
		}
	}
	return n
}

func TestPowExponentZero(t *testing.T) {
	m, changed := simplify(t, powSrc("0.0"), Options{})
	require.True(t, changed)
	bb := entryOf(m)
	require.Len(t, bb.Instrs, 1)
	assert.Equal(t, "1.0", retValue(t, bb).String())
}

func TestPowExponentOne(t *testing.T) {
	m, changed := simplify(t, powSrc("1.0"), Options{})
	require.True(t, changed)
	v := retValue(t, entryOf(m))
	assert.Equal(t, "%x", v.Ref)
}

func TestPowExponentTwo(t *testing.T) {
	m, changed := simplify(t, powSrc("2.0"), Options{})
	require.True(t, changed)
	bb := entryOf(m)
	require.Len(t, bb.Instrs, 2)
	mul, ok := bb.Instrs[0].(*mir.FBin)
	require.True(t, ok)
	assert.Equal(t, mir.FMul, mul.Op)
	assert.Equal(t, "%x", mul.X.Ref)
	assert.Equal(t, "%x", mul.Y.Ref)
}

func TestPowExponentMinusOne(t *testing.T) {
	m, changed := simplify(t, powSrc("-1.0"), Options{})
	require.True(t, changed)
	div, ok := entryOf(m).Instrs[0].(*mir.FBin)
	require.True(t, ok)
	assert.Equal(t, mir.FDiv, div.Op)
	assert.Equal(t, 1.0, div.X.F)
}

func TestPowExponentHalf(t *testing.T) {
	m, changed := simplify(t, powSrc("0.5"), Options{})
	require.True(t, changed)
	ci, ok := entryOf(m).Instrs[0].(*mir.Call)
	require.True(t, ok)
	assert.Equal(t, "sqrt_f32", ci.Callee)
	_, declared := m.Lookup("sqrt_f32")
	assert.True(t, declared)

	m, changed = simplify(t, powSrc("-0.5"), Options{})
	require.True(t, changed)
	ci, ok = entryOf(m).Instrs[0].(*mir.Call)
	require.True(t, ok)
	assert.Equal(t, "rsqrt_f32", ci.Callee)
}

func TestPowBinaryExpansion(t *testing.T) {
	// x**7 = x * x**2 * x**4: two squarings plus two accumulating multiplies.
	m, changed := simplify(t, powSrc("7.0"), Options{})
	require.True(t, changed)
	bb := entryOf(m)
	assert.Equal(t, 4, countOp[*mir.FBin](bb))
	assert.False(t, strings.Contains(m.Funcs[0].String(), "pow_f32"))

	// Negative exponents add a final reciprocal.
	m, changed = simplify(t, powSrc("-3.0"), Options{})
	require.True(t, changed)
	fbins := 0
	divs := 0
	for _, in := range entryOf(m).Instrs {
		if b, ok := in.(*mir.FBin); ok {
			fbins++
			if b.Op == mir.FDiv {
				divs++
			}
		}
	}
	assert.Equal(t, 3, fbins)
	assert.Equal(t, 1, divs)
}

func TestPowLargeExponentFallsThrough(t *testing.T) {
	// An integral constant past the expansion limit takes the
	// exp2(y * log2(|x|)) path with the bit-level sign correction.
	m, changed := simplify(t, powSrc("13.0"), Options{})
	require.True(t, changed)
	s := m.Funcs[0].String()
	assert.Contains(t, s, "fabs.f32")
	assert.Contains(t, s, "log2_f32")
	assert.Contains(t, s, "exp2_f32")
	assert.Contains(t, s, "fptosi")
	assert.Contains(t, s, "shl")
	assert.NotContains(t, s, "pow_f32")
	for _, sym := range []string{"exp2_f32", "log2_f32"} {
		_, ok := m.Lookup(sym)
		assert.True(t, ok, "%s not declared", sym)
	}
}

func TestPowRuntimeExponentGating(t *testing.T) {
	src := `module t

func k(%x f32, %y f32) f32 {
  %p.1 = call f32 pow_f32(f32 %x, f32 %y)
  ret f32 %p.1
}
`
	_, changed := simplify(t, src, Options{})
	assert.False(t, changed, "no unsafe math, no rewrite")

	// The sign of pow(x, y) for negative x is only defined for integral y.
	// A runtime exponent cannot be proven integral, so even unsafe math
	// must leave the call alone rather than patch in a wrong sign.
	m, changed := simplify(t, src, Options{UnsafeFPMath: true})
	require.False(t, changed)
	assert.Contains(t, m.Funcs[0].String(), "pow_f32")
}

func TestPowNonIntegralConstExponentUnchanged(t *testing.T) {
	m, changed := simplify(t, powSrc("3.5"), Options{})
	assert.False(t, changed, "non-integral exponent has no provable sign")
	assert.Contains(t, m.Funcs[0].String(), "pow_f32")
}

func TestPowrSkipsSignCorrection(t *testing.T) {
	src := `module t

func k(%x f32, %y f32) f32 attrs(unsafe-fp-math) {
  %p.1 = call f32 powr_f32(f32 %x, f32 %y)
  ret f32 %p.1
}
`
	m, changed := simplify(t, src, Options{})
	require.True(t, changed)
	s := m.Funcs[0].String()
	assert.Contains(t, s, "log2_f32")
	assert.NotContains(t, s, "fabs")
	assert.NotContains(t, s, "shl")
}

func TestPownRuntimeExponent(t *testing.T) {
	src := `module t

func k(%x f32, %n i32) f32 attrs(unsafe-fp-math) {
  %p.1 = call f32 pown_f32(f32 %x, i32 %n)
  ret f32 %p.1
}
`
	m, changed := simplify(t, src, Options{})
	require.True(t, changed)
	s := m.Funcs[0].String()
	// The integer exponent feeds the multiply through a conversion and the
	// sign correction uses it directly.
	assert.Contains(t, s, "sitofp")
	assert.Contains(t, s, "exp2_f32")
	assert.Contains(t, s, "shl")
}

func TestPownConstExponent(t *testing.T) {
	src := `module t

func k(%x f32) f32 {
  %p.1 = call f32 pown_f32(f32 %x, i32 2)
  ret f32 %p.1
}
`
	m, changed := simplify(t, src, Options{})
	require.True(t, changed)
	mul, ok := entryOf(m).Instrs[0].(*mir.FBin)
	require.True(t, ok)
	assert.Equal(t, mir.FMul, mul.Op)

	// |n| > 2 needs the unsafe expansion path.
	src = strings.Replace(src, "i32 2", "i32 5", 1)
	_, changed = simplify(t, src, Options{})
	assert.False(t, changed)
	_, changed = simplify(t, src, Options{UnsafeFPMath: true})
	assert.True(t, changed)
}

func TestSignCorrectionBitPattern(t *testing.T) {
	m := mustParse(t, `module t

func k(%x f32, %y f32, %v f32) f32 {
  ret f32 %v
}
`)
	f := m.Funcs[0]
	bb := f.Blocks[0]
	c := mir.At(f, bb, 0)
	ty := mir.Scalar(mir.ElemF32)
	out := applySignCorrection(c, ty,
		mir.Ref("%x", ty), mir.Ref("%y", ty), mir.Ref("%v", ty))
	require.True(t, out.Type.Equal(ty))

	var shl *mir.IBin
	casts := map[mir.CastOp]int{}
	for _, in := range bb.Instrs {
		switch v := in.(type) {
		case *mir.IBin:
			if v.Op == mir.Shl {
				shl = v
			}
		case *mir.Cast:
			casts[v.Op]++
		}
	}
	require.NotNil(t, shl, "sign shift missing")
	assert.Equal(t, int64(31), shl.Y.I, "shift must target the sign bit")
	assert.Equal(t, 1, casts[mir.FPToSI], "float exponent is truncated to integer")
	assert.Equal(t, 3, casts[mir.Bitcast], "base, value, and result reinterpretations")
}

func TestRootn(t *testing.T) {
	src := func(n string) string {
		return fmt.Sprintf(`module t

func k(%%x f32) f32 {
  %%r.1 = call f32 rootn_f32(f32 %%x, i32 %s)
  ret f32 %%r.1
}
`, n)
	}

	m, changed := simplify(t, src("2"), Options{})
	require.True(t, changed)
	ci := entryOf(m).Instrs[0].(*mir.Call)
	assert.Equal(t, "sqrt_f32", ci.Callee)

	m, changed = simplify(t, src("3"), Options{})
	require.True(t, changed)
	assert.Equal(t, "cbrt_f32", entryOf(m).Instrs[0].(*mir.Call).Callee)

	m, changed = simplify(t, src("-2"), Options{})
	require.True(t, changed)
	assert.Equal(t, "rsqrt_f32", entryOf(m).Instrs[0].(*mir.Call).Callee)

	m, changed = simplify(t, src("-1"), Options{})
	require.True(t, changed)
	div := entryOf(m).Instrs[0].(*mir.FBin)
	assert.Equal(t, mir.FDiv, div.Op)

	_, changed = simplify(t, src("5"), Options{})
	assert.False(t, changed, "rootn(x, 5) has no cheap form")
}

func TestRootnVectorUntouched(t *testing.T) {
	src := `module t

func k(%x v2f32) v2f32 {
  %r.1 = call v2f32 rootn_v2f32(v2f32 %x, v2i32 <2, 2>)
  ret v2f32 %r.1
}
`
	_, changed := simplify(t, src, Options{})
	assert.False(t, changed)
}

func TestSqrtNative(t *testing.T) {
	src := `module t

func k(%x f32) f32 {
  %r.1 = call f32 sqrt_f32(f32 %x)
  ret f32 %r.1
}
`
	_, changed := simplify(t, src, Options{})
	assert.False(t, changed, "sqrt substitution needs unsafe math")

	m, changed := simplify(t, src, Options{UnsafeFPMath: true})
	require.True(t, changed)
	ci := entryOf(m).Instrs[0].(*mir.Call)
	assert.Equal(t, "native_sqrt_f32", ci.Callee)

	f64src := strings.ReplaceAll(src, "f32", "f64")
	_, changed = simplify(t, f64src, Options{UnsafeFPMath: true})
	assert.False(t, changed, "double sqrt stays exact")
}
