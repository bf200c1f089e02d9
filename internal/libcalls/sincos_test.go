package libcalls

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumen-lang/lumen/internal/mir"
)

func TestSincosFusion(t *testing.T) {
	src := `module t

func k(%a f32) f32 {
  %s.1 = call f32 sin_f32(f32 %a)
  %c.1 = call f32 cos_f32(f32 %a)
  %r.1 = fadd f32 %s.1, %c.1
  ret f32 %r.1
}
`
	m, changed := simplify(t, src, Options{})
	require.True(t, changed)

	_, ok := m.Lookup("sincos_f32_p5")
	assert.True(t, ok, "combined function not declared")

	bb := entryOf(m)
	var fused *mir.Call
	var load *mir.Load
	sinLeft, cosLeft := 0, 0
	for _, in := range bb.Instrs {
		switch v := in.(type) {
		case *mir.Call:
			switch v.Callee {
			case "sincos_f32_p5":
				fused = v
			case "sin_f32":
				sinLeft++
			case "cos_f32":
				cosLeft++
			}
		case *mir.Load:
			load = v
		}
	}
	require.NotNil(t, fused, "fused call missing")
	require.NotNil(t, load, "cosine load missing")
	assert.Equal(t, 0, sinLeft, "triggering sin call must be erased")
	assert.Equal(t, 1, cosLeft, "redundant cos call is left for dead-code cleanup")

	add := bb.Instrs[len(bb.Instrs)-2].(*mir.FBin)
	assert.Equal(t, fused.Dst, add.X.Ref, "sin use not rewired to fused result")
	assert.Equal(t, load.Dst, add.Y.Ref, "cos use not rewired to loaded result")

	// The scratch slot is private and dominates from the entry.
	_, isAlloca := bb.Instrs[0].(*mir.Alloca)
	assert.True(t, isAlloca)
	assert.Equal(t, mir.SpacePrivate, fused.Args[1].Type.AddrSpace)
}

func TestSincosFusionDouble(t *testing.T) {
	src := `module t

func k(%a f64) f64 {
  %s.1 = call f64 sin_f64(f64 %a)
  %c.1 = call f64 cos_f64(f64 %a)
  %r.1 = fmul f64 %s.1, %c.1
  ret f64 %r.1
}
`
	m, changed := simplify(t, src, Options{})
	require.True(t, changed)
	_, ok := m.Lookup("sincos_f64_p5")
	assert.True(t, ok)
}

func TestLoneSinUnchanged(t *testing.T) {
	src := `module t

func k(%a f32) f32 {
  %s.1 = call f32 sin_f32(f32 %a)
  ret f32 %s.1
}
`
	m, changed := simplify(t, src, Options{})
	assert.False(t, changed)
	assert.Len(t, entryOf(m).Instrs, 2)
}

func TestSincosDifferentArgsNoFusion(t *testing.T) {
	src := `module t

func k(%a f32, %b f32) f32 {
  %s.1 = call f32 sin_f32(f32 %a)
  %c.1 = call f32 cos_f32(f32 %b)
  %r.1 = fadd f32 %s.1, %c.1
  ret f32 %r.1
}
`
	_, changed := simplify(t, src, Options{})
	assert.False(t, changed)
}

func TestSincosFMFMerge(t *testing.T) {
	src := `module t

func k(%a f32) f32 {
  %s.1 = call f32 sin_f32(f32 %a) fmf(fast) ulps(4.0)
  %c.1 = call f32 cos_f32(f32 %a) fmf(nnan) ulps(2.5)
  %r.1 = fadd f32 %s.1, %c.1
  ret f32 %r.1
}
`
	m, changed := simplify(t, src, Options{})
	require.True(t, changed)
	for _, in := range entryOf(m).Instrs {
		if ci, ok := in.(*mir.Call); ok && ci.Callee == "sincos_f32_p5" {
			assert.Equal(t, mir.FMFNoNaNs, ci.FMF, "most conservative flags win")
			assert.Equal(t, 2.5, ci.Ulps, "tightest error bound wins")
			return
		}
	}
	t.Fatal("fused call missing")
}

func TestSincosNoBuiltinExcluded(t *testing.T) {
	src := `module t

func k(%a f32) f32 {
  %s.1 = call f32 sin_f32(f32 %a)
  %c.1 = call f32 cos_f32(f32 %a) attrs(nobuiltin)
  %r.1 = fadd f32 %s.1, %c.1
  ret f32 %r.1
}
`
	m, changed := simplify(t, src, Options{})
	assert.False(t, changed)
	s := m.Funcs[0].String()
	assert.Contains(t, s, "sin_f32")
	assert.Contains(t, s, "cos_f32")
}

func TestSincosInsertAfterArgDef(t *testing.T) {
	src := `module t

func k(%x f32) f32 {
  %a.1 = fmul f32 %x, 2.0
  %s.1 = call f32 sin_f32(f32 %a.1)
  %c.1 = call f32 cos_f32(f32 %a.1)
  %r.1 = fadd f32 %s.1, %c.1
  ret f32 %r.1
}
`
	m, changed := simplify(t, src, Options{})
	require.True(t, changed)
	bb := entryOf(m)
	// alloca first, then the argument's defining multiply, then the fused
	// call right behind it.
	_, isAlloca := bb.Instrs[0].(*mir.Alloca)
	require.True(t, isAlloca)
	mul, isMul := bb.Instrs[1].(*mir.FBin)
	require.True(t, isMul)
	ci, isCall := bb.Instrs[2].(*mir.Call)
	require.True(t, isCall)
	assert.Equal(t, "sincos_f32_p5", ci.Callee)
	assert.Equal(t, mul.Dst, ci.Args[0].Ref)
}
