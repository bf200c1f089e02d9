package libcalls

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumen-lang/lumen/internal/mir"
)

func useNativeAll(t *testing.T, src string, allow []string) (*mir.Module, bool) {
	t.Helper()
	m := mustParse(t, src)
	p := New(Options{UseNative: allow})
	changed := false
	for _, f := range m.Funcs {
		if p.UseNativeCalls(m, f) {
			changed = true
		}
	}
	return m, changed
}

const sinSrc = `module t

func k(%x f32) f32 {
  %s.1 = call f32 sin_f32(f32 %x)
  ret f32 %s.1
}
`

func TestUseNativeAllowListed(t *testing.T) {
	m, changed := useNativeAll(t, sinSrc, []string{"sin"})
	require.True(t, changed)
	ci := entryOf(m).Instrs[0].(*mir.Call)
	assert.Equal(t, "native_sin_f32", ci.Callee)
	_, ok := m.Lookup("native_sin_f32")
	assert.True(t, ok)
}

func TestUseNativeAllKeyword(t *testing.T) {
	m, changed := useNativeAll(t, sinSrc, []string{"all"})
	require.True(t, changed)
	assert.Equal(t, "native_sin_f32", entryOf(m).Instrs[0].(*mir.Call).Callee)
}

func TestUseNativeNotListed(t *testing.T) {
	_, changed := useNativeAll(t, sinSrc, []string{"cos"})
	assert.False(t, changed)
}

func TestUseNativeEmptyList(t *testing.T) {
	_, changed := useNativeAll(t, sinSrc, nil)
	assert.False(t, changed)
}

func TestUseNativeDoubleUntouched(t *testing.T) {
	src := `module t

func k(%x f64) f64 {
  %s.1 = call f64 sin_f64(f64 %x)
  ret f64 %s.1
}
`
	_, changed := useNativeAll(t, src, []string{"all"})
	assert.False(t, changed, "native variants are single precision only")
}

func TestUseNativeNoCounterpart(t *testing.T) {
	src := `module t

func k(%x f32) f32 {
  %s.1 = call f32 acos_f32(f32 %x)
  ret f32 %s.1
}
`
	_, changed := useNativeAll(t, src, []string{"all"})
	assert.False(t, changed)
}

func TestUseNativeAlreadyNative(t *testing.T) {
	src := `module t

func k(%x f32) f32 {
  %s.1 = call f32 native_sin_f32(f32 %x)
  ret f32 %s.1
}
`
	_, changed := useNativeAll(t, src, []string{"all"})
	assert.False(t, changed)
}

func TestUseNativeNoBuiltin(t *testing.T) {
	src := `module t

func k(%x f32) f32 {
  %s.1 = call f32 sin_f32(f32 %x) attrs(nobuiltin)
  ret f32 %s.1
}
`
	_, changed := useNativeAll(t, src, []string{"all"})
	assert.False(t, changed)
}

func TestUseNativeSincosSplit(t *testing.T) {
	src := `module t

func k(%x f32, %out p0f32) f32 {
  %s.1 = call f32 sincos_f32(f32 %x, p0f32 %out)
  ret f32 %s.1
}
`
	m, changed := useNativeAll(t, src, []string{"sin", "cos"})
	require.True(t, changed)

	bb := entryOf(m)
	var sinCall, cosCall *mir.Call
	var st *mir.Store
	for _, in := range bb.Instrs {
		switch v := in.(type) {
		case *mir.Call:
			switch v.Callee {
			case "native_sin_f32":
				sinCall = v
			case "native_cos_f32":
				cosCall = v
			case "sincos_f32":
				t.Fatal("combined call survived the split")
			}
		case *mir.Store:
			st = v
		}
	}
	require.NotNil(t, sinCall)
	require.NotNil(t, cosCall)
	require.NotNil(t, st, "cosine store through the original pointer missing")
	assert.Equal(t, "%out", st.Addr.Ref)
	assert.Equal(t, cosCall.Dst, st.Val.Ref)
	assert.Equal(t, sinCall.Dst, retValue(t, bb).Ref)
}

func TestUseNativeSincosNeedsBothHalves(t *testing.T) {
	src := `module t

func k(%x f32, %out p0f32) f32 {
  %s.1 = call f32 sincos_f32(f32 %x, p0f32 %out)
  ret f32 %s.1
}
`
	_, changed := useNativeAll(t, src, []string{"sin"})
	assert.False(t, changed)
	_, changed = useNativeAll(t, src, []string{"cos"})
	assert.False(t, changed)
}
