package libcalls

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumen-lang/lumen/internal/mir"
)

func pipeSrc(size, align int) string {
	return fmt.Sprintf(`module t
declare __read_pipe_2(p1i64, p0i64, i32, i32) i32

func k(%%p p1i64, %%d p0i64) i32 {
  %%r.1 = call i32 __read_pipe_2(p1i64 %%p, p0i64 %%d, i32 %d, i32 %d)
  ret i32 %%r.1
}
`, size, align)
}

func TestPipeSpecialization(t *testing.T) {
	m, changed := simplify(t, pipeSrc(4, 4), Options{})
	require.True(t, changed)

	bb := entryOf(m)
	var ci *mir.Call
	for _, in := range bb.Instrs {
		if c, ok := in.(*mir.Call); ok {
			ci = c
		}
	}
	require.NotNil(t, ci)
	assert.Equal(t, "__read_pipe_2_4", ci.Callee)
	require.Len(t, ci.Args, 2, "size and alignment operands must be dropped")

	// The packet pointer is retyped to the 4-byte element.
	ptr := ci.Args[1].Type
	assert.True(t, ptr.IsPointer())
	assert.Equal(t, mir.ElemI32, ptr.Pointee.Elem)

	sig, ok := m.Lookup("__read_pipe_2_4")
	require.True(t, ok, "specialized symbol not declared")
	assert.Len(t, sig.Params, 2)
}

func TestPipeEightBytesNoCast(t *testing.T) {
	m, changed := simplify(t, pipeSrc(8, 8), Options{})
	require.True(t, changed)
	bb := entryOf(m)
	ci := bb.Instrs[0].(*mir.Call)
	assert.Equal(t, "__read_pipe_2_8", ci.Callee)
	// p0i64 already matches the 8-byte packet, so no pointer cast appears.
	assert.Len(t, bb.Instrs, 2)
}

func TestPipeMismatchedAlignment(t *testing.T) {
	_, changed := simplify(t, pipeSrc(4, 1), Options{})
	assert.False(t, changed)
}

func TestPipeRuntimeSize(t *testing.T) {
	src := `module t
declare __read_pipe_2(p1i64, p0i64, i32, i32) i32

func k(%p p1i64, %d p0i64, %n i32) i32 {
  %r.1 = call i32 __read_pipe_2(p1i64 %p, p0i64 %d, i32 %n, i32 %n)
  ret i32 %r.1
}
`
	_, changed := simplify(t, src, Options{})
	assert.False(t, changed)
}

func TestPipeUserDefinedUntouched(t *testing.T) {
	// A module-local definition of the generic symbol is an intentional
	// override and must keep receiving the calls.
	src := `module t

func __read_pipe_2(%p p1i64, %d p0i64, %s i32, %a i32) i32 {
  ret i32 0
}

func k(%p p1i64, %d p0i64) i32 {
  %r.1 = call i32 __read_pipe_2(p1i64 %p, p0i64 %d, i32 4, i32 4)
  ret i32 %r.1
}
`
	_, changed := simplify(t, src, Options{})
	assert.False(t, changed)
}

func TestPipeLanguageVersionGate(t *testing.T) {
	_, changed := simplify(t, pipeSrc(4, 4), Options{LangVersion: "1.2"})
	assert.False(t, changed, "pipes do not exist before 2.0")

	_, changed = simplify(t, pipeSrc(4, 4), Options{LangVersion: "3.0"})
	assert.True(t, changed)
}

func TestWritePipeFourArgsShape(t *testing.T) {
	src := `module t
declare __write_pipe_4(p1i64, p1i64, i32, p0i64, i32, i32) i32

func k(%p p1i64, %rsv p1i64, %i i32, %d p0i64) i32 {
  %r.1 = call i32 __write_pipe_4(p1i64 %p, p1i64 %rsv, i32 %i, p0i64 %d, i32 4, i32 4)
  ret i32 %r.1
}
`
	m, changed := simplify(t, src, Options{})
	require.True(t, changed)
	var ci *mir.Call
	for _, in := range entryOf(m).Instrs {
		if c, ok := in.(*mir.Call); ok {
			ci = c
		}
	}
	require.NotNil(t, ci)
	assert.Equal(t, "__write_pipe_4_4", ci.Callee)
	assert.Len(t, ci.Args, 4)
	assert.Equal(t, mir.ElemI32, ci.Args[3].Type.Pointee.Elem)
}
