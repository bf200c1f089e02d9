package builtins

import (
	"fmt"
	"strings"

	"github.com/lumen-lang/lumen/internal/mir"
)

// Symbol grammar:
//
//	[native_]<name>_<vN><elem>[_p<space>]
//
// e.g. sin_f32, exp2_v4f32, native_sqrt_f32, sincos_f64_p5. Pipe builtins
// keep their fixed frontend names (__read_pipe_2 and friends) with no type
// suffix; their size-specialized variants append _<bytes> and are not
// library calls themselves.

// Mangle returns the link symbol for the descriptor.
func (d Desc) Mangle() string {
	if d.ID.IsPipe() {
		return d.ID.Name()
	}
	var b strings.Builder
	if d.Native {
		b.WriteString("native_")
	}
	b.WriteString(d.ID.Name())
	b.WriteByte('_')
	if d.Lanes > 1 {
		fmt.Fprintf(&b, "v%d", d.Lanes)
	}
	b.WriteString(d.Elem.String())
	if d.ID == Sincos && d.PtrSpace != NoPtr {
		fmt.Fprintf(&b, "_p%d", d.PtrSpace)
	}
	return b.String()
}

// Parse decodes a callee symbol into a descriptor. It reports false for
// anything that is not a recognized library name; that is the normal
// "not a library call" outcome, never an error.
func Parse(symbol string) (Desc, bool) {
	if id, ok := namesToID[symbol]; ok && id.IsPipe() {
		return Desc{ID: id, Elem: mir.ElemInvalid, Lanes: 1, PtrSpace: NoPtr}, true
	}
	d := Desc{Lanes: 1, PtrSpace: NoPtr}
	rest := symbol
	if strings.HasPrefix(rest, "native_") {
		d.Native = true
		rest = strings.TrimPrefix(rest, "native_")
	}
	// Pointer-space suffix (sincos only).
	if i := strings.LastIndex(rest, "_p"); i >= 0 {
		if space, ok := atoi(rest[i+2:]); ok {
			d.PtrSpace = space
			rest = rest[:i]
		}
	}
	us := strings.LastIndexByte(rest, '_')
	if us <= 0 {
		return Desc{}, false
	}
	name, tyTok := rest[:us], rest[us+1:]
	id, ok := namesToID[name]
	if !ok || id.IsPipe() {
		return Desc{}, false
	}
	t, ok := mir.ParseType(tyTok)
	if !ok || !t.IsFloat() {
		return Desc{}, false
	}
	d.ID = id
	d.Elem = t.Elem
	d.Lanes = t.Lanes
	if d.PtrSpace != NoPtr && id != Sincos {
		return Desc{}, false
	}
	return d, true
}

func atoi(s string) (int, bool) {
	if s == "" {
		return 0, false
	}
	n := 0
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0, false
		}
		n = n*10 + int(c-'0')
	}
	return n, true
}
