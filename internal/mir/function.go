package mir

import (
	"fmt"
	"sort"
	"strings"
)

// FuncAttrs are function-level attributes relevant to math rewriting.
type FuncAttrs struct {
	UnsafeFPMath bool
	MinSize      bool
	StrictFP     bool
}

func (a FuncAttrs) String() string {
	var parts []string
	if a.UnsafeFPMath {
		parts = append(parts, "unsafe-fp-math")
	}
	if a.MinSize {
		parts = append(parts, "minsize")
	}
	if a.StrictFP {
		parts = append(parts, "strictfp")
	}
	return strings.Join(parts, ",")
}

// Param is a named function parameter.
type Param struct {
	Name string
	Type Type
}

// Block is a sequence of instructions.
type Block struct {
	Name   string
	Instrs []Instr
}

// Insert places in at position idx, shifting the rest down.
func (b *Block) Insert(idx int, in Instr) {
	b.Instrs = append(b.Instrs, nil)
	copy(b.Instrs[idx+1:], b.Instrs[idx:])
	b.Instrs[idx] = in
}

// Remove erases the instruction at idx.
func (b *Block) Remove(idx int) {
	b.Instrs = append(b.Instrs[:idx], b.Instrs[idx+1:]...)
}

// IndexOf returns the position of in, or -1.
func (b *Block) IndexOf(in Instr) int {
	for i, x := range b.Instrs {
		if x == in {
			return i
		}
	}
	return -1
}

// Function is a collection of basic blocks.
type Function struct {
	Name   string
	Params []Param
	Ret    Type
	Attrs  FuncAttrs
	Blocks []*Block

	tmp int
}

// NewTemp returns a fresh result name with the given stem.
func (f *Function) NewTemp(stem string) string {
	f.tmp++
	return fmt.Sprintf("%%%s.%d", stem, f.tmp)
}

// Entry returns the first block, creating it if the function is empty.
func (f *Function) Entry() *Block {
	if len(f.Blocks) == 0 {
		f.Blocks = append(f.Blocks, &Block{Name: "entry"})
	}
	return f.Blocks[0]
}

// FindDef locates the instruction defining the named result.
func (f *Function) FindDef(ref string) (*Block, int) {
	for _, b := range f.Blocks {
		for i, in := range b.Instrs {
			if in.Result() == ref {
				return b, i
			}
		}
	}
	return nil, -1
}

// ReplaceAllUses substitutes every operand referencing ref with the
// replacement value, across all blocks.
func (f *Function) ReplaceAllUses(ref string, with Value) {
	for _, b := range f.Blocks {
		for _, in := range b.Instrs {
			for _, op := range in.Operands() {
				if op.Kind == ValRef && op.Ref == ref {
					*op = with
				}
			}
		}
	}
}

// Erase removes the instruction from whichever block holds it.
func (f *Function) Erase(in Instr) {
	for _, b := range f.Blocks {
		if i := b.IndexOf(in); i >= 0 {
			b.Remove(i)
			return
		}
	}
}

func (f *Function) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "func %s(", f.Name)
	for i, p := range f.Params {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%s %s", p.Name, p.Type)
	}
	fmt.Fprintf(&b, ") %s", f.Ret)
	if s := f.Attrs.String(); s != "" {
		fmt.Fprintf(&b, " attrs(%s)", s)
	}
	b.WriteString(" {\n")
	for _, bb := range f.Blocks {
		if bb.Name != "" {
			fmt.Fprintf(&b, "%s:\n", bb.Name)
		}
		for _, in := range bb.Instrs {
			b.WriteString("  ")
			b.WriteString(in.String())
			b.WriteByte('\n')
		}
	}
	b.WriteString("}\n")
	return b.String()
}

// Signature is the type of a declared function.
type Signature struct {
	Params []Type
	Ret    Type
}

// Equal reports structural signature equality.
func (s Signature) Equal(o Signature) bool {
	if len(s.Params) != len(o.Params) || !s.Ret.Equal(o.Ret) {
		return false
	}
	for i := range s.Params {
		if !s.Params[i].Equal(o.Params[i]) {
			return false
		}
	}
	return true
}

func (s Signature) String() string {
	parts := make([]string, len(s.Params))
	for i, p := range s.Params {
		parts[i] = p.String()
	}
	return "(" + strings.Join(parts, ", ") + ") " + s.Ret.String()
}

// Module is a compilation unit of MIR.
type Module struct {
	Name  string
	Funcs []*Function
	decls map[string]Signature
}

// NewModule returns an empty module.
func NewModule(name string) *Module {
	return &Module{Name: name, decls: make(map[string]Signature)}
}

// Declare records an external declaration. It reports false when the name is
// already known with a different signature.
func (m *Module) Declare(name string, sig Signature) bool {
	if m.decls == nil {
		m.decls = make(map[string]Signature)
	}
	if old, ok := m.decls[name]; ok {
		return old.Equal(sig)
	}
	if f := m.Function(name); f != nil {
		have := f.Signature()
		if !have.Equal(sig) {
			return false
		}
	}
	m.decls[name] = sig
	return true
}

// Lookup returns the signature of a declared or defined function.
func (m *Module) Lookup(name string) (Signature, bool) {
	if sig, ok := m.decls[name]; ok {
		return sig, true
	}
	if f := m.Function(name); f != nil {
		return f.Signature(), true
	}
	return Signature{}, false
}

// IsDeclaration reports whether the name is known but has no body in this
// module. Calls into pure declarations are the only ones the pipe
// specializer may retarget.
func (m *Module) IsDeclaration(name string) bool {
	if m.Function(name) != nil {
		return false
	}
	_, ok := m.decls[name]
	return ok
}

// Function returns the defined function with the given name, or nil.
func (m *Module) Function(name string) *Function {
	for _, f := range m.Funcs {
		if f.Name == name {
			return f
		}
	}
	return nil
}

// Decls exposes the declaration table. Iteration order is unspecified.
func (m *Module) Decls() map[string]Signature { return m.decls }

// Signature returns the function's type.
func (f *Function) Signature() Signature {
	params := make([]Type, len(f.Params))
	for i, p := range f.Params {
		params[i] = p.Type
	}
	return Signature{Params: params, Ret: f.Ret}
}

func (m *Module) String() string {
	if m == nil {
		return "<nil-mir-module>"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "module %s\n", m.Name)
	names := make([]string, 0, len(m.decls))
	for name := range m.decls {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		sig := m.decls[name]
		fmt.Fprintf(&b, "declare %s%s\n", name, sig)
	}
	for _, f := range m.Funcs {
		b.WriteByte('\n')
		b.WriteString(f.String())
	}
	return b.String()
}
