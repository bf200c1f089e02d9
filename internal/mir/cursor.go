package mir

// Cursor is an insertion point inside a function, positioned at one
// instruction. New instructions are inserted immediately before the current
// one and inherit the cursor's fast-math flags, precision metadata, and
// source location, mirroring how the original call site was annotated.
type Cursor struct {
	Fn   *Function
	Blk  *Block
	Idx  int
	FMF  FastMathFlags
	Ulps float64
	Loc  SrcLoc
}

// At returns a cursor positioned at instruction idx of blk.
func At(fn *Function, blk *Block, idx int) *Cursor {
	return &Cursor{Fn: fn, Blk: blk, Idx: idx}
}

// Current returns the instruction the cursor points at, or nil past the end.
func (c *Cursor) Current() Instr {
	if c.Idx < len(c.Blk.Instrs) {
		return c.Blk.Instrs[c.Idx]
	}
	return nil
}

// InsertBefore places in ahead of the current instruction and keeps the
// cursor on the same instruction.
func (c *Cursor) InsertBefore(in Instr) {
	c.Blk.Insert(c.Idx, in)
	c.Idx++
}

// EraseCurrent removes the instruction under the cursor. The cursor then
// points at the following instruction.
func (c *Cursor) EraseCurrent() {
	c.Blk.Remove(c.Idx)
}

// ReplaceWith rewires every use of the current instruction's result to v and
// erases the instruction.
func (c *Cursor) ReplaceWith(v Value) {
	if name := c.Current().Result(); name != "" {
		c.Fn.ReplaceAllUses(name, v)
	}
	c.EraseCurrent()
}

func (c *Cursor) emit(in Instr, result string, t Type) Value {
	c.InsertBefore(in)
	return Ref(result, t)
}

// FAddV inserts a fadd and returns its result value.
func (c *Cursor) FAddV(x, y Value) Value { return c.fbin(FAdd, x, y, "add") }

// FSubV inserts a fsub and returns its result value.
func (c *Cursor) FSubV(x, y Value) Value { return c.fbin(FSub, x, y, "sub") }

// FMulV inserts a fmul and returns its result value.
func (c *Cursor) FMulV(x, y Value) Value { return c.fbin(FMul, x, y, "mul") }

// FDivV inserts a fdiv and returns its result value.
func (c *Cursor) FDivV(x, y Value) Value { return c.fbin(FDiv, x, y, "div") }

func (c *Cursor) fbin(op FBinOp, x, y Value, stem string) Value {
	dst := c.Fn.NewTemp(stem)
	return c.emit(&FBin{Dst: dst, Op: op, X: x, Y: y, Type: x.Type, FMF: c.FMF},
		dst, x.Type)
}

// ShlV inserts a left shift and returns its result value.
func (c *Cursor) ShlV(x, y Value) Value { return c.ibin(Shl, x, y, "shl") }

// AndV inserts a bitwise and and returns its result value.
func (c *Cursor) AndV(x, y Value) Value { return c.ibin(And, x, y, "and") }

// OrV inserts a bitwise or and returns its result value.
func (c *Cursor) OrV(x, y Value) Value { return c.ibin(Or, x, y, "or") }

func (c *Cursor) ibin(op IBinOp, x, y Value, stem string) Value {
	dst := c.Fn.NewTemp(stem)
	return c.emit(&IBin{Dst: dst, Op: op, X: x, Y: y, Type: x.Type}, dst, x.Type)
}

// CastV inserts a conversion and returns its result value.
func (c *Cursor) CastV(op CastOp, x Value, to Type) Value {
	dst := c.Fn.NewTemp("cast")
	return c.emit(&Cast{Dst: dst, Op: op, X: x, To: to}, dst, to)
}

// IntrinsicV inserts a call to a compiler intrinsic and returns its result
// value. The callee carries the overload suffix, e.g. "fabs.v2f32".
func (c *Cursor) IntrinsicV(name string, ret Type, stem string, args ...Value) Value {
	dst := c.Fn.NewTemp(stem)
	return c.emit(&Call{
		Dst: dst, Callee: name + "." + ret.String(), Intrinsic: true,
		Args: args, Ret: ret, FMF: c.FMF, Ulps: c.Ulps, Loc: c.Loc,
	}, dst, ret)
}

// CallV inserts a call to a named function and returns its result value.
func (c *Cursor) CallV(callee string, ret Type, stem string, args ...Value) Value {
	dst := c.Fn.NewTemp(stem)
	return c.emit(&Call{
		Dst: dst, Callee: callee, Args: args, Ret: ret,
		FMF: c.FMF, Ulps: c.Ulps, Loc: c.Loc,
	}, dst, ret)
}

// LoadV inserts a load and returns its result value.
func (c *Cursor) LoadV(t Type, addr Value) Value {
	dst := c.Fn.NewTemp("load")
	return c.emit(&Load{Dst: dst, Addr: addr, Type: t}, dst, t)
}

// StoreV inserts a store.
func (c *Cursor) StoreV(val, addr Value) {
	c.InsertBefore(&Store{Addr: addr, Val: val})
}

// AllocaEntry allocates a stack slot at the top of the function's entry
// block, past any existing allocas, so the slot dominates everything.
func (c *Cursor) AllocaEntry(elem Type) Value {
	entry := c.Fn.Entry()
	idx := 0
	for idx < len(entry.Instrs) {
		if _, ok := entry.Instrs[idx].(*Alloca); !ok {
			break
		}
		idx++
	}
	dst := c.Fn.NewTemp("slot")
	a := &Alloca{Dst: dst, Elem: elem}
	entry.Insert(idx, a)
	if entry == c.Blk && idx <= c.Idx {
		c.Idx++
	}
	return Ref(dst, a.ResultType())
}
