package mir

import (
	"fmt"
	"strconv"
	"strings"
)

// Parse reads the textual MIR form produced by Module.String. The reader is
// line oriented; blank lines and lines starting with ';' are skipped.
func Parse(src string) (*Module, error) {
	p := &parser{lines: strings.Split(src, "\n")}
	return p.module()
}

type parser struct {
	lines []string
	pos   int
}

func (p *parser) errf(format string, args ...any) error {
	return fmt.Errorf("mir: line %d: %s", p.pos, fmt.Sprintf(format, args...))
}

func (p *parser) next() (string, bool) {
	for p.pos < len(p.lines) {
		line := strings.TrimSpace(p.lines[p.pos])
		p.pos++
		if line == "" || strings.HasPrefix(line, ";") {
			continue
		}
		return line, true
	}
	return "", false
}

func (p *parser) module() (*Module, error) {
	line, ok := p.next()
	if !ok || !strings.HasPrefix(line, "module ") {
		return nil, p.errf("expected module header")
	}
	m := NewModule(strings.TrimSpace(strings.TrimPrefix(line, "module ")))
	for {
		line, ok := p.next()
		if !ok {
			return m, nil
		}
		switch {
		case strings.HasPrefix(line, "declare "):
			if err := p.declare(m, line); err != nil {
				return nil, err
			}
		case strings.HasPrefix(line, "func "):
			f, err := p.function(line)
			if err != nil {
				return nil, err
			}
			m.Funcs = append(m.Funcs, f)
		default:
			return nil, p.errf("unexpected %q", line)
		}
	}
}

// declare sym(f32, p5f32) f32
func (p *parser) declare(m *Module, line string) error {
	rest := strings.TrimPrefix(line, "declare ")
	open := strings.IndexByte(rest, '(')
	close := strings.LastIndexByte(rest, ')')
	if open < 0 || close < open {
		return p.errf("malformed declare")
	}
	name := strings.TrimSpace(rest[:open])
	var params []Type
	if args := strings.TrimSpace(rest[open+1 : close]); args != "" {
		for _, tok := range strings.Split(args, ",") {
			t, err := p.typ(strings.TrimSpace(tok))
			if err != nil {
				return err
			}
			params = append(params, t)
		}
	}
	ret, err := p.typ(strings.TrimSpace(rest[close+1:]))
	if err != nil {
		return err
	}
	if !m.Declare(name, Signature{Params: params, Ret: ret}) {
		return p.errf("conflicting declaration of %s", name)
	}
	return nil
}

// func name(%x f32, %y f32) f32 attrs(...) {
func (p *parser) function(line string) (*Function, error) {
	rest := strings.TrimPrefix(line, "func ")
	open := strings.IndexByte(rest, '(')
	close := strings.IndexByte(rest, ')')
	if open < 0 || close < open || !strings.HasSuffix(rest, "{") {
		return nil, p.errf("malformed func header")
	}
	f := &Function{Name: strings.TrimSpace(rest[:open])}
	if args := strings.TrimSpace(rest[open+1 : close]); args != "" {
		for _, tok := range strings.Split(args, ",") {
			fields := strings.Fields(strings.TrimSpace(tok))
			if len(fields) != 2 || !strings.HasPrefix(fields[0], "%") {
				return nil, p.errf("malformed parameter %q", tok)
			}
			t, err := p.typ(fields[1])
			if err != nil {
				return nil, err
			}
			f.Params = append(f.Params, Param{Name: fields[0], Type: t})
		}
	}
	tail := strings.TrimSpace(strings.TrimSuffix(rest[close+1:], "{"))
	fields := strings.Fields(tail)
	if len(fields) == 0 {
		return nil, p.errf("missing return type")
	}
	ret, err := p.typ(fields[0])
	if err != nil {
		return nil, err
	}
	f.Ret = ret
	for _, fld := range fields[1:] {
		inner, ok := group(fld, "attrs")
		if !ok {
			return nil, p.errf("unexpected %q in func header", fld)
		}
		for _, a := range strings.Split(inner, ",") {
			switch strings.TrimSpace(a) {
			case "unsafe-fp-math":
				f.Attrs.UnsafeFPMath = true
			case "minsize":
				f.Attrs.MinSize = true
			case "strictfp":
				f.Attrs.StrictFP = true
			case "":
			default:
				return nil, p.errf("unknown function attribute %q", a)
			}
		}
	}
	blk := &Block{Name: "entry"}
	seeded := false
	for {
		line, ok := p.next()
		if !ok {
			return nil, p.errf("unterminated function %s", f.Name)
		}
		if line == "}" {
			if seeded || len(blk.Instrs) > 0 {
				f.Blocks = append(f.Blocks, blk)
			}
			return f, nil
		}
		if strings.HasSuffix(line, ":") && !strings.Contains(line, " ") {
			if seeded || len(blk.Instrs) > 0 {
				f.Blocks = append(f.Blocks, blk)
			}
			blk = &Block{Name: strings.TrimSuffix(line, ":")}
			seeded = true
			continue
		}
		in, err := p.instr(line)
		if err != nil {
			return nil, err
		}
		blk.Instrs = append(blk.Instrs, in)
	}
}

func group(s, key string) (string, bool) {
	if strings.HasPrefix(s, key+"(") && strings.HasSuffix(s, ")") {
		return s[len(key)+1 : len(s)-1], true
	}
	return "", false
}

func (p *parser) instr(line string) (Instr, error) {
	dst := ""
	if strings.HasPrefix(line, "%") {
		eq := strings.Index(line, " = ")
		if eq < 0 {
			return nil, p.errf("malformed instruction %q", line)
		}
		dst = line[:eq]
		line = line[eq+3:]
	}
	op, rest, _ := strings.Cut(line, " ")
	switch op {
	case "call", "call.intr":
		return p.call(dst, rest, op == "call.intr")
	case "fadd", "fsub", "fmul", "fdiv":
		return p.fbin(dst, op, rest)
	case "shl", "and", "or":
		return p.ibin(dst, op, rest)
	case "sitofp", "fptosi", "zext", "bitcast", "ptrcast":
		return p.cast(dst, op, rest)
	case "alloca":
		t, err := p.typ(strings.TrimSpace(rest))
		if err != nil {
			return nil, err
		}
		return &Alloca{Dst: dst, Elem: t}, nil
	case "load":
		return p.load(dst, rest)
	case "store":
		return p.store(rest)
	case "ret":
		if strings.TrimSpace(rest) == "" {
			return &Ret{}, nil
		}
		v, err := p.typedValue(strings.TrimSpace(rest))
		if err != nil {
			return nil, err
		}
		return &Ret{Val: &v}, nil
	default:
		return nil, p.errf("unknown instruction %q", op)
	}
}

// call f32 sin_f32(f32 %x) fmf(nnan) attrs(nobuiltin) ulps(2.5) loc(a.cl:3:1)
func (p *parser) call(dst, rest string, intrinsic bool) (Instr, error) {
	ty, rest, _ := strings.Cut(strings.TrimSpace(rest), " ")
	ret, err := p.typ(ty)
	if err != nil {
		return nil, err
	}
	open := strings.IndexByte(rest, '(')
	if open < 0 {
		return nil, p.errf("malformed call")
	}
	// Trailing annotation groups sit after the argument list's close paren.
	argEnd := matchParen(rest, open)
	if argEnd < 0 {
		return nil, p.errf("malformed call")
	}
	ci := &Call{Dst: dst, Callee: strings.TrimSpace(rest[:open]),
		Intrinsic: intrinsic, Ret: ret}
	if args := strings.TrimSpace(rest[open+1 : argEnd]); args != "" {
		for _, tok := range splitTop(args) {
			v, err := p.typedValue(strings.TrimSpace(tok))
			if err != nil {
				return nil, err
			}
			ci.Args = append(ci.Args, v)
		}
	}
	for _, fld := range strings.Fields(strings.TrimSpace(rest[argEnd+1:])) {
		switch {
		case strings.HasPrefix(fld, "fmf("):
			inner, _ := group(fld, "fmf")
			fmf, ok := ParseFMF(inner)
			if !ok {
				return nil, p.errf("bad fast-math flags %q", inner)
			}
			ci.FMF = fmf
		case strings.HasPrefix(fld, "attrs("):
			inner, _ := group(fld, "attrs")
			for _, a := range strings.Split(inner, ",") {
				switch strings.TrimSpace(a) {
				case "nobuiltin":
					ci.Attrs.NoBuiltin = true
				case "noinline":
					ci.Attrs.NoInline = true
				case "strictfp":
					ci.Attrs.StrictFP = true
				case "":
				default:
					return nil, p.errf("unknown call attribute %q", a)
				}
			}
		case strings.HasPrefix(fld, "ulps("):
			inner, _ := group(fld, "ulps")
			u, err := strconv.ParseFloat(inner, 64)
			if err != nil {
				return nil, p.errf("bad ulps %q", inner)
			}
			ci.Ulps = u
		case strings.HasPrefix(fld, "loc("):
			inner, _ := group(fld, "loc")
			loc, err := p.loc(inner)
			if err != nil {
				return nil, err
			}
			ci.Loc = loc
		default:
			return nil, p.errf("unexpected call annotation %q", fld)
		}
	}
	return ci, nil
}

func (p *parser) loc(s string) (SrcLoc, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return SrcLoc{}, p.errf("bad location %q", s)
	}
	line, err1 := strconv.Atoi(parts[1])
	col, err2 := strconv.Atoi(parts[2])
	if err1 != nil || err2 != nil {
		return SrcLoc{}, p.errf("bad location %q", s)
	}
	return SrcLoc{File: parts[0], Line: line, Col: col}, nil
}

// fmul f32 %x, 2.0 fmf(fast)
func (p *parser) fbin(dst, op, rest string) (Instr, error) {
	kinds := map[string]FBinOp{"fadd": FAdd, "fsub": FSub, "fmul": FMul, "fdiv": FDiv}
	ty, rest, _ := strings.Cut(strings.TrimSpace(rest), " ")
	t, err := p.typ(ty)
	if err != nil {
		return nil, err
	}
	rest, fmf, err := p.trailingFMF(rest)
	if err != nil {
		return nil, err
	}
	ops := splitTop(rest)
	if len(ops) != 2 {
		return nil, p.errf("%s needs two operands", op)
	}
	x, err := p.value(strings.TrimSpace(ops[0]), t)
	if err != nil {
		return nil, err
	}
	y, err := p.value(strings.TrimSpace(ops[1]), t)
	if err != nil {
		return nil, err
	}
	return &FBin{Dst: dst, Op: kinds[op], X: x, Y: y, Type: t, FMF: fmf}, nil
}

func (p *parser) trailingFMF(rest string) (string, FastMathFlags, error) {
	rest = strings.TrimSpace(rest)
	if i := strings.LastIndex(rest, " fmf("); i >= 0 && strings.HasSuffix(rest, ")") {
		inner, _ := group(strings.TrimSpace(rest[i+1:]), "fmf")
		fmf, ok := ParseFMF(inner)
		if !ok {
			return "", 0, p.errf("bad fast-math flags %q", inner)
		}
		return strings.TrimSpace(rest[:i]), fmf, nil
	}
	return rest, 0, nil
}

func (p *parser) ibin(dst, op, rest string) (Instr, error) {
	kinds := map[string]IBinOp{"shl": Shl, "and": And, "or": Or}
	ty, rest, _ := strings.Cut(strings.TrimSpace(rest), " ")
	t, err := p.typ(ty)
	if err != nil {
		return nil, err
	}
	ops := splitTop(rest)
	if len(ops) != 2 {
		return nil, p.errf("%s needs two operands", op)
	}
	x, err := p.value(strings.TrimSpace(ops[0]), t)
	if err != nil {
		return nil, err
	}
	y, err := p.value(strings.TrimSpace(ops[1]), t)
	if err != nil {
		return nil, err
	}
	return &IBin{Dst: dst, Op: kinds[op], X: x, Y: y, Type: t}, nil
}

// sitofp i32 %n to f32
func (p *parser) cast(dst, op, rest string) (Instr, error) {
	kinds := map[string]CastOp{
		"sitofp": SIToFP, "fptosi": FPToSI, "zext": ZExt,
		"bitcast": Bitcast, "ptrcast": PtrCast,
	}
	src, toTok, ok := strings.Cut(rest, " to ")
	if !ok {
		return nil, p.errf("malformed cast")
	}
	x, err := p.typedValue(strings.TrimSpace(src))
	if err != nil {
		return nil, err
	}
	to, err := p.typ(strings.TrimSpace(toTok))
	if err != nil {
		return nil, err
	}
	return &Cast{Dst: dst, Op: kinds[op], X: x, To: to}, nil
}

// load f32, p5f32 %a
func (p *parser) load(dst, rest string) (Instr, error) {
	ty, addrTok, ok := strings.Cut(rest, ",")
	if !ok {
		return nil, p.errf("malformed load")
	}
	t, err := p.typ(strings.TrimSpace(ty))
	if err != nil {
		return nil, err
	}
	addr, err := p.typedValue(strings.TrimSpace(addrTok))
	if err != nil {
		return nil, err
	}
	return &Load{Dst: dst, Addr: addr, Type: t}, nil
}

// store f32 %v, p5f32 %a
func (p *parser) store(rest string) (Instr, error) {
	ops := splitTop(rest)
	if len(ops) != 2 {
		return nil, p.errf("malformed store")
	}
	val, err := p.typedValue(strings.TrimSpace(ops[0]))
	if err != nil {
		return nil, err
	}
	addr, err := p.typedValue(strings.TrimSpace(ops[1]))
	if err != nil {
		return nil, err
	}
	return &Store{Addr: addr, Val: val}, nil
}

// typedValue parses "type literal".
func (p *parser) typedValue(s string) (Value, error) {
	ty, lit, ok := strings.Cut(s, " ")
	if !ok {
		return Value{}, p.errf("expected typed operand, got %q", s)
	}
	t, err := p.typ(ty)
	if err != nil {
		return Value{}, err
	}
	return p.value(strings.TrimSpace(lit), t)
}

func (p *parser) value(lit string, t Type) (Value, error) {
	switch {
	case strings.HasPrefix(lit, "%"):
		return Ref(lit, t), nil
	case lit == "zeroinitializer":
		return Zero(t), nil
	case strings.HasPrefix(lit, "<") && strings.HasSuffix(lit, ">"):
		inner := lit[1 : len(lit)-1]
		var felts []float64
		var ielts []int64
		for _, tok := range strings.Split(inner, ",") {
			tok = strings.TrimSpace(tok)
			if t.Elem.IsFloat() {
				f, err := strconv.ParseFloat(tok, 64)
				if err != nil {
					return Value{}, p.errf("bad lane %q", tok)
				}
				felts = append(felts, f)
			} else {
				i, err := strconv.ParseInt(tok, 10, 64)
				if err != nil {
					return Value{}, p.errf("bad lane %q", tok)
				}
				ielts = append(ielts, i)
			}
		}
		if t.Elem.IsFloat() {
			return FloatVec(t, felts), nil
		}
		return IntVec(t, ielts), nil
	case t.Elem.IsFloat():
		f, err := strconv.ParseFloat(lit, 64)
		if err != nil {
			return Value{}, p.errf("bad float literal %q", lit)
		}
		return ConstFloat(t, f), nil
	default:
		i, err := strconv.ParseInt(lit, 10, 64)
		if err != nil {
			return Value{}, p.errf("bad integer literal %q", lit)
		}
		return ConstInt(t, i), nil
	}
}

// typ parses a type token: f32, v4f32, i32, p5f32, p0.
func (p *parser) typ(s string) (Type, error) {
	t, ok := ParseType(s)
	if !ok {
		return Type{}, p.errf("bad type %q", s)
	}
	return t, nil
}

// ParseType parses a type token in the printed form.
func ParseType(s string) (Type, bool) {
	if strings.HasPrefix(s, "p") {
		digits := 0
		for digits+1 < len(s) && s[digits+1] >= '0' && s[digits+1] <= '9' {
			digits++
		}
		if digits == 0 {
			return Type{}, false
		}
		space, err := strconv.Atoi(s[1 : 1+digits])
		if err != nil {
			return Type{}, false
		}
		rest := s[1+digits:]
		if rest == "" {
			return Type{Elem: ElemPtr, Lanes: 1, AddrSpace: space}, true
		}
		inner, ok := ParseType(rest)
		if !ok {
			return Type{}, false
		}
		return Pointer(inner, space), true
	}
	lanes := 1
	if strings.HasPrefix(s, "v") {
		digits := 0
		for digits+1 < len(s) && s[digits+1] >= '0' && s[digits+1] <= '9' {
			digits++
		}
		if digits == 0 {
			return Type{}, false
		}
		n, err := strconv.Atoi(s[1 : 1+digits])
		if err != nil || n < 2 || n > 16 {
			return Type{}, false
		}
		lanes = n
		s = s[1+digits:]
	}
	var e Elem
	switch s {
	case "f16":
		e = ElemF16
	case "f32":
		e = ElemF32
	case "f64":
		e = ElemF64
	case "i32":
		e = ElemI32
	case "i64":
		e = ElemI64
	default:
		return Type{}, false
	}
	return Type{Elem: e, Lanes: lanes}, true
}

// matchParen returns the index of the ')' matching the '(' at open.
func matchParen(s string, open int) int {
	depth := 0
	for i := open; i < len(s); i++ {
		switch s[i] {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// splitTop splits on top-level commas, ignoring commas inside <...> or (...).
func splitTop(s string) []string {
	var parts []string
	depth := 0
	last := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '<', '(':
			depth++
		case '>', ')':
			depth--
		case ',':
			if depth == 0 {
				parts = append(parts, s[last:i])
				last = i + 1
			}
		}
	}
	parts = append(parts, s[last:])
	return parts
}
