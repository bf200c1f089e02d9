package mir

import (
	"fmt"
	"strings"
)

// FastMathFlags relax strict floating-point semantics per instruction.
type FastMathFlags uint8

const (
	FMFReassoc FastMathFlags = 1 << iota
	FMFNoNaNs
	FMFNoInfs
	FMFNoSignedZeros
	FMFAllowRecip
	FMFAllowContract
	FMFApproxFunc

	FMFNone FastMathFlags = 0
	FMFFast FastMathFlags = FMFReassoc | FMFNoNaNs | FMFNoInfs |
		FMFNoSignedZeros | FMFAllowRecip | FMFAllowContract | FMFApproxFunc
)

// None reports whether no flag is set.
func (f FastMathFlags) None() bool { return f == 0 }

// IsFast reports whether every flag is set.
func (f FastMathFlags) IsFast() bool { return f == FMFFast }

// ApproxFunc reports whether approximate library functions are permitted.
func (f FastMathFlags) ApproxFunc() bool { return f&FMFApproxFunc != 0 }

var fmfNames = []struct {
	bit  FastMathFlags
	name string
}{
	{FMFReassoc, "reassoc"},
	{FMFNoNaNs, "nnan"},
	{FMFNoInfs, "ninf"},
	{FMFNoSignedZeros, "nsz"},
	{FMFAllowRecip, "arcp"},
	{FMFAllowContract, "contract"},
	{FMFApproxFunc, "afn"},
}

func (f FastMathFlags) String() string {
	if f.IsFast() {
		return "fast"
	}
	var parts []string
	for _, n := range fmfNames {
		if f&n.bit != 0 {
			parts = append(parts, n.name)
		}
	}
	return strings.Join(parts, ",")
}

// ParseFMF parses the textual form produced by String.
func ParseFMF(s string) (FastMathFlags, bool) {
	if s == "fast" {
		return FMFFast, true
	}
	var f FastMathFlags
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		found := false
		for _, n := range fmfNames {
			if part == n.name {
				f |= n.bit
				found = true
				break
			}
		}
		if !found {
			return 0, false
		}
	}
	return f, true
}

// CallAttrs are per-call-site attributes.
type CallAttrs struct {
	NoBuiltin bool
	NoInline  bool
	StrictFP  bool
}

func (a CallAttrs) String() string {
	var parts []string
	if a.NoBuiltin {
		parts = append(parts, "nobuiltin")
	}
	if a.NoInline {
		parts = append(parts, "noinline")
	}
	if a.StrictFP {
		parts = append(parts, "strictfp")
	}
	return strings.Join(parts, ",")
}

// SrcLoc is a source location. A zero Line means unknown.
type SrcLoc struct {
	File string
	Line int
	Col  int
}

// IsValid reports whether the location carries real position information.
func (l SrcLoc) IsValid() bool { return l.Line > 0 }

func (l SrcLoc) String() string {
	return fmt.Sprintf("%s:%d:%d", l.File, l.Line, l.Col)
}

// MergeLocs merges source locations the way a fused instruction covering all
// of them should be attributed: the common location if they agree, otherwise
// the shared file with the position dropped.
func MergeLocs(locs []SrcLoc) SrcLoc {
	var merged SrcLoc
	for _, l := range locs {
		if !l.IsValid() {
			continue
		}
		if !merged.IsValid() {
			merged = l
			continue
		}
		if merged != l {
			return SrcLoc{File: merged.File}
		}
	}
	return merged
}

// MergeUlps merges per-call precision metadata. Zero means "no relaxation
// requested"; a merged call must honor the strictest participant, so any
// absent metadata wins, otherwise the smaller error bound is kept.
func MergeUlps(a, b float64) float64 {
	if a == 0 || b == 0 {
		return 0
	}
	if a < b {
		return a
	}
	return b
}

// Instr is implemented by all MIR instructions.
type Instr interface {
	// Result returns the name of the produced value, or "" if none.
	Result() string
	// Operands returns pointers to the instruction's value operands so a
	// rewrite can substitute them in place.
	Operands() []*Value
	String() string
}

// Call represents a call to a named function or to a compiler intrinsic.
type Call struct {
	Dst       string
	Callee    string
	Intrinsic bool
	Args      []Value
	Ret       Type
	Attrs     CallAttrs
	FMF       FastMathFlags
	Ulps      float64 // max error metadata, 0 = unset
	Loc       SrcLoc
}

// FBinOp enumerates floating binary operations.
type FBinOp int

const (
	FAdd FBinOp = iota
	FSub
	FMul
	FDiv
)

func (op FBinOp) String() string {
	switch op {
	case FAdd:
		return "fadd"
	case FSub:
		return "fsub"
	case FMul:
		return "fmul"
	case FDiv:
		return "fdiv"
	default:
		return "fbin?"
	}
}

// FBin is a lane-wise floating binary operation.
type FBin struct {
	Dst  string
	Op   FBinOp
	X, Y Value
	Type Type
	FMF  FastMathFlags
}

// IBinOp enumerates the integer bit operations the rewrites need.
type IBinOp int

const (
	Shl IBinOp = iota
	And
	Or
)

func (op IBinOp) String() string {
	switch op {
	case Shl:
		return "shl"
	case And:
		return "and"
	case Or:
		return "or"
	default:
		return "ibin?"
	}
}

// IBin is a lane-wise integer binary operation.
type IBin struct {
	Dst  string
	Op   IBinOp
	X, Y Value
	Type Type
}

// CastOp enumerates conversions.
type CastOp int

const (
	SIToFP CastOp = iota
	FPToSI
	ZExt
	Bitcast
	PtrCast // pointer cast, including address-space casts
)

func (op CastOp) String() string {
	switch op {
	case SIToFP:
		return "sitofp"
	case FPToSI:
		return "fptosi"
	case ZExt:
		return "zext"
	case Bitcast:
		return "bitcast"
	case PtrCast:
		return "ptrcast"
	default:
		return "cast?"
	}
}

// Cast converts a value to another type.
type Cast struct {
	Dst string
	Op  CastOp
	X   Value
	To  Type
}

// Alloca allocates a private stack slot and produces its address.
type Alloca struct {
	Dst  string
	Elem Type
}

// Load loads a value of the given type from an address.
type Load struct {
	Dst  string
	Addr Value
	Type Type
}

// Store stores a value to an address.
type Store struct {
	Addr Value
	Val  Value
}

// Ret returns from the function with an optional value.
type Ret struct{ Val *Value }

func (i *Call) Result() string   { return i.Dst }
func (i *FBin) Result() string   { return i.Dst }
func (i *IBin) Result() string   { return i.Dst }
func (i *Cast) Result() string   { return i.Dst }
func (i *Alloca) Result() string { return i.Dst }
func (i *Load) Result() string   { return i.Dst }
func (i *Store) Result() string  { return "" }
func (i *Ret) Result() string    { return "" }

func (i *Call) Operands() []*Value {
	ops := make([]*Value, len(i.Args))
	for k := range i.Args {
		ops[k] = &i.Args[k]
	}
	return ops
}
func (i *FBin) Operands() []*Value { return []*Value{&i.X, &i.Y} }
func (i *IBin) Operands() []*Value { return []*Value{&i.X, &i.Y} }
func (i *Cast) Operands() []*Value { return []*Value{&i.X} }
func (i *Alloca) Operands() []*Value {
	return nil
}
func (i *Load) Operands() []*Value  { return []*Value{&i.Addr} }
func (i *Store) Operands() []*Value { return []*Value{&i.Addr, &i.Val} }
func (i *Ret) Operands() []*Value {
	if i.Val == nil {
		return nil
	}
	return []*Value{i.Val}
}

// ResultType returns the address type produced by the alloca.
func (i *Alloca) ResultType() Type { return Pointer(i.Elem, SpacePrivate) }

func typedOperand(v Value) string {
	return v.Type.String() + " " + v.String()
}

func (i *Call) String() string {
	var b strings.Builder
	if i.Dst != "" {
		fmt.Fprintf(&b, "%s = ", i.Dst)
	}
	kw := "call"
	if i.Intrinsic {
		kw = "call.intr"
	}
	fmt.Fprintf(&b, "%s %s %s(", kw, i.Ret, i.Callee)
	for k, a := range i.Args {
		if k > 0 {
			b.WriteString(", ")
		}
		b.WriteString(typedOperand(a))
	}
	b.WriteString(")")
	if !i.FMF.None() {
		fmt.Fprintf(&b, " fmf(%s)", i.FMF)
	}
	if s := i.Attrs.String(); s != "" {
		fmt.Fprintf(&b, " attrs(%s)", s)
	}
	if i.Ulps > 0 {
		fmt.Fprintf(&b, " ulps(%g)", i.Ulps)
	}
	if i.Loc.IsValid() {
		fmt.Fprintf(&b, " loc(%s)", i.Loc)
	}
	return b.String()
}

func (i *FBin) String() string {
	s := fmt.Sprintf("%s = %s %s %s, %s", i.Dst, i.Op, i.Type, i.X, i.Y)
	if !i.FMF.None() {
		s += fmt.Sprintf(" fmf(%s)", i.FMF)
	}
	return s
}

func (i *IBin) String() string {
	return fmt.Sprintf("%s = %s %s %s, %s", i.Dst, i.Op, i.Type, i.X, i.Y)
}

func (i *Cast) String() string {
	return fmt.Sprintf("%s = %s %s to %s", i.Dst, i.Op, typedOperand(i.X), i.To)
}

func (i *Alloca) String() string {
	return fmt.Sprintf("%s = alloca %s", i.Dst, i.Elem)
}

func (i *Load) String() string {
	return fmt.Sprintf("%s = load %s, %s", i.Dst, i.Type, typedOperand(i.Addr))
}

func (i *Store) String() string {
	return fmt.Sprintf("store %s, %s", typedOperand(i.Val), typedOperand(i.Addr))
}

func (i *Ret) String() string {
	if i.Val == nil {
		return "ret"
	}
	return fmt.Sprintf("ret %s", typedOperand(*i.Val))
}
