// Package libcalls simplifies device math-library calls in MIR: exact-value
// table folding, compile-time constant evaluation, algebraic rewrites of the
// power family, sine/cosine fusion, intrinsic substitution, pipe-call
// specialization, and retargeting to native approximate variants.
//
// Every fold that cannot prove itself safe, or cannot obtain a declaration
// it needs, leaves the call unchanged; that is a normal outcome, never an
// error. The passes run one function at a time with no shared mutable state
// and may be invoked in parallel across different functions.
package libcalls

import (
	semver "github.com/Masterminds/semver/v3"
	"github.com/samber/lo"

	"github.com/lumen-lang/lumen/internal/builtins"
	"github.com/lumen-lang/lumen/internal/mir"
)

// Options configures the passes. The struct is immutable once handed to New.
type Options struct {
	// UseNative lists short function names eligible for native substitution,
	// or the single entry "all".
	UseNative []string
	// UnsafeFPMath enables value-changing rewrites for every function; a
	// function-level unsafe-fp-math attribute enables them per function.
	UnsafeFPMath bool
	// LangVersion is the source language version, e.g. "2.0". Pipe builtins
	// only exist from 2.0 on, so pipe specialization is gated on it.
	// Empty means 2.0.
	LangVersion string
}

// pipeMinVersion is the first language version with pipe builtins.
var pipeMinVersion = mustConstraint(">= 2.0.0")

func mustConstraint(s string) *semver.Constraints {
	c, err := semver.NewConstraint(s)
	if err != nil {
		panic(err)
	}
	return c
}

// Pass rewrites the calls of one function at a time.
type Pass struct {
	opts      Options
	allNative bool
	pipesOK   bool

	// Per-function state, reset by beginFunction.
	unsafeMath bool
}

// New builds a pass from the given options.
func New(opts Options) *Pass {
	p := &Pass{opts: opts}
	p.allNative = lo.Contains(opts.UseNative, "all") ||
		(len(opts.UseNative) == 1 && opts.UseNative[0] == "")
	lang := opts.LangVersion
	if lang == "" {
		lang = "2.0"
	}
	if v, err := semver.NewVersion(lang); err == nil {
		p.pipesOK = pipeMinVersion.Check(v)
	}
	return p
}

func (p *Pass) beginFunction(f *mir.Function) {
	p.unsafeMath = p.opts.UnsafeFPMath || f.Attrs.UnsafeFPMath
}

// isUnsafeMath reports whether value-changing rewrites are permitted for
// this call: the function allows them, or the call itself is fully fast.
func (p *Pass) isUnsafeMath(ci *mir.Call) bool {
	return p.unsafeMath || ci.FMF.IsFast()
}

// canIncreasePrecisionOfConstantFold gates host-precision constant
// evaluation.
// TODO: narrow to an afn/contract-specific predicate instead of reusing the
// unsafe-math one.
func (p *Pass) canIncreasePrecisionOfConstantFold(ci *mir.Call) bool {
	return p.isUnsafeMath(ci)
}

func (p *Pass) useNativeFunc(name string) bool {
	return p.allNative || lo.Contains(p.opts.UseNative, name)
}

// Simplify runs the fold chain over every call of f. It reports whether the
// function changed.
func (p *Pass) Simplify(m *mir.Module, f *mir.Function) bool {
	p.beginFunction(f)
	return p.sweep(f, func(bb *mir.Block, idx int, ci *mir.Call) bool {
		return p.fold(m, f, bb, idx, ci)
	})
}

// UseNativeCalls retargets allow-listed plain calls to their native
// approximate variants. It reports whether the function changed.
func (p *Pass) UseNativeCalls(m *mir.Module, f *mir.Function) bool {
	if len(p.opts.UseNative) == 0 {
		return false
	}
	p.beginFunction(f)
	return p.sweep(f, func(bb *mir.Block, idx int, ci *mir.Call) bool {
		return p.useNative(m, f, bb, idx, ci)
	})
}

// sweep visits every call instruction once. The successor of the current
// call is captured before folding so that erasing the call, or inserting
// replacement instructions around it, cannot derail the walk.
func (p *Pass) sweep(f *mir.Function, visit func(*mir.Block, int, *mir.Call) bool) bool {
	changed := false
	for _, bb := range f.Blocks {
		for idx := 0; idx < len(bb.Instrs); {
			ci, ok := bb.Instrs[idx].(*mir.Call)
			if !ok {
				idx++
				continue
			}
			var follow mir.Instr
			if idx+1 < len(bb.Instrs) {
				follow = bb.Instrs[idx+1]
			}
			if visit(bb, idx, ci) {
				changed = true
			}
			idx = advance(bb, ci, follow, idx)
		}
	}
	return changed
}

func advance(bb *mir.Block, visited, follow mir.Instr, idx int) int {
	if i := bb.IndexOf(visited); i >= 0 {
		return i + 1
	}
	if follow != nil {
		if i := bb.IndexOf(follow); i >= 0 {
			return i
		}
	}
	return len(bb.Instrs)
}

// resolve turns a call into a library-function descriptor, or reports that
// the call is not a foldable library call.
func resolve(ci *mir.Call) (builtins.Desc, bool) {
	if ci.Intrinsic || ci.Attrs.NoBuiltin {
		return builtins.Desc{}, false
	}
	desc, ok := builtins.Parse(ci.Callee)
	if !ok {
		return builtins.Desc{}, false
	}
	if !desc.Compatible(callSignature(ci)) {
		return builtins.Desc{}, false
	}
	return desc, true
}

func callSignature(ci *mir.Call) mir.Signature {
	params := make([]mir.Type, len(ci.Args))
	for i, a := range ci.Args {
		params[i] = a.Type
	}
	return mir.Signature{Params: params, Ret: ci.Ret}
}

// fold applies the chain exact table -> constant evaluation -> per-identity
// rewrite to one call. It reports whether the call changed.
func (p *Pass) fold(m *mir.Module, f *mir.Function, bb *mir.Block, idx int, ci *mir.Call) bool {
	desc, ok := resolve(ci)
	if !ok {
		return false
	}

	if p.foldTable(f, bb, idx, ci, desc) {
		return true
	}

	if !ci.Ret.IsFloat() {
		if desc.ID.IsPipe() {
			return p.foldPipe(m, f, bb, idx, ci, desc)
		}
		return false
	}

	if p.canIncreasePrecisionOfConstantFold(ci) && p.evaluate(f, bb, idx, ci, desc) {
		return true
	}

	c := mir.At(f, bb, idx)
	c.FMF = ci.FMF
	c.Ulps = ci.Ulps
	c.Loc = ci.Loc

	switch desc.ID {
	case builtins.Exp:
		if ci.FMF.None() {
			return false
		}
		return p.tryIntrinsic(f, ci, "exp", ci.FMF.ApproxFunc(), false, false)
	case builtins.Exp2:
		if ci.FMF.None() {
			return false
		}
		return p.tryIntrinsic(f, ci, "exp2", ci.FMF.ApproxFunc(), false, false)
	case builtins.Log:
		if ci.FMF.None() {
			return false
		}
		return p.tryIntrinsic(f, ci, "log", ci.FMF.ApproxFunc(), false, false)
	case builtins.Log2:
		if ci.FMF.None() {
			return false
		}
		return p.tryIntrinsic(f, ci, "log2", ci.FMF.ApproxFunc(), false, false)
	case builtins.Log10:
		if ci.FMF.None() {
			return false
		}
		return p.tryIntrinsic(f, ci, "log10", ci.FMF.ApproxFunc(), false, false)
	case builtins.Fmin:
		return p.tryIntrinsic(f, ci, "minnum", true, true, false)
	case builtins.Fmax:
		return p.tryIntrinsic(f, ci, "maxnum", true, true, false)
	case builtins.Fma:
		return p.tryIntrinsic(f, ci, "fma", true, true, false)
	case builtins.Mad:
		return p.tryIntrinsic(f, ci, "fmuladd", true, true, false)
	case builtins.Fabs:
		return p.tryIntrinsic(f, ci, "fabs", true, true, true)
	case builtins.Copysign:
		return p.tryIntrinsic(f, ci, "copysign", true, true, true)
	case builtins.Floor:
		return p.tryIntrinsic(f, ci, "floor", true, true, false)
	case builtins.Ceil:
		return p.tryIntrinsic(f, ci, "ceil", true, true, false)
	case builtins.Trunc:
		return p.tryIntrinsic(f, ci, "trunc", true, true, false)
	case builtins.Rint:
		return p.tryIntrinsic(f, ci, "rint", true, true, false)
	case builtins.Round:
		return p.tryIntrinsic(f, ci, "round", true, true, false)
	case builtins.Ldexp:
		if !p.shouldReplaceWithIntrinsic(f, ci, true, true, false) {
			return false
		}
		// The exponent operand's type selects the overload.
		ci.Intrinsic = true
		ci.Callee = "ldexp." + ci.Ret.String() + "." + ci.Args[1].Type.String()
		return true
	case builtins.Pow, builtins.Powr, builtins.Pown:
		return p.foldPow(m, c, ci, desc)
	case builtins.Rootn:
		return p.foldRootn(m, c, ci, desc)
	case builtins.Sqrt:
		return p.foldSqrt(m, c, ci, desc)
	case builtins.Sin, builtins.Cos:
		return p.foldSinCos(m, f, ci, desc)
	default:
		return false
	}
}
