package libcalls

import (
	"github.com/lumen-lang/lumen/internal/mir"
)

// Some library calls are thin wrappers around primitive intrinsics, but
// compiled conservatively. Retargeting the call keeps the call site's own
// fast-math flags in force on the primitive.

// shouldReplaceWithIntrinsic gates the substitution. Replacing a call with
// an intrinsic is an implicit inlining decision, so noinline call sites are
// left alone; f32 substitution is withheld in size-minimized functions and
// strict-fp functions unless the specific rule allows it.
func (p *Pass) shouldReplaceWithIntrinsic(f *mir.Function, ci *mir.Call, allowMinSizeF32, allowF64, allowStrictFP bool) bool {
	elem := ci.Ret.Elem
	isF32 := elem == mir.ElemF32

	// f64 intrinsics are not implemented for most operations.
	if !isF32 && elem != mir.ElemF16 && (!allowF64 || elem != mir.ElemF64) {
		return false
	}

	if ci.Attrs.NoInline {
		return false
	}

	if !allowStrictFP && (f.Attrs.StrictFP || ci.Attrs.StrictFP) {
		return false
	}

	if isF32 && !allowMinSizeF32 && f.Attrs.MinSize {
		return false
	}
	return true
}

// tryIntrinsic retargets the call in place to the overloaded intrinsic when
// the gates pass. The instruction itself survives, keeping its arguments,
// flags, and result name.
func (p *Pass) tryIntrinsic(f *mir.Function, ci *mir.Call, name string, allowMinSizeF32, allowF64, allowStrictFP bool) bool {
	if !p.shouldReplaceWithIntrinsic(f, ci, allowMinSizeF32, allowF64, allowStrictFP) {
		return false
	}
	ci.Intrinsic = true
	ci.Callee = name + "." + ci.Ret.String()
	return true
}
