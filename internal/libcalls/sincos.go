package libcalls

import (
	"github.com/lumen-lang/lumen/internal/builtins"
	"github.com/lumen-lang/lumen/internal/mir"
)

// foldSinCos fuses a sin call and a cos call on the identical argument into
// one sincos call. The triggering call is ci; every other same-argument
// sin/cos/sincos call in the function joins the fusion, but only ci itself
// is erased. The others keep their instruction slot with no remaining uses
// so the in-progress sweep stays valid; dead-call cleanup is a separate
// concern.
func (p *Pass) foldSinCos(m *mir.Module, f *mir.Function, ci *mir.Call, desc builtins.Desc) bool {
	if desc.Native {
		return false
	}
	if desc.Elem != mir.ElemF32 && desc.Elem != mir.ElemF64 {
		return false
	}
	arg := ci.Args[0]

	// The cosine result goes through a private stack slot, so prefer the
	// private-space overload and fall back to the generic one.
	scDesc := desc.WithID(builtins.Sincos)
	scDesc.PtrSpace = mir.SpacePrivate
	sym, ok := scDesc.Declare(m)
	if !ok {
		scDesc.PtrSpace = mir.SpaceGeneric
		sym, ok = scDesc.Declare(m)
		if !ok {
			return false
		}
	}

	var sins, coss, combined []*mir.Call
	for _, bb := range f.Blocks {
		for _, in := range bb.Instrs {
			call, isCall := in.(*mir.Call)
			if !isCall || call.Intrinsic || call.Attrs.NoBuiltin || len(call.Args) == 0 {
				continue
			}
			if !call.Args[0].Identical(arg) {
				continue
			}
			d, known := builtins.Parse(call.Callee)
			if !known || d.Native || d.Elem != desc.Elem || d.Lanes != desc.Lanes {
				continue
			}
			switch d.ID {
			case builtins.Sin:
				sins = append(sins, call)
			case builtins.Cos:
				coss = append(coss, call)
			case builtins.Sincos:
				combined = append(combined, call)
			}
		}
	}
	if len(sins) == 0 || len(coss) == 0 {
		return false
	}

	// The fused call must be at least as conservative as every participant.
	fmf := mir.FMFFast
	ulps := ci.Ulps
	var locs []mir.SrcLoc
	for _, group := range [][]*mir.Call{sins, coss, combined} {
		for _, call := range group {
			fmf &= call.FMF
			ulps = mir.MergeUlps(ulps, call.Ulps)
			locs = append(locs, call.Loc)
		}
	}

	t := desc.ValueType()
	c := insertionPoint(f, arg)
	c.FMF = fmf
	c.Ulps = ulps
	c.Loc = mir.MergeLocs(locs)

	slot := c.AllocaEntry(t)
	addr := slot
	if scDesc.PtrSpace != mir.SpacePrivate {
		addr = c.CastV(mir.PtrCast, slot, mir.Pointer(t, scDesc.PtrSpace))
	}
	sinV := c.CallV(sym, t, "sincos", arg, addr)
	cosV := c.LoadV(t, slot)

	for _, call := range sins {
		f.ReplaceAllUses(call.Dst, sinV)
	}
	for _, call := range coss {
		f.ReplaceAllUses(call.Dst, cosV)
	}
	for _, call := range combined {
		// An existing sincos already stores its cosine through its own
		// pointer; only its direct (sine) result is rewired.
		f.ReplaceAllUses(call.Dst, sinV)
	}
	f.Erase(ci)
	return true
}

// insertionPoint returns a cursor right after the instruction producing v,
// so the fused call dominates every original use. Arguments that are not
// instruction results (parameters, constants) dominate everything already,
// so those insert at the top of the entry block, past its allocas.
func insertionPoint(f *mir.Function, v mir.Value) *mir.Cursor {
	if v.Kind == mir.ValRef {
		if bb, idx := f.FindDef(v.Ref); bb != nil {
			return mir.At(f, bb, idx+1)
		}
	}
	entry := f.Entry()
	idx := 0
	for idx < len(entry.Instrs) {
		if _, ok := entry.Instrs[idx].(*mir.Alloca); !ok {
			break
		}
		idx++
	}
	return mir.At(f, entry, idx)
}
