package libcalls

import (
	"fmt"

	"github.com/lumen-lang/lumen/internal/builtins"
	"github.com/lumen-lang/lumen/internal/mir"
)

// foldPipe rewrites a read/write-pipe call whose trailing size and alignment
// operands are equal constants into the size-specialized entry point, which
// drops both operands and takes a packet pointer of the concrete width. Only
// calls into pure declarations are retargeted, so a user-supplied definition
// of the generic symbol keeps winning.
func (p *Pass) foldPipe(m *mir.Module, f *mir.Function, bb *mir.Block, idx int, ci *mir.Call, desc builtins.Desc) bool {
	if !p.pipesOK {
		return false
	}
	if !m.IsDeclaration(ci.Callee) {
		return false
	}
	nargs := len(ci.Args)
	if nargs != desc.ID.NumArgs() {
		return false
	}

	size, okS := ci.Args[nargs-2].IntLane(0)
	align, okA := ci.Args[nargs-1].IntLane(0)
	if !okS || !okA || size <= 0 || size != align {
		return false
	}

	// The packet pointer sits right before the size operand.
	ptrIdx := nargs - 3
	ptrArg := ci.Args[ptrIdx]
	if !ptrArg.Type.IsPointer() {
		return false
	}
	ptrTy := packetPointer(ptrArg.Type, size)

	newName := fmt.Sprintf("%s_%d", ci.Callee, size)
	params := make([]mir.Type, 0, nargs-2)
	for i := 0; i < nargs-2; i++ {
		if i == ptrIdx {
			params = append(params, ptrTy)
			continue
		}
		params = append(params, ci.Args[i].Type)
	}
	if !m.Declare(newName, mir.Signature{Params: params, Ret: ci.Ret}) {
		return false
	}

	if !ptrTy.Equal(ptrArg.Type) {
		c := mir.At(f, bb, idx)
		c.Loc = ci.Loc
		ptrArg = c.CastV(mir.PtrCast, ptrArg, ptrTy)
	}

	args := make([]mir.Value, 0, nargs-2)
	for i := 0; i < nargs-2; i++ {
		if i == ptrIdx {
			args = append(args, ptrArg)
			continue
		}
		args = append(args, ci.Args[i])
	}
	// Retargeting in place keeps the result name and the original call's
	// attribute set.
	ci.Callee = newName
	ci.Args = args
	return true
}

// packetPointer retypes the packet pointer to the integer type of the
// specialized packet width, keeping the address space. Widths without a MIR
// integer type keep the original pointer type.
func packetPointer(ptr mir.Type, size int64) mir.Type {
	var elem mir.Elem
	switch size {
	case 4:
		elem = mir.ElemI32
	case 8:
		elem = mir.ElemI64
	default:
		return ptr
	}
	return mir.Pointer(mir.Scalar(elem), ptr.AddrSpace)
}
