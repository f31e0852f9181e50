package verifier

import (
	"github.com/tliron/commonlog"

	"github.com/chazu/bcverify/bytecode"
)

// subroutineInfo tracks one jsr target across the run.
type subroutineInfo struct {
	target bytecode.BlockID

	linked    bool
	enclosing bytecode.BlockID // subroutine active at the call sites, NoBlock at top level

	returnBlock bytecode.BlockID // block ending in this subroutine's ret
	returnFrame *Frame           // frame at the ret
	restored    localSet         // locals the ret may overwrite at call sites
	modified    localSet         // locals written anywhere in the body

	callSites []bytecode.BlockID // return-to blocks, in discovery order
}

func (info *subroutineInfo) returned() bool {
	return info.returnFrame != nil
}

func (v *Verifier) subroutine(target bytecode.BlockID) *subroutineInfo {
	if info, ok := v.subs[target]; ok {
		return info
	}
	info := &subroutineInfo{
		target:      target,
		enclosing:   bytecode.NoBlock,
		returnBlock: bytecode.NoBlock,
		modified:    newLocalSet(v.method.MaxLocals),
	}
	v.subs[target] = info
	return info
}

// recordModified folds the locals written by f into its subroutine.
func (v *Verifier) recordModified(f *Frame) {
	if f.sub != nil {
		v.subroutine(f.sub.target).modified.union(f.sub.modified)
	}
}

// simulateJsr handles a block ending in jsr. Successors are the
// subroutine entry and the block control returns to.
func (v *Verifier) simulateJsr(b *bytecode.Block, f *Frame) error {
	target, next := b.Successors[0], b.Successors[1]
	if target == bytecode.NoBlock || next == bytecode.NoBlock {
		return structuralErrorf("jsr with a missing target or return block")
	}

	for cur := f.Subroutine(); cur != bytecode.NoBlock; cur = v.subroutine(cur).enclosing {
		if cur == target {
			return structuralErrorf("recursive call to subroutine %s", target)
		}
	}

	info := v.subroutine(target)
	enclosing := f.Subroutine()
	if !info.linked {
		info.linked = true
		info.enclosing = enclosing
	} else if info.enclosing != enclosing {
		return structuralErrorf("subroutine %s called from both %s and %s", target, info.enclosing, enclosing)
	}
	known := false
	for _, cs := range info.callSites {
		if cs == next {
			known = true
			break
		}
	}
	if !known {
		info.callSites = append(info.callSites, next)
	}
	v.recordModified(f)
	v.callFrames[next] = f.Clone()

	callee := f.Clone()
	callee.sub = &subroutineContext{target: target, modified: newLocalSet(len(f.locals))}
	if err := callee.Push(ReturnAddress(target)); err != nil {
		return err
	}
	if err := v.mergeInto(target, callee); err != nil {
		return err
	}

	if info.returned() {
		return v.splice(info, next)
	}
	return nil
}

// simulateRet handles a block ending in ret. The return address names the
// subroutine being left, which may enclose the current one; locals
// modified at every level passed through may change at the call sites.
func (v *Verifier) simulateRet(b *bytecode.Block, f *Frame, ins *bytecode.Instruction) error {
	i := ins.LocalIndex()
	ra, err := f.Local(i)
	if err != nil {
		return err
	}
	if ra.kind != KindReturnAddress {
		return typeErrorf("ret through local %d holding %s", i, ra)
	}
	if f.sub == nil {
		return structuralErrorf("ret outside a subroutine")
	}
	target := ra.Target()

	restored := f.sub.modified.clone()
	cur := f.sub.target
	for cur != target {
		info := v.subroutine(cur)
		restored.union(info.modified)
		if info.enclosing == bytecode.NoBlock {
			return structuralErrorf("return address for %s does not match any enclosing subroutine", target)
		}
		cur = info.enclosing
	}
	info := v.subroutine(target)
	restored.union(info.modified)

	if info.returnBlock == bytecode.NoBlock {
		info.returnBlock = b.ID
	} else if info.returnBlock != b.ID {
		return structuralErrorf("subroutine %s returns from both %s and %s", target, info.returnBlock, b.ID)
	}
	info.returnFrame = f.Clone()
	info.restored = restored

	if v.log.AllowLevel(commonlog.Debug) {
		v.log.Debugf("subroutine %s returns from %s restoring locals %s", target, b.ID, formatInts(restored.members()))
	}
	for _, next := range info.callSites {
		if err := v.splice(info, next); err != nil {
			return err
		}
	}
	return nil
}

// splice builds the frame after a jsr from the caller's frame before the
// call and the subroutine's return frame, and merges it into next.
func (v *Verifier) splice(info *subroutineInfo, next bytecode.BlockID) error {
	caller := v.callFrames[next]
	if caller == nil {
		return structuralErrorf("no call frame recorded for return to %s", next)
	}
	ret := info.returnFrame
	out := caller.Clone()
	out.stack = append(out.stack[:0], ret.stack...)
	for _, i := range info.restored.members() {
		if i < len(out.locals) {
			out.locals[i] = ret.locals[i]
			out.touch(i)
		}
	}
	out.repairPairs()
	return v.mergeInto(next, out)
}
