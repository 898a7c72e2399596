package hardware

import (
	"math"

	"golang.org/x/exp/constraints"

	"altsignal/internal/model"
)

func wrap[T constraints.Integer](v, n T) T {
	if n <= 0 {
		return 0
	}
	v %= n
	if v < 0 {
		v += n
	}
	return v
}

func arg(inst model.Instruction, i int) int {
	return wrap(inst.Args[i], ArgRange)
}

func local(th *Thread) Memory {
	return th.Frame().Local
}

func truth(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func execInc(_ *Hardware, th *Thread, inst model.Instruction) {
	mem := local(th)
	a := arg(inst, 0)
	mem.Set(a, mem.Get(a)+1)
}

func execDec(_ *Hardware, th *Thread, inst model.Instruction) {
	mem := local(th)
	a := arg(inst, 0)
	mem.Set(a, mem.Get(a)-1)
}

func execNot(_ *Hardware, th *Thread, inst model.Instruction) {
	mem := local(th)
	a := arg(inst, 0)
	mem.Set(a, truth(mem.Get(a) == 0))
}

func binary(th *Thread, inst model.Instruction, op func(a, b float64) (float64, bool)) {
	mem := local(th)
	out, ok := op(mem.Get(arg(inst, 0)), mem.Get(arg(inst, 1)))
	if !ok {
		return
	}
	mem.Set(arg(inst, 2), out)
}

func execAdd(_ *Hardware, th *Thread, inst model.Instruction) {
	binary(th, inst, func(a, b float64) (float64, bool) { return a + b, true })
}

func execSub(_ *Hardware, th *Thread, inst model.Instruction) {
	binary(th, inst, func(a, b float64) (float64, bool) { return a - b, true })
}

func execMult(_ *Hardware, th *Thread, inst model.Instruction) {
	binary(th, inst, func(a, b float64) (float64, bool) { return a * b, true })
}

func execDiv(_ *Hardware, th *Thread, inst model.Instruction) {
	binary(th, inst, func(a, b float64) (float64, bool) {
		if b == 0 {
			return 0, false
		}
		return a / b, true
	})
}

// execMod uses integer remainder on truncated operands.
func execMod(_ *Hardware, th *Thread, inst model.Instruction) {
	binary(th, inst, func(a, b float64) (float64, bool) {
		ib := int64(b)
		if ib == 0 || math.IsNaN(a) || math.IsInf(a, 0) {
			return 0, false
		}
		return float64(int64(a) % ib), true
	})
}

func execTestEqu(_ *Hardware, th *Thread, inst model.Instruction) {
	binary(th, inst, func(a, b float64) (float64, bool) { return truth(a == b), true })
}

func execTestNEqu(_ *Hardware, th *Thread, inst model.Instruction) {
	binary(th, inst, func(a, b float64) (float64, bool) { return truth(a != b), true })
}

func execTestLess(_ *Hardware, th *Thread, inst model.Instruction) {
	binary(th, inst, func(a, b float64) (float64, bool) { return truth(a < b), true })
}

// openBlock enters a block starting at the instruction just executed, or
// skips past its matching Close when enter is false.
func openBlock(h *Hardware, th *Thread, kind blockKind, enter bool) {
	f := th.Frame()
	begin := f.IP - 1
	end := h.blockEnd(f.Function, begin)
	if !enter {
		f.IP = end + 1
		return
	}
	f.pushBlock(block{kind: kind, begin: begin, end: end})
}

func execIf(h *Hardware, th *Thread, inst model.Instruction) {
	openBlock(h, th, blockBasic, local(th).Get(arg(inst, 0)) != 0)
}

func execWhile(h *Hardware, th *Thread, inst model.Instruction) {
	openBlock(h, th, blockLoop, local(th).Get(arg(inst, 0)) != 0)
}

func execCountdown(h *Hardware, th *Thread, inst model.Instruction) {
	mem := local(th)
	a := arg(inst, 0)
	enter := mem.Get(a) > 0
	if enter {
		mem.Set(a, mem.Get(a)-1)
	}
	openBlock(h, th, blockLoop, enter)
}

// execClose ends the innermost block; a loop jumps back to its opener.
func execClose(_ *Hardware, th *Thread, _ model.Instruction) {
	f := th.Frame()
	b, ok := f.popBlock()
	if ok && b.kind == blockLoop {
		f.IP = b.begin
	}
}

func execBreak(_ *Hardware, th *Thread, _ model.Instruction) {
	f := th.Frame()
	for i := len(f.blocks) - 1; i >= 0; i-- {
		if f.blocks[i].kind != blockLoop {
			continue
		}
		f.IP = f.blocks[i].end + 1
		f.blocks = f.blocks[:i]
		return
	}
}

func execCall(h *Hardware, th *Thread, inst model.Instruction) {
	h.call(th, inst)
}

func execReturn(_ *Hardware, th *Thread, _ model.Instruction) {
	th.popFrame()
}

func execFork(h *Hardware, th *Thread, inst model.Instruction) {
	fn, ok := h.Dispatch(inst.Tag)
	if !ok {
		return
	}
	h.spawn(fn, local(th).Clone())
}

func execTerminate(_ *Hardware, th *Thread, _ model.Instruction) {
	th.dead = true
}

func execSetMem(_ *Hardware, th *Thread, inst model.Instruction) {
	local(th).Set(arg(inst, 0), float64(arg(inst, 1)))
}

func execCopyMem(_ *Hardware, th *Thread, inst model.Instruction) {
	mem := local(th)
	mem.Set(arg(inst, 1), mem.Get(arg(inst, 0)))
}

func execSwapMem(_ *Hardware, th *Thread, inst model.Instruction) {
	mem := local(th)
	a, b := arg(inst, 0), arg(inst, 1)
	va, vb := mem.Get(a), mem.Get(b)
	mem.Set(a, vb)
	mem.Set(b, va)
}

func execInput(_ *Hardware, th *Thread, inst model.Instruction) {
	f := th.Frame()
	f.Local.Set(arg(inst, 1), f.Input.Get(arg(inst, 0)))
}

func execOutput(_ *Hardware, th *Thread, inst model.Instruction) {
	f := th.Frame()
	f.Output.Set(arg(inst, 1), f.Local.Get(arg(inst, 0)))
}

func execNop(*Hardware, *Thread, model.Instruction) {}

func execCommit(h *Hardware, th *Thread, inst model.Instruction) {
	if !h.cfg.UseGlobalMemory {
		return
	}
	h.global.Set(arg(inst, 1), local(th).Get(arg(inst, 0)))
}

func execPull(h *Hardware, th *Thread, inst model.Instruction) {
	if !h.cfg.UseGlobalMemory {
		return
	}
	local(th).Set(arg(inst, 1), h.global.Get(arg(inst, 0)))
}

// regulate applies fn to the regulation slot of the function whose tag best
// matches the instruction tag. Targeting ignores current regulation.
func regulate(h *Hardware, inst model.Instruction, fn func(target int)) {
	if !h.cfg.UseFuncRegulation {
		return
	}
	target, ok := h.Bind(inst.Tag)
	if !ok {
		return
	}
	fn(target)
}

func execPromote(h *Hardware, _ *Thread, inst model.Instruction) {
	regulate(h, inst, func(target int) { h.regulation.Promote(target, h.cfg.RegulationStep) })
}

func execDemote(h *Hardware, _ *Thread, inst model.Instruction) {
	regulate(h, inst, func(target int) { h.regulation.Demote(target, h.cfg.RegulationStep) })
}

func execSetRegulator(h *Hardware, th *Thread, inst model.Instruction) {
	v := local(th).Get(arg(inst, 0))
	regulate(h, inst, func(target int) { h.regulation.Set(target, v) })
}

func execSenseRegulator(h *Hardware, th *Thread, inst model.Instruction) {
	mem := local(th)
	a := arg(inst, 0)
	regulate(h, inst, func(target int) { mem.Set(a, h.regulation.Value(target)) })
}

func execClearRegulator(h *Hardware, _ *Thread, inst model.Instruction) {
	regulate(h, inst, func(target int) { h.regulation.Clear(target) })
}

func responseExec(id int) ExecFunc {
	return func(h *Hardware, _ *Thread, _ model.Instruction) {
		h.respond(id)
	}
}
