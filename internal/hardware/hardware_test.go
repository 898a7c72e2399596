package hardware

import (
	"errors"
	"testing"

	"altsignal/internal/model"
	"altsignal/internal/tag"
)

func inst(op string, args ...int) model.Instruction {
	out := model.Instruction{Op: op}
	copy(out.Args[:], args)
	return out
}

func tagged(op string, t tag.Tag) model.Instruction {
	return model.Instruction{Op: op, Tag: t}
}

func function(t tag.Tag, insts ...model.Instruction) model.Function {
	return model.Function{Tag: t, Instructions: insts}
}

func newTestHardware(t *testing.T, cfg Config, fns ...model.Function) *Hardware {
	t.Helper()
	h, err := New(cfg, DefaultInstLib(cfg))
	if err != nil {
		t.Fatalf("new hardware: %v", err)
	}
	h.Load(model.Genome{Functions: fns})
	return h
}

func globalConfig() Config {
	cfg := DefaultConfig()
	cfg.UseGlobalMemory = true
	return cfg
}

func runSignal(h *Hardware, t tag.Tag) {
	h.QueueSignal(t, nil)
	h.Run(256)
}

func TestConfigValidate(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("default config: %v", err)
	}
	cases := []func(*Config){
		func(c *Config) { c.MaxActiveThreads = 0 },
		func(c *Config) { c.MaxThreadCapacity = c.MaxActiveThreads - 1 },
		func(c *Config) { c.MaxCallDepth = 0 },
		func(c *Config) { c.MinBindThreshold = 1.5 },
		func(c *Config) { c.RegulationDecay = -1 },
		func(c *Config) { c.NumResponses = 0 },
	}
	for i, mutate := range cases {
		cfg := DefaultConfig()
		mutate(&cfg)
		if _, err := New(cfg, nil); !errors.Is(err, ErrInvalidConfig) {
			t.Fatalf("case %d: expected ErrInvalidConfig, got %v", i, err)
		}
	}
}

func TestDefaultInstLibOptionalInstructions(t *testing.T) {
	cfg := DefaultConfig()
	cfg.UseFuncRegulation = false
	cfg.NumResponses = 3
	lib := DefaultInstLib(cfg)
	if _, ok := lib.Lookup("Promote"); ok {
		t.Fatal("regulation instructions must be absent when disabled")
	}
	if _, ok := lib.Lookup("Commit"); ok {
		t.Fatal("global memory instructions must be absent when disabled")
	}
	if _, ok := lib.Lookup(ResponseOp(2)); !ok {
		t.Fatal("expected one response instruction per response id")
	}
	if _, ok := lib.Lookup(ResponseOp(3)); ok {
		t.Fatal("unexpected response instruction beyond NUM_SIGNAL_RESPONSES")
	}

	full := DefaultInstLib(globalConfig())
	for _, name := range []string{"Commit", "Pull", "Promote", "Demote", "SetRegulator", "SenseRegulator", "ClearRegulator"} {
		if _, ok := full.Lookup(name); !ok {
			t.Fatalf("expected %s in library", name)
		}
	}
}

func TestSignalDispatchAndResponse(t *testing.T) {
	h := newTestHardware(t, DefaultConfig(),
		function(tag.New(0), inst(ResponseOp(1))),
	)
	if !h.IsTerminal() {
		t.Fatal("fresh hardware must be terminal")
	}
	runSignal(h, tag.New(0))
	got, ok := h.Response()
	if !ok || got != 1 {
		t.Fatalf("expected response 1, got %d (%t)", got, ok)
	}
	if !h.IsTerminal() {
		t.Fatal("expected hardware to finish after the only thread returns")
	}
}

func TestDispatchTieBreaksToLowestIndex(t *testing.T) {
	h := newTestHardware(t, DefaultConfig(),
		function(tag.New(0xF0), inst("Nop")),
		function(tag.New(0x0F), inst("Nop")),
		function(tag.New(0x0F), inst("Nop")),
	)
	if fn, ok := h.Dispatch(tag.New(0x0F)); !ok || fn != 1 {
		t.Fatalf("expected function 1, got %d (%t)", fn, ok)
	}
	if fn, ok := h.Dispatch(tag.New(0xFF)); !ok || fn != 0 {
		t.Fatalf("expected three-way tie to resolve to function 0, got %d (%t)", fn, ok)
	}

	strict := DefaultConfig()
	strict.MinBindThreshold = 1
	h = newTestHardware(t, strict, function(tag.New(1), inst("Nop")))
	if _, ok := h.Dispatch(tag.New(0)); ok {
		t.Fatal("expected no binding below threshold")
	}
}

func TestDispatchUsesRegulationOnlyWhenEnabled(t *testing.T) {
	fns := []model.Function{
		function(tag.New(0), inst("Nop")),
		function(tag.New(1), inst("Nop")),
	}

	cfg := DefaultConfig()
	h := newTestHardware(t, cfg, fns...)
	h.SetRegulation(1, 1)
	if fn, _ := h.Dispatch(tag.New(0)); fn != 1 {
		t.Fatalf("expected promoted function 1 to win, got %d", fn)
	}

	cfg.UseFuncRegulation = false
	h = newTestHardware(t, cfg, fns...)
	h.SetRegulation(1, 8)
	if fn, _ := h.Dispatch(tag.New(0)); fn != 0 {
		t.Fatalf("expected raw match to decide without regulation, got %d", fn)
	}
	if got := h.Score(1, tag.New(0)); got != tag.Match(tag.New(0), tag.New(1)) {
		t.Fatalf("expected raw score, got %f", got)
	}
}

func TestSpawnedThreadRunsNextStep(t *testing.T) {
	h := newTestHardware(t, DefaultConfig(),
		function(tag.New(0), inst(ResponseOp(1))),
	)
	h.QueueSignal(tag.New(0), nil)
	h.Step()
	if h.ActiveCount() != 1 || h.Steps() != 1 {
		t.Fatalf("expected signal thread promoted after the first step, active=%d steps=%d", h.ActiveCount(), h.Steps())
	}
	if _, ok := h.Response(); ok {
		t.Fatal("signal thread must not execute in the step that dispatched it")
	}
	h.Step()
	if got, ok := h.Response(); !ok || got != 1 {
		t.Fatalf("expected response on the second step, got %d (%t)", got, ok)
	}
}

func TestThreadCapacityInvariants(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxActiveThreads = 4
	cfg.MaxThreadCapacity = 6
	self := tag.New(0)
	h := newTestHardware(t, cfg,
		function(self,
			inst("SetMem", 0, 1),
			inst("While", 0),
			tagged("Fork", self),
			inst("Close"),
		),
	)
	for i := 0; i < 10; i++ {
		h.QueueSignal(self, nil)
	}
	sawFull := false
	for step := 0; step < 64; step++ {
		h.Step()
		if h.ActiveCount() > cfg.MaxActiveThreads {
			t.Fatalf("step %d: active=%d exceeds max", step, h.ActiveCount())
		}
		if total := h.ActiveCount() + h.PendingCount(); total > cfg.MaxThreadCapacity {
			t.Fatalf("step %d: total=%d exceeds capacity", step, total)
		}
		if h.ActiveCount() == cfg.MaxActiveThreads && h.PendingCount() == cfg.MaxThreadCapacity-cfg.MaxActiveThreads {
			sawFull = true
		}
	}
	if !sawFull {
		t.Fatal("expected hardware to saturate thread capacity")
	}
}

func TestForkSpawnsPendingThread(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxActiveThreads = 1
	h := newTestHardware(t, cfg,
		function(tag.New(0), tagged("Fork", tag.New(0xFFFF)), inst("Nop"), inst("Nop")),
		function(tag.New(0xFFFF), inst(ResponseOp(1))),
	)
	h.QueueSignal(tag.New(0), nil)
	h.Step()
	h.Step()
	if h.ActiveCount() != 1 || h.PendingCount() != 1 || h.Steps() != 2 {
		t.Fatalf("expected forked thread to wait, active=%d pending=%d steps=%d", h.ActiveCount(), h.PendingCount(), h.Steps())
	}
	h.Run(16)
	if got, ok := h.Response(); !ok || got != 1 {
		t.Fatalf("expected forked thread to respond, got %d (%t)", got, ok)
	}
}

func TestIfSkipsPastClose(t *testing.T) {
	h := newTestHardware(t, DefaultConfig(),
		function(tag.New(0),
			inst("If", 0),
			inst(ResponseOp(1)),
			inst("Close"),
			inst(ResponseOp(0)),
		),
	)
	runSignal(h, tag.New(0))
	if got, _ := h.Response(); got != 0 {
		t.Fatalf("expected skipped block, got response %d", got)
	}

	h = newTestHardware(t, DefaultConfig(),
		function(tag.New(0),
			inst("Inc", 0),
			inst("If", 0),
			inst("Close"),
			inst(ResponseOp(1)),
		),
	)
	runSignal(h, tag.New(0))
	if got, ok := h.Response(); !ok || got != 1 {
		t.Fatalf("expected block entered and left, got %d (%t)", got, ok)
	}
}

func TestCountdownLoop(t *testing.T) {
	h := newTestHardware(t, globalConfig(),
		function(tag.New(0),
			inst("SetMem", 0, 3),
			inst("Countdown", 0),
			inst("Inc", 1),
			inst("Close"),
			inst("Commit", 1, 0),
		),
	)
	runSignal(h, tag.New(0))
	if got := h.GlobalMemory()[0]; got != 3 {
		t.Fatalf("expected three iterations, got %f", got)
	}
}

func TestWhileBreak(t *testing.T) {
	h := newTestHardware(t, globalConfig(),
		function(tag.New(0),
			inst("SetMem", 0, 1),
			inst("While", 0),
			inst("Inc", 1),
			inst("Break"),
			inst("Inc", 1),
			inst("Close"),
			inst("Commit", 1, 0),
		),
	)
	runSignal(h, tag.New(0))
	if got := h.GlobalMemory()[0]; got != 1 {
		t.Fatalf("expected break after one increment, got %f", got)
	}
}

func TestUnclosedLoopRepeatsAtEndOfFunction(t *testing.T) {
	h := newTestHardware(t, globalConfig(),
		function(tag.New(0),
			inst("SetMem", 0, 2),
			inst("Countdown", 0),
			inst("Inc", 1),
			inst("Commit", 1, 0),
		),
	)
	runSignal(h, tag.New(0))
	if got := h.GlobalMemory()[0]; got != 2 {
		t.Fatalf("expected loop to run twice, got %f", got)
	}
}

func TestCallCopiesMemoryAcrossFrames(t *testing.T) {
	h := newTestHardware(t, globalConfig(),
		function(tag.New(0),
			inst("SetMem", 2, 5),
			tagged("Call", tag.New(0xFFFF)),
			inst("Commit", 3, 0),
		),
		function(tag.New(0xFFFF),
			inst("Input", 2, 4),
			inst("Inc", 4),
			inst("Output", 4, 3),
			inst("Return"),
			inst("Inc", 4),
		),
	)
	runSignal(h, tag.New(0))
	if got := h.GlobalMemory()[0]; got != 6 {
		t.Fatalf("expected callee output in caller memory, got %f", got)
	}
}

func TestCallDepthIsBounded(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxCallDepth = 4
	self := tag.New(0)
	h := newTestHardware(t, cfg, function(self, tagged("Call", self)))
	h.QueueSignal(self, nil)
	for i := 0; i < 16; i++ {
		h.Step()
		for _, th := range h.ActiveThreads() {
			if th.Depth() > cfg.MaxCallDepth {
				t.Fatalf("call depth %d exceeds max", th.Depth())
			}
		}
	}
}

func TestArithmeticEdgeCases(t *testing.T) {
	h := newTestHardware(t, globalConfig(),
		function(tag.New(0),
			inst("SetMem", 0, 4),
			inst("SetMem", 2, 7),
			inst("Div", 0, 1, 2),
			inst("Mod", 0, 1, 2),
			inst("Commit", 2, 0),
			inst("SetMem", 17, 19),
			inst("Commit", 1, 1),
			inst("Bogus", 1),
		),
	)
	runSignal(h, tag.New(0))
	mem := h.GlobalMemory()
	if mem[0] != 7 {
		t.Fatalf("expected divide by zero to be a no-op, got %f", mem[0])
	}
	if mem[1] != 3 {
		t.Fatalf("expected wrapped args, got %f", mem[1])
	}
}

func TestRegulationInstructionsAndResets(t *testing.T) {
	target := tag.New(0xFFFF)
	h := newTestHardware(t, DefaultConfig(),
		function(tag.New(0), tagged("Promote", target)),
		function(target, inst("Nop")),
	)
	runSignal(h, tag.New(0))
	if h.Regulation(1) <= 0 {
		t.Fatalf("expected promoted regulation, got %f", h.Regulation(1))
	}
	h.ResetThreads()
	if h.Regulation(1) <= 0 {
		t.Fatal("thread reset must keep regulation")
	}
	if _, ok := h.Response(); ok {
		t.Fatal("thread reset must clear the response")
	}
	h.Reset()
	if h.Regulation(1) != 0 {
		t.Fatal("full reset must clear regulation")
	}
}

func TestGlobalMemoryPersistsAcrossThreadReset(t *testing.T) {
	h := newTestHardware(t, globalConfig(),
		function(tag.New(0), inst("Pull", 0, 1), inst("Inc", 1), inst("Commit", 1, 0)),
	)
	runSignal(h, tag.New(0))
	h.ResetThreads()
	runSignal(h, tag.New(0))
	if got := h.GlobalMemory()[0]; got != 2 {
		t.Fatalf("expected global memory to accumulate, got %f", got)
	}
}

func TestRegulationReachesDemotedFunction(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RegulationDecay = 0
	target := tag.New(0xFFFF)
	h := newTestHardware(t, cfg,
		function(tag.New(0),
			tagged("Demote", target),
			tagged("ClearRegulator", target),
			tagged("Demote", target),
			tagged("Promote", target),
		),
		function(target, inst("Nop")),
	)
	runSignal(h, tag.New(0))
	if got := h.Regulation(1); got != 0 {
		t.Fatalf("expected clear and promote to undo demotion, got %f", got)
	}

	h.SetRegulation(1, -cfg.RegulationStep)
	if _, ok := h.Dispatch(target); ok {
		t.Fatal("expected demoted function to fall below the dispatch threshold")
	}
	if got := h.Score(1, target); got >= cfg.MinBindThreshold {
		t.Fatalf("expected regulated score below threshold, got %f", got)
	}
	if fn, ok := h.Bind(target); !ok || fn != 1 {
		t.Fatalf("expected raw binding to find function 1, got %d (%t)", fn, ok)
	}
}
