package hardware

import (
	"fmt"

	"altsignal/internal/model"
	"altsignal/internal/regulation"
	"altsignal/internal/tag"
)

type compiledInstruction struct {
	def  Definition
	inst model.Instruction
}

type compiledFunction struct {
	tag   tag.Tag
	insts []compiledInstruction
}

type signal struct {
	tag   tag.Tag
	input Memory
}

// Hardware is a SignalGP virtual machine executing one genome. Threads are
// spawned pending by signals and Fork, promoted FIFO into the active set
// while it has room, and executed one instruction per step in creation
// order. Spawns beyond MaxThreadCapacity are dropped.
type Hardware struct {
	cfg        Config
	lib        *InstLib
	nop        Definition
	program    []compiledFunction
	candidates []tag.Candidate
	regulation *regulation.Table
	global     Memory

	signals      []signal
	active       []*Thread
	pending      []*Thread
	nextThreadID int

	response    int
	hasResponse bool
	steps       int
}

func New(cfg Config, lib *InstLib) (*Hardware, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if lib == nil {
		lib = DefaultInstLib(cfg)
	}
	nop, ok := lib.Lookup("Nop")
	if !ok {
		nop = Definition{Name: "Nop", Exec: execNop}
	}
	return &Hardware{
		cfg:        cfg,
		lib:        lib,
		nop:        nop,
		regulation: regulation.New(0, regulation.Config{DecayRate: cfg.RegulationDecay}),
		global:     Memory{},
	}, nil
}

func (h *Hardware) Config() Config {
	return h.cfg
}

// Load compiles genome against the instruction library and fully resets the
// hardware. Unknown op names execute as Nop.
func (h *Hardware) Load(genome model.Genome) {
	h.program = make([]compiledFunction, len(genome.Functions))
	h.candidates = make([]tag.Candidate, len(genome.Functions))
	for i, fn := range genome.Functions {
		compiled := compiledFunction{tag: fn.Tag, insts: make([]compiledInstruction, len(fn.Instructions))}
		for j, inst := range fn.Instructions {
			def, ok := h.lib.Lookup(inst.Op)
			if !ok {
				def = h.nop
			}
			compiled.insts[j] = compiledInstruction{def: def, inst: inst}
		}
		h.program[i] = compiled
		h.candidates[i] = tag.Candidate{Index: i, Tag: fn.Tag}
	}
	h.regulation.Resize(len(genome.Functions))
	h.Reset()
}

func (h *Hardware) FunctionCount() int {
	return len(h.program)
}

// QueueSignal schedules an event; it is dispatched at the start of the next
// step.
func (h *Hardware) QueueSignal(t tag.Tag, input Memory) {
	h.signals = append(h.signals, signal{tag: t, input: input.Clone()})
}

// Dispatch resolves t to the best matching function. Regulation scales raw
// match scores when enabled; scores below MinBindThreshold never bind.
func (h *Hardware) Dispatch(t tag.Tag) (int, bool) {
	idx, _, ok := tag.BestMatch(t, h.candidates, h.scoreFunc(), h.cfg.MinBindThreshold)
	return idx, ok
}

// Bind resolves t by raw tag match alone. Regulation instructions use it so
// a demoted function stays reachable by its own tag.
func (h *Hardware) Bind(t tag.Tag) (int, bool) {
	idx, _, ok := tag.BestMatch(t, h.candidates, nil, h.cfg.MinBindThreshold)
	return idx, ok
}

// Score reports the dispatch score of function fn for query t.
func (h *Hardware) Score(fn int, t tag.Tag) float64 {
	if fn < 0 || fn >= len(h.program) {
		return 0
	}
	raw := tag.Match(t, h.program[fn].tag)
	if score := h.scoreFunc(); score != nil {
		return score(fn, raw)
	}
	return raw
}

func (h *Hardware) scoreFunc() tag.ScoreFunc {
	if !h.cfg.UseFuncRegulation {
		return nil
	}
	return h.regulation.Adjust
}

// Step dispatches queued signals into pending threads, advances every active
// thread by one instruction in creation order, then promotes pending threads.
// A thread spawned during a step first executes in the following step.
func (h *Hardware) Step() {
	for _, sig := range h.signals {
		if fn, ok := h.Dispatch(sig.tag); ok {
			h.spawn(fn, sig.input)
		}
	}
	h.signals = h.signals[:0]

	for _, th := range h.active {
		h.stepThread(th)
	}
	h.removeDead()
	h.promotePending()

	if h.cfg.UseFuncRegulation {
		h.regulation.Decay()
	}
	h.steps++
}

// Run executes up to steps steps, stopping early once the hardware is
// terminal. It returns the number of steps executed.
func (h *Hardware) Run(steps int) int {
	executed := 0
	for executed < steps && !h.IsTerminal() {
		h.Step()
		executed++
	}
	return executed
}

// IsTerminal reports whether nothing is running, pending, or queued.
func (h *Hardware) IsTerminal() bool {
	return len(h.active) == 0 && len(h.pending) == 0 && len(h.signals) == 0
}

// ResetThreads clears threads, queued signals, and the response while
// keeping the loaded program, global memory, and regulation.
func (h *Hardware) ResetThreads() {
	h.signals = nil
	h.active = nil
	h.pending = nil
	h.nextThreadID = 0
	h.response = 0
	h.hasResponse = false
}

// Reset additionally clears global memory and regulation.
func (h *Hardware) Reset() {
	h.ResetThreads()
	h.global = Memory{}
	h.regulation.Reset()
	h.steps = 0
}

func (h *Hardware) ActiveCount() int {
	return len(h.active)
}

func (h *Hardware) PendingCount() int {
	return len(h.pending)
}

func (h *Hardware) Steps() int {
	return h.steps
}

// Response returns the last response emitted since the previous thread
// reset.
func (h *Hardware) Response() (int, bool) {
	return h.response, h.hasResponse
}

func (h *Hardware) Regulation(fn int) float64 {
	return h.regulation.Value(fn)
}

func (h *Hardware) SetRegulation(fn int, v float64) {
	h.regulation.Set(fn, v)
}

func (h *Hardware) GlobalMemory() Memory {
	return h.global.Clone()
}

// ActiveThreads returns the active threads in execution order.
func (h *Hardware) ActiveThreads() []*Thread {
	return append([]*Thread(nil), h.active...)
}

func (h *Hardware) String() string {
	return fmt.Sprintf("hardware(functions=%d active=%d pending=%d steps=%d)", len(h.program), len(h.active), len(h.pending), h.steps)
}

func (h *Hardware) spawn(fn int, input Memory) bool {
	if len(h.active)+len(h.pending) >= h.cfg.MaxThreadCapacity {
		return false
	}
	th := &Thread{ID: h.nextThreadID}
	h.nextThreadID++
	th.push(newFrame(fn, input.Clone()))
	h.pending = append(h.pending, th)
	return true
}

func (h *Hardware) promotePending() {
	n := 0
	for n < len(h.pending) && len(h.active) < h.cfg.MaxActiveThreads {
		h.active = append(h.active, h.pending[n])
		n++
	}
	if n > 0 {
		h.pending = append(h.pending[:0], h.pending[n:]...)
	}
}

func (h *Hardware) removeDead() {
	alive := h.active[:0]
	for _, th := range h.active {
		if !th.dead {
			alive = append(alive, th)
		}
	}
	for i := len(alive); i < len(h.active); i++ {
		h.active[i] = nil
	}
	h.active = alive
}

func (h *Hardware) stepThread(th *Thread) {
	if th.dead {
		return
	}
	f := th.Frame()
	if f == nil {
		th.dead = true
		return
	}
	insts := h.program[f.Function].insts
	if f.IP >= len(insts) {
		h.endOfFunction(th, f)
		return
	}
	ci := insts[f.IP]
	f.IP++
	ci.def.Exec(h, th, ci.inst)
}

// endOfFunction closes the innermost open loop by jumping back to its
// opener; without one the frame returns.
func (h *Hardware) endOfFunction(th *Thread, f *Frame) {
	for {
		b, ok := f.topBlock()
		if !ok {
			break
		}
		f.popBlock()
		if b.kind == blockLoop {
			f.IP = b.begin
			return
		}
	}
	th.popFrame()
}

func (h *Hardware) call(th *Thread, inst model.Instruction) {
	if th.Depth() >= h.cfg.MaxCallDepth {
		return
	}
	fn, ok := h.Dispatch(inst.Tag)
	if !ok {
		return
	}
	th.push(newFrame(fn, th.Frame().Local.Clone()))
}

func (h *Hardware) respond(id int) {
	h.response = id
	h.hasResponse = true
}

// blockEnd returns the index of the Close matching the block opener at
// begin, or the function length when it is never closed.
func (h *Hardware) blockEnd(fn, begin int) int {
	insts := h.program[fn].insts
	depth := 0
	for i := begin + 1; i < len(insts); i++ {
		def := insts[i].def
		switch {
		case def.BlockOpen:
			depth++
		case def.BlockClose:
			if depth == 0 {
				return i
			}
			depth--
		}
	}
	return len(insts)
}
