package hardware

// Memory is a sparse register file addressed by wrapped instruction args.
type Memory map[int]float64

func (m Memory) Get(addr int) float64 {
	return m[addr]
}

func (m Memory) Set(addr int, v float64) {
	m[addr] = v
}

func (m Memory) Clone() Memory {
	out := make(Memory, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

type blockKind int

const (
	blockBasic blockKind = iota
	blockLoop
)

type block struct {
	kind  blockKind
	begin int
	end   int
}

// Frame is one call stack entry.
type Frame struct {
	Function int
	IP       int
	Local    Memory
	Input    Memory
	Output   Memory
	blocks   []block
}

func newFrame(fn int, input Memory) *Frame {
	if input == nil {
		input = Memory{}
	}
	return &Frame{
		Function: fn,
		Local:    Memory{},
		Input:    input,
		Output:   Memory{},
	}
}

func (f *Frame) pushBlock(b block) {
	f.blocks = append(f.blocks, b)
}

func (f *Frame) popBlock() (block, bool) {
	if len(f.blocks) == 0 {
		return block{}, false
	}
	b := f.blocks[len(f.blocks)-1]
	f.blocks = f.blocks[:len(f.blocks)-1]
	return b, true
}

func (f *Frame) topBlock() (block, bool) {
	if len(f.blocks) == 0 {
		return block{}, false
	}
	return f.blocks[len(f.blocks)-1], true
}

// Thread is an execution context with its own call stack.
type Thread struct {
	ID     int
	frames []*Frame
	dead   bool
}

func (t *Thread) Depth() int {
	return len(t.frames)
}

func (t *Thread) Dead() bool {
	return t.dead
}

// Frame returns the innermost frame or nil when the stack is empty.
func (t *Thread) Frame() *Frame {
	if len(t.frames) == 0 {
		return nil
	}
	return t.frames[len(t.frames)-1]
}

func (t *Thread) push(f *Frame) {
	t.frames = append(t.frames, f)
}

// popFrame removes the innermost frame, copying its output memory into the
// caller's local memory. The thread dies when no frames remain.
func (t *Thread) popFrame() {
	if len(t.frames) == 0 {
		t.dead = true
		return
	}
	done := t.frames[len(t.frames)-1]
	t.frames = t.frames[:len(t.frames)-1]
	if len(t.frames) == 0 {
		t.dead = true
		return
	}
	caller := t.frames[len(t.frames)-1]
	for addr, v := range done.Output {
		caller.Local[addr] = v
	}
}
