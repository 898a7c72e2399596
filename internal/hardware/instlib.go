package hardware

import (
	"fmt"
	"strconv"
	"strings"

	"altsignal/internal/model"
)

// ExecFunc runs one instruction for thread th.
type ExecFunc func(h *Hardware, th *Thread, inst model.Instruction)

type Definition struct {
	Name        string
	Args        int
	UsesTag     bool
	BlockOpen   bool
	BlockClose  bool
	Description string
	Exec        ExecFunc
}

// InstLib is an ordered, name-addressed instruction set.
type InstLib struct {
	defs   []Definition
	byName map[string]int
}

func NewInstLib() *InstLib {
	return &InstLib{byName: make(map[string]int)}
}

func (l *InstLib) Add(def Definition) error {
	if strings.TrimSpace(def.Name) == "" {
		return fmt.Errorf("instruction name is required")
	}
	if def.Exec == nil {
		return fmt.Errorf("instruction %s requires an exec func", def.Name)
	}
	if _, exists := l.byName[def.Name]; exists {
		return fmt.Errorf("instruction already registered: %s", def.Name)
	}
	l.byName[def.Name] = len(l.defs)
	l.defs = append(l.defs, def)
	return nil
}

func (l *InstLib) Lookup(name string) (Definition, bool) {
	idx, ok := l.byName[name]
	if !ok {
		return Definition{}, false
	}
	return l.defs[idx], true
}

func (l *InstLib) Len() int {
	return len(l.defs)
}

func (l *InstLib) Names() []string {
	names := make([]string, len(l.defs))
	for i, def := range l.defs {
		names[i] = def.Name
	}
	return names
}

// ResponseOp names the instruction that emits response id.
func ResponseOp(id int) string {
	return "Response-" + strconv.Itoa(id)
}

// DefaultInstLib builds the SignalGP instruction set for cfg. Global memory
// and regulation instructions are only present when enabled, and one
// response instruction exists per response id.
func DefaultInstLib(cfg Config) *InstLib {
	lib := NewInstLib()
	add := func(def Definition) {
		if err := lib.Add(def); err != nil {
			panic(err)
		}
	}

	add(Definition{Name: "Inc", Args: 1, Description: "local[A] = local[A] + 1", Exec: execInc})
	add(Definition{Name: "Dec", Args: 1, Description: "local[A] = local[A] - 1", Exec: execDec})
	add(Definition{Name: "Not", Args: 1, Description: "local[A] = !local[A]", Exec: execNot})
	add(Definition{Name: "Add", Args: 3, Description: "local[C] = local[A] + local[B]", Exec: execAdd})
	add(Definition{Name: "Sub", Args: 3, Description: "local[C] = local[A] - local[B]", Exec: execSub})
	add(Definition{Name: "Mult", Args: 3, Description: "local[C] = local[A] * local[B]", Exec: execMult})
	add(Definition{Name: "Div", Args: 3, Description: "local[C] = local[A] / local[B]", Exec: execDiv})
	add(Definition{Name: "Mod", Args: 3, Description: "local[C] = local[A] % local[B]", Exec: execMod})
	add(Definition{Name: "TestEqu", Args: 3, Description: "local[C] = local[A] == local[B]", Exec: execTestEqu})
	add(Definition{Name: "TestNEqu", Args: 3, Description: "local[C] = local[A] != local[B]", Exec: execTestNEqu})
	add(Definition{Name: "TestLess", Args: 3, Description: "local[C] = local[A] < local[B]", Exec: execTestLess})
	add(Definition{Name: "If", Args: 1, BlockOpen: true, Description: "enter block when local[A] != 0", Exec: execIf})
	add(Definition{Name: "While", Args: 1, BlockOpen: true, Description: "loop block while local[A] != 0", Exec: execWhile})
	add(Definition{Name: "Countdown", Args: 1, BlockOpen: true, Description: "loop block decrementing local[A] until 0", Exec: execCountdown})
	add(Definition{Name: "Close", BlockClose: true, Description: "close the innermost block", Exec: execClose})
	add(Definition{Name: "Break", Description: "leave the innermost loop block", Exec: execBreak})
	add(Definition{Name: "Call", UsesTag: true, Description: "call the best matching function", Exec: execCall})
	add(Definition{Name: "Return", Description: "return from the current call", Exec: execReturn})
	add(Definition{Name: "Fork", UsesTag: true, Description: "spawn a thread at the best matching function", Exec: execFork})
	add(Definition{Name: "Terminate", Description: "kill the current thread", Exec: execTerminate})
	add(Definition{Name: "SetMem", Args: 2, Description: "local[A] = B", Exec: execSetMem})
	add(Definition{Name: "CopyMem", Args: 2, Description: "local[B] = local[A]", Exec: execCopyMem})
	add(Definition{Name: "SwapMem", Args: 2, Description: "swap local[A] and local[B]", Exec: execSwapMem})
	add(Definition{Name: "Input", Args: 2, Description: "local[B] = input[A]", Exec: execInput})
	add(Definition{Name: "Output", Args: 2, Description: "output[B] = local[A]", Exec: execOutput})
	add(Definition{Name: "Nop", Description: "no operation", Exec: execNop})

	if cfg.UseGlobalMemory {
		add(Definition{Name: "Commit", Args: 2, Description: "global[B] = local[A]", Exec: execCommit})
		add(Definition{Name: "Pull", Args: 2, Description: "local[B] = global[A]", Exec: execPull})
	}
	if cfg.UseFuncRegulation {
		add(Definition{Name: "Promote", UsesTag: true, Description: "promote the best matching function", Exec: execPromote})
		add(Definition{Name: "Demote", UsesTag: true, Description: "demote the best matching function", Exec: execDemote})
		add(Definition{Name: "SetRegulator", Args: 1, UsesTag: true, Description: "set regulation of the best matching function to local[A]", Exec: execSetRegulator})
		add(Definition{Name: "SenseRegulator", Args: 1, UsesTag: true, Description: "local[A] = regulation of the best matching function", Exec: execSenseRegulator})
		add(Definition{Name: "ClearRegulator", UsesTag: true, Description: "reset regulation of the best matching function", Exec: execClearRegulator})
	}
	for id := 0; id < cfg.NumResponses; id++ {
		add(Definition{Name: ResponseOp(id), Description: "respond to the environment signal with " + strconv.Itoa(id), Exec: responseExec(id)})
	}
	return lib
}
