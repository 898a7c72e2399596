package genotype

import (
	"errors"
	"fmt"

	"altsignal/internal/model"
	"altsignal/internal/tag"
)

var ErrInvalidBounds = errors.New("invalid genome bounds")

// Bounds limits function count and per-function instruction count.
type Bounds struct {
	MinFuncCount     int `json:"min_func_count"`
	MaxFuncCount     int `json:"max_func_count"`
	MinFuncInstCount int `json:"min_func_inst_count"`
	MaxFuncInstCount int `json:"max_func_inst_count"`
}

func (b Bounds) Validate() error {
	if b.MinFuncCount < 0 || b.MinFuncInstCount < 0 {
		return fmt.Errorf("%w: minimums must be >= 0 (func=%d inst=%d)", ErrInvalidBounds, b.MinFuncCount, b.MinFuncInstCount)
	}
	if b.MinFuncCount > b.MaxFuncCount {
		return fmt.Errorf("%w: MIN_FUNC_CNT=%d > MAX_FUNC_CNT=%d", ErrInvalidBounds, b.MinFuncCount, b.MaxFuncCount)
	}
	if b.MinFuncInstCount > b.MaxFuncInstCount {
		return fmt.Errorf("%w: MIN_FUNC_INST_CNT=%d > MAX_FUNC_INST_CNT=%d", ErrInvalidBounds, b.MinFuncInstCount, b.MaxFuncInstCount)
	}
	return nil
}

// Contains reports whether genome satisfies every bound.
func (b Bounds) Contains(genome model.Genome) bool {
	if len(genome.Functions) < b.MinFuncCount || len(genome.Functions) > b.MaxFuncCount {
		return false
	}
	for _, fn := range genome.Functions {
		if len(fn.Instructions) < b.MinFuncInstCount || len(fn.Instructions) > b.MaxFuncInstCount {
			return false
		}
	}
	return true
}

// Store applies bounded structural edits to one genome in place. Any edit that
// would break a bound or address a missing index does nothing and reports
// false; callers are expected to check before drawing.
type Store struct {
	genome *model.Genome
	bounds Bounds
}

func NewStore(genome *model.Genome, bounds Bounds) (*Store, error) {
	if genome == nil {
		return nil, fmt.Errorf("genome is required")
	}
	if err := bounds.Validate(); err != nil {
		return nil, err
	}
	return &Store{genome: genome, bounds: bounds}, nil
}

func (s *Store) Genome() *model.Genome {
	return s.genome
}

func (s *Store) Bounds() Bounds {
	return s.bounds
}

func (s *Store) FunctionCount() int {
	return len(s.genome.Functions)
}

func (s *Store) InstructionCount(fn int) int {
	if !s.validFunction(fn) {
		return 0
	}
	return len(s.genome.Functions[fn].Instructions)
}

func (s *Store) Function(fn int) (model.Function, bool) {
	if !s.validFunction(fn) {
		return model.Function{}, false
	}
	return s.genome.Functions[fn], true
}

func (s *Store) CanInsertFunction() bool {
	return len(s.genome.Functions) < s.bounds.MaxFuncCount
}

func (s *Store) CanRemoveFunction() bool {
	return len(s.genome.Functions) > s.bounds.MinFuncCount
}

func (s *Store) CanInsertInstructions(fn, n int) bool {
	return s.validFunction(fn) && n >= 0 && len(s.genome.Functions[fn].Instructions)+n <= s.bounds.MaxFuncInstCount
}

func (s *Store) CanRemoveInstructions(fn, n int) bool {
	return s.validFunction(fn) && n >= 0 && len(s.genome.Functions[fn].Instructions)-n >= s.bounds.MinFuncInstCount
}

// InsertFunction places fn at pos; pos == FunctionCount appends. The
// function's instruction count must itself be within bounds.
func (s *Store) InsertFunction(pos int, fn model.Function) bool {
	if pos < 0 || pos > len(s.genome.Functions) || !s.CanInsertFunction() {
		return false
	}
	if len(fn.Instructions) < s.bounds.MinFuncInstCount || len(fn.Instructions) > s.bounds.MaxFuncInstCount {
		return false
	}
	fn.Instructions = append([]model.Instruction(nil), fn.Instructions...)
	functions := s.genome.Functions
	functions = append(functions, model.Function{})
	copy(functions[pos+1:], functions[pos:])
	functions[pos] = fn
	s.genome.Functions = functions
	return true
}

func (s *Store) RemoveFunction(idx int) bool {
	if !s.validFunction(idx) || !s.CanRemoveFunction() {
		return false
	}
	s.genome.Functions = append(s.genome.Functions[:idx], s.genome.Functions[idx+1:]...)
	return true
}

func (s *Store) SetFunctionTag(fn int, t tag.Tag) bool {
	if !s.validFunction(fn) {
		return false
	}
	s.genome.Functions[fn].Tag = t
	return true
}

func (s *Store) InsertInstruction(fn, pos int, inst model.Instruction) bool {
	return s.InsertInstructions(fn, pos, []model.Instruction{inst})
}

// InsertInstructions splices insts into function fn before pos.
func (s *Store) InsertInstructions(fn, pos int, insts []model.Instruction) bool {
	if !s.CanInsertInstructions(fn, len(insts)) {
		return false
	}
	current := s.genome.Functions[fn].Instructions
	if pos < 0 || pos > len(current) {
		return false
	}
	next := make([]model.Instruction, 0, len(current)+len(insts))
	next = append(next, current[:pos]...)
	next = append(next, insts...)
	next = append(next, current[pos:]...)
	s.genome.Functions[fn].Instructions = next
	return true
}

func (s *Store) RemoveInstruction(fn, pos int) bool {
	return s.RemoveInstructions(fn, pos, 1)
}

// RemoveInstructions deletes n instructions of function fn starting at pos.
func (s *Store) RemoveInstructions(fn, pos, n int) bool {
	if !s.CanRemoveInstructions(fn, n) {
		return false
	}
	current := s.genome.Functions[fn].Instructions
	if pos < 0 || pos+n > len(current) {
		return false
	}
	next := make([]model.Instruction, 0, len(current)-n)
	next = append(next, current[:pos]...)
	next = append(next, current[pos+n:]...)
	s.genome.Functions[fn].Instructions = next
	return true
}

func (s *Store) ReplaceInstruction(fn, pos int, inst model.Instruction) bool {
	if !s.validFunction(fn) || pos < 0 || pos >= len(s.genome.Functions[fn].Instructions) {
		return false
	}
	s.genome.Functions[fn].Instructions[pos] = inst
	return true
}

// SetInstructions swaps the whole instruction list of fn when its length is
// within bounds.
func (s *Store) SetInstructions(fn int, insts []model.Instruction) bool {
	if !s.validFunction(fn) {
		return false
	}
	if len(insts) < s.bounds.MinFuncInstCount || len(insts) > s.bounds.MaxFuncInstCount {
		return false
	}
	s.genome.Functions[fn].Instructions = insts
	return true
}

func (s *Store) validFunction(fn int) bool {
	return fn >= 0 && fn < len(s.genome.Functions)
}
