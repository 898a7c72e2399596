package genotype

import (
	"errors"
	"math/rand"
	"testing"

	"altsignal/internal/model"
	"altsignal/internal/tag"
)

func testGenerator() Generator {
	return Generator{Ops: []string{"Inc", "Dec", "Nop"}, ArgRange: 16}
}

func TestBoundsValidate(t *testing.T) {
	if err := (Bounds{MinFuncCount: 0, MaxFuncCount: 32, MinFuncInstCount: 0, MaxFuncInstCount: 128}).Validate(); err != nil {
		t.Fatalf("expected valid bounds: %v", err)
	}
	err := Bounds{MinFuncCount: 4, MaxFuncCount: 2, MaxFuncInstCount: 1}.Validate()
	if !errors.Is(err, ErrInvalidBounds) {
		t.Fatalf("expected ErrInvalidBounds, got %v", err)
	}
	err = Bounds{MaxFuncCount: 2, MinFuncInstCount: 3, MaxFuncInstCount: 1}.Validate()
	if !errors.Is(err, ErrInvalidBounds) {
		t.Fatalf("expected ErrInvalidBounds for instruction bounds, got %v", err)
	}
	if _, err := NewStore(&model.Genome{}, Bounds{MinFuncCount: -1}); !errors.Is(err, ErrInvalidBounds) {
		t.Fatalf("expected store construction to reject negative bounds, got %v", err)
	}
}

func TestStoreFunctionBounds(t *testing.T) {
	genome := model.Genome{Functions: []model.Function{
		{Tag: tag.New(1), Instructions: []model.Instruction{{Op: "Inc"}}},
	}}
	store, err := NewStore(&genome, Bounds{MinFuncCount: 1, MaxFuncCount: 2, MinFuncInstCount: 1, MaxFuncInstCount: 3})
	if err != nil {
		t.Fatalf("new store: %v", err)
	}

	if store.RemoveFunction(0) {
		t.Fatal("remove below MIN_FUNC_CNT must be a no-op")
	}
	if store.InsertFunction(1, model.Function{}) {
		t.Fatal("insert of a function below MIN_FUNC_INST_CNT must be a no-op")
	}
	if !store.InsertFunction(0, model.Function{Tag: tag.New(2), Instructions: []model.Instruction{{Op: "Dec"}}}) {
		t.Fatal("expected insert to succeed")
	}
	if store.FunctionCount() != 2 || genome.Functions[0].Tag != tag.New(2) {
		t.Fatalf("unexpected functions after insert: %+v", genome.Functions)
	}
	if store.InsertFunction(2, model.Function{Instructions: []model.Instruction{{Op: "Nop"}}}) {
		t.Fatal("insert above MAX_FUNC_CNT must be a no-op")
	}
	if !store.RemoveFunction(0) || store.FunctionCount() != 1 || genome.Functions[0].Tag != tag.New(1) {
		t.Fatalf("unexpected functions after remove: %+v", genome.Functions)
	}
	if store.RemoveFunction(5) {
		t.Fatal("remove of missing index must be a no-op")
	}
}

func TestStoreInstructionBounds(t *testing.T) {
	genome := model.Genome{Functions: []model.Function{
		{Instructions: []model.Instruction{{Op: "Inc"}, {Op: "Dec"}}},
	}}
	store, err := NewStore(&genome, Bounds{MaxFuncCount: 1, MinFuncInstCount: 1, MaxFuncInstCount: 3})
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	if !store.InsertInstruction(0, 1, model.Instruction{Op: "Nop"}) {
		t.Fatal("expected insert to succeed")
	}
	if got := genome.Functions[0].Instructions[1].Op; got != "Nop" {
		t.Fatalf("expected Nop at position 1, got %s", got)
	}
	if store.InsertInstruction(0, 0, model.Instruction{Op: "Nop"}) {
		t.Fatal("insert above MAX_FUNC_INST_CNT must be a no-op")
	}
	if store.InsertInstruction(1, 0, model.Instruction{Op: "Nop"}) {
		t.Fatal("insert into missing function must be a no-op")
	}
	if store.RemoveInstructions(0, 0, 3) {
		t.Fatal("remove below MIN_FUNC_INST_CNT must be a no-op")
	}
	if !store.RemoveInstructions(0, 0, 2) || store.InstructionCount(0) != 1 {
		t.Fatalf("expected two instructions removed, got %d left", store.InstructionCount(0))
	}
	if genome.Functions[0].Instructions[0].Op != "Dec" {
		t.Fatalf("unexpected remaining instruction: %+v", genome.Functions[0].Instructions)
	}
	if store.RemoveInstruction(0, 0) {
		t.Fatal("remove below MIN_FUNC_INST_CNT must be a no-op")
	}
	if !store.ReplaceInstruction(0, 0, model.Instruction{Op: "Inc"}) || genome.Functions[0].Instructions[0].Op != "Inc" {
		t.Fatal("expected replace to succeed")
	}
	if store.ReplaceInstruction(0, 4, model.Instruction{Op: "Inc"}) {
		t.Fatal("replace out of range must be a no-op")
	}
}

func TestRandomGenomeWithinBounds(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	bounds := Bounds{MinFuncCount: 1, MaxFuncCount: 4, MinFuncInstCount: 2, MaxFuncInstCount: 6}
	gen := testGenerator()
	for i := 0; i < 50; i++ {
		genome, err := gen.RandomGenome(rng, bounds, "g")
		if err != nil {
			t.Fatalf("random genome: %v", err)
		}
		if !bounds.Contains(genome) {
			t.Fatalf("genome outside bounds: functions=%d", len(genome.Functions))
		}
		for _, fn := range genome.Functions {
			for _, inst := range fn.Instructions {
				for _, arg := range inst.Args {
					if arg < 0 || arg >= gen.ArgRange {
						t.Fatalf("arg out of range: %d", arg)
					}
				}
			}
		}
	}
	if _, err := gen.RandomGenome(rng, Bounds{MinFuncCount: 3, MaxFuncCount: 1}, "bad"); !errors.Is(err, ErrInvalidBounds) {
		t.Fatalf("expected invalid bounds error, got %v", err)
	}
}

func TestRandomGenomeDeterministicWithSeed(t *testing.T) {
	bounds := Bounds{MinFuncCount: 1, MaxFuncCount: 8, MinFuncInstCount: 1, MaxFuncInstCount: 16}
	a, err := testGenerator().RandomGenome(rand.New(rand.NewSource(9)), bounds, "a")
	if err != nil {
		t.Fatalf("random genome a: %v", err)
	}
	b, err := testGenerator().RandomGenome(rand.New(rand.NewSource(9)), bounds, "a")
	if err != nil {
		t.Fatalf("random genome b: %v", err)
	}
	if ComputeGenomeSignature(a).Fingerprint != ComputeGenomeSignature(b).Fingerprint {
		t.Fatal("expected identical genomes for equal seeds")
	}
}

func TestWeightedGeneratorOnlyDrawsPositiveWeights(t *testing.T) {
	gen := Generator{Ops: []string{"Inc", "Dec", "Nop"}, Weights: []float64{0, 1, 0}, ArgRange: 4}
	if err := gen.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	rng := rand.New(rand.NewSource(2))
	for i := 0; i < 100; i++ {
		if op := gen.RandomOp(rng); op != "Dec" {
			t.Fatalf("expected only Dec, got %s", op)
		}
	}
	if err := (Generator{Ops: []string{"Inc"}, Weights: []float64{1, 2}, ArgRange: 1}).Validate(); err == nil {
		t.Fatal("expected weight length mismatch error")
	}
}

func TestCloneGenomeDeepCopy(t *testing.T) {
	in := model.Genome{ID: "g1", Functions: []model.Function{{Instructions: []model.Instruction{{Op: "Inc"}}}}}
	out := CloneGenomeWithID(in, "g2")
	out.Functions[0].Instructions[0].Op = "Dec"
	if in.Functions[0].Instructions[0].Op != "Inc" {
		t.Fatal("expected original instruction slice to remain unchanged")
	}
	if out.ID != "g2" || in.ID != "g1" {
		t.Fatalf("unexpected ids: in=%s out=%s", in.ID, out.ID)
	}
}

func TestGenomeSignatureIgnoresID(t *testing.T) {
	a := model.Genome{ID: "a", Functions: []model.Function{{Tag: tag.New(3), Instructions: []model.Instruction{{Op: "Inc", Args: [3]int{1, 2, 3}}}}}}
	b := CloneGenomeWithID(a, "b")
	if ComputeGenomeSignature(a).Fingerprint != ComputeGenomeSignature(b).Fingerprint {
		t.Fatal("expected equal fingerprints for equal programs")
	}
	b.Functions[0].Instructions[0].Args[2] = 4
	sig := ComputeGenomeSignature(b)
	if sig.Fingerprint == ComputeGenomeSignature(a).Fingerprint {
		t.Fatal("expected fingerprint to change with args")
	}
	if sig.Summary.TotalFunctions != 1 || sig.Summary.TotalInstructions != 1 || sig.Summary.OpDistribution["Inc"] != 1 {
		t.Fatalf("unexpected summary: %+v", sig.Summary)
	}
}
