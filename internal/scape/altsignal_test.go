package scape

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"altsignal/internal/hardware"
	"altsignal/internal/model"
	"altsignal/internal/tag"
)

func op(name string, args ...int) model.Instruction {
	out := model.Instruction{Op: name}
	copy(out.Args[:], args)
	return out
}

func singleFunction(insts ...model.Instruction) model.Genome {
	return model.Genome{ID: "g", Functions: []model.Function{{Tag: tag.New(0), Instructions: insts}}}
}

func newAltSignal(responses int, globalMemory bool) AltSignal {
	env := DefaultEnvironmentConfig()
	env.NumSignalResponses = responses
	hw := hardware.DefaultConfig()
	hw.NumResponses = responses
	hw.UseGlobalMemory = globalMemory
	return AltSignal{Env: env, Hardware: hw}
}

func TestAltSignalSingleResponseAlwaysCorrect(t *testing.T) {
	s := newAltSignal(1, false)
	fitness, trace, err := s.Evaluate(context.Background(), singleFunction(op(hardware.ResponseOp(0))))
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if fitness != Fitness(s.Env.NumEnvCycles) || fitness != s.MaxFitness() {
		t.Fatalf("expected fitness %d, got %f", s.Env.NumEnvCycles, fitness)
	}
	if trace["cycles"] != s.Env.NumEnvCycles {
		t.Fatalf("unexpected trace: %+v", trace)
	}
}

func TestAltSignalConstantResponseScoresHalf(t *testing.T) {
	s := newAltSignal(2, false)
	fitness, trace, err := s.Evaluate(context.Background(), singleFunction(op(hardware.ResponseOp(0))))
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if fitness != 4 {
		t.Fatalf("expected 4 correct cycles, got %f", fitness)
	}
	want := []int{0, 1, 0, 1, 0, 1, 0, 1}
	if got := trace["correct"].([]int); !reflect.DeepEqual(got, want) {
		t.Fatalf("expected alternating sequence %v, got %v", want, got)
	}
}

func TestAltSignalGlobalMemoryToggleSolvesTask(t *testing.T) {
	s := newAltSignal(2, true)
	genome := singleFunction(
		op("Pull", 0, 1),
		op("Not", 1),
		op("Commit", 1, 0),
		op(hardware.ResponseOp(1)),
		op("If", 1),
		op(hardware.ResponseOp(0)),
		op("Close"),
	)
	fitness, trace, err := s.Evaluate(context.Background(), genome)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if fitness != s.MaxFitness() {
		t.Fatalf("expected solved task, got %f (trace=%+v)", fitness, trace)
	}
}

func TestAltSignalEmptyGenomeNeverResponds(t *testing.T) {
	s := newAltSignal(2, false)
	fitness, trace, err := s.Evaluate(context.Background(), model.Genome{})
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if fitness != 0 {
		t.Fatalf("expected zero fitness, got %f", fitness)
	}
	for _, r := range trace["responses"].([]int) {
		if r != -1 {
			t.Fatalf("expected no responses, got %v", trace["responses"])
		}
	}
}

func TestAltSignalEvaluateIsIdempotent(t *testing.T) {
	s := newAltSignal(2, false)
	other := tag.New(0xFFFF)
	genome := model.Genome{Functions: []model.Function{
		{Tag: tag.New(0), Instructions: []model.Instruction{{Op: "Promote", Tag: other}, op(hardware.ResponseOp(0)), {Op: "Call", Tag: other}}},
		{Tag: other, Instructions: []model.Instruction{op(hardware.ResponseOp(1)), {Op: "Demote", Tag: other}}},
	}}
	a, traceA, err := s.Evaluate(context.Background(), genome)
	if err != nil {
		t.Fatalf("evaluate a: %v", err)
	}
	b, traceB, err := s.Evaluate(context.Background(), genome)
	if err != nil {
		t.Fatalf("evaluate b: %v", err)
	}
	if a != b || !reflect.DeepEqual(traceA, traceB) {
		t.Fatalf("expected identical evaluations, got %f/%f", a, b)
	}
}

func TestRandomSequenceDeterministicWithSeed(t *testing.T) {
	env := DefaultEnvironmentConfig()
	env.Sequence = SequenceRandom
	env.NumSignalResponses = 3
	env.NumEnvCycles = 32
	env.Seed = 11
	a := env.CorrectResponses()
	b := env.CorrectResponses()
	if !reflect.DeepEqual(a, b) {
		t.Fatal("expected equal sequences for equal seeds")
	}
	for _, r := range a {
		if r < 0 || r >= env.NumSignalResponses {
			t.Fatalf("response out of range: %d", r)
		}
	}
}

func TestAltSignalValidationAndCancellation(t *testing.T) {
	s := newAltSignal(2, false)
	s.Env.Sequence = "zigzag"
	if _, _, err := s.Evaluate(context.Background(), model.Genome{}); !errors.Is(err, ErrInvalidEnvironment) {
		t.Fatalf("expected ErrInvalidEnvironment, got %v", err)
	}

	s = newAltSignal(2, false)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, _, err := s.Evaluate(ctx, model.Genome{}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context cancellation, got %v", err)
	}
}
