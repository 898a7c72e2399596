package scape

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"

	"altsignal/internal/hardware"
	"altsignal/internal/model"
	"altsignal/internal/tag"
)

const (
	SequenceCycle  = "cycle"
	SequenceRandom = "random"
)

var ErrInvalidEnvironment = errors.New("invalid environment config")

type EnvironmentConfig struct {
	NumSignalResponses int
	NumEnvCycles       int
	CPUTimePerEnvCycle int
	SignalTag          tag.Tag
	Sequence           string
	Seed               int64
}

func DefaultEnvironmentConfig() EnvironmentConfig {
	return EnvironmentConfig{
		NumSignalResponses: 2,
		NumEnvCycles:       8,
		CPUTimePerEnvCycle: 128,
		Sequence:           SequenceCycle,
	}
}

func (c EnvironmentConfig) Validate() error {
	if c.NumSignalResponses <= 0 {
		return fmt.Errorf("%w: NUM_SIGNAL_RESPONSES must be > 0", ErrInvalidEnvironment)
	}
	if c.NumEnvCycles < 0 {
		return fmt.Errorf("%w: NUM_ENV_CYCLES must be >= 0", ErrInvalidEnvironment)
	}
	if c.CPUTimePerEnvCycle < 0 {
		return fmt.Errorf("%w: CPU_TIME_PER_ENV_CYCLE must be >= 0", ErrInvalidEnvironment)
	}
	switch c.sequence() {
	case SequenceCycle, SequenceRandom:
	default:
		return fmt.Errorf("%w: unsupported signal sequence %q", ErrInvalidEnvironment, c.Sequence)
	}
	return nil
}

func (c EnvironmentConfig) sequence() string {
	seq := strings.ToLower(strings.TrimSpace(c.Sequence))
	if seq == "" {
		return SequenceCycle
	}
	return seq
}

// CorrectResponses lists the expected response of every cycle. The cycle
// sequence alternates k mod NUM_SIGNAL_RESPONSES; the random sequence is a
// pure function of Seed.
func (c EnvironmentConfig) CorrectResponses() []int {
	if c.NumEnvCycles <= 0 || c.NumSignalResponses <= 0 {
		return nil
	}
	out := make([]int, c.NumEnvCycles)
	if c.sequence() == SequenceRandom {
		rng := rand.New(rand.NewSource(c.Seed))
		for i := range out {
			out[i] = rng.Intn(c.NumSignalResponses)
		}
		return out
	}
	for i := range out {
		out[i] = i % c.NumSignalResponses
	}
	return out
}

// AltSignal delivers the same signal every cycle and scores whether the
// organism emits the expected response before the cycle's CPU budget runs out.
type AltSignal struct {
	Env      EnvironmentConfig
	Hardware hardware.Config
	Lib      *hardware.InstLib
}

func (AltSignal) Name() string {
	return "altsignal"
}

func (s AltSignal) MaxFitness() Fitness {
	return Fitness(s.Env.NumEnvCycles)
}

func (s AltSignal) hardwareConfig() hardware.Config {
	cfg := s.Hardware
	if cfg.NumResponses <= 0 {
		cfg.NumResponses = s.Env.NumSignalResponses
	}
	return cfg
}

// Evaluate runs NUM_ENV_CYCLES cycles on fresh hardware. Regulation and
// global memory carry across cycles of one evaluation; threads and the
// response do not.
func (s AltSignal) Evaluate(ctx context.Context, genome model.Genome) (Fitness, Trace, error) {
	if err := s.Env.Validate(); err != nil {
		return 0, nil, err
	}
	cfg := s.hardwareConfig()
	lib := s.Lib
	if lib == nil {
		lib = hardware.DefaultInstLib(cfg)
	}
	hw, err := hardware.New(cfg, lib)
	if err != nil {
		return 0, nil, err
	}
	hw.Load(genome)

	correct := s.Env.CorrectResponses()
	responses := make([]int, len(correct))
	steps := make([]int, len(correct))
	score := 0
	for cycle, want := range correct {
		if err := ctx.Err(); err != nil {
			return 0, nil, err
		}
		hw.QueueSignal(s.Env.SignalTag, nil)
		steps[cycle] = hw.Run(s.Env.CPUTimePerEnvCycle)
		got, ok := hw.Response()
		if !ok {
			got = -1
		}
		responses[cycle] = got
		if got == want {
			score++
		}
		hw.ResetThreads()
	}

	return Fitness(score), Trace{
		"correct":   correct,
		"responses": responses,
		"steps":     steps,
		"cycles":    len(correct),
		"score":     score,
	}, nil
}
