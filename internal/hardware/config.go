package hardware

import (
	"errors"
	"fmt"
)

// ArgRange bounds instruction arguments; executed args wrap into [0, ArgRange).
const ArgRange = 16

var ErrInvalidConfig = errors.New("invalid hardware config")

type Config struct {
	MaxActiveThreads  int
	MaxThreadCapacity int
	MaxCallDepth      int
	MinBindThreshold  float64
	UseGlobalMemory   bool
	UseFuncRegulation bool
	RegulationStep    float64
	RegulationDecay   float64
	NumResponses      int
}

func DefaultConfig() Config {
	return Config{
		MaxActiveThreads:  32,
		MaxThreadCapacity: 64,
		MaxCallDepth:      128,
		MinBindThreshold:  0.5,
		UseGlobalMemory:   false,
		UseFuncRegulation: true,
		RegulationStep:    1.0,
		RegulationDecay:   0.01,
		NumResponses:      2,
	}
}

func (c Config) Validate() error {
	if c.MaxActiveThreads <= 0 {
		return fmt.Errorf("%w: MAX_ACTIVE_THREAD_CNT must be > 0", ErrInvalidConfig)
	}
	if c.MaxThreadCapacity < c.MaxActiveThreads {
		return fmt.Errorf("%w: MAX_THREAD_CAPACITY=%d < MAX_ACTIVE_THREAD_CNT=%d", ErrInvalidConfig, c.MaxThreadCapacity, c.MaxActiveThreads)
	}
	if c.MaxCallDepth <= 0 {
		return fmt.Errorf("%w: MAX_CALL_DEPTH must be > 0", ErrInvalidConfig)
	}
	if c.MinBindThreshold < 0 || c.MinBindThreshold > 1 {
		return fmt.Errorf("%w: MIN_BIND_THRESH must be in [0, 1]", ErrInvalidConfig)
	}
	if c.RegulationStep < 0 || c.RegulationDecay < 0 {
		return fmt.Errorf("%w: regulation step and decay must be >= 0", ErrInvalidConfig)
	}
	if c.NumResponses <= 0 {
		return fmt.Errorf("%w: NUM_SIGNAL_RESPONSES must be > 0", ErrInvalidConfig)
	}
	return nil
}
