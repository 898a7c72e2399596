package regulation

import "math"

// MaxMagnitude bounds every regulation value to [-MaxMagnitude, MaxMagnitude].
const MaxMagnitude = 8.0

// Neutral is the baseline value decay pulls toward.
const Neutral = 0.0

type Config struct {
	// DecayRate is the absolute distance each value moves toward Neutral per
	// Decay call.
	DecayRate float64
}

// Table holds one regulation value per function index. A dispatch score is
// raw * exp(value): promotion multiplies the raw match up, demotion down, and
// a neutral value leaves it unchanged.
type Table struct {
	cfg    Config
	values []float64
}

func New(n int, cfg Config) *Table {
	if n < 0 {
		n = 0
	}
	if cfg.DecayRate < 0 {
		cfg.DecayRate = 0
	}
	return &Table{cfg: cfg, values: make([]float64, n)}
}

func (t *Table) Len() int {
	return len(t.values)
}

// Resize grows or shrinks the table; new slots start neutral.
func (t *Table) Resize(n int) {
	if n < 0 {
		n = 0
	}
	if n <= len(t.values) {
		t.values = t.values[:n]
		return
	}
	t.values = append(t.values, make([]float64, n-len(t.values))...)
}

func (t *Table) Value(i int) float64 {
	if !t.valid(i) {
		return Neutral
	}
	return t.values[i]
}

func (t *Table) Set(i int, v float64) {
	if !t.valid(i) {
		return
	}
	t.values[i] = clamp(v)
}

func (t *Table) Promote(i int, amount float64) {
	t.Set(i, t.Value(i)+math.Abs(amount))
}

func (t *Table) Demote(i int, amount float64) {
	t.Set(i, t.Value(i)-math.Abs(amount))
}

func (t *Table) Clear(i int) {
	t.Set(i, Neutral)
}

func (t *Table) Reset() {
	for i := range t.values {
		t.values[i] = Neutral
	}
}

// Decay pulls every value toward Neutral by DecayRate without overshooting.
func (t *Table) Decay() {
	rate := t.cfg.DecayRate
	if rate <= 0 {
		return
	}
	for i, v := range t.values {
		switch {
		case v > Neutral:
			t.values[i] = math.Max(Neutral, v-rate)
		case v < Neutral:
			t.values[i] = math.Min(Neutral, v+rate)
		}
	}
}

// Adjust combines a raw tag-match score with function i's regulation.
func (t *Table) Adjust(i int, raw float64) float64 {
	return raw * math.Exp(t.Value(i))
}

func (t *Table) valid(i int) bool {
	return i >= 0 && i < len(t.values)
}

func clamp(v float64) float64 {
	if math.IsNaN(v) {
		return Neutral
	}
	return math.Max(-MaxMagnitude, math.Min(MaxMagnitude, v))
}
