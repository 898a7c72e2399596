package tag

import (
	"fmt"
	"math/bits"
	"math/rand"
	"strings"
)

// Width is the number of significant bits in every tag.
const Width = 16

const mask = uint64(1)<<Width - 1

// Tag is a fixed-width bit pattern used for similarity-scored addressing.
type Tag uint64

// Candidate pairs a dispatch target index with its tag.
type Candidate struct {
	Index int
	Tag   Tag
}

// New truncates raw to Width bits.
func New(raw uint64) Tag {
	return Tag(raw & mask)
}

// Random draws a uniformly random tag.
func Random(rng *rand.Rand) Tag {
	return New(rng.Uint64())
}

// Bit reports whether bit i is set. Out of range bits read as unset.
func (t Tag) Bit(i int) bool {
	if i < 0 || i >= Width {
		return false
	}
	return uint64(t)&(1<<uint(i)) != 0
}

// Flip returns t with bit i inverted.
func (t Tag) Flip(i int) Tag {
	if i < 0 || i >= Width {
		return t
	}
	return New(uint64(t) ^ 1<<uint(i))
}

// String renders the tag most significant bit first.
func (t Tag) String() string {
	var b strings.Builder
	b.Grow(Width)
	for i := Width - 1; i >= 0; i-- {
		if t.Bit(i) {
			b.WriteByte('1')
		} else {
			b.WriteByte('0')
		}
	}
	return b.String()
}

// Parse reads a tag rendered by String. Characters other than '1' count as
// unset bits and input longer than Width keeps the trailing bits.
func Parse(s string) Tag {
	var raw uint64
	for _, c := range s {
		raw <<= 1
		if c == '1' {
			raw |= 1
		}
	}
	return New(raw)
}

// Hamming counts the bits where a and b differ.
func Hamming(a, b Tag) int {
	return bits.OnesCount64(uint64(a^b) & mask)
}

// Match is the simple matching coefficient of a and b: 1 for identical tags,
// 0 for complements.
func Match(a, b Tag) float64 {
	return float64(Width-Hamming(a, b)) / Width
}

// FlipBits flips every bit independently with probability rate and reports
// how many bits changed.
func FlipBits(rng *rand.Rand, t Tag, rate float64) (Tag, int) {
	if rate <= 0 {
		return t, 0
	}
	flipped := 0
	for i := 0; i < Width; i++ {
		if rng.Float64() < rate {
			t = t.Flip(i)
			flipped++
		}
	}
	return t, flipped
}

// ScoreFunc turns the raw match of candidate index into a dispatch score.
type ScoreFunc func(index int, raw float64) float64

// BestMatch returns the candidate whose score against query is greatest and
// at least threshold. Equal scores resolve to the lowest candidate index. A
// nil score uses the raw match.
func BestMatch(query Tag, candidates []Candidate, score ScoreFunc, threshold float64) (int, float64, bool) {
	bestIndex := -1
	bestScore := 0.0
	for _, c := range candidates {
		s := Match(query, c.Tag)
		if score != nil {
			s = score(c.Index, s)
		}
		if s < threshold {
			continue
		}
		if bestIndex < 0 || s > bestScore || (s == bestScore && c.Index < bestIndex) {
			bestIndex = c.Index
			bestScore = s
		}
	}
	if bestIndex < 0 {
		return -1, 0, false
	}
	return bestIndex, bestScore, true
}

func (t Tag) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *Tag) UnmarshalText(text []byte) error {
	for _, c := range text {
		if c != '0' && c != '1' {
			return fmt.Errorf("invalid tag %q: only 0 and 1 are allowed", text)
		}
	}
	if len(text) > Width {
		return fmt.Errorf("invalid tag %q: longer than %d bits", text, Width)
	}
	*t = Parse(string(text))
	return nil
}
