package operands

import (
	"fmt"

	"github.com/kailas-cloud/creditgate/internal/domain"
)

// Bounds of a single summand, inclusive.
const (
	Min = 0
	Max = 1023
)

// Pair is a validated input of the metered sum.
type Pair struct {
	a int
	b int
}

// New validates both operands against [Min, Max].
func New(a, b int) (Pair, error) {
	if err := check("a", a); err != nil {
		return Pair{}, err
	}
	if err := check("b", b); err != nil {
		return Pair{}, err
	}
	return Pair{a: a, b: b}, nil
}

func check(field string, v int) error {
	if v < Min || v > Max {
		return domain.NewValidationError(field, fmt.Sprintf("must be between %d and %d, got %d", Min, Max, v))
	}
	return nil
}

// A returns the first operand.
func (p Pair) A() int { return p.a }

// B returns the second operand.
func (p Pair) B() int { return p.b }

// Sum returns a + b.
func (p Pair) Sum() int { return p.a + p.b }
