package dice

import "errors"

var (
	// ErrMissingDice indicates a roll request without any dice.
	ErrMissingDice = errors.New("at least one die is required")
	// ErrInvalidDiceSpec indicates a die with non-positive sides or count.
	ErrInvalidDiceSpec = errors.New("dice spec must have positive sides and count")
	// ErrInvalidFormula indicates a formula that could not be parsed.
	ErrInvalidFormula = errors.New("invalid dice formula")
)

// Roller is the randomness consumed by every roll in this package.
// *rand.Rand and random.Source both satisfy it.
type Roller interface {
	// Intn returns a value in [0, n).
	Intn(n int) int
}

// Spec describes a group of identical dice, e.g. 2d6.
type Spec struct {
	Sides int
	Count int
}

// Roll is the outcome of one Spec.
type Roll struct {
	Sides   int   `json:"sides"`
	Results []int `json:"results"`
	Total   int   `json:"total"`
}

// Result is the outcome of rolling several Specs.
type Result struct {
	Rolls []Roll
	Total int
}
