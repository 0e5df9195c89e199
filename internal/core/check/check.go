// Package check resolves d20 tests: attack rolls against armor class and
// saving throws against a difficulty class.
package check

// Result is the outcome of a d20 test against a difficulty.
type Result struct {
	Success bool
	// Margin is total minus difficulty, negative on failure.
	Margin int
}

// Against compares total with difficulty. Meeting it succeeds.
func Against(total, difficulty int) Result {
	return Result{Success: total >= difficulty, Margin: total - difficulty}
}

// Save resolves a saving throw. Natural faces carry no special meaning.
func Save(total, dc int) Result {
	return Against(total, dc)
}

// AttackResult is the outcome of an attack roll against armor class.
type AttackResult struct {
	Result
	Critical bool
	Fumble   bool
}

// Attack resolves an attack roll. A natural face at or above critThreshold
// always hits as a critical; a natural 1 always misses. critThreshold values
// outside 2..20 are treated as 20.
func Attack(natural, total, armorClass, critThreshold int) AttackResult {
	if critThreshold < 2 || critThreshold > 20 {
		critThreshold = 20
	}
	result := AttackResult{Result: Against(total, armorClass)}
	switch {
	case natural == 1:
		result.Success = false
		result.Fumble = true
	case natural >= critThreshold:
		result.Success = true
		result.Critical = true
	}
	return result
}
