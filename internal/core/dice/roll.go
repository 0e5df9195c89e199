package dice

// RollWithRng rolls every Spec in order from rng. It returns ErrMissingDice
// for no specs and ErrInvalidDiceSpec for a Spec without positive sides and
// count. Formula dice terms roll through here so every die of a run comes
// from the run's source.
func RollWithRng(rng Roller, specs []Spec) (Result, error) {
	if len(specs) == 0 {
		return Result{}, ErrMissingDice
	}

	rolls := make([]Roll, 0, len(specs))
	total := 0

	for _, spec := range specs {
		if spec.Sides <= 0 || spec.Count <= 0 {
			return Result{}, ErrInvalidDiceSpec
		}

		results := make([]int, spec.Count)
		rollTotal := 0
		for i := range spec.Count {
			value := rollDie(rng, spec.Sides)
			results[i] = value
			rollTotal += value
		}

		rolls = append(rolls, Roll{
			Sides:   spec.Sides,
			Results: results,
			Total:   rollTotal,
		})
		total += rollTotal
	}

	return Result{
		Rolls: rolls,
		Total: total,
	}, nil
}

// D20 rolls a single twenty-sided die.
func D20(rng Roller) int {
	return rollDie(rng, 20)
}

// D20WithAdvantage rolls a d20 honoring the net advantage state.
// A positive net rolls twice and keeps the higher face, a negative net keeps
// the lower, zero rolls once. Every face rolled is returned in roll order.
func D20WithAdvantage(rng Roller, net int) (natural int, faces []int) {
	first := D20(rng)
	if net == 0 {
		return first, []int{first}
	}
	second := D20(rng)
	faces = []int{first, second}
	if net > 0 {
		return max(first, second), faces
	}
	return min(first, second), faces
}

// rollDie rolls a single die with the provided number of sides.
func rollDie(rng Roller, sides int) int {
	return rng.Intn(sides) + 1
}
