package event

// SliceByEncounter splits a log into one slice per encounter, keyed by
// position in the timeline. Events are grouped by their Encounter field in
// log order; each returned slice shares the backing array but is capped so
// appends cannot clobber the next encounter.
func SliceByEncounter(events []Event) [][]Event {
	var out [][]Event
	start := 0
	for i := 1; i <= len(events); i++ {
		if i < len(events) && events[i].Encounter == events[start].Encounter {
			continue
		}
		for len(out) < events[start].Encounter {
			out = append(out, nil)
		}
		out = append(out, events[start:i:i])
		start = i
	}
	return out
}

// Filter returns the events whose kind is one of kinds.
func Filter(events []Event, kinds ...Kind) []Event {
	var out []Event
	for _, e := range events {
		for _, k := range kinds {
			if e.Kind == k {
				out = append(out, e)
				break
			}
		}
	}
	return out
}

// SumAmounts totals Amount over events of kind.
func SumAmounts(events []Event, kind Kind) int {
	total := 0
	for _, e := range events {
		if e.Kind == kind {
			total += e.Amount
		}
	}
	return total
}
