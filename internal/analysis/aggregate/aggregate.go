// Package aggregate turns a batch of simulation runs into a percentile
// report: score-sorted deciles and quintiles, risk vitals and an archetype.
package aggregate

import (
	"errors"
	"sort"

	"github.com/louisbranch/skirmish/internal/combat/domain"
)

// ErrNoResults indicates an empty batch.
var ErrNoResults = errors.New("no results to analyze")

const (
	// Deciles is the bucket count of the decile table.
	Deciles = 10
	// Quintiles is the bucket count of the quintile table.
	Quintiles = 5
)

// Meta describes the batch being analyzed.
type Meta struct {
	ScenarioName string `json:"scenario_name"`
	PartySize    int    `json:"party_size"`
	ShortRests   int    `json:"short_rests"`
}

// RunRef points at a representative run.
type RunRef struct {
	Seed  int64   `json:"seed"`
	Score float64 `json:"score"`
}

// Bucket summarizes one contiguous slice of score-sorted runs.
type Bucket struct {
	Index           int     `json:"index"`
	Count           int     `json:"count"`
	FromPercentile  float64 `json:"from_percentile"`
	ToPercentile    float64 `json:"to_percentile"`
	MinScore        float64 `json:"min_score"`
	MaxScore        float64 `json:"max_score"`
	MedianScore     float64 `json:"median_score"`
	WinRate         float64 `json:"win_rate"`
	MedianSurvivors float64 `json:"median_survivors"`
	HPLostPercent   float64 `json:"hp_lost_percent"`
	AverageRounds   float64 `json:"average_rounds"`
	MedianRun       RunRef  `json:"median_run"`
}

// Output is the full analysis of a batch.
type Output struct {
	Meta
	Runs        int                `json:"runs"`
	WinRate     float64            `json:"win_rate"`
	MedianScore float64            `json:"median_score"`
	Deciles     []Bucket           `json:"deciles"`
	Quintiles   []Bucket           `json:"quintiles"`
	Vitals      Vitals             `json:"vitals"`
	Encounters  []EncounterSummary `json:"encounters,omitempty"`
}

// Analyze reports on full results, including per-encounter summaries.
func Analyze(results []domain.SimulationResult, meta Meta) (Output, error) {
	runs := make([]domain.LightweightRun, len(results))
	for i, r := range results {
		runs[i] = r.Lightweight()
	}
	out, err := AnalyzeRuns(runs, meta)
	if err != nil {
		return Output{}, err
	}
	out.Encounters = SummarizeEncounters(results)
	return out, nil
}

// AnalyzeRuns reports on survey runs. The input order does not matter.
func AnalyzeRuns(runs []domain.LightweightRun, meta Meta) (Output, error) {
	if len(runs) == 0 {
		return Output{}, ErrNoResults
	}
	sorted := SortByScore(runs)

	scores := make([]float64, len(sorted))
	won := 0
	for i, r := range sorted {
		scores[i] = r.Score
		if r.Won {
			won++
		}
	}

	out := Output{
		Meta:        meta,
		Runs:        len(sorted),
		WinRate:     float64(won) / float64(len(sorted)),
		MedianScore: median(scores),
		Deciles:     Buckets(sorted, Deciles),
		Quintiles:   Buckets(sorted, Quintiles),
	}
	out.Vitals = computeVitals(sorted, out.Deciles, meta, out.WinRate)
	return out, nil
}

// SortByScore returns a copy of runs in ascending score order, ties broken
// by seed.
func SortByScore(runs []domain.LightweightRun) []domain.LightweightRun {
	sorted := append([]domain.LightweightRun(nil), runs...)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Score != sorted[j].Score {
			return sorted[i].Score < sorted[j].Score
		}
		return sorted[i].Seed < sorted[j].Seed
	})
	return sorted
}

// Buckets splits score-sorted runs into k contiguous buckets. Bucket i holds
// runs [i*n/k, (i+1)*n/k), so sizes differ by at most one. With fewer runs
// than buckets some buckets are empty.
func Buckets(sorted []domain.LightweightRun, k int) []Bucket {
	n := len(sorted)
	out := make([]Bucket, k)
	for i := range k {
		lo, hi := i*n/k, (i+1)*n/k
		out[i] = summarize(sorted[lo:hi])
		out[i].Index = i
		out[i].FromPercentile = 100 * float64(i) / float64(k)
		out[i].ToPercentile = 100 * float64(i+1) / float64(k)
	}
	return out
}

func summarize(runs []domain.LightweightRun) Bucket {
	b := Bucket{Count: len(runs)}
	if len(runs) == 0 {
		return b
	}
	scores := make([]float64, len(runs))
	survivors := make([]float64, len(runs))
	won, hpLost, rounds := 0, 0.0, 0
	for i, r := range runs {
		scores[i] = r.Score
		survivors[i] = float64(r.Survivors)
		if r.Won {
			won++
		}
		hpLost += r.HPLostPercent
		rounds += r.Rounds
	}
	n := float64(len(runs))
	mid := runs[(len(runs)-1)/2]

	b.MinScore = runs[0].Score
	b.MaxScore = runs[len(runs)-1].Score
	b.MedianScore = median(scores)
	b.WinRate = float64(won) / n
	b.MedianSurvivors = median(survivors)
	b.HPLostPercent = hpLost / n
	b.AverageRounds = float64(rounds) / n
	b.MedianRun = RunRef{Seed: mid.Seed, Score: mid.Score}
	return b
}

// median returns the middle value, averaging the two middle values of an
// even-length input. values is sorted in place.
func median(values []float64) float64 {
	n := len(values)
	if n == 0 {
		return 0
	}
	sort.Float64s(values)
	if n%2 == 0 {
		return (values[n/2-1] + values[n/2]) / 2
	}
	return values[n/2]
}
