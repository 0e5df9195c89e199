package random

import "math/rand"

// Source is a seedable pseudo-random source with a force-next-roll override.
//
// Forced faces are consumed in FIFO order by the next Intn calls before the
// seeded stream is touched, so forcing never shifts the seeded sequence.
type Source struct {
	seed   int64
	rng    *rand.Rand
	forced []int
}

// New returns a Source seeded with seed.
func New(seed int64) *Source {
	return &Source{seed: seed, rng: rand.New(rand.NewSource(seed))}
}

// Seed returns the seed the source was created with.
func (s *Source) Seed() int64 { return s.seed }

// ForceNext queues die faces (1-based) returned by the next rolls.
// A forced face larger than the die is clamped to the die size; a face
// below 1 is clamped to 1.
func (s *Source) ForceNext(faces ...int) {
	s.forced = append(s.forced, faces...)
}

// Intn returns a value in [0, n).
func (s *Source) Intn(n int) int {
	if n <= 0 {
		panic("random: Intn called with non-positive bound")
	}
	if len(s.forced) > 0 {
		face := s.forced[0]
		s.forced = s.forced[1:]
		return min(max(face, 1), n) - 1
	}
	return s.rng.Intn(n)
}

// Float64 returns a value in [0, 1) from the seeded stream.
func (s *Source) Float64() float64 {
	return s.rng.Float64()
}
