package selection

import (
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/example/wordquiz/internal/apperr"
)

// DefaultMaxExposure is the number of correct answers after which an item counts as learned
const DefaultMaxExposure = 10

// NormalizeID makes identifiers from the content source comparable
func NormalizeID(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}

// SelectUnlearned returns the items whose correct count is below maxExposure,
// preserving input order
func SelectUnlearned(all []string, exposures map[string]int, maxExposure int) []string {
	normalized := make(map[string]int, len(exposures))
	for id, count := range exposures {
		normalized[NormalizeID(id)] += count
	}

	unlearned := make([]string, 0, len(all))
	for _, item := range all {
		if normalized[NormalizeID(item)] < maxExposure {
			unlearned = append(unlearned, item)
		}
	}
	return unlearned
}

// EligiblePool returns the unlearned items, or every item when all of them have
// been learned. An empty input is reported as apperr.ErrExhausted.
func EligiblePool(all []string, exposures map[string]int, maxExposure int) ([]string, error) {
	if len(all) == 0 {
		return nil, apperr.ErrExhausted
	}
	pool := SelectUnlearned(all, exposures, maxExposure)
	if len(pool) == 0 {
		pool = append([]string(nil), all...)
	}
	return pool, nil
}

// Selector picks items uniformly at random
type Selector struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

// NewSelector creates a selector seeded from the current time
func NewSelector() *Selector {
	return NewSelectorWithSource(rand.NewSource(time.Now().UnixNano()))
}

// NewSelectorWithSource creates a selector with a fixed random source
func NewSelectorWithSource(src rand.Source) *Selector {
	return &Selector{rnd: rand.New(src)}
}

// PickNext chooses one item from the pool
func (s *Selector) PickNext(pool []string) (string, error) {
	if len(pool) == 0 {
		return "", apperr.ErrExhausted
	}
	s.mu.Lock()
	idx := s.rnd.Intn(len(pool))
	s.mu.Unlock()
	return pool[idx], nil
}

// Shuffle reorders options in place
func (s *Selector) Shuffle(options []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rnd.Shuffle(len(options), func(i, j int) {
		options[i], options[j] = options[j], options[i]
	})
}

// Intn returns a random index below n
func (s *Selector) Intn(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rnd.Intn(n)
}
