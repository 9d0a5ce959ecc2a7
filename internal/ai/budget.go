package ai

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

const budgetWarnRatio = 0.8

// TokenBudget counts tokens used per calendar day and refuses calls once the
// daily limit is spent. A limit of zero disables the check.
type TokenBudget struct {
	mu     sync.Mutex
	limit  int
	used   int
	day    string
	warned bool
	clock  clockwork.Clock
	loc    *time.Location
	log    *zap.Logger
}

// NewTokenBudget creates a budget of limit tokens per day
func NewTokenBudget(limit int, clock clockwork.Clock, loc *time.Location, log *zap.Logger) *TokenBudget {
	if loc == nil {
		loc = time.Local
	}
	return &TokenBudget{limit: limit, clock: clock, loc: loc, log: log}
}

func (b *TokenBudget) rollover() {
	today := b.clock.Now().In(b.loc).Format("2006-01-02")
	if today != b.day {
		b.day = today
		b.used = 0
		b.warned = false
	}
}

// Allow reports whether today's budget still has tokens left
func (b *TokenBudget) Allow() bool {
	if b.limit <= 0 {
		return true
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rollover()
	return b.used < b.limit
}

// Add records tokens spent by a completed call
func (b *TokenBudget) Add(tokens int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rollover()
	b.used += tokens

	if b.limit > 0 && !b.warned && float64(b.used) > float64(b.limit)*budgetWarnRatio {
		b.warned = true
		b.log.Warn("Token usage high", zap.Int("used", b.used), zap.Int("limit", b.limit))
	}
}

// Used returns the tokens spent today
func (b *TokenBudget) Used() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rollover()
	return b.used
}
