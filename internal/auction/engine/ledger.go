package engine

import (
	"fmt"
	"sync"

	"github.com/Dream-Merchants-VIT/my-bid/internal/models"
)

// Ledger is the in-memory authoritative record of team token balances.
// The engine is its only writer; balances never go negative.
type Ledger struct {
	mu       sync.RWMutex
	initial  int
	balances models.TeamTokens
}

// NewLedger creates a ledger where unknown teams start at initialTokens.
func NewLedger(initialTokens int) *Ledger {
	return &Ledger{
		initial:  initialTokens,
		balances: make(models.TeamTokens),
	}
}

// Seed loads known balances, typically from the durable store at startup.
func (l *Ledger) Seed(balances models.TeamTokens) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for teamID, tokens := range balances {
		l.balances[teamID] = tokens
	}
}

// Balance returns the team's balance, lazily initializing unknown teams to
// the configured starting amount.
func (l *Ledger) Balance(teamID string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	bal, ok := l.balances[teamID]
	if !ok {
		bal = l.initial
		l.balances[teamID] = bal
	}
	return bal
}

// Debit subtracts amount from the team's balance. The engine's pre-bid check
// is the real gate; a debit that would drive the balance negative is rejected
// with ErrLedgerInvariant since it indicates an engine bug.
func (l *Ledger) Debit(teamID string, amount int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	bal, ok := l.balances[teamID]
	if !ok {
		bal = l.initial
	}
	if amount <= 0 {
		return fmt.Errorf("%w: debit of %d for team %s", ErrLedgerInvariant, amount, teamID)
	}
	if amount > bal {
		return fmt.Errorf("%w: debit of %d exceeds balance %d for team %s", ErrLedgerInvariant, amount, bal, teamID)
	}
	l.balances[teamID] = bal - amount
	return nil
}

// Snapshot returns a copy of all team balances.
func (l *Ledger) Snapshot() models.TeamTokens {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make(models.TeamTokens, len(l.balances))
	for teamID, tokens := range l.balances {
		out[teamID] = tokens
	}
	return out
}
