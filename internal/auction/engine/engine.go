package engine

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Dream-Merchants-VIT/my-bid/internal/auction/events"
	"github.com/Dream-Merchants-VIT/my-bid/internal/catalog"
	"github.com/Dream-Merchants-VIT/my-bid/internal/models"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// State is the engine's lifecycle state.
type State int

const (
	StateIdle State = iota
	StateOpen
	StateClosing
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateOpen:
		return "OPEN"
	case StateClosing:
		return "CLOSING"
	default:
		return "UNKNOWN"
	}
}

// SettlementStore persists a settled win (token debit + won-item record) as a
// single transaction.
type SettlementStore interface {
	SettleWin(ctx context.Context, item models.WonItem) error
}

// Config holds engine tuning knobs.
type Config struct {
	// BidDuration is the fixed countdown for every session.
	BidDuration time.Duration
	// LowStockThresholds are remaining-bundle counts that trigger an alert.
	LowStockThresholds []int
	// SettleAttempts bounds retries of the durable settlement write.
	SettleAttempts int
	// SettleRetryDelay is the base delay between settlement retries.
	SettleRetryDelay time.Duration
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		BidDuration:        30 * time.Second,
		LowStockThresholds: []int{20, 5},
		SettleAttempts:     3,
		SettleRetryDelay:   500 * time.Millisecond,
	}
}

// Engine runs the live auction state machine: Idle -> Open -> Closing -> Idle.
// It is the single writer for session, bid, and balance state; every mutating
// path (commands and clock ticks) serializes on one mutex so no two mutations
// interleave.
type Engine struct {
	cfg     Config
	clock   clockwork.Clock
	catalog *catalog.Catalog
	ledger  *Ledger
	store   SettlementStore
	sink    events.Sink

	mu         sync.Mutex
	state      State
	session    *models.Session
	bids       []*models.Bid
	stopTicker chan struct{}

	settleFailures atomic.Int64
}

// New creates an auction engine. The engine owns session, bid, and balance
// state; callers interact only through its methods.
func New(cfg Config, clock clockwork.Clock, cat *catalog.Catalog, ledger *Ledger, store SettlementStore, sink events.Sink) *Engine {
	return &Engine{
		cfg:     cfg,
		clock:   clock,
		catalog: cat,
		ledger:  ledger,
		store:   store,
		sink:    sink,
		state:   StateIdle,
	}
}

// OpenSession starts a new auction for one material/bundle combination. If a
// session is currently open it is force-closed first, settling whatever
// leader exists; auctions never run concurrently. Validation failures leave
// all state untouched.
func (e *Engine) OpenSession(ctx context.Context, materialID string, bundleType models.BundleType, totalBundles int) (*models.Session, error) {
	material := e.catalog.FindMaterial(materialID)
	if material == nil {
		return nil, ErrInvalidMaterial
	}
	basePrice := material.BundlePrice(bundleType)
	if basePrice == nil {
		return nil, ErrInvalidBundleType
	}
	if totalBundles < 1 {
		return nil, ErrInvalidBundleCount
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state == StateOpen {
		log.Info().
			Str("session_id", e.session.ID.String()).
			Str("material_id", e.session.MaterialID).
			Msg("force-closing in-flight session before opening a new one")
		e.closeLocked(ctx)
	}

	now := e.clock.Now()
	e.session = &models.Session{
		ID:               uuid.New(),
		MaterialID:       material.ID,
		MaterialName:     material.Name,
		BundleType:       bundleType,
		BasePrice:        *basePrice,
		StartTime:        now,
		EndTime:          now.Add(e.cfg.BidDuration),
		IsActive:         true,
		TotalBundles:     totalBundles,
		RemainingBundles: totalBundles,
	}
	e.bids = nil
	e.state = StateOpen

	e.stopTicker = make(chan struct{})
	go e.runTicker(e.session.ID, e.stopTicker)

	e.publish(events.TypeSessionStarted, events.SessionStartedPayload{
		Session:    cloneSession(e.session),
		Material:   material,
		TeamTokens: e.ledger.Snapshot(),
	})

	log.Info().
		Str("session_id", e.session.ID.String()).
		Str("material_id", material.ID).
		Str("bundle_type", string(bundleType)).
		Int("base_price", *basePrice).
		Int("total_bundles", totalBundles).
		Msg("bidding session started")

	return cloneSession(e.session), nil
}

// PlaceBid validates and appends a bid. Balances are not touched here; tokens
// are only debited at settlement. The accepted bid becomes the sole leader.
func (e *Engine) PlaceBid(ctx context.Context, teamID, teamName, teamCode string, amount int) (*models.Bid, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != StateOpen || e.session == nil || !e.session.IsActive {
		return nil, ErrNoActiveSession
	}

	if amount > e.ledger.Balance(teamID) {
		return nil, ErrInsufficientTokens
	}

	minimum := e.session.BasePrice
	if leader := e.leaderLocked(); leader != nil {
		minimum = leader.Amount + 1
	}
	if amount < minimum {
		return nil, &BidTooLowError{Minimum: minimum}
	}

	for _, bid := range e.bids {
		bid.IsWinning = false
	}
	bid := &models.Bid{
		ID:        uuid.New(),
		SessionID: e.session.ID,
		TeamID:    teamID,
		TeamName:  teamName,
		TeamCode:  teamCode,
		Amount:    amount,
		Timestamp: e.clock.Now(),
		IsWinning: true,
	}
	e.bids = append(e.bids, bid)

	e.publish(events.TypeNewBid, events.NewBidPayload{
		Bid:        cloneBid(bid),
		Session:    cloneSession(e.session),
		TeamTokens: e.ledger.Snapshot(),
	})

	log.Info().
		Str("session_id", e.session.ID.String()).
		Str("team_id", teamID).
		Str("team_name", teamName).
		Int("amount", amount).
		Msg("bid placed")

	return cloneBid(bid), nil
}

// EndSession closes the open session immediately, running the normal
// settlement path.
func (e *Engine) EndSession(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != StateOpen {
		return ErrNoActiveSession
	}
	e.closeLocked(ctx)
	return nil
}

// Snapshot returns a point-in-time copy of the full current state. Repeated
// calls with no intervening mutation return identical snapshots.
func (e *Engine) Snapshot() events.InitialDataPayload {
	e.mu.Lock()
	defer e.mu.Unlock()

	snap := events.InitialDataPayload{
		Session:    cloneSession(e.session),
		Bids:       cloneBids(e.bids),
		HighestBid: cloneBid(e.leaderLocked()),
		TeamTokens: e.ledger.Snapshot(),
	}
	return snap
}

// State returns the engine's current lifecycle state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// SettlementFailures reports how many durable settlement writes were
// abandoned after exhausting retries. Non-zero values need operator action.
func (e *Engine) SettlementFailures() int64 {
	return e.settleFailures.Load()
}

// runTicker drives the per-second countdown for one session. Tick handling
// funnels through the same mutex as commands, so a tick firing alongside an
// in-flight bid is either fully before or fully after it.
func (e *Engine) runTicker(sessionID uuid.UUID, stop chan struct{}) {
	ticker := e.clock.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.Chan():
			if e.tick(sessionID) {
				return
			}
		}
	}
}

// tick emits a timer update and closes the session on expiry. Returns true
// when the ticker owning this session should stop.
func (e *Engine) tick(sessionID uuid.UUID) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != StateOpen || e.session == nil || e.session.ID != sessionID {
		return true
	}

	remaining := int((e.session.EndTime.Sub(e.clock.Now()) + time.Second/2) / time.Second)
	e.publish(events.TypeTimerUpdate, events.TimerUpdatePayload{RemainingTime: remaining})

	if remaining <= 0 {
		e.closeLocked(context.Background())
		return true
	}
	return false
}

// closeLocked settles and ends the current session. Callers hold e.mu, so a
// new OpenSession blocks until settlement resolves. The in-memory debit and
// bundle decrement happen together, then the durable write runs with bounded
// retries.
func (e *Engine) closeLocked(ctx context.Context) {
	if e.session == nil || e.state != StateOpen {
		return
	}
	e.state = StateClosing

	if e.stopTicker != nil {
		close(e.stopTicker)
		e.stopTicker = nil
	}

	winning := e.leaderLocked()
	settled := false
	if winning != nil {
		if err := e.ledger.Debit(winning.TeamID, winning.Amount); err != nil {
			// Engine bug: the pre-bid balance check should make this
			// unreachable. Reject the settlement rather than clamp.
			log.Error().
				Err(err).
				Str("session_id", e.session.ID.String()).
				Str("team_id", winning.TeamID).
				Int("amount", winning.Amount).
				Msg("ledger invariant violation, settlement rejected")
			winning = nil
		} else {
			e.session.RemainingBundles--
			settled = true
			e.settleDurable(ctx, models.WonItem{
				ID:              uuid.New(),
				TeamID:          winning.TeamID,
				ItemID:          e.session.MaterialID,
				AmountPurchased: winning.Amount,
				BaseAmount:      e.session.BasePrice,
				Quantity:        1,
			})
		}
	}

	e.session.IsActive = false

	e.publish(events.TypeSessionEnded, events.SessionEndedPayload{
		Session:    cloneSession(e.session),
		WinningBid: cloneBid(winning),
		AllBids:    cloneBids(e.bids),
		TeamTokens: e.ledger.Snapshot(),
	})

	if settled && e.session.RemainingBundles > 0 && e.isLowStock(e.session.RemainingBundles) {
		e.publish(events.TypeLowStockAlert, events.LowStockAlertPayload{
			RemainingBundles: e.session.RemainingBundles,
		})
	}

	log.Info().
		Str("session_id", e.session.ID.String()).
		Bool("has_winner", winning != nil).
		Int("total_bids", len(e.bids)).
		Int("remaining_bundles", e.session.RemainingBundles).
		Msg("bidding session ended")

	e.state = StateIdle
}

// settleDurable writes the settlement transaction with bounded retries. On
// exhaustion the write is abandoned with an operator-visible error; in-memory
// state stays authoritative.
func (e *Engine) settleDurable(ctx context.Context, item models.WonItem) {
	var lastErr error
	for attempt := 1; attempt <= e.cfg.SettleAttempts; attempt++ {
		if attempt > 1 {
			time.Sleep(e.cfg.SettleRetryDelay * time.Duration(attempt-1))
		}
		if err := e.store.SettleWin(ctx, item); err != nil {
			lastErr = err
			log.Warn().
				Err(err).
				Str("team_id", item.TeamID).
				Str("item_id", item.ItemID).
				Int("attempt", attempt).
				Msg("durable settlement write failed, retrying")
			continue
		}
		return
	}

	e.settleFailures.Add(1)
	log.Error().
		Err(lastErr).
		Str("team_id", item.TeamID).
		Str("item_id", item.ItemID).
		Int("amount", item.AmountPurchased).
		Int("attempts", e.cfg.SettleAttempts).
		Msg("durable settlement abandoned; in-memory state is authoritative")
}

// leaderLocked returns the current leading bid: maximum amount, earliest bid
// on equal amounts. Equal-amount bids are rejected at placement, so scanning
// with a strict comparison preserves first-to-reach leadership.
func (e *Engine) leaderLocked() *models.Bid {
	var leader *models.Bid
	for _, bid := range e.bids {
		if leader == nil || bid.Amount > leader.Amount {
			leader = bid
		}
	}
	return leader
}

func (e *Engine) isLowStock(remaining int) bool {
	for _, threshold := range e.cfg.LowStockThresholds {
		if remaining == threshold {
			return true
		}
	}
	return false
}

func (e *Engine) publish(t events.Type, payload any) {
	event, err := events.New(t, payload)
	if err != nil {
		log.Error().Err(err).Str("event_type", string(t)).Msg("failed to build event")
		return
	}
	e.sink.Publish(event)
}

func cloneSession(s *models.Session) *models.Session {
	if s == nil {
		return nil
	}
	out := *s
	return &out
}

func cloneBid(b *models.Bid) *models.Bid {
	if b == nil {
		return nil
	}
	out := *b
	return &out
}

func cloneBids(bids []*models.Bid) []*models.Bid {
	out := make([]*models.Bid, len(bids))
	for i, b := range bids {
		out[i] = cloneBid(b)
	}
	return out
}
