package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Dream-Merchants-VIT/my-bid/internal/auction/events"
	"github.com/Dream-Merchants-VIT/my-bid/internal/catalog"
	"github.com/Dream-Merchants-VIT/my-bid/internal/models"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"
)

type captureSink struct {
	mu     sync.Mutex
	events []*events.Event
}

func (s *captureSink) Publish(event *events.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
}

func (s *captureSink) all() []*events.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*events.Event(nil), s.events...)
}

func (s *captureSink) byType(t events.Type) []*events.Event {
	var out []*events.Event
	for _, ev := range s.all() {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

func (s *captureSink) last(t *testing.T, typ events.Type) *events.Event {
	t.Helper()
	evs := s.byType(typ)
	require.NotEmpty(t, evs, "no %s event emitted", typ)
	return evs[len(evs)-1]
}

type recordingStore struct {
	mu       sync.Mutex
	items    []models.WonItem
	failFor  int
	failWith error
	calls    int
}

func (s *recordingStore) SettleWin(ctx context.Context, item models.WonItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.calls <= s.failFor {
		return s.failWith
	}
	s.items = append(s.items, item)
	return nil
}

func (s *recordingStore) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func (s *recordingStore) wonItems() []models.WonItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.WonItem(nil), s.items...)
}

func newTestEngine(t *testing.T, st SettlementStore) (*Engine, *captureSink, *Ledger, *clockwork.FakeClock) {
	t.Helper()
	cfg := Config{
		BidDuration:        30 * time.Second,
		LowStockThresholds: []int{20, 5},
		SettleAttempts:     3,
		SettleRetryDelay:   time.Millisecond,
	}
	clock := clockwork.NewFakeClock()
	sink := &captureSink{}
	ledger := NewLedger(1500)
	return New(cfg, clock, catalog.Default(), ledger, st, sink), sink, ledger, clock
}

// stopTicker detaches the background ticker goroutine so tests can drive the
// countdown by calling tick directly against an advanced fake clock.
func stopTicker(e *Engine) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.stopTicker != nil {
		close(e.stopTicker)
		e.stopTicker = nil
	}
}

func TestOpenSessionValidation(t *testing.T) {
	ctx := context.Background()
	e, sink, _, _ := newTestEngine(t, &recordingStore{})

	_, err := e.OpenSession(ctx, "vibranium", models.BundleTypeLarge, 10)
	require.ErrorIs(t, err, ErrInvalidMaterial)

	// pipes have no large bundle price
	_, err = e.OpenSession(ctx, "pipes", models.BundleTypeLarge, 10)
	require.ErrorIs(t, err, ErrInvalidBundleType)

	_, err = e.OpenSession(ctx, "steel", models.BundleTypeLarge, 0)
	require.ErrorIs(t, err, ErrInvalidBundleCount)

	require.Equal(t, StateIdle, e.State())
	require.Empty(t, sink.all(), "validation failures must not emit events")
}

func TestOpenSessionStartsAuction(t *testing.T) {
	ctx := context.Background()
	e, sink, _, clock := newTestEngine(t, &recordingStore{})

	session, err := e.OpenSession(ctx, "steel", models.BundleTypeLarge, 10)
	require.NoError(t, err)
	require.Equal(t, "steel", session.MaterialID)
	require.Equal(t, "Steel", session.MaterialName)
	require.Equal(t, 120, session.BasePrice)
	require.Equal(t, 10, session.TotalBundles)
	require.Equal(t, 10, session.RemainingBundles)
	require.True(t, session.IsActive)
	require.Equal(t, clock.Now(), session.StartTime)
	require.Equal(t, clock.Now().Add(30*time.Second), session.EndTime)
	require.Equal(t, StateOpen, e.State())

	ev := sink.last(t, events.TypeSessionStarted)
	payload, err := events.ParsePayload(ev)
	require.NoError(t, err)
	started := payload.(events.SessionStartedPayload)
	require.Equal(t, session.ID, started.Session.ID)
	require.Equal(t, "steel", started.Material.ID)
}

func TestPlaceBidRequiresOpenSession(t *testing.T) {
	e, _, _, _ := newTestEngine(t, &recordingStore{})

	_, err := e.PlaceBid(context.Background(), "team-a", "Alpha", "A1", 200)
	require.ErrorIs(t, err, ErrNoActiveSession)
}

func TestPlaceBidMinimums(t *testing.T) {
	ctx := context.Background()
	e, _, _, _ := newTestEngine(t, &recordingStore{})

	_, err := e.OpenSession(ctx, "steel", models.BundleTypeLarge, 10)
	require.NoError(t, err)

	// Below base price: rejected with the computed minimum.
	_, err = e.PlaceBid(ctx, "team-a", "Alpha", "A1", 119)
	var tooLow *BidTooLowError
	require.ErrorAs(t, err, &tooLow)
	require.Equal(t, 120, tooLow.Minimum)

	// Equal to base price with no bids yet: accepted.
	bid, err := e.PlaceBid(ctx, "team-a", "Alpha", "A1", 120)
	require.NoError(t, err)
	require.True(t, bid.IsWinning)

	// An equal-amount bid never steals leadership; the minimum is leader+1.
	_, err = e.PlaceBid(ctx, "team-b", "Beta", "B1", 120)
	require.ErrorAs(t, err, &tooLow)
	require.Equal(t, 121, tooLow.Minimum)

	// Rejected bids are never appended.
	snap := e.Snapshot()
	require.Len(t, snap.Bids, 1)
	require.Equal(t, "team-a", snap.HighestBid.TeamID)
}

func TestPlaceBidInsufficientTokens(t *testing.T) {
	ctx := context.Background()
	e, sink, ledger, _ := newTestEngine(t, &recordingStore{})
	ledger.Seed(models.TeamTokens{"team-poor": 50})

	// bricks small: base price 30
	_, err := e.OpenSession(ctx, "bricks", models.BundleTypeSmall, 10)
	require.NoError(t, err)

	_, err = e.PlaceBid(ctx, "team-poor", "Poor", "P1", 51)
	require.ErrorIs(t, err, ErrInsufficientTokens)

	require.Equal(t, 50, ledger.Balance("team-poor"))
	require.Empty(t, e.Snapshot().Bids)
	require.Empty(t, sink.byType(events.TypeNewBid))
}

func TestLeaderFollowsMaximumBid(t *testing.T) {
	ctx := context.Background()
	e, _, _, _ := newTestEngine(t, &recordingStore{})

	_, err := e.OpenSession(ctx, "wood", models.BundleTypeSmall, 10)
	require.NoError(t, err)

	teams := []struct {
		id     string
		amount int
	}{
		{"team-a", 40},
		{"team-b", 55},
		{"team-a", 90},
		{"team-c", 120},
	}
	for _, bid := range teams {
		_, err := e.PlaceBid(ctx, bid.id, bid.id, bid.id, bid.amount)
		require.NoError(t, err)

		snap := e.Snapshot()
		winners := 0
		for _, b := range snap.Bids {
			if b.IsWinning {
				winners++
				require.Equal(t, bid.id, b.TeamID)
				require.Equal(t, bid.amount, b.Amount)
			}
		}
		require.Equal(t, 1, winners, "exactly one bid holds the leader flag")
		require.Equal(t, bid.amount, snap.HighestBid.Amount)
	}
}

func TestTimerCountdownAndExpiry(t *testing.T) {
	ctx := context.Background()
	st := &recordingStore{}
	e, sink, ledger, clock := newTestEngine(t, st)

	session, err := e.OpenSession(ctx, "steel", models.BundleTypeLarge, 10)
	require.NoError(t, err)
	stopTicker(e)

	_, err = e.PlaceBid(ctx, "team-a", "Alpha", "A1", 150)
	require.NoError(t, err)

	clock.Advance(10 * time.Second)
	require.False(t, e.tick(session.ID))
	tick := sink.last(t, events.TypeTimerUpdate)
	payload, err := events.ParsePayload(tick)
	require.NoError(t, err)
	require.Equal(t, 20, payload.(events.TimerUpdatePayload).RemainingTime)

	clock.Advance(20 * time.Second)
	require.True(t, e.tick(session.ID))
	require.Equal(t, StateIdle, e.State())

	ended := sink.last(t, events.TypeSessionEnded)
	endPayload, err := events.ParsePayload(ended)
	require.NoError(t, err)
	result := endPayload.(events.SessionEndedPayload)
	require.False(t, result.Session.IsActive)
	require.NotNil(t, result.WinningBid)
	require.Equal(t, "team-a", result.WinningBid.TeamID)
	require.Equal(t, 150, result.WinningBid.Amount)
	require.Equal(t, 9, result.Session.RemainingBundles)
	require.Equal(t, 1350, result.TeamTokens["team-a"])

	require.Equal(t, 1350, ledger.Balance("team-a"))
	items := st.wonItems()
	require.Len(t, items, 1)
	require.Equal(t, "team-a", items[0].TeamID)
	require.Equal(t, "steel", items[0].ItemID)
	require.Equal(t, 150, items[0].AmountPurchased)
	require.Equal(t, 120, items[0].BaseAmount)
	require.Equal(t, 1, items[0].Quantity)

	// Ticks after close are ignored and tell the ticker to stop.
	require.True(t, e.tick(session.ID))
}

func TestCloseWithoutBids(t *testing.T) {
	ctx := context.Background()
	st := &recordingStore{}
	e, sink, ledger, _ := newTestEngine(t, st)

	_, err := e.OpenSession(ctx, "glass", models.BundleTypeLarge, 10)
	require.NoError(t, err)
	before := ledger.Snapshot()

	require.NoError(t, e.EndSession(ctx))

	ended := sink.last(t, events.TypeSessionEnded)
	payload, err := events.ParsePayload(ended)
	require.NoError(t, err)
	result := payload.(events.SessionEndedPayload)
	require.Nil(t, result.WinningBid)
	require.Equal(t, 10, result.Session.RemainingBundles)
	require.Equal(t, before, ledger.Snapshot())
	require.Zero(t, st.callCount())
}

func TestReopenForceClosesInFlightSession(t *testing.T) {
	ctx := context.Background()
	st := &recordingStore{}
	e, sink, ledger, _ := newTestEngine(t, st)

	first, err := e.OpenSession(ctx, "steel", models.BundleTypeLarge, 10)
	require.NoError(t, err)
	_, err = e.PlaceBid(ctx, "team-a", "Alpha", "A1", 200)
	require.NoError(t, err)

	second, err := e.OpenSession(ctx, "cement", models.BundleTypeSmall, 5)
	require.NoError(t, err)
	require.NotEqual(t, first.ID, second.ID)

	// The old session settles before the new session_started is observable.
	var order []events.Type
	for _, ev := range sink.all() {
		order = append(order, ev.Type)
	}
	require.Equal(t, []events.Type{
		events.TypeSessionStarted,
		events.TypeNewBid,
		events.TypeSessionEnded,
		events.TypeSessionStarted,
	}, order)

	require.Equal(t, 1300, ledger.Balance("team-a"))
	require.Len(t, st.wonItems(), 1)

	// The new session accepts bids from a clean slate.
	snap := e.Snapshot()
	require.Empty(t, snap.Bids)
	require.True(t, snap.Session.IsActive)
	require.Equal(t, "cement", snap.Session.MaterialID)
}

func TestReopenValidationFailureKeepsSessionOpen(t *testing.T) {
	ctx := context.Background()
	e, sink, _, _ := newTestEngine(t, &recordingStore{})

	_, err := e.OpenSession(ctx, "steel", models.BundleTypeLarge, 10)
	require.NoError(t, err)

	_, err = e.OpenSession(ctx, "vibranium", models.BundleTypeLarge, 10)
	require.ErrorIs(t, err, ErrInvalidMaterial)

	require.Equal(t, StateOpen, e.State())
	require.Empty(t, sink.byType(events.TypeSessionEnded))
}

func TestSnapshotIdempotent(t *testing.T) {
	ctx := context.Background()
	e, _, _, _ := newTestEngine(t, &recordingStore{})

	_, err := e.OpenSession(ctx, "steel", models.BundleTypeLarge, 10)
	require.NoError(t, err)
	_, err = e.PlaceBid(ctx, "team-a", "Alpha", "A1", 130)
	require.NoError(t, err)

	first := e.Snapshot()
	second := e.Snapshot()
	require.Equal(t, first, second)

	// Mutating a snapshot must not leak back into engine state.
	first.Session.RemainingBundles = 0
	first.Bids[0].Amount = 1
	require.Equal(t, second, e.Snapshot())
}

func TestSteelAuctionScenario(t *testing.T) {
	ctx := context.Background()
	st := &recordingStore{}
	e, sink, ledger, clock := newTestEngine(t, st)

	session, err := e.OpenSession(ctx, "steel", models.BundleTypeLarge, 10)
	require.NoError(t, err)
	require.Equal(t, 120, session.BasePrice)
	require.Equal(t, 10, session.RemainingBundles)
	stopTicker(e)

	var tooLow *BidTooLowError
	_, err = e.PlaceBid(ctx, "team-a", "Alpha", "A1", 119)
	require.ErrorAs(t, err, &tooLow)
	require.Equal(t, 120, tooLow.Minimum)

	_, err = e.PlaceBid(ctx, "team-a", "Alpha", "A1", 120)
	require.NoError(t, err)

	_, err = e.PlaceBid(ctx, "team-b", "Beta", "B1", 120)
	require.ErrorAs(t, err, &tooLow)
	require.Equal(t, 121, tooLow.Minimum)

	_, err = e.PlaceBid(ctx, "team-b", "Beta", "B1", 200)
	require.NoError(t, err)

	clock.Advance(30 * time.Second)
	require.True(t, e.tick(session.ID))

	ended := sink.last(t, events.TypeSessionEnded)
	payload, err := events.ParsePayload(ended)
	require.NoError(t, err)
	result := payload.(events.SessionEndedPayload)
	require.Equal(t, "team-b", result.WinningBid.TeamID)
	require.Equal(t, 9, result.Session.RemainingBundles)
	require.Equal(t, 1300, ledger.Balance("team-b"))
	require.Equal(t, 1500, ledger.Balance("team-a"))

	// 9 is not an alert threshold.
	require.Empty(t, sink.byType(events.TypeLowStockAlert))
}

func TestLowStockAlertFiresAtThreshold(t *testing.T) {
	ctx := context.Background()
	e, sink, _, _ := newTestEngine(t, &recordingStore{})

	_, err := e.OpenSession(ctx, "bricks", models.BundleTypeLarge, 21)
	require.NoError(t, err)
	_, err = e.PlaceBid(ctx, "team-a", "Alpha", "A1", 60)
	require.NoError(t, err)
	require.NoError(t, e.EndSession(ctx))

	alerts := sink.byType(events.TypeLowStockAlert)
	require.Len(t, alerts, 1)
	payload, err := events.ParsePayload(alerts[0])
	require.NoError(t, err)
	require.Equal(t, 20, payload.(events.LowStockAlertPayload).RemainingBundles)
}

func TestLowStockAlertNeedsSettlement(t *testing.T) {
	ctx := context.Background()
	e, sink, _, _ := newTestEngine(t, &recordingStore{})

	// No bids: remaining stays at the threshold value but nothing was sold,
	// so no alert fires.
	_, err := e.OpenSession(ctx, "bricks", models.BundleTypeLarge, 20)
	require.NoError(t, err)
	require.NoError(t, e.EndSession(ctx))

	require.Empty(t, sink.byType(events.TypeLowStockAlert))
}

func TestSettlementRetriesThenSucceeds(t *testing.T) {
	ctx := context.Background()
	st := &recordingStore{failFor: 2, failWith: errors.New("connection refused")}
	e, _, _, _ := newTestEngine(t, st)

	_, err := e.OpenSession(ctx, "steel", models.BundleTypeLarge, 10)
	require.NoError(t, err)
	_, err = e.PlaceBid(ctx, "team-a", "Alpha", "A1", 150)
	require.NoError(t, err)
	require.NoError(t, e.EndSession(ctx))

	require.Equal(t, 3, st.callCount())
	require.Len(t, st.wonItems(), 1)
	require.Zero(t, e.SettlementFailures())
}

func TestSettlementAbandonedAfterRetriesExhausted(t *testing.T) {
	ctx := context.Background()
	st := &recordingStore{failFor: 100, failWith: errors.New("connection refused")}
	e, sink, ledger, _ := newTestEngine(t, st)

	_, err := e.OpenSession(ctx, "steel", models.BundleTypeLarge, 10)
	require.NoError(t, err)
	_, err = e.PlaceBid(ctx, "team-a", "Alpha", "A1", 150)
	require.NoError(t, err)
	require.NoError(t, e.EndSession(ctx))

	require.Equal(t, 3, st.callCount())
	require.Empty(t, st.wonItems())
	require.Equal(t, int64(1), e.SettlementFailures())

	// In-memory settlement stands and was broadcast.
	require.Equal(t, 1350, ledger.Balance("team-a"))
	ended := sink.last(t, events.TypeSessionEnded)
	payload, err := events.ParsePayload(ended)
	require.NoError(t, err)
	require.NotNil(t, payload.(events.SessionEndedPayload).WinningBid)
}

func TestLedgerInvariantViolationRejectsSettlement(t *testing.T) {
	ctx := context.Background()
	st := &recordingStore{}
	e, sink, ledger, _ := newTestEngine(t, st)

	_, err := e.OpenSession(ctx, "steel", models.BundleTypeLarge, 10)
	require.NoError(t, err)
	_, err = e.PlaceBid(ctx, "team-a", "Alpha", "A1", 200)
	require.NoError(t, err)

	// Simulate external balance drift below the leading bid. The debit must
	// be rejected, not clamped.
	ledger.Seed(models.TeamTokens{"team-a": 100})
	require.NoError(t, e.EndSession(ctx))

	require.Equal(t, 100, ledger.Balance("team-a"))
	require.Zero(t, st.callCount())

	ended := sink.last(t, events.TypeSessionEnded)
	payload, err := events.ParsePayload(ended)
	require.NoError(t, err)
	result := payload.(events.SessionEndedPayload)
	require.Nil(t, result.WinningBid)
	require.Equal(t, 10, result.Session.RemainingBundles)
}

func TestEndSessionWithoutOpenSession(t *testing.T) {
	e, _, _, _ := newTestEngine(t, &recordingStore{})
	require.ErrorIs(t, e.EndSession(context.Background()), ErrNoActiveSession)
}
