package events

import (
	"github.com/Dream-Merchants-VIT/my-bid/internal/catalog"
	"github.com/Dream-Merchants-VIT/my-bid/internal/models"
)

// Event payload types shared between the engine, gateway, and publisher.
// Field names match the wire format the bidding clients already speak.

// SessionStartedPayload announces a freshly opened session.
type SessionStartedPayload struct {
	Session    *models.Session   `json:"session"`
	Material   *catalog.Material `json:"material"`
	TeamTokens models.TeamTokens `json:"teamTokens"`
}

// TimerUpdatePayload carries the per-second countdown.
type TimerUpdatePayload struct {
	RemainingTime int `json:"remainingTime"`
}

// NewBidPayload announces an accepted bid.
type NewBidPayload struct {
	Bid        *models.Bid       `json:"bid"`
	Session    *models.Session   `json:"session"`
	TeamTokens models.TeamTokens `json:"teamTokens"`
}

// SessionEndedPayload announces settlement of a closed session.
type SessionEndedPayload struct {
	Session    *models.Session   `json:"session"`
	WinningBid *models.Bid       `json:"winningBid"`
	AllBids    []*models.Bid     `json:"allBids"`
	TeamTokens models.TeamTokens `json:"teamTokens"`
}

// LowStockAlertPayload fires when remaining bundles hit an alert threshold.
type LowStockAlertPayload struct {
	RemainingBundles int `json:"remainingBundles"`
}

// InitialDataPayload is the point-in-time snapshot pushed to a connection on
// connect and returned from get_current_data. Late joiners see "now", not a
// replay of history.
type InitialDataPayload struct {
	Session    *models.Session   `json:"session"`
	Bids       []*models.Bid     `json:"bids"`
	HighestBid *models.Bid       `json:"highestBid"`
	TeamTokens models.TeamTokens `json:"teamTokens"`
}
