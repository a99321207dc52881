package models

import (
	"time"

	"github.com/google/uuid"
)

// Bid is one accepted bid within a session. Team name and code are snapshots
// taken at bid time so later renames do not rewrite bid history.
type Bid struct {
	ID        uuid.UUID `json:"id"`
	SessionID uuid.UUID `json:"sessionId"`
	TeamID    string    `json:"teamId"`
	TeamName  string    `json:"teamName"`
	TeamCode  string    `json:"teamCode"`
	Amount    int       `json:"amount"`
	Timestamp time.Time `json:"timestamp"`
	IsWinning bool      `json:"isWinning"`
}
