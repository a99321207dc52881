package models

import "github.com/google/uuid"

// WonItem is the append-only settlement record written when a session closes
// with a winner. One row per settled session, quantity fixed at one bundle.
type WonItem struct {
	ID              uuid.UUID `json:"id"`
	TeamID          string    `json:"teamId"`
	ItemID          string    `json:"itemId"`
	AmountPurchased int       `json:"amountPurchased"`
	BaseAmount      int       `json:"baseAmount"`
	Quantity        int       `json:"quantity"`
}
