package store

import (
	"context"

	"github.com/Dream-Merchants-VIT/my-bid/internal/models"
	"github.com/rs/zerolog/log"
)

// Nop is a settlement store for running without a database. Settlements are
// logged and discarded; the in-memory ledger is the only record.
type Nop struct{}

func (Nop) SettleWin(ctx context.Context, item models.WonItem) error {
	log.Info().
		Str("team_id", item.TeamID).
		Str("item_id", item.ItemID).
		Int("amount", item.AmountPurchased).
		Msg("settlement recorded in memory only (no database configured)")
	return nil
}
