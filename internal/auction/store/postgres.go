package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Dream-Merchants-VIT/my-bid/internal/models"
	"github.com/Dream-Merchants-VIT/my-bid/internal/sqlutil"
)

// Postgres persists settlements against the teams and won_items tables.
type Postgres struct {
	db *sql.DB
}

// NewPostgres creates a settlement store backed by the given database.
func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

// SettleWin debits the winning team's tokens and records the won item as a
// single transaction. Either both writes land or neither does.
func (s *Postgres) SettleWin(ctx context.Context, item models.WonItem) error {
	return sqlutil.Run(ctx, s.db, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE teams SET tokens = tokens - $1 WHERE id = $2 AND tokens >= $1`,
			item.AmountPurchased, item.TeamID,
		)
		if err != nil {
			return fmt.Errorf("failed to debit team tokens: %w", err)
		}
		rows, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected count: %w", err)
		}
		if rows == 0 {
			return fmt.Errorf("team %s not found or has fewer than %d tokens", item.TeamID, item.AmountPurchased)
		}

		_, err = tx.ExecContext(ctx,
			`INSERT INTO won_items (id, team_id, item_id, amount_purchased, base_amount, quantity)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			item.ID, item.TeamID, item.ItemID, item.AmountPurchased, item.BaseAmount, item.Quantity,
		)
		if err != nil {
			return fmt.Errorf("failed to record won item: %w", err)
		}
		return nil
	})
}

// TeamBalances loads all team token balances, used to seed the in-memory
// ledger at startup.
func (s *Postgres) TeamBalances(ctx context.Context) (models.TeamTokens, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, tokens FROM teams`)
	if err != nil {
		return nil, fmt.Errorf("failed to load team balances: %w", err)
	}
	defer rows.Close()

	balances := make(models.TeamTokens)
	for rows.Next() {
		var teamID string
		var tokens int
		if err := rows.Scan(&teamID, &tokens); err != nil {
			return nil, fmt.Errorf("failed to scan team balance: %w", err)
		}
		balances[teamID] = tokens
	}
	return balances, rows.Err()
}
