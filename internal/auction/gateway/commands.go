package gateway

import (
	"context"

	"github.com/Dream-Merchants-VIT/my-bid/internal/auction/events"
	"github.com/Dream-Merchants-VIT/my-bid/internal/models"
	"github.com/rs/zerolog/log"
)

// AuctionEngine is what the gateway needs from the auction engine.
type AuctionEngine interface {
	OpenSession(ctx context.Context, materialID string, bundleType models.BundleType, totalBundles int) (*models.Session, error)
	PlaceBid(ctx context.Context, teamID, teamName, teamCode string, amount int) (*models.Bid, error)
	Snapshot() events.InitialDataPayload
}

// Inbound command types.
const (
	CommandPing           = "ping"
	CommandGetCurrentData = "get_current_data"
	CommandStartSession   = "start_session"
	CommandPlaceBid       = "place_bid"
)

// Command is one inbound client message. Fields beyond Type are populated
// depending on the command.
type Command struct {
	Type string `json:"type"`

	// start_session
	MaterialID   string            `json:"materialId"`
	BundleType   models.BundleType `json:"bundleType"`
	TotalBundles int               `json:"totalBundles"`

	// place_bid
	TeamID   string `json:"teamId"`
	TeamName string `json:"teamName"`
	TeamCode string `json:"teamCode"`
	Amount   int    `json:"amount"`
}

// PongResponse answers the app-level ping.
type PongResponse struct {
	Type string `json:"type"`
}

// SessionStartResponse is the correlated reply to start_session.
type SessionStartResponse struct {
	Type    string          `json:"type"`
	Success bool            `json:"success"`
	Session *models.Session `json:"session,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// BidPlaceResponse is the correlated reply to place_bid.
type BidPlaceResponse struct {
	Type    string      `json:"type"`
	Success bool        `json:"success"`
	Bid     *models.Bid `json:"bid,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// CurrentDataResponse is the correlated reply to get_current_data.
type CurrentDataResponse struct {
	Type string                    `json:"type"`
	Data events.InitialDataPayload `json:"data"`
}

// dispatch routes one command to the engine and returns the correlated
// response, or nil for commands that have none. Validation errors are carried
// in the response for the caller alone; they are never broadcast.
func (h *Hub) dispatch(ctx context.Context, cmd Command) any {
	switch cmd.Type {
	case CommandPing:
		return PongResponse{Type: "pong"}

	case CommandGetCurrentData:
		return CurrentDataResponse{
			Type: "current_data_response",
			Data: h.engine.Snapshot(),
		}

	case CommandStartSession:
		session, err := h.engine.OpenSession(ctx, cmd.MaterialID, cmd.BundleType, cmd.TotalBundles)
		if err != nil {
			return SessionStartResponse{Type: "session_start_response", Success: false, Error: err.Error()}
		}
		return SessionStartResponse{Type: "session_start_response", Success: true, Session: session}

	case CommandPlaceBid:
		bid, err := h.engine.PlaceBid(ctx, cmd.TeamID, cmd.TeamName, cmd.TeamCode, cmd.Amount)
		if err != nil {
			return BidPlaceResponse{Type: "bid_place_response", Success: false, Error: err.Error()}
		}
		return BidPlaceResponse{Type: "bid_place_response", Success: true, Bid: bid}

	default:
		log.Warn().Str("command_type", cmd.Type).Msg("unknown command type - ignoring")
		return nil
	}
}
