package models

import (
	"time"

	"github.com/google/uuid"
)

// BundleType selects which price point of a material is being auctioned.
type BundleType string

const (
	BundleTypeLarge BundleType = "large"
	BundleTypeSmall BundleType = "small"
)

// Session represents one timed auction for a single material/bundle combination.
// At most one session is active system-wide at any instant.
//
// JSON field names are camelCase to stay wire-compatible with the existing
// bidding clients.
type Session struct {
	ID               uuid.UUID  `json:"id"`
	MaterialID       string     `json:"materialId"`
	MaterialName     string     `json:"materialName"`
	BundleType       BundleType `json:"bundleType"`
	BasePrice        int        `json:"basePrice"`
	StartTime        time.Time  `json:"startTime"`
	EndTime          time.Time  `json:"endTime"`
	IsActive         bool       `json:"isActive"`
	TotalBundles     int        `json:"totalBundles"`
	RemainingBundles int        `json:"remainingBundles"`
}
