package models

// TeamTokens maps team ID to current token balance.
type TeamTokens map[string]int
