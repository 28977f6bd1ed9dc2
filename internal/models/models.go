// Package models defines the core domain types shared across the service.
// All monetary values use shopspring/decimal — never float64 for money.
package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// User represents a registered user.
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// Team is a user's squad. Budget and roster size are only mutated inside
// the trade engine's atomic unit.
type Team struct {
	ID         string          `json:"id"`
	UserID     string          `json:"user_id"`
	Name       string          `json:"name"`
	Country    string          `json:"country"`
	Budget     decimal.Decimal `json:"budget"`
	RosterSize int             `json:"roster_size"`
	IsReady    bool            `json:"is_ready"`
	CreatedAt  time.Time       `json:"created_at"`
	Players    []Player        `json:"players,omitempty"`
}

// Player belongs to exactly one team at a time. AskingPrice is non-nil
// iff IsListed is true.
type Player struct {
	ID          string           `json:"id"`
	TeamID      string           `json:"team_id"`
	FirstName   string           `json:"first_name"`
	LastName    string           `json:"last_name"`
	Nationality string           `json:"nationality"`
	Position    string           `json:"position"` // "GK", "DEF", "MID", "ATT"
	Age         int              `json:"age"`
	MarketValue decimal.Decimal  `json:"market_value"`
	IsListed    bool             `json:"is_listed"`
	AskingPrice *decimal.Decimal `json:"asking_price,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
}

// ListedPlayer is a catalog row: a listed player joined with the selling
// team's public name and country.
type ListedPlayer struct {
	Player
	TeamName    string `json:"team_name"`
	TeamCountry string `json:"team_country"`
}

// TradeRecord is an immutable record of a completed purchase.
// Once created, these are never modified or deleted.
type TradeRecord struct {
	ID           string          `json:"id"`
	PlayerID     string          `json:"player_id"`
	SellerTeamID string          `json:"seller_team_id"`
	BuyerTeamID  string          `json:"buyer_team_id"`
	AskingPrice  decimal.Decimal `json:"asking_price"`
	SalePrice    decimal.Decimal `json:"sale_price"` // what the seller received
	Commission   decimal.Decimal `json:"commission"`
	ExecutedAt   time.Time       `json:"executed_at"`
}

// TransferReceipt is returned to the buyer after a successful purchase.
type TransferReceipt struct {
	Message    string          `json:"message"`
	PlayerID   string          `json:"player_id"`
	Price      decimal.Decimal `json:"price"`
	Commission decimal.Decimal `json:"commission"`
}
