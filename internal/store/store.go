// Package store defines the persistence interface for the transfer market.
// Implementations include PostgreSQL (source of truth), Redis (read-through
// cache for the catalog), and in-memory (for testing).
package store

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"github.com/fantasydesk/transfermarket/internal/models"
)

var (
	// ErrNotFound is returned by point lookups and guarded updates when no
	// row matched.
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned by Transact when the unit could not be
	// committed after the bounded retries. Nothing was applied.
	ErrConflict = errors.New("write conflict")
)

// CatalogFilter narrows a catalog query. Name filters are case-insensitive
// substring matches; a nil MaxPrice means no price ceiling.
type CatalogFilter struct {
	TeamName   string
	PlayerName string
	MaxPrice   *decimal.Decimal
}

// Store is the persistence interface. PostgreSQL is the source of truth.
type Store interface {
	// --- Users ---

	CreateUser(ctx context.Context, username, passwordHash string) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)

	// --- Teams and players ---

	// CreateTeam atomically persists a new team with its initial roster
	// and marks it ready.
	CreateTeam(ctx context.Context, team *models.Team, players []models.Player) error

	// GetTeamByUserID returns the team with its players loaded.
	GetTeamByUserID(ctx context.Context, userID string) (*models.Team, error)

	// GetPlayerOwnedBy returns the player only if its team belongs to the
	// given user; ErrNotFound otherwise.
	GetPlayerOwnedBy(ctx context.Context, playerID, userID string) (*models.Player, error)

	// UpdateListing is the listing manager's single-row guarded update.
	// A non-nil askingPrice lists the player (guarded on not listed);
	// nil clears the listing (guarded on listed). Both forms also guard
	// on the player still belonging to userID's team at write time.
	// ErrNotFound when any guard did not match.
	UpdateListing(ctx context.Context, playerID, userID string, askingPrice *decimal.Decimal) (*models.Player, error)

	// --- Catalog ---

	SearchListings(ctx context.Context, f CatalogFilter) ([]models.ListedPlayer, error)

	// --- Trade history (append-only audit trail, read path) ---

	TradesByTeam(ctx context.Context, teamID string) ([]models.TradeRecord, error)

	// --- Atomic unit ---

	// Transact runs fn as one atomic read-modify-write unit: either every
	// mutation fn issues commits, or none do. Reads inside fn observe row
	// state consistent for the duration of the unit. Store-level write
	// conflicts rerun fn with fresh reads a bounded number of times;
	// any other error from fn aborts the unit and is returned verbatim.
	Transact(ctx context.Context, fn func(Tx) error) error
}

// Tx is the handle passed to a Transact closure. Lock* reads take row-level
// consistency for the remainder of the unit.
type Tx interface {
	// LockTeamByUserID resolves and locks a team by its owning user,
	// including the current roster count.
	LockTeamByUserID(ctx context.Context, userID string) (*models.Team, error)

	// LockTeam resolves and locks a team by id, including the current
	// roster count.
	LockTeam(ctx context.Context, teamID string) (*models.Team, error)

	// LockPlayer resolves and locks a player by id.
	LockPlayer(ctx context.Context, playerID string) (*models.Player, error)

	// AdjustTeam applies a balance delta and a roster-count delta.
	AdjustTeam(ctx context.Context, teamID string, balanceDelta decimal.Decimal, rosterDelta int) error

	// TransferPlayer reassigns the player to toTeamID, clears its listing
	// state, and sets its new market value.
	TransferPlayer(ctx context.Context, playerID, toTeamID string, newValue decimal.Decimal) error

	// InsertTradeRecord appends one immutable trade record.
	InsertTradeRecord(ctx context.Context, rec *models.TradeRecord) error
}
