package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/fantasydesk/transfermarket/internal/models"
)

const catalogKey = "transfers:catalog"

// CachedStore wraps a primary Store (PostgreSQL) with a Redis read-through
// cache over the unfiltered catalog query, which is by far the hottest read.
// Market mutations invalidate the cache; filtered queries, team reads, and
// the atomic unit always go to the primary.
type CachedStore struct {
	primary Store
	rdb     *redis.Client
	ttl     time.Duration
}

// NewCachedStore creates a cached wrapper around a primary store.
func NewCachedStore(primary Store, rdb *redis.Client, ttl time.Duration) *CachedStore {
	return &CachedStore{
		primary: primary,
		rdb:     rdb,
		ttl:     ttl,
	}
}

// --- Read-through ---

func (s *CachedStore) SearchListings(ctx context.Context, f CatalogFilter) ([]models.ListedPlayer, error) {
	if f.TeamName != "" || f.PlayerName != "" || f.MaxPrice != nil {
		return s.primary.SearchListings(ctx, f)
	}

	data, err := s.rdb.Get(ctx, catalogKey).Bytes()
	if err == nil {
		var listings []models.ListedPlayer
		if json.Unmarshal(data, &listings) == nil {
			return listings, nil
		}
	}

	// Cache miss: read from primary and re-populate.
	listings, err := s.primary.SearchListings(ctx, f)
	if err != nil {
		return nil, err
	}
	if data, err := json.Marshal(listings); err == nil {
		s.rdb.Set(ctx, catalogKey, data, s.ttl)
	}
	return listings, nil
}

// --- Write-through (write to primary, invalidate cache) ---

func (s *CachedStore) UpdateListing(ctx context.Context, playerID, userID string, askingPrice *decimal.Decimal) (*models.Player, error) {
	p, err := s.primary.UpdateListing(ctx, playerID, userID, askingPrice)
	if err != nil {
		return nil, err
	}
	s.rdb.Del(ctx, catalogKey)
	return p, nil
}

func (s *CachedStore) Transact(ctx context.Context, fn func(Tx) error) error {
	if err := s.primary.Transact(ctx, fn); err != nil {
		return err
	}
	// A committed unit may have consumed a listing.
	s.rdb.Del(ctx, catalogKey)
	return nil
}

// --- Passthrough ---

func (s *CachedStore) CreateUser(ctx context.Context, username, passwordHash string) (*models.User, error) {
	return s.primary.CreateUser(ctx, username, passwordHash)
}

func (s *CachedStore) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	return s.primary.GetUserByUsername(ctx, username)
}

func (s *CachedStore) CreateTeam(ctx context.Context, team *models.Team, players []models.Player) error {
	return s.primary.CreateTeam(ctx, team, players)
}

func (s *CachedStore) GetTeamByUserID(ctx context.Context, userID string) (*models.Team, error) {
	return s.primary.GetTeamByUserID(ctx, userID)
}

func (s *CachedStore) GetPlayerOwnedBy(ctx context.Context, playerID, userID string) (*models.Player, error) {
	return s.primary.GetPlayerOwnedBy(ctx, playerID, userID)
}

func (s *CachedStore) TradesByTeam(ctx context.Context, teamID string) ([]models.TradeRecord, error) {
	return s.primary.TradesByTeam(ctx, teamID)
}
