package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/fantasydesk/transfermarket/internal/models"
)

// MemoryStore implements Store with in-memory maps. Used for testing and
// development. A single mutex held for the whole of Transact makes every
// unit serializable; writes inside a unit are staged and applied only on
// success, so a failed unit leaves no partial state.
type MemoryStore struct {
	mu      sync.Mutex
	users   map[string]*models.User   // keyed by username
	teams   map[string]*models.Team   // keyed by team id
	byUser  map[string]string         // user id -> team id
	players map[string]*models.Player // keyed by player id
	trades  []models.TradeRecord
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:   make(map[string]*models.User),
		teams:   make(map[string]*models.Team),
		byUser:  make(map[string]string),
		players: make(map[string]*models.Player),
	}
}

func (s *MemoryStore) CreateUser(_ context.Context, username, passwordHash string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.users[username]; exists {
		return nil, ErrConflict
	}
	user := &models.User{
		ID:           uuid.New().String(),
		Username:     username,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now().UTC(),
	}
	s.users[username] = user
	cp := *user
	return &cp, nil
}

func (s *MemoryStore) GetUserByUsername(_ context.Context, username string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[username]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *user
	return &cp, nil
}

func (s *MemoryStore) CreateTeam(_ context.Context, team *models.Team, players []models.Player) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byUser[team.UserID]; exists {
		return ErrConflict
	}

	cp := *team
	cp.IsReady = true
	cp.Players = nil
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now().UTC()
	}
	s.teams[cp.ID] = &cp
	s.byUser[cp.UserID] = cp.ID

	for i := range players {
		p := players[i]
		p.TeamID = cp.ID
		if p.CreatedAt.IsZero() {
			p.CreatedAt = time.Now().UTC()
		}
		s.players[p.ID] = &p
	}
	return nil
}

func (s *MemoryStore) GetTeamByUserID(_ context.Context, userID string) (*models.Team, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	team, err := s.teamByUserLocked(userID)
	if err != nil {
		return nil, err
	}
	for _, p := range s.playersOfLocked(team.ID) {
		team.Players = append(team.Players, p)
	}
	return team, nil
}

func (s *MemoryStore) GetPlayerOwnedBy(_ context.Context, playerID, userID string) (*models.Player, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.players[playerID]
	if !ok {
		return nil, ErrNotFound
	}
	team, ok := s.teams[p.TeamID]
	if !ok || team.UserID != userID {
		return nil, ErrNotFound
	}
	cp := clonePlayer(p)
	return &cp, nil
}

func (s *MemoryStore) UpdateListing(_ context.Context, playerID, userID string, askingPrice *decimal.Decimal) (*models.Player, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.players[playerID]
	if !ok {
		return nil, ErrNotFound
	}
	if team, ok := s.teams[p.TeamID]; !ok || team.UserID != userID {
		return nil, ErrNotFound
	}
	if askingPrice != nil {
		if p.IsListed {
			return nil, ErrNotFound
		}
		price := *askingPrice
		p.IsListed = true
		p.AskingPrice = &price
	} else {
		if !p.IsListed {
			return nil, ErrNotFound
		}
		p.IsListed = false
		p.AskingPrice = nil
	}
	cp := clonePlayer(p)
	return &cp, nil
}

func (s *MemoryStore) SearchListings(_ context.Context, f CatalogFilter) ([]models.ListedPlayer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var listings []models.ListedPlayer
	for _, p := range s.players {
		if !p.IsListed {
			continue
		}
		team := s.teams[p.TeamID]
		if team == nil {
			continue
		}
		if f.TeamName != "" && !containsFold(team.Name, f.TeamName) {
			continue
		}
		if f.PlayerName != "" && !containsFold(p.FirstName, f.PlayerName) && !containsFold(p.LastName, f.PlayerName) {
			continue
		}
		if f.MaxPrice != nil && p.AskingPrice.GreaterThan(*f.MaxPrice) {
			continue
		}
		listings = append(listings, models.ListedPlayer{
			Player:      clonePlayer(p),
			TeamName:    team.Name,
			TeamCountry: team.Country,
		})
	}
	sort.Slice(listings, func(i, j int) bool {
		if listings[i].CreatedAt.Equal(listings[j].CreatedAt) {
			return listings[i].ID < listings[j].ID
		}
		return listings[i].CreatedAt.Before(listings[j].CreatedAt)
	})
	return listings, nil
}

func (s *MemoryStore) TradesByTeam(_ context.Context, teamID string) ([]models.TradeRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var records []models.TradeRecord
	for _, rec := range s.trades {
		if rec.SellerTeamID == teamID || rec.BuyerTeamID == teamID {
			records = append(records, rec)
		}
	}
	return records, nil
}

// Transact holds the store mutex for the whole unit, which serializes
// concurrent units. Writes are staged and applied only when fn succeeds.
func (s *MemoryStore) Transact(_ context.Context, fn func(Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &memTx{store: s}
	if err := fn(tx); err != nil {
		return err
	}
	for _, apply := range tx.staged {
		apply()
	}
	return nil
}

// memTx stages writes against an already-locked MemoryStore.
type memTx struct {
	store  *MemoryStore
	staged []func()
}

func (t *memTx) LockTeamByUserID(_ context.Context, userID string) (*models.Team, error) {
	return t.store.teamByUserLocked(userID)
}

func (t *memTx) LockTeam(_ context.Context, teamID string) (*models.Team, error) {
	team, ok := t.store.teams[teamID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *team
	cp.RosterSize = t.store.rosterSizeLocked(teamID)
	return &cp, nil
}

func (t *memTx) LockPlayer(_ context.Context, playerID string) (*models.Player, error) {
	p, ok := t.store.players[playerID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := clonePlayer(p)
	return &cp, nil
}

func (t *memTx) AdjustTeam(_ context.Context, teamID string, balanceDelta decimal.Decimal, rosterDelta int) error {
	team, ok := t.store.teams[teamID]
	if !ok {
		return ErrNotFound
	}
	t.staged = append(t.staged, func() {
		team.Budget = team.Budget.Add(balanceDelta)
	})
	_ = rosterDelta // roster size is derived from player ownership
	return nil
}

func (t *memTx) TransferPlayer(_ context.Context, playerID, toTeamID string, newValue decimal.Decimal) error {
	p, ok := t.store.players[playerID]
	if !ok {
		return ErrNotFound
	}
	if _, ok := t.store.teams[toTeamID]; !ok {
		return ErrNotFound
	}
	t.staged = append(t.staged, func() {
		p.TeamID = toTeamID
		p.IsListed = false
		p.AskingPrice = nil
		p.MarketValue = newValue
	})
	return nil
}

func (t *memTx) InsertTradeRecord(_ context.Context, rec *models.TradeRecord) error {
	cp := *rec
	t.staged = append(t.staged, func() {
		t.store.trades = append(t.store.trades, cp)
	})
	return nil
}

// --- Locked helpers (caller holds s.mu) ---

func (s *MemoryStore) teamByUserLocked(userID string) (*models.Team, error) {
	teamID, ok := s.byUser[userID]
	if !ok {
		return nil, ErrNotFound
	}
	team := s.teams[teamID]
	cp := *team
	cp.RosterSize = s.rosterSizeLocked(teamID)
	return &cp, nil
}

func (s *MemoryStore) rosterSizeLocked(teamID string) int {
	n := 0
	for _, p := range s.players {
		if p.TeamID == teamID {
			n++
		}
	}
	return n
}

func (s *MemoryStore) playersOfLocked(teamID string) []models.Player {
	var out []models.Player
	for _, p := range s.players {
		if p.TeamID == teamID {
			out = append(out, clonePlayer(p))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Position != out[j].Position {
			return out[i].Position < out[j].Position
		}
		if out[i].LastName != out[j].LastName {
			return out[i].LastName < out[j].LastName
		}
		if out[i].FirstName != out[j].FirstName {
			return out[i].FirstName < out[j].FirstName
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func clonePlayer(p *models.Player) models.Player {
	cp := *p
	if p.AskingPrice != nil {
		price := *p.AskingPrice
		cp.AskingPrice = &price
	}
	return cp
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
