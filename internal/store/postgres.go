package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/fantasydesk/transfermarket/internal/models"
)

// PostgresStore implements Store using PostgreSQL as the source of truth.
// Money is stored as NUMERIC and round-tripped through text for exact
// decimal precision.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// New initializes a new PostgreSQL-backed store from a connection string.
func New(ctx context.Context, connString string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

// NewWithPool wraps an existing connection pool.
func NewWithPool(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Pool exposes the underlying connection pool (seeding, migrations, tests).
func (s *PostgresStore) Pool() *pgxpool.Pool {
	return s.pool
}

// Close closes the connection pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

// --- Users ---

func (s *PostgresStore) CreateUser(ctx context.Context, username, passwordHash string) (*models.User, error) {
	user := &models.User{}
	err := s.pool.QueryRow(ctx,
		`INSERT INTO users (id, username, password_hash) VALUES ($1, $2, $3)
		 RETURNING id, username, password_hash, created_at`,
		uuid.New().String(), username, passwordHash).
		Scan(&user.ID, &user.Username, &user.PasswordHash, &user.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, fmt.Errorf("username taken: %w", ErrConflict)
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return user, nil
}

func (s *PostgresStore) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	user := &models.User{}
	err := s.pool.QueryRow(ctx,
		`SELECT id, username, password_hash, created_at FROM users WHERE username = $1`,
		username).Scan(&user.ID, &user.Username, &user.PasswordHash, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// --- Teams and players ---

func (s *PostgresStore) CreateTeam(ctx context.Context, team *models.Team, players []models.Player) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`INSERT INTO teams (id, user_id, name, country, budget, total_players, is_ready)
		 VALUES ($1, $2, $3, $4, $5::NUMERIC, $6, FALSE)`,
		team.ID, team.UserID, team.Name, team.Country, team.Budget.String(), len(players))
	if err != nil {
		return fmt.Errorf("failed to create team: %w", err)
	}

	for _, p := range players {
		_, err = tx.Exec(ctx,
			`INSERT INTO players (id, team_id, first_name, last_name, nationality, position, age, market_value, is_listed)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8::NUMERIC, FALSE)`,
			p.ID, team.ID, p.FirstName, p.LastName, p.Nationality, p.Position, p.Age, p.MarketValue.String())
		if err != nil {
			return fmt.Errorf("failed to create player: %w", err)
		}
	}

	// The team becomes visible to trading only once the roster is complete.
	_, err = tx.Exec(ctx, `UPDATE teams SET is_ready = TRUE WHERE id = $1`, team.ID)
	if err != nil {
		return fmt.Errorf("failed to mark team ready: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetTeamByUserID(ctx context.Context, userID string) (*models.Team, error) {
	team, err := scanTeam(s.pool.QueryRow(ctx,
		`SELECT t.id, t.user_id, t.name, t.country, t.budget::TEXT, t.is_ready, t.created_at,
		        (SELECT COUNT(*) FROM players p WHERE p.team_id = t.id)
		 FROM teams t WHERE t.user_id = $1`, userID))
	if err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx, playerSelect+` WHERE p.team_id = $1 ORDER BY p.position, p.last_name, p.first_name, p.id`, team.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to get players: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		p, err := scanPlayer(rows)
		if err != nil {
			return nil, err
		}
		team.Players = append(team.Players, *p)
	}
	return team, rows.Err()
}

func (s *PostgresStore) GetPlayerOwnedBy(ctx context.Context, playerID, userID string) (*models.Player, error) {
	return scanPlayer(s.pool.QueryRow(ctx,
		playerSelect+` JOIN teams t ON t.id = p.team_id WHERE p.id = $1 AND t.user_id = $2`,
		playerID, userID))
}

func (s *PostgresStore) UpdateListing(ctx context.Context, playerID, userID string, askingPrice *decimal.Decimal) (*models.Player, error) {
	// Ownership is part of the guard: a player sold and relisted between
	// the caller's read and this write no longer matches, so a stale
	// request cannot touch the new owner's listing.
	var row pgx.Row
	if askingPrice != nil {
		row = s.pool.QueryRow(ctx,
			`UPDATE players p SET is_listed = TRUE, asking_price = $3::NUMERIC
			 WHERE p.id = $1 AND p.is_listed = FALSE
			   AND p.team_id IN (SELECT id FROM teams WHERE user_id = $2)`+playerReturning,
			playerID, userID, askingPrice.String())
	} else {
		row = s.pool.QueryRow(ctx,
			`UPDATE players p SET is_listed = FALSE, asking_price = NULL
			 WHERE p.id = $1 AND p.is_listed = TRUE
			   AND p.team_id IN (SELECT id FROM teams WHERE user_id = $2)`+playerReturning,
			playerID, userID)
	}
	return scanPlayer(row)
}

// --- Catalog ---

func (s *PostgresStore) SearchListings(ctx context.Context, f CatalogFilter) ([]models.ListedPlayer, error) {
	var maxPrice *string
	if f.MaxPrice != nil {
		v := f.MaxPrice.String()
		maxPrice = &v
	}

	rows, err := s.pool.Query(ctx,
		`SELECT p.id, p.team_id, p.first_name, p.last_name, p.nationality, p.position, p.age,
		        p.market_value::TEXT, p.is_listed, p.asking_price::TEXT, p.created_at,
		        t.name, t.country
		 FROM players p
		 JOIN teams t ON t.id = p.team_id
		 WHERE p.is_listed
		   AND ($1 = '' OR t.name ILIKE '%' || $1 || '%')
		   AND ($2 = '' OR p.first_name ILIKE '%' || $2 || '%' OR p.last_name ILIKE '%' || $2 || '%')
		   AND ($3::NUMERIC IS NULL OR p.asking_price <= $3::NUMERIC)
		 ORDER BY p.created_at ASC`,
		f.TeamName, f.PlayerName, maxPrice)
	if err != nil {
		return nil, fmt.Errorf("failed to search listings: %w", err)
	}
	defer rows.Close()

	var listings []models.ListedPlayer
	for rows.Next() {
		var lp models.ListedPlayer
		var value string
		var asking *string
		if err := rows.Scan(&lp.ID, &lp.TeamID, &lp.FirstName, &lp.LastName, &lp.Nationality,
			&lp.Position, &lp.Age, &value, &lp.IsListed, &asking, &lp.CreatedAt,
			&lp.TeamName, &lp.TeamCountry); err != nil {
			return nil, fmt.Errorf("failed to scan listing: %w", err)
		}
		if lp.MarketValue, err = decimal.NewFromString(value); err != nil {
			return nil, fmt.Errorf("failed to parse market value: %w", err)
		}
		if asking != nil {
			d, err := decimal.NewFromString(*asking)
			if err != nil {
				return nil, fmt.Errorf("failed to parse asking price: %w", err)
			}
			lp.AskingPrice = &d
		}
		listings = append(listings, lp)
	}
	return listings, rows.Err()
}

// --- Trade history ---

func (s *PostgresStore) TradesByTeam(ctx context.Context, teamID string) ([]models.TradeRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, player_id, seller_team_id, buyer_team_id,
		        asking_price::TEXT, sale_price::TEXT, commission::TEXT, executed_at
		 FROM trades
		 WHERE seller_team_id = $1 OR buyer_team_id = $1
		 ORDER BY executed_at ASC`, teamID)
	if err != nil {
		return nil, fmt.Errorf("failed to get trades: %w", err)
	}
	defer rows.Close()

	var records []models.TradeRecord
	for rows.Next() {
		var rec models.TradeRecord
		var asking, sale, commission string
		if err := rows.Scan(&rec.ID, &rec.PlayerID, &rec.SellerTeamID, &rec.BuyerTeamID,
			&asking, &sale, &commission, &rec.ExecutedAt); err != nil {
			return nil, fmt.Errorf("failed to scan trade: %w", err)
		}
		if rec.AskingPrice, err = decimal.NewFromString(asking); err != nil {
			return nil, err
		}
		if rec.SalePrice, err = decimal.NewFromString(sale); err != nil {
			return nil, err
		}
		if rec.Commission, err = decimal.NewFromString(commission); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// --- Atomic unit ---

const maxTxAttempts = 3

// Transact runs fn inside a serializable transaction. Serialization
// failures and deadlocks rerun fn with fresh reads, up to maxTxAttempts;
// business errors from fn abort immediately and roll back.
func (s *PostgresStore) Transact(ctx context.Context, fn func(Tx) error) error {
	retryDelay := 50 * time.Millisecond

	for attempt := 0; attempt < maxTxAttempts; attempt++ {
		tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
		if err != nil {
			return fmt.Errorf("%w: %v", ErrConflict, err)
		}

		err = func() error {
			defer tx.Rollback(ctx)
			if err := fn(&pgTx{tx: tx}); err != nil {
				return err
			}
			return tx.Commit(ctx)
		}()
		if err == nil {
			return nil
		}
		if !isRetryable(err) {
			return err
		}
		if attempt == maxTxAttempts-1 {
			break
		}
		if err := sleepWithContext(ctx, retryDelay); err != nil {
			return fmt.Errorf("%w: %v", ErrConflict, err)
		}
		retryDelay *= 2
	}
	return ErrConflict
}

// isRetryable reports whether err is a serialization failure (40001) or
// deadlock (40P01), both of which are safe to rerun with fresh reads.
func isRetryable(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && (pgErr.Code == "40001" || pgErr.Code == "40P01")
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// pgTx implements Tx on a pgx transaction. Lock order inside a buy is
// buyer team, player, seller team; crossed buys can deadlock and surface
// as a retryable 40P01.
type pgTx struct {
	tx pgx.Tx
}

func (t *pgTx) LockTeamByUserID(ctx context.Context, userID string) (*models.Team, error) {
	team, err := scanTeam(t.tx.QueryRow(ctx,
		`SELECT id, user_id, name, country, budget::TEXT, is_ready, created_at, 0
		 FROM teams WHERE user_id = $1 FOR UPDATE`, userID))
	if err != nil {
		return nil, err
	}
	return t.countRoster(ctx, team)
}

func (t *pgTx) LockTeam(ctx context.Context, teamID string) (*models.Team, error) {
	team, err := scanTeam(t.tx.QueryRow(ctx,
		`SELECT id, user_id, name, country, budget::TEXT, is_ready, created_at, 0
		 FROM teams WHERE id = $1 FOR UPDATE`, teamID))
	if err != nil {
		return nil, err
	}
	return t.countRoster(ctx, team)
}

// countRoster reads the true owned-player count. The team row is already
// locked, so the count is stable for the rest of the unit.
func (t *pgTx) countRoster(ctx context.Context, team *models.Team) (*models.Team, error) {
	err := t.tx.QueryRow(ctx,
		`SELECT COUNT(*) FROM players WHERE team_id = $1`, team.ID).Scan(&team.RosterSize)
	if err != nil {
		return nil, fmt.Errorf("failed to count roster: %w", err)
	}
	return team, nil
}

func (t *pgTx) LockPlayer(ctx context.Context, playerID string) (*models.Player, error) {
	return scanPlayer(t.tx.QueryRow(ctx,
		playerSelect+` WHERE p.id = $1 FOR UPDATE`, playerID))
}

func (t *pgTx) AdjustTeam(ctx context.Context, teamID string, balanceDelta decimal.Decimal, rosterDelta int) error {
	tag, err := t.tx.Exec(ctx,
		`UPDATE teams SET budget = budget + $2::NUMERIC, total_players = total_players + $3
		 WHERE id = $1`,
		teamID, balanceDelta.String(), rosterDelta)
	if err != nil {
		return fmt.Errorf("failed to adjust team: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *pgTx) TransferPlayer(ctx context.Context, playerID, toTeamID string, newValue decimal.Decimal) error {
	tag, err := t.tx.Exec(ctx,
		`UPDATE players SET team_id = $2, is_listed = FALSE, asking_price = NULL, market_value = $3::NUMERIC
		 WHERE id = $1`,
		playerID, toTeamID, newValue.String())
	if err != nil {
		return fmt.Errorf("failed to transfer player: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *pgTx) InsertTradeRecord(ctx context.Context, rec *models.TradeRecord) error {
	_, err := t.tx.Exec(ctx,
		`INSERT INTO trades (id, player_id, seller_team_id, buyer_team_id, asking_price, sale_price, commission, executed_at)
		 VALUES ($1, $2, $3, $4, $5::NUMERIC, $6::NUMERIC, $7::NUMERIC, $8)`,
		rec.ID, rec.PlayerID, rec.SellerTeamID, rec.BuyerTeamID,
		rec.AskingPrice.String(), rec.SalePrice.String(), rec.Commission.String(),
		rec.ExecutedAt)
	if err != nil {
		return fmt.Errorf("failed to record trade: %w", err)
	}
	return nil
}

// --- Scan helpers ---

const playerSelect = `SELECT p.id, p.team_id, p.first_name, p.last_name, p.nationality, p.position, p.age,
       p.market_value::TEXT, p.is_listed, p.asking_price::TEXT, p.created_at
 FROM players p`

const playerReturning = `
 RETURNING p.id, p.team_id, p.first_name, p.last_name, p.nationality, p.position, p.age,
       p.market_value::TEXT, p.is_listed, p.asking_price::TEXT, p.created_at`

func scanPlayer(row pgx.Row) (*models.Player, error) {
	p := &models.Player{}
	var value string
	var asking *string

	err := row.Scan(&p.ID, &p.TeamID, &p.FirstName, &p.LastName, &p.Nationality,
		&p.Position, &p.Age, &value, &p.IsListed, &asking, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan player: %w", err)
	}

	if p.MarketValue, err = decimal.NewFromString(value); err != nil {
		return nil, fmt.Errorf("failed to parse market value: %w", err)
	}
	if asking != nil {
		d, err := decimal.NewFromString(*asking)
		if err != nil {
			return nil, fmt.Errorf("failed to parse asking price: %w", err)
		}
		p.AskingPrice = &d
	}
	return p, nil
}

func scanTeam(row pgx.Row) (*models.Team, error) {
	team := &models.Team{}
	var budget string

	err := row.Scan(&team.ID, &team.UserID, &team.Name, &team.Country,
		&budget, &team.IsReady, &team.CreatedAt, &team.RosterSize)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan team: %w", err)
	}

	if team.Budget, err = decimal.NewFromString(budget); err != nil {
		return nil, fmt.Errorf("failed to parse budget: %w", err)
	}
	return team, nil
}
