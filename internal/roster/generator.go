// Package roster generates a new user's initial squad in the background.
// Registration enqueues the user id; a worker goroutine builds the team
// with 20 players and flips it ready inside one store transaction.
package roster

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/fantasydesk/transfermarket/internal/metrics"
	"github.com/fantasydesk/transfermarket/internal/models"
	"github.com/fantasydesk/transfermarket/internal/store"
)

// InitialBudget is the starting budget for every new team.
var InitialBudget = decimal.NewFromInt(5_000_000)

// Generator builds initial rosters off a queue of user ids.
type Generator struct {
	store store.Store
	log   *slog.Logger
	queue chan string
	rng   *rand.Rand
}

// NewGenerator creates a generator. Pass a seeded rng for deterministic
// output in tests, or nil for time-seeded randomness.
func NewGenerator(st store.Store, logger *slog.Logger, rng *rand.Rand) *Generator {
	if logger == nil {
		logger = slog.Default()
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Generator{
		store: st,
		log:   logger,
		queue: make(chan string, 64),
		rng:   rng,
	}
}

// Enqueue schedules team creation for a newly registered user.
func (g *Generator) Enqueue(userID string) {
	g.queue <- userID
}

// Run consumes the queue until ctx is canceled. The worker owns g.rng, so
// all random draws happen on this goroutine.
func (g *Generator) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case userID := <-g.queue:
			if err := g.CreateTeam(ctx, userID); err != nil {
				g.log.Error("team creation failed", "user", userID, "err", err)
			}
		}
	}
}

// CreateTeam builds and persists the initial squad for userID. Idempotent:
// a user that already has a team is left untouched.
func (g *Generator) CreateTeam(ctx context.Context, userID string) error {
	if _, err := g.store.GetTeamByUserID(ctx, userID); err == nil {
		g.log.Warn("team already exists", "user", userID)
		return nil
	}

	team := &models.Team{
		ID:      uuid.New().String(),
		UserID:  userID,
		Name:    fmt.Sprintf("Team %d", time.Now().UnixMilli()),
		Country: g.pick(countries),
		Budget:  InitialBudget,
	}

	var players []models.Player
	for _, pc := range positionCounts {
		for i := 0; i < pc.Count; i++ {
			players = append(players, models.Player{
				ID:          uuid.New().String(),
				FirstName:   g.pick(firstNames),
				LastName:    g.pick(lastNames),
				Nationality: g.pick(countries),
				Position:    pc.Position,
				Age:         g.age(),
				MarketValue: g.marketValue(pc.Position),
			})
		}
	}

	if err := g.store.CreateTeam(ctx, team, players); err != nil {
		return fmt.Errorf("failed to create team: %w", err)
	}

	metrics.TeamsGenerated.Inc()
	g.log.Info("team created", "user", userID, "team", team.ID, "players", len(players))
	return nil
}

func (g *Generator) pick(pool []string) string {
	return pool[g.rng.Intn(len(pool))]
}

// age draws a player age between 18 and 35.
func (g *Generator) age() int {
	return 18 + g.rng.Intn(18)
}

// marketValue draws a base value between 500K and 1M, then applies the
// position modifier.
func (g *Generator) marketValue(position string) decimal.Decimal {
	base := 500_000 + g.rng.Intn(500_000)
	modifier := valueModifiers[position]
	if modifier == 0 {
		modifier = 1
	}
	return decimal.NewFromInt(int64(base)).Mul(decimal.NewFromFloat(modifier)).Round(0)
}
