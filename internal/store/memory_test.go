package store

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fantasydesk/transfermarket/internal/models"
)

func seedMemTeam(t *testing.T, ms *MemoryStore, size int) *models.Team {
	t.Helper()
	ctx := context.Background()

	team := &models.Team{
		ID:      uuid.New().String(),
		UserID:  uuid.New().String(),
		Name:    "Team " + uuid.New().String()[:8],
		Country: "Italy",
		Budget:  decimal.NewFromInt(5_000_000),
	}
	var players []models.Player
	for i := 0; i < size; i++ {
		players = append(players, models.Player{
			ID:          uuid.New().String(),
			FirstName:   "First",
			LastName:    fmt.Sprintf("Last%02d", i),
			Nationality: "Italy",
			Position:    "DEF",
			Age:         24,
			MarketValue: decimal.NewFromInt(700_000),
		})
	}
	require.NoError(t, ms.CreateTeam(ctx, team, players))
	got, err := ms.GetTeamByUserID(ctx, team.UserID)
	require.NoError(t, err)
	return got
}

func TestMemoryUpdateListingRequiresOwner(t *testing.T) {
	ms := NewMemoryStore()
	ctx := context.Background()
	team := seedMemTeam(t, ms, 16)
	stranger := uuid.New().String()
	price := decimal.NewFromInt(100_000)
	playerID := team.Players[0].ID

	_, err := ms.UpdateListing(ctx, playerID, stranger, &price)
	assert.ErrorIs(t, err, ErrNotFound)

	listed, err := ms.UpdateListing(ctx, playerID, team.UserID, &price)
	require.NoError(t, err)
	assert.True(t, listed.IsListed)

	// A stale withdraw from a non-owner must not clear the listing.
	_, err = ms.UpdateListing(ctx, playerID, stranger, nil)
	assert.ErrorIs(t, err, ErrNotFound)

	listings, err := ms.SearchListings(ctx, CatalogFilter{})
	require.NoError(t, err)
	require.Len(t, listings, 1)
	assert.True(t, listings[0].IsListed)
}

func TestMemoryPlayersSortedDeterministically(t *testing.T) {
	ms := NewMemoryStore()
	ctx := context.Background()

	team := &models.Team{
		ID:      uuid.New().String(),
		UserID:  uuid.New().String(),
		Name:    "Tied FC",
		Country: "Spain",
		Budget:  decimal.NewFromInt(1_000_000),
	}
	// Two full name collisions within one position; order must still be
	// stable across reads.
	players := []models.Player{
		{ID: "00000000-0000-0000-0000-00000000000b", FirstName: "Pablo", LastName: "Oliveira", Nationality: "Brazil", Position: "DEF", Age: 24, MarketValue: decimal.NewFromInt(1)},
		{ID: "00000000-0000-0000-0000-00000000000a", FirstName: "Pablo", LastName: "Oliveira", Nationality: "Brazil", Position: "DEF", Age: 27, MarketValue: decimal.NewFromInt(2)},
		{ID: uuid.New().String(), FirstName: "Sergio", LastName: "Oliveira", Nationality: "Brazil", Position: "DEF", Age: 25, MarketValue: decimal.NewFromInt(3)},
	}
	require.NoError(t, ms.CreateTeam(ctx, team, players))

	first, err := ms.GetTeamByUserID(ctx, team.UserID)
	require.NoError(t, err)
	require.Len(t, first.Players, 3)

	// Ties fall back to first name, then id.
	assert.Equal(t, "Pablo", first.Players[0].FirstName)
	assert.Equal(t, "00000000-0000-0000-0000-00000000000a", first.Players[0].ID)
	assert.Equal(t, "00000000-0000-0000-0000-00000000000b", first.Players[1].ID)
	assert.Equal(t, "Sergio", first.Players[2].FirstName)

	for i := 0; i < 10; i++ {
		again, err := ms.GetTeamByUserID(ctx, team.UserID)
		require.NoError(t, err)
		for j := range first.Players {
			assert.Equal(t, first.Players[j].ID, again.Players[j].ID)
		}
	}
}

func TestMemoryCreateTeamConflict(t *testing.T) {
	ms := NewMemoryStore()
	team := seedMemTeam(t, ms, 16)

	dup := &models.Team{ID: uuid.New().String(), UserID: team.UserID, Name: "Dup"}
	assert.ErrorIs(t, ms.CreateTeam(context.Background(), dup, nil), ErrConflict)
}

func TestMemoryTransactStagesWrites(t *testing.T) {
	ms := NewMemoryStore()
	ctx := context.Background()
	team := seedMemTeam(t, ms, 16)
	sentinel := fmt.Errorf("abort")

	// A failed unit applies nothing, even after staging writes.
	err := ms.Transact(ctx, func(tx Tx) error {
		if err := tx.AdjustTeam(ctx, team.ID, decimal.NewFromInt(123), 0); err != nil {
			return err
		}
		if err := tx.TransferPlayer(ctx, team.Players[0].ID, team.ID, decimal.NewFromInt(1)); err != nil {
			return err
		}
		return sentinel
	})
	assert.ErrorIs(t, err, sentinel)

	after, err := ms.GetTeamByUserID(ctx, team.UserID)
	require.NoError(t, err)
	assert.True(t, after.Budget.Equal(team.Budget))
	assert.True(t, after.Players[0].MarketValue.Equal(decimal.NewFromInt(700_000)))

	// A successful unit applies everything.
	err = ms.Transact(ctx, func(tx Tx) error {
		return tx.AdjustTeam(ctx, team.ID, decimal.NewFromInt(123), 0)
	})
	require.NoError(t, err)

	after, err = ms.GetTeamByUserID(ctx, team.UserID)
	require.NoError(t, err)
	assert.True(t, after.Budget.Equal(decimal.NewFromInt(5_000_123)))
}

func TestMemoryTransactReadsSeeCurrentState(t *testing.T) {
	ms := NewMemoryStore()
	ctx := context.Background()
	team := seedMemTeam(t, ms, 16)

	err := ms.Transact(ctx, func(tx Tx) error {
		locked, err := tx.LockTeamByUserID(ctx, team.UserID)
		if err != nil {
			return err
		}
		assert.Equal(t, 16, locked.RosterSize)

		player, err := tx.LockPlayer(ctx, team.Players[0].ID)
		if err != nil {
			return err
		}
		assert.Equal(t, team.ID, player.TeamID)
		return nil
	})
	require.NoError(t, err)

	err = ms.Transact(ctx, func(tx Tx) error {
		_, err := tx.LockTeam(ctx, uuid.New().String())
		return err
	})
	assert.ErrorIs(t, err, ErrNotFound)
}
