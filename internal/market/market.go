// Package market implements the transfer-market core: the listing manager,
// the catalog read path, and the trade engine. The trade engine is the only
// component that needs multi-row atomicity; it delegates serializability to
// the store's Transact primitive and never takes in-process locks, so
// correctness holds across multiple server instances.
package market

import (
	"context"
	"errors"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/fantasydesk/transfermarket/internal/metrics"
	"github.com/fantasydesk/transfermarket/internal/models"
	"github.com/fantasydesk/transfermarket/internal/store"
)

// Roster bounds enforced on every trade once gameplay has started.
const (
	MinRosterSize = 15
	MaxRosterSize = 25
)

// commissionRate is the 5% of the asking price retained by the platform.
var commissionRate = decimal.New(5, -2)

// Engine exposes the market operations. Safe for concurrent use.
type Engine struct {
	store store.Store
	log   *slog.Logger

	mu   sync.Mutex
	rng  *rand.Rand
	draw func() float64 // uniform in [0, 1); overridable for tests
}

// NewEngine creates a market engine on top of a store.
func NewEngine(st store.Store, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	e := &Engine{
		store: st,
		log:   logger,
		rng:   rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	e.draw = e.randomDraw
	return e
}

// SetValueDraw replaces the random draw behind the post-sale valuation
// bump. Tests pin it to keep the property suite reproducible.
func (e *Engine) SetValueDraw(draw func() float64) {
	e.draw = draw
}

func (e *Engine) randomDraw() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rng.Float64()
}

// Search returns all listed players matching the filter, each joined with
// the selling team's public name and country. The result may be stale by
// the time a buy is attempted; Buy re-validates inside its atomic unit.
func (e *Engine) Search(ctx context.Context, f store.CatalogFilter) ([]models.ListedPlayer, error) {
	if f.MaxPrice != nil && f.MaxPrice.IsNegative() {
		return nil, ErrInvalidPrice
	}
	return e.store.SearchListings(ctx, f)
}

// ListPlayer puts one of the caller's players up for sale at askingPrice.
func (e *Engine) ListPlayer(ctx context.Context, userID, playerID string, askingPrice decimal.Decimal) (*models.Player, error) {
	if askingPrice.LessThanOrEqual(decimal.Zero) {
		return nil, ErrInvalidPrice
	}

	player, err := e.store.GetPlayerOwnedBy(ctx, playerID, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotOwner
		}
		return nil, err
	}
	if player.IsListed {
		return nil, ErrAlreadyListed
	}

	updated, err := e.store.UpdateListing(ctx, playerID, userID, &askingPrice)
	if err != nil {
		// The guard re-checks listing state and ownership at write time;
		// losing that race is the same failure as the check above.
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrAlreadyListed
		}
		return nil, err
	}

	metrics.ListingsTotal.WithLabelValues("create").Inc()
	e.log.Info("player listed",
		"player", playerID,
		"user", userID,
		"asking_price", askingPrice.String(),
	)
	return updated, nil
}

// UnlistPlayer withdraws one of the caller's players from the market.
func (e *Engine) UnlistPlayer(ctx context.Context, userID, playerID string) (*models.Player, error) {
	player, err := e.store.GetPlayerOwnedBy(ctx, playerID, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotOwner
		}
		return nil, err
	}
	if !player.IsListed {
		return nil, ErrNotListed
	}

	updated, err := e.store.UpdateListing(ctx, playerID, userID, nil)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotListed
		}
		return nil, err
	}

	metrics.ListingsTotal.WithLabelValues("withdraw").Inc()
	e.log.Info("player unlisted", "player", playerID, "user", userID)
	return updated, nil
}

// Buy executes a player purchase as one atomic unit: every read below is
// taken inside the same transaction that performs the writes, so two buyers
// racing for the same listing cannot both succeed — the loser re-observes
// the cleared listing on its fresh read and fails with ErrPlayerNotForSale.
func (e *Engine) Buy(ctx context.Context, buyerUserID, playerID string) (*models.TransferReceipt, error) {
	var receipt *models.TransferReceipt

	err := e.store.Transact(ctx, func(tx store.Tx) error {
		buyer, err := tx.LockTeamByUserID(ctx, buyerUserID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrBuyerTeamNotFound
			}
			return err
		}
		if buyer.RosterSize >= MaxRosterSize {
			return ErrRosterFull
		}

		player, err := tx.LockPlayer(ctx, playerID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrPlayerNotFound
			}
			return err
		}
		if !player.IsListed {
			return ErrPlayerNotForSale
		}
		if player.TeamID == buyer.ID {
			return ErrSelfTrade
		}

		seller, err := tx.LockTeam(ctx, player.TeamID)
		if err != nil {
			return err
		}
		if seller.RosterSize <= MinRosterSize {
			return ErrSellerRosterAtFloor
		}

		price := *player.AskingPrice
		if buyer.Budget.LessThan(price) {
			return ErrInsufficientFunds
		}

		// Buyer pays 100%; seller receives 95%; the platform keeps 5%.
		commission := price.Mul(commissionRate).Round(2)
		sellerRevenue := price.Sub(commission)

		if err := tx.AdjustTeam(ctx, buyer.ID, price.Neg(), +1); err != nil {
			return err
		}
		if err := tx.AdjustTeam(ctx, seller.ID, sellerRevenue, -1); err != nil {
			return err
		}

		newValue := bumpValuation(player.MarketValue, e.draw())
		if err := tx.TransferPlayer(ctx, player.ID, buyer.ID, newValue); err != nil {
			return err
		}

		if err := tx.InsertTradeRecord(ctx, &models.TradeRecord{
			ID:           uuid.New().String(),
			PlayerID:     player.ID,
			SellerTeamID: seller.ID,
			BuyerTeamID:  buyer.ID,
			AskingPrice:  price,
			SalePrice:    sellerRevenue,
			Commission:   commission,
			ExecutedAt:   time.Now().UTC(),
		}); err != nil {
			return err
		}

		receipt = &models.TransferReceipt{
			Message:    "Player purchased successfully",
			PlayerID:   player.ID,
			Price:      price,
			Commission: commission,
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			err = ErrTransientStore
		}
		metrics.TradeRejections.WithLabelValues(rejectionReason(err)).Inc()
		return nil, err
	}

	metrics.TradesTotal.Inc()
	e.log.Info("player purchased",
		"player", receipt.PlayerID,
		"buyer", buyerUserID,
		"price", receipt.Price.String(),
		"commission", receipt.Commission.String(),
	)
	return receipt, nil
}

// History returns the trade records involving the caller's team, oldest
// first. The audit trail itself is append-only and served straight from
// the store.
func (e *Engine) History(ctx context.Context, userID string) ([]models.TradeRecord, error) {
	team, err := e.store.GetTeamByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrTeamNotFound
		}
		return nil, err
	}
	return e.store.TradesByTeam(ctx, team.ID)
}

// bumpValuation returns the post-sale market value, drawn uniformly from
// [value, value*1.1) for draw in [0, 1).
func bumpValuation(value decimal.Decimal, draw float64) decimal.Decimal {
	return value.Mul(decimal.NewFromFloat(1 + draw*0.1)).Round(2)
}

func rejectionReason(err error) string {
	switch {
	case errors.Is(err, ErrBuyerTeamNotFound):
		return "buyer_team_not_found"
	case errors.Is(err, ErrRosterFull):
		return "roster_full"
	case errors.Is(err, ErrPlayerNotFound):
		return "player_not_found"
	case errors.Is(err, ErrPlayerNotForSale):
		return "not_for_sale"
	case errors.Is(err, ErrSelfTrade):
		return "self_trade"
	case errors.Is(err, ErrSellerRosterAtFloor):
		return "seller_at_floor"
	case errors.Is(err, ErrInsufficientFunds):
		return "insufficient_funds"
	case errors.Is(err, ErrTransientStore):
		return "store_conflict"
	default:
		return "internal"
	}
}
