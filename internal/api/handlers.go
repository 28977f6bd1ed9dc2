// Package api provides the HTTP handlers for the transfer market.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/fantasydesk/transfermarket/internal/auth"
	"github.com/fantasydesk/transfermarket/internal/market"
	"github.com/fantasydesk/transfermarket/internal/models"
	"github.com/fantasydesk/transfermarket/internal/roster"
	"github.com/fantasydesk/transfermarket/internal/store"
)

type contextKey string

const userIDKey contextKey = "user_id"

// Handler contains dependencies for HTTP handlers.
type Handler struct {
	Store       store.Store
	Market      *market.Engine
	AuthService *auth.AuthService
	Roster      *roster.Generator
}

// NewHandler creates a new handler.
func NewHandler(st store.Store, engine *market.Engine, authService *auth.AuthService, gen *roster.Generator) *Handler {
	return &Handler{Store: st, Market: engine, AuthService: authService, Roster: gen}
}

// Routes mounts all endpoints on a fresh router.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/auth/register", h.Register)
	r.Post("/auth/login", h.Login)

	r.Group(func(r chi.Router) {
		r.Use(h.JWTAuthMiddleware)
		r.Get("/transfers", h.GetTransfers)
		r.Post("/transfers/list/{playerID}", h.CreateListing)
		r.Delete("/transfers/list/{playerID}", h.WithdrawListing)
		r.Post("/transfers/buy", h.BuyPlayer)
		r.Get("/team", h.GetTeam)
		r.Get("/trades", h.GetTrades)
	})

	return r
}

// Register handles user registration and queues roster generation.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if req.Username == "" || req.Password == "" {
		writeError(w, "username and password required", http.StatusBadRequest)
		return
	}

	user, err := h.AuthService.Register(r.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			writeError(w, "username already taken", http.StatusConflict)
			return
		}
		writeError(w, "failed to register user", http.StatusInternalServerError)
		return
	}

	// The initial squad is built asynchronously; the team reports
	// is_ready=true once its 20 players exist.
	if h.Roster != nil {
		h.Roster.Enqueue(user.ID)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"id":       user.ID,
		"username": user.Username,
	})
}

// Login handles user login.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	token, err := h.AuthService.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		writeError(w, "invalid credentials", http.StatusUnauthorized)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"token": token})
}

// JWTAuthMiddleware verifies JWT tokens and injects the user id.
func (h *Handler) JWTAuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenString := r.Header.Get("Authorization")
		if tokenString == "" {
			writeError(w, "authorization header required", http.StatusUnauthorized)
			return
		}

		if len(tokenString) > 7 && tokenString[:7] == "Bearer " {
			tokenString = tokenString[7:]
		}

		userID, err := h.AuthService.GetUserFromToken(tokenString)
		if err != nil {
			writeError(w, "invalid or expired token", http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), userIDKey, userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetTransfers handles GET /transfers with optional filters
// team_name, player_name, and max_price.
func (h *Handler) GetTransfers(w http.ResponseWriter, r *http.Request) {
	filter := store.CatalogFilter{
		TeamName:   r.URL.Query().Get("team_name"),
		PlayerName: r.URL.Query().Get("player_name"),
	}
	if raw := r.URL.Query().Get("max_price"); raw != "" {
		maxPrice, err := decimal.NewFromString(raw)
		if err != nil {
			writeError(w, "invalid max_price", http.StatusBadRequest)
			return
		}
		filter.MaxPrice = &maxPrice
	}

	listings, err := h.Market.Search(r.Context(), filter)
	if err != nil {
		writeMarketError(w, err)
		return
	}
	if listings == nil {
		listings = []models.ListedPlayer{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(listings)
}

// CreateListing handles POST /transfers/list/{playerID}.
func (h *Handler) CreateListing(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value(userIDKey).(string)
	if !ok {
		writeError(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	playerID := chi.URLParam(r, "playerID")
	if uuid.Validate(playerID) != nil {
		writeError(w, "invalid player ID format", http.StatusBadRequest)
		return
	}

	var req struct {
		AskingPrice decimal.Decimal `json:"asking_price"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	player, err := h.Market.ListPlayer(r.Context(), userID, playerID, req.AskingPrice)
	if err != nil {
		writeMarketError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(player)
}

// WithdrawListing handles DELETE /transfers/list/{playerID}.
func (h *Handler) WithdrawListing(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value(userIDKey).(string)
	if !ok {
		writeError(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	playerID := chi.URLParam(r, "playerID")
	if uuid.Validate(playerID) != nil {
		writeError(w, "invalid player ID format", http.StatusBadRequest)
		return
	}

	player, err := h.Market.UnlistPlayer(r.Context(), userID, playerID)
	if err != nil {
		writeMarketError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(player)
}

// BuyPlayer handles POST /transfers/buy.
func (h *Handler) BuyPlayer(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value(userIDKey).(string)
	if !ok {
		writeError(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var req struct {
		PlayerID string `json:"player_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if uuid.Validate(req.PlayerID) != nil {
		writeError(w, "invalid player ID format", http.StatusBadRequest)
		return
	}

	receipt, err := h.Market.Buy(r.Context(), userID, req.PlayerID)
	if err != nil {
		writeMarketError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(receipt)
}

// GetTeam handles GET /team, returning the caller's team with players.
func (h *Handler) GetTeam(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value(userIDKey).(string)
	if !ok {
		writeError(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	team, err := h.Store.GetTeamByUserID(r.Context(), userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, "team not found", http.StatusNotFound)
			return
		}
		writeError(w, "failed to retrieve team", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(team)
}

// GetTrades handles GET /trades, returning the caller's trade history.
func (h *Handler) GetTrades(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value(userIDKey).(string)
	if !ok {
		writeError(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	records, err := h.Market.History(r.Context(), userID)
	if err != nil {
		writeMarketError(w, err)
		return
	}
	if records == nil {
		records = []models.TradeRecord{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(records)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// writeMarketError maps the market error taxonomy to HTTP status codes.
func writeMarketError(w http.ResponseWriter, err error) {
	writeError(w, err.Error(), statusFor(err))
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, market.ErrNotOwner),
		errors.Is(err, market.ErrPlayerNotFound),
		errors.Is(err, market.ErrTeamNotFound),
		errors.Is(err, market.ErrBuyerTeamNotFound):
		return http.StatusNotFound
	case errors.Is(err, market.ErrInvalidPrice),
		errors.Is(err, market.ErrAlreadyListed),
		errors.Is(err, market.ErrNotListed),
		errors.Is(err, market.ErrRosterFull),
		errors.Is(err, market.ErrPlayerNotForSale),
		errors.Is(err, market.ErrSelfTrade),
		errors.Is(err, market.ErrSellerRosterAtFloor),
		errors.Is(err, market.ErrInsufficientFunds):
		return http.StatusBadRequest
	case errors.Is(err, market.ErrTransientStore):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
