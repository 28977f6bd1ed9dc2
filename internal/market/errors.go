package market

import "errors"

// Market failures follow a fixed taxonomy: validation errors are rejected
// before any store access, business-rule violations abort the atomic unit
// with zero side effects, and transient store failures may be retried by
// the caller. None of these leave partial state behind.
var (
	// ErrInvalidPrice rejects a listing with a non-positive asking price.
	ErrInvalidPrice = errors.New("asking price must be positive")

	// ErrNotOwner rejects listing operations on a player outside the
	// caller's team.
	ErrNotOwner = errors.New("player not found or does not belong to your team")

	// ErrAlreadyListed rejects listing a player twice.
	ErrAlreadyListed = errors.New("player is already on the transfer list")

	// ErrNotListed rejects withdrawing a player that is not listed.
	ErrNotListed = errors.New("player is not on the transfer list")

	// ErrTeamNotFound is returned when the caller has no team yet.
	ErrTeamNotFound = errors.New("team not found")

	// ErrBuyerTeamNotFound aborts a buy when the buyer has no team.
	ErrBuyerTeamNotFound = errors.New("buyer team not found")

	// ErrRosterFull aborts a buy that would push the buyer roster past 25.
	ErrRosterFull = errors.New("team is full (max 25 players)")

	// ErrPlayerNotFound aborts a buy for a player that does not exist.
	ErrPlayerNotFound = errors.New("player not found")

	// ErrPlayerNotForSale aborts a buy for a player that is not listed.
	// Racing buyers that lose the transaction also observe this error.
	ErrPlayerNotForSale = errors.New("player is not for sale")

	// ErrSelfTrade aborts buying a player from the buyer's own team.
	ErrSelfTrade = errors.New("you cannot buy your own player")

	// ErrSellerRosterAtFloor aborts a sale that would push the seller
	// roster below 15.
	ErrSellerRosterAtFloor = errors.New("seller team cannot sell more players (min 15 limit reached)")

	// ErrInsufficientFunds aborts a buy the buyer cannot afford.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrTransientStore reports that the atomic unit could not be
	// committed after bounded retries. Safe to retry; zero mutations
	// were applied.
	ErrTransientStore = errors.New("transient store failure, retry")
)
