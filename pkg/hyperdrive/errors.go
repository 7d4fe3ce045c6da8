package hyperdrive

import "errors"

var (
	// ErrZeroAmount rejects trades and liquidity operations with no size.
	ErrZeroAmount = errors.New("zero amount")

	// ErrInvalidTimestamp rejects maturity or checkpoint times that are not
	// aligned to the checkpoint grid or lie outside the allowed range.
	ErrInvalidTimestamp = errors.New("invalid timestamp")

	// ErrOutputBelowMinimum is the slippage failure for receivers.
	ErrOutputBelowMinimum = errors.New("output below specified minimum")

	// ErrInputAboveMaximum is the slippage failure for payers.
	ErrInputAboveMaximum = errors.New("input above specified maximum")

	// ErrMinSharePrice rejects opens when the vault share price has fallen
	// below the trader's stated floor.
	ErrMinSharePrice = errors.New("vault share price below specified minimum")

	// ErrUnsupportedTrade marks the bonds-out, partially-matured solve that
	// this generation of the engine deliberately does not price.
	ErrUnsupportedTrade = errors.New("unsupported trade: bonds out before maturity")

	// ErrInsufficientLiquidity is returned when reserves cannot cover a
	// trade or withdrawal.
	ErrInsufficientLiquidity = errors.New("insufficient liquidity")

	// ErrPoolNotInitialized guards every operation before Initialize.
	ErrPoolNotInitialized = errors.New("pool not initialized")

	// ErrPoolAlreadyInitialized guards a second Initialize.
	ErrPoolAlreadyInitialized = errors.New("pool already initialized")

	// ErrPositionNotMatured is returned when a matured-only claim is
	// attempted before the position's checkpoint has been applied.
	ErrPositionNotMatured = errors.New("position not matured")
)
