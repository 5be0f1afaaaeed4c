package ledger

import "errors"

var (
	ErrInvalidWeight      = errors.New("weight must be a positive number of kilograms, at most 100")
	ErrInvalidMaterial    = errors.New("material type is required")
	ErrUserNotFound       = errors.New("user not found")
	ErrRewardNotFound     = errors.New("reward not found")
	ErrRewardUnavailable  = errors.New("reward is not available")
	ErrInsufficientPoints = errors.New("insufficient points")
	ErrZeroAdjustment     = errors.New("adjustment must be non-zero")
	ErrAdjustmentTooLarge = errors.New("adjustment is too large")
	ErrBalanceLimit       = errors.New("balance would exceed the maximum")
)
