package domain

import "errors"

var (
	ErrAccountNotFound    = errors.New("credit account not found")
	ErrHistoryUnsupported = errors.New("transaction history not supported by storage backend")
	ErrInvalidAmount      = errors.New("amount must not be negative")
	ErrCreditsDisabled    = errors.New("credit system disabled")
)
