package domain

import "errors"

var (
	ErrNotFound           = errors.New("not found")
	ErrNoAdapterForVenue  = errors.New("no trade adapter for venue")
	ErrUnknownInstrument  = errors.New("unknown instrument")
	ErrUntrackedOrder     = errors.New("order update for untracked client order id")
	ErrDuplicateOrder     = errors.New("client order id already tracked")
	ErrInvalidBookUpdate  = errors.New("invalid order book update kind")
	ErrUnderDeterminedFit = errors.New("quote count must exceed curve fit order")
)
