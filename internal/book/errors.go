package book

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Errors
var (
	ErrLevelNotFound          = errors.New("level not found")
	ErrRemoveNonexistentLevel = errors.New("remove non-existing level")
	ErrCrossedBook            = errors.New("crossed book")
)

// RemoveError reports a delta that asked to remove a price the replica does
// not hold. The replica has desynchronized from the feed.
type RemoveError struct {
	Side  Side
	Price decimal.Decimal
}

func (e *RemoveError) Error() string {
	return fmt.Sprintf("remove non-existing %s level %s", e.Side, e.Price)
}

func (e *RemoveError) Unwrap() error {
	return ErrRemoveNonexistentLevel
}

// CrossedBookError reports best ask below best bid after a fully applied update.
type CrossedBookError struct {
	BestBid    decimal.Decimal
	BestAsk    decimal.Decimal
	LastUpdate float64
}

func (e *CrossedBookError) Error() string {
	return fmt.Sprintf("crossed book: ask %s < bid %s (last update %.6f)", e.BestAsk, e.BestBid, e.LastUpdate)
}

func (e *CrossedBookError) Unwrap() error {
	return ErrCrossedBook
}
