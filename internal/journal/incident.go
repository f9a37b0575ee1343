package journal

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/rickgao/krakenbook/internal/book"
	"github.com/rickgao/krakenbook/internal/connection"
	"github.com/rickgao/krakenbook/internal/dispatch"
)

// Kind classifies an incident.
type Kind string

const (
	KindTransition  Kind = "transition"
	KindConsistency Kind = "consistency"
	KindOutOfOrder  Kind = "out_of_order"
	KindExhausted   Kind = "exhausted"
	KindError       Kind = "error"
)

// Incident is one row of book_incidents.
type Incident struct {
	ID         uuid.UUID
	Instance   string
	Identity   string
	Kind       Kind
	Detail     string
	ConnID     string
	Retries    int
	OccurredAt time.Time
}

// FromTransition builds an incident from a connection state change.
func FromTransition(t connection.Transition) Incident {
	detail := t.From.String() + " -> " + t.To.String()
	if t.Err != nil {
		detail += ": " + t.Err.Error()
	}
	return Incident{
		Identity:   t.Identity.String(),
		Kind:       KindTransition,
		Detail:     detail,
		ConnID:     t.ConnID,
		Retries:    t.Retries,
		OccurredAt: t.At,
	}
}

// FromError builds an incident from an error delivered to a handler.
func FromError(id dispatch.Identity, err error) Incident {
	return Incident{
		Identity: id.String(),
		Kind:     Classify(err),
		Detail:   err.Error(),
	}
}

// Classify maps a handler error to an incident kind.
func Classify(err error) Kind {
	switch {
	case errors.Is(err, connection.ErrReconnectExhausted):
		return KindExhausted
	case errors.Is(err, dispatch.ErrOutOfOrderDelta):
		return KindOutOfOrder
	case errors.Is(err, book.ErrCrossedBook), errors.Is(err, book.ErrRemoveNonexistentLevel):
		return KindConsistency
	default:
		return KindError
	}
}

func (i Incident) String() string {
	return fmt.Sprintf("%s %s %s", i.Identity, i.Kind, i.Detail)
}
