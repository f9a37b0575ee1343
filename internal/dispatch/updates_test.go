package dispatch

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rickgao/krakenbook/internal/kraken"
)

func TestUpdates_QueuesCallbacksInOrder(t *testing.T) {
	d := New(nil, nil)
	u := NewUpdates(4, 0)
	require.NoError(t, d.Register(xbtusd, u))

	d.Dispatch(xbtusd, []byte(snapshotFrame))
	d.Dispatch(xbtusd, []byte(updateFrame))
	d.Dispatch(xbtusd, []byte(`{"event":"heartbeat"}`))
	d.NotifyError(xbtusd, errors.New("boom"))
	u.Close()

	var kinds []UpdateKind
	for {
		upd, ok := u.Next()
		if !ok {
			break
		}
		assert.Equal(t, xbtusd, upd.Identity)
		kinds = append(kinds, upd.Kind)
	}
	assert.Equal(t, []UpdateKind{UpdateSnapshot, UpdateBook, UpdateEvent, UpdateError}, kinds)
	assert.Equal(t, int64(4), u.Stats().TotalSent)
}

func TestUpdates_BooksAreCopies(t *testing.T) {
	d := New(nil, nil)
	u := NewUpdates(4, 0)
	require.NoError(t, d.Register(xbtusd, u))

	d.Dispatch(xbtusd, []byte(snapshotFrame))
	d.Dispatch(xbtusd, []byte(updateFrame))

	first, ok := u.Next()
	require.True(t, ok)
	second, ok := u.Next()
	require.True(t, ok)

	assert.Equal(t, 2, first.Book.Bids().Len(), "snapshot copy unaffected by later delta")
	assert.Equal(t, 3, second.Book.Bids().Len())
}

func TestUpdates_EventPayload(t *testing.T) {
	u := NewUpdates(1, 0)
	u.OnEvent(xbtusd, kraken.ReconnectExhaustedEvent())

	upd, ok := u.Next()
	require.True(t, ok)
	assert.Equal(t, UpdateEvent, upd.Kind)
	assert.Equal(t, "Max reconnect retries reached", upd.Event.ErrorMessage)
	assert.Equal(t, "event", upd.Kind.String())
}
