package kraken

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
	"github.com/shopspring/decimal"

	"github.com/rickgao/krakenbook/internal/book"
)

// RemoveVolume is the volume string that instructs removal of a level.
const RemoveVolume = "0.00000000"

// Errors
var (
	ErrMalformedMessage = errors.New("malformed message")
)

// Kind classifies a decoded frame.
type Kind int

const (
	KindUnknown  Kind = iota
	KindSnapshot      // full book: "as" / "bs"
	KindDelta         // incremental: "a" / "b"
	KindEvent         // control object: heartbeat, subscriptionStatus, error...
	KindData          // channel data that is not book shaped (ticker, trade...)
)

func (k Kind) String() string {
	switch k {
	case KindSnapshot:
		return "snapshot"
	case KindDelta:
		return "delta"
	case KindEvent:
		return "event"
	case KindData:
		return "data"
	default:
		return "unknown"
	}
}

// Message is a decoded frame.
type Message struct {
	Kind      Kind
	ChannelID int64
	Channel   string // As sent by the server, e.g. "book-10"
	Pair      string

	// Book levels for KindSnapshot and KindDelta, in arrival order.
	Asks     []book.Entry
	Bids     []book.Entry
	Checksum string

	// Control payload for KindEvent and KindData.
	Event Event
}

// Delta returns the book changes carried by a delta message.
func (m Message) Delta() book.Delta {
	return book.Delta{Asks: m.Asks, Bids: m.Bids}
}

// Event is a control frame passed to handlers without book interpretation.
type Event struct {
	Name         string `json:"event"`
	Status       string `json:"status,omitempty"`
	ChannelName  string `json:"channelName,omitempty"`
	Pair         string `json:"pair,omitempty"`
	ErrorMessage string `json:"errorMessage,omitempty"`
	Raw          []byte `json:"-"`
}

// IsError reports whether the event carries an error.
func (e Event) IsError() bool {
	return e.Name == "error" || e.Status == "error"
}

// ReconnectExhaustedEvent is delivered when a subscription gives up reconnecting.
func ReconnectExhaustedEvent() Event {
	return Event{
		Name:         "error",
		ErrorMessage: "Max reconnect retries reached",
		Raw:          []byte(`{"e":"error","m":"Max reconnect retries reached"}`),
	}
}

// ChannelBase strips the depth suffix: "book-10" -> "book".
func ChannelBase(channel string) string {
	if i := strings.IndexByte(channel, '-'); i >= 0 {
		return channel[:i]
	}
	return channel
}

// ChannelDepth returns the depth suffix of a channel name: "book-25" -> 25.
// It returns 0 when there is no numeric suffix.
func ChannelDepth(channel string) int {
	i := strings.IndexByte(channel, '-')
	if i < 0 {
		return 0
	}
	n, err := strconv.Atoi(channel[i+1:])
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// Parse decodes a single text frame.
func Parse(data []byte) (Message, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return Message{}, fmt.Errorf("%w: empty frame", ErrMalformedMessage)
	}

	switch trimmed[0] {
	case '[':
		return parseChannelFrame(trimmed)
	case '{':
		return parseEventFrame(trimmed)
	default:
		return Message{}, fmt.Errorf("%w: unexpected leading byte %q", ErrMalformedMessage, trimmed[0])
	}
}

// shortEvent is the terminal {"e": ..., "m": ...} form.
type shortEvent struct {
	E string `json:"e"`
	M string `json:"m"`
}

func parseEventFrame(data []byte) (Message, error) {
	var ev Event
	if err := json.Unmarshal(data, &ev); err != nil {
		return Message{}, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	if ev.Name == "" {
		var short shortEvent
		if err := json.Unmarshal(data, &short); err != nil || short.E == "" {
			return Message{}, fmt.Errorf("%w: object without event", ErrMalformedMessage)
		}
		ev.Name = short.E
		ev.ErrorMessage = short.M
	}
	ev.Raw = append([]byte(nil), data...)

	return Message{
		Kind:    KindEvent,
		Channel: ev.ChannelName,
		Pair:    ev.Pair,
		Event:   ev,
	}, nil
}

func parseChannelFrame(data []byte) (Message, error) {
	var parts []json.RawMessage
	if err := json.Unmarshal(data, &parts); err != nil {
		return Message{}, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	if len(parts) < 4 {
		return Message{}, fmt.Errorf("%w: channel frame has %d elements", ErrMalformedMessage, len(parts))
	}

	var msg Message
	if err := json.Unmarshal(parts[0], &msg.ChannelID); err != nil {
		return Message{}, fmt.Errorf("%w: channel id: %v", ErrMalformedMessage, err)
	}
	if err := json.Unmarshal(parts[len(parts)-2], &msg.Channel); err != nil {
		return Message{}, fmt.Errorf("%w: channel name: %v", ErrMalformedMessage, err)
	}
	if err := json.Unmarshal(parts[len(parts)-1], &msg.Pair); err != nil {
		return Message{}, fmt.Errorf("%w: pair: %v", ErrMalformedMessage, err)
	}

	if ChannelBase(msg.Channel) != "book" {
		msg.Kind = KindData
		msg.Event = Event{
			Name:        msg.Channel,
			ChannelName: msg.Channel,
			Pair:        msg.Pair,
			Raw:         append([]byte(nil), data...),
		}
		return msg, nil
	}

	for _, raw := range parts[1 : len(parts)-2] {
		var payload map[string]json.RawMessage
		if err := json.Unmarshal(raw, &payload); err != nil {
			return Message{}, fmt.Errorf("%w: book payload: %v", ErrMalformedMessage, err)
		}
		if err := msg.absorb(payload); err != nil {
			return Message{}, err
		}
	}

	if msg.Kind == KindUnknown {
		return Message{}, fmt.Errorf("%w: book frame without levels", ErrMalformedMessage)
	}
	return msg, nil
}

// absorb merges one payload object into msg. A snapshot key anywhere in
// the frame makes the whole frame a snapshot.
func (msg *Message) absorb(payload map[string]json.RawMessage) error {
	for key, raw := range payload {
		var err error
		switch key {
		case "as":
			msg.Kind = KindSnapshot
			msg.Asks, err = appendEntries(msg.Asks, raw)
		case "bs":
			msg.Kind = KindSnapshot
			msg.Bids, err = appendEntries(msg.Bids, raw)
		case "a":
			if msg.Kind != KindSnapshot {
				msg.Kind = KindDelta
			}
			msg.Asks, err = appendEntries(msg.Asks, raw)
		case "b":
			if msg.Kind != KindSnapshot {
				msg.Kind = KindDelta
			}
			msg.Bids, err = appendEntries(msg.Bids, raw)
		case "c":
			err = json.Unmarshal(raw, &msg.Checksum)
		}
		if err != nil {
			return fmt.Errorf("%w: %s: %v", ErrMalformedMessage, key, err)
		}
	}
	return nil
}

func appendEntries(dst []book.Entry, raw json.RawMessage) ([]book.Entry, error) {
	var levels [][]string
	if err := json.Unmarshal(raw, &levels); err != nil {
		return nil, err
	}
	for i, lvl := range levels {
		e, err := ParseEntry(lvl)
		if err != nil {
			return nil, fmt.Errorf("level %d: %w", i, err)
		}
		dst = append(dst, e)
	}
	return dst, nil
}

// ParseEntry decodes a [price, volume, timestamp] triple. Extra trailing
// fields (the "r" republish marker) are ignored.
func ParseEntry(fields []string) (book.Entry, error) {
	if len(fields) < 3 {
		return book.Entry{}, fmt.Errorf("expected 3 fields, got %d", len(fields))
	}
	price, err := decimal.NewFromString(fields[0])
	if err != nil {
		return book.Entry{}, fmt.Errorf("price %q: %w", fields[0], err)
	}
	volume, err := decimal.NewFromString(fields[1])
	if err != nil {
		return book.Entry{}, fmt.Errorf("volume %q: %w", fields[1], err)
	}
	ts, err := strconv.ParseFloat(fields[2], 64)
	if err != nil {
		return book.Entry{}, fmt.Errorf("timestamp %q: %w", fields[2], err)
	}
	return book.Entry{
		Price:     price,
		Volume:    volume,
		Timestamp: ts,
		Remove:    fields[1] == RemoveVolume,
	}, nil
}
