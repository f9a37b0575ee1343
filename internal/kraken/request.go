package kraken

import (
	"github.com/goccy/go-json"
)

// Default endpoints.
const (
	PublicURL  = "wss://ws.kraken.com"
	PrivateURL = "wss://ws-auth.kraken.com"
)

// Subscription describes the channel being subscribed to.
type Subscription struct {
	Name  string `json:"name"`
	Depth int    `json:"depth,omitempty"`
	Token string `json:"token,omitempty"`
}

// SubscribeRequest is the client -> server subscribe/unsubscribe frame.
type SubscribeRequest struct {
	Event        string       `json:"event"`
	ReqID        int64        `json:"reqid,omitempty"`
	Pair         []string     `json:"pair,omitempty"`
	Subscription Subscription `json:"subscription"`
}

// NewSubscribe builds a subscribe request for channel name on pairs.
func NewSubscribe(name string, depth int, pairs ...string) SubscribeRequest {
	return SubscribeRequest{
		Event:        "subscribe",
		Pair:         pairs,
		Subscription: Subscription{Name: name, Depth: depth},
	}
}

// Unsubscribe returns the matching unsubscribe request.
func (r SubscribeRequest) Unsubscribe() SubscribeRequest {
	u := r
	u.Event = "unsubscribe"
	u.Pair = append([]string(nil), r.Pair...)
	return u
}

// Symbol returns the first pair, or "" for pairless channels.
func (r SubscribeRequest) Symbol() string {
	if len(r.Pair) == 0 {
		return ""
	}
	return r.Pair[0]
}

// Encode serializes the request as a text frame payload.
func (r SubscribeRequest) Encode() ([]byte, error) {
	return json.Marshal(r)
}
