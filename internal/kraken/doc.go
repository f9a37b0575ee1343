// Package kraken encodes subscribe requests and decodes frames of the Kraken
// public websocket API (v1).
//
// Book frames are JSON arrays:
//
//	[channelID, {"as": [...], "bs": [...]}, "book-10", "XBT/USD"]   snapshot
//	[channelID, {"a": [...]}, {"b": [...]}, "book-10", "XBT/USD"]   delta
//
// Each level is [price, volume, timestamp] with an optional trailing "r"
// (republish) marker. Control frames are JSON objects keyed by "event".
package kraken
