// Package book implements the local order book replica.
//
// A Replica owns two LevelMaps (bids, asks). Each LevelMap is an ordered
// B-tree keyed by exact decimal price, sorted so the first level is always
// the best price for that side:
//   - asks ascending
//   - bids descending
//
// A Replica is not safe for concurrent use. It is owned by the single stream
// that feeds it; readers outside that stream work on a Clone.
package book
