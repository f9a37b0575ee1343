// Package dispatch routes decoded frames to the replica and handler owning
// each subscription identity.
//
// Every identity has its own lock and is fed by exactly one connection
// reader, so frames for one identity are processed in arrival order while
// different identities proceed independently.
package dispatch
