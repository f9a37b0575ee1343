// Package database opens the PostgreSQL pool used by the incident journal.
//
// The book replicas themselves are never persisted; only the journal talks
// to the database, and only when journal.enabled is set.
package database
