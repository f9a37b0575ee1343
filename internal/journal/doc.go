// Package journal records stream incidents to PostgreSQL.
//
// Incidents are connection state changes, book consistency violations and
// retry exhaustion. They are queued by Record, accumulated into batches and
// written to the book_incidents table on a size or time trigger:
//
//	w := journal.NewWriter(cfg, pool, logger)
//	w.Start(ctx)
//	defer w.Stop(stopCtx)
//	w.Record(journal.FromTransition(t))
//
// The journal is an audit trail. Book state is never written.
package journal
