package journal

// Schema creates the incident table. Safe to run on every start.
const Schema = `
CREATE TABLE IF NOT EXISTS book_incidents (
	id          UUID PRIMARY KEY,
	instance    TEXT        NOT NULL,
	identity    TEXT        NOT NULL,
	kind        TEXT        NOT NULL,
	detail      TEXT        NOT NULL DEFAULT '',
	conn_id     TEXT        NOT NULL DEFAULT '',
	retries     INTEGER     NOT NULL DEFAULT 0,
	occurred_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS book_incidents_identity_idx
	ON book_incidents (identity, occurred_at);
`

const insertIncident = `
	INSERT INTO book_incidents (id, instance, identity, kind, detail, conn_id, retries, occurred_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	ON CONFLICT (id) DO NOTHING
`
