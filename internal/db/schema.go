package db

// Schema is the DDL for the fuc database.
const Schema = `
CREATE TABLE IF NOT EXISTS emails (
    id           TEXT PRIMARY KEY,
    success      INTEGER NOT NULL,
    processed_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS works (
    id       INTEGER PRIMARY KEY,
    title    TEXT NOT NULL,
    detailed INTEGER NOT NULL DEFAULT 0,
    authors  TEXT,
    chapters TEXT,
    fandom   TEXT,
    rating   TEXT,
    warnings TEXT,
    series   TEXT,
    summary  TEXT
);

CREATE TABLE IF NOT EXISTS updates (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    work_id     INTEGER NOT NULL REFERENCES works(id),
    chapter_id  INTEGER,
    title       TEXT NOT NULL,
    summary     TEXT,
    received_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS tokens (
    id         INTEGER PRIMARY KEY CHECK (id = 1),
    token      TEXT NOT NULL,
    updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS state (
    key   TEXT PRIMARY KEY,
    value TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_updates_work ON updates(work_id);
CREATE INDEX IF NOT EXISTS idx_updates_received ON updates(received_at DESC);
CREATE INDEX IF NOT EXISTS idx_emails_processed ON emails(processed_at DESC);
`
