// Package sqlite provides the SQLite implementation of the metadata store,
// used for development and tests. It is CGO-free via modernc.org/sqlite.
package sqlite

// Schema contains the SQL statements to create the metadata schema.
// The relational shape mirrors the PostgreSQL backend: topics own sets,
// sets own entities, both edges cascade on delete. Full-text search is
// provided by an FTS5 virtual table kept in sync with the topics table via
// triggers (SQLite has no tsvector columns).
const Schema = `
CREATE TABLE IF NOT EXISTS topics (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    description TEXT,

    created TIMESTAMP NOT NULL,
    updated TIMESTAMP
);

CREATE TABLE IF NOT EXISTS sets (
    id TEXT PRIMARY KEY,
    topic_id TEXT NOT NULL,
    name TEXT NOT NULL,
    description TEXT,

    created TIMESTAMP NOT NULL,
    updated TIMESTAMP,

    FOREIGN KEY (topic_id) REFERENCES topics(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS entities (
    id TEXT PRIMARY KEY,
    set_id TEXT NOT NULL,
    payload TEXT NOT NULL,

    created TIMESTAMP NOT NULL,
    updated TIMESTAMP,

    FOREIGN KEY (set_id) REFERENCES sets(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_sets_topic_id ON sets(topic_id);
CREATE INDEX IF NOT EXISTS idx_entities_set_id ON entities(set_id);
CREATE INDEX IF NOT EXISTS idx_topics_name ON topics(name);
CREATE INDEX IF NOT EXISTS idx_sets_name ON sets(name);

-- FTS5 index over topic name and description, kept in sync by triggers.
CREATE VIRTUAL TABLE IF NOT EXISTS topics_fts USING fts5(
    name,
    description,
    content='topics',
    content_rowid='rowid'
);

CREATE TRIGGER IF NOT EXISTS topics_fts_insert AFTER INSERT ON topics BEGIN
    INSERT INTO topics_fts(rowid, name, description)
    VALUES (new.rowid, new.name, COALESCE(new.description, ''));
END;

CREATE TRIGGER IF NOT EXISTS topics_fts_delete AFTER DELETE ON topics BEGIN
    INSERT INTO topics_fts(topics_fts, rowid, name, description)
    VALUES ('delete', old.rowid, old.name, COALESCE(old.description, ''));
END;

CREATE TRIGGER IF NOT EXISTS topics_fts_update AFTER UPDATE ON topics BEGIN
    INSERT INTO topics_fts(topics_fts, rowid, name, description)
    VALUES ('delete', old.rowid, old.name, COALESCE(old.description, ''));
    INSERT INTO topics_fts(rowid, name, description)
    VALUES (new.rowid, new.name, COALESCE(new.description, ''));
END;
`
