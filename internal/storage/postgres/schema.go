// Package postgres provides the PostgreSQL implementation of the metadata store.
package postgres

// Schema contains the SQL statements to create the metadata schema.
// Topics own sets, sets own entities; both ownership edges cascade on
// delete. Search vectors over topic name and description are maintained by
// trigger, as is the updated timestamp (refreshed once per mutating
// statement by a row-level BEFORE UPDATE trigger).
const Schema = `
-- Topics table: root of the ownership hierarchy
CREATE TABLE IF NOT EXISTS topics (
    id UUID PRIMARY KEY,
    name VARCHAR(255) NOT NULL,
    description VARCHAR(4096),

    created TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated TIMESTAMPTZ,

    -- Search vectors, populated via trigger on insert/update
    name_tsv tsvector,
    description_tsv tsvector
);

-- Sets table: named groupings scoped to a topic
CREATE TABLE IF NOT EXISTS sets (
    id UUID PRIMARY KEY,
    topic_id UUID NOT NULL REFERENCES topics(id) ON DELETE CASCADE,
    name VARCHAR(255) NOT NULL,
    description VARCHAR(4096),

    created TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated TIMESTAMPTZ
);

-- Entities table: opaque payload records scoped to a set
CREATE TABLE IF NOT EXISTS entities (
    id UUID PRIMARY KEY,
    set_id UUID NOT NULL REFERENCES sets(id) ON DELETE CASCADE,
    payload JSONB NOT NULL,

    created TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated TIMESTAMPTZ
);

-- Ownership lookups
CREATE INDEX IF NOT EXISTS idx_sets_topic_id ON sets(topic_id);
CREATE INDEX IF NOT EXISTS idx_entities_set_id ON entities(set_id);

-- Name lookups (names are not unique)
CREATE INDEX IF NOT EXISTS idx_topics_name ON topics(name);
CREATE INDEX IF NOT EXISTS idx_sets_name ON sets(name);

-- Full-text search over topic name and description
CREATE INDEX IF NOT EXISTS idx_topics_name_tsv ON topics USING GIN(name_tsv);
CREATE INDEX IF NOT EXISTS idx_topics_description_tsv ON topics USING GIN(description_tsv);
`

// SchemaTriggers contains the trigger functions maintaining search vectors
// and updated timestamps. Kept separate from Schema because CREATE OR
// REPLACE FUNCTION bodies contain semicolons that confuse naive statement
// splitting in some tooling; the whole constant is executed as one batch.
const SchemaTriggers = `
-- Auto-populate topic search vectors on INSERT/UPDATE.
CREATE OR REPLACE FUNCTION topics_tsv_update()
RETURNS TRIGGER AS $$
BEGIN
    NEW.name_tsv := to_tsvector('english', COALESCE(NEW.name, ''));
    NEW.description_tsv := to_tsvector('english', COALESCE(NEW.description, ''));
    RETURN NEW;
END;
$$ LANGUAGE plpgsql;

DROP TRIGGER IF EXISTS topics_tsv_trigger ON topics;
CREATE TRIGGER topics_tsv_trigger
    BEFORE INSERT OR UPDATE OF name, description
    ON topics
    FOR EACH ROW
    EXECUTE FUNCTION topics_tsv_update();

-- Refresh the updated timestamp on any UPDATE. BEFORE UPDATE row triggers
-- fire once per affected row per statement, which gives the
-- exactly-once-per-mutating-statement contract.
CREATE OR REPLACE FUNCTION touch_updated()
RETURNS TRIGGER AS $$
BEGIN
    NEW.updated := NOW();
    RETURN NEW;
END;
$$ LANGUAGE plpgsql;

DROP TRIGGER IF EXISTS topics_touch_trigger ON topics;
CREATE TRIGGER topics_touch_trigger
    BEFORE UPDATE ON topics
    FOR EACH ROW
    EXECUTE FUNCTION touch_updated();

DROP TRIGGER IF EXISTS sets_touch_trigger ON sets;
CREATE TRIGGER sets_touch_trigger
    BEFORE UPDATE ON sets
    FOR EACH ROW
    EXECUTE FUNCTION touch_updated();

DROP TRIGGER IF EXISTS entities_touch_trigger ON entities;
CREATE TRIGGER entities_touch_trigger
    BEFORE UPDATE ON entities
    FOR EACH ROW
    EXECUTE FUNCTION touch_updated();
`
