package store

// Relations between the tables are by convention only: sessions 1-n events
// via session_id, events 1-n tool_uses via event_uuid = events.uuid.
const coreSchema = `
CREATE SEQUENCE IF NOT EXISTS events_id_seq START 1;
CREATE SEQUENCE IF NOT EXISTS tool_uses_id_seq START 1;

CREATE TABLE IF NOT EXISTS sessions (
    session_id        VARCHAR PRIMARY KEY,
    project_path      VARCHAR,
    is_agent          BOOLEAN NOT NULL DEFAULT false,
    agent_id          VARCHAR,
    created_at        TIMESTAMP,
    last_active       TIMESTAMP,
    event_count       INTEGER NOT NULL DEFAULT 0,
    model             VARCHAR,
    source_path       VARCHAR,
    source_size       BIGINT,
    last_imported_at  TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_sessions_project ON sessions(project_path);
CREATE INDEX IF NOT EXISTS idx_sessions_active  ON sessions(last_active);

CREATE TABLE IF NOT EXISTS events (
    id            BIGINT DEFAULT nextval('events_id_seq') PRIMARY KEY,
    session_id    VARCHAR NOT NULL,
    uuid          VARCHAR UNIQUE,
    parent_uuid   VARCHAR,
    type          VARCHAR NOT NULL,
    subtype       VARCHAR,
    timestamp     TIMESTAMP,
    cwd           VARCHAR,
    git_branch    VARCHAR,
    is_sidechain  BOOLEAN NOT NULL DEFAULT false,
    agent_id      VARCHAR,
    request_id    VARCHAR,
    text          VARCHAR,
    message       JSON,
    raw_data      JSON NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_events_session ON events(session_id);
CREATE INDEX IF NOT EXISTS idx_events_type    ON events(type);
CREATE INDEX IF NOT EXISTS idx_events_ts      ON events(timestamp);
CREATE INDEX IF NOT EXISTS idx_events_parent  ON events(parent_uuid);

CREATE TABLE IF NOT EXISTS tool_uses (
    id           BIGINT DEFAULT nextval('tool_uses_id_seq') PRIMARY KEY,
    event_uuid   VARCHAR NOT NULL,
    tool_name    VARCHAR NOT NULL,
    tool_use_id  VARCHAR UNIQUE,
    input        JSON,
    timestamp    TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_tool_uses_name  ON tool_uses(tool_name);
CREATE INDEX IF NOT EXISTS idx_tool_uses_event ON tool_uses(event_uuid);
`
