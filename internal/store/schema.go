package store

const schemaSQL = `
CREATE TABLE IF NOT EXISTS projects (
    id             TEXT PRIMARY KEY,
    name           TEXT NOT NULL,
    path           TEXT,
    provider       TEXT NOT NULL,
    dir            TEXT NOT NULL,
    session_count  INTEGER NOT NULL DEFAULT 0,
    input_tokens   INTEGER NOT NULL DEFAULT 0,
    output_tokens  INTEGER NOT NULL DEFAULT 0,
    cache_read     INTEGER NOT NULL DEFAULT 0,
    cache_write    INTEGER NOT NULL DEFAULT 0,
    total_cost     REAL NOT NULL DEFAULT 0,
    last_activity  TEXT
);

CREATE TABLE IF NOT EXISTS sessions (
    id                TEXT PRIMARY KEY,
    project_id        TEXT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
    provider          TEXT NOT NULL,
    role              TEXT NOT NULL DEFAULT 'standalone',
    parent_id         TEXT,
    slug              TEXT,
    first_prompt      TEXT,
    git_branch        TEXT,
    effort            TEXT,
    plan              TEXT,
    project_path      TEXT,
    file_path         TEXT NOT NULL,
    messages          INTEGER NOT NULL DEFAULT 0,
    tool_calls        INTEGER NOT NULL DEFAULT 0,
    thinking_blocks   INTEGER NOT NULL DEFAULT 0,
    input_tokens      INTEGER NOT NULL DEFAULT 0,
    output_tokens     INTEGER NOT NULL DEFAULT 0,
    cache_read        INTEGER NOT NULL DEFAULT 0,
    cache_write       INTEGER NOT NULL DEFAULT 0,
    total_cost        REAL NOT NULL DEFAULT 0,
    cache_hit_rate    REAL NOT NULL DEFAULT 0,
    pricing_status    TEXT NOT NULL DEFAULT 'priced',
    unpriced_tokens   INTEGER NOT NULL DEFAULT 0,
    unpriced_messages INTEGER NOT NULL DEFAULT 0,
    latency_avg_ms    INTEGER NOT NULL DEFAULT 0,
    latency_p50_ms    INTEGER NOT NULL DEFAULT 0,
    latency_p95_ms    INTEGER NOT NULL DEFAULT 0,
    latency_max_ms    INTEGER NOT NULL DEFAULT 0,
    latency_samples   INTEGER NOT NULL DEFAULT 0,
    duration_secs     INTEGER NOT NULL DEFAULT 0,
    context_window    INTEGER NOT NULL DEFAULT 0,
    files_json        TEXT,
    skills_json       TEXT,
    subagents_json    TEXT,
    mcp_json          TEXT,
    searched_json     TEXT,
    summary_json      TEXT,
    created_at        TEXT,
    modified_at       TEXT,
    file_mtime_ns     INTEGER NOT NULL DEFAULT 0,
    file_size         INTEGER NOT NULL DEFAULT 0,
    aggregated_at     TEXT
);

CREATE TABLE IF NOT EXISTS session_tools (
    session_id    TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
    tool          TEXT NOT NULL,
    calls         INTEGER NOT NULL DEFAULT 0,
    errors        INTEGER NOT NULL DEFAULT 0,
    input_tokens  INTEGER NOT NULL DEFAULT 0,
    output_tokens INTEGER NOT NULL DEFAULT 0,
    cache_read    INTEGER NOT NULL DEFAULT 0,
    cache_write   INTEGER NOT NULL DEFAULT 0,
    cost          REAL NOT NULL DEFAULT 0,
    PRIMARY KEY (session_id, tool)
);

CREATE TABLE IF NOT EXISTS session_models (
    session_id     TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
    model          TEXT NOT NULL,
    messages       INTEGER NOT NULL DEFAULT 0,
    input_tokens   INTEGER NOT NULL DEFAULT 0,
    output_tokens  INTEGER NOT NULL DEFAULT 0,
    cache_read     INTEGER NOT NULL DEFAULT 0,
    cache_write    INTEGER NOT NULL DEFAULT 0,
    cost           REAL NOT NULL DEFAULT 0,
    pricing_status TEXT NOT NULL DEFAULT 'priced',
    PRIMARY KEY (session_id, model)
);

CREATE TABLE IF NOT EXISTS instruction_files (
    id   INTEGER PRIMARY KEY AUTOINCREMENT,
    path TEXT NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS session_instruction_files (
    session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
    file_id    INTEGER NOT NULL REFERENCES instruction_files(id) ON DELETE CASCADE,
    method     TEXT NOT NULL,
    PRIMARY KEY (session_id, file_id, method)
);

CREATE TABLE IF NOT EXISTS index_meta (
    key   TEXT PRIMARY KEY,
    value TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_sessions_project ON sessions(project_id);
CREATE INDEX IF NOT EXISTS idx_sessions_created ON sessions(created_at);
`
