package storage

const schemaSQL = `
-- One row per invocation of the crawler
CREATE TABLE IF NOT EXISTS crawl_runs (
    id TEXT PRIMARY KEY NOT NULL,
    seeds TEXT NOT NULL,             -- JSON array of page links given on the command line
    enumerate INTEGER NOT NULL DEFAULT 0,
    state TEXT NOT NULL DEFAULT 'running' CHECK (state IN ('running', 'completed', 'canceled')),
    started_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    finished_at DATETIME,
    link_count INTEGER
);

CREATE INDEX IF NOT EXISTS idx_runs_started ON crawl_runs(started_at);

-- Image links found by a run; a link is stored once per run
CREATE TABLE IF NOT EXISTS image_links (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id TEXT NOT NULL REFERENCES crawl_runs(id) ON DELETE CASCADE,
    page_url TEXT NOT NULL,
    image_url TEXT NOT NULL,
    found_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    UNIQUE(run_id, image_url)
);

CREATE INDEX IF NOT EXISTS idx_image_links_run ON image_links(run_id, id);
CREATE INDEX IF NOT EXISTS idx_image_links_image ON image_links(image_url);

-- View summarising each run
CREATE VIEW IF NOT EXISTS run_summary AS
SELECT
    r.id, r.state, r.started_at, r.finished_at,
    COUNT(l.id) AS stored_links,
    COUNT(DISTINCT l.page_url) AS pages_with_links
FROM crawl_runs r
LEFT JOIN image_links l ON l.run_id = r.id
GROUP BY r.id;

-- Crawl meta table stores metadata as key-value pairs
CREATE TABLE IF NOT EXISTS crawl_meta (
    key TEXT PRIMARY KEY NOT NULL,
    value TEXT NOT NULL
);
`
