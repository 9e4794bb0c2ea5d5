package store

const schema = `
CREATE TABLE IF NOT EXISTS packages (
    name TEXT PRIMARY KEY,
    version TEXT NOT NULL,
    installed_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP,
    security_hash TEXT
);
`
