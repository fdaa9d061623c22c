package database

import (
	"database/sql"
	"fmt"
)

// The sink's tables mirror the append-only records it receives. There is
// no read path back into the store, so no indexes beyond primary keys.
const schema = `
CREATE TABLE IF NOT EXISTS messages (
	id        TEXT PRIMARY KEY,
	room      TEXT NOT NULL,
	sender    TEXT NOT NULL,
	text      TEXT NOT NULL,
	file      TEXT,
	time      TEXT NOT NULL,
	timestamp INTEGER NOT NULL,
	reactions TEXT,
	mentions  TEXT
);

CREATE TABLE IF NOT EXISTS mod_log (
	id        TEXT PRIMARY KEY,
	room      TEXT NOT NULL,
	action    TEXT NOT NULL,
	admin     TEXT NOT NULL,
	target    TEXT NOT NULL,
	detail    TEXT,
	timestamp DATETIME NOT NULL
);
`

func createSchema(db *sql.DB) error {
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}
