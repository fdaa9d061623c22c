package database

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"chatflow/pkg/types"
)

// Config holds write-behind sink settings.
type Config struct {
	Path        string        `json:"path"`
	QueueSize   int           `json:"queue_size"`
	MaxConns    int           `json:"max_conns"`
	ConnMaxLife time.Duration `json:"conn_max_life"`
}

// DefaultConfig returns production defaults.
func DefaultConfig() *Config {
	return &Config{
		Path:        "./data/chatflow.db",
		QueueSize:   256,
		MaxConns:    10,
		ConnMaxLife: time.Hour,
	}
}

// Manager is the append-only persistence sink for messages and moderation
// entries. It is strictly write-behind: chat operations never read from it
// and never wait on it. Writes are queued to a single-writer goroutine
// (SQLite performs best with one writer); when the queue is full the write
// is dropped with a log line rather than blocking the caller.
type Manager struct {
	db           *sql.DB
	writeChannel chan func(*sql.DB) error
	shutdown     chan struct{}
	wg           sync.WaitGroup
	closed       bool
	mu           sync.RWMutex
}

// NewManager opens the database, applies schema and pragmas, and starts
// the writer goroutine.
func NewManager(cfg *Config) (*Manager, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.Path == "" {
		return nil, fmt.Errorf("database path cannot be empty")
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}

	db, err := sql.Open("sqlite3", cfg.Path+"?_busy_timeout=5000&_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLife)

	if err := applySQLiteOptimizations(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply SQLite optimizations: %w", err)
	}
	if err := createSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	m := &Manager{
		db:           db,
		writeChannel: make(chan func(*sql.DB) error, cfg.QueueSize),
		shutdown:     make(chan struct{}),
	}

	m.wg.Add(1)
	go m.writeLoop()

	return m, nil
}

// writeLoop processes queued writes in a single goroutine. A failed write
// is retried once; a second failure is logged and the record is lost,
// which the sink contract allows.
func (m *Manager) writeLoop() {
	defer m.wg.Done()

	for {
		select {
		case op := <-m.writeChannel:
			if err := op(m.db); err != nil {
				log.Printf("Sink write failed, retrying: %v", err)
				if err := op(m.db); err != nil {
					log.Printf("Sink write failed after retry, dropping record: %v", err)
				}
			}
		case <-m.shutdown:
			// Drain whatever is already queued before exiting.
			for {
				select {
				case op := <-m.writeChannel:
					if err := op(m.db); err != nil {
						log.Printf("Sink write failed during shutdown drain: %v", err)
					}
				default:
					return
				}
			}
		}
	}
}

// enqueue hands an operation to the writer without blocking the caller.
func (m *Manager) enqueue(op func(*sql.DB) error) {
	m.mu.RLock()
	closed := m.closed
	m.mu.RUnlock()
	if closed {
		return
	}

	select {
	case m.writeChannel <- op:
	default:
		log.Printf("Sink queue full, dropping write")
	}
}

// StoreMessage persists a message. Fire-and-forget. Serialization happens
// on the caller's goroutine: once enqueued, the closure holds only strings
// and scalars, so the writer never reads the caller's maps or slices.
func (m *Manager) StoreMessage(message *types.Message) {
	msg := *message
	reactionsJSON, err := json.Marshal(msg.Reactions)
	if err != nil {
		log.Printf("Failed to marshal reactions, dropping message %s: %v", msg.ID, err)
		return
	}
	mentionsJSON, err := json.Marshal(msg.Mentions)
	if err != nil {
		log.Printf("Failed to marshal mentions, dropping message %s: %v", msg.ID, err)
		return
	}
	var fileJSON []byte
	if msg.File != nil {
		if fileJSON, err = json.Marshal(msg.File); err != nil {
			log.Printf("Failed to marshal file ref, dropping message %s: %v", msg.ID, err)
			return
		}
	}
	file := nullableString(fileJSON)

	m.enqueue(func(db *sql.DB) error {
		query := `
			INSERT OR REPLACE INTO messages (id, room, sender, text, file, time, timestamp, reactions, mentions)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`
		_, err := db.Exec(query,
			msg.ID,
			msg.Room,
			msg.Sender,
			msg.Text,
			file,
			msg.Time,
			msg.Timestamp,
			string(reactionsJSON),
			string(mentionsJSON),
		)
		if err != nil {
			return fmt.Errorf("failed to insert message: %w", err)
		}
		return nil
	})
}

// StoreModLogEntry persists an audit record. Fire-and-forget.
func (m *Manager) StoreModLogEntry(entry *types.ModLogEntry) {
	e := *entry
	m.enqueue(func(db *sql.DB) error {
		query := `
			INSERT INTO mod_log (id, room, action, admin, target, detail, timestamp)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`
		_, err := db.Exec(query,
			e.ID,
			e.Room,
			e.Action,
			e.Admin,
			e.Target,
			e.Detail,
			e.Timestamp,
		)
		if err != nil {
			return fmt.Errorf("failed to insert mod log entry: %w", err)
		}
		return nil
	})
}

// HealthCheck validates connectivity.
func (m *Manager) HealthCheck() error {
	if err := m.db.Ping(); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	return nil
}

// Close stops the writer goroutine after draining queued writes and closes
// the connection.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.mu.Unlock()

	close(m.shutdown)
	m.wg.Wait()

	if err := m.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	return nil
}

func nullableString(b []byte) interface{} {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}

func applySQLiteOptimizations(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA temp_store = MEMORY",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute pragma %s: %w", pragma, err)
		}
	}
	return nil
}
