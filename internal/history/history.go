package history

// SQLiteArchive persists chat transcripts to SQLite for auditing.
// The database is opened lazily and created on first use.
// If opening the DB or executing queries fails, records are kept in memory only.

import (
	"database/sql"
	"sync"

	_ "github.com/glebarez/go-sqlite"

	"github.com/comigor/mailagent/internal/logger"
)

type SQLiteArchive struct {
	path string

	mu      sync.Mutex
	records []Record // in-memory fallback

	dbOnce  sync.Once
	db      *sql.DB
	initErr error
}

// NewSQLiteArchive returns an archive backed by the database file at path.
func NewSQLiteArchive(path string) *SQLiteArchive {
	return &SQLiteArchive{path: path}
}

// initDB lazily opens the SQLite database and creates the messages table if it doesn't exist.
func (a *SQLiteArchive) initDB() {
	db, err := sql.Open("sqlite", "file:"+a.path+"?_pragma=busy_timeout(10000)")
	if err != nil {
		a.initErr = err
		logger.L.Warn("sqlite open failed; using in-memory transcript", "error", err)
		return
	}
	if _, err = db.Exec(`CREATE TABLE IF NOT EXISTS messages (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        session_id TEXT,
        role TEXT,
        content TEXT,
        created_at DATETIME
    );`); err != nil {
		a.initErr = err
		db.Close()
		logger.L.Warn("sqlite table creation failed; using in-memory transcript", "error", err)
		return
	}
	a.db = db
	logger.L.Info("sqlite transcript archive initialized", "path", a.path)
}

// Save persists a record to the SQLite database when available and always keeps
// an in-memory copy as fallback.
func (a *SQLiteArchive) Save(rec Record) {
	a.dbOnce.Do(a.initDB)

	if a.initErr == nil && a.db != nil {
		_, err := a.db.Exec(`INSERT INTO messages (session_id, role, content, created_at) VALUES (?,?,?,?);`,
			rec.SessionID, string(rec.Role), rec.Content, rec.CreatedAt)
		if err != nil {
			logger.L.Error("failed to store message in sqlite; keeping it in memory", "error", err)
		}
	}

	a.mu.Lock()
	a.records = append(a.records, rec)
	a.mu.Unlock()
}

// List returns all records of a session in chronological order.
func (a *SQLiteArchive) List(sessionID string) []Record {
	a.dbOnce.Do(a.initDB)
	var out []Record
	if a.initErr == nil && a.db != nil {
		rows, err := a.db.Query(`SELECT id, session_id, role, content, created_at FROM messages WHERE session_id = ? ORDER BY id ASC;`, sessionID)
		if err == nil {
			defer rows.Close()
			for rows.Next() {
				var r Record
				var role string
				if err := rows.Scan(&r.ID, &r.SessionID, &role, &r.Content, &r.CreatedAt); err == nil {
					r.Role = Role(role)
					out = append(out, r)
				}
			}
			return out
		}
	}
	a.mu.Lock()
	for _, r := range a.records {
		if r.SessionID == sessionID {
			out = append(out, r)
		}
	}
	a.mu.Unlock()
	return out
}

// Close releases the database handle.
func (a *SQLiteArchive) Close() error {
	if a.db == nil {
		return nil
	}
	return a.db.Close()
}
