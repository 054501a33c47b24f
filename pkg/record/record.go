// Package record stores simulated bus transactions in a SQLite database
// so that a session can be inspected after the fact.
package record

import (
	"database/sql"
	"encoding/hex"
	"fmt"
	"os"
	"sync"
	"time"

	// SQLite driver for database/sql.
	_ "github.com/mattn/go-sqlite3"

	"github.com/rs/xid"
	"github.com/tebeka/atexit"

	"github.com/bentwire/stm32f072-usb/device/hal/sim"
	"github.com/bentwire/stm32f072-usb/pkg"
)

// DefaultBatchSize is the number of rows buffered before a flush.
const DefaultBatchSize = 1024

const schema = `
CREATE TABLE IF NOT EXISTS transactions (
	session   TEXT    NOT NULL,
	seq       INTEGER NOT NULL,
	time      INTEGER NOT NULL,
	token     TEXT    NOT NULL,
	address   INTEGER NOT NULL,
	endpoint  INTEGER NOT NULL,
	handshake TEXT    NOT NULL,
	data      TEXT    NOT NULL,
	error     TEXT    NOT NULL,
	state     TEXT    NOT NULL,
	PRIMARY KEY (session, seq)
)`

const insert = `INSERT INTO transactions
	(session, seq, time, token, address, endpoint, handshake, data, error, state)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

// Row is one recorded transaction.
type Row struct {
	Session     string
	Seq         int
	Time        time.Time
	Transaction sim.Transaction
	State       string // Device state after the transaction
}

// Recorder buffers transactions and writes them in batches.
type Recorder struct {
	mu sync.Mutex

	db      *sql.DB
	stmt    *sql.Stmt
	path    string
	session string

	rows      []Row
	seq       int
	batchSize int
}

// Open creates or appends to the database at path. An empty path creates
// usbsim_<session>.sqlite3 in the working directory. Buffered rows are
// flushed when the process exits through atexit.
func Open(path string) (*Recorder, error) {
	session := xid.New().String()
	if path == "" {
		path = "usbsim_" + session + ".sqlite3"
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("record: open %s: %w", path, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("record: schema: %w", err)
	}
	stmt, err := db.Prepare(insert)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("record: prepare: %w", err)
	}

	r := &Recorder{
		db:        db,
		stmt:      stmt,
		path:      path,
		session:   session,
		batchSize: DefaultBatchSize,
	}
	atexit.Register(func() {
		if err := r.Close(); err != nil {
			fmt.Fprintln(os.Stderr, err)
		}
	})
	pkg.LogInfo(pkg.ComponentCLI, "recording", "path", path, "session", session)
	return r, nil
}

// Path returns the database file.
func (r *Recorder) Path() string { return r.path }

// Session returns the id shared by every row of this recorder.
func (r *Recorder) Session() string { return r.session }

// Record buffers t with the device state that followed it.
func (r *Recorder) Record(t sim.Transaction, state string) error {
	r.mu.Lock()
	r.seq++
	r.rows = append(r.rows, Row{
		Session:     r.session,
		Seq:         r.seq,
		Time:        time.Now(),
		Transaction: t,
		State:       state,
	})
	full := len(r.rows) >= r.batchSize
	r.mu.Unlock()

	if full {
		return r.Flush()
	}
	return nil
}

// Flush writes every buffered row in one database transaction.
func (r *Recorder) Flush() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.rows) == 0 || r.db == nil {
		return nil
	}

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("record: begin: %w", err)
	}
	stmt := tx.Stmt(r.stmt)
	for _, row := range r.rows {
		t := row.Transaction
		errText := ""
		if t.Err != nil {
			errText = t.Err.Error()
		}
		if _, err := stmt.Exec(row.Session, row.Seq, row.Time.UnixNano(),
			string(t.Token), t.Address, t.Endpoint, t.Handshake(),
			hex.EncodeToString(t.Data), errText, row.State); err != nil {
			tx.Rollback()
			return fmt.Errorf("record: insert %d: %w", row.Seq, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("record: commit: %w", err)
	}
	pkg.LogDebug(pkg.ComponentCLI, "recorded", "rows", len(r.rows))
	r.rows = nil
	return nil
}

// Close flushes and closes the database. Further calls do nothing.
func (r *Recorder) Close() error {
	if err := r.Flush(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.db == nil {
		return nil
	}
	r.stmt.Close()
	err := r.db.Close()
	r.db = nil
	return err
}

// Count returns the number of rows stored for this session.
func (r *Recorder) Count() (int, error) {
	if err := r.Flush(); err != nil {
		return 0, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.db == nil {
		return 0, fmt.Errorf("record: closed: %w", pkg.ErrInvalidParameter)
	}
	var n int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM transactions WHERE session = ?`, r.session).Scan(&n)
	return n, err
}
