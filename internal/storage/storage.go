// Package storage provides persistent local state for complaintdesk.
//
// Two kinds of data live here:
//  1. The notification ledger: which complaints the watch daemon has already
//     announced, under which Telegram message, and at which status
//  2. The saved session: cookies and the advisory role from the last login
//
// Both are kept in a BadgerDB database under STATE_DIR so they survive
// restarts.
//
// Thread-safety:
//   - BadgerDB transactions are safe for concurrent use
//   - Read-modify-write operations run inside a single transaction
package storage

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"complaintdesk/internal/account"
	"complaintdesk/internal/complaint"

	"github.com/dgraph-io/badger/v4"
	"github.com/rs/zerolog"
)

const (
	// recordPrefix namespaces ledger entries: "complaint/0000000042".
	recordPrefix = "complaint/"

	// sessionKey holds the single saved session.
	sessionKey = "session"
)

// Record is one ledger entry for an announced complaint.
//
// Fields:
//   - ComplaintID: Service-assigned complaint ID
//   - MessageID: Telegram message ID for editing (0 when Telegram is off)
//   - Status: Status at the time of the last announcement
//   - Title: Complaint title, kept for prompts and summaries
type Record struct {
	ComplaintID int              `json:"complaint_id"`
	MessageID   int              `json:"message_id"`
	Status      complaint.Status `json:"status"`
	Title       string           `json:"title"`
}

// Session is what a login leaves behind.
type Session struct {
	Cookies []Cookie     `json:"cookies"`
	Role    account.Role `json:"role"`
	SavedAt time.Time    `json:"saved_at"`
}

// Cookie is the persisted part of an http.Cookie. The jar only reports
// name and value, so that is all that is kept.
type Cookie struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// NewSession captures cookies and role from a live client.
func NewSession(cookies []*http.Cookie, role account.Role) Session {
	s := Session{Role: role, SavedAt: time.Now()}
	for _, c := range cookies {
		s.Cookies = append(s.Cookies, Cookie{Name: c.Name, Value: c.Value})
	}
	return s
}

// HTTPCookies converts the saved cookies back for a cookie jar.
func (s Session) HTTPCookies() []*http.Cookie {
	out := make([]*http.Cookie, 0, len(s.Cookies))
	for _, c := range s.Cookies {
		out = append(out, &http.Cookie{Name: c.Name, Value: c.Value, Path: "/"})
	}
	return out
}

// Options configures Open.
type Options struct {
	// Path is the database directory. Ignored when InMemory is true.
	Path string

	// InMemory keeps everything in memory. Useful for testing.
	InMemory bool

	Logger zerolog.Logger
}

// Storage provides thread-safe persistent state.
type Storage struct {
	db  *badger.DB
	log zerolog.Logger
}

// Open opens (or creates) the database.
//
// Returns:
//   - *Storage: Ready-to-use storage
//   - error: If the database cannot be opened (e.g. another process holds it)
func Open(opts Options) (*Storage, error) {
	bopts := badger.DefaultOptions(opts.Path).WithLogger(nil)
	if opts.InMemory {
		bopts = bopts.WithInMemory(true).WithDir("").WithValueDir("")
	}

	db, err := badger.Open(bopts)
	if err != nil {
		return nil, fmt.Errorf("failed to open state database: %w", err)
	}

	s := &Storage{db: db, log: opts.Logger}
	if !opts.InMemory {
		if records, err := s.All(); err == nil {
			s.log.Info().Int("records", len(records)).Str("path", opts.Path).Msg("loaded notification ledger")
		}
	}
	return s, nil
}

// Close flushes and closes the database.
func (s *Storage) Close() error {
	return s.db.Close()
}

func recordKey(id int) []byte {
	return []byte(fmt.Sprintf("%s%010d", recordPrefix, id))
}

// IsNew checks if a complaint has not been announced yet.
//
// A read error is logged and treated as "not new" so a flaky disk cannot
// cause a flood of duplicate announcements.
func (s *Storage) IsNew(complaintID int) bool {
	_, found, err := s.Get(complaintID)
	if err != nil {
		s.log.Warn().Err(err).Int("complaint_id", complaintID).Msg("ledger lookup failed")
		return false
	}
	return !found
}

// Get returns the ledger entry for a complaint.
//
// Returns:
//   - Record: The entry, zero value if absent
//   - bool: true if the entry exists
//   - error: Database error
func (s *Storage) Get(complaintID int) (Record, bool, error) {
	var rec Record
	found := false

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(recordKey(complaintID))
		if stderrors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &rec)
		})
	})
	if err != nil {
		return Record{}, false, fmt.Errorf("failed to read record %d: %w", complaintID, err)
	}
	return rec, found, nil
}

// SaveMultiple atomically saves several ledger entries.
//
// All records are written in one transaction: either all are stored or
// none are.
//
// Parameters:
//   - records: Entries to insert or overwrite
//
// Returns:
//   - error: Encode or database error, nil on success
func (s *Storage) SaveMultiple(records []Record) error {
	if len(records) == 0 {
		return nil
	}
	return s.db.Update(func(txn *badger.Txn) error {
		for _, r := range records {
			val, err := json.Marshal(r)
			if err != nil {
				return fmt.Errorf("failed to encode record %d: %w", r.ComplaintID, err)
			}
			if err := txn.Set(recordKey(r.ComplaintID), val); err != nil {
				return fmt.Errorf("failed to write record %d: %w", r.ComplaintID, err)
			}
		}
		return nil
	})
}

// Remove deletes a ledger entry. Removing an absent entry is not an error.
func (s *Storage) Remove(complaintID int) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(recordKey(complaintID))
	})
}

// RemoveIfExists atomically checks for an entry and deletes it.
//
// Returns:
//   - bool: true if the entry existed and was removed
//   - error: Database error
func (s *Storage) RemoveIfExists(complaintID int) (bool, error) {
	removed := false
	err := s.db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get(recordKey(complaintID))
		if stderrors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		removed = true
		return txn.Delete(recordKey(complaintID))
	})
	return removed, err
}

// All returns every ledger entry ordered by complaint ID.
func (s *Storage) All() ([]Record, error) {
	var records []Record
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte(recordPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			var rec Record
			err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &rec)
			})
			if err != nil {
				key := strings.TrimPrefix(string(item.Key()), recordPrefix)
				id, _ := strconv.Atoi(key)
				s.log.Warn().Err(err).Int("complaint_id", id).Msg("skipping unreadable ledger entry")
				continue
			}
			records = append(records, rec)
		}
		return nil
	})
	return records, err
}

// SaveSession stores the session, replacing any previous one.
func (s *Storage) SaveSession(sess Session) error {
	val, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(sessionKey), val)
	})
}

// LoadSession returns the saved session.
//
// Returns:
//   - Session: The saved session, zero value if none
//   - bool: true if a session was saved
//   - error: Database or decode error
func (s *Storage) LoadSession() (Session, bool, error) {
	var sess Session
	found := false
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(sessionKey))
		if stderrors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &sess)
		})
	})
	if err != nil {
		return Session{}, false, fmt.Errorf("failed to load session: %w", err)
	}
	return sess, found, nil
}

// ClearSession forgets the saved session.
func (s *Storage) ClearSession() error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(sessionKey))
	})
}
