package database

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/nfrund/relay/internal/domain"
)

const (
	messagePrefix  = "msg:"
	authorPrefix   = "author:"
	sequenceKey    = "seq:message"
	leaseBandwidth = 100
)

// BadgerMessageStore persists messages in an embedded BadgerDB.
//
// Keys:
//   - "msg:{seq %020d}" holds the JSON message. Sequence order is creation order.
//   - "author:{hex(username)}:{seq %020d}" holds the primary key, so the
//     newest message of an author is the last key under its prefix.
type BadgerMessageStore struct {
	db  *badger.DB
	seq *badger.Sequence
	log *slog.Logger

	// mu serializes appends so IDs, keys and createdAt advance together.
	mu       sync.Mutex
	lastTime time.Time
	closed   bool
}

var _ domain.MessageStore = (*BadgerMessageStore)(nil)

// OpenBadgerMessageStore opens (or creates) a store at path.
// An empty path opens a throwaway in-memory database.
func OpenBadgerMessageStore(path string) (*BadgerMessageStore, error) {
	log := slog.Default().With("component", "badger")

	opts := badger.DefaultOptions(path).WithLogger(badgerLogger{log})
	if path == "" {
		opts = opts.WithInMemory(true)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, NewDBError(err, "database opening failed")
	}
	return NewBadgerMessageStore(db, log)
}

// NewBadgerMessageStore wraps an already open database.
func NewBadgerMessageStore(db *badger.DB, log *slog.Logger) (*BadgerMessageStore, error) {
	seq, err := db.GetSequence([]byte(sequenceKey), leaseBandwidth)
	if err != nil {
		return nil, NewDBError(err, "failed to acquire message sequence")
	}

	s := &BadgerMessageStore{db: db, seq: seq, log: log}
	if last, err := s.latest(messagePrefix); err != nil {
		return nil, err
	} else if last != nil {
		s.lastTime = last.CreatedAt
	}
	return s, nil
}

// AppendMessage assigns the next sequence number and the current time, and
// writes the message and its author index entry in one transaction.
// createdAt never goes backwards, so time order and ID order agree.
func (s *BadgerMessageStore) AppendMessage(ctx context.Context, username, text, color string) (*domain.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, NewDBError(err, "append cancelled")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, NewDBError(ErrNotConnected, "message store is closed")
	}

	n, err := s.seq.Next()
	if err != nil {
		return nil, NewDBError(err, "failed to allocate message id")
	}
	id := n + 1

	now := time.Now().UTC()
	if now.Before(s.lastTime) {
		now = s.lastTime
	}

	msg := &domain.Message{
		ID:        strconv.FormatUint(id, 10),
		Username:  username,
		Text:      text,
		Color:     color,
		CreatedAt: now,
	}
	value, err := json.Marshal(msg)
	if err != nil {
		return nil, NewDBError(err, "failed to encode message")
	}

	primary := primaryKey(id)
	err = s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(primary, value); err != nil {
			return err
		}
		return txn.Set(authorKey(username, id), primary)
	})
	if err != nil {
		return nil, NewDBError(err, "failed to append message").WithParams(map[string]any{"username": username})
	}

	s.lastTime = now
	s.log.Debug("Message stored", "id", msg.ID, "username", username)
	return msg, nil
}

// FindLatestByAuthor returns the newest message by username, or nil.
func (s *BadgerMessageStore) FindLatestByAuthor(ctx context.Context, username string) (*domain.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, NewDBError(err, "lookup cancelled")
	}
	if s.isClosed() {
		return nil, NewDBError(ErrNotConnected, "message store is closed")
	}

	msg, err := s.latest(authorPrefixFor(username))
	if err != nil {
		return nil, WrapError(err, "failed to find latest message by author")
	}
	return msg, nil
}

// ListAllOrderedByTime returns every message, oldest first.
func (s *BadgerMessageStore) ListAllOrderedByTime(ctx context.Context) ([]*domain.Message, error) {
	if s.isClosed() {
		return nil, NewDBError(ErrNotConnected, "message store is closed")
	}

	var messages []*domain.Message
	err := s.db.View(func(txn *badger.Txn) error {
		prefix := []byte(messagePrefix)
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			var msg domain.Message
			if err := it.Item().Value(func(v []byte) error {
				return decodeMessage(v, &msg)
			}); err != nil {
				return err
			}
			messages = append(messages, &msg)
		}
		return nil
	})
	if err != nil {
		return nil, NewDBError(err, "failed to list messages")
	}
	if messages == nil {
		messages = []*domain.Message{}
	}
	return messages, nil
}

// Close releases the sequence lease and closes the database.
func (s *BadgerMessageStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	if err := s.seq.Release(); err != nil {
		s.log.Warn("Failed to release message sequence", "error", err)
	}
	return s.db.Close()
}

func (s *BadgerMessageStore) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// latest returns the message referenced by the last key under prefix.
// Keys under "author:" hold a primary key; keys under "msg:" hold the message.
func (s *BadgerMessageStore) latest(prefix string) (*domain.Message, error) {
	var found *domain.Message
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		p := []byte(prefix)
		// 0xff sorts after every digit, so Seek lands on the newest key.
		it.Seek(append(append([]byte{}, p...), 0xff))
		if !it.ValidForPrefix(p) {
			return nil
		}

		value, err := it.Item().ValueCopy(nil)
		if err != nil {
			return err
		}

		if prefix != messagePrefix {
			item, err := txn.Get(value)
			if err != nil {
				return fmt.Errorf("%w: dangling author index %q: %v", ErrCorruptRecord, it.Item().Key(), err)
			}
			if value, err = item.ValueCopy(nil); err != nil {
				return err
			}
		}

		var msg domain.Message
		if err := decodeMessage(value, &msg); err != nil {
			return err
		}
		found = &msg
		return nil
	})
	if err != nil {
		return nil, NewDBError(err, "failed to read latest message")
	}
	return found, nil
}

func decodeMessage(data []byte, msg *domain.Message) error {
	if err := json.Unmarshal(data, msg); err != nil {
		return fmt.Errorf("%w: %v", ErrCorruptRecord, err)
	}
	return nil
}

func primaryKey(id uint64) []byte {
	return []byte(fmt.Sprintf("%s%020d", messagePrefix, id))
}

func authorPrefixFor(username string) string {
	return authorPrefix + hex.EncodeToString([]byte(username)) + ":"
}

func authorKey(username string, id uint64) []byte {
	return []byte(fmt.Sprintf("%s%020d", authorPrefixFor(username), id))
}

// badgerLogger routes badger's printf-style logging through slog.
type badgerLogger struct {
	log *slog.Logger
}

func (l badgerLogger) Errorf(format string, args ...any) {
	l.log.Error(fmt.Sprintf(format, args...))
}

func (l badgerLogger) Warningf(format string, args ...any) {
	l.log.Warn(fmt.Sprintf(format, args...))
}

func (l badgerLogger) Infof(format string, args ...any) {
	l.log.Info(fmt.Sprintf(format, args...))
}

func (l badgerLogger) Debugf(format string, args ...any) {
	l.log.Debug(fmt.Sprintf(format, args...))
}
