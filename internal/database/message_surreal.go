package database

import (
	"context"
	"crypto/rand"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/nfrund/relay/internal/config"
	"github.com/nfrund/relay/internal/domain"
	"github.com/oklog/ulid"
	"github.com/surrealdb/surrealdb.go"
	"github.com/surrealdb/surrealdb.go/pkg/models"
)

const messageTable = "message"

// messageRecord is the SurrealDB representation of a domain.Message.
type messageRecord struct {
	ID        *models.RecordID      `json:"id,omitempty"`
	Username  string                `json:"username"`
	Text      string                `json:"text"`
	Color     string                `json:"color"`
	CreatedAt models.CustomDateTime `json:"createdAt"`
}

func (r *messageRecord) toDomain() *domain.Message {
	msg := &domain.Message{
		Username:  r.Username,
		Text:      r.Text,
		Color:     r.Color,
		CreatedAt: r.CreatedAt.Time.UTC(),
	}
	if r.ID != nil {
		msg.ID = fmt.Sprint(r.ID.ID)
	}
	return msg
}

// ulidSource hands out strictly increasing ULIDs. Within one millisecond the
// random part is incremented, and a clock that steps backwards is held at the
// last millisecond used.
type ulidSource struct {
	mu      sync.Mutex
	entropy io.Reader
	lastMS  uint64
}

func newULIDSource() *ulidSource {
	return &ulidSource{entropy: ulid.Monotonic(rand.Reader, 0)}
}

func (s *ulidSource) next() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ms := ulid.Now()
	if ms < s.lastMS {
		ms = s.lastMS
	}
	id, err := ulid.New(ms, s.entropy)
	if err != nil {
		return "", err
	}
	s.lastMS = ms
	return id.String(), nil
}

// SurrealMessageStore persists messages in a SurrealDB table. Record IDs are
// ULIDs generated by the store, increasing in append order for this process,
// and createdAt is assigned by the database.
type SurrealMessageStore struct {
	conn           *Connection
	ids            *ulidSource
	queryTimeout   time.Duration
	executeTimeout time.Duration
}

var _ domain.MessageStore = (*SurrealMessageStore)(nil)

// NewSurrealMessageStore creates a store on top of a managed connection.
func NewSurrealMessageStore(conn *Connection, cfg config.Provider) *SurrealMessageStore {
	return &SurrealMessageStore{
		conn:           conn,
		ids:            newULIDSource(),
		queryTimeout:   cfg.GetDBQueryTimeout(),
		executeTimeout: cfg.GetDBExecuteTimeout(),
	}
}

// AppendMessage creates a message record and returns it as stored.
func (s *SurrealMessageStore) AppendMessage(ctx context.Context, username, text, color string) (*domain.Message, error) {
	ctx, cancel := getTimeoutFromContext(ctx, s.executeTimeout, ContextKeyExecuteTimeout)
	defer cancel()

	id, err := s.ids.next()
	if err != nil {
		return nil, NewDBError(err, "failed to generate message id")
	}

	query := `CREATE type::thing($table, $id) CONTENT {
		username: $username,
		text: $text,
		color: $color,
		createdAt: time::now()
	}`
	params := map[string]any{
		"table":    messageTable,
		"id":       id,
		"username": username,
		"text":     text,
		"color":    color,
	}

	var created *messageRecord
	err = s.conn.WithConnection(ctx, func(db *surrealdb.DB) error {
		var err error
		created, err = QueryOne[messageRecord](ctx, db, query, params)
		return err
	})
	if err != nil {
		return nil, WrapError(err, "failed to append message").WithParams(params)
	}
	if created == nil {
		return nil, NewDBError(ErrQueryFailed, "create returned no record").WithQuery(query)
	}
	return created.toDomain(), nil
}

// FindLatestByAuthor returns the newest message by username, or nil.
func (s *SurrealMessageStore) FindLatestByAuthor(ctx context.Context, username string) (*domain.Message, error) {
	ctx, cancel := getTimeoutFromContext(ctx, s.queryTimeout, ContextKeyQueryTimeout)
	defer cancel()

	query := "SELECT * FROM type::table($table) WHERE username = $username ORDER BY createdAt DESC, id DESC LIMIT 1"
	params := map[string]any{"table": messageTable, "username": username}

	var latest *messageRecord
	err := s.conn.WithConnection(ctx, func(db *surrealdb.DB) error {
		var err error
		latest, err = QueryOne[messageRecord](ctx, db, query, params)
		return err
	})
	if err != nil {
		return nil, WrapError(err, "failed to find latest message by author").WithParams(params)
	}
	if latest == nil {
		return nil, nil
	}
	return latest.toDomain(), nil
}

// ListAllOrderedByTime returns all messages, oldest first.
func (s *SurrealMessageStore) ListAllOrderedByTime(ctx context.Context) ([]*domain.Message, error) {
	ctx, cancel := getTimeoutFromContext(ctx, s.queryTimeout, ContextKeyQueryTimeout)
	defer cancel()

	query := "SELECT * FROM type::table($table) ORDER BY createdAt ASC, id ASC"
	params := map[string]any{"table": messageTable}

	var rows []messageRecord
	err := s.conn.WithConnection(ctx, func(db *surrealdb.DB) error {
		var err error
		rows, err = Query[messageRecord](ctx, db, query, params)
		return err
	})
	if err != nil {
		return nil, WrapError(err, "failed to list messages")
	}

	messages := make([]*domain.Message, 0, len(rows))
	for i := range rows {
		messages = append(messages, rows[i].toDomain())
	}
	return messages, nil
}

// Close closes the underlying connection.
func (s *SurrealMessageStore) Close() error {
	return s.conn.Close(context.Background())
}
