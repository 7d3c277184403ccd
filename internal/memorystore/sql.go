package memorystore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

const schema = `
CREATE TABLE IF NOT EXISTS memories (
	id TEXT PRIMARY KEY,
	kind TEXT NOT NULL,
	content TEXT NOT NULL,
	priority INTEGER NOT NULL DEFAULT 0,
	valence DOUBLE PRECISION NOT NULL DEFAULT 0,
	intensity DOUBLE PRECISION NOT NULL DEFAULT 0,
	certainty DOUBLE PRECISION NOT NULL DEFAULT 1,
	tag TEXT NOT NULL DEFAULT '',
	metadata TEXT,
	created_at BIGINT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_memories_tag ON memories(tag);
CREATE INDEX IF NOT EXISTS idx_memories_created_at ON memories(created_at);
CREATE TABLE IF NOT EXISTS memory_links (
	source_id TEXT NOT NULL,
	target_id TEXT NOT NULL,
	created_at BIGINT NOT NULL,
	PRIMARY KEY (source_id, target_id)
);
`

// SQLStore is a Store over database/sql. Queries are written with ?
// placeholders and rebound for PostgreSQL.
type SQLStore struct {
	db       *sql.DB
	postgres bool
	logger   *zap.Logger
	now      func() time.Time
}

// OpenSQLite creates or opens the SQLite database at path in WAL mode.
func OpenSQLite(path string, logger *zap.Logger) (*SQLStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1) // single writer

	return newSQLStore(db, false, logger)
}

// OpenPostgres connects to PostgreSQL using dsn.
func OpenPostgres(dsn string, logger *zap.Logger) (*SQLStore, error) {
	if dsn == "" {
		return nil, errors.New("postgres dsn is required")
	}
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return newSQLStore(db, true, logger)
}

func newSQLStore(db *sql.DB, postgres bool, logger *zap.Logger) (*SQLStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &SQLStore{db: db, postgres: postgres, logger: logger, now: time.Now}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return s, nil
}

func (s *SQLStore) initSchema() error {
	for _, stmt := range strings.Split(schema, ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// Close closes the underlying database.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

// rebind converts ? placeholders to $n for PostgreSQL.
func (s *SQLStore) rebind(query string) string {
	if !s.postgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *SQLStore) CreateMemory(ctx context.Context, content string, priority int, valence, intensity float64, metadata map[string]string) (string, error) {
	return s.insert(ctx, KindEpisodic, content, priority, valence, intensity, DefaultEpisodicCertainty, metadata)
}

func (s *SQLStore) CreateSemanticMemory(ctx context.Context, content string, certainty float64, priority int, metadata map[string]string) (string, error) {
	return s.insert(ctx, KindSemantic, content, priority, 0, 0, certainty, metadata)
}

func (s *SQLStore) insert(ctx context.Context, kind Kind, content string, priority int, valence, intensity, certainty float64, metadata map[string]string) (string, error) {
	if strings.TrimSpace(content) == "" {
		recordOp("create", ErrEmptyContent)
		return "", ErrEmptyContent
	}

	meta, err := json.Marshal(metadata)
	if err != nil {
		recordOp("create", err)
		return "", fmt.Errorf("encode metadata: %w", err)
	}

	id := uuid.NewString()
	_, err = s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO memories (id, kind, content, priority, valence, intensity, certainty, tag, metadata, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		id, string(kind), content, priority, valence, intensity, clamp01(certainty),
		metadata[TagKey], string(meta), s.now().UnixNano(),
	)
	recordOp("create", err)
	if err != nil {
		return "", fmt.Errorf("insert memory: %w", err)
	}
	return id, nil
}

func (s *SQLStore) GetMemory(ctx context.Context, id string) (*Record, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(`
		SELECT id, kind, content, priority, valence, intensity, certainty, metadata, created_at
		FROM memories WHERE id = ?`), id)

	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		recordOp("get", ErrNotFound)
		return nil, ErrNotFound
	}
	if err != nil {
		recordOp("get", err)
		return nil, fmt.Errorf("get memory: %w", err)
	}

	links, err := s.links(ctx, id)
	recordOp("get", err)
	if err != nil {
		return nil, err
	}
	rec.Links = links
	return rec, nil
}

func (s *SQLStore) links(ctx context.Context, id string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(
		`SELECT target_id FROM memory_links WHERE source_id = ? ORDER BY target_id`), id)
	if err != nil {
		return nil, fmt.Errorf("query links: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var target string
		if err := rows.Scan(&target); err != nil {
			return nil, fmt.Errorf("scan link: %w", err)
		}
		out = append(out, target)
	}
	return out, rows.Err()
}

// ConnectMemories links a and b in both directions. Linking an existing pair
// is a no-op.
func (s *SQLStore) ConnectMemories(ctx context.Context, a, b string) error {
	for _, id := range []string{a, b} {
		var exists int
		err := s.db.QueryRowContext(ctx, s.rebind(`SELECT 1 FROM memories WHERE id = ?`), id).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			recordOp("connect", ErrNotFound)
			return ErrNotFound
		}
		if err != nil {
			recordOp("connect", err)
			return fmt.Errorf("check memory: %w", err)
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		recordOp("connect", err)
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	now := s.now().UnixNano()
	stmt := s.rebind(`INSERT INTO memory_links (source_id, target_id, created_at) VALUES (?, ?, ?)
		ON CONFLICT (source_id, target_id) DO NOTHING`)
	for _, pair := range [][2]string{{a, b}, {b, a}} {
		if _, err := tx.ExecContext(ctx, stmt, pair[0], pair[1], now); err != nil {
			recordOp("connect", err)
			return fmt.Errorf("insert link: %w", err)
		}
	}
	err = tx.Commit()
	recordOp("connect", err)
	return err
}

func (s *SQLStore) SearchMemories(ctx context.Context, q Query) ([]Record, error) {
	var (
		where []string
		args  []any
	)
	if q.Text != "" {
		where = append(where, "LOWER(content) LIKE ?")
		args = append(args, "%"+strings.ToLower(q.Text)+"%")
	}
	if q.Tag != "" {
		where = append(where, "tag = ?")
		args = append(args, q.Tag)
	}
	if !q.Since.IsZero() {
		where = append(where, "created_at >= ?")
		args = append(args, q.Since.UnixNano())
	}
	if !q.Until.IsZero() {
		where = append(where, "created_at < ?")
		args = append(args, q.Until.UnixNano())
	}

	query := `SELECT id, kind, content, priority, valence, intensity, certainty, metadata, created_at FROM memories`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, id"
	if q.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, q.Limit)
	}

	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		recordOp("search", err)
		return nil, fmt.Errorf("search memories: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			recordOp("search", err)
			return nil, fmt.Errorf("scan memory: %w", err)
		}
		out = append(out, *rec)
	}
	err = rows.Err()
	recordOp("search", err)
	return out, err
}

// DeleteMemories removes the given records and their links in one
// transaction.
func (s *SQLStore) DeleteMemories(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		recordOp("delete", err)
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	unlink := s.rebind(`DELETE FROM memory_links WHERE source_id = ? OR target_id = ?`)
	remove := s.rebind(`DELETE FROM memories WHERE id = ?`)
	for _, id := range ids {
		if _, err := tx.ExecContext(ctx, unlink, id, id); err != nil {
			recordOp("delete", err)
			return fmt.Errorf("delete links: %w", err)
		}
		if _, err := tx.ExecContext(ctx, remove, id); err != nil {
			recordOp("delete", err)
			return fmt.Errorf("delete memory: %w", err)
		}
	}
	err = tx.Commit()
	recordOp("delete", err)
	return err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(sc scanner) (*Record, error) {
	var (
		rec     Record
		kind    string
		meta    sql.NullString
		created int64
	)
	if err := sc.Scan(&rec.ID, &kind, &rec.Content, &rec.Priority, &rec.Valence,
		&rec.Intensity, &rec.Certainty, &meta, &created); err != nil {
		return nil, err
	}
	rec.Kind = Kind(kind)
	rec.CreatedAt = time.Unix(0, created)
	if meta.Valid && meta.String != "" && meta.String != "null" {
		if err := json.Unmarshal([]byte(meta.String), &rec.Metadata); err != nil {
			return nil, fmt.Errorf("decode metadata: %w", err)
		}
	}
	return &rec, nil
}

var (
	_ Store   = (*SQLStore)(nil)
	_ Deleter = (*SQLStore)(nil)
)
