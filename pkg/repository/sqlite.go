package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/listener/pkg/model"
	_ "modernc.org/sqlite"
)

// sqliteRepo implements Repository using SQLite
type sqliteRepo struct {
	db *sql.DB
}

// NewSQLite opens (and if needed creates) a SQLite database at dbPath and
// returns a repository backed by it.
func NewSQLite(dbPath string) (Repository, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, goerr.Wrap(err, "failed to create database directory", goerr.V("dir", dir))
		}
	}

	// WAL for concurrent readers during a dashboard load while a chat turn
	// writes. The _pragma form applies to every pooled connection.
	dsn := dbPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to open database", goerr.V("path", dbPath))
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, goerr.Wrap(err, "failed to ping database", goerr.V("path", dbPath))
	}

	repo := &sqliteRepo{db: db}
	if err := repo.initSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return repo, nil
}

func (r *sqliteRepo) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS conversations (
		session_id TEXT PRIMARY KEY,
		conversation_data TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_conversations_created ON conversations(created_at);

	CREATE TABLE IF NOT EXISTS tags (
		name TEXT PRIMARY KEY
	);

	CREATE TABLE IF NOT EXISTS tag_assignments (
		session_id TEXT NOT NULL,
		tag_name TEXT NOT NULL,
		active INTEGER NOT NULL DEFAULT 0,
		assigned_at INTEGER NOT NULL,
		PRIMARY KEY (session_id, tag_name)
	);
	CREATE INDEX IF NOT EXISTS idx_assignments_tag ON tag_assignments(tag_name, active);
	`
	if _, err := r.db.Exec(schema); err != nil {
		return goerr.Wrap(err, "failed to initialize schema")
	}
	return nil
}

func (r *sqliteRepo) PutConversation(ctx context.Context, conv *model.Conversation) error {
	data, err := json.Marshal(conv.Messages)
	if err != nil {
		return goerr.Wrap(err, "failed to marshal conversation", goerr.V("session_id", conv.SessionID))
	}

	createdAt := conv.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	// created_at is immutable: the upsert replaces the transcript only
	query := `
	INSERT INTO conversations (session_id, conversation_data, created_at)
	VALUES (?, ?, ?)
	ON CONFLICT(session_id) DO UPDATE SET
		conversation_data = excluded.conversation_data`

	if _, err := r.db.ExecContext(ctx, query, string(conv.SessionID), string(data), createdAt.Unix()); err != nil {
		return goerr.Wrap(err, "failed to save conversation", goerr.V("session_id", conv.SessionID))
	}
	return nil
}

func (r *sqliteRepo) GetConversation(ctx context.Context, id model.SessionID) (*model.Conversation, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT conversation_data, created_at FROM conversations WHERE session_id = ?",
		string(id))

	var data string
	var createdAt int64
	if err := row.Scan(&data, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, goerr.Wrap(model.ErrConversationNotFound, "no such session", goerr.V("session_id", id))
		}
		return nil, goerr.Wrap(err, "failed to scan conversation", goerr.V("session_id", id))
	}

	var messages []model.Message
	if err := json.Unmarshal([]byte(data), &messages); err != nil {
		return nil, goerr.Wrap(err, "failed to unmarshal conversation", goerr.V("session_id", id))
	}

	return &model.Conversation{
		SessionID: id,
		Messages:  messages,
		CreatedAt: time.Unix(createdAt, 0),
	}, nil
}

func (r *sqliteRepo) CountConversations(ctx context.Context) (int, error) {
	var count int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM conversations").Scan(&count); err != nil {
		return 0, goerr.Wrap(err, "failed to count conversations")
	}
	return count, nil
}

func (r *sqliteRepo) ListCreatedAt(ctx context.Context, since time.Time) ([]time.Time, error) {
	query := "SELECT created_at FROM conversations"
	args := []any{}
	if !since.IsZero() {
		query += " WHERE created_at >= ?"
		args = append(args, since.Unix())
	}
	query += " ORDER BY created_at"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list conversation timestamps")
	}
	defer rows.Close()

	var timestamps []time.Time
	for rows.Next() {
		var ts int64
		if err := rows.Scan(&ts); err != nil {
			return nil, goerr.Wrap(err, "failed to scan timestamp")
		}
		timestamps = append(timestamps, time.Unix(ts, 0))
	}
	if err := rows.Err(); err != nil {
		return nil, goerr.Wrap(err, "failed to iterate timestamps")
	}
	return timestamps, nil
}

func (r *sqliteRepo) ListTags(ctx context.Context) ([]string, error) {
	// rowid preserves registration order, which keeps the vocabulary stable
	// for query construction
	rows, err := r.db.QueryContext(ctx, "SELECT name FROM tags ORDER BY rowid")
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list tags")
	}
	defer rows.Close()

	var tags []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, goerr.Wrap(err, "failed to scan tag")
		}
		tags = append(tags, name)
	}
	if err := rows.Err(); err != nil {
		return nil, goerr.Wrap(err, "failed to iterate tags")
	}
	return tags, nil
}

func (r *sqliteRepo) RegisterTag(ctx context.Context, name string) error {
	if err := model.ValidateTagName(name); err != nil {
		return err
	}

	// Existing sessions need no backfill: a missing assignment row for this
	// tag reads as inactive.
	if _, err := r.db.ExecContext(ctx, "INSERT OR IGNORE INTO tags (name) VALUES (?)", name); err != nil {
		return goerr.Wrap(err, "failed to register tag", goerr.V("name", name))
	}
	return nil
}

func (r *sqliteRepo) ListUnclassified(ctx context.Context) ([]*model.Conversation, error) {
	query := `
	SELECT c.session_id, c.conversation_data, c.created_at
	FROM conversations c
	LEFT JOIN tag_assignments t ON c.session_id = t.session_id
	WHERE t.session_id IS NULL
	ORDER BY c.created_at`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list unclassified conversations")
	}
	defer rows.Close()

	var convs []*model.Conversation
	for rows.Next() {
		var id, data string
		var createdAt int64
		if err := rows.Scan(&id, &data, &createdAt); err != nil {
			return nil, goerr.Wrap(err, "failed to scan unclassified conversation")
		}

		var messages []model.Message
		if err := json.Unmarshal([]byte(data), &messages); err != nil {
			return nil, goerr.Wrap(err, "failed to unmarshal conversation", goerr.V("session_id", id))
		}

		convs = append(convs, &model.Conversation{
			SessionID: model.SessionID(id),
			Messages:  messages,
			CreatedAt: time.Unix(createdAt, 0),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, goerr.Wrap(err, "failed to iterate unclassified conversations")
	}
	return convs, nil
}

func (r *sqliteRepo) PutAssignment(ctx context.Context, assignment *model.TagAssignment) (bool, error) {
	if len(assignment.Flags) == 0 {
		return false, goerr.New("tag assignment has no flags", goerr.V("session_id", assignment.SessionID))
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, goerr.Wrap(err, "failed to begin transaction")
	}
	defer func() {
		_ = tx.Rollback()
	}()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO tag_assignments (session_id, tag_name, active, assigned_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(session_id, tag_name) DO NOTHING`)
	if err != nil {
		return false, goerr.Wrap(err, "failed to prepare assignment insert")
	}
	defer stmt.Close()

	// If a concurrent scan classified this session first, every insert hits
	// the primary key and affects nothing. The loser commits a no-op.
	var affected int64
	for _, flag := range assignment.Flags {
		active := 0
		if flag.Active {
			active = 1
		}
		res, err := stmt.ExecContext(ctx, string(assignment.SessionID), flag.Name, active, assignment.AssignedAt.Unix())
		if err != nil {
			return false, goerr.Wrap(err, "failed to insert assignment row",
				goerr.V("session_id", assignment.SessionID), goerr.V("tag", flag.Name))
		}
		n, err := res.RowsAffected()
		if err != nil {
			return false, goerr.Wrap(err, "failed to read rows affected")
		}
		affected += n
	}

	if err := tx.Commit(); err != nil {
		return false, goerr.Wrap(err, "failed to commit assignment", goerr.V("session_id", assignment.SessionID))
	}

	return affected > 0, nil
}

func (r *sqliteRepo) ListTagged(ctx context.Context, since time.Time) ([]*model.TaggedConversation, error) {
	query := `
	SELECT t.session_id, c.created_at, t.tag_name, t.active
	FROM tag_assignments t
	JOIN conversations c ON t.session_id = c.session_id`
	args := []any{}
	if !since.IsZero() {
		query += " WHERE c.created_at >= ?"
		args = append(args, since.Unix())
	}
	query += " ORDER BY c.created_at, t.session_id"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list tagged conversations")
	}
	defer rows.Close()

	var result []*model.TaggedConversation
	byID := map[model.SessionID]*model.TaggedConversation{}
	for rows.Next() {
		var id, tag string
		var createdAt int64
		var active int
		if err := rows.Scan(&id, &createdAt, &tag, &active); err != nil {
			return nil, goerr.Wrap(err, "failed to scan tagged conversation")
		}

		tc, ok := byID[model.SessionID(id)]
		if !ok {
			tc = &model.TaggedConversation{
				SessionID: model.SessionID(id),
				CreatedAt: time.Unix(createdAt, 0),
				Active:    map[string]bool{},
			}
			byID[model.SessionID(id)] = tc
			result = append(result, tc)
		}
		tc.Active[tag] = active != 0
	}
	if err := rows.Err(); err != nil {
		return nil, goerr.Wrap(err, "failed to iterate tagged conversations")
	}
	return result, nil
}

func (r *sqliteRepo) Close() error {
	if err := r.db.Close(); err != nil {
		return goerr.Wrap(err, "failed to close database")
	}
	return nil
}
