package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/xiaot623/aetheron/internal/domain"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store.
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// For in-memory SQLite, multiple connections create separate databases.
	// Keep a single connection to avoid schema/data disappearing across goroutines.
	// Shared-cache connections get SQLITE_LOCKED instead of waiting on busy_timeout,
	// so they are funnelled through one connection too.
	if dsn == ":memory:" || strings.Contains(dsn, "mode=memory") || strings.Contains(dsn, "cache=shared") {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	}

	// Enable foreign keys. File DSNs also carry _foreign_keys=on so pooled connections get it.
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// migrate runs database migrations.
func (s *SQLiteStore) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS users (
			user_id INTEGER PRIMARY KEY AUTOINCREMENT,
			username TEXT NOT NULL UNIQUE,
			email TEXT,
			password_hash TEXT NOT NULL,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS sessions (
			session_id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id INTEGER NOT NULL,
			label TEXT NOT NULL DEFAULT 'New Chat',
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (user_id) REFERENCES users(user_id) ON DELETE CASCADE
		)`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_user ON sessions(user_id, created_at)`,
		`CREATE TABLE IF NOT EXISTS turns (
			turn_id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id INTEGER NOT NULL,
			role TEXT NOT NULL CHECK (role IN ('user', 'assistant')),
			user_text TEXT,
			assistant_text TEXT,
			kind TEXT NOT NULL DEFAULT 'text',
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (session_id) REFERENCES sessions(session_id) ON DELETE CASCADE
		)`,
		`CREATE INDEX IF NOT EXISTS idx_turns_session ON turns(session_id, created_at, turn_id)`,
	}

	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w\n%s", err, m)
		}
	}

	// Databases created before manual renames existed lack the flag.
	if err := s.ensureColumn("sessions", "label_user_set", "ALTER TABLE sessions ADD COLUMN label_user_set INTEGER NOT NULL DEFAULT 0"); err != nil {
		return err
	}
	if _, err := s.db.Exec(`CREATE INDEX IF NOT EXISTS idx_turns_kind ON turns(kind, session_id)`); err != nil {
		return err
	}

	return nil
}

func (s *SQLiteStore) ensureColumn(tableName, columnName, ddl string) error {
	rows, err := s.db.Query(fmt.Sprintf("PRAGMA table_info(%s)", tableName))
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var cid int
		var name, ctype string
		var notnull int
		var dfltValue sql.NullString
		var pk int
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dfltValue, &pk); err != nil {
			return err
		}
		if name == columnName {
			return nil
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}

	_, err = s.db.Exec(ddl)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// CreateUser inserts a user and sets its generated ID.
func (s *SQLiteStore) CreateUser(ctx context.Context, user *domain.User) error {
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now()
	}
	user.CreatedAt = user.CreatedAt.UTC()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO users (username, email, password_hash, created_at) VALUES (?, ?, ?, ?)`,
		user.Username, nullString(user.Email), user.PasswordHash, user.CreatedAt)
	if err != nil {
		return translateErr(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	user.UserID = id
	return nil
}

// GetUser retrieves a user by ID.
func (s *SQLiteStore) GetUser(ctx context.Context, userID int64) (*domain.User, error) {
	return s.scanUser(s.db.QueryRowContext(ctx,
		`SELECT user_id, username, email, password_hash, created_at FROM users WHERE user_id = ?`, userID))
}

// GetUserByUsername retrieves a user by username.
func (s *SQLiteStore) GetUserByUsername(ctx context.Context, username string) (*domain.User, error) {
	return s.scanUser(s.db.QueryRowContext(ctx,
		`SELECT user_id, username, email, password_hash, created_at FROM users WHERE username = ?`, username))
}

func (s *SQLiteStore) scanUser(row *sql.Row) (*domain.User, error) {
	var user domain.User
	var email sql.NullString
	err := row.Scan(&user.UserID, &user.Username, &email, &user.PasswordHash, &user.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	user.Email = email.String
	return &user, nil
}

// UpdateUser overwrites username, email and password hash.
func (s *SQLiteStore) UpdateUser(ctx context.Context, user *domain.User) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE users SET username = ?, email = ?, password_hash = ? WHERE user_id = ?`,
		user.Username, nullString(user.Email), user.PasswordHash, user.UserID)
	return translateErr(err)
}

// CreateSession inserts a session and sets its generated ID.
func (s *SQLiteStore) CreateSession(ctx context.Context, session *domain.Session) error {
	if session.CreatedAt.IsZero() {
		session.CreatedAt = time.Now()
	}
	session.CreatedAt = session.CreatedAt.UTC()
	if session.Label == "" {
		session.Label = domain.DefaultSessionLabel
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (user_id, label, label_user_set, created_at) VALUES (?, ?, ?, ?)`,
		session.UserID, session.Label, session.LabelUserSet, session.CreatedAt)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	session.SessionID = id
	return nil
}

const sessionColumns = `session_id, user_id, label, label_user_set, created_at`

// GetSession retrieves a session by ID. It returns nil, nil when the session does not exist.
func (s *SQLiteStore) GetSession(ctx context.Context, sessionID int64) (*domain.Session, error) {
	var session domain.Session
	err := s.db.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE session_id = ?`, sessionID).
		Scan(&session.SessionID, &session.UserID, &session.Label, &session.LabelUserSet, &session.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &session, nil
}

// ListSessions returns the user's sessions, most recently active first.
func (s *SQLiteStore) ListSessions(ctx context.Context, userID int64) ([]domain.SessionSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT s.session_id, s.user_id, s.label, s.label_user_set, s.created_at,
			COUNT(t.turn_id), MAX(t.created_at)
		FROM sessions s
		LEFT JOIN turns t ON t.session_id = s.session_id
		WHERE s.user_id = ?
		GROUP BY s.session_id
		ORDER BY COALESCE(MAX(t.created_at), s.created_at) DESC, s.session_id DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.SessionSummary
	for rows.Next() {
		var sum domain.SessionSummary
		var last sql.NullString
		if err := rows.Scan(&sum.SessionID, &sum.UserID, &sum.Label, &sum.LabelUserSet, &sum.CreatedAt,
			&sum.TurnCount, &last); err != nil {
			return nil, err
		}
		if last.Valid {
			ts, err := parseTimestamp(last.String)
			if err != nil {
				return nil, err
			}
			sum.LastTurnAt = &ts
		}
		out = append(out, sum)
	}
	return out, rows.Err()
}

// LatestSession returns the user's most recently created session, or nil if they have none.
func (s *SQLiteStore) LatestSession(ctx context.Context, userID int64) (*domain.Session, error) {
	var session domain.Session
	err := s.db.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE user_id = ? ORDER BY session_id DESC LIMIT 1`, userID).
		Scan(&session.SessionID, &session.UserID, &session.Label, &session.LabelUserSet, &session.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &session, nil
}

// UpdateAutoLabel sets a generated label unless the user already renamed the session.
// It reports whether the stored label changed.
func (s *SQLiteStore) UpdateAutoLabel(ctx context.Context, sessionID int64, label string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET label = ? WHERE session_id = ? AND label_user_set = 0 AND label <> ?`,
		label, sessionID, label)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// SetUserLabel stores a label chosen by the user and pins it against auto-labeling.
func (s *SQLiteStore) SetUserLabel(ctx context.Context, sessionID int64, label string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET label = ?, label_user_set = 1 WHERE session_id = ?`, label, sessionID)
	return err
}

// DeleteSession removes a session and its turns in one transaction.
func (s *SQLiteStore) DeleteSession(ctx context.Context, sessionID int64) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM turns WHERE session_id = ?`, sessionID); err != nil {
		return false, err
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM sessions WHERE session_id = ?`, sessionID)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if err := tx.Commit(); err != nil {
		return false, err
	}
	return affected > 0, nil
}

// PurgeEmptySessions deletes every turn-less session of the user.
func (s *SQLiteStore) PurgeEmptySessions(ctx context.Context, userID int64, exclude []int64) (int64, error) {
	notIn, args := excludeClause(exclude)
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM sessions
		WHERE user_id = ?
			AND NOT EXISTS (SELECT 1 FROM turns t WHERE t.session_id = sessions.session_id)`+notIn,
		append([]interface{}{userID}, args...)...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// PurgeStaleEmptySessions deletes turn-less sessions of any user created before the cutoff.
func (s *SQLiteStore) PurgeStaleEmptySessions(ctx context.Context, createdBefore time.Time, exclude []int64) (int64, error) {
	notIn, args := excludeClause(exclude)
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM sessions
		WHERE created_at < ?
			AND NOT EXISTS (SELECT 1 FROM turns t WHERE t.session_id = sessions.session_id)`+notIn,
		append([]interface{}{createdBefore.UTC()}, args...)...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func excludeClause(ids []int64) (string, []interface{}) {
	if len(ids) == 0 {
		return "", nil
	}
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return " AND session_id NOT IN (?" + strings.Repeat(", ?", len(ids)-1) + ")", args
}

// RecordExchange appends the user turn and the assistant turn of one exchange atomically.
// Either both rows are stored or neither is.
func (s *SQLiteStore) RecordExchange(ctx context.Context, sessionID int64, exchange domain.Exchange, at time.Time) ([]domain.Turn, error) {
	kind := exchange.Kind
	if !kind.Valid() {
		return nil, fmt.Errorf("invalid turn kind %q", kind)
	}
	at = at.UTC()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	userRes, err := tx.ExecContext(ctx,
		`INSERT INTO turns (session_id, role, user_text, assistant_text, kind, created_at) VALUES (?, 'user', ?, NULL, ?, ?)`,
		sessionID, exchange.User.Text, kind, at)
	if err != nil {
		return nil, fmt.Errorf("insert user turn: %w", err)
	}
	userID, err := userRes.LastInsertId()
	if err != nil {
		return nil, err
	}

	assistantRes, err := tx.ExecContext(ctx,
		`INSERT INTO turns (session_id, role, user_text, assistant_text, kind, created_at) VALUES (?, 'assistant', NULL, ?, ?, ?)`,
		sessionID, exchange.Assistant.Text, kind, at)
	if err != nil {
		return nil, fmt.Errorf("insert assistant turn: %w", err)
	}
	assistantID, err := assistantRes.LastInsertId()
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	return []domain.Turn{
		{TurnID: userID, SessionID: sessionID, Kind: kind, CreatedAt: at, Body: exchange.User},
		{TurnID: assistantID, SessionID: sessionID, Kind: kind, CreatedAt: at, Body: exchange.Assistant},
	}, nil
}

const turnColumns = `turn_id, session_id, role, user_text, assistant_text, kind, created_at`

// ListTurns returns the session's turns in chronological order.
func (s *SQLiteStore) ListTurns(ctx context.Context, sessionID int64) ([]domain.Turn, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+turnColumns+` FROM turns WHERE session_id = ? ORDER BY created_at ASC, turn_id ASC`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTurns(rows)
}

// FirstUserTexts returns up to limit user inputs of the session, oldest first.
func (s *SQLiteStore) FirstUserTexts(ctx context.Context, sessionID int64, limit int) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT user_text FROM turns
		WHERE session_id = ? AND role = 'user'
		ORDER BY created_at ASC, turn_id ASC
		LIMIT ?`, sessionID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var text sql.NullString
		if err := rows.Scan(&text); err != nil {
			return nil, err
		}
		out = append(out, text.String)
	}
	return out, rows.Err()
}

// ListTurnsByKind returns the user's turns of one kind across all sessions, newest first.
func (s *SQLiteStore) ListTurnsByKind(ctx context.Context, userID int64, kind domain.TurnKind) ([]domain.Turn, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT t.turn_id, t.session_id, t.role, t.user_text, t.assistant_text, t.kind, t.created_at
		FROM turns t
		JOIN sessions s ON s.session_id = t.session_id
		WHERE s.user_id = ? AND t.kind = ?
		ORDER BY t.created_at DESC, t.turn_id DESC`, userID, kind)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTurns(rows)
}

// GetTurn retrieves a turn by ID.
func (s *SQLiteStore) GetTurn(ctx context.Context, turnID int64) (*domain.Turn, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+turnColumns+` FROM turns WHERE turn_id = ?`, turnID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	turns, err := scanTurns(rows)
	if err != nil {
		return nil, err
	}
	if len(turns) == 0 {
		return nil, nil
	}
	return &turns[0], nil
}

// Stats returns aggregate counters over the whole store.
func (s *SQLiteStore) Stats(ctx context.Context) (*domain.Stats, error) {
	stats := &domain.Stats{TurnsByKind: make(map[domain.TurnKind]int64)}
	err := s.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM users),
			(SELECT COUNT(*) FROM sessions),
			(SELECT COUNT(*) FROM sessions s WHERE NOT EXISTS (SELECT 1 FROM turns t WHERE t.session_id = s.session_id)),
			(SELECT COUNT(*) FROM turns)`).
		Scan(&stats.Users, &stats.Sessions, &stats.EmptySessions, &stats.Turns)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `SELECT kind, COUNT(*) FROM turns GROUP BY kind`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var kind string
		var count int64
		if err := rows.Scan(&kind, &count); err != nil {
			return nil, err
		}
		stats.TurnsByKind[domain.TurnKind(kind)] = count
	}
	return stats, rows.Err()
}

func scanTurns(rows *sql.Rows) ([]domain.Turn, error) {
	var out []domain.Turn
	for rows.Next() {
		var turn domain.Turn
		var role, kind string
		var userText, assistantText sql.NullString
		if err := rows.Scan(&turn.TurnID, &turn.SessionID, &role, &userText, &assistantText, &kind, &turn.CreatedAt); err != nil {
			return nil, err
		}
		turn.Kind = domain.TurnKind(kind)
		switch domain.Role(role) {
		case domain.RoleUser:
			turn.Body = domain.UserTurn{Text: userText.String}
		case domain.RoleAssistant:
			turn.Body = domain.AssistantTurn{Text: assistantText.String}
		default:
			return nil, fmt.Errorf("turn %d has unknown role %q", turn.TurnID, role)
		}
		out = append(out, turn)
	}
	return out, rows.Err()
}

// parseTimestamp parses a DATETIME value returned without column type information.
func parseTimestamp(raw string) (time.Time, error) {
	raw = strings.TrimSuffix(raw, "Z")
	for _, layout := range sqlite3.SQLiteTimestampFormats {
		if ts, err := time.ParseInLocation(layout, raw, time.UTC); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", raw)
}

func translateErr(err error) error {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
		return fmt.Errorf("%w: %v", ErrDuplicate, err)
	}
	return err
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
