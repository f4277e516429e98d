// Package store defines the storage interface and its SQLite implementation.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/xiaot623/aetheron/internal/domain"
)

// ErrDuplicate is returned when an insert violates a uniqueness constraint.
var ErrDuplicate = errors.New("duplicate record")

// Store defines the interface for data persistence.
type Store interface {
	// User operations
	CreateUser(ctx context.Context, user *domain.User) error
	GetUser(ctx context.Context, userID int64) (*domain.User, error)
	GetUserByUsername(ctx context.Context, username string) (*domain.User, error)
	UpdateUser(ctx context.Context, user *domain.User) error

	// Session operations
	CreateSession(ctx context.Context, session *domain.Session) error
	GetSession(ctx context.Context, sessionID int64) (*domain.Session, error)
	ListSessions(ctx context.Context, userID int64) ([]domain.SessionSummary, error)
	LatestSession(ctx context.Context, userID int64) (*domain.Session, error)
	UpdateAutoLabel(ctx context.Context, sessionID int64, label string) (bool, error)
	SetUserLabel(ctx context.Context, sessionID int64, label string) error
	DeleteSession(ctx context.Context, sessionID int64) (bool, error)
	// Sessions listed in exclude are kept even when empty.
	PurgeEmptySessions(ctx context.Context, userID int64, exclude []int64) (int64, error)
	PurgeStaleEmptySessions(ctx context.Context, createdBefore time.Time, exclude []int64) (int64, error)

	// Turn operations
	RecordExchange(ctx context.Context, sessionID int64, exchange domain.Exchange, at time.Time) ([]domain.Turn, error)
	ListTurns(ctx context.Context, sessionID int64) ([]domain.Turn, error)
	FirstUserTexts(ctx context.Context, sessionID int64, limit int) ([]string, error)
	ListTurnsByKind(ctx context.Context, userID int64, kind domain.TurnKind) ([]domain.Turn, error)
	GetTurn(ctx context.Context, turnID int64) (*domain.Turn, error)

	// Stats
	Stats(ctx context.Context) (*domain.Stats, error)

	// Lifecycle
	Close() error
}
