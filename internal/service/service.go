// Package service implements the conversation core: session resolution, history assembly,
// exchange recording, session naming and retention.
package service

import (
	"context"
	"sync"
	"time"

	"github.com/xiaot623/aetheron/internal/adapter/llm"
	"github.com/xiaot623/aetheron/internal/config"
	"github.com/xiaot623/aetheron/internal/domain"
	"github.com/xiaot623/aetheron/internal/logger"
	"github.com/xiaot623/aetheron/internal/repository"
	"github.com/xiaot623/aetheron/policy"
)

// SessionNotifier is told when a session label changes so connected clients can refresh.
type SessionNotifier interface {
	NotifySessionUpdated(userID int64, session domain.Session)
}

type Service struct {
	store        store.Store
	llmClient    llm.LLMClient
	config       *config.Config
	policyEngine *policy.Engine
	log          *logger.Logger
	locks        *sessionLocks
	purgeMu      sync.RWMutex
	notifier     SessionNotifier
	now          func() time.Time
}

func New(store store.Store, llmClient llm.LLMClient, cfg *config.Config, policyEngine *policy.Engine, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewNop()
	}
	return &Service{
		store:        store,
		llmClient:    llmClient,
		config:       cfg,
		policyEngine: policyEngine,
		log:          log,
		locks:        newSessionLocks(),
		now:          time.Now,
	}
}

// SetNotifier registers the receiver of session label changes.
func (s *Service) SetNotifier(n SessionNotifier) {
	s.notifier = n
}

// claimSession resolves the session for an exchange and returns it locked. The lock is
// reserved before purges can run again, so a freshly created empty session is never purged
// while its first exchange is in flight.
func (s *Service) claimSession(ctx context.Context, userID int64, requested *int64) (int64, func(), error) {
	s.purgeMu.RLock()
	sessionID, err := s.ResolveSession(ctx, userID, requested)
	if err != nil {
		s.purgeMu.RUnlock()
		return 0, nil, err
	}
	wait := s.locks.reserve(sessionID)
	s.purgeMu.RUnlock()
	return sessionID, wait(), nil
}
