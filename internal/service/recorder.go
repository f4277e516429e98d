package service

import (
	"context"

	"github.com/xiaot623/aetheron/internal/domain"
)

// RecordExchange persists the user and assistant turns of one exchange as a unit.
func (s *Service) RecordExchange(ctx context.Context, sessionID int64, exchange domain.Exchange) error {
	if _, err := s.store.RecordExchange(ctx, sessionID, exchange, s.now()); err != nil {
		return domain.StorageError("record_exchange", err)
	}
	return nil
}
