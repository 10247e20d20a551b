package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"ms-ticketshop/internal/logger"
	"ms-ticketshop/internal/models"
)

type InventoryReader interface {
	CountAvailable(ctx context.Context, eventID string) ([]models.TicketAvailability, error)
	EventExists(ctx context.Context, eventID string) (bool, error)
}

// TicketService answers inventory-display queries. Counts are cached in redis
// with a short TTL; the cache is advisory only, the database CAS in the
// reservation path stays the source of truth.
type TicketService struct {
	DB       InventoryReader
	Cache    *redis.Client
	CacheTTL time.Duration
	Logger   *logger.Logger
}

func NewTicketService(db InventoryReader, cache *redis.Client, ttl time.Duration, log *logger.Logger) *TicketService {
	return &TicketService{DB: db, Cache: cache, CacheTTL: ttl, Logger: log}
}

func availabilityKey(eventID string) string {
	return "availability:" + eventID
}

func (s *TicketService) Availability(ctx context.Context, eventID string) ([]models.TicketAvailability, error) {
	if s.Cache != nil {
		cached, err := s.Cache.Get(ctx, availabilityKey(eventID)).Result()
		if err == nil {
			var counts []models.TicketAvailability
			if err := json.Unmarshal([]byte(cached), &counts); err == nil {
				return counts, nil
			}
		} else if err != redis.Nil {
			s.Logger.Warn("CACHE", fmt.Sprintf("availability cache read failed: %v", err))
		}
	}

	exists, err := s.DB.EventExists(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to check event %s: %w", eventID, err)
	}
	if !exists {
		return nil, ErrEventNotFound
	}

	counts, err := s.DB.CountAvailable(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to count availability for event %s: %w", eventID, err)
	}

	if s.Cache != nil {
		payload, err := json.Marshal(counts)
		if err == nil {
			if err := s.Cache.Set(ctx, availabilityKey(eventID), payload, s.CacheTTL).Err(); err != nil {
				s.Logger.Warn("CACHE", fmt.Sprintf("availability cache write failed: %v", err))
			}
		}
	}
	return counts, nil
}
