package service

import (
	"context"
	"log"
	"time"

	"enablehub/internal/domain"

	"github.com/google/uuid"
)

// Actor — метаданные того, кто пришел по ссылке
type Actor struct {
	IP        string
	UserAgent string
	Email     string
}

// EventService пишет аудит доступа. Контракт — fire-and-forget: отказ записи
// логируется и глотается, основной ответ из-за него не падает и не повторяется.
type EventService struct {
	links ShareLinkStore
}

func NewEventService(links ShareLinkStore) *EventService {
	return &EventService{links: links}
}

// Record добавляет событие и обновляет last_access_at ссылки.
// Проверка allow_download для событий download лежит на вызывающем:
// рекордер только фиксирует случившееся.
func (s *EventService) Record(ctx context.Context, link *domain.ShareLink, eventType domain.EventType, resolvedVersionID *uuid.UUID, actor Actor) *domain.ShareEvent {
	event := &domain.ShareEvent{
		ID:                uuid.New(),
		ShareLinkID:       link.ID,
		EventType:         eventType,
		ResolvedVersionID: resolvedVersionID,
		ActorIP:           actor.IP,
		ActorUserAgent:    actor.UserAgent,
		ActorEmail:        actor.Email,
		CreatedAt:         time.Now(),
	}

	if err := s.links.AppendEvent(ctx, event); err != nil {
		log.Printf("[Events] Failed to append %s event for link %s: %v", eventType, link.ID, err)
	}

	if err := s.links.UpdateLastAccess(ctx, link.ID, event.CreatedAt); err != nil {
		log.Printf("[Events] Failed to update last access for link %s: %v", link.ID, err)
	}

	return event
}
