// domain/share_event.go
package domain

import (
	"github.com/google/uuid"
	"time"
)

type EventType string

const (
	EventTypeView     EventType = "view"
	EventTypeDownload EventType = "download"
	EventTypeVerify   EventType = "verify"
)

// ShareEvent — неизменяемая запись аудита доступа по ссылке.
// Выборка идет по паре (share_link_id, created_at).
type ShareEvent struct {
	ID                uuid.UUID  `json:"id" db:"id"`
	ShareLinkID       uuid.UUID  `json:"share_link_id" db:"share_link_id"`
	EventType         EventType  `json:"event_type" db:"event_type"`
	ResolvedVersionID *uuid.UUID `json:"resolved_version_id,omitempty" db:"resolved_version_id"`
	ActorIP           string     `json:"actor_ip" db:"actor_ip"`
	ActorUserAgent    string     `json:"actor_user_agent" db:"actor_user_agent"`
	ActorEmail        string     `json:"actor_email,omitempty" db:"actor_email"`
	CreatedAt         time.Time  `json:"created_at" db:"created_at"`
}
