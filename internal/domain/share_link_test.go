package domain

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestShareLinkEffectiveStatus(t *testing.T) {
	now := time.Now()
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	tests := []struct {
		name      string
		status    ShareLinkStatus
		expiresAt *time.Time
		want      ShareLinkStatus
	}{
		{"active without deadline", ShareLinkStatusActive, nil, ShareLinkStatusActive},
		{"active before deadline", ShareLinkStatusActive, &future, ShareLinkStatusActive},
		{"active past deadline", ShareLinkStatusActive, &past, ShareLinkStatusExpired},
		{"deadline exactly now", ShareLinkStatusActive, &now, ShareLinkStatusExpired},
		{"revoked wins over deadline", ShareLinkStatusRevoked, &future, ShareLinkStatusRevoked},
		{"already expired", ShareLinkStatusExpired, nil, ShareLinkStatusExpired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			link := &ShareLink{Status: tt.status, ExpiresAt: tt.expiresAt}
			assert.Equal(t, tt.want, link.EffectiveStatus(now))
		})
	}
}

func TestShareLinkIsPinned(t *testing.T) {
	link := &ShareLink{}
	assert.False(t, link.IsPinned())

	id := uuid.New()
	link.VersionID = &id
	assert.True(t, link.IsPinned())
}
