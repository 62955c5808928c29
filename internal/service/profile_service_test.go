package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/notehub-api/internal/models"
	"github.com/noah-isme/notehub-api/internal/repository"
)

func TestProfileServiceCachesWriterProfile(t *testing.T) {
	m := newMarketplace(t, RequestServiceConfig{})
	ctx := context.Background()
	key := fmt.Sprintf("test:profile:writer:%d", m.writer.ID)

	profile, err := m.profiles.Writer(ctx, m.writer.ID)
	require.NoError(t, err)
	require.Equal(t, m.writer.Username, profile.Username)
	require.True(t, m.redis.Exists(key))

	// Served from cache until invalidated.
	require.NoError(t, m.db.Model(&models.User{}).Where("id = ?", m.writer.ID).Update("location", "Library").Error)
	cached, err := m.profiles.Writer(ctx, m.writer.ID)
	require.NoError(t, err)
	require.Empty(t, cached.Location)

	m.profiles.Invalidate(ctx, m.writer.ID)
	require.False(t, m.redis.Exists(key))

	fresh, err := m.profiles.Writer(ctx, m.writer.ID)
	require.NoError(t, err)
	require.Equal(t, "Library", fresh.Location)

	m.redis.FastForward(2 * time.Minute)
	require.False(t, m.redis.Exists(key))
}

func TestProfileServiceOnlyServesWriters(t *testing.T) {
	m := newMarketplace(t, RequestServiceConfig{})
	ctx := context.Background()

	_, err := m.profiles.Writer(ctx, m.student.ID)
	require.ErrorIs(t, err, ErrNotFound)

	_, err = m.profiles.Writer(ctx, m.writer.ID+99)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestProfileServiceWorksWithoutRedis(t *testing.T) {
	m := newMarketplace(t, RequestServiceConfig{})
	svc := NewProfileService(repository.NewUserRepository(m.db), nil, "", 0, zerolog.Nop())

	profile, err := svc.Writer(context.Background(), m.writer.ID)
	require.NoError(t, err)
	require.Equal(t, m.writer.ID, profile.ID)
	svc.Invalidate(context.Background(), m.writer.ID)
}
