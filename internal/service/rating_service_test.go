package service

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/notehub-api/internal/dto"
	"github.com/noah-isme/notehub-api/internal/models"
)

func TestRatingServiceAveragesWriterScores(t *testing.T) {
	m := newMarketplace(t, RequestServiceConfig{})
	ctx := context.Background()

	profile, err := m.profiles.Writer(ctx, m.writer.ID)
	require.NoError(t, err)
	require.Zero(t, profile.TotalOrders)

	var last dto.RatingResponse
	for _, score := range []dto.Score{5, 3, 4, 2} {
		id := m.advance(t, models.StatusCompleted)
		last, err = m.ratings.Rate(ctx, actorOf(m.student), id, dto.RatingCreateRequest{Rating: score})
		require.NoError(t, err)
	}

	require.Equal(t, 4, last.WriterTotalOrders)
	require.InDelta(t, 3.5, last.WriterRating, 0.001)

	// The cached profile was dropped so the refreshed aggregate is served.
	profile, err = m.profiles.Writer(ctx, m.writer.ID)
	require.NoError(t, err)
	require.Equal(t, 4, profile.TotalOrders)
	require.InDelta(t, 3.5, profile.Rating, 0.001)

	events := m.events.named(dto.EventRequestRated)
	require.Len(t, events, 4)
	rated := events[3].Data.(dto.RequestRatedEvent)
	require.Equal(t, 2, rated.Score)
	require.Equal(t, 4, rated.WriterTotalOrders)
}

func TestRatingServiceRejectsSecondRating(t *testing.T) {
	m := newMarketplace(t, RequestServiceConfig{})
	ctx := context.Background()
	id := m.advance(t, models.StatusCompleted)

	_, err := m.ratings.Rate(ctx, actorOf(m.student), id, dto.RatingCreateRequest{Rating: 4})
	require.NoError(t, err)

	_, err = m.ratings.Rate(ctx, actorOf(m.student), id, dto.RatingCreateRequest{Rating: 1})
	require.ErrorIs(t, err, ErrAlreadyRated)

	var writer models.User
	require.NoError(t, m.db.First(&writer, m.writer.ID).Error)
	require.Equal(t, 1, writer.TotalOrders)
	require.InDelta(t, 4.0, writer.Rating, 0.001)
}

func TestRatingServiceGuards(t *testing.T) {
	m := newMarketplace(t, RequestServiceConfig{})
	ctx := context.Background()
	other := m.addUser(t, "other", models.RoleStudent)

	delivered := m.advance(t, models.StatusDelivered)
	_, err := m.ratings.Rate(ctx, actorOf(m.student), delivered, dto.RatingCreateRequest{Rating: 5})
	require.ErrorIs(t, err, ErrInvalidState)

	completed := m.advance(t, models.StatusCompleted)
	for _, score := range []dto.Score{0, 6, -1, 4.5, dto.Score(math.NaN())} {
		_, err = m.ratings.Rate(ctx, actorOf(m.student), completed, dto.RatingCreateRequest{Rating: score})
		require.ErrorIs(t, err, ErrInvalidScore)
	}

	_, err = m.ratings.Rate(ctx, actorOf(other), completed, dto.RatingCreateRequest{Rating: 5})
	require.ErrorIs(t, err, ErrForbidden)

	// Ownership and status are checked before the score.
	_, err = m.ratings.Rate(ctx, actorOf(other), completed, dto.RatingCreateRequest{Rating: 9})
	require.ErrorIs(t, err, ErrForbidden)
	_, err = m.ratings.Rate(ctx, actorOf(m.student), delivered, dto.RatingCreateRequest{Rating: 9})
	require.ErrorIs(t, err, ErrInvalidState)

	_, err = m.ratings.Rate(ctx, actorOf(m.student), completed+99, dto.RatingCreateRequest{Rating: 5})
	require.ErrorIs(t, err, ErrNotFound)

	cancelled := m.advance(t, models.StatusAccepted)
	_, err = m.requests.Transition(ctx, actorOf(m.student), cancelled, models.StatusCancelled)
	require.NoError(t, err)
	_, err = m.ratings.Rate(ctx, actorOf(m.student), cancelled, dto.RatingCreateRequest{Rating: 3})
	require.ErrorIs(t, err, ErrInvalidState)

	require.Empty(t, m.events.named(dto.EventRequestRated))
}
