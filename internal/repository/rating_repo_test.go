package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/notehub-api/internal/models"
)

var errNotCompleted = errors.New("not completed")

func completedRequest(t *testing.T, repo RequestRepository, studentID, writerID uint) models.NoteRequest {
	t.Helper()
	ctx := context.Background()

	request := createRequest(t, repo, studentID)
	ok, err := repo.Accept(ctx, request.ID, writerID, time.Now())
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = repo.UpdateStatus(ctx, request.ID, models.StatusCompleted, TransitionGuard{
		ActorID:     studentID,
		AllowedFrom: models.ActiveStatuses,
	}, time.Now())
	require.NoError(t, err)
	require.True(t, ok)

	stored, err := repo.GetByID(ctx, request.ID)
	require.NoError(t, err)
	return stored
}

func buildRating(score int) RatingBuilder {
	return func(request models.NoteRequest) (models.Rating, error) {
		if request.Status != models.StatusCompleted || request.WriterID == nil {
			return models.Rating{}, errNotCompleted
		}
		return models.Rating{
			RequestID: request.ID,
			StudentID: request.StudentID,
			WriterID:  *request.WriterID,
			Score:     score,
		}, nil
	}
}

func TestRatingRepositoryRecomputesWriterAggregate(t *testing.T) {
	db := setupRepositoryDB(t)
	requests := NewRequestRepository(db)
	ratings := NewRatingRepository(db)
	ctx := context.Background()

	student := createUser(t, db, "student", models.RoleStudent)
	writer := createUser(t, db, "writer", models.RoleWriter)

	scores := []int{5, 4, 4}
	var aggregated models.User
	for _, score := range scores {
		request := completedRequest(t, requests, student.ID, writer.ID)
		rating, user, err := ratings.Rate(ctx, request.ID, buildRating(score))
		require.NoError(t, err)
		require.NotZero(t, rating.ID)
		require.Equal(t, score, rating.Score)
		aggregated = user
	}

	require.Equal(t, writer.ID, aggregated.ID)
	require.Equal(t, 3, aggregated.TotalOrders)
	require.InDelta(t, 4.33, aggregated.Rating, 0.001)

	var stored models.User
	require.NoError(t, db.First(&stored, writer.ID).Error)
	require.Equal(t, 3, stored.TotalOrders)
	require.InDelta(t, 4.33, stored.Rating, 0.001)
}

func TestRatingRepositoryRejectsSecondRating(t *testing.T) {
	db := setupRepositoryDB(t)
	requests := NewRequestRepository(db)
	ratings := NewRatingRepository(db)
	ctx := context.Background()

	student := createUser(t, db, "student", models.RoleStudent)
	writer := createUser(t, db, "writer", models.RoleWriter)
	request := completedRequest(t, requests, student.ID, writer.ID)

	_, _, err := ratings.Rate(ctx, request.ID, buildRating(5))
	require.NoError(t, err)

	_, _, err = ratings.Rate(ctx, request.ID, buildRating(1))
	require.ErrorIs(t, err, ErrRatingExists)

	var stored models.User
	require.NoError(t, db.First(&stored, writer.ID).Error)
	require.Equal(t, 1, stored.TotalOrders)
	require.InDelta(t, 5.0, stored.Rating, 0.001)

	rating, err := ratings.GetByRequest(ctx, request.ID)
	require.NoError(t, err)
	require.Equal(t, 5, rating.Score)
}

func TestRatingRepositoryBuilderErrorRollsBack(t *testing.T) {
	db := setupRepositoryDB(t)
	requests := NewRequestRepository(db)
	ratings := NewRatingRepository(db)

	student := createUser(t, db, "student", models.RoleStudent)
	request := createRequest(t, requests, student.ID)

	_, _, err := ratings.Rate(context.Background(), request.ID, buildRating(3))
	require.ErrorIs(t, err, errNotCompleted)

	var count int64
	require.NoError(t, db.Model(&models.Rating{}).Count(&count).Error)
	require.Zero(t, count)
}
