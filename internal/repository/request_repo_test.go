package repository

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/notehub-api/internal/models"
)

func TestRequestRepositoryAcceptIsExclusive(t *testing.T) {
	db := setupRepositoryDB(t)
	repo := NewRequestRepository(db)
	student := createUser(t, db, "student", models.RoleStudent)
	request := createRequest(t, repo, student.ID)

	writers := make([]models.User, 8)
	for i := range writers {
		writers[i] = createUser(t, db, "writer"+string(rune('a'+i)), models.RoleWriter)
	}

	var (
		wg   sync.WaitGroup
		wins int32
	)
	errs := make(chan error, len(writers))
	for _, writer := range writers {
		wg.Add(1)
		go func(writerID uint) {
			defer wg.Done()
			ok, err := repo.Accept(context.Background(), request.ID, writerID, time.Now())
			if err != nil {
				errs <- err
				return
			}
			if ok {
				atomic.AddInt32(&wins, 1)
			}
		}(writer.ID)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}

	require.Equal(t, int32(1), wins)

	stored, err := repo.GetByID(context.Background(), request.ID)
	require.NoError(t, err)
	require.Equal(t, models.StatusAccepted, stored.Status)
	require.NotNil(t, stored.WriterID)
	require.NotNil(t, stored.Writer)
	require.Equal(t, *stored.WriterID, stored.Writer.ID)
}

func TestRequestRepositoryAcceptRejectsNonOpen(t *testing.T) {
	db := setupRepositoryDB(t)
	repo := NewRequestRepository(db)
	student := createUser(t, db, "student", models.RoleStudent)
	writer := createUser(t, db, "writer", models.RoleWriter)
	request := createRequest(t, repo, student.ID)

	ok, err := repo.UpdateStatus(context.Background(), request.ID, models.StatusCancelled, TransitionGuard{
		ActorID:     student.ID,
		Participant: ParticipantStudent,
		AllowedFrom: models.NonTerminalStatuses,
	}, time.Now())
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = repo.Accept(context.Background(), request.ID, writer.ID, time.Now())
	require.NoError(t, err)
	require.False(t, ok)

	ok, err = repo.Accept(context.Background(), request.ID+100, writer.ID, time.Now())
	require.NoError(t, err)
	require.False(t, ok)
}

func TestRequestRepositoryUpdateStatusGuards(t *testing.T) {
	db := setupRepositoryDB(t)
	repo := NewRequestRepository(db)
	ctx := context.Background()
	student := createUser(t, db, "student", models.RoleStudent)
	writer := createUser(t, db, "writer", models.RoleWriter)
	outsider := createUser(t, db, "outsider", models.RoleWriter)
	request := createRequest(t, repo, student.ID)

	ok, err := repo.Accept(ctx, request.ID, writer.ID, time.Now())
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = repo.UpdateStatus(ctx, request.ID, models.StatusInProgress, TransitionGuard{
		ActorID:     outsider.ID,
		AllowedFrom: models.ActiveStatuses,
	}, time.Now())
	require.NoError(t, err)
	require.False(t, ok, "non-participants cannot move the request")

	ok, err = repo.UpdateStatus(ctx, request.ID, models.StatusInProgress, TransitionGuard{
		ActorID:     student.ID,
		Participant: ParticipantWriter,
		AllowedFrom: []string{models.StatusAccepted},
	}, time.Now())
	require.NoError(t, err)
	require.False(t, ok, "writer-only transitions reject the student")

	ok, err = repo.UpdateStatus(ctx, request.ID, models.StatusReady, TransitionGuard{
		ActorID:     writer.ID,
		Participant: ParticipantWriter,
		AllowedFrom: []string{models.StatusInProgress},
	}, time.Now())
	require.NoError(t, err)
	require.False(t, ok, "source status must match")

	ok, err = repo.UpdateStatus(ctx, request.ID, models.StatusInProgress, TransitionGuard{
		ActorID:     writer.ID,
		Participant: ParticipantWriter,
		AllowedFrom: []string{models.StatusAccepted},
	}, time.Now())
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = repo.UpdateStatus(ctx, request.ID, models.StatusReady, TransitionGuard{ActorID: writer.ID}, time.Now())
	require.NoError(t, err)
	require.False(t, ok, "an empty source set never matches")

	stored, err := repo.GetByID(ctx, request.ID)
	require.NoError(t, err)
	require.Equal(t, models.StatusInProgress, stored.Status)
}

func TestRequestRepositoryListings(t *testing.T) {
	db := setupRepositoryDB(t)
	repo := NewRequestRepository(db)
	ctx := context.Background()
	student := createUser(t, db, "student", models.RoleStudent)
	other := createUser(t, db, "other", models.RoleStudent)
	writer := createUser(t, db, "writer", models.RoleWriter)

	first := createRequest(t, repo, student.ID)
	second := createRequest(t, repo, student.ID)
	foreign := createRequest(t, repo, other.ID)

	ok, err := repo.Accept(ctx, foreign.ID, writer.ID, time.Now())
	require.NoError(t, err)
	require.True(t, ok)

	mine, err := repo.ListByStudent(ctx, student.ID)
	require.NoError(t, err)
	require.Len(t, mine, 2)
	require.ElementsMatch(t, []uint{first.ID, second.ID}, []uint{mine[0].ID, mine[1].ID})

	visible, err := repo.ListForWriter(ctx, writer.ID)
	require.NoError(t, err)
	require.Len(t, visible, 3)

	stranger := createUser(t, db, "stranger", models.RoleWriter)
	visible, err = repo.ListForWriter(ctx, stranger.ID)
	require.NoError(t, err)
	require.Len(t, visible, 2, "accepted requests of other writers are hidden")
}
