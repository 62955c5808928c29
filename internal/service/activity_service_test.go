package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/notehub-api/internal/models"
)

func TestActivityServiceRecordMasksContactDetails(t *testing.T) {
	m := newMarketplace(t, RequestServiceConfig{})
	ctx := context.Background()
	id := m.openRequest(t)

	err := m.activity.Record(ctx, ActivityEntry{
		RequestID: id,
		ActorID:   m.student.ID,
		ActorRole: "Student",
		Action:    " Request.Note ",
		Metadata: map[string]interface{}{
			"student_email": "student@example.com",
			"Phone":         "0800",
			"field":         "topic",
		},
	})
	require.NoError(t, err)

	trail, err := m.activity.ListForRequest(ctx, actorOf(m.student), id)
	require.NoError(t, err)
	require.Len(t, trail, 2)

	entry := trail[1]
	require.Equal(t, "request.note", entry.Action)
	require.Equal(t, models.RoleStudent, entry.ActorRole)
	require.Equal(t, "***", entry.Metadata["student_email"])
	require.Equal(t, "***", entry.Metadata["Phone"])
	require.Equal(t, "topic", entry.Metadata["field"])
}

func TestActivityServiceRecordValidatesEntry(t *testing.T) {
	m := newMarketplace(t, RequestServiceConfig{})

	require.Error(t, m.activity.Record(context.Background(), ActivityEntry{Action: "request.created"}))
	require.Error(t, m.activity.Record(context.Background(), ActivityEntry{RequestID: 1}))
}

func TestActivityServiceDefaultsSystemRole(t *testing.T) {
	m := newMarketplace(t, RequestServiceConfig{})
	ctx := context.Background()
	id := m.openRequest(t)

	require.NoError(t, m.activity.Record(ctx, ActivityEntry{RequestID: id, Action: "request.expired"}))

	trail, err := m.activity.ListForRequest(ctx, actorOf(m.student), id)
	require.NoError(t, err)
	require.Equal(t, "system", trail[len(trail)-1].ActorRole)
}
