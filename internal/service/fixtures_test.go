package service

import (
	"context"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noah-isme/notehub-api/internal/database"
	"github.com/noah-isme/notehub-api/internal/dto"
	"github.com/noah-isme/notehub-api/internal/models"
	"github.com/noah-isme/notehub-api/internal/repository"
)

var pngPixel = []byte{
	0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a,
	0x00, 0x00, 0x00, 0x0d, 0x49, 0x48, 0x44, 0x52,
	0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01,
	0x08, 0x06, 0x00, 0x00, 0x00, 0x1f, 0x15, 0xc4,
	0x89, 0x00, 0x00, 0x00, 0x0a, 0x49, 0x44, 0x41,
	0x54, 0x78, 0x9c, 0x63, 0x00, 0x01, 0x00, 0x00,
	0x05, 0x00, 0x01, 0x0d, 0x0a, 0x2d, 0xb4, 0x00,
	0x00, 0x00, 0x00, 0x49, 0x45, 0x4e, 0x44, 0xae,
	0x42, 0x60, 0x82,
}

var pdfDocument = []byte("%PDF-1.4\n1 0 obj\n<< /Type /Catalog >>\nendobj\ntrailer\n<< /Root 1 0 R >>\n%%EOF\n")

type publishedEvent struct {
	Event  string
	Data   interface{}
	Topics []string
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []publishedEvent
}

func (p *recordingPublisher) Publish(_ context.Context, event string, data interface{}, topics ...string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, publishedEvent{Event: event, Data: data, Topics: topics})
}

func (p *recordingPublisher) named(event string) []publishedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()

	var out []publishedEvent
	for _, evt := range p.events {
		if evt.Event == event {
			out = append(out, evt)
		}
	}
	return out
}

type memoryStorage struct {
	mu    sync.Mutex
	files map[string][]byte
}

func (m *memoryStorage) Upload(_ context.Context, name string, reader io.Reader) (string, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return "", err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.files == nil {
		m.files = make(map[string][]byte)
	}
	url := fmt.Sprintf("mem://%d/%s", len(m.files)+1, name)
	m.files[url] = data
	return url, nil
}

type marketplace struct {
	db       *gorm.DB
	requests RequestService
	chat     ChatService
	ratings  RatingService
	activity ActivityService
	profiles ProfileService
	events   *recordingPublisher
	storage  *memoryStorage
	redis    *miniredis.Miniredis

	student models.User
	writer  models.User
	rival   models.User
}

func newMarketplace(t *testing.T, cfg RequestServiceConfig) *marketplace {
	t.Helper()

	dsn := fmt.Sprintf("file:service_%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, database.Migrate(db))

	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = redisClient.Close() })

	logger := zerolog.Nop()
	validate := validator.New(validator.WithRequiredStructEnabled())

	users := repository.NewUserRepository(db)
	requestRepo := repository.NewRequestRepository(db)
	events := &recordingPublisher{}
	storage := &memoryStorage{}

	uploads := NewUploadService(storage, repository.NewUploadRepository(db), 5, logger)
	activity := NewActivityService(repository.NewActivityLogRepository(db), requestRepo, logger)
	profiles := NewProfileService(users, redisClient, "test", time.Minute, logger)

	m := &marketplace{
		db:       db,
		requests: NewRequestService(requestRepo, users, uploads, activity, events, cfg, validate, logger),
		chat:     NewChatService(requestRepo, repository.NewMessageRepository(db), uploads, events, validate, logger),
		ratings:  NewRatingService(repository.NewRatingRepository(db), profiles, activity, events, validate, logger),
		activity: activity,
		profiles: profiles,
		events:   events,
		storage:  storage,
		redis:    mr,
	}
	m.student = m.addUser(t, "student", models.RoleStudent)
	m.writer = m.addUser(t, "writer", models.RoleWriter)
	m.rival = m.addUser(t, "rival", models.RoleWriter)
	return m
}

func (m *marketplace) addUser(t *testing.T, username, role string) models.User {
	t.Helper()

	user := models.User{
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: "hash",
		Role:         role,
		Phone:        "0800-" + username,
	}
	require.NoError(t, m.db.Create(&user).Error)
	return user
}

func actorOf(user models.User) Actor {
	return Actor{ID: user.ID, Role: user.Role, Username: user.Username}
}

func newRequestPayload() dto.RequestCreateRequest {
	return dto.RequestCreateRequest{
		Subject:          "Chemistry",
		Topic:            "Organic reactions",
		NoteType:         models.NoteTypePrinted,
		Pages:            6,
		Deadline:         time.Now().Add(48 * time.Hour),
		DeliveryLocation: "Hostel B",
	}
}

func (m *marketplace) openRequest(t *testing.T) uint {
	t.Helper()

	created, err := m.requests.Create(context.Background(), actorOf(m.student), newRequestPayload(), nil)
	require.NoError(t, err)
	return created.ID
}

// advance drives a fresh request to status through the normal forward path.
func (m *marketplace) advance(t *testing.T, status string) uint {
	t.Helper()
	ctx := context.Background()

	id := m.openRequest(t)
	if status == models.StatusOpen {
		return id
	}

	_, err := m.requests.Accept(ctx, actorOf(m.writer), id)
	require.NoError(t, err)

	current := models.StatusAccepted
	for _, next := range []string{models.StatusInProgress, models.StatusReady, models.StatusDelivered, models.StatusCompleted} {
		if current == status {
			break
		}
		actor := m.writer
		if next == models.StatusCompleted {
			actor = m.student
		}
		_, err := m.requests.Transition(ctx, actorOf(actor), id, next)
		require.NoError(t, err)
		current = next
	}
	return id
}
