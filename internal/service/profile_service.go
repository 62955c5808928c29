package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/notehub-api/internal/dto"
	"github.com/noah-isme/notehub-api/internal/observability"
	"github.com/noah-isme/notehub-api/internal/repository"
)

const defaultProfileCacheTTL = 5 * time.Minute

// ProfileService serves public writer profiles, cached in Redis when available.
type ProfileService interface {
	Writer(ctx context.Context, writerID uint) (dto.WriterProfileResponse, error)
	Invalidate(ctx context.Context, writerID uint)
}

type profileService struct {
	users       repository.UserRepository
	redis       *redis.Client
	cachePrefix string
	ttl         time.Duration
	logger      zerolog.Logger
}

// NewProfileService constructs the profile service. redisClient may be nil.
func NewProfileService(users repository.UserRepository, redisClient *redis.Client, channelBase string, ttl time.Duration, logger zerolog.Logger) ProfileService {
	if ttl <= 0 {
		ttl = defaultProfileCacheTTL
	}
	prefix := "profile:writer"
	if channelBase != "" {
		prefix = channelBase + ":" + prefix
	}
	return &profileService{
		users:       users,
		redis:       redisClient,
		cachePrefix: prefix,
		ttl:         ttl,
		logger:      logger.With().Str("component", "profile_service").Logger(),
	}
}

func (s *profileService) Writer(ctx context.Context, writerID uint) (dto.WriterProfileResponse, error) {
	if cached, ok := s.fromCache(ctx, writerID); ok {
		observability.ProfileCacheLookups().WithLabelValues("hit").Inc()
		return cached, nil
	}
	observability.ProfileCacheLookups().WithLabelValues("miss").Inc()

	user, err := s.users.GetByID(ctx, writerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.WriterProfileResponse{}, ErrNotFound
		}
		return dto.WriterProfileResponse{}, err
	}
	if !user.IsWriter() {
		return dto.WriterProfileResponse{}, ErrNotFound
	}

	profile := dto.NewWriterProfileResponse(user)
	s.store(ctx, profile)
	return profile, nil
}

func (s *profileService) Invalidate(ctx context.Context, writerID uint) {
	if s.redis == nil {
		return
	}
	if err := s.redis.Del(ctx, s.key(writerID)).Err(); err != nil {
		s.logger.Warn().Err(err).Uint("writer_id", writerID).Msg("failed to invalidate writer profile cache")
	}
}

func (s *profileService) fromCache(ctx context.Context, writerID uint) (dto.WriterProfileResponse, bool) {
	if s.redis == nil {
		return dto.WriterProfileResponse{}, false
	}

	result, err := s.redis.Get(ctx, s.key(writerID)).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			s.logger.Warn().Err(err).Msg("failed to read writer profile cache")
		}
		return dto.WriterProfileResponse{}, false
	}

	var profile dto.WriterProfileResponse
	if err := json.Unmarshal([]byte(result), &profile); err != nil {
		s.logger.Warn().Err(err).Msg("failed to unmarshal cached writer profile")
		return dto.WriterProfileResponse{}, false
	}
	return profile, true
}

func (s *profileService) store(ctx context.Context, profile dto.WriterProfileResponse) {
	if s.redis == nil {
		return
	}
	payload, err := json.Marshal(profile)
	if err != nil {
		s.logger.Warn().Err(err).Msg("failed to marshal writer profile for cache")
		return
	}
	if err := s.redis.Set(ctx, s.key(profile.ID), payload, s.ttl).Err(); err != nil {
		s.logger.Warn().Err(err).Msg("failed to cache writer profile")
	}
}

func (s *profileService) key(writerID uint) string {
	return fmt.Sprintf("%s:%d", s.cachePrefix, writerID)
}
