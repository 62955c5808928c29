package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/noah-isme/notehub-api/internal/models"
)

// ErrRatingExists indicates the request already carries a rating.
var ErrRatingExists = errors.New("rating already exists for request")

// RatingBuilder validates the locked request and produces the rating to insert.
type RatingBuilder func(request models.NoteRequest) (models.Rating, error)

// RatingRepository persists ratings together with the writer aggregate derived from them.
type RatingRepository interface {
	Rate(ctx context.Context, requestID uint, build RatingBuilder) (models.Rating, models.User, error)
	GetByRequest(ctx context.Context, requestID uint) (models.Rating, error)
}

type ratingRepository struct {
	db  *gorm.DB
	now func() time.Time
}

// NewRatingRepository constructs a rating repository backed by GORM.
func NewRatingRepository(db *gorm.DB) RatingRepository {
	return &ratingRepository{db: db, now: time.Now}
}

// Rate inserts a rating and recomputes the writer's rating and total_orders in one
// transaction. The request row and then the writer row are locked first so that
// concurrent ratings of the same request or writer serialise.
func (r *ratingRepository) Rate(ctx context.Context, requestID uint, build RatingBuilder) (models.Rating, models.User, error) {
	var (
		rating models.Rating
		writer models.User
	)

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var request models.NoteRequest
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&request, requestID).Error; err != nil {
			return err
		}

		built, err := build(request)
		if err != nil {
			return err
		}

		var locked models.User
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&locked, built.WriterID).Error; err != nil {
			return err
		}

		var existing int64
		if err := tx.Model(&models.Rating{}).Where("request_id = ?", requestID).Count(&existing).Error; err != nil {
			return err
		}
		if existing > 0 {
			return ErrRatingExists
		}

		if err := tx.Create(&built).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrRatingExists
			}
			return err
		}

		err = tx.Exec(
			`UPDATE users SET
				rating = (SELECT ROUND(AVG(ratings.rating), 2) FROM ratings WHERE ratings.writer_id = ?),
				total_orders = (SELECT COUNT(*) FROM ratings WHERE ratings.writer_id = ?),
				updated_at = ?
			WHERE id = ?`,
			built.WriterID, built.WriterID, r.now(), built.WriterID,
		).Error
		if err != nil {
			return err
		}

		var refreshed models.User
		if err := tx.First(&refreshed, built.WriterID).Error; err != nil {
			return err
		}

		rating = built
		writer = refreshed
		return nil
	})
	if err != nil {
		return models.Rating{}, models.User{}, err
	}

	return rating, writer, nil
}

func (r *ratingRepository) GetByRequest(ctx context.Context, requestID uint) (models.Rating, error) {
	var rating models.Rating
	if err := r.db.WithContext(ctx).Where("request_id = ?", requestID).First(&rating).Error; err != nil {
		return models.Rating{}, err
	}
	return rating, nil
}
