package dto

import (
	"encoding/json"
	"math"
	"time"

	"github.com/noah-isme/notehub-api/internal/models"
)

// RatingCreateRequest is the payload a student submits for a completed request.
// Score range is checked by the reputation service so it can report InvalidScore.
type RatingCreateRequest struct {
	Rating Score  `json:"rating"`
	Review string `json:"review" validate:"omitempty,max=2000"`
}

// Score is a submitted rating value. Anything that is not a JSON number decodes
// to NaN instead of failing the whole payload.
type Score float64

// UnmarshalJSON implements json.Unmarshaler.
func (s *Score) UnmarshalJSON(data []byte) error {
	var value float64
	if err := json.Unmarshal(data, &value); err != nil {
		*s = Score(math.NaN())
		return nil
	}
	*s = Score(value)
	return nil
}

// Int returns the score as a whole number. It reports false for fractional,
// non-finite or non-numeric input.
func (s Score) Int() (int, bool) {
	value := float64(s)
	if math.IsNaN(value) || math.IsInf(value, 0) || value != math.Trunc(value) {
		return 0, false
	}
	if value < math.MinInt32 || value > math.MaxInt32 {
		return 0, false
	}
	return int(value), true
}

// RatingResponse describes a stored rating and the writer's refreshed reputation.
type RatingResponse struct {
	ID                uint      `json:"id"`
	RequestID         uint      `json:"request_id"`
	StudentID         uint      `json:"student_id"`
	WriterID          uint      `json:"writer_id"`
	Rating            int       `json:"rating"`
	Review            string    `json:"review,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
	WriterRating      float64   `json:"writer_rating"`
	WriterTotalOrders int       `json:"writer_total_orders"`
}

// NewRatingResponse converts a rating and the updated writer into a DTO.
func NewRatingResponse(rating models.Rating, writer models.User) RatingResponse {
	return RatingResponse{
		ID:                rating.ID,
		RequestID:         rating.RequestID,
		StudentID:         rating.StudentID,
		WriterID:          rating.WriterID,
		Rating:            rating.Score,
		Review:            rating.Review,
		CreatedAt:         rating.CreatedAt,
		WriterRating:      writer.Rating,
		WriterTotalOrders: writer.TotalOrders,
	}
}
