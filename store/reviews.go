package store

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/segmentio/ksuid"
	"go.mau.fi/util/dbutil"

	"github.com/letmevibethatforyou/promptplace"
)

// Review is a buyer's rating of a prompt on a 0 to 5 scale.
type Review struct {
	ID        string    `json:"id"`
	PromptID  string    `json:"promptId"`
	UserID    string    `json:"userId"`
	Rating    float64   `json:"rating"`
	Comment   string    `json:"comment"`
	CreatedAt time.Time `json:"createdAt"`
}

func newReview(_ *dbutil.QueryHelper[*Review]) *Review {
	return &Review{}
}

const (
	listReviewsQuery = `
		SELECT id, prompt_id, user_id, rating, comment, created_at
		FROM reviews WHERE prompt_id = $1
		ORDER BY created_at DESC, id
	`
	insertReviewQuery = `
		INSERT INTO reviews (id, prompt_id, user_id, rating, comment, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
)

func (r *Review) Scan(row dbutil.Scannable) (*Review, error) {
	var createdAt int64
	err := row.Scan(&r.ID, &r.PromptID, &r.UserID, &r.Rating, &r.Comment, &createdAt)
	if err != nil {
		return nil, err
	}
	r.CreatedAt = time.UnixMilli(createdAt)
	return r, nil
}

// ListReviews returns the reviews of a prompt, newest first.
func (s *Store) ListReviews(ctx context.Context, promptID string) ([]*Review, error) {
	reviews, err := s.reviews.QueryMany(ctx, listReviewsQuery, promptID)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to list reviews of prompt %s", promptID)
	}
	return reviews, nil
}

// AddReview records a review. Ratings outside the review scale are rejected.
func (s *Store) AddReview(ctx context.Context, review *Review) error {
	if review.Rating < 0 || review.Rating > promptplace.MaxRating {
		return errors.Newf("rating %v is outside 0..%v", review.Rating, promptplace.MaxRating)
	}
	if review.ID == "" {
		review.ID = ksuid.New().String()
	}
	if review.CreatedAt.IsZero() {
		review.CreatedAt = time.Now()
	}
	_, err := s.db.Exec(ctx, insertReviewQuery,
		review.ID, review.PromptID, review.UserID, review.Rating, review.Comment, review.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return errors.Wrapf(err, "failed to add review to prompt %s", review.PromptID)
	}
	return nil
}
