package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

const (
	MinRating     = 1
	MaxRating     = 5
	defaultRating = 5
)

type Testimonial struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Position  string    `json:"position"`
	Content   string    `json:"content"`
	Rating    int       `json:"rating"`
	Approved  bool      `json:"approved"`
	CreatedAt time.Time `json:"createdAt"`
}

// TestimonialCounts splits testimonials by moderation state.
type TestimonialCounts struct {
	Approved int64 `json:"approved"`
	Pending  int64 `json:"pending"`
}

// CreateTestimonial stores a visitor submission. Submissions always start
// unapproved.
func (s *Store) CreateTestimonial(ctx context.Context, t Testimonial) (Testimonial, error) {
	t.Name = strings.TrimSpace(t.Name)
	t.Position = strings.TrimSpace(t.Position)
	t.Content = strings.TrimSpace(t.Content)
	if t.Name == "" || t.Content == "" {
		return Testimonial{}, fmt.Errorf("%w: name and content are required", ErrInvalid)
	}
	switch {
	case t.Rating == 0:
		t.Rating = defaultRating
	case t.Rating < MinRating:
		t.Rating = MinRating
	case t.Rating > MaxRating:
		t.Rating = MaxRating
	}
	t.ID = ulid.Make().String()
	t.Approved = false
	t.CreatedAt = s.now().UTC()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO testimonials (id, name, position, content, rating, approved, created_at)
		VALUES (?, ?, ?, ?, ?, 0, ?)
	`, t.ID, t.Name, t.Position, t.Content, t.Rating, toMillis(t.CreatedAt))
	if err != nil {
		return Testimonial{}, fmt.Errorf("insert testimonial: %w", err)
	}
	return t, nil
}

// ListTestimonials returns testimonials newest first; approvedOnly limits the
// result to what the public page may show.
func (s *Store) ListTestimonials(ctx context.Context, approvedOnly bool) ([]Testimonial, error) {
	query := `SELECT id, name, position, content, rating, approved, created_at FROM testimonials`
	if approvedOnly {
		query += ` WHERE approved = 1`
	}
	query += ` ORDER BY created_at DESC, id DESC`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	list := []Testimonial{}
	for rows.Next() {
		var t Testimonial
		var approved, created int64
		if err := rows.Scan(&t.ID, &t.Name, &t.Position, &t.Content, &t.Rating, &approved, &created); err != nil {
			return nil, err
		}
		t.Approved = approved == 1
		t.CreatedAt = fromMillis(created)
		list = append(list, t)
	}
	return list, rows.Err()
}

func (s *Store) ApproveTestimonial(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE testimonials SET approved = 1 WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return checkAffected(res)
}

func (s *Store) DeleteTestimonial(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM testimonials WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return checkAffected(res)
}

func (s *Store) CountTestimonials(ctx context.Context) (TestimonialCounts, error) {
	var c TestimonialCounts
	var approved, pending sql.NullInt64
	err := s.db.QueryRowContext(ctx, `
		SELECT SUM(CASE WHEN approved = 1 THEN 1 ELSE 0 END),
		       SUM(CASE WHEN approved = 0 THEN 1 ELSE 0 END)
		FROM testimonials
	`).Scan(&approved, &pending)
	if err != nil {
		return c, err
	}
	c.Approved = approved.Int64
	c.Pending = pending.Int64
	return c, nil
}
