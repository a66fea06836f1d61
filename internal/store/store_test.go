package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.Migrate(context.Background()))

	clock := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time {
		clock = clock.Add(time.Minute)
		return clock
	}
	return s
}

func sampleProject(title string) Project {
	return Project{
		Title:       title,
		Description: "A portfolio project",
		Demo:        "https://demo.example.com",
		Code:        "https://github.com/example/repo",
		Image:       "https://img.example.com/p.png",
	}
}

func TestDriverFor(t *testing.T) {
	cases := []struct {
		url, driver string
	}{
		{"libsql://portfolio.turso.io?authToken=x", "libsql"},
		{"https://portfolio.turso.io", "libsql"},
		{"file:portfolio.db", "sqlite"},
		{"", "sqlite"},
	}
	for _, tc := range cases {
		driver, _ := driverFor(tc.url)
		assert.Equal(t, tc.driver, driver, tc.url)
	}
}

func TestMigrate_Idempotent(t *testing.T) {
	s := newTestStore(t)
	assert.NoError(t, s.Migrate(context.Background()))
}

func TestProjects_CRUD(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	first, err := s.CreateProject(ctx, sampleProject("first"))
	require.NoError(t, err)
	assert.NotEmpty(t, first.ID)
	second, err := s.CreateProject(ctx, sampleProject("  second  "))
	require.NoError(t, err)
	assert.Equal(t, "second", second.Title)

	list, err := s.ListProjects(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID, "newest first")
	assert.Equal(t, first.ID, list[1].ID)

	got, err := s.GetProject(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, first, got)

	n, err := s.CountProjects(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	require.NoError(t, s.DeleteProject(ctx, first.ID))
	_, err = s.GetProject(ctx, first.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.DeleteProject(ctx, first.ID), ErrNotFound)
}

func TestProjects_RequireAllFields(t *testing.T) {
	p := sampleProject("x")
	p.Image = " "
	_, err := newTestStore(t).CreateProject(context.Background(), p)
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestTestimonials_Moderation(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	a, err := s.CreateTestimonial(ctx, Testimonial{Name: "Ada", Content: "Great work", Rating: 4, Approved: true})
	require.NoError(t, err)
	assert.False(t, a.Approved, "submissions start unapproved")
	b, err := s.CreateTestimonial(ctx, Testimonial{Name: "Bob", Position: "CTO", Content: "Fast delivery"})
	require.NoError(t, err)
	assert.Equal(t, 5, b.Rating)

	public, err := s.ListTestimonials(ctx, true)
	require.NoError(t, err)
	assert.Empty(t, public)

	require.NoError(t, s.ApproveTestimonial(ctx, a.ID))
	public, err = s.ListTestimonials(ctx, true)
	require.NoError(t, err)
	require.Len(t, public, 1)
	assert.Equal(t, a.ID, public[0].ID)
	assert.True(t, public[0].Approved)

	all, err := s.ListTestimonials(ctx, false)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, b.ID, all[0].ID)

	counts, err := s.CountTestimonials(ctx)
	require.NoError(t, err)
	assert.Equal(t, TestimonialCounts{Approved: 1, Pending: 1}, counts)

	require.NoError(t, s.DeleteTestimonial(ctx, b.ID))
	assert.ErrorIs(t, s.DeleteTestimonial(ctx, b.ID), ErrNotFound)
	assert.ErrorIs(t, s.ApproveTestimonial(ctx, "missing"), ErrNotFound)
}

func TestTestimonials_Validation(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	_, err := s.CreateTestimonial(ctx, Testimonial{Name: "", Content: "x"})
	assert.ErrorIs(t, err, ErrInvalid)

	high, err := s.CreateTestimonial(ctx, Testimonial{Name: "a", Content: "b", Rating: 9})
	require.NoError(t, err)
	assert.Equal(t, MaxRating, high.Rating)

	low, err := s.CreateTestimonial(ctx, Testimonial{Name: "a", Content: "b", Rating: -2})
	require.NoError(t, err)
	assert.Equal(t, MinRating, low.Rating)
}

func TestCountTestimonials_Empty(t *testing.T) {
	counts, err := newTestStore(t).CountTestimonials(context.Background())
	require.NoError(t, err)
	assert.Zero(t, counts)
}

func TestUsers_Upsert(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	_, err := s.GetUser(ctx, AdminUserID)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.UpsertUser(ctx, AdminUserID, User{Name: "admin", PasswordHash: "h1"}))
	require.NoError(t, s.UpsertUser(ctx, AdminUserID, User{Name: "owner", PasswordHash: "h2"}))

	u, err := s.GetUser(ctx, AdminUserID)
	require.NoError(t, err)
	assert.Equal(t, User{Name: "owner", PasswordHash: "h2"}, u)
}
