package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

type Project struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Demo        string    `json:"demo"`
	Code        string    `json:"code"`
	Image       string    `json:"image"`
	CreatedAt   time.Time `json:"createdAt"`
}

func (p *Project) normalize() error {
	p.Title = strings.TrimSpace(p.Title)
	p.Description = strings.TrimSpace(p.Description)
	p.Demo = strings.TrimSpace(p.Demo)
	p.Code = strings.TrimSpace(p.Code)
	p.Image = strings.TrimSpace(p.Image)
	if p.Title == "" || p.Description == "" || p.Demo == "" || p.Code == "" || p.Image == "" {
		return fmt.Errorf("%w: all project fields are required", ErrInvalid)
	}
	return nil
}

// CreateProject assigns an id and creation time and stores p.
func (s *Store) CreateProject(ctx context.Context, p Project) (Project, error) {
	if err := p.normalize(); err != nil {
		return Project{}, err
	}
	p.ID = ulid.Make().String()
	p.CreatedAt = s.now().UTC()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO projects (id, title, description, demo, code, image, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, p.ID, p.Title, p.Description, p.Demo, p.Code, p.Image, toMillis(p.CreatedAt))
	if err != nil {
		return Project{}, fmt.Errorf("insert project: %w", err)
	}
	return p, nil
}

// ListProjects returns every project, newest first.
func (s *Store) ListProjects(ctx context.Context) ([]Project, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, description, demo, code, image, created_at
		FROM projects
		ORDER BY created_at DESC, id DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	projects := []Project{}
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

func (s *Store) GetProject(ctx context.Context, id string) (Project, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, title, description, demo, code, image, created_at
		FROM projects WHERE id = ?
	`, id)
	p, err := scanProject(row)
	if err == sql.ErrNoRows {
		return Project{}, ErrNotFound
	}
	return p, err
}

func (s *Store) DeleteProject(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM projects WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return checkAffected(res)
}

func (s *Store) CountProjects(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM projects`).Scan(&n)
	return n, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanProject(sc scanner) (Project, error) {
	var p Project
	var created int64
	if err := sc.Scan(&p.ID, &p.Title, &p.Description, &p.Demo, &p.Code, &p.Image, &created); err != nil {
		return Project{}, err
	}
	p.CreatedAt = fromMillis(created)
	return p, nil
}
