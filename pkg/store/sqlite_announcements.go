package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/mcclellann/ikimina/pkg/models"
)

func (s *SQLiteStore) CreateAnnouncement(ctx context.Context, a *models.Announcement) error {
	var groupID uuid.NullUUID
	if a.GroupID != nil {
		groupID = uuid.NullUUID{UUID: *a.GroupID, Valid: true}
	}
	_, err := s.q.ExecContext(ctx,
		`INSERT INTO announcements (id, group_id, author_id, title, body, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		a.ID, groupID, a.AuthorID, a.Title, a.Body, a.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create announcement: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetAnnouncement(ctx context.Context, id uuid.UUID) (*models.Announcement, error) {
	row := s.q.QueryRowContext(ctx, `SELECT id, group_id, author_id, title, body, created_at FROM announcements WHERE id = ?`, id)
	a, err := scanAnnouncement(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("announcement %w", ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get announcement: %w", err)
	}
	return a, nil
}

func (s *SQLiteStore) ListAnnouncements(ctx context.Context, groupID *uuid.UUID) ([]*models.Announcement, error) {
	query := `SELECT id, group_id, author_id, title, body, created_at FROM announcements WHERE group_id IS NULL ORDER BY created_at DESC`
	var args []any
	if groupID != nil {
		query = `SELECT id, group_id, author_id, title, body, created_at FROM announcements WHERE group_id = ? ORDER BY created_at DESC`
		args = append(args, *groupID)
	}

	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list announcements: %w", err)
	}
	defer rows.Close()

	announcements := make([]*models.Announcement, 0)
	for rows.Next() {
		a, err := scanAnnouncement(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan announcement row: %w", err)
		}
		announcements = append(announcements, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during rows iteration for announcements: %w", err)
	}
	return announcements, nil
}

func scanAnnouncement(row scanner) (*models.Announcement, error) {
	var a models.Announcement
	var groupID uuid.NullUUID
	if err := row.Scan(&a.ID, &groupID, &a.AuthorID, &a.Title, &a.Body, &a.CreatedAt); err != nil {
		return nil, err
	}
	if groupID.Valid {
		a.GroupID = &groupID.UUID
	}
	return &a, nil
}

func (s *SQLiteStore) CreateComment(ctx context.Context, c *models.Comment) error {
	_, err := s.q.ExecContext(ctx,
		`INSERT INTO announcement_comments (id, announcement_id, author_id, body, created_at) VALUES (?, ?, ?, ?, ?)`,
		c.ID, c.AnnouncementID, c.AuthorID, c.Body, c.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create comment: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ListComments(ctx context.Context, announcementID uuid.UUID) ([]*models.Comment, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT id, announcement_id, author_id, body, created_at FROM announcement_comments WHERE announcement_id = ? ORDER BY created_at ASC`,
		announcementID)
	if err != nil {
		return nil, fmt.Errorf("failed to list comments for announcement %s: %w", announcementID, err)
	}
	defer rows.Close()

	comments := make([]*models.Comment, 0)
	for rows.Next() {
		var c models.Comment
		if err := rows.Scan(&c.ID, &c.AnnouncementID, &c.AuthorID, &c.Body, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan comment row: %w", err)
		}
		comments = append(comments, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during rows iteration for comments: %w", err)
	}
	return comments, nil
}
