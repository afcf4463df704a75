package ledger

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/mcclellann/ikimina/pkg/auth"
	"github.com/mcclellann/ikimina/pkg/models"
)

type AnnouncementRequest struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

func (r AnnouncementRequest) validate() error {
	if strings.TrimSpace(r.Title) == "" {
		return invalid("title is required")
	}
	if strings.TrimSpace(r.Body) == "" {
		return invalid("body is required")
	}
	return nil
}

func (l *Ledger) PostAnnouncement(ctx context.Context, id auth.Identity, groupID uuid.UUID, req AnnouncementRequest) (*models.Announcement, error) {
	if err := require(id, auth.CapPostAnnouncement, groupID); err != nil {
		return nil, err
	}
	if _, err := l.storage.GetGroup(ctx, groupID); err != nil {
		return nil, err
	}
	gid := groupID
	return l.post(ctx, id, &gid, req)
}

// PostNotice publishes a system-wide notice.
func (l *Ledger) PostNotice(ctx context.Context, id auth.Identity, req AnnouncementRequest) (*models.Announcement, error) {
	if err := require(id, auth.CapPostNotice, uuid.Nil); err != nil {
		return nil, err
	}
	return l.post(ctx, id, nil, req)
}

func (l *Ledger) post(ctx context.Context, id auth.Identity, groupID *uuid.UUID, req AnnouncementRequest) (*models.Announcement, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	a := &models.Announcement{
		ID:        uuid.New(),
		GroupID:   groupID,
		AuthorID:  id.UserID,
		Title:     strings.TrimSpace(req.Title),
		Body:      strings.TrimSpace(req.Body),
		CreatedAt: l.now().UTC(),
	}
	if err := l.storage.CreateAnnouncement(ctx, a); err != nil {
		return nil, err
	}
	l.log.Info("announcement posted", "announcement_id", a.ID, "group_id", groupID, "by", id.UserID)
	return a, nil
}

func (l *Ledger) ListAnnouncements(ctx context.Context, id auth.Identity, groupID uuid.UUID) ([]*models.Announcement, error) {
	if err := require(id, auth.CapReadGroup, groupID); err != nil {
		return nil, err
	}
	return l.storage.ListAnnouncements(ctx, &groupID)
}

// ListNotices returns system notices; any authenticated caller may read them.
func (l *Ledger) ListNotices(ctx context.Context, id auth.Identity) ([]*models.Announcement, error) {
	if id.UserID == "" {
		return nil, ErrForbidden
	}
	return l.storage.ListAnnouncements(ctx, nil)
}

// canSeeAnnouncement applies the group's read rule, or admits everyone for notices.
func canSeeAnnouncement(id auth.Identity, a *models.Announcement, c auth.Capability) bool {
	if a.GroupID == nil {
		return id.UserID != ""
	}
	return id.Can(c, *a.GroupID)
}

func (l *Ledger) AddComment(ctx context.Context, id auth.Identity, announcementID uuid.UUID, body string) (*models.Comment, error) {
	a, err := l.storage.GetAnnouncement(ctx, announcementID)
	if err != nil {
		return nil, err
	}
	if !canSeeAnnouncement(id, a, auth.CapComment) {
		return nil, ErrForbidden
	}
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, invalid("comment body is required")
	}

	c := &models.Comment{
		ID:             uuid.New(),
		AnnouncementID: announcementID,
		AuthorID:       id.UserID,
		Body:           body,
		CreatedAt:      l.now().UTC(),
	}
	if err := l.storage.CreateComment(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (l *Ledger) ListComments(ctx context.Context, id auth.Identity, announcementID uuid.UUID) ([]*models.Comment, error) {
	a, err := l.storage.GetAnnouncement(ctx, announcementID)
	if err != nil {
		return nil, err
	}
	if !canSeeAnnouncement(id, a, auth.CapReadGroup) {
		return nil, ErrForbidden
	}
	return l.storage.ListComments(ctx, announcementID)
}
