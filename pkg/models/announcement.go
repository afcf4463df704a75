package models

import (
	"time"

	"github.com/google/uuid"
)

// Announcement is a post to one group. A nil GroupID makes it a system notice
// visible to everybody.
type Announcement struct {
	ID        uuid.UUID  `json:"id"`
	GroupID   *uuid.UUID `json:"group_id,omitempty"`
	AuthorID  string     `json:"author_id"`
	Title     string     `json:"title"`
	Body      string     `json:"body"`
	CreatedAt time.Time  `json:"created_at"`
}

type Comment struct {
	ID             uuid.UUID `json:"id"`
	AnnouncementID uuid.UUID `json:"announcement_id"`
	AuthorID       string    `json:"author_id"`
	Body           string    `json:"body"`
	CreatedAt      time.Time `json:"created_at"`
}
