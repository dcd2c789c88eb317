package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	MaxPostLength    = 5000
	MaxCommentLength = 1000
)

type Post struct {
	ID            uuid.UUID      `json:"id"`
	Author        ProfileSummary `json:"author"`
	Content       string         `json:"content"`
	ImageURL      *string        `json:"image_url,omitempty"`
	LikesCount    int            `json:"likes_count"`
	CommentsCount int            `json:"comments_count"`
	LikedByMe     bool           `json:"liked_by_me"`
	CreatedAt     time.Time      `json:"created_at"`
}

type Comment struct {
	ID        uuid.UUID      `json:"id"`
	PostID    uuid.UUID      `json:"post_id"`
	Author    ProfileSummary `json:"author"`
	Content   string         `json:"content"`
	CreatedAt time.Time      `json:"created_at"`
}
