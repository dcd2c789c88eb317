package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/HammerMeetNail/campuslink/internal/models"
)

var (
	ErrPostNotFound    = errors.New("post not found")
	ErrCommentNotFound = errors.New("comment not found")
	ErrEmptyPost       = errors.New("content cannot be empty")
	ErrPostTooLong     = errors.New("content is too long")
)

const (
	defaultFeedPage = 20
	maxFeedPage     = 100
)

type PostServiceInterface interface {
	Create(ctx context.Context, authorID uuid.UUID, content string, imageURL *string) (*models.Post, error)
	List(ctx context.Context, viewerID uuid.UUID, before *time.Time, limit int) ([]models.Post, error)
	Get(ctx context.Context, viewerID, postID uuid.UUID) (*models.Post, error)
	Delete(ctx context.Context, actor *models.Profile, postID uuid.UUID) error
	Like(ctx context.Context, userID, postID uuid.UUID) (int, error)
	Unlike(ctx context.Context, userID, postID uuid.UUID) (int, error)
	AddComment(ctx context.Context, userID, postID uuid.UUID, content string) (*models.Comment, error)
	ListComments(ctx context.Context, postID uuid.UUID) ([]models.Comment, error)
	DeleteComment(ctx context.Context, actor *models.Profile, commentID uuid.UUID) error
}

type PostService struct {
	db DB
}

func NewPostService(db DB) *PostService {
	return &PostService{db: db}
}

const postSelect = `SELECT p.id, p.content, p.image_url, p.likes_count, p.comments_count, p.created_at,
	a.id, a.full_name, a.role, a.department, a.avatar_url,
	EXISTS(SELECT 1 FROM post_likes l WHERE l.post_id = p.id AND l.user_id = $1)
	FROM posts p
	JOIN profiles a ON a.id = p.author_id`

func scanPost(row Row) (*models.Post, error) {
	p := &models.Post{}
	var authorID uuid.UUID
	var name, role, department string
	var avatar *string
	err := row.Scan(&p.ID, &p.Content, &p.ImageURL, &p.LikesCount, &p.CommentsCount, &p.CreatedAt,
		&authorID, &name, &role, &department, &avatar, &p.LikedByMe)
	if err != nil {
		return nil, err
	}
	p.Author = summaryFromRow(authorID, name, role, department, avatar)
	return p, nil
}

func normalizeContent(content string, max int) (string, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return "", ErrEmptyPost
	}
	if utf8.RuneCountInString(content) > max {
		return "", ErrPostTooLong
	}
	return content, nil
}

func (s *PostService) Create(ctx context.Context, authorID uuid.UUID, content string, imageURL *string) (*models.Post, error) {
	content, err := normalizeContent(content, models.MaxPostLength)
	if err != nil {
		return nil, err
	}
	if imageURL != nil && strings.TrimSpace(*imageURL) == "" {
		imageURL = nil
	}

	var id uuid.UUID
	err = s.db.QueryRow(ctx,
		`INSERT INTO posts (author_id, content, image_url) VALUES ($1, $2, $3) RETURNING id`,
		authorID, content, imageURL,
	).Scan(&id)
	if err != nil {
		return nil, fmt.Errorf("creating post: %w", err)
	}
	return s.Get(ctx, authorID, id)
}

func (s *PostService) Get(ctx context.Context, viewerID, postID uuid.UUID) (*models.Post, error) {
	p, err := scanPost(s.db.QueryRow(ctx, postSelect+` WHERE p.id = $2`, viewerID, postID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrPostNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting post: %w", err)
	}
	return p, nil
}

// List returns the feed newest first. before pages backwards through older posts.
func (s *PostService) List(ctx context.Context, viewerID uuid.UUID, before *time.Time, limit int) ([]models.Post, error) {
	if limit <= 0 {
		limit = defaultFeedPage
	}
	if limit > maxFeedPage {
		limit = maxFeedPage
	}
	rows, err := s.db.Query(ctx,
		postSelect+`
		 WHERE a.deleted_at IS NULL AND ($2::timestamptz IS NULL OR p.created_at < $2)
		 ORDER BY p.created_at DESC
		 LIMIT $3`,
		viewerID, before, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("listing posts: %w", err)
	}
	defer rows.Close()

	posts := []models.Post{}
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning post: %w", err)
		}
		posts = append(posts, *p)
	}
	return posts, rows.Err()
}

func (s *PostService) Delete(ctx context.Context, actor *models.Profile, postID uuid.UUID) error {
	var authorID uuid.UUID
	err := s.db.QueryRow(ctx, `SELECT author_id FROM posts WHERE id = $1`, postID).Scan(&authorID)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrPostNotFound
	}
	if err != nil {
		return fmt.Errorf("loading post: %w", err)
	}
	if actor == nil || (actor.ID != authorID && actor.Role != models.RoleAuthority) {
		return ErrForbidden
	}
	if _, err := s.db.Exec(ctx, `DELETE FROM posts WHERE id = $1`, postID); err != nil {
		return fmt.Errorf("deleting post: %w", err)
	}
	return nil
}

// Like is idempotent: liking twice leaves one like and one count.
func (s *PostService) Like(ctx context.Context, userID, postID uuid.UUID) (int, error) {
	var count int
	err := withTx(ctx, s.db, func(tx Tx) error {
		tag, err := tx.Exec(ctx,
			`INSERT INTO post_likes (post_id, user_id) VALUES ($1, $2) ON CONFLICT (post_id, user_id) DO NOTHING`,
			postID, userID,
		)
		if isForeignKeyViolation(err) {
			return ErrPostNotFound
		}
		if err != nil {
			return fmt.Errorf("liking post: %w", err)
		}
		return adjustPostCounter(ctx, tx, postID, "likes_count", int(tag.RowsAffected()), &count)
	})
	return count, err
}

func (s *PostService) Unlike(ctx context.Context, userID, postID uuid.UUID) (int, error) {
	var count int
	err := withTx(ctx, s.db, func(tx Tx) error {
		tag, err := tx.Exec(ctx, `DELETE FROM post_likes WHERE post_id = $1 AND user_id = $2`, postID, userID)
		if err != nil {
			return fmt.Errorf("unliking post: %w", err)
		}
		return adjustPostCounter(ctx, tx, postID, "likes_count", -int(tag.RowsAffected()), &count)
	})
	return count, err
}

// adjustPostCounter applies delta to a denormalized counter column and reads
// the result back. column is always a constant from this file.
func adjustPostCounter(ctx context.Context, q DBConn, postID uuid.UUID, column string, delta int, out *int) error {
	err := q.QueryRow(ctx,
		`UPDATE posts SET `+column+` = GREATEST(`+column+` + $2, 0) WHERE id = $1 RETURNING `+column,
		postID, delta,
	).Scan(out)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrPostNotFound
	}
	if err != nil {
		return fmt.Errorf("updating %s: %w", column, err)
	}
	return nil
}

func (s *PostService) AddComment(ctx context.Context, userID, postID uuid.UUID, content string) (*models.Comment, error) {
	content, err := normalizeContent(content, models.MaxCommentLength)
	if err != nil {
		return nil, err
	}

	c := &models.Comment{PostID: postID, Content: content}
	err = withTx(ctx, s.db, func(tx Tx) error {
		err := tx.QueryRow(ctx,
			`INSERT INTO post_comments (post_id, author_id, content) VALUES ($1, $2, $3) RETURNING id, created_at`,
			postID, userID, content,
		).Scan(&c.ID, &c.CreatedAt)
		if isForeignKeyViolation(err) {
			return ErrPostNotFound
		}
		if err != nil {
			return fmt.Errorf("adding comment: %w", err)
		}
		var n int
		return adjustPostCounter(ctx, tx, postID, "comments_count", 1, &n)
	})
	if err != nil {
		return nil, err
	}
	c.Author = models.ProfileSummary{ID: userID}
	return c, nil
}

func (s *PostService) ListComments(ctx context.Context, postID uuid.UUID) ([]models.Comment, error) {
	rows, err := s.db.Query(ctx,
		`SELECT c.id, c.post_id, c.content, c.created_at, a.id, a.full_name, a.role, a.department, a.avatar_url
		 FROM post_comments c
		 JOIN profiles a ON a.id = c.author_id
		 WHERE c.post_id = $1
		 ORDER BY c.created_at`,
		postID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing comments: %w", err)
	}
	defer rows.Close()

	comments := []models.Comment{}
	for rows.Next() {
		var c models.Comment
		var authorID uuid.UUID
		var name, role, department string
		var avatar *string
		if err := rows.Scan(&c.ID, &c.PostID, &c.Content, &c.CreatedAt, &authorID, &name, &role, &department, &avatar); err != nil {
			return nil, fmt.Errorf("scanning comment: %w", err)
		}
		c.Author = summaryFromRow(authorID, name, role, department, avatar)
		comments = append(comments, c)
	}
	return comments, rows.Err()
}

// DeleteComment is allowed for the comment author, the post author and authorities.
func (s *PostService) DeleteComment(ctx context.Context, actor *models.Profile, commentID uuid.UUID) error {
	if actor == nil {
		return ErrForbidden
	}
	return withTx(ctx, s.db, func(tx Tx) error {
		var postID, commentAuthor, postAuthor uuid.UUID
		err := tx.QueryRow(ctx,
			`SELECT c.post_id, c.author_id, p.author_id
			 FROM post_comments c
			 JOIN posts p ON p.id = c.post_id
			 WHERE c.id = $1
			 FOR UPDATE OF c`,
			commentID,
		).Scan(&postID, &commentAuthor, &postAuthor)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrCommentNotFound
		}
		if err != nil {
			return fmt.Errorf("loading comment: %w", err)
		}
		if actor.ID != commentAuthor && actor.ID != postAuthor && actor.Role != models.RoleAuthority {
			return ErrForbidden
		}
		if _, err := tx.Exec(ctx, `DELETE FROM post_comments WHERE id = $1`, commentID); err != nil {
			return fmt.Errorf("deleting comment: %w", err)
		}
		var n int
		return adjustPostCounter(ctx, tx, postID, "comments_count", -1, &n)
	})
}
