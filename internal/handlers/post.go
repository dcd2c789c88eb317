package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/HammerMeetNail/campuslink/internal/models"
	"github.com/HammerMeetNail/campuslink/internal/services"
)

const (
	defaultFeedPage = 20
	maxFeedPage     = 100
)

type PostHandler struct {
	postService services.PostServiceInterface
}

func NewPostHandler(postService services.PostServiceInterface) *PostHandler {
	return &PostHandler{postService: postService}
}

type CreatePostRequest struct {
	Content  string  `json:"content" validate:"required"`
	ImageURL *string `json:"image_url,omitempty" validate:"omitempty,url,max=2048"`
}

type CreateCommentRequest struct {
	Content string `json:"content" validate:"required"`
}

type PostResponse struct {
	Post *models.Post `json:"post"`
}

type PostListResponse struct {
	Posts []models.Post `json:"posts"`
}

type CommentResponse struct {
	Comment *models.Comment `json:"comment"`
}

type CommentListResponse struct {
	Comments []models.Comment `json:"comments"`
}

type LikeResponse struct {
	LikesCount int  `json:"likes_count"`
	LikedByMe  bool `json:"liked_by_me"`
}

func writePostError(w http.ResponseWriter, err error, action string) {
	switch {
	case errors.Is(err, services.ErrPostNotFound):
		writeError(w, http.StatusNotFound, "Post not found")
	case errors.Is(err, services.ErrCommentNotFound):
		writeError(w, http.StatusNotFound, "Comment not found")
	case errors.Is(err, services.ErrEmptyPost):
		writeError(w, http.StatusBadRequest, "Content cannot be empty")
	case errors.Is(err, services.ErrPostTooLong):
		writeError(w, http.StatusBadRequest, "Content is too long")
	case errors.Is(err, services.ErrForbidden):
		writeError(w, http.StatusForbidden, "Only the author or an authority can delete this")
	default:
		internalError(w, action, err)
	}
}

func (h *PostHandler) Create(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}

	var req CreatePostRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	post, err := h.postService.Create(r.Context(), user.ID, req.Content, req.ImageURL)
	if err != nil {
		writePostError(w, err, "creating post")
		return
	}
	writeJSON(w, http.StatusCreated, PostResponse{Post: post})
}

// Feed returns posts newest first; pass the last created_at as ?before= to page.
func (h *PostHandler) Feed(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}
	before, ok := parseBefore(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid before timestamp")
		return
	}
	limit, ok := parseLimit(r, defaultFeedPage, maxFeedPage)
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid limit")
		return
	}

	posts, err := h.postService.List(r.Context(), user.ID, before, limit)
	if err != nil {
		internalError(w, "listing posts", err)
		return
	}
	writeJSON(w, http.StatusOK, PostListResponse{Posts: posts})
}

func (h *PostHandler) Get(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}
	id, ok := parseIDParam(w, r, "id", "post")
	if !ok {
		return
	}

	post, err := h.postService.Get(r.Context(), user.ID, id)
	if err != nil {
		writePostError(w, err, "getting post")
		return
	}
	writeJSON(w, http.StatusOK, PostResponse{Post: post})
}

func (h *PostHandler) Delete(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}
	id, ok := parseIDParam(w, r, "id", "post")
	if !ok {
		return
	}

	if err := h.postService.Delete(r.Context(), user, id); err != nil {
		writePostError(w, err, "deleting post")
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Post deleted"})
}

func (h *PostHandler) Like(w http.ResponseWriter, r *http.Request) {
	h.toggleLike(w, r, true)
}

func (h *PostHandler) Unlike(w http.ResponseWriter, r *http.Request) {
	h.toggleLike(w, r, false)
}

func (h *PostHandler) toggleLike(w http.ResponseWriter, r *http.Request, like bool) {
	user := requireUser(w, r)
	if user == nil {
		return
	}
	id, ok := parseIDParam(w, r, "id", "post")
	if !ok {
		return
	}

	var count int
	var err error
	if like {
		count, err = h.postService.Like(r.Context(), user.ID, id)
	} else {
		count, err = h.postService.Unlike(r.Context(), user.ID, id)
	}
	if err != nil {
		writePostError(w, err, fmt.Sprintf("updating like (like=%t)", like))
		return
	}
	writeJSON(w, http.StatusOK, LikeResponse{LikesCount: count, LikedByMe: like})
}

func (h *PostHandler) AddComment(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}
	id, ok := parseIDParam(w, r, "id", "post")
	if !ok {
		return
	}

	var req CreateCommentRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	comment, err := h.postService.AddComment(r.Context(), user.ID, id, req.Content)
	if err != nil {
		writePostError(w, err, "adding comment")
		return
	}
	writeJSON(w, http.StatusCreated, CommentResponse{Comment: comment})
}

func (h *PostHandler) ListComments(w http.ResponseWriter, r *http.Request) {
	if requireUser(w, r) == nil {
		return
	}
	id, ok := parseIDParam(w, r, "id", "post")
	if !ok {
		return
	}

	comments, err := h.postService.ListComments(r.Context(), id)
	if err != nil {
		writePostError(w, err, "listing comments")
		return
	}
	writeJSON(w, http.StatusOK, CommentListResponse{Comments: comments})
}

func (h *PostHandler) DeleteComment(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}
	id, ok := parseIDParam(w, r, "id", "comment")
	if !ok {
		return
	}

	if err := h.postService.DeleteComment(r.Context(), user, id); err != nil {
		writePostError(w, err, "deleting comment")
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Comment deleted"})
}
