package handlers

import (
	"context"
	"net/http"

	"github.com/zatekoja/carepoint/internal/application/services"
	"github.com/zatekoja/carepoint/internal/domain/entities"
)

// ForumService defines the forum operations
type ForumService interface {
	Reply(ctx context.Context, p *entities.Principal, postID string, req services.ReplyRequest) (*entities.ForumReply, error)
	Like(ctx context.Context, p *entities.Principal, postID string) (*entities.ForumPost, error)
}

// CommunityHandler handles forum replies and likes
type CommunityHandler struct {
	forum ForumService
}

// NewCommunityHandler creates a new community handler
func NewCommunityHandler(forum ForumService) *CommunityHandler {
	return &CommunityHandler{forum: forum}
}

// Reply handles POST /api/forum/posts/{id}/replies
func (h *CommunityHandler) Reply(w http.ResponseWriter, r *http.Request) {
	var req services.ReplyRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	reply, err := h.forum.Reply(r.Context(), principal(r), r.PathValue("id"), req)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, reply)
}

// Like handles POST /api/forum/posts/{id}/like
func (h *CommunityHandler) Like(w http.ResponseWriter, r *http.Request) {
	post, err := h.forum.Like(r.Context(), principal(r), r.PathValue("id"))
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, post)
}
