package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/zatekoja/carepoint/internal/domain/entities"
	apperrors "github.com/zatekoja/carepoint/pkg/errors"
)

// ReplyRequest is the input to ForumService.Reply
type ReplyRequest struct {
	Content    string `json:"content"`
	AuthorName string `json:"author_name"`
}

// ForumService handles community replies and likes.
//
// Counters are read-modify-write on the post document; concurrent replies to
// the same post can lose an increment.
type ForumService struct {
	entities      *EntityService
	notifications *NotificationService
}

// NewForumService creates a new forum service
func NewForumService(entitySvc *EntityService, notifications *NotificationService) *ForumService {
	return &ForumService{entities: entitySvc, notifications: notifications}
}

func (s *ForumService) loadPost(ctx context.Context, id string) (*entities.ForumPost, error) {
	rec, err := s.entities.Load(ctx, entities.EntityForumPost, id)
	if err != nil {
		return nil, err
	}
	post := &entities.ForumPost{}
	if err := rec.Decode(post); err != nil {
		return nil, apperrors.NewInternalError("failed to decode forum post", err)
	}
	return post, nil
}

// Reply answers a post and bumps its reply count
func (s *ForumService) Reply(ctx context.Context, p *entities.Principal, postID string, req ReplyRequest) (*entities.ForumReply, error) {
	if err := requirePrincipal(p); err != nil {
		return nil, err
	}
	content := strings.TrimSpace(req.Content)
	if content == "" {
		return nil, apperrors.NewValidationError("reply content cannot be empty")
	}
	post, err := s.loadPost(ctx, postID)
	if err != nil {
		return nil, err
	}

	reply := &entities.ForumReply{
		PostID:           post.ID,
		Content:          content,
		AuthorName:       req.AuthorName,
		IsDoctorResponse: p.Role == entities.RoleDoctor,
	}
	data, err := entities.ToData(reply)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to encode reply", err)
	}
	rec, err := s.entities.CreateAs(ctx, p.Email, entities.EntityForumReply, data)
	if err != nil {
		return nil, err
	}
	if err := rec.Decode(reply); err != nil {
		return nil, apperrors.NewInternalError("failed to decode reply", err)
	}

	if _, err := s.entities.UpdateAs(ctx, entities.EntityForumPost, post.ID, map[string]any{"reply_count": post.ReplyCount + 1}); err != nil {
		return nil, err
	}

	if !strings.EqualFold(post.CreatedBy, p.Email) {
		title := "New reply to your post"
		if reply.IsDoctorResponse {
			title = "A doctor replied to your post"
		}
		s.notifications.notifyQuietly(ctx, post.CreatedBy, title,
			fmt.Sprintf("Someone replied to %q.", post.Title),
			entities.NotificationForum, "/community")
	}
	return reply, nil
}

// Like increments a post's like counter and returns the updated post
func (s *ForumService) Like(ctx context.Context, p *entities.Principal, postID string) (*entities.ForumPost, error) {
	if err := requirePrincipal(p); err != nil {
		return nil, err
	}
	post, err := s.loadPost(ctx, postID)
	if err != nil {
		return nil, err
	}
	rec, err := s.entities.UpdateAs(ctx, entities.EntityForumPost, post.ID, map[string]any{"likes": post.Likes + 1})
	if err != nil {
		return nil, err
	}
	updated := &entities.ForumPost{}
	if err := rec.Decode(updated); err != nil {
		return nil, apperrors.NewInternalError("failed to decode forum post", err)
	}
	return updated, nil
}
