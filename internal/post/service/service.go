package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/ysamarin/postline/backend/internal/common/clock"
	commoncrypto "github.com/ysamarin/postline/backend/internal/common/crypto"
	commonerrors "github.com/ysamarin/postline/backend/internal/common/errors"
	"github.com/ysamarin/postline/backend/internal/common/logger"
	"github.com/ysamarin/postline/backend/internal/observability/metrics"
	"github.com/ysamarin/postline/backend/internal/post/domain"
	postrepo "github.com/ysamarin/postline/backend/internal/post/repository"
)

// UpdateInput carries the mutable post fields. Nil means "leave unchanged";
// a full update sends both, a partial update sends the fields present in
// the request body.
type UpdateInput struct {
	Content *string
	Hidden  *bool
}

type PostService struct {
	posts postrepo.Repository
	ids   commoncrypto.IDGenerator
	clock clock.Clock
	log   *logger.Logger
}

func NewPostService(
	posts postrepo.Repository,
	ids commoncrypto.IDGenerator,
	clk clock.Clock,
	log *logger.Logger,
) *PostService {
	return &PostService{
		posts: posts,
		ids:   ids,
		clock: clk,
		log:   log,
	}
}

// Create persists a post owned by authorID. The author always comes from
// the authenticated caller, never from the request body.
func (s *PostService) Create(ctx context.Context, authorID, content string, hidden bool) (domain.Post, error) {
	id, err := s.ids.NewID()
	if err != nil {
		return domain.Post{}, fmt.Errorf("generate post id: %w", err)
	}

	now := s.clock.Now().UTC()
	post := domain.Post{
		ID:        id,
		AuthorID:  authorID,
		Content:   content,
		Hidden:    hidden,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.posts.Create(ctx, post); err != nil {
		return domain.Post{}, fmt.Errorf("create post: %w", err)
	}

	metrics.PostsCreated.WithLabelValues(strconv.FormatBool(hidden)).Inc()
	s.log.WithFields(ctx, logger.Fields{
		"action":  "create_post",
		"post_id": id,
		"user_id": authorID,
	}).Info("post created")

	return post, nil
}

// Update patches the caller's post. A foreign or absent id comes back as
// the same not-found error so callers cannot probe other users' posts.
func (s *PostService) Update(ctx context.Context, authorID, postID string, input UpdateInput) (domain.Post, error) {
	post, err := s.posts.Update(ctx, postID, authorID, input.Content, input.Hidden, s.clock.Now().UTC())
	if err != nil {
		if errors.Is(err, postrepo.ErrPostNotFound) {
			return domain.Post{}, commonerrors.ErrPostNotFound.WithCause(err)
		}
		return domain.Post{}, fmt.Errorf("update post: %w", err)
	}

	metrics.PostsUpdated.Inc()
	s.log.WithFields(ctx, logger.Fields{
		"action":  "update_post",
		"post_id": postID,
		"user_id": authorID,
	}).Info("post updated")

	return post, nil
}

func (s *PostService) Delete(ctx context.Context, authorID, postID string) error {
	if err := s.posts.Delete(ctx, postID, authorID); err != nil {
		if errors.Is(err, postrepo.ErrPostNotFound) {
			return commonerrors.ErrPostNotFound.WithCause(err)
		}
		return fmt.Errorf("delete post: %w", err)
	}

	metrics.PostsDeleted.Inc()
	s.log.WithFields(ctx, logger.Fields{
		"action":  "delete_post",
		"post_id": postID,
		"user_id": authorID,
	}).Info("post deleted")

	return nil
}

// ListOwn returns one page of the caller's posts, hidden ones included,
// newest first, plus the total count for pagination.
func (s *PostService) ListOwn(ctx context.Context, authorID string, limit, offset int) ([]domain.Post, int, error) {
	count, err := s.posts.CountByAuthor(ctx, authorID)
	if err != nil {
		return nil, 0, fmt.Errorf("count posts: %w", err)
	}

	posts, err := s.posts.ListByAuthor(ctx, authorID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list posts: %w", err)
	}
	return posts, count, nil
}

// Feed returns one page of everyone's visible posts, newest first.
func (s *PostService) Feed(ctx context.Context, limit, offset int) ([]domain.FeedPost, int, error) {
	count, err := s.posts.CountPublic(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("count public posts: %w", err)
	}

	posts, err := s.posts.ListPublic(ctx, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list public posts: %w", err)
	}
	return posts, count, nil
}
