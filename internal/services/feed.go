package services

import (
	"context"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/microblog/microblog/internal/models"
	"github.com/microblog/microblog/internal/repository"
	"github.com/microblog/microblog/pkg/logger"
	"github.com/microblog/microblog/pkg/queue"
)

// FeedService owns post creation and the three feeds built over posts:
// home, profile and explore. Every feed is ordered newest first with the
// post id breaking timestamp ties, so a page boundary is stable across
// requests.
type FeedService struct {
	postRepo *repository.PostRepository
	userRepo *repository.UserRepository
	producer EventPublisher
	logger   *logger.Logger
	now      Clock

	mu       sync.Mutex
	lastPost time.Time
}

func NewFeedService(
	postRepo *repository.PostRepository,
	userRepo *repository.UserRepository,
	producer EventPublisher,
	logger *logger.Logger,
) *FeedService {
	if producer == nil {
		producer = noopPublisher{}
	}
	return &FeedService{
		postRepo: postRepo,
		userRepo: userRepo,
		producer: producer,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

type CreatePostRequest struct {
	Body string `json:"body" binding:"required"`
}

type PostPage = Page[*models.Post]

func (s *FeedService) CreatePost(ctx context.Context, userID string, req *CreatePostRequest) (*models.Post, error) {
	body := strings.TrimSpace(req.Body)
	n := utf8.RuneCountInString(body)
	if n == 0 || n > models.MaxPostLength {
		return nil, invalidf("post must be 1 to %d characters", models.MaxPostLength)
	}

	id, err := parseID("user", userID)
	if err != nil {
		return nil, err
	}
	author, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		return nil, storageErr("user "+userID, err)
	}

	post := &models.Post{
		UserID:    author.ID,
		Body:      body,
		CreatedAt: s.stamp(),
	}
	if err := s.postRepo.Create(ctx, post); err != nil {
		return nil, storageErr("create post", err)
	}
	post.Author = author

	event := queue.Event{
		Type:      queue.EventPostCreated,
		Timestamp: post.CreatedAt,
		Data: queue.PostEventData{
			PostID:    post.ID.String(),
			UserID:    author.ID.String(),
			CreatedAt: post.CreatedAt,
		},
	}
	if err := s.producer.Publish(ctx, author.ID.String(), event); err != nil {
		s.logger.WithError(err).Error("Failed to publish post created event")
	}

	return post, nil
}

// HomeFeed returns the posts of userID and of everyone userID follows.
func (s *FeedService) HomeFeed(ctx context.Context, userID string, page, perPage int) (*PostPage, error) {
	id, err := s.subject(ctx, userID, page, perPage)
	if err != nil {
		return nil, err
	}
	return s.paginate(page, perPage, func(offset, limit int) ([]*models.Post, error) {
		return s.postRepo.GetHomeFeed(ctx, id, offset, limit)
	})
}

// ProfileFeed returns the posts written by subjectID.
func (s *FeedService) ProfileFeed(ctx context.Context, subjectID string, page, perPage int) (*PostPage, error) {
	id, err := s.subject(ctx, subjectID, page, perPage)
	if err != nil {
		return nil, err
	}
	return s.paginate(page, perPage, func(offset, limit int) ([]*models.Post, error) {
		return s.postRepo.GetByUserID(ctx, id, offset, limit)
	})
}

// subject validates the arguments of a per-user feed. An unknown user is
// NotFound rather than an empty feed.
func (s *FeedService) subject(ctx context.Context, userID string, page, perPage int) (uuid.UUID, error) {
	id, err := parseID("user", userID)
	if err != nil {
		return uuid.Nil, err
	}
	if _, _, _, err := window(page, perPage); err != nil {
		return uuid.Nil, err
	}
	exists, err := s.userRepo.Exists(ctx, id)
	if err != nil {
		return uuid.Nil, storageErr("check user", err)
	}
	if !exists {
		return uuid.Nil, storageErr("user "+userID, repository.ErrNotFound)
	}
	return id, nil
}

// ExploreFeed returns every post.
func (s *FeedService) ExploreFeed(ctx context.Context, page, perPage int) (*PostPage, error) {
	return s.paginate(page, perPage, func(offset, limit int) ([]*models.Post, error) {
		return s.postRepo.GetAll(ctx, offset, limit)
	})
}

func (s *FeedService) paginate(page, perPage int, fetch func(offset, limit int) ([]*models.Post, error)) (*PostPage, error) {
	offset, limit, ok, err := window(page, perPage)
	if err != nil {
		return nil, err
	}
	if !ok {
		return newPage[*models.Post](nil, page, perPage), nil
	}

	posts, err := fetch(offset, limit)
	if err != nil {
		return nil, storageErr("load feed", err)
	}
	return newPage(posts, page, perPage), nil
}

// stamp returns the creation time for a new post: the current time at
// microsecond resolution, bumped past the previous stamp if the clock has
// not advanced.
func (s *FeedService) stamp() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := s.now().UTC().Truncate(time.Microsecond)
	if !t.After(s.lastPost) {
		t = s.lastPost.Add(time.Microsecond)
	}
	s.lastPost = t
	return t
}
