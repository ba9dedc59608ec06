package services

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/microblog/microblog/internal/config"
	"github.com/microblog/microblog/internal/models"
	"github.com/microblog/microblog/internal/repository"
	"github.com/microblog/microblog/pkg/logger"
	"github.com/microblog/microblog/pkg/queue"
	"golang.org/x/crypto/bcrypt"
)

const (
	maxUsernameLength = 64
	maxEmailLength    = 120
	maxAboutMeLength  = 140
	maxPasswordBytes  = 72

	// lastSeenInterval bounds how often a user's last_seen column is written.
	lastSeenInterval = time.Minute
)

type UserService struct {
	userRepo   *repository.UserRepository
	followRepo *repository.FollowRepository
	producer   EventPublisher
	keys       KeyStore
	jwt        config.JWTConfig
	logger     *logger.Logger
	now        Clock
}

// NewUserService wires the account and follow-graph operations. producer and
// keys may be nil: events are then dropped, and throttling plus single-use
// reset tokens are disabled.
func NewUserService(
	userRepo *repository.UserRepository,
	followRepo *repository.FollowRepository,
	producer EventPublisher,
	keys KeyStore,
	jwtConfig config.JWTConfig,
	logger *logger.Logger,
) *UserService {
	if producer == nil {
		producer = noopPublisher{}
	}
	return &UserService{
		userRepo:   userRepo,
		followRepo: followRepo,
		producer:   producer,
		keys:       keys,
		jwt:        jwtConfig,
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

type RegisterRequest struct {
	Username string `json:"username" binding:"required,max=64"`
	Email    string `json:"email" binding:"required,email,max=120"`
	Password string `json:"password" binding:"required,min=6,max=72"`
}

type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type UpdateProfileRequest struct {
	Username string `json:"username" binding:"required,max=64"`
	AboutMe  string `json:"about_me" binding:"max=140"`
}

func (s *UserService) Register(ctx context.Context, req *RegisterRequest) (*models.User, error) {
	username := strings.TrimSpace(req.Username)
	if err := validateUsername(username); err != nil {
		return nil, err
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if err := validateEmail(email); err != nil {
		return nil, err
	}
	if err := validatePassword(req.Password); err != nil {
		return nil, err
	}

	if err := s.ensureUnused(ctx, "username", username, s.userRepo.GetByUsername); err != nil {
		return nil, err
	}
	if err := s.ensureUnused(ctx, "email", email, s.userRepo.GetByEmail); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{
		Username:     username,
		Email:        email,
		PasswordHash: string(hash),
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, fmt.Errorf("%w: username or email already registered", ErrAlreadyExists)
		}
		return nil, storageErr("create user", err)
	}

	s.publish(ctx, user.ID.String(), queue.EventUserRegistered, queue.UserEventData{
		UserID:   user.ID.String(),
		Username: user.Username,
	})

	return user, nil
}

func (s *UserService) Login(ctx context.Context, req *LoginRequest) (*models.User, error) {
	user, err := s.userRepo.GetByUsername(ctx, strings.TrimSpace(req.Username))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUnauthorized
		}
		return nil, storageErr("get user", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, ErrUnauthorized
	}

	return user, nil
}

func (s *UserService) GetByID(ctx context.Context, userID string) (*models.User, error) {
	id, err := parseID("user", userID)
	if err != nil {
		return nil, err
	}

	user, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		return nil, storageErr("user "+userID, err)
	}
	return user, nil
}

func (s *UserService) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	user, err := s.userRepo.GetByUsername(ctx, username)
	if err != nil {
		return nil, storageErr("user "+username, err)
	}
	return user, nil
}

// UpdateProfile changes the username and about-me text of userID. Keeping the
// current username is always allowed; a new one must be free.
func (s *UserService) UpdateProfile(ctx context.Context, userID string, req *UpdateProfileRequest) (*models.User, error) {
	user, err := s.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	username := strings.TrimSpace(req.Username)
	if err := validateUsername(username); err != nil {
		return nil, err
	}
	if utf8.RuneCountInString(req.AboutMe) > maxAboutMeLength {
		return nil, invalidf("about me must be at most %d characters", maxAboutMeLength)
	}

	if username != user.Username {
		if err := s.ensureUnused(ctx, "username", username, s.userRepo.GetByUsername); err != nil {
			return nil, err
		}
	}

	if err := s.userRepo.UpdateProfile(ctx, user.ID, username, req.AboutMe); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, fmt.Errorf("%w: username %q is taken", ErrAlreadyExists, username)
		}
		return nil, storageErr("update profile", err)
	}
	user.Username = username
	user.AboutMe = req.AboutMe

	s.publish(ctx, user.ID.String(), queue.EventUserUpdated, queue.UserEventData{
		UserID:   user.ID.String(),
		Username: user.Username,
	})

	return user, nil
}

// TouchLastSeen records that userID is active. Writes are throttled per user
// when a key store is configured; a throttling failure falls through to the
// write.
func (s *UserService) TouchLastSeen(ctx context.Context, userID string) error {
	id, err := parseID("user", userID)
	if err != nil {
		return err
	}

	if s.keys != nil {
		claimed, err := s.keys.SetNX(ctx, "last_seen:"+id.String(), 1, lastSeenInterval)
		if err != nil {
			s.logger.WithError(err).Warn("Failed to throttle last seen update")
		} else if !claimed {
			return nil
		}
	}

	if err := s.userRepo.TouchLastSeen(ctx, id, s.now()); err != nil {
		return storageErr("touch last seen", err)
	}
	return nil
}

// Follow adds the edge follower -> followee. Following someone already
// followed is a no-op; following oneself is rejected and never stored.
func (s *UserService) Follow(ctx context.Context, followerID, followeeID string) error {
	follower, followee, err := s.edgeEnds(ctx, followerID, followeeID)
	if err != nil {
		return err
	}

	at := s.now()
	inserted, err := s.followRepo.Create(ctx, follower, followee, at)
	if err != nil {
		return storageErr("follow", err)
	}

	if inserted {
		s.publish(ctx, followerID, queue.EventFollowCreated, queue.FollowEventData{
			FollowerID: follower.String(),
			FollowedID: followee.String(),
			CreatedAt:  at,
		})
	}
	return nil
}

// Unfollow removes the edge follower -> followee if present.
func (s *UserService) Unfollow(ctx context.Context, followerID, followeeID string) error {
	follower, followee, err := s.edgeEnds(ctx, followerID, followeeID)
	if err != nil {
		return err
	}

	removed, err := s.followRepo.Delete(ctx, follower, followee)
	if err != nil {
		return storageErr("unfollow", err)
	}

	if removed {
		s.publish(ctx, followerID, queue.EventFollowDeleted, queue.FollowEventData{
			FollowerID: follower.String(),
			FollowedID: followee.String(),
			CreatedAt:  s.now(),
		})
	}
	return nil
}

// IsFollowing reports whether the edge follower -> followee exists. Both
// users must exist; a user never follows themselves.
func (s *UserService) IsFollowing(ctx context.Context, followerID, followeeID string) (bool, error) {
	follower, err := s.requireUser(ctx, "follower", followerID)
	if err != nil {
		return false, err
	}
	followee, err := s.requireUser(ctx, "followee", followeeID)
	if err != nil {
		return false, err
	}
	if follower == followee {
		return false, nil
	}

	ok, err := s.followRepo.IsFollowing(ctx, follower, followee)
	if err != nil {
		return false, storageErr("check follow", err)
	}
	return ok, nil
}

// Followers lists the users following userID.
func (s *UserService) Followers(ctx context.Context, userID string, page, perPage int) (*Page[*models.User], error) {
	return s.neighbours(ctx, userID, page, perPage, s.followRepo.GetFollowers)
}

// Following lists the users userID follows.
func (s *UserService) Following(ctx context.Context, userID string, page, perPage int) (*Page[*models.User], error) {
	return s.neighbours(ctx, userID, page, perPage, s.followRepo.GetFollowing)
}

func (s *UserService) neighbours(
	ctx context.Context,
	userID string,
	page, perPage int,
	fetch func(context.Context, uuid.UUID, int, int) ([]*models.User, error),
) (*Page[*models.User], error) {
	offset, limit, ok, err := window(page, perPage)
	if err != nil {
		return nil, err
	}
	id, err := s.requireUser(ctx, "user", userID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return newPage[*models.User](nil, page, perPage), nil
	}

	users, err := fetch(ctx, id, offset, limit)
	if err != nil {
		return nil, storageErr("list follows", err)
	}
	return newPage(users, page, perPage), nil
}

// edgeEnds validates both ends of a follow edge: well formed, distinct, and
// existing users.
func (s *UserService) edgeEnds(ctx context.Context, followerID, followeeID string) (uuid.UUID, uuid.UUID, error) {
	follower, err := parseID("follower", followerID)
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	followee, err := parseID("followee", followeeID)
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	if follower == followee {
		return uuid.Nil, uuid.Nil, invalidf("a user cannot follow themselves")
	}

	if _, err := s.requireUser(ctx, "follower", followerID); err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	if _, err := s.requireUser(ctx, "followee", followeeID); err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	return follower, followee, nil
}

func (s *UserService) requireUser(ctx context.Context, kind, userID string) (uuid.UUID, error) {
	id, err := parseID(kind, userID)
	if err != nil {
		return uuid.Nil, err
	}
	exists, err := s.userRepo.Exists(ctx, id)
	if err != nil {
		return uuid.Nil, storageErr("check "+kind, err)
	}
	if !exists {
		return uuid.Nil, fmt.Errorf("%w: %s %s", ErrNotFound, kind, userID)
	}
	return id, nil
}

func (s *UserService) ensureUnused(
	ctx context.Context,
	field, value string,
	lookup func(context.Context, string) (*models.User, error),
) error {
	_, err := lookup(ctx, value)
	switch {
	case err == nil:
		return fmt.Errorf("%w: %s %q is already registered", ErrAlreadyExists, field, value)
	case errors.Is(err, repository.ErrNotFound):
		return nil
	default:
		return storageErr("check "+field, err)
	}
}

// publish sends a domain event. Failures are logged, never returned: the
// write it describes has already happened.
func (s *UserService) publish(ctx context.Context, key string, eventType queue.EventType, data interface{}) {
	event := queue.Event{Type: eventType, Timestamp: s.now(), Data: data}
	if err := s.producer.Publish(ctx, key, event); err != nil {
		s.logger.WithError(err).WithField("event_type", eventType).Error("Failed to publish event")
	}
}

func validateUsername(username string) error {
	n := utf8.RuneCountInString(username)
	if n == 0 || n > maxUsernameLength {
		return invalidf("username must be 1 to %d characters", maxUsernameLength)
	}
	return nil
}

func validateEmail(email string) error {
	if len(email) > maxEmailLength {
		return invalidf("email must be at most %d characters", maxEmailLength)
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return invalidf("invalid email address %q", email)
	}
	return nil
}

func validatePassword(password string) error {
	if password == "" {
		return invalidf("password is required")
	}
	if len(password) > maxPasswordBytes {
		return invalidf("password must be at most %d bytes", maxPasswordBytes)
	}
	return nil
}
