package services

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/microblog/microblog/internal/config"
	"github.com/microblog/microblog/internal/models"
	"github.com/microblog/microblog/internal/repository"
	"github.com/microblog/microblog/pkg/logger"
	"github.com/microblog/microblog/pkg/queue"
	"github.com/stretchr/testify/require"
)

const testPassword = "secret1"

type fakePublisher struct {
	mu     sync.Mutex
	events []queue.Event
	err    error
}

func (p *fakePublisher) Publish(_ context.Context, _ string, value interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, value.(queue.Event))
	return nil
}

func (p *fakePublisher) ofType(eventType queue.EventType) []queue.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []queue.Event
	for _, e := range p.events {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}

type fakeKeys struct {
	mu     sync.Mutex
	values map[string]int64
}

func newFakeKeys() *fakeKeys {
	return &fakeKeys{values: make(map[string]int64)}
}

func (k *fakeKeys) SetNX(_ context.Context, key string, _ interface{}, _ time.Duration) (bool, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if _, ok := k.values[key]; ok {
		return false, nil
	}
	k.values[key] = 1
	return true, nil
}

func (k *fakeKeys) IncrWithExpire(_ context.Context, key string, _ time.Duration) (int64, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.values[key]++
	return k.values[key], nil
}

func (k *fakeKeys) Delete(_ context.Context, keys ...string) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	for _, key := range keys {
		delete(k.values, key)
	}
	return nil
}

func (k *fakeKeys) forget(key string) {
	k.mu.Lock()
	defer k.mu.Unlock()
	delete(k.values, key)
}

// stepClock advances by step on every reading.
type stepClock struct {
	mu   sync.Mutex
	t    time.Time
	step time.Duration
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(c.step)
	return c.t
}

func (c *stepClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type testEnv struct {
	db     *repository.Database
	users  *UserService
	feed   *FeedService
	events *fakePublisher
	keys   *fakeKeys
	clock  *stepClock
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := repository.NewDatabase(&config.DatabaseConfig{
		Driver: "sqlite",
		Path:   fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate())
	t.Cleanup(func() { _ = db.Close() })

	userRepo := repository.NewUserRepository(db.DB)
	followRepo := repository.NewFollowRepository(db.DB)
	postRepo := repository.NewPostRepository(db.DB)

	events := &fakePublisher{}
	keys := newFakeKeys()
	clock := &stepClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), step: time.Second}
	log := logger.Discard()

	users := NewUserService(userRepo, followRepo, events, keys, config.JWTConfig{
		Secret:          "test-secret",
		ExpireTime:      time.Hour,
		ResetExpireTime: 10 * time.Minute,
	}, log)
	users.now = clock.Now

	feed := NewFeedService(postRepo, userRepo, events, log)
	feed.now = clock.Now

	return &testEnv{db: db, users: users, feed: feed, events: events, keys: keys, clock: clock}
}

func (e *testEnv) register(t *testing.T, name string) *models.User {
	t.Helper()
	user, err := e.users.Register(context.Background(), &RegisterRequest{
		Username: name,
		Email:    name + "@example.com",
		Password: testPassword,
	})
	require.NoError(t, err)
	return user
}

func (e *testEnv) post(t *testing.T, author *models.User, body string) *models.Post {
	t.Helper()
	post, err := e.feed.CreatePost(context.Background(), author.ID.String(), &CreatePostRequest{Body: body})
	require.NoError(t, err)
	return post
}

func (e *testEnv) follow(t *testing.T, follower, followee *models.User) {
	t.Helper()
	require.NoError(t, e.users.Follow(context.Background(), follower.ID.String(), followee.ID.String()))
}

func postBodies(page *PostPage) []string {
	out := make([]string, 0, len(page.Items))
	for _, p := range page.Items {
		out = append(out, p.Body)
	}
	return out
}
