package services

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/microblog/microblog/internal/models"
	"github.com/microblog/microblog/pkg/queue"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterAndLogin(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	user, err := env.users.Register(ctx, &RegisterRequest{Username: " susan ", Email: "Susan@Example.com", Password: testPassword})
	require.NoError(t, err)
	assert.Equal(t, "susan", user.Username)
	assert.Equal(t, "susan@example.com", user.Email)
	assert.NotEqual(t, testPassword, user.PasswordHash)
	assert.Len(t, env.events.ofType(queue.EventUserRegistered), 1)

	got, err := env.users.Login(ctx, &LoginRequest{Username: "susan", Password: testPassword})
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)

	got, err = env.users.Login(ctx, &LoginRequest{Username: " susan ", Password: testPassword})
	require.NoError(t, err, "login trims the username like registration does")
	assert.Equal(t, user.ID, got.ID)

	_, err = env.users.Login(ctx, &LoginRequest{Username: "susan", Password: "wrong"})
	assert.ErrorIs(t, err, ErrUnauthorized)

	_, err = env.users.Login(ctx, &LoginRequest{Username: "nobody", Password: testPassword})
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestRegisterRejectsDuplicatesAndBadInput(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.register(t, "susan")

	_, err := env.users.Register(ctx, &RegisterRequest{Username: "susan", Email: "other@example.com", Password: testPassword})
	assert.ErrorIs(t, err, ErrAlreadyExists)

	_, err = env.users.Register(ctx, &RegisterRequest{Username: "other", Email: "susan@example.com", Password: testPassword})
	assert.ErrorIs(t, err, ErrAlreadyExists)

	bad := []*RegisterRequest{
		{Username: "", Email: "x@example.com", Password: testPassword},
		{Username: strings.Repeat("u", 65), Email: "x@example.com", Password: testPassword},
		{Username: "x", Email: "not-an-email", Password: testPassword},
		{Username: "x", Email: "x@example.com", Password: ""},
		{Username: "x", Email: "x@example.com", Password: strings.Repeat("p", 73)},
	}
	for _, req := range bad {
		_, err := env.users.Register(ctx, req)
		assert.ErrorIs(t, err, ErrInvalidArgument, "%+v", req)
	}
}

func TestFollowSelfIsRejected(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	a := env.register(t, "a")

	err := env.users.Follow(ctx, a.ID.String(), a.ID.String())
	assert.ErrorIs(t, err, ErrInvalidArgument)

	ok, err := env.users.IsFollowing(ctx, a.ID.String(), a.ID.String())
	require.NoError(t, err)
	assert.False(t, ok)

	var count int64
	require.NoError(t, env.db.Model(&models.Follow{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestFollowIsIdempotentAndRoundTrips(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	a := env.register(t, "a")
	b := env.register(t, "b")

	env.follow(t, a, b)
	env.follow(t, a, b)

	ok, err := env.users.IsFollowing(ctx, a.ID.String(), b.ID.String())
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = env.users.IsFollowing(ctx, b.ID.String(), a.ID.String())
	require.NoError(t, err)
	assert.False(t, ok, "edges are directed")

	var count int64
	require.NoError(t, env.db.Model(&models.Follow{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
	assert.Len(t, env.events.ofType(queue.EventFollowCreated), 1)

	require.NoError(t, env.users.Unfollow(ctx, a.ID.String(), b.ID.String()))
	require.NoError(t, env.users.Unfollow(ctx, a.ID.String(), b.ID.String()))

	ok, err = env.users.IsFollowing(ctx, a.ID.String(), b.ID.String())
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, env.db.Model(&models.Follow{}).Count(&count).Error)
	assert.Zero(t, count)
	assert.Len(t, env.events.ofType(queue.EventFollowDeleted), 1)
}

func TestFollowUnknownUser(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	a := env.register(t, "a")

	assert.ErrorIs(t, env.users.Follow(ctx, a.ID.String(), uuid.NewString()), ErrNotFound)
	assert.ErrorIs(t, env.users.Follow(ctx, uuid.NewString(), a.ID.String()), ErrNotFound)
	assert.ErrorIs(t, env.users.Unfollow(ctx, a.ID.String(), uuid.NewString()), ErrNotFound)
	assert.ErrorIs(t, env.users.Follow(ctx, a.ID.String(), "bogus"), ErrInvalidArgument)

	_, err := env.users.IsFollowing(ctx, a.ID.String(), uuid.NewString())
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = env.users.IsFollowing(ctx, uuid.NewString(), a.ID.String())
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = env.users.IsFollowing(ctx, a.ID.String(), "bogus")
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestFollowersAndFollowing(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	a := env.register(t, "a")
	b := env.register(t, "b")
	c := env.register(t, "c")
	env.follow(t, a, c)
	env.follow(t, b, c)
	env.follow(t, c, a)

	followers, err := env.users.Followers(ctx, c.ID.String(), 1, 1)
	require.NoError(t, err)
	require.Len(t, followers.Items, 1)
	assert.Equal(t, "b", followers.Items[0].Username)
	assert.True(t, followers.HasNext)

	followers, err = env.users.Followers(ctx, c.ID.String(), 2, 1)
	require.NoError(t, err)
	require.Len(t, followers.Items, 1)
	assert.Equal(t, "a", followers.Items[0].Username)
	assert.False(t, followers.HasNext)

	following, err := env.users.Following(ctx, c.ID.String(), 1, 10)
	require.NoError(t, err)
	require.Len(t, following.Items, 1)
	assert.Equal(t, "a", following.Items[0].Username)

	_, err = env.users.Followers(ctx, uuid.NewString(), 1, 10)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateProfile(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	a := env.register(t, "a")
	env.register(t, "b")

	updated, err := env.users.UpdateProfile(ctx, a.ID.String(), &UpdateProfileRequest{Username: "a", AboutMe: "hi there"})
	require.NoError(t, err)
	assert.Equal(t, "hi there", updated.AboutMe)

	_, err = env.users.UpdateProfile(ctx, a.ID.String(), &UpdateProfileRequest{Username: "b"})
	assert.ErrorIs(t, err, ErrAlreadyExists)

	_, err = env.users.UpdateProfile(ctx, a.ID.String(), &UpdateProfileRequest{Username: "a", AboutMe: strings.Repeat("x", 141)})
	assert.ErrorIs(t, err, ErrInvalidArgument)

	updated, err = env.users.UpdateProfile(ctx, a.ID.String(), &UpdateProfileRequest{Username: "alice"})
	require.NoError(t, err)
	assert.Equal(t, "alice", updated.Username)

	got, err := env.users.GetByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, a.ID, got.ID)

	_, err = env.users.GetByUsername(ctx, "a")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTouchLastSeenIsThrottled(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	a := env.register(t, "a")

	require.NoError(t, env.users.TouchLastSeen(ctx, a.ID.String()))
	first, err := env.users.GetByID(ctx, a.ID.String())
	require.NoError(t, err)
	require.NotNil(t, first.LastSeen)

	require.NoError(t, env.users.TouchLastSeen(ctx, a.ID.String()))
	second, err := env.users.GetByID(ctx, a.ID.String())
	require.NoError(t, err)
	assert.True(t, first.LastSeen.Equal(*second.LastSeen), "second touch inside the interval is skipped")

	env.keys.forget("last_seen:" + a.ID.String())
	require.NoError(t, env.users.TouchLastSeen(ctx, a.ID.String()))
	third, err := env.users.GetByID(ctx, a.ID.String())
	require.NoError(t, err)
	assert.True(t, third.LastSeen.After(*first.LastSeen))
}
