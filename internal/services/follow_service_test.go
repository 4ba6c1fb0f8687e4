package services

import (
	"context"
	"testing"

	"clipgram/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFollowIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.createUser(t, "alice")
	bob := env.createUser(t, "bob")

	require.NoError(t, env.follows.Follow(ctx, alice.ID, "bob"))
	// 重复关注是空操作
	require.NoError(t, env.follows.Follow(ctx, alice.ID, "bob"))

	following, err := env.follows.IsFollowing(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	assert.True(t, following)

	stats, err := env.follows.GetStats(ctx, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Followers)

	// 只有首次建立关注才产生通知
	notifications := env.notificationsFor(t, bob.ID)
	require.Len(t, notifications, 1)
	assert.Equal(t, models.NotificationTypeFollow, notifications[0].Type)
	assert.Equal(t, alice.ID, notifications[0].ActorID)
}

func TestFollowSelfRejected(t *testing.T) {
	env := newTestEnv(t)
	alice := env.createUser(t, "alice")

	err := env.follows.Follow(context.Background(), alice.ID, "alice")
	assert.ErrorIs(t, err, ErrSelfFollow)
}

func TestFollowUnknownHandle(t *testing.T) {
	env := newTestEnv(t)
	alice := env.createUser(t, "alice")

	err := env.follows.Follow(context.Background(), alice.ID, "nobody")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestFollowHandleIsCaseInsensitive(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.createUser(t, "alice")
	bob := env.createUser(t, "bob")

	require.NoError(t, env.follows.Follow(ctx, alice.ID, "BoB"))

	following, err := env.follows.IsFollowing(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	assert.True(t, following)
}

func TestUnfollowIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.createUser(t, "alice")
	bob := env.createUser(t, "bob")

	// 未关注时取消关注也是空操作
	require.NoError(t, env.follows.Unfollow(ctx, alice.ID, "bob"))

	require.NoError(t, env.follows.Follow(ctx, alice.ID, "bob"))
	require.NoError(t, env.follows.Unfollow(ctx, alice.ID, "bob"))

	following, err := env.follows.IsFollowing(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	assert.False(t, following)
}

func TestIsMutualRequiresBothEdges(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.createUser(t, "alice")
	bob := env.createUser(t, "bob")

	require.NoError(t, env.follows.Follow(ctx, alice.ID, "bob"))

	mutual, err := env.follows.IsMutual(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	assert.False(t, mutual)

	require.NoError(t, env.follows.Follow(ctx, bob.ID, "alice"))

	mutual, err = env.follows.IsMutual(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	assert.True(t, mutual)

	// 顺序无关
	mutual, err = env.follows.IsMutual(ctx, bob.ID, alice.ID)
	require.NoError(t, err)
	assert.True(t, mutual)
}

func TestListFollowersAndFollowing(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.createUser(t, "alice")
	bob := env.createUser(t, "bob")
	carol := env.createUser(t, "carol")

	require.NoError(t, env.follows.Follow(ctx, bob.ID, "alice"))
	require.NoError(t, env.follows.Follow(ctx, carol.ID, "alice"))
	require.NoError(t, env.follows.Follow(ctx, alice.ID, "bob"))

	followers, err := env.follows.ListFollowers(ctx, "alice")
	require.NoError(t, err)
	assert.Len(t, followers, 2)

	following, err := env.follows.ListFollowing(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, following, 1)
	assert.Equal(t, "bob", following[0].Handle)

	stats, err := env.follows.GetStats(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.Followers)
	assert.Equal(t, int64(1), stats.Following)
}
