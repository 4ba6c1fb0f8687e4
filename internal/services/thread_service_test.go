package services

import (
	"context"
	"sync"
	"testing"

	"clipgram/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStartThreadRequiresMutualFollow(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.createUser(t, "alice")
	bob := env.createUser(t, "bob")

	_, err := env.threads.StartThread(ctx, alice.ID, "alice", "")
	assert.ErrorIs(t, err, ErrSelfThread)

	_, err = env.threads.StartThread(ctx, alice.ID, "nobody", "")
	assert.ErrorIs(t, err, ErrUserNotFound)

	// 单向关注不够
	require.NoError(t, env.follows.Follow(ctx, alice.ID, "bob"))
	_, err = env.threads.StartThread(ctx, alice.ID, "bob", "")
	assert.ErrorIs(t, err, ErrNotMutual)

	require.NoError(t, env.follows.Follow(ctx, bob.ID, "alice"))
	thread, err := env.threads.StartThread(ctx, alice.ID, "bob", "")
	require.NoError(t, err)
	require.NotNil(t, thread)
}

func TestStartThreadDeduplicates(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.createUser(t, "alice")
	bob := env.createUser(t, "bob")
	env.makeMutual(t, alice, bob)

	// 两个方向发起都落到同一个会话
	first, err := env.threads.StartThread(ctx, alice.ID, "bob", "")
	require.NoError(t, err)
	second, err := env.threads.StartThread(ctx, bob.ID, "alice", "")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	again, err := env.threads.StartThread(ctx, alice.ID, "bob", "")
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID)
}

func TestStartThreadRollsBackOnPartialFailure(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.createUser(t, "alice")
	bob := env.createUser(t, "bob")
	env.makeMutual(t, alice, bob)

	// 参与者表不可写时，会话行也不能留下：
	// 半成品会话会占住 PairKey，让这对用户永远建不了会话
	require.NoError(t, env.db.Migrator().DropTable(&models.ThreadParticipant{}))
	_, err := env.threads.StartThread(ctx, alice.ID, "bob", "hi")
	require.Error(t, err)

	var threadCount int64
	require.NoError(t, env.db.Model(&models.Thread{}).Count(&threadCount).Error)
	assert.Zero(t, threadCount)

	// 故障恢复后重试要能完整建立会话并收发消息
	require.NoError(t, env.db.Migrator().CreateTable(&models.ThreadParticipant{}))
	thread, err := env.threads.StartThread(ctx, alice.ID, "bob", "hi again")
	require.NoError(t, err)

	messages, err := env.threads.ListMessages(ctx, bob.ID, thread.ID, 0, 0)
	require.NoError(t, err)
	require.Len(t, messages, 1)
	assert.Equal(t, "hi again", messages[0].Content)
}

func TestStartThreadConcurrentCallers(t *testing.T) {
	env := newTestEnv(t)
	alice := env.createUser(t, "alice")
	bob := env.createUser(t, "bob")
	env.makeMutual(t, alice, bob)

	// 内存 SQLite 只能走单连接，但 goroutine 仍会在查找和创建之间交错，
	// 输掉创建竞争的调用方必须改读获胜方的会话
	sqlDB, err := env.db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	const callers = 8
	threadIDs := make([]uint, callers)
	errs := make([]error, callers)

	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			userID, handle := alice.ID, "bob"
			if i%2 == 1 {
				userID, handle = bob.ID, "alice"
			}
			thread, err := env.threads.StartThread(context.Background(), userID, handle, "")
			if err != nil {
				errs[i] = err
				return
			}
			threadIDs[i] = thread.ID
		}(i)
	}
	wg.Wait()

	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, threadIDs[0], threadIDs[i])
	}

	var threadCount int64
	require.NoError(t, env.db.Model(&models.Thread{}).Count(&threadCount).Error)
	assert.EqualValues(t, 1, threadCount)
}

func TestStartThreadWithFirstMessage(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.createUser(t, "alice")
	bob := env.createUser(t, "bob")
	env.makeMutual(t, alice, bob)

	thread, err := env.threads.StartThread(ctx, alice.ID, "bob", "早上好")
	require.NoError(t, err)

	messages, err := env.threads.ListMessages(ctx, bob.ID, thread.ID, 10, 0)
	require.NoError(t, err)
	require.Len(t, messages, 1)
	assert.Equal(t, "早上好", messages[0].Content)
	assert.Equal(t, alice.ID, messages[0].SenderID)
}

func TestPostMessageGuards(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.createUser(t, "alice")
	bob := env.createUser(t, "bob")
	carol := env.createUser(t, "carol")
	env.makeMutual(t, alice, bob)

	thread, err := env.threads.StartThread(ctx, alice.ID, "bob", "")
	require.NoError(t, err)

	_, err = env.threads.PostMessage(ctx, alice.ID, 9999, "hi")
	assert.ErrorIs(t, err, ErrThreadNotFound)

	// 第三方不能向别人的会话发消息，也看不到消息
	_, err = env.threads.PostMessage(ctx, carol.ID, thread.ID, "let me in")
	assert.ErrorIs(t, err, ErrNotParticipant)
	_, err = env.threads.ListMessages(ctx, carol.ID, thread.ID, 0, 0)
	assert.ErrorIs(t, err, ErrNotParticipant)

	_, err = env.threads.PostMessage(ctx, alice.ID, thread.ID, "  ")
	assert.ErrorIs(t, err, ErrEmptyContent)
}

func TestListMessagesOrderingAcrossPagination(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.createUser(t, "alice")
	bob := env.createUser(t, "bob")
	env.makeMutual(t, alice, bob)

	thread, err := env.threads.StartThread(ctx, alice.ID, "bob", "")
	require.NoError(t, err)

	contents := []string{"m1", "m2", "m3", "m4", "m5"}
	for _, c := range contents {
		_, err := env.threads.PostMessage(ctx, alice.ID, thread.ID, c)
		require.NoError(t, err)
	}

	// 最新在前，翻页不丢不重
	var got []string
	for offset := 0; offset < len(contents); offset += 2 {
		page, err := env.threads.ListMessages(ctx, bob.ID, thread.ID, 2, offset)
		require.NoError(t, err)
		for _, m := range page {
			got = append(got, m.Content)
		}
	}
	assert.Equal(t, []string{"m5", "m4", "m3", "m2", "m1"}, got)
}

func TestListThreadsInboxOrdering(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.createUser(t, "alice")
	bob := env.createUser(t, "bob")
	carol := env.createUser(t, "carol")
	env.makeMutual(t, alice, bob)
	env.makeMutual(t, alice, carol)

	bobThread, err := env.threads.StartThread(ctx, alice.ID, "bob", "")
	require.NoError(t, err)
	carolThread, err := env.threads.StartThread(ctx, alice.ID, "carol", "")
	require.NoError(t, err)

	_, err = env.threads.PostMessage(ctx, carol.ID, carolThread.ID, "from carol")
	require.NoError(t, err)
	_, err = env.threads.PostMessage(ctx, bob.ID, bobThread.ID, "from bob")
	require.NoError(t, err)

	// 最近活跃的会话排在最前，并带上对方信息和最后一条消息
	summaries, err := env.threads.ListThreads(ctx, alice.ID, 0, 0)
	require.NoError(t, err)
	require.Len(t, summaries, 2)

	assert.Equal(t, bobThread.ID, summaries[0].ThreadID)
	require.NotNil(t, summaries[0].Participant)
	assert.Equal(t, "bob", summaries[0].Participant.Handle)
	require.NotNil(t, summaries[0].LastMessage)
	assert.Equal(t, "from bob", summaries[0].LastMessage.Content)

	assert.Equal(t, carolThread.ID, summaries[1].ThreadID)
	assert.Equal(t, "carol", summaries[1].Participant.Handle)

	// bob 的收件箱只有他自己的会话
	bobInbox, err := env.threads.ListThreads(ctx, bob.ID, 0, 0)
	require.NoError(t, err)
	require.Len(t, bobInbox, 1)
	assert.Equal(t, "alice", bobInbox[0].Participant.Handle)
}
