package services

import (
	"context"
	"strings"
	"testing"
	"time"

	"clipgram/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubmitRequestAdmissionRules(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.createUser(t, "alice")
	bob := env.createUser(t, "bob")
	env.createUser(t, "carol")

	t.Run("self", func(t *testing.T) {
		_, err := env.messageRequests.SubmitRequest(ctx, alice.ID, "alice", "hi")
		assert.ErrorIs(t, err, ErrSelfMessageRequest)
	})

	t.Run("unknown recipient", func(t *testing.T) {
		_, err := env.messageRequests.SubmitRequest(ctx, alice.ID, "nobody", "hi")
		assert.ErrorIs(t, err, ErrUserNotFound)
	})

	t.Run("mutual followers bypass requests", func(t *testing.T) {
		env.makeMutual(t, alice, bob)
		_, err := env.messageRequests.SubmitRequest(ctx, alice.ID, "bob", "hi")
		assert.ErrorIs(t, err, ErrMutualFollowers)
	})

	t.Run("one-way follow still needs a request", func(t *testing.T) {
		require.NoError(t, env.follows.Follow(ctx, alice.ID, "carol"))
		request, err := env.messageRequests.SubmitRequest(ctx, alice.ID, "carol", "hi carol")
		require.NoError(t, err)
		assert.Equal(t, models.MessageRequestStatusPending, request.Status)
	})
}

func TestSubmitRequestContentValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.createUser(t, "alice")
	env.createUser(t, "bob")

	_, err := env.messageRequests.SubmitRequest(ctx, alice.ID, "bob", "   ")
	assert.ErrorIs(t, err, ErrEmptyContent)

	tooLong := strings.Repeat("喵", models.MaxMessageContentRunes+1)
	_, err = env.messageRequests.SubmitRequest(ctx, alice.ID, "bob", tooLong)
	assert.ErrorIs(t, err, ErrContentTooLong)
}

func TestSubmitRequestModeration(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.createUser(t, "alice")
	env.createUser(t, "bob")

	reviewer := NewKeywordReviewer([]string{"spam"})
	requests := NewMessageRequestService(env.db, env.userRepo, env.requestRepo, env.followRepo, env.threadRepo, reviewer, env.notifications)

	_, err := requests.SubmitRequest(ctx, alice.ID, "bob", "buy SPAM now")
	assert.ErrorIs(t, err, ErrContentRejected)

	_, err = requests.SubmitRequest(ctx, alice.ID, "bob", "hello there")
	assert.NoError(t, err)
}

func TestSubmitRequestUniquePerPair(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.createUser(t, "alice")
	bob := env.createUser(t, "bob")

	_, err := env.messageRequests.SubmitRequest(ctx, alice.ID, "bob", "hi")
	require.NoError(t, err)

	// 同方向重复提交
	_, err = env.messageRequests.SubmitRequest(ctx, alice.ID, "bob", "hi again")
	assert.ErrorIs(t, err, ErrRequestPending)

	// 对方的 pending 请求还挂着时，反方向也不允许再发
	_, err = env.messageRequests.SubmitRequest(ctx, bob.ID, "alice", "hey")
	assert.ErrorIs(t, err, ErrRequestPending)
}

func TestDeclinedRequestIsTerminal(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.createUser(t, "alice")
	bob := env.createUser(t, "bob")

	request, err := env.messageRequests.SubmitRequest(ctx, alice.ID, "bob", "hi")
	require.NoError(t, err)

	thread, err := env.messageRequests.RespondToRequest(ctx, bob.ID, request.ID, false)
	require.NoError(t, err)
	assert.Nil(t, thread)

	// declined 是终态，不能重新提交
	_, err = env.messageRequests.SubmitRequest(ctx, alice.ID, "bob", "please")
	assert.ErrorIs(t, err, ErrRequestDeclined)

	// 拒绝不产生会话，也不通知发送者
	assert.Empty(t, env.notificationsFor(t, alice.ID))

	// 已处理的请求不能再次响应
	_, err = env.messageRequests.RespondToRequest(ctx, bob.ID, request.ID, true)
	assert.ErrorIs(t, err, ErrRequestResolved)
}

func TestDeclineDoesNotBlockReverseDirection(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.createUser(t, "alice")
	bob := env.createUser(t, "bob")

	request, err := env.messageRequests.SubmitRequest(ctx, bob.ID, "alice", "hi alice")
	require.NoError(t, err)
	_, err = env.messageRequests.RespondToRequest(ctx, alice.ID, request.ID, false)
	require.NoError(t, err)

	// declined 只封死 bob→alice 这个方向；alice 改主意主动联系 bob 是新请求
	reverse, err := env.messageRequests.SubmitRequest(ctx, alice.ID, "bob", "actually, hi")
	require.NoError(t, err)
	assert.Equal(t, models.MessageRequestStatusPending, reverse.Status)

	// bob 自己的方向仍然是终态
	_, err = env.messageRequests.SubmitRequest(ctx, bob.ID, "alice", "one more try")
	assert.ErrorIs(t, err, ErrRequestDeclined)
}

func TestAcceptCreatesThreadWithOriginalTimestamp(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.createUser(t, "alice")
	bob := env.createUser(t, "bob")

	request, err := env.messageRequests.SubmitRequest(ctx, alice.ID, "bob", "hi bob")
	require.NoError(t, err)

	thread, err := env.messageRequests.RespondToRequest(ctx, bob.ID, request.ID, true)
	require.NoError(t, err)
	require.NotNil(t, thread)

	// 请求内容成为会话里唯一的一条消息，时间戳沿用请求的创建时间
	messages, err := env.threads.ListMessages(ctx, bob.ID, thread.ID, 0, 0)
	require.NoError(t, err)
	require.Len(t, messages, 1)
	assert.Equal(t, "hi bob", messages[0].Content)
	assert.Equal(t, alice.ID, messages[0].SenderID)
	assert.WithinDuration(t, request.CreatedAt, messages[0].CreatedAt, time.Second)

	// 请求状态翻转
	stored, err := env.requestRepo.GetByID(ctx, request.ID)
	require.NoError(t, err)
	assert.Equal(t, models.MessageRequestStatusAccepted, stored.Status)

	// 发送者收到接受通知
	notifications := env.notificationsFor(t, alice.ID)
	require.Len(t, notifications, 1)
	assert.Equal(t, models.NotificationTypeRequestAccepted, notifications[0].Type)

	// 接受后不能再提交新请求
	_, err = env.messageRequests.SubmitRequest(ctx, alice.ID, "bob", "hi again")
	assert.ErrorIs(t, err, ErrThreadAlreadyExists)

	// 也不能重复响应
	_, err = env.messageRequests.RespondToRequest(ctx, bob.ID, request.ID, true)
	assert.ErrorIs(t, err, ErrRequestResolved)
}

func TestRespondGuards(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.createUser(t, "alice")
	bob := env.createUser(t, "bob")
	carol := env.createUser(t, "carol")

	request, err := env.messageRequests.SubmitRequest(ctx, alice.ID, "bob", "hi")
	require.NoError(t, err)

	_, err = env.messageRequests.RespondToRequest(ctx, bob.ID, 9999, true)
	assert.ErrorIs(t, err, ErrRequestNotFound)

	// 只有接收者能处理请求，发送者和第三方都不行
	_, err = env.messageRequests.RespondToRequest(ctx, alice.ID, request.ID, true)
	assert.ErrorIs(t, err, ErrNotRequestRecipient)
	_, err = env.messageRequests.RespondToRequest(ctx, carol.ID, request.ID, true)
	assert.ErrorIs(t, err, ErrNotRequestRecipient)
}

func TestListIncomingRequests(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.createUser(t, "alice")
	bob := env.createUser(t, "bob")
	carol := env.createUser(t, "carol")

	_, err := env.messageRequests.SubmitRequest(ctx, alice.ID, "carol", "from alice")
	require.NoError(t, err)
	_, err = env.messageRequests.SubmitRequest(ctx, bob.ID, "carol", "from bob")
	require.NoError(t, err)

	incoming, err := env.messageRequests.ListIncomingRequests(ctx, carol.ID)
	require.NoError(t, err)
	require.Len(t, incoming, 2)
	for _, req := range incoming {
		require.NotNil(t, req.Sender)
	}

	// 处理掉一条后列表只剩 pending
	_, err = env.messageRequests.RespondToRequest(ctx, carol.ID, incoming[0].ID, false)
	require.NoError(t, err)

	incoming, err = env.messageRequests.ListIncomingRequests(ctx, carol.ID)
	require.NoError(t, err)
	assert.Len(t, incoming, 1)
}

// 完整首次联系流程：非互关请求、接受、随后双向发消息。
func TestFirstContactFlow(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	carol := env.createUser(t, "carol")
	dave := env.createUser(t, "dave")

	request, err := env.messageRequests.SubmitRequest(ctx, carol.ID, "dave", "hey dave")
	require.NoError(t, err)

	thread, err := env.messageRequests.RespondToRequest(ctx, dave.ID, request.ID, true)
	require.NoError(t, err)
	require.NotNil(t, thread)

	// 双方都是参与者，可以继续对话
	_, err = env.threads.PostMessage(ctx, dave.ID, thread.ID, "hey carol")
	require.NoError(t, err)
	_, err = env.threads.PostMessage(ctx, carol.ID, thread.ID, "glad you accepted")
	require.NoError(t, err)

	messages, err := env.threads.ListMessages(ctx, carol.ID, thread.ID, 0, 0)
	require.NoError(t, err)
	require.Len(t, messages, 3)
	// 最新在前
	assert.Equal(t, "glad you accepted", messages[0].Content)
	assert.Equal(t, "hey dave", messages[2].Content)
}
