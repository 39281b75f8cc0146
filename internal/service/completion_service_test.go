package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"neural-chat-server/internal/config"
	"neural-chat-server/internal/model"
	"neural-chat-server/internal/repository"
	"neural-chat-server/pkg/logger"
)

type completionFixture struct {
	svc      *CompletionService
	chats    *ChatService
	memories *MemoryService
	provider *fakeProvider
	notifier *fakeNotifier
}

func newCompletionFixture(t *testing.T) *completionFixture {
	db := newTestDB(t)
	f := &completionFixture{
		chats:    NewChatService(repository.NewChatRepository(db)),
		memories: NewMemoryService(repository.NewMemoryRepository(db)),
		provider: &fakeProvider{output: "  Hello from the model.  "},
		notifier: &fakeNotifier{},
	}
	f.svc = NewCompletionService(f.chats, f.memories, f.provider, f.notifier,
		config.AIConfig{ChatModel: "open-mistral-7b"}, logger.NewNop())
	return f
}

func request(owner, chatID, content string, useMemory bool) *CompletionRequest {
	return &CompletionRequest{
		OwnerID:   owner,
		ChatID:    chatID,
		Message:   MessageInput{Role: "user", Content: content},
		UseMemory: useMemory,
	}
}

func TestCompleteCreatesChatAndStoresTrimmedReply(t *testing.T) {
	f := newCompletionFixture(t)

	res, err := f.svc.Complete(context.Background(), request("  u1  ", "", "What is Go?", false))
	require.NoError(t, err)
	assert.Equal(t, StateCompleted, res.State)
	require.NotNil(t, res.Chat)
	assert.Equal(t, "u1", res.Chat.UserID)
	assert.Equal(t, "What is Go?", res.Chat.Title)

	require.Len(t, res.Chat.Messages, 2)
	assert.Equal(t, model.MessageRoleUser, res.Chat.Messages[0].Role)
	assert.Equal(t, model.MessageRoleAssistant, res.Chat.Messages[1].Role)
	assert.Equal(t, "Hello from the model.", res.Chat.Messages[1].Content)

	assert.Equal(t, []string{"What is Go?"}, f.provider.prompts)
	assert.Equal(t, []string{"open-mistral-7b"}, f.provider.models)
	assert.Equal(t, []string{"u1", "u1"}, f.notifier.owners)
}

func TestCompleteAppendsToExistingChat(t *testing.T) {
	f := newCompletionFixture(t)
	ctx := context.Background()

	first, err := f.svc.Complete(ctx, request("u1", "", "one", false))
	require.NoError(t, err)

	second, err := f.svc.Complete(ctx, request("u1", first.Chat.ID, "two", false))
	require.NoError(t, err)
	assert.Equal(t, first.Chat.ID, second.Chat.ID)
	assert.Len(t, second.Chat.Messages, 4)
	assert.Equal(t, "one", second.Chat.Title)
}

func TestCompleteUsesMemoryProfile(t *testing.T) {
	f := newCompletionFixture(t)
	ctx := context.Background()

	profile, err := f.memories.Save(ctx, "u1", &MemoryFields{RoleText: "pilot", TraitText: "calm"})
	require.NoError(t, err)

	_, err = f.svc.Complete(ctx, request("u1", "", "Any tips?", true))
	require.NoError(t, err)

	require.Equal(t, 1, f.provider.calls())
	assert.Equal(t, BuildPrompt("Any tips?", profile, true), f.provider.prompts[0])

	// 会话中保存的是原始问题，而不是拼接后的提示词
	list, err := f.chats.ListByOwner(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "Any tips?", list[0].Input)
}

func TestCompleteRejectsMissingFields(t *testing.T) {
	f := newCompletionFixture(t)

	tests := []struct {
		name   string
		req    *CompletionRequest
		fields []string
	}{
		{"no owner", request(" ", "", "hi", false), []string{"userId"}},
		{"no content", request("u1", "", "", false), []string{"message.content"}},
		{"blank content", request("u1", "", "   ", true), []string{"message.content"}},
		{"nothing", &CompletionRequest{}, []string{"userId", "message.content"}},
		{"wrong role", &CompletionRequest{OwnerID: "u1", Message: MessageInput{Role: "assistant", Content: "x"}}, []string{"message.role"}},
		{"nil request", nil, []string{"userId", "message.content"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := f.svc.Complete(context.Background(), tt.req)
			assert.Equal(t, StateRejected, res.State)
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.ElementsMatch(t, tt.fields, verr.Fields)
		})
	}
	assert.Zero(t, f.provider.calls())
	assert.Empty(t, f.notifier.owners)
}

func TestCompleteUnknownChat(t *testing.T) {
	f := newCompletionFixture(t)
	ctx := context.Background()

	owned, err := f.svc.Complete(ctx, request("owner", "", "mine", false))
	require.NoError(t, err)

	for _, chatID := range []string{"nope", owned.Chat.ID} {
		res, err := f.svc.Complete(ctx, request("intruder", chatID, "hi", false))
		assert.Equal(t, StateFailedNotFound, res.State)
		assert.ErrorIs(t, err, ErrChatNotFound)
	}
	assert.Equal(t, 1, f.provider.calls())
}

func TestCompleteUpstreamFailureKeepsUserMessage(t *testing.T) {
	f := newCompletionFixture(t)
	f.provider.err = &UpstreamError{Status: 429, Body: `{"message":"Requests rate limit exceeded"}`}
	ctx := context.Background()

	res, err := f.svc.Complete(ctx, request("u1", "", "hello?", false))
	assert.Equal(t, StateFailedUpstream, res.State)

	var upstream *UpstreamError
	require.ErrorAs(t, err, &upstream)
	assert.True(t, upstream.RateLimited())
	assert.Contains(t, upstream.Error(), "Requests rate limit exceeded")

	require.NotNil(t, res.Chat)
	stored, err := f.chats.GetByID(ctx, res.Chat.ID, "u1")
	require.NoError(t, err)
	require.Len(t, stored.Messages, 1)
	assert.Equal(t, "hello?", stored.Messages[0].Content)
}

func TestCompleteEmptyReplyIsNotStored(t *testing.T) {
	f := newCompletionFixture(t)
	ctx := context.Background()

	first, err := f.svc.Complete(ctx, request("u1", "", "first", false))
	require.NoError(t, err)
	require.Len(t, first.Chat.Messages, 2)

	for _, out := range []string{"", "   \n"} {
		f.provider.output = out
		res, err := f.svc.Complete(ctx, request("u1", first.Chat.ID, "again", false))
		require.NoError(t, err)
		assert.Equal(t, StateCompleted, res.State)
		// 只多了一条用户消息
		assert.Equal(t, model.MessageRoleUser, res.Chat.Messages[len(res.Chat.Messages)-1].Role)
	}

	stored, err := f.chats.GetByID(ctx, first.Chat.ID, "u1")
	require.NoError(t, err)
	assert.Len(t, stored.Messages, 4)
}

func TestCompleteRecoversPanic(t *testing.T) {
	f := newCompletionFixture(t)
	f.provider.panics = true

	res, err := f.svc.Complete(context.Background(), request("u1", "", "boom", false))
	assert.Equal(t, StateFailedInternal, res.State)

	var ierr *InternalError
	require.ErrorAs(t, err, &ierr)
	assert.Contains(t, ierr.Error(), "provider exploded")
	require.NotNil(t, res.Chat)
}

func TestCompleteNonUpstreamProviderError(t *testing.T) {
	f := newCompletionFixture(t)
	f.provider.err = ErrAIUnavailable

	res, err := f.svc.Complete(context.Background(), request("u1", "", "hi", false))
	assert.Equal(t, StateFailedInternal, res.State)
	assert.True(t, errors.Is(err, ErrAIUnavailable))
}

func TestCompletionStateTerminal(t *testing.T) {
	assert.True(t, StateCompleted.Terminal())
	assert.True(t, StateFailedUpstream.Terminal())
	assert.False(t, StateRequestingCompletion.Terminal())
	assert.False(t, StateReceived.Terminal())
}

func TestCompleteSettleForcesTerminalState(t *testing.T) {
	f := newCompletionFixture(t)

	res := &CompletionResult{State: StateRequestingCompletion}
	err := f.svc.settle(res, nil)
	assert.Equal(t, StateFailedInternal, res.State)
	var internal *InternalError
	require.ErrorAs(t, err, &internal)
	assert.Contains(t, err.Error(), string(StateRequestingCompletion))

	done := &CompletionResult{State: StateFailedUpstream}
	upstream := &UpstreamError{Status: 500}
	assert.Same(t, upstream, f.svc.settle(done, upstream))
	assert.Equal(t, StateFailedUpstream, done.State)
}
