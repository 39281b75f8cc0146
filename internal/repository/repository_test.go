package repository

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"neural-chat-server/internal/model"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	// 内存库每个连接独立，固定为单连接
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, AutoMigrate(db))
	return db
}

func TestChatRepositoryAppendKeepsOrder(t *testing.T) {
	ctx := context.Background()
	repo := NewChatRepository(newTestDB(t))

	chat := &model.Chat{
		ID:       "c1",
		UserID:   "u1",
		Title:    "hello",
		Messages: []model.Message{{Role: model.MessageRoleUser, Content: "m0"}},
	}
	require.NoError(t, repo.Create(ctx, chat))

	for _, content := range []string{"m1", "m2", "m3"} {
		found, err := repo.AppendMessage(ctx, "c1", "u1", &model.Message{Role: model.MessageRoleUser, Content: content})
		require.NoError(t, err)
		require.True(t, found)
	}

	got, err := repo.GetByIDWithMessages(ctx, "c1", "u1")
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Len(t, got.Messages, 4)
	for i, m := range got.Messages {
		assert.Equal(t, "m"+string(rune('0'+i)), m.Content)
	}
	assert.True(t, !got.UpdatedAt.Before(chat.UpdatedAt))
}

func TestChatRepositoryEnforcesOwner(t *testing.T) {
	ctx := context.Background()
	repo := NewChatRepository(newTestDB(t))
	require.NoError(t, repo.Create(ctx, &model.Chat{ID: "c1", UserID: "u1", Title: "t"}))

	found, err := repo.AppendMessage(ctx, "c1", "intruder", &model.Message{Role: model.MessageRoleUser, Content: "x"})
	require.NoError(t, err)
	assert.False(t, found)

	found, err = repo.AppendMessage(ctx, "missing", "u1", &model.Message{Role: model.MessageRoleUser, Content: "x"})
	require.NoError(t, err)
	assert.False(t, found)

	var count int64
	require.NoError(t, repo.db.Model(&model.Message{}).Where("chat_id = ?", "c1").Count(&count).Error)
	assert.Zero(t, count)

	got, err := repo.GetByIDWithMessages(ctx, "c1", "intruder")
	require.NoError(t, err)
	assert.Nil(t, got)

	// 空 ownerID 跳过所有者校验
	found, err = repo.AppendMessage(ctx, "c1", "", &model.Message{Role: model.MessageRoleAssistant, Content: "reply"})
	require.NoError(t, err)
	assert.True(t, found)
}

func TestChatRepositoryListByOwnerOrder(t *testing.T) {
	ctx := context.Background()
	repo := NewChatRepository(newTestDB(t))

	base := time.Now().Add(-time.Hour)
	require.NoError(t, repo.Create(ctx, &model.Chat{ID: "old", UserID: "u1", Title: "old", UpdatedAt: base}))
	require.NoError(t, repo.Create(ctx, &model.Chat{ID: "new", UserID: "u1", Title: "new", UpdatedAt: base.Add(time.Minute)}))
	require.NoError(t, repo.Create(ctx, &model.Chat{ID: "other", UserID: "u2", Title: "other", UpdatedAt: base}))

	chats, err := repo.ListByOwnerWithPreviews(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, chats, 2)
	assert.Equal(t, "new", chats[0].ID)

	// 追加消息后 old 变为最新
	_, err = repo.AppendMessage(ctx, "old", "u1", &model.Message{Role: model.MessageRoleUser, Content: "bump"})
	require.NoError(t, err)

	chats, err = repo.ListByOwnerWithPreviews(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "old", chats[0].ID)
	assert.Len(t, chats[0].Messages, 1)
}

func TestChatRepositoryListByOwnerLoadsOnlyPreviews(t *testing.T) {
	ctx := context.Background()
	repo := NewChatRepository(newTestDB(t))

	require.NoError(t, repo.Create(ctx, &model.Chat{ID: "busy", UserID: "u1", Title: "busy"}))
	require.NoError(t, repo.Create(ctx, &model.Chat{ID: "quiet", UserID: "u1", Title: "quiet",
		Messages: []model.Message{{Role: model.MessageRoleUser, Content: "only question"}}}))
	require.NoError(t, repo.Create(ctx, &model.Chat{ID: "empty", UserID: "u1", Title: "empty"}))

	for i := 0; i < 20; i++ {
		role := model.MessageRoleUser
		if i%2 == 1 {
			role = model.MessageRoleAssistant
		}
		_, err := repo.AppendMessage(ctx, "busy", "u1", &model.Message{Role: role, Content: fmt.Sprintf("%s-%d", role, i)})
		require.NoError(t, err)
	}

	chats, err := repo.ListByOwnerWithPreviews(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, chats, 3)

	byID := make(map[string]model.Chat, len(chats))
	for _, c := range chats {
		byID[c.ID] = c
	}

	busy := byID["busy"]
	require.Len(t, busy.Messages, 2)
	assert.Equal(t, "user-0", busy.Messages[0].Content)
	assert.Equal(t, "assistant-1", busy.Messages[1].Content)

	quiet := byID["quiet"]
	require.Len(t, quiet.Messages, 1)
	assert.Equal(t, "only question", quiet.Messages[0].Content)

	assert.Empty(t, byID["empty"].Messages)
}

// 超过 64KB 的消息内容原样保存
func TestChatRepositoryStoresLongMessage(t *testing.T) {
	ctx := context.Background()
	repo := NewChatRepository(newTestDB(t))
	require.NoError(t, repo.Create(ctx, &model.Chat{ID: "c1", UserID: "u1", Title: "t"}))

	long := strings.Repeat("a", 100*1024)
	found, err := repo.AppendMessage(ctx, "c1", "u1", &model.Message{Role: model.MessageRoleUser, Content: long})
	require.NoError(t, err)
	require.True(t, found)

	got, err := repo.GetByIDWithMessages(ctx, "c1", "u1")
	require.NoError(t, err)
	require.Len(t, got.Messages, 1)
	assert.Equal(t, long, got.Messages[0].Content)
}

func TestMemoryRepositoryUpsertReplaces(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository(newTestDB(t))

	got, err := repo.GetByUserID(ctx, "u1")
	require.NoError(t, err)
	assert.Nil(t, got)

	name := "cv.pdf"
	require.NoError(t, repo.Upsert(ctx, &model.Memory{
		UserID:           "u1",
		RoleText:         "engineer",
		KnowledgeText:    "likes go",
		TraitText:        "concise",
		DocumentFilename: &name,
		StructuredData:   datatypes.JSON(`{"name":"Ana"}`),
	}))
	require.NoError(t, repo.Upsert(ctx, &model.Memory{UserID: "u1", RoleText: "nurse"}))

	got, err = repo.GetByUserID(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "nurse", got.RoleText)
	assert.Empty(t, got.KnowledgeText)
	assert.Empty(t, got.TraitText)
	assert.Nil(t, got.DocumentFilename)
	assert.False(t, got.HasStructuredData())

	var count int64
	require.NoError(t, repo.db.Model(&model.Memory{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestUserRepositoryLookups(t *testing.T) {
	ctx := context.Background()
	repo := NewUserRepository(newTestDB(t))

	require.NoError(t, repo.Create(ctx, &model.User{ID: "u1", Username: "ana", Email: "ana@example.com", PasswordHash: "h"}))

	exists, err := repo.ExistsByUsername(ctx, "ana")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = repo.ExistsByEmail(ctx, "bob@example.com")
	require.NoError(t, err)
	assert.False(t, exists)

	u, err := repo.GetByEmail(ctx, "ana@example.com")
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.Equal(t, "u1", u.ID)

	u, err = repo.GetByID(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, u)

	assert.Error(t, repo.Create(ctx, &model.User{ID: "u2", Username: "ana", Email: "x@example.com", PasswordHash: "h"}))
}
