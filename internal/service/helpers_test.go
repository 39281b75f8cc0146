package service

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"neural-chat-server/internal/model"
	"neural-chat-server/internal/repository"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, repository.AutoMigrate(db))
	return db
}

// fakeProvider 记录收到的提示词，按预设返回
type fakeProvider struct {
	mu      sync.Mutex
	output  string
	err     error
	panics  bool
	prompts []string
	models  []string
}

func (f *fakeProvider) Complete(_ context.Context, model, prompt string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.panics {
		panic("provider exploded")
	}
	f.prompts = append(f.prompts, prompt)
	f.models = append(f.models, model)
	return f.output, f.err
}

func (f *fakeProvider) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.prompts)
}

// fakeNotifier 记录通知
type fakeNotifier struct {
	mu     sync.Mutex
	owners []string
}

func (f *fakeNotifier) NotifyChatUpdated(ownerID string, _ *model.Chat) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.owners = append(f.owners, ownerID)
}

// fakeExtractor 返回预设文本
type fakeExtractor struct {
	text string
	err  error
}

func (f *fakeExtractor) ExtractText(context.Context, []byte) (string, error) {
	return f.text, f.err
}
