package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"neural-chat-server/internal/config"
	"neural-chat-server/internal/document"
	"neural-chat-server/pkg/logger"
)

func newDocumentService(ex document.TextExtractor, p CompletionProvider) *DocumentService {
	return NewDocumentService(ex, p,
		config.AIConfig{ExtractionModel: "mistral-small-latest"},
		config.DocumentConfig{PromptCharBudget: 15000, SummaryChars: 500},
		logger.NewNop(),
	)
}

func TestExtractStructuredRecoversJSON(t *testing.T) {
	provider := &fakeProvider{output: "Sure! ```json\n{\"name\":\"Ana\",\"skills\":[\"go\"]}\n```"}
	svc := newDocumentService(&fakeExtractor{text: "Ana\nGo developer"}, provider)

	res, err := svc.ExtractStructured(context.Background(), []byte("%PDF"))
	require.NoError(t, err)
	assert.False(t, res.Degraded)
	assert.Empty(t, res.Warning)
	assert.Equal(t, "Ana\nGo developer", res.RawText)
	assert.JSONEq(t, `{"name":"Ana","skills":["go"]}`, string(res.StructuredData))

	require.Equal(t, 1, provider.calls())
	assert.Equal(t, "mistral-small-latest", provider.models[0])
	assert.True(t, strings.HasPrefix(provider.prompts[0], "You are a data extraction assistant.\n"))
	assert.True(t, strings.HasSuffix(provider.prompts[0], "Text to extract:\nAna\nGo developer"))
}

func TestExtractStructuredTruncatesPromptOnly(t *testing.T) {
	text := strings.Repeat("a", 15000) + strings.Repeat("b", 100)
	provider := &fakeProvider{output: `{"ok":true}`}
	svc := newDocumentService(&fakeExtractor{text: text}, provider)

	res, err := svc.ExtractStructured(context.Background(), []byte("%PDF"))
	require.NoError(t, err)
	assert.Equal(t, text, res.RawText)

	sent := strings.TrimPrefix(provider.prompts[0], extractionInstruction)
	assert.Len(t, sent, 15000)
	assert.NotContains(t, sent, "b")
}

func TestExtractStructuredDegradesOnInvalidJSON(t *testing.T) {
	text := strings.Repeat("résumé ", 200)
	svc := newDocumentService(&fakeExtractor{text: text}, &fakeProvider{output: "I am unable to produce JSON today."})

	res, err := svc.ExtractStructured(context.Background(), []byte("%PDF"))
	require.NoError(t, err)
	assert.True(t, res.Degraded)
	assert.Equal(t, degradedNotice, res.Warning)

	var fallback map[string]string
	require.NoError(t, json.Unmarshal(res.StructuredData, &fallback))
	assert.Equal(t, degradedNotice, fallback["raw_text"])
	assert.NotEmpty(t, fallback["summary"])
	assert.Equal(t, 503, len([]rune(fallback["summary"])))
}

func TestExtractStructuredUnreadable(t *testing.T) {
	provider := &fakeProvider{output: `{}`}

	for _, ex := range []*fakeExtractor{
		{text: ""},
		{text: "  \n\t "},
		{err: errors.New("pdftotext failed: Syntax Error")},
	} {
		_, err := newDocumentService(ex, provider).ExtractStructured(context.Background(), []byte("x"))
		assert.ErrorIs(t, err, ErrUnreadableDocument)
	}
	assert.Zero(t, provider.calls())
}

func TestExtractStructuredTooLarge(t *testing.T) {
	svc := newDocumentService(&fakeExtractor{err: document.ErrTooLarge}, &fakeProvider{})

	_, err := svc.ExtractStructured(context.Background(), []byte("x"))
	assert.ErrorIs(t, err, ErrPayloadTooLarge)
}

func TestExtractStructuredPropagatesProviderError(t *testing.T) {
	upstream := &UpstreamError{Status: 429, Body: "rate limited"}
	svc := newDocumentService(&fakeExtractor{text: "cv"}, &fakeProvider{err: upstream})

	_, err := svc.ExtractStructured(context.Background(), []byte("x"))
	var got *UpstreamError
	require.ErrorAs(t, err, &got)
	assert.Equal(t, 429, got.Status)
}
