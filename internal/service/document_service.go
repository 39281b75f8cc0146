package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"neural-chat-server/internal/config"
	"neural-chat-server/internal/document"
	"neural-chat-server/internal/metrics"
	"neural-chat-server/pkg/logger"
	"neural-chat-server/pkg/util"
)

const extractionInstruction = "You are a data extraction assistant.\n" +
	"Convert the following resume text into a strictly formatted JSON object.\n" +
	"Do not include any markdown formatting (like ```json). Just return the raw JSON.\n\n" +
	"Text to extract:\n"

// ExtractionResult 文档提取结果
// Degraded 为 true 时 StructuredData 是降级占位内容，调用方应提示用户
type ExtractionResult struct {
	RawText        string          `json:"pdf_text"`
	StructuredData json.RawMessage `json:"structured_data"`
	Degraded       bool            `json:"degraded"`
	Warning        string          `json:"warning,omitempty"`
}

// DocumentService 文档提取适配器
// 只负责提取，不写库；保存由调用方通过 MemoryService 完成
type DocumentService struct {
	extractor    document.TextExtractor
	provider     CompletionProvider
	model        string
	charBudget   int
	summaryChars int
	log          *logger.Logger
}

// NewDocumentService 创建 DocumentService 实例
func NewDocumentService(
	extractor document.TextExtractor,
	provider CompletionProvider,
	aiCfg config.AIConfig,
	docCfg config.DocumentConfig,
	log *logger.Logger,
) *DocumentService {
	return &DocumentService{
		extractor:    extractor,
		provider:     provider,
		model:        aiCfg.ExtractionModel,
		charBudget:   docCfg.PromptCharBudget,
		summaryChars: docCfg.SummaryChars,
		log:          log,
	}
}

// ExtractStructured 把文档转换为纯文本和结构化 JSON
// 参数:
//   - ctx: 上下文
//   - data: 文档原始字节
//
// 返回:
//   - *ExtractionResult: RawText 为完整未截断的文本
//   - error: ErrPayloadTooLarge / ErrUnreadableDocument / 模型服务错误
func (s *DocumentService) ExtractStructured(ctx context.Context, data []byte) (*ExtractionResult, error) {
	text, err := s.extractor.ExtractText(ctx, data)
	if err != nil {
		metrics.IncExtraction("failed")
		if errors.Is(err, document.ErrTooLarge) {
			return nil, ErrPayloadTooLarge
		}
		s.log.Warn("text extraction failed", "error", err)
		return nil, ErrUnreadableDocument
	}
	if strings.TrimSpace(text) == "" {
		metrics.IncExtraction("failed")
		return nil, ErrUnreadableDocument
	}

	// 只把前 charBudget 个字符发给模型，控制成本和延迟
	excerpt, truncated := util.TruncateRunes(text, s.charBudget)
	if truncated {
		s.log.Debug("document text truncated for extraction", "chars", s.charBudget)
	}

	output, err := s.provider.Complete(ctx, s.model, extractionInstruction+excerpt)
	if err != nil {
		metrics.IncExtraction("failed")
		return nil, err
	}

	result := &ExtractionResult{RawText: text}
	if structured, ok := RecoverJSON(output); ok {
		result.StructuredData = structured
		metrics.IncExtraction("structured")
		return result, nil
	}

	s.log.Warn("model output is not valid JSON, using summary fallback", "output_len", len(output))
	result.StructuredData = fallbackStructured(text, s.summaryChars)
	result.Degraded = true
	result.Warning = degradedNotice
	metrics.IncExtraction("degraded")
	return result, nil
}
