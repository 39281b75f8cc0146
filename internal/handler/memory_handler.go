package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"neural-chat-server/internal/middleware"
	"neural-chat-server/internal/service"
	"neural-chat-server/pkg/response"
)

// documentField 上传文档的表单字段名
const documentField = "pdf"

// MemoryHandler 记忆档案请求处理器
type MemoryHandler struct {
	memoryService   *service.MemoryService
	documentService *service.DocumentService
	maxUploadBytes  int64
}

// NewMemoryHandler 创建 MemoryHandler 实例
func NewMemoryHandler(memoryService *service.MemoryService, documentService *service.DocumentService, maxUploadBytes int64) *MemoryHandler {
	return &MemoryHandler{
		memoryService:   memoryService,
		documentService: documentService,
		maxUploadBytes:  maxUploadBytes,
	}
}

// GetMemory 获取当前用户的记忆档案
// 还没有档案时返回空字段
// @Router /api/v1/memory [get]
func (h *MemoryHandler) GetMemory(c *gin.Context) {
	memory, err := h.memoryService.Get(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		writeError(c, err, nil)
		return
	}
	response.Success(c, memory)
}

// SaveMemory 整体保存记忆档案
// @Accept json
// @Param body body service.MemoryFields true "档案字段"
// @Router /api/v1/memory [post]
func (h *MemoryHandler) SaveMemory(c *gin.Context) {
	var fields service.MemoryFields
	if !bindJSON(c, &fields) {
		return
	}

	memory, err := h.memoryService.Save(c.Request.Context(), middleware.GetUserID(c), &fields)
	if err != nil {
		writeError(c, err, nil)
		return
	}
	response.SuccessWithMessage(c, "Memory saved", memory)
}

// ProcessDocument 上传文档，返回全文和结构化数据
// 只提取，不保存；客户端确认后再调用 SaveMemory
// @Accept multipart/form-data
// @Param pdf formData file true "PDF 文件"
// @Success 200 {object} response.Response{data=service.ExtractionResult}
// @Router /api/v1/memory/document [post]
func (h *MemoryHandler) ProcessDocument(c *gin.Context) {
	file, err := c.FormFile(documentField)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(c, service.ErrPayloadTooLarge, nil)
			return
		}
		response.BadRequest(c, "No PDF provided")
		return
	}
	if h.maxUploadBytes > 0 && file.Size > h.maxUploadBytes {
		writeError(c, service.ErrPayloadTooLarge, nil)
		return
	}

	f, err := file.Open()
	if err != nil {
		writeError(c, err, nil)
		return
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		writeError(c, err, nil)
		return
	}

	result, err := h.documentService.ExtractStructured(c.Request.Context(), data)
	if err != nil {
		writeError(c, err, nil)
		return
	}

	if result.Degraded {
		response.SuccessWithMessage(c, result.Warning, result)
		return
	}
	response.Success(c, result)
}
