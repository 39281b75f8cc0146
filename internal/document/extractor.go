// Package document 把上传的文档字节转换为纯文本
package document

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

var (
	// ErrTooLarge 文档超过大小上限
	ErrTooLarge = errors.New("document exceeds size limit")
	// ErrEmpty 文档内容为空
	ErrEmpty = errors.New("document is empty")
)

// TextExtractor 文本提取能力
type TextExtractor interface {
	ExtractText(ctx context.Context, data []byte) (string, error)
}

// PDFToText 通过 poppler 的 pdftotext 命令提取 PDF 文本
type PDFToText struct {
	binary   string
	maxBytes int64
	timeout  time.Duration
}

// NewPDFToText 创建 PDFToText
// 参数:
//   - binary: pdftotext 可执行文件路径，为空时使用 PATH 中的 pdftotext
//   - maxBytes: 输入大小上限，<= 0 表示不限制
//   - timeout: 单次提取超时，<= 0 时为 2 分钟
func NewPDFToText(binary string, maxBytes int64, timeout time.Duration) *PDFToText {
	if strings.TrimSpace(binary) == "" {
		binary = "pdftotext"
	}
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &PDFToText{binary: binary, maxBytes: maxBytes, timeout: timeout}
}

// ExtractText 提取文本
// pdftotext 只接受文件路径，所以先写入临时目录
func (p *PDFToText) ExtractText(ctx context.Context, data []byte) (string, error) {
	if len(data) == 0 {
		return "", ErrEmpty
	}
	if p.maxBytes > 0 && int64(len(data)) > p.maxBytes {
		return "", ErrTooLarge
	}
	if _, err := exec.LookPath(p.binary); err != nil {
		return "", fmt.Errorf("pdftotext not found: %w", err)
	}

	callCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	tmpDir, err := os.MkdirTemp("", "neural_pdftotext_*")
	if err != nil {
		return "", fmt.Errorf("temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	inPath := filepath.Join(tmpDir, "in.pdf")
	outPath := filepath.Join(tmpDir, "out.txt")
	if err := os.WriteFile(inPath, data, 0o600); err != nil {
		return "", fmt.Errorf("write temp pdf: %w", err)
	}

	cmd := exec.CommandContext(callCtx, p.binary, "-enc", "UTF-8", inPath, outPath)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return "", fmt.Errorf("pdftotext failed: %s", msg)
	}

	out, err := os.ReadFile(outPath)
	if err != nil {
		return "", fmt.Errorf("read pdftotext output: %w", err)
	}
	return string(out), nil
}
