package server

import (
	"bytes"

	"github.com/yuin/goldmark"
)

// markdownToHTML 渲染文案预览；空文案返回空串。
func markdownToHTML(md string) (string, error) {
	if md == "" {
		return "", nil
	}
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(md), &buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}
