package generator

import (
	"bytes"
	"encoding/base64"
	"strings"
)

// PartType 区分消息片段类型。
type PartType string

const (
	PartText  PartType = "text"
	PartImage PartType = "image"
)

// Part 是一条用户消息里的一个片段：文本或内联 base64 图片。
type Part struct {
	Type      PartType
	Text      string
	MediaType string
	Data      string // base64, only for images
}

// DataURL renders an image part as data:<media>;base64,<data>.
func (p Part) DataURL() string {
	return "data:" + p.MediaType + ";base64," + p.Data
}

// Message 是发送给模型的单条用户消息。
type Message struct {
	Parts []Part
}

// Text 返回所有文本片段拼接后的内容。
func (m Message) Text() string {
	var sb strings.Builder
	for _, p := range m.Parts {
		if p.Type == PartText {
			sb.WriteString(p.Text)
		}
	}
	return sb.String()
}

func (m Message) HasImages() bool {
	for _, p := range m.Parts {
		if p.Type == PartImage {
			return true
		}
	}
	return false
}

// Images returns the image parts in order.
func (m Message) Images() []Part {
	var out []Part
	for _, p := range m.Parts {
		if p.Type == PartImage {
			out = append(out, p)
		}
	}
	return out
}

// BuildMessage 构建图文消息：先一个文本片段，再按输入顺序附上图片。
// 图片字节原样编码，不做缩放或转码。
func BuildMessage(text string, images [][]byte) Message {
	parts := make([]Part, 0, len(images)+1)
	parts = append(parts, Part{Type: PartText, Text: text})
	for _, img := range images {
		parts = append(parts, Part{
			Type:      PartImage,
			MediaType: DetectMediaType(img),
			Data:      base64.StdEncoding.EncodeToString(img),
		})
	}
	return Message{Parts: parts}
}

// TextMessage is BuildMessage without images.
func TextMessage(text string) Message {
	return BuildMessage(text, nil)
}

var (
	pngMagic  = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}
	jpegMagic = []byte{0xff, 0xd8}
)

// DetectMediaType 根据文件头判断图片类型，无法识别时按 JPEG 处理。
func DetectMediaType(data []byte) string {
	switch {
	case bytes.HasPrefix(data, pngMagic):
		return "image/png"
	case bytes.HasPrefix(data, jpegMagic):
		return "image/jpeg"
	case bytes.HasPrefix(data, []byte("GIF87a")), bytes.HasPrefix(data, []byte("GIF89a")):
		return "image/gif"
	case len(data) >= 12 && bytes.Equal(data[:4], []byte("RIFF")) && bytes.Equal(data[8:12], []byte("WEBP")):
		return "image/webp"
	default:
		return "image/jpeg"
	}
}
