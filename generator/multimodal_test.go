package generator

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	pngBytes  = []byte{0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a, 0x00, 0x01}
	jpegBytes = []byte{0xff, 0xd8, 0xff, 0xe0, 0x00}
)

func TestBuildMessageTagsImagesAfterText(t *testing.T) {
	msg := BuildMessage("describe", [][]byte{pngBytes, jpegBytes})

	require.Len(t, msg.Parts, 3)
	assert.Equal(t, PartText, msg.Parts[0].Type)
	assert.Equal(t, "describe", msg.Parts[0].Text)

	assert.Equal(t, PartImage, msg.Parts[1].Type)
	assert.Equal(t, "image/png", msg.Parts[1].MediaType)
	assert.Equal(t, PartImage, msg.Parts[2].Type)
	assert.Equal(t, "image/jpeg", msg.Parts[2].MediaType)

	raw, err := base64.StdEncoding.DecodeString(msg.Parts[1].Data)
	require.NoError(t, err)
	assert.Equal(t, pngBytes, raw)
	assert.Equal(t, "data:image/jpeg;base64,"+base64.StdEncoding.EncodeToString(jpegBytes), msg.Parts[2].DataURL())
}

func TestBuildMessageTextOnly(t *testing.T) {
	msg := BuildMessage("hello", nil)
	require.Len(t, msg.Parts, 1)
	assert.False(t, msg.HasImages())
	assert.Equal(t, "hello", msg.Text())
	assert.Empty(t, msg.Images())
}

func TestDetectMediaType(t *testing.T) {
	webp := append([]byte("RIFF"), 0x10, 0x00, 0x00, 0x00)
	webp = append(webp, []byte("WEBPVP8 ")...)

	cases := []struct {
		name string
		data []byte
		want string
	}{
		{"png", pngBytes, "image/png"},
		{"jpeg", jpegBytes, "image/jpeg"},
		{"gif87a", []byte("GIF87a...."), "image/gif"},
		{"gif89a", []byte("GIF89a...."), "image/gif"},
		{"webp", webp, "image/webp"},
		{"riff without webp", []byte("RIFF\x00\x00\x00\x00WAVE"), "image/jpeg"},
		{"unknown", []byte("hello world"), "image/jpeg"},
		{"empty", nil, "image/jpeg"},
		{"truncated png", pngBytes[:4], "image/jpeg"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, DetectMediaType(tc.data))
		})
	}
}
