package generator

import (
	"context"
	"encoding/base64"
	"errors"
	"strings"
	"time"

	openai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// ImageGenTimeout 是单次生图请求的固定超时。
const ImageGenTimeout = 60 * time.Second

// ImageGenerator 抽象文生图接口。
type ImageGenerator interface {
	Generate(ctx context.Context, prompt string, n int) ([][]byte, error)
}

// ImageSettings 描述 OpenAI 兼容的 /v1/images/generations 端点。
type ImageSettings struct {
	BaseURL string
	Model   string
	APIKey  string
	Size    string
}

// ImageClient calls an OpenAI-compatible images/generations endpoint
// (the diffusers server, or any gateway speaking the same format).
type ImageClient struct {
	Model string
	Size  string
	Opts  []option.RequestOption
}

func NewImageClient(cfg ImageSettings) (*ImageClient, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("image generation base_url is required")
	}
	size := cfg.Size
	if size == "" {
		size = "1024x1024"
	}
	opts := []option.RequestOption{
		option.WithBaseURL(ImageAPIBase(cfg.BaseURL)),
		option.WithAPIKey(cfg.APIKey),
		option.WithRequestTimeout(ImageGenTimeout),
		option.WithMaxRetries(0),
	}
	return &ImageClient{Model: cfg.Model, Size: size, Opts: opts}, nil
}

// ImageAPIBase 规整生图端点：已包含 /v1 的直接使用，否则补上 /v1。
// 请求最终落在 <base>/images/generations。
func ImageAPIBase(base string) string {
	base = strings.TrimRight(base, "/")
	if strings.HasSuffix(base, "/v1") || strings.Contains(base, "/v1") {
		return base
	}
	return base + "/v1"
}

// Generate 以同一个 prompt 请求 n 张图片。
func (c *ImageClient) Generate(ctx context.Context, prompt string, n int) ([][]byte, error) {
	client := openai.NewClient(c.Opts...)
	resp, err := client.Images.Generate(ctx, openai.ImageGenerateParams{
		Model:  openai.ImageModel(c.Model),
		Prompt: prompt,
		N:      openai.Int(int64(n)),
		Size:   openai.ImageGenerateParamsSize(c.Size),
	})
	if err != nil {
		return nil, err
	}

	images := make([][]byte, 0, len(resp.Data))
	for _, item := range resp.Data {
		raw := item.B64JSON
		if raw == "" {
			raw = item.URL
		}
		if raw == "" {
			continue
		}
		if strings.HasPrefix(raw, "data:") {
			if i := strings.Index(raw, ","); i >= 0 {
				raw = raw[i+1:]
			}
		}
		img, err := base64.StdEncoding.DecodeString(raw)
		if err != nil {
			continue
		}
		images = append(images, img)
	}
	return images, nil
}
