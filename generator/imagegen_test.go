package generator

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestImageAPIBase(t *testing.T) {
	assert.Equal(t, "http://img:8002/v1", ImageAPIBase("http://img:8002"))
	assert.Equal(t, "http://img:8002/v1", ImageAPIBase("http://img:8002/"))
	assert.Equal(t, "http://img:8002/v1", ImageAPIBase("http://img:8002/v1/"))
	assert.Equal(t, "http://gw/v1/openai", ImageAPIBase("http://gw/v1/openai"))
}

func TestImageClientDecodesB64JSON(t *testing.T) {
	want := []byte("fake-png-bytes")
	var gotBody map[string]any
	var gotPath, gotAuth string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		b, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(b, &gotBody)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":[{"b64_json":"` + base64.StdEncoding.EncodeToString(want) + `"}]}`))
	}))
	defer srv.Close()

	c, err := NewImageClient(ImageSettings{BaseURL: srv.URL, Model: "qwen-image", APIKey: "k", Size: "512x512"})
	require.NoError(t, err)

	imgs, err := c.Generate(context.Background(), "a red bottle", 2)
	require.NoError(t, err)
	require.Len(t, imgs, 1)
	assert.Equal(t, want, imgs[0])

	assert.Equal(t, "/v1/images/generations", gotPath)
	assert.Equal(t, "Bearer k", gotAuth)
	assert.Equal(t, "qwen-image", gotBody["model"])
	assert.Equal(t, "a red bottle", gotBody["prompt"])
	assert.EqualValues(t, 2, gotBody["n"])
	assert.Equal(t, "512x512", gotBody["size"])
}

func TestImageClientAcceptsDataURL(t *testing.T) {
	want := []byte{1, 2, 3, 4}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":[{"url":"data:image/png;base64,` + base64.StdEncoding.EncodeToString(want) + `"},{"url":"%%%not-base64"}]}`))
	}))
	defer srv.Close()

	c, err := NewImageClient(ImageSettings{BaseURL: srv.URL + "/v1", Model: "m", APIKey: "k"})
	require.NoError(t, err)

	imgs, err := c.Generate(context.Background(), "p", 1)
	require.NoError(t, err)
	require.Len(t, imgs, 1)
	assert.Equal(t, want, imgs[0])
}

func TestImageClientReturnsErrorOnHTTPFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"boom"}}`, http.StatusInternalServerError)
	}))
	defer srv.Close()

	c, err := NewImageClient(ImageSettings{BaseURL: srv.URL, Model: "m", APIKey: "k"})
	require.NoError(t, err)

	imgs, err := c.Generate(context.Background(), "p", 1)
	assert.Error(t, err)
	assert.Empty(t, imgs)
}

func TestNewImageClientRequiresBaseURL(t *testing.T) {
	_, err := NewImageClient(ImageSettings{})
	assert.Error(t, err)
}
