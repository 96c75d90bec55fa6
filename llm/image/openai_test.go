package image

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/shalynjjj/prompt2CAD/llm"
	"github.com/shalynjjj/prompt2CAD/llm/retry"
)

func TestOpenAIProvider_Edit(t *testing.T) {
	pngBytes := []byte("\x89PNG fake")
	result := base64.StdEncoding.EncodeToString([]byte("silhouette"))

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/images/edits", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		require.NoError(t, r.ParseMultipartForm(1<<20))

		assert.Equal(t, "make it black and white", r.FormValue("prompt"))
		assert.Equal(t, "gpt-image-1", r.FormValue("model"))
		assert.Equal(t, "1", r.FormValue("n"))
		assert.Empty(t, r.FormValue("size"))

		file, header, err := r.FormFile("image")
		require.NoError(t, err)
		defer file.Close()
		assert.Equal(t, "image/png", header.Header.Get("Content-Type"))
		data, _ := io.ReadAll(file)
		assert.Equal(t, pngBytes, data)

		fmt.Fprintf(w, `{"created":1700000000,"data":[{"b64_json":%q}],"usage":{"input_tokens":10,"output_tokens":20}}`, result)
	}))
	t.Cleanup(server.Close)

	p := NewOpenAIProvider(OpenAIConfig{APIKey: "sk-test", BaseURL: server.URL}, nil, zap.NewNop())
	resp, err := p.Edit(context.Background(), &EditRequest{
		Images: [][]byte{pngBytes},
		Prompt: "make it black and white",
	})
	require.NoError(t, err)
	assert.Equal(t, "openai-image", resp.Provider)
	assert.Equal(t, "gpt-image-1", resp.Model)
	assert.Equal(t, 1, resp.Usage.ImagesGenerated)
	assert.Equal(t, 20, resp.Usage.OutputTokens)

	img, err := resp.FirstImage()
	require.NoError(t, err)
	assert.Equal(t, []byte("silhouette"), img)
}

func TestOpenAIProvider_EditMultipleImages(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Len(t, r.MultipartForm.File["image[]"], 2)
		assert.Equal(t, "1024x1024", r.FormValue("size"))
		fmt.Fprint(w, `{"data":[{"b64_json":"AA=="}]}`)
	}))
	t.Cleanup(server.Close)

	p := NewOpenAIProvider(OpenAIConfig{BaseURL: server.URL, Size: "1024x1024"}, nil, nil)
	_, err := p.Edit(context.Background(), &EditRequest{
		Images: [][]byte{[]byte("a"), []byte("b")},
		Prompt: "edit",
	})
	require.NoError(t, err)
}

func TestOpenAIProvider_EditErrors(t *testing.T) {
	p := NewOpenAIProvider(OpenAIConfig{BaseURL: "http://127.0.0.1:1"}, nil, nil)
	_, err := p.Edit(context.Background(), &EditRequest{Prompt: "x"})
	var llmErr *llm.Error
	require.ErrorAs(t, err, &llmErr)
	assert.Equal(t, llm.ErrInvalidRequest, llmErr.Code)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"error":{"message":"Your request was rejected by the safety system"}}`)
	}))
	t.Cleanup(server.Close)

	p = NewOpenAIProvider(OpenAIConfig{BaseURL: server.URL}, nil, nil)
	_, err = p.Edit(context.Background(), &EditRequest{Images: [][]byte{{1}}, Prompt: "x"})
	require.ErrorAs(t, err, &llmErr)
	assert.Equal(t, llm.ErrContentFiltered, llmErr.Code)
	assert.Contains(t, llmErr.Message, "safety system")
}

func TestOpenAIProvider_RetriesRateLimit(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		fmt.Fprint(w, `{"data":[{"b64_json":"AA=="}]}`)
	}))
	t.Cleanup(server.Close)

	p := NewOpenAIProvider(OpenAIConfig{BaseURL: server.URL},
		&retry.RetryPolicy{MaxRetries: 2, InitialDelay: time.Millisecond}, nil)
	resp, err := p.Edit(context.Background(), &EditRequest{Images: [][]byte{{1}}, Prompt: "x"})
	require.NoError(t, err)
	assert.Len(t, resp.Images, 1)
	assert.EqualValues(t, 2, calls.Load())
}

func TestEditResponse_FirstImage(t *testing.T) {
	_, err := (*EditResponse)(nil).FirstImage()
	assert.Error(t, err)

	_, err = (&EditResponse{Images: []ImageData{{URL: "http://x"}}}).FirstImage()
	assert.Error(t, err)

	_, err = (&EditResponse{Images: []ImageData{{B64JSON: "!!"}}}).FirstImage()
	assert.Error(t, err)
}
