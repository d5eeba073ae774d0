package openaicompat

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"paper-reader/internal/domain/entity"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAdapter(srv *httptest.Server) *Adapter {
	cfg := DefaultConfig("sk-test")
	cfg.BaseURL = srv.URL + "/v1"
	cfg.HTTPClient = srv.Client()
	return NewAdapter(cfg)
}

func TestAdapter_SubmitThenStatus(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/images/generations", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		body, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(body, &got))

		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"created":1,"data":[{"url":"https://example/img.png"}]}`)
	}))
	defer srv.Close()

	adapter := newTestAdapter(srv)
	handle, err := adapter.Submit(context.Background(), entity.GenerationRequest{
		Prompt: "a red circle",
		Size:   entity.DefaultSize,
		Count:  1,
	})
	require.NoError(t, err)
	assert.Equal(t, BackendName, handle.Backend)
	assert.NotEmpty(t, handle.ID)

	assert.Equal(t, "a red circle", got["prompt"])
	assert.Equal(t, DefaultModel, got["model"])
	assert.Equal(t, "1024x1024", got["size"])
	assert.Equal(t, "url", got["response_format"])

	report, err := adapter.Status(context.Background(), handle)
	require.NoError(t, err)
	assert.Equal(t, entity.TaskStatusSucceeded, report.Status)
	require.Len(t, report.Artifacts, 1)
	assert.Equal(t, "https://example/img.png", report.Artifacts[0].URL)

	again, err := adapter.Status(context.Background(), handle)
	require.NoError(t, err)
	assert.Equal(t, entity.TaskStatusFailed, again.Status)
}

func TestAdapter_Submit_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		io.WriteString(w, `{"error":{"message":"prompt rejected","type":"invalid_request_error"}}`)
	}))
	defer srv.Close()

	_, err := newTestAdapter(srv).Submit(context.Background(), entity.GenerationRequest{Prompt: "x"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, entity.ErrSubmission))

	var subErr *entity.SubmissionError
	require.True(t, errors.As(err, &subErr))
	assert.Equal(t, http.StatusBadRequest, subErr.StatusCode)
}

func TestToReport_Base64(t *testing.T) {
	report := toReport(openai.ImageResponse{
		Data: []openai.ImageResponseDataInner{{B64JSON: base64.StdEncoding.EncodeToString([]byte("img"))}},
	})

	assert.Equal(t, entity.TaskStatusSucceeded, report.Status)
	require.Len(t, report.Artifacts, 1)
	assert.Equal(t, []byte("img"), report.Artifacts[0].Data)
}

func TestToReport_Empty(t *testing.T) {
	report := toReport(openai.ImageResponse{})

	assert.Equal(t, entity.TaskStatusFailed, report.Status)
	assert.Contains(t, report.Message, entity.ErrUnrecognizedResponseFormat.Error())
}
