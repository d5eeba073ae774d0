package fetch

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"

	"paper-reader/internal/application/port/output"
	"paper-reader/internal/domain/entity"
	"paper-reader/internal/infrastructure/transport"
)

const maxArtifactSize = 64 << 20

var _ output.ArtifactFetcher = (*HTTPFetcher)(nil)

// HTTPFetcher retrieves artifact bytes. URL references cost one GET each,
// inline references are passed through as they are.
type HTTPFetcher struct {
	client *http.Client
	logger output.LoggerPort
}

func NewHTTPFetcher(client *http.Client, logger output.LoggerPort) *HTTPFetcher {
	if client == nil {
		client = transport.NewClient(logger, 0)
	}
	return &HTTPFetcher{client: client, logger: logger}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, ref entity.ArtifactRef) (*entity.Artifact, error) {
	if ref.IsInline() {
		return &entity.Artifact{
			Data:     ref.Data,
			MimeType: mimeOf(ref.MimeType, ref.Data),
		}, nil
	}
	if ref.URL == "" {
		return nil, fmt.Errorf("artifact reference has neither url nor data")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("build artifact request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download artifact: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("download artifact: unexpected status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxArtifactSize+1))
	if err != nil {
		return nil, fmt.Errorf("read artifact body: %w", err)
	}
	if len(data) > maxArtifactSize {
		return nil, fmt.Errorf("artifact exceeds %d bytes", maxArtifactSize)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("artifact body is empty")
	}

	declared := ref.MimeType
	if declared == "" {
		declared = resp.Header.Get("Content-Type")
	}

	if f.logger != nil {
		f.logger.Debug("Artifact downloaded", "url", ref.URL, "bytes", len(data))
	}

	return &entity.Artifact{
		Data:      data,
		MimeType:  mimeOf(declared, data),
		SourceURL: ref.URL,
	}, nil
}

// mimeOf prefers a declared image type and sniffs the bytes otherwise.
func mimeOf(declared string, data []byte) string {
	if declared != "" {
		if mt, _, err := mime.ParseMediaType(declared); err == nil && strings.HasPrefix(mt, "image/") {
			return mt
		}
	}
	sniffed := http.DetectContentType(data)
	if mt, _, err := mime.ParseMediaType(sniffed); err == nil {
		return mt
	}
	return sniffed
}
