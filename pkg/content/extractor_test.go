package content

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aidigest/pkg/domain"
)

const articleHTML = `<!DOCTYPE html>
<html>
<head><title>Test Article</title></head>
<body>
	<article>
		<h1>Test Article Title</h1>
		<p>This is the main content of the article with enough words to matter.</p>
		<p>It has multiple paragraphs so the extractor has something to work with.</p>
	</article>
</body>
</html>`

func TestExtractor_Extract(t *testing.T) {
	tests := []struct {
		name        string
		htmlContent string
		statusCode  int
		wantContent string
		wantErr     bool
	}{
		{
			name:        "successful extraction",
			htmlContent: articleHTML,
			statusCode:  http.StatusOK,
			wantContent: "main content of the article",
		},
		{
			name:        "server error",
			htmlContent: "error",
			statusCode:  http.StatusInternalServerError,
			wantErr:     true,
		},
		{
			name:        "not found",
			htmlContent: "not found",
			statusCode:  http.StatusNotFound,
			wantErr:     true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				if tt.statusCode == http.StatusOK {
					w.Header().Set("Content-Type", "text/html")
				}
				w.WriteHeader(tt.statusCode)
				_, _ = w.Write([]byte(tt.htmlContent))
			}))
			defer server.Close()

			e := NewExtractor(Params{Timeout: 10 * time.Second, UserAgent: "test-agent", MinTextLength: 10})

			text, err := e.Extract(context.Background(), server.URL)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Contains(t, text, tt.wantContent)
		})
	}
}

func TestExtractor_ExtractInvalidURL(t *testing.T) {
	e := NewExtractor(Params{Timeout: time.Second, MinTextLength: 10})

	_, err := e.Extract(context.Background(), "not-a-url")
	require.Error(t, err)

	_, err = e.Extract(context.Background(), "://broken")
	require.Error(t, err)
}

func TestExtractor_ExtractTooShort(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("<html><body><p>tiny</p></body></html>"))
	}))
	defer server.Close()

	e := NewExtractor(Params{Timeout: time.Second, MinTextLength: 500})
	_, err := e.Extract(context.Background(), server.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "too short")
}

func TestExtractor_EnrichAll(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(articleHTML))
	}))
	defer server.Close()

	e := NewExtractor(Params{Timeout: 10 * time.Second, MinTextLength: 10, MaxConcurrent: 2})

	articles := []domain.Article{
		{Title: "needs content", URL: server.URL},
		{Title: "already has content", URL: server.URL, Content: "original content"},
		{Title: "no url"},
		{Title: "broken url", URL: "http://127.0.0.1:1/nope"},
	}

	out := e.EnrichAll(context.Background(), articles)
	require.Len(t, out, 4)

	assert.Contains(t, out[0].Content, "main content of the article")
	assert.Equal(t, "original content", out[1].Content, "existing content untouched")
	assert.Empty(t, out[2].Content)
	assert.Empty(t, out[3].Content, "extraction failure leaves the article unchanged")
}
