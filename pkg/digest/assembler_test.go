package digest

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aidigest/pkg/classify"
	"aidigest/pkg/domain"
)

func testGroups() []classify.Group {
	base := time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)
	return []classify.Group{
		{
			Category: "Industry", Priority: 1,
			Articles: []domain.Article{
				{Title: "Startup raises funding", URL: "https://example.com/funding", Source: "TechCrunch AI",
					Published: base, LocalizedSummary: "Una startup recauda fondos."},
			},
		},
		{
			Category: "Releases", Priority: 2,
			Articles: []domain.Article{
				{Title: "New model out", URL: "https://example.com/model", Source: "OpenAI Blog",
					Published: base.Add(-time.Hour), LocalizedSummary: "Nuevo modelo disponible."},
				{Title: "Tracker: entry", URL: "https://example.com/tracker", Source: "Tracker",
					LocalizedSummary: "Entrada del changelog."},
			},
		},
	}
}

func TestAssembler_Render(t *testing.T) {
	a, err := NewAssembler("infoIA Digest", "es")
	require.NoError(t, err)

	html, err := a.Render(testGroups())
	require.NoError(t, err)

	assert.Contains(t, html, `<html lang="es">`)
	assert.Contains(t, html, "infoIA Digest")
	assert.Contains(t, html, "3 articles")
	assert.Contains(t, html, "Industry (1)")
	assert.Contains(t, html, "Releases (2)")
	assert.Contains(t, html, `href="https://example.com/funding"`)
	assert.Contains(t, html, "Una startup recauda fondos.")
	assert.Contains(t, html, "Nuevo modelo disponible.")

	// categories appear in priority order
	assert.Less(t, strings.Index(html, "Industry (1)"), strings.Index(html, "Releases (2)"))
}

func TestAssembler_RenderEscapesHTML(t *testing.T) {
	a, err := NewAssembler("t", "en")
	require.NoError(t, err)

	groups := []classify.Group{{
		Category: "Industry",
		Articles: []domain.Article{{
			Title:            `<script>alert("x")</script>`,
			URL:              "https://example.com/x",
			LocalizedSummary: "safe & sound",
		}},
	}}

	html, err := a.Render(groups)
	require.NoError(t, err)
	assert.NotContains(t, html, `<script>alert`)
	assert.Contains(t, html, "safe &amp; sound")
}

func TestAssembler_RenderEmpty(t *testing.T) {
	a, err := NewAssembler("t", "en")
	require.NoError(t, err)

	html, err := a.Render(nil)
	require.NoError(t, err)
	assert.Contains(t, html, "0 articles")
}

func TestAssembler_WriteFile(t *testing.T) {
	a, err := NewAssembler("infoIA Digest", "es")
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "out", "digest.html")
	require.NoError(t, a.WriteFile(path, testGroups()))

	data, err := os.ReadFile(path) //nolint:gosec // test file
	require.NoError(t, err)
	assert.Contains(t, string(data), "infoIA Digest")
}
