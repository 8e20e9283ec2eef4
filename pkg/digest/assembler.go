// Package digest renders grouped, summarized articles into an HTML document.
package digest

import (
	"bytes"
	_ "embed"
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"time"

	"github.com/go-pkgz/lgr"

	"aidigest/pkg/classify"
)

//go:embed digest.html.tmpl
var digestTemplate string

// Assembler renders category groups into a self-contained HTML digest
type Assembler struct {
	title string
	lang  string
	tmpl  *template.Template
	now   func() time.Time
}

// pageData is the template context for one rendered digest
type pageData struct {
	Title       string
	Lang        string
	GeneratedAt time.Time
	Total       int
	Groups      []classify.Group
}

// NewAssembler creates an assembler. lang is the BCP 47 tag for the html
// element, matching the summary language.
func NewAssembler(title, lang string) (*Assembler, error) {
	tmpl, err := template.New("digest").Parse(digestTemplate)
	if err != nil {
		return nil, fmt.Errorf("parse digest template: %w", err)
	}
	if title == "" {
		title = "AI News Digest"
	}
	if lang == "" {
		lang = "en"
	}
	return &Assembler{title: title, lang: lang, tmpl: tmpl, now: time.Now}, nil
}

// Render produces the HTML digest for the given groups
func (a *Assembler) Render(groups []classify.Group) (string, error) {
	total := 0
	for _, g := range groups {
		total += len(g.Articles)
	}

	data := pageData{
		Title:       a.title,
		Lang:        a.lang,
		GeneratedAt: a.now(),
		Total:       total,
		Groups:      groups,
	}

	var buf bytes.Buffer
	if err := a.tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("execute digest template: %w", err)
	}
	return buf.String(), nil
}

// WriteFile renders the digest and writes it to path, creating parent
// directories as needed
func (a *Assembler) WriteFile(path string, groups []classify.Group) error {
	html, err := a.Render(groups)
	if err != nil {
		return err
	}

	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("create digest directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(html), 0o644); err != nil { //nolint:gosec // digest is a public artifact
		return fmt.Errorf("write digest file: %w", err)
	}

	lgr.Printf("[INFO] digest written to %s, %d bytes", path, len(html))
	return nil
}
