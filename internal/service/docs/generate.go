package docs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/yuin/goldmark"
	gmast "github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/text"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/oshokin/bauset/internal/config"
	"github.com/oshokin/bauset/internal/logger"
)

const (
	readmeFilename = "README.md"
	docSourceDir   = "doc"
	indexFilename  = "index.html"
	markdownExt    = ".md"
	htmlExt        = ".html"
)

const pageLayout = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>%s</title>
</head>
<body>
%s</body>
</html>
`

// Generator renders README.md and doc/**/*.md of a source tree into an output directory.
type Generator struct {
	sink logger.Sink
}

// NewGenerator creates a generator. A nil sink disables reporting.
func NewGenerator(sink logger.Sink) *Generator {
	return &Generator{sink: logger.OrNop(sink)}
}

// newMarkdown returns a converter with GitHub-flavored Markdown enabled.
// Each page gets its own converter so pages can be rendered concurrently.
//
//nolint:ireturn // goldmark exposes the converter only as an interface.
func newMarkdown() goldmark.Markdown {
	return goldmark.New(
		goldmark.WithExtensions(extension.GFM),
		goldmark.WithParserOptions(parser.WithAutoHeadingID()),
	)
}

// Generate writes one HTML page per Markdown document and returns the written paths.
// README.md becomes index.html; doc/a/b.md becomes a/b.html.
func (g *Generator) Generate(ctx context.Context, sourceRoot, outputDir string) ([]string, error) {
	pages := make(map[string]string)

	readme := filepath.Join(sourceRoot, readmeFilename)
	if _, err := os.Stat(readme); err == nil {
		pages[readme] = indexFilename
	}

	docRoot := filepath.Join(sourceRoot, docSourceDir)

	err := filepath.WalkDir(docRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() || !strings.EqualFold(filepath.Ext(path), markdownExt) {
			return nil
		}

		rel, err := filepath.Rel(docRoot, path)
		if err != nil {
			return err
		}

		pages[path] = strings.TrimSuffix(rel, filepath.Ext(rel)) + htmlExt

		return nil
	})
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("scan %s: %w", docRoot, err)
	}

	var (
		mu      sync.Mutex
		written = make([]string, 0, len(pages))
	)

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(runtime.NumCPU())

	for source, target := range pages {
		target = filepath.Join(outputDir, target)

		group.Go(func() error {
			if err := groupCtx.Err(); err != nil {
				return err
			}

			if err := g.renderFile(source, target); err != nil {
				return err
			}

			g.sink.Log(groupCtx, "Document rendered", "source", source, "path", target)

			mu.Lock()
			written = append(written, target)
			mu.Unlock()

			return nil
		})
	}

	err = group.Wait()

	return written, err
}

func (g *Generator) renderFile(source, target string) error {
	body, err := os.ReadFile(filepath.Clean(source))
	if err != nil {
		return fmt.Errorf("read %s: %w", source, err)
	}

	page, err := g.Render(body, strings.TrimSuffix(filepath.Base(source), filepath.Ext(source)))
	if err != nil {
		return fmt.Errorf("render %s: %w", source, err)
	}

	if err = os.MkdirAll(filepath.Dir(target), config.DefaultDirPermissions); err != nil {
		return fmt.Errorf("create %s: %w", filepath.Dir(target), err)
	}

	if err = os.WriteFile(target, page, config.DefaultFilePermissions); err != nil {
		return fmt.Errorf("write %s: %w", target, err)
	}

	return nil
}

// Render converts one Markdown document to a standalone HTML page.
// The page title is the first heading, or the title-cased fallbackTitle when there is none.
func (g *Generator) Render(body []byte, fallbackTitle string) ([]byte, error) {
	md := newMarkdown()
	root := md.Parser().Parse(text.NewReader(body))

	var content bytes.Buffer
	if err := md.Renderer().Render(&content, body, root); err != nil {
		return nil, err
	}

	title := firstHeading(root, body)
	if title == "" {
		title = cases.Title(language.English).String(strings.ReplaceAll(fallbackTitle, "-", " "))
	}

	return fmt.Appendf(nil, pageLayout, html.EscapeString(title), content.String()), nil
}

func firstHeading(root gmast.Node, source []byte) string {
	var title string

	_ = gmast.Walk(root, func(n gmast.Node, entering bool) (gmast.WalkStatus, error) {
		if !entering {
			return gmast.WalkContinue, nil
		}

		heading, ok := n.(*gmast.Heading)
		if !ok {
			return gmast.WalkContinue, nil
		}

		var b strings.Builder

		for c := heading.FirstChild(); c != nil; c = c.NextSibling() {
			if t, isText := c.(*gmast.Text); isText {
				b.Write(t.Segment.Value(source))
			}
		}

		title = b.String()

		return gmast.WalkStop, nil
	})

	return title
}
