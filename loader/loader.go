// Package loader normalizes raw document content to plain text before
// chunking. Markdown is rendered to HTML first so that headings, lists and
// links reduce to their visible text; HTML is sanitized before extraction so
// script and style bodies never reach the graph.
package loader

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
	"github.com/microcosm-cc/bluemonday"

	"github.com/prowlhq/kgraph/kg"
)

// Content formats routed by the "format" metadata key.
const (
	FormatText     = "text"
	FormatMarkdown = "markdown"
	FormatHTML     = "html"
)

// MetadataFormatKey selects the loader for a document.
const MetadataFormatKey = "format"

var sanitizer = bluemonday.UGCPolicy()

// Normalize converts content of the given format to plain text. An empty or
// unknown format passes the content through unchanged.
func Normalize(content, format string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case FormatMarkdown:
		return markdownToText(content)
	case FormatHTML:
		return htmlToText(content)
	case FormatText, "":
		return content, nil
	default:
		return content, nil
	}
}

// NormalizeDocument applies Normalize using the document's format metadata.
func NormalizeDocument(doc kg.Document) (kg.Document, error) {
	format, _ := doc.Metadata[MetadataFormatKey].(string)
	text, err := Normalize(doc.Content, format)
	if err != nil {
		return doc, err
	}
	doc.Content = text
	return doc, nil
}

func markdownToText(content string) (string, error) {
	p := parser.NewWithExtensions(parser.CommonExtensions)
	renderer := html.NewRenderer(html.RendererOptions{Flags: html.CommonFlags})
	rendered := markdown.ToHTML([]byte(content), p, renderer)
	return htmlToText(string(rendered))
}

func htmlToText(content string) (string, error) {
	sanitized := sanitizer.SanitizeBytes([]byte(content))

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(sanitized))
	if err != nil {
		return "", fmt.Errorf("failed to parse html: %w", err)
	}

	// Block elements collapse to single lines so sentence boundaries survive
	// for the extractor.
	var lines []string
	doc.Find("body").Each(func(_ int, body *goquery.Selection) {
		text := body.Text()
		for _, line := range strings.Split(text, "\n") {
			line = strings.TrimSpace(line)
			if line != "" {
				lines = append(lines, line)
			}
		}
	})
	return strings.Join(lines, "\n"), nil
}
