// Package document reads supported file formats into plain text and
// normalizes that text for chunking.
package document

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"
)

var (
	ErrFileNotFound      = errors.New("document not found")
	ErrUnsupportedFormat = errors.New("unsupported document format")
	ErrCorruptDocument   = errors.New("corrupt document")
)

// Read extracts plain text from the file at path. Plain text and
// Markdown are read directly, HTML is stripped to its text content,
// and feed files are flattened into one entry per item.
func Read(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%w: %s", ErrFileNotFound, path)
		}

		return "", fmt.Errorf("stat document: %w", err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("%w: %s is a directory", ErrUnsupportedFormat, path)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".txt", ".md", ".markdown":
		return readPlain(path)
	case ".html", ".htm":
		return readHTML(path)
	case ".rss", ".atom", ".xml":
		return readFeed(path)
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(path))
	}
}

func readPlain(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read document: %w", err)
	}

	if !utf8.Valid(data) {
		return "", fmt.Errorf("%w: %s is not valid UTF-8", ErrCorruptDocument, path)
	}

	return string(data), nil
}

func readHTML(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open document: %w", err)
	}
	defer func() { _ = f.Close() }()

	doc, err := goquery.NewDocumentFromReader(f)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrCorruptDocument, err)
	}

	doc.Find("script, style, noscript").Remove()

	text := doc.Find("body").Text()
	if strings.TrimSpace(text) == "" {
		text = doc.Text()
	}

	return text, nil
}

func readFeed(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open document: %w", err)
	}
	defer func() { _ = f.Close() }()

	feed, err := gofeed.NewParser().Parse(f)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrCorruptDocument, err)
	}

	var b strings.Builder
	if title := strings.TrimSpace(feed.Title); title != "" {
		b.WriteString(title)
		b.WriteString("\n\n")
	}

	for _, item := range feed.Items {
		if item == nil {
			continue
		}

		if title := strings.TrimSpace(item.Title); title != "" {
			b.WriteString(title)
			b.WriteString("\n")
		}

		body := strings.TrimSpace(item.Content)
		if body == "" {
			body = strings.TrimSpace(item.Description)
		}
		if body != "" {
			b.WriteString(body)
			b.WriteString("\n")
		}

		b.WriteString("\n")
	}

	return b.String(), nil
}
