package extract

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/saintfish/chardet"
	"golang.org/x/net/html/charset"
)

// MaxHTMLSize limits HTML input to 10MB to prevent memory exhaustion.
const MaxHTMLSize = 10 * 1024 * 1024

// validateHTML checks HTML presence and size.
func validateHTML(html string) error {
	if len(html) == 0 {
		return fmt.Errorf("html content required")
	}
	if len(html) > MaxHTMLSize {
		return fmt.Errorf("html exceeds maximum size of %d bytes", MaxHTMLSize)
	}
	return nil
}

// detectCharset detects the charset of raw HTML bytes, defaulting to utf-8.
func detectCharset(data []byte) string {
	detector := chardet.NewTextDetector()
	result, err := detector.DetectBest(data)
	if err != nil || result == nil {
		return "utf-8"
	}
	return strings.ToLower(result.Charset)
}

// loadHTML parses HTML with automatic charset detection.
func loadHTML(htmlStr string) (*goquery.Document, error) {
	if err := validateHTML(htmlStr); err != nil {
		return nil, err
	}

	data := []byte(htmlStr)
	detected := detectCharset(data)

	utf8Reader, err := charset.NewReader(bytes.NewReader(data), detected)
	if err != nil {
		// Fallback to direct parsing
		return goquery.NewDocumentFromReader(strings.NewReader(htmlStr))
	}
	return goquery.NewDocumentFromReader(utf8Reader)
}

// normalizeWhitespace collapses runs of whitespace into single spaces.
func normalizeWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
