package extract

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"

	"github.com/webpilot/backend/internal/page"
)

// DigestMaxLen caps the plain-text content sent to the model.
const DigestMaxLen = 5000

// PageDigest is the plain-text reduction of a page handed to the AI
// summarizer.
type PageDigest struct {
	URL     string
	Title   string
	Content string
}

var digestSanitizer = bluemonday.StrictPolicy()

// Digest reduces a snapshot to title plus whitespace-collapsed text,
// capped at DigestMaxLen. Script, style and chrome elements are removed
// before text extraction so they cannot contaminate the digest, and the
// result is passed through a strict sanitizer to drop any markup
// remnants.
func Digest(snap *page.Snapshot) (PageDigest, error) {
	doc, err := loadHTML(snap.HTML)
	if err != nil {
		return PageDigest{}, err
	}

	doc.Find("script, style, nav, footer, header").Remove()

	title := strings.TrimSpace(doc.Find("h1").First().Text())
	if title == "" {
		title = strings.TrimSpace(doc.Find("title").Text())
	}

	content := strings.TrimSpace(doc.Find("main, article, .content, #content, body").First().Text())
	content = html.UnescapeString(digestSanitizer.Sanitize(content))
	content = normalizeWhitespace(content)
	if len(content) > DigestMaxLen {
		content = content[:DigestMaxLen]
	}

	return PageDigest{
		URL:     snap.URL,
		Title:   title,
		Content: content,
	}, nil
}
