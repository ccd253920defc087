// Package extract turns the current page snapshot into structured data
// driven by keyword triggers in a free-text instruction.
package extract

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/webpilot/backend/internal/logging"
	"github.com/webpilot/backend/internal/page"
	"github.com/webpilot/backend/internal/types"
)

// Output caps per strategy. Exceeding content is silently dropped.
const (
	maxLinks      = 20
	maxImages     = 10
	maxParagraphs = 10
	maxLists      = 5

	minParagraphLen = 20
)

// Analyzer produces unstructured analysis of the current page. Used when
// no structural strategy fires, or when the instruction asks for it.
type Analyzer interface {
	Analyze(ctx context.Context, instruction, url string) (string, error)
}

// Extractor applies extraction strategies against the page store.
type Extractor struct {
	store    *page.Store
	analyzer Analyzer
	logger   *logging.Logger
}

// NewExtractor creates an extractor reading from store and delegating
// AI-driven analysis to analyzer.
func NewExtractor(store *page.Store, analyzer Analyzer, logger *logging.Logger) *Extractor {
	return &Extractor{
		store:    store,
		analyzer: analyzer,
		logger:   logger,
	}
}

// strategy pairs a trigger predicate with a populate step. Strategies
// are cumulative: every matching one fires for a single instruction.
type strategy struct {
	name     string
	triggers []string
	populate func(doc *goquery.Document, result *types.ExtractionResult)
}

var strategies = []strategy{
	{"headings", []string{"title"}, extractHeadings},
	{"links", []string{"link"}, extractLinks},
	{"images", []string{"image"}, extractImages},
	{"tables", []string{"table"}, extractTables},
	{"paragraphs", []string{"paragraph", "content"}, extractParagraphs},
	{"lists", []string{"list"}, extractLists},
}

// Extract runs every strategy whose trigger appears in the lowercased
// instruction. The snapshot is captured once at entry: a concurrent
// navigation must not change the attributed URL mid-extraction.
func (e *Extractor) Extract(ctx context.Context, instruction string) (result *types.ExtractionResult, err error) {
	snap := e.store.Current()
	if snap == nil {
		return nil, fmt.Errorf("no page loaded, open a webpage first")
	}

	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("extraction panicked", zap.Any("panic", r))
			result = nil
			err = fmt.Errorf("extraction failed: %v", r)
		}
	}()

	doc, err := loadHTML(snap.HTML)
	if err != nil {
		return nil, fmt.Errorf("parse page: %w", err)
	}

	// Chrome elements must not contaminate any textual extraction.
	doc.Find("script, style, nav, footer, header").Remove()

	lower := strings.ToLower(instruction)
	result = &types.ExtractionResult{}

	for _, s := range strategies {
		if matchesAny(lower, s.triggers) {
			s.populate(doc, result)
			e.logger.Debug("strategy fired", zap.String("strategy", s.name))
		}
	}

	if result.Empty() || strings.Contains(lower, "ai") || strings.Contains(lower, "analyze") {
		if analysis, aerr := e.analyzer.Analyze(ctx, instruction, snap.URL); aerr == nil {
			result.AIAnalysis = analysis
		} else {
			e.logger.Warn("ai analysis skipped", zap.Error(aerr))
		}
	}

	result.URL = snap.URL
	result.Timestamp = time.Now()
	return result, nil
}

func matchesAny(instruction string, triggers []string) bool {
	for _, t := range triggers {
		if strings.Contains(instruction, t) {
			return true
		}
	}
	return false
}

func extractHeadings(doc *goquery.Document, result *types.ExtractionResult) {
	result.Title = strings.TrimSpace(doc.Find("h1").First().Text())
	doc.Find("h1, h2, h3").Each(func(_ int, s *goquery.Selection) {
		result.AllHeadings = append(result.AllHeadings, strings.TrimSpace(s.Text()))
	})
}

func extractLinks(doc *goquery.Document, result *types.ExtractionResult) {
	doc.Find("a").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if len(result.Links) >= maxLinks {
			return false
		}
		result.Links = append(result.Links, types.Link{
			Text: strings.TrimSpace(s.Text()),
			Href: s.AttrOr("href", ""),
		})
		return true
	})
}

func extractImages(doc *goquery.Document, result *types.ExtractionResult) {
	doc.Find("img").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if len(result.Images) >= maxImages {
			return false
		}
		result.Images = append(result.Images, types.Image{
			Alt: s.AttrOr("alt", ""),
			Src: s.AttrOr("src", ""),
		})
		return true
	})
}

func extractTables(doc *goquery.Document, result *types.ExtractionResult) {
	doc.Find("table").Each(func(_ int, table *goquery.Selection) {
		var rows [][]string
		table.Find("tr").Each(func(_ int, row *goquery.Selection) {
			var cells []string
			row.Find("td, th").Each(func(_ int, cell *goquery.Selection) {
				cells = append(cells, strings.TrimSpace(cell.Text()))
			})
			rows = append(rows, cells)
		})
		result.Tables = append(result.Tables, rows)
	})
}

func extractParagraphs(doc *goquery.Document, result *types.ExtractionResult) {
	doc.Find("p").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if len(result.Paragraphs) >= maxParagraphs {
			return false
		}
		text := strings.TrimSpace(s.Text())
		if len(text) > minParagraphLen {
			result.Paragraphs = append(result.Paragraphs, text)
		}
		return true
	})
}

func extractLists(doc *goquery.Document, result *types.ExtractionResult) {
	doc.Find("ul, ol").EachWithBreak(func(_ int, list *goquery.Selection) bool {
		if len(result.Lists) >= maxLists {
			return false
		}
		var items []string
		list.Find("li").Each(func(_ int, li *goquery.Selection) {
			items = append(items, strings.TrimSpace(li.Text()))
		})
		result.Lists = append(result.Lists, items)
		return true
	})
}
