// Package extract converts one candidate URL into a validated, scored
// article record, or a structured rejection.
package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"

	"github.com/newsloom/newsloom/internal/domain"
	"github.com/newsloom/newsloom/internal/logger"
	"github.com/newsloom/newsloom/internal/pacer"
)

const (
	minTitleLength = 10
	minTextLength  = 200
	maxTextLength  = 50000
	maxKeywords    = 10
)

// Result is a successful extraction plus the fetch measurements that feed
// the attempt history.
type Result struct {
	Article       *domain.Article
	ResponseTime  time.Duration
	ContentLength int
}

// Extractor runs the fetch and extraction pipeline. All network access
// goes through the paced fetcher.
type Extractor struct {
	fetcher *pacer.Fetcher
	logger  logger.Interface
}

// New creates an extractor.
func New(fetcher *pacer.Fetcher, log logger.Interface) *Extractor {
	return &Extractor{fetcher: fetcher, logger: log}
}

// Extract fetches and processes one URL. dom supplies the keywords used
// for the relevance gate; site supplies naming and language hints. Every
// failure is a PipelineError whose kind drives link-state accounting.
func (e *Extractor) Extract(
	ctx context.Context,
	rawURL string,
	dom *domain.Domain,
	site *domain.Site,
) (*Result, error) {
	res, err := e.fetcher.Fetch(ctx, rawURL, site.Language)
	if err != nil {
		return nil, classifyFetchError(err)
	}

	page, err := e.parse(res.Body, rawURL)
	if err != nil {
		return nil, domain.NewPipelineError(domain.ErrKindExtraction, "content extraction failed", err)
	}

	if len(page.text) > maxTextLength {
		page.text = page.text[:maxTextLength]
	}

	if validationErr := validate(page.title, page.text); validationErr != nil {
		return nil, validationErr
	}

	haystack := strings.ToLower(page.title + " " + page.text)
	matched := matchKeywords(haystack, dom.Keywords)
	if len(dom.Keywords) > 0 && len(matched) == 0 {
		return nil, domain.NewPipelineError(domain.ErrKindRelevance,
			fmt.Sprintf("no domain keyword found in %s", rawURL), nil)
	}

	published := parseDate(page.date)
	quality := scoreQuality(page.title, page.text, page.author, page.description, published)

	article := &domain.Article{
		Title:         page.title,
		Content:       page.text,
		URL:           rawURL,
		Author:        page.author,
		Description:   page.description,
		Source:        sourceName(page.siteName, rawURL),
		DomainID:      dom.ID,
		Language:      pickLanguage(page.language, site.Language),
		PublishedDate: published,
		QualityScore:  quality,
		Keywords:      matched,
		Metadata: domain.JSONBMap{
			"final_url":    res.FinalURL,
			"content_type": res.ContentType,
			"site_id":      site.ID,
			"page_type":    page.pageType,
		},
	}

	return &Result{
		Article:       article,
		ResponseTime:  res.ResponseTime,
		ContentLength: len(res.Body),
	}, nil
}

// page holds the fields pulled out of one HTML document.
type page struct {
	title       string
	text        string
	author      string
	description string
	siteName    string
	language    string
	date        string
	pageType    string
}

// parse runs the main-text extractor with a selector-based fallback for
// pages it cannot handle.
func (e *Extractor) parse(body []byte, rawURL string) (*page, error) {
	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse url: %w", err)
	}

	article, err := readability.FromReader(bytes.NewReader(body), parsedURL)
	if err == nil && strings.TrimSpace(article.TextContent) != "" {
		p := &page{
			title:       strings.TrimSpace(article.Title),
			text:        strings.TrimSpace(article.TextContent),
			author:      strings.TrimSpace(article.Byline),
			description: strings.TrimSpace(article.Excerpt),
			siteName:    strings.TrimSpace(article.SiteName),
			language:    strings.TrimSpace(article.Language),
			pageType:    metaPageType(body),
		}
		if article.PublishedTime != nil {
			p.date = article.PublishedTime.UTC().Format(time.RFC3339)
		}
		if p.date == "" {
			p.date = metaDate(body)
		}
		return p, nil
	}

	return fallbackParse(body)
}

// fallbackParse extracts title and paragraph text with plain selectors
// when the readability pass yields nothing.
func fallbackParse(body []byte) (*page, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	title := strings.TrimSpace(doc.Find("title").First().Text())
	if h1 := strings.TrimSpace(doc.Find("h1").First().Text()); h1 != "" {
		title = h1
	}

	var b strings.Builder
	doc.Find("article p, main p, p").Each(func(_ int, sel *goquery.Selection) {
		text := strings.TrimSpace(sel.Text())
		if text == "" {
			return
		}
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(text)
	})

	description, _ := doc.Find(`meta[name="description"]`).Attr("content")
	author, _ := doc.Find(`meta[name="author"]`).Attr("content")
	date, _ := doc.Find(`meta[property="article:published_time"]`).Attr("content")
	siteName, _ := doc.Find(`meta[property="og:site_name"]`).Attr("content")
	pageType, _ := doc.Find(`meta[property="og:type"]`).Attr("content")
	language, _ := doc.Find("html").Attr("lang")

	return &page{
		title:       title,
		text:        b.String(),
		author:      strings.TrimSpace(author),
		description: strings.TrimSpace(description),
		siteName:    strings.TrimSpace(siteName),
		language:    strings.TrimSpace(language),
		date:        strings.TrimSpace(date),
		pageType:    normalizePageType(pageType),
	}, nil
}

// metaDate pulls the published-time meta tag when the main extractor did
// not report a date.
func metaDate(body []byte) string {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return ""
	}
	date, _ := doc.Find(`meta[property="article:published_time"]`).Attr("content")
	return strings.TrimSpace(date)
}

// metaPageType reads the Open Graph object type of the page.
func metaPageType(body []byte) string {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return normalizePageType("")
	}
	pageType, _ := doc.Find(`meta[property="og:type"]`).Attr("content")
	return normalizePageType(pageType)
}

// normalizePageType defaults pages without an og:type declaration to
// "article"; anything that reached this point passed the article gates.
func normalizePageType(pageType string) string {
	pageType = strings.ToLower(strings.TrimSpace(pageType))
	if pageType == "" {
		return "article"
	}
	return pageType
}

// validate enforces the minimum title and body sizes.
func validate(title, text string) error {
	if len(title) < minTitleLength {
		return domain.NewPipelineError(domain.ErrKindExtraction,
			fmt.Sprintf("title too short (%d chars)", len(title)), nil)
	}
	if len(text) < minTextLength {
		return domain.NewPipelineError(domain.ErrKindExtraction,
			fmt.Sprintf("body too short (%d chars)", len(text)), nil)
	}
	return nil
}

// matchKeywords intersects the domain keyword list with the lowercased
// content, keeping up to maxKeywords matches in domain order.
func matchKeywords(haystack string, keywords []string) []string {
	var matched []string
	for _, kw := range keywords {
		if kw == "" {
			continue
		}
		if strings.Contains(haystack, strings.ToLower(kw)) {
			matched = append(matched, kw)
			if len(matched) == maxKeywords {
				break
			}
		}
	}
	return matched
}

// sourceName prefers the extractor-reported site name, then the leftmost
// host label, then "unknown".
func sourceName(siteName, rawURL string) string {
	if siteName != "" {
		return siteName
	}

	parsed, err := url.Parse(rawURL)
	if err == nil {
		host := strings.TrimPrefix(strings.ToLower(parsed.Hostname()), "www.")
		if label, _, found := strings.Cut(host, "."); found && label != "" {
			return label
		}
		if host != "" {
			return host
		}
	}

	return "unknown"
}

func pickLanguage(extracted, configured string) string {
	if extracted != "" {
		return extracted
	}
	return configured
}

// classifyFetchError maps fetch failures onto pipeline error kinds.
// Politeness denials and 429s never count toward blocking a link.
func classifyFetchError(err error) error {
	if errors.Is(err, pacer.ErrRobotsForbidden) {
		return domain.NewPipelineError(domain.ErrKindPoliteness, "robots.txt forbids url", err)
	}

	var httpErr *pacer.HTTPError
	if errors.As(err, &httpErr) && httpErr.StatusCode == 429 {
		return domain.NewPipelineError(domain.ErrKindPoliteness, "rate limited by host", err)
	}

	return domain.NewPipelineError(domain.ErrKindTransport, "fetch failed", err)
}
