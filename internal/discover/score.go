package discover

import (
	"net/url"
	"strings"
)

// minKeepScore is the relevance threshold below which candidates are dropped.
const minKeepScore = 2

// deepPathSegments marks a path as deep enough to hint at an article page.
const deepPathSegments = 5

// articleSegments are path segments that strongly suggest an article page.
var articleSegments = map[string]struct{}{
	"article":  {},
	"articles": {},
	"story":    {},
	"stories":  {},
	"news":     {},
	"post":     {},
	"posts":    {},
	"blog":     {},
}

// negativeSegments are path segments that mark index, listing or service
// pages rather than articles.
var negativeSegments = map[string]struct{}{
	"tag":        {},
	"tags":       {},
	"category":   {},
	"categories": {},
	"author":     {},
	"authors":    {},
	"archive":    {},
	"archives":   {},
	"page":       {},
	"feed":       {},
	"rss":        {},
	"search":     {},
	"login":      {},
	"signup":     {},
	"wp-admin":   {},
	"wp-login":   {},
}

// mediaExtensions are file extensions that cannot be article pages.
var mediaExtensions = []string{
	".jpg", ".jpeg", ".png", ".gif", ".webp", ".svg", ".ico",
	".mp3", ".mp4", ".avi", ".mov", ".webm",
	".pdf", ".zip", ".gz", ".tar",
	".css", ".js", ".json", ".xml",
}

// socialHosts are hosts whose links never lead to site articles.
var socialHosts = map[string]struct{}{
	"facebook.com":  {},
	"twitter.com":   {},
	"x.com":         {},
	"instagram.com": {},
	"youtube.com":   {},
	"linkedin.com":  {},
	"pinterest.com": {},
	"tiktok.com":    {},
	"reddit.com":    {},
	"t.me":          {},
	"wa.me":         {},
}

// isNegative reports whether the URL matches a negative pattern: index or
// service path segments, media file extensions, or a social host.
func isNegative(u *url.URL) bool {
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	if _, social := socialHosts[host]; social {
		return true
	}

	lowerPath := strings.ToLower(u.Path)
	for _, ext := range mediaExtensions {
		if strings.HasSuffix(lowerPath, ext) {
			return true
		}
	}

	for _, segment := range pathSegments(lowerPath) {
		if _, bad := negativeSegments[segment]; bad {
			return true
		}
	}

	return false
}

// score rates how article-like a URL path looks: article-like segment +3,
// each domain keyword in the path +2, deep path +1, digits present +1.
func score(u *url.URL, keywords []string) int {
	lowerPath := strings.ToLower(u.Path)
	segments := pathSegments(lowerPath)

	total := 0
	for _, segment := range segments {
		if _, ok := articleSegments[segment]; ok {
			total += 3
			break
		}
	}

	for _, kw := range keywords {
		if kw != "" && strings.Contains(lowerPath, strings.ToLower(kw)) {
			total += 2
		}
	}

	if len(segments) >= deepPathSegments {
		total++
	}

	if strings.ContainsAny(lowerPath, "0123456789") {
		total++
	}

	return total
}

// pathSegments splits a URL path into its non-empty segments.
func pathSegments(p string) []string {
	parts := strings.Split(strings.Trim(p, "/"), "/")
	segments := make([]string, 0, len(parts))
	for _, part := range parts {
		if part != "" {
			segments = append(segments, part)
		}
	}
	return segments
}
