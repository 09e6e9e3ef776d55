package extract

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/newsloom/newsloom/internal/domain"
	"github.com/newsloom/newsloom/internal/pacer"
)

func TestParseDate(t *testing.T) {
	t.Parallel()

	t.Run("rfc3339 converted to utc", func(t *testing.T) {
		t.Parallel()

		got := parseDate("2024-05-12T18:30:00+02:00")
		require.NotNil(t, got)
		assert.Equal(t, time.Date(2024, 5, 12, 16, 30, 0, 0, time.UTC), *got)
	})

	t.Run("date only gets noon utc", func(t *testing.T) {
		t.Parallel()

		got := parseDate("2024-05-12")
		require.NotNil(t, got)
		assert.Equal(t, time.Date(2024, 5, 12, 12, 0, 0, 0, time.UTC), *got)
	})

	t.Run("garbage yields nil", func(t *testing.T) {
		t.Parallel()

		assert.Nil(t, parseDate("last tuesday"))
	})

	t.Run("empty yields nil", func(t *testing.T) {
		t.Parallel()

		assert.Nil(t, parseDate("  "))
	})
}

func TestScoreQuality(t *testing.T) {
	t.Parallel()

	noon := time.Date(2024, 5, 12, 12, 0, 0, 0, time.UTC)
	longTitle := strings.Repeat("t", 30)
	idealBody := strings.Repeat("word ", 300) + "\n\n\n\n"

	tests := []struct {
		name        string
		title       string
		text        string
		author      string
		description string
		published   *time.Time
		want        float64
	}{
		{
			name:  "bare minimum",
			title: "short",
			text:  strings.Repeat("x", 300),
			want:  0.5,
		},
		{
			// 0.5 + author 0.15 + date 0.15 + description 0.10
			// + ideal length 0.20 + title length 0.10 + line breaks 0.05,
			// clamped to 1.
			name:        "everything present clamps at one",
			title:       longTitle,
			text:        idealBody,
			author:      "Jane Doe",
			description: "A match report",
			published:   &noon,
			want:        1,
		},
		{
			// length 400 falls outside both length bands.
			name:  "mid-short body gets no length bonus",
			title: "short",
			text:  strings.Repeat("x", 400),
			want:  0.5,
		},
		{
			// length 600 lands in the acceptable band.
			name:  "acceptable length bonus",
			title: "short",
			text:  strings.Repeat("x", 600),
			want:  0.6,
		},
		{
			// below 200 chars draws the penalty.
			name:  "very short body penalised",
			title: "short",
			text:  strings.Repeat("x", 199),
			want:  0.3,
		},
		{
			name:  "title length bonus",
			title: longTitle,
			text:  strings.Repeat("x", 300),
			want:  0.6,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := scoreQuality(tt.title, tt.text, tt.author, tt.description, tt.published)
			assert.InDelta(t, tt.want, got, 0.001)
		})
	}
}

func TestMatchKeywords(t *testing.T) {
	t.Parallel()

	haystack := "the transfer window closed after the premier league fixture"

	t.Run("keeps domain order", func(t *testing.T) {
		t.Parallel()

		got := matchKeywords(haystack, []string{"fixture", "transfer", "rugby"})
		assert.Equal(t, []string{"fixture", "transfer"}, got)
	})

	t.Run("caps at ten matches", func(t *testing.T) {
		t.Parallel()

		keywords := make([]string, 15)
		for i := range keywords {
			keywords[i] = "e"
		}

		got := matchKeywords(haystack, keywords)
		assert.Len(t, got, 10)
	})

	t.Run("no match yields nil", func(t *testing.T) {
		t.Parallel()

		assert.Empty(t, matchKeywords(haystack, []string{"cricket"}))
	})

	t.Run("skips empty keywords", func(t *testing.T) {
		t.Parallel()

		assert.Equal(t, []string{"transfer"}, matchKeywords(haystack, []string{"", "transfer"}))
	})
}

func TestSourceName(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "Example Daily", sourceName("Example Daily", "https://news.example.com/a"))
	assert.Equal(t, "news", sourceName("", "https://www.news.example.com/a"))
	assert.Equal(t, "localhost", sourceName("", "https://localhost/a"))
	assert.Equal(t, "unknown", sourceName("", "::bad::"))
}

func TestValidate(t *testing.T) {
	t.Parallel()

	longEnough := strings.Repeat("x", 200)

	assert.NoError(t, validate("A perfectly fine title", longEnough))

	err := validate("tiny", longEnough)
	require.Error(t, err)
	assert.Equal(t, domain.ErrKindExtraction, domain.KindOf(err))

	err = validate("A perfectly fine title", "too short")
	require.Error(t, err)
	assert.Equal(t, domain.ErrKindExtraction, domain.KindOf(err))
}

func TestClassifyFetchError(t *testing.T) {
	t.Parallel()

	robotsErr := classifyFetchError(pacer.ErrRobotsForbidden)
	assert.Equal(t, domain.ErrKindPoliteness, domain.KindOf(robotsErr))

	rateLimited := classifyFetchError(&pacer.HTTPError{StatusCode: 429, URL: "https://example.com"})
	assert.Equal(t, domain.ErrKindPoliteness, domain.KindOf(rateLimited))

	serverErr := classifyFetchError(&pacer.HTTPError{StatusCode: 503, URL: "https://example.com"})
	assert.Equal(t, domain.ErrKindTransport, domain.KindOf(serverErr))

	plain := classifyFetchError(errors.New("connection refused"))
	assert.Equal(t, domain.ErrKindTransport, domain.KindOf(plain))
}
