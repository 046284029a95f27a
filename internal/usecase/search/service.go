package search

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/kailas-cloud/shakesearch/internal/domain"
)

const (
	// DefaultPageSize is the number of results per page.
	DefaultPageSize = 20
	// DefaultPreviewSize is the number of bytes shown on each side of a match.
	DefaultPreviewSize = 250
	// DefaultMaxQueryLen bounds the query length in runes.
	DefaultMaxQueryLen = 256
)

// Service pages through literal matches in the corpus.
type Service struct {
	index       Index
	pageSize    int
	previewSize int
	maxQueryLen int
}

// New creates a search service with default paging settings.
func New(index Index) *Service {
	return &Service{
		index:       index,
		pageSize:    DefaultPageSize,
		previewSize: DefaultPreviewSize,
		maxQueryLen: DefaultMaxQueryLen,
	}
}

// WithPaging overrides page and preview sizes. Non-positive values keep the defaults.
func (s *Service) WithPaging(pageSize, previewSize int) *Service {
	if pageSize > 0 {
		s.pageSize = pageSize
	}
	if previewSize > 0 {
		s.previewSize = previewSize
	}
	return s
}

// WithMaxQueryLen overrides the maximum query length. Non-positive keeps the default.
func (s *Service) WithMaxQueryLen(n int) *Service {
	if n > 0 {
		s.maxQueryLen = n
	}
	return s
}

// PageSize returns the configured page size.
func (s *Service) PageSize() int { return s.pageSize }

// Search returns the page of previews starting at offset. Offsets past the end
// yield an empty page with HasMore=false.
func (s *Service) Search(ctx context.Context, query string, offset int) (domain.Page, error) {
	if err := ctx.Err(); err != nil {
		return domain.Page{}, fmt.Errorf("search: %w", err)
	}
	if s.index == nil {
		return domain.Page{}, domain.ErrCorpusUnavailable
	}
	if strings.TrimSpace(query) == "" {
		return domain.Page{}, domain.NewQueryError("query is empty")
	}
	if utf8.RuneCountInString(query) > s.maxQueryLen {
		return domain.Page{}, domain.NewQueryError(fmt.Sprintf("query exceeds %d characters", s.maxQueryLen))
	}
	if offset < 0 {
		return domain.Page{}, fmt.Errorf("%w: %d", domain.ErrInvalidOffset, offset)
	}

	positions, err := s.index.Find(query)
	if err != nil {
		return domain.Page{}, fmt.Errorf("find: %w", err)
	}

	total := len(positions)
	start := min(offset, total)
	end := min(start+s.pageSize, total)

	items := make([]string, 0, end-start)
	for _, pos := range positions[start:end] {
		items = append(items, s.index.Preview(pos, s.previewSize))
	}

	return domain.Page{Items: items, HasMore: end < total}, nil
}
