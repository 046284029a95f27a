package session

import (
	"context"
	"net/url"

	"github.com/kailas-cloud/shakesearch/internal/domain"
)

// Fetcher retrieves one page of results for a query starting at offset.
type Fetcher interface {
	Fetch(ctx context.Context, query url.Values, offset int) (domain.Page, error)
}

// FormReader returns the current form contents. It is called on every
// dispatch and must not cache.
type FormReader interface {
	ReadForm(ctx context.Context) (url.Values, error)
}

// Renderer replaces the visible result list with the given view.
// Render is called with the controller lock held and must not call back into it.
type Renderer interface {
	Render(v View) error
}

// Event is a UI event whose default action can be suppressed.
type Event interface {
	PreventDefault()
}
