package domain

// HasMoreHeader is the response header signalling that further pages exist.
const HasMoreHeader = "X-Has-More"

// Page is one batch of result items returned by a single search request.
type Page struct {
	Items   []string
	HasMore bool
}

// Len returns the number of items in the page.
func (p Page) Len() int { return len(p.Items) }

// HasMoreFromHeader interprets the X-Has-More header value.
// Only the exact value "true" means more pages exist.
func HasMoreFromHeader(v string) bool {
	return v == "true"
}
