// Package shakesearch provides a Go client for the shakesearch HTTP API.
//
// The API pages through literal, case-insensitive matches in the corpus:
//
//	client, _ := shakesearch.New("http://localhost:3001")
//	page, _ := client.Fetch(ctx, url.Values{"q": {"to be"}}, 0)
//	for page.HasMore {
//	    next, _ := client.Fetch(ctx, url.Values{"q": {"to be"}}, offset)
//	    ...
//	}
//
// Client implements the Fetcher used by the search session controller, so a
// terminal or web front end can page through results with LoadMore.
package shakesearch
