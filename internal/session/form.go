package session

import (
	"context"
	"net/url"
	"sync"
)

// Form is a mutable, concurrency-safe set of form fields. UI layers update it
// as the user edits; the controller reads it on every dispatch.
type Form struct {
	mu     sync.RWMutex
	values url.Values
}

// NewForm creates a form with the given initial values.
func NewForm(values url.Values) *Form {
	f := &Form{}
	f.Replace(values)
	return f
}

// Set replaces a single field.
func (f *Form) Set(field, value string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.values == nil {
		f.values = url.Values{}
	}
	f.values.Set(field, value)
}

// Replace swaps every field for the given values.
func (f *Form) Replace(values url.Values) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.values = cloneValues(values)
}

// Get returns the first value of a field.
func (f *Form) Get(field string) string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.values.Get(field)
}

// ReadForm returns a copy of the current fields.
func (f *Form) ReadForm(ctx context.Context) (url.Values, error) {
	if err := ctx.Err(); err != nil {
		return nil, err //nolint:wrapcheck // context error is returned as-is
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	return cloneValues(f.values), nil
}

func cloneValues(v url.Values) url.Values {
	out := make(url.Values, len(v))
	for k, vs := range v {
		out[k] = append([]string(nil), vs...)
	}
	return out
}
