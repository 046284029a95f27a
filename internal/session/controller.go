// Package session implements the search session controller: accumulated
// results, the "more available" flag, and the search / load-more commands.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/kailas-cloud/shakesearch/internal/domain"
	"github.com/kailas-cloud/shakesearch/internal/metrics"
)

// Controller owns one search session. It is safe for concurrent use.
//
// Every dispatch takes a new token; a response is applied only while its token
// is still the latest one, so overlapping dispatches resolve to the most
// recently issued request regardless of arrival order.
type Controller struct {
	fetcher  Fetcher
	form     FormReader
	renderer Renderer
	logger   *zap.Logger

	mu       sync.Mutex
	results  []string
	hasMore  bool
	err      error
	token    uint64
	inflight op
	cancel   context.CancelFunc
}

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the controller logger. Defaults to a no-op logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Controller) {
		if l != nil {
			c.logger = l
		}
	}
}

// New creates a controller with empty state.
func New(fetcher Fetcher, form FormReader, renderer Renderer, opts ...Option) *Controller {
	c := &Controller{
		fetcher:  fetcher,
		form:     form,
		renderer: renderer,
		logger:   zap.NewNop(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// HandleSubmit is the form submission handler: it suppresses the event's
// default action and runs Search.
func (c *Controller) HandleSubmit(ctx context.Context, ev Event) error {
	if ev != nil {
		ev.PreventDefault()
	}
	return c.Search(ctx)
}

// HandleLoadMore is the load-more button handler.
func (c *Controller) HandleLoadMore(ctx context.Context, _ Event) error {
	return c.LoadMore(ctx)
}

// Search runs a fresh query from offset 0 and replaces the results.
// Any in-flight request is cancelled and its response discarded.
func (c *Controller) Search(ctx context.Context) error {
	query, err := c.form.ReadForm(ctx)
	if err != nil {
		return c.fail(ctx, opSearch, fmt.Errorf("read form: %w", err))
	}

	c.mu.Lock()
	token, reqCtx := c.begin(ctx, opSearch)
	c.mu.Unlock()

	c.logger.Debug("Dispatching search", zap.Uint64("token", token))

	page, err := c.fetcher.Fetch(reqCtx, query, 0)
	return c.finish(ctx, token, opSearch, page, err)
}

// LoadMore fetches the page after the accumulated results and appends it.
// It issues no request when no more pages exist or a search is in flight.
func (c *Controller) LoadMore(ctx context.Context) error {
	if !c.canLoadMore() {
		metrics.SessionDispatchTotal.WithLabelValues(opLoadMore.String(), "skipped").Inc()
		return nil
	}

	query, err := c.form.ReadForm(ctx)
	if err != nil {
		return c.fail(ctx, opLoadMore, fmt.Errorf("read form: %w", err))
	}

	c.mu.Lock()
	if !c.canLoadMoreLocked() {
		c.mu.Unlock()
		metrics.SessionDispatchTotal.WithLabelValues(opLoadMore.String(), "skipped").Inc()
		return nil
	}
	offset := len(c.results)
	token, reqCtx := c.begin(ctx, opLoadMore)
	c.mu.Unlock()

	c.logger.Debug("Dispatching load more", zap.Uint64("token", token), zap.Int("offset", offset))

	page, err := c.fetcher.Fetch(reqCtx, query, offset)
	return c.finish(ctx, token, opLoadMore, page, err)
}

// Render repaints the current state.
func (c *Controller) Render() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.renderLocked()
}

// State returns a copy of the current session state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return State{
		Results: append([]string(nil), c.results...),
		HasMore: c.hasMore,
		Err:     c.err,
	}
}

// Close cancels any in-flight request. The controller stays usable.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.supersedeLocked()
}

func (c *Controller) canLoadMore() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.canLoadMoreLocked()
}

func (c *Controller) canLoadMoreLocked() bool {
	return c.hasMore && c.inflight != opSearch
}

// supersedeLocked cancels the in-flight request and invalidates its token.
// Caller holds mu.
func (c *Controller) supersedeLocked() {
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.token++
	c.inflight = opNone
}

// begin issues a new token and supersedes the in-flight request. Caller holds mu.
func (c *Controller) begin(ctx context.Context, o op) (uint64, context.Context) {
	c.supersedeLocked()
	reqCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.inflight = o
	return c.token, reqCtx
}

// finish applies a response if its token is still current.
func (c *Controller) finish(ctx context.Context, token uint64, o op, page domain.Page, fetchErr error) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if token != c.token {
		c.logger.Debug("Dropping stale response",
			zap.String("op", o.String()),
			zap.Uint64("token", token),
			zap.Uint64("latest", c.token),
		)
		metrics.SessionDispatchTotal.WithLabelValues(o.String(), "stale").Inc()
		return nil
	}

	c.cancel()
	c.cancel = nil
	c.inflight = opNone

	if callerAborted(ctx, fetchErr) {
		return c.abortedLocked(o, fetchErr)
	}

	if fetchErr != nil {
		c.err = fmt.Errorf("%s: %w", o, fetchErr)
		c.logger.Warn("Session dispatch failed", zap.String("op", o.String()), zap.Error(fetchErr))
		metrics.SessionDispatchTotal.WithLabelValues(o.String(), "error").Inc()
		if rerr := c.renderLocked(); rerr != nil {
			c.logger.Warn("Render failed", zap.Error(rerr))
		}
		return c.err
	}

	switch o {
	case opSearch:
		c.results = append(make([]string, 0, len(page.Items)), page.Items...)
	case opLoadMore:
		c.results = append(c.results, page.Items...)
	}
	c.hasMore = page.HasMore
	c.err = nil
	metrics.SessionDispatchTotal.WithLabelValues(o.String(), "applied").Inc()

	return c.renderLocked()
}

// fail records a failure that happened before any request was issued.
// The failed dispatch still supersedes whatever was in flight.
func (c *Controller) fail(ctx context.Context, o op, err error) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.supersedeLocked()
	if callerAborted(ctx, err) {
		return c.abortedLocked(o, err)
	}

	c.err = err
	c.logger.Warn("Session dispatch failed", zap.String("op", o.String()), zap.Error(err))
	metrics.SessionDispatchTotal.WithLabelValues(o.String(), "error").Inc()
	if rerr := c.renderLocked(); rerr != nil {
		c.logger.Warn("Render failed", zap.Error(rerr))
	}
	return err
}

// abortedLocked ends a dispatch whose caller went away. The session keeps
// its previous state and nothing is repainted. Caller holds mu.
func (c *Controller) abortedLocked(o op, err error) error {
	c.logger.Debug("Session dispatch aborted by caller", zap.String("op", o.String()), zap.Error(err))
	metrics.SessionDispatchTotal.WithLabelValues(o.String(), "aborted").Inc()
	return fmt.Errorf("%s: %w", o, err)
}

// callerAborted reports whether err stems from the caller cancelling ctx.
func callerAborted(ctx context.Context, err error) bool {
	return err != nil && ctx.Err() != nil && errors.Is(err, context.Canceled)
}

func (c *Controller) renderLocked() error {
	if c.renderer == nil {
		return nil
	}
	err := c.renderer.Render(View{
		Items:   append([]string(nil), c.results...),
		HasMore: c.hasMore,
		Err:     c.err,
	})
	if err != nil {
		return fmt.Errorf("render: %w", err)
	}
	return nil
}
