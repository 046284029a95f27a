package session

import (
	"context"
	"errors"
	"net/url"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/kailas-cloud/shakesearch/internal/domain"
)

// --- Mocks ---

type fetchCall struct {
	query  url.Values
	offset int
}

type mockFetcher struct {
	mu    sync.Mutex
	calls []fetchCall
	fn    func(ctx context.Context, n int, query url.Values, offset int) (domain.Page, error)
}

func (m *mockFetcher) Fetch(ctx context.Context, query url.Values, offset int) (domain.Page, error) {
	m.mu.Lock()
	n := len(m.calls)
	m.calls = append(m.calls, fetchCall{query: query, offset: offset})
	m.mu.Unlock()
	return m.fn(ctx, n, query, offset)
}

func (m *mockFetcher) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

func (m *mockFetcher) call(n int) fetchCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[n]
}

// pages returns a fetcher serving the given pages in call order.
func pages(ps ...domain.Page) *mockFetcher {
	return &mockFetcher{fn: func(_ context.Context, n int, _ url.Values, _ int) (domain.Page, error) {
		return ps[n], nil
	}}
}

type recordingRenderer struct {
	views []View
	err   error
}

func (r *recordingRenderer) Render(v View) error {
	r.views = append(r.views, v)
	return r.err
}

func (r *recordingRenderer) last() View {
	return r.views[len(r.views)-1]
}

type failingForm struct{ err error }

func (f failingForm) ReadForm(context.Context) (url.Values, error) { return nil, f.err }

type submitEvent struct{ prevented bool }

func (e *submitEvent) PreventDefault() { e.prevented = true }

func catForm() *Form {
	return NewForm(url.Values{"q": {"cat"}})
}

func assertResults(t *testing.T, st State, want []string, wantMore bool) {
	t.Helper()
	if !reflect.DeepEqual(st.Results, want) {
		t.Errorf("results = %v, want %v", st.Results, want)
	}
	if st.HasMore != wantMore {
		t.Errorf("hasMore = %v, want %v", st.HasMore, wantMore)
	}
}

// --- Scenarios ---

func TestSearch_InitialScenario(t *testing.T) {
	f := pages(domain.Page{Items: []string{"a", "b"}, HasMore: true})
	r := &recordingRenderer{}
	c := New(f, catForm(), r)

	assertResults(t, c.State(), nil, false)

	if err := c.Search(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	assertResults(t, c.State(), []string{"a", "b"}, true)
	if got := f.call(0); got.offset != 0 || got.query.Get("q") != "cat" {
		t.Errorf("fetch call = %+v, want q=cat offset=0", got)
	}
	if len(r.views) != 1 {
		t.Fatalf("expected 1 render, got %d", len(r.views))
	}
	if !reflect.DeepEqual(r.last().Items, []string{"a", "b"}) || !r.last().HasMore {
		t.Errorf("rendered view = %+v", r.last())
	}
}

func TestLoadMore_AppendsThenStops(t *testing.T) {
	f := pages(
		domain.Page{Items: []string{"a", "b"}, HasMore: true},
		domain.Page{Items: []string{"c"}, HasMore: false},
	)
	c := New(f, catForm(), &recordingRenderer{})

	if err := c.Search(context.Background()); err != nil {
		t.Fatalf("search: %v", err)
	}
	if err := c.LoadMore(context.Background()); err != nil {
		t.Fatalf("load more: %v", err)
	}

	assertResults(t, c.State(), []string{"a", "b", "c"}, false)
	if got := f.call(1).offset; got != 2 {
		t.Errorf("load more offset = %d, want 2", got)
	}

	if err := c.LoadMore(context.Background()); err != nil {
		t.Fatalf("load more past end: %v", err)
	}
	if f.callCount() != 2 {
		t.Errorf("expected no further fetch, got %d calls", f.callCount())
	}
}

// --- Properties ---

func TestLoadMore_OffsetIsSumOfPageSizes(t *testing.T) {
	sizes := []int{3, 1, 4, 1, 5, 9}
	f := &mockFetcher{fn: func(_ context.Context, n int, _ url.Values, _ int) (domain.Page, error) {
		items := make([]string, sizes[n])
		for i := range items {
			items[i] = "x"
		}
		return domain.Page{Items: items, HasMore: n < len(sizes)-1}, nil
	}}
	c := New(f, catForm(), nil)

	if err := c.Search(context.Background()); err != nil {
		t.Fatalf("search: %v", err)
	}
	for c.State().HasMore {
		if err := c.LoadMore(context.Background()); err != nil {
			t.Fatalf("load more: %v", err)
		}
	}

	sum := 0
	for n, size := range sizes {
		if got := f.call(n).offset; got != sum {
			t.Errorf("call %d offset = %d, want %d", n, got, sum)
		}
		sum += size
	}
	if got := len(c.State().Results); got != sum {
		t.Errorf("accumulated %d results, want %d", got, sum)
	}
}

func TestLoadMore_NoFetchWhenNoMore(t *testing.T) {
	f := pages()
	r := &recordingRenderer{}
	c := New(f, catForm(), r)

	for range 3 {
		if err := c.LoadMore(context.Background()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if f.callCount() != 0 {
		t.Errorf("expected no fetch, got %d", f.callCount())
	}
	if len(r.views) != 0 {
		t.Errorf("expected no render, got %d", len(r.views))
	}
}

func TestSearch_AlwaysReplaces(t *testing.T) {
	f := pages(
		domain.Page{Items: []string{"a", "b"}, HasMore: true},
		domain.Page{Items: []string{"c", "d"}, HasMore: true},
		domain.Page{Items: []string{"z"}, HasMore: false},
	)
	c := New(f, catForm(), nil)
	ctx := context.Background()

	if err := c.Search(ctx); err != nil {
		t.Fatalf("search: %v", err)
	}
	if err := c.LoadMore(ctx); err != nil {
		t.Fatalf("load more: %v", err)
	}
	assertResults(t, c.State(), []string{"a", "b", "c", "d"}, true)

	if err := c.Search(ctx); err != nil {
		t.Fatalf("second search: %v", err)
	}
	assertResults(t, c.State(), []string{"z"}, false)
	if got := f.call(2).offset; got != 0 {
		t.Errorf("search offset = %d, want 0", got)
	}
}

func TestSearch_EmptyPageClearsResults(t *testing.T) {
	f := pages(
		domain.Page{Items: []string{"a"}, HasMore: true},
		domain.Page{},
	)
	c := New(f, catForm(), nil)

	_ = c.Search(context.Background())
	if err := c.Search(context.Background()); err != nil {
		t.Fatalf("search: %v", err)
	}
	st := c.State()
	if len(st.Results) != 0 || st.HasMore {
		t.Errorf("expected empty state, got %+v", st)
	}
}

func TestRender_Idempotent(t *testing.T) {
	f := pages(domain.Page{Items: []string{"a", "b"}, HasMore: true})
	r := &recordingRenderer{}
	c := New(f, catForm(), r)

	if err := c.Search(context.Background()); err != nil {
		t.Fatalf("search: %v", err)
	}
	if err := c.Render(); err != nil {
		t.Fatalf("render: %v", err)
	}
	if err := c.Render(); err != nil {
		t.Fatalf("render: %v", err)
	}

	if len(r.views) != 3 {
		t.Fatalf("expected 3 renders, got %d", len(r.views))
	}
	if !reflect.DeepEqual(r.views[1], r.views[2]) || !reflect.DeepEqual(r.views[0], r.views[1]) {
		t.Errorf("renders differ: %+v", r.views)
	}
}

func TestState_ReturnsCopy(t *testing.T) {
	c := New(pages(domain.Page{Items: []string{"a"}}), catForm(), nil)
	_ = c.Search(context.Background())

	st := c.State()
	st.Results[0] = "mutated"

	if c.State().Results[0] != "a" {
		t.Error("State must not expose internal slice")
	}
}

// --- Form reading ---

func TestQuery_ReReadOnEveryDispatch(t *testing.T) {
	f := pages(
		domain.Page{Items: []string{"a"}, HasMore: true},
		domain.Page{Items: []string{"b"}, HasMore: false},
	)
	form := NewForm(url.Values{"q": {"cat"}, "lang": {"en"}})
	c := New(f, form, nil)

	_ = c.Search(context.Background())
	form.Set("q", "dog")
	_ = c.LoadMore(context.Background())

	if got := f.call(0).query; got.Get("q") != "cat" || got.Get("lang") != "en" {
		t.Errorf("first query = %v", got)
	}
	if got := f.call(1).query.Get("q"); got != "dog" {
		t.Errorf("second query q = %q, want dog", got)
	}
}

func TestHandleSubmit_PreventsDefault(t *testing.T) {
	c := New(pages(domain.Page{Items: []string{"a"}}), catForm(), nil)
	ev := &submitEvent{}

	if err := c.HandleSubmit(context.Background(), ev); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ev.prevented {
		t.Error("expected PreventDefault to be called")
	}
	assertResults(t, c.State(), []string{"a"}, false)
}

func TestHandleLoadMore_Dispatches(t *testing.T) {
	f := pages(
		domain.Page{Items: []string{"a"}, HasMore: true},
		domain.Page{Items: []string{"b"}},
	)
	c := New(f, catForm(), nil)

	_ = c.HandleSubmit(context.Background(), nil)
	if err := c.HandleLoadMore(context.Background(), nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertResults(t, c.State(), []string{"a", "b"}, false)
}

// --- Failures ---

func TestSearch_FetchErrorKeepsPriorResults(t *testing.T) {
	boom := errors.New("connection refused")
	f := &mockFetcher{fn: func(_ context.Context, n int, _ url.Values, _ int) (domain.Page, error) {
		switch n {
		case 0:
			return domain.Page{Items: []string{"a", "b"}, HasMore: true}, nil
		case 1:
			return domain.Page{}, boom
		default:
			return domain.Page{Items: []string{"c"}}, nil
		}
	}}
	r := &recordingRenderer{}
	c := New(f, catForm(), r)
	ctx := context.Background()

	_ = c.Search(ctx)
	err := c.LoadMore(ctx)
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped fetch error, got %v", err)
	}

	st := c.State()
	assertResults(t, st, []string{"a", "b"}, true)
	if !errors.Is(st.Err, boom) {
		t.Errorf("state error = %v, want %v", st.Err, boom)
	}
	if !errors.Is(r.last().Err, boom) {
		t.Errorf("rendered error = %v, want %v", r.last().Err, boom)
	}

	// Retrying clears the error.
	if err := c.LoadMore(ctx); err != nil {
		t.Fatalf("retry: %v", err)
	}
	st = c.State()
	assertResults(t, st, []string{"a", "b", "c"}, false)
	if st.Err != nil {
		t.Errorf("expected error cleared, got %v", st.Err)
	}
}

func TestSearch_FormErrorSurfaces(t *testing.T) {
	formErr := errors.New("form missing")
	f := pages()
	c := New(f, failingForm{err: formErr}, &recordingRenderer{})

	err := c.Search(context.Background())
	if !errors.Is(err, formErr) {
		t.Fatalf("expected form error, got %v", err)
	}
	if !errors.Is(c.State().Err, formErr) {
		t.Errorf("state error = %v", c.State().Err)
	}
	if f.callCount() != 0 {
		t.Errorf("expected no fetch, got %d", f.callCount())
	}
}

func TestSearch_RenderErrorReturned(t *testing.T) {
	renderErr := errors.New("table gone")
	c := New(pages(domain.Page{Items: []string{"a"}}), catForm(), &recordingRenderer{err: renderErr})

	err := c.Search(context.Background())
	if !errors.Is(err, renderErr) {
		t.Fatalf("expected render error, got %v", err)
	}
	assertResults(t, c.State(), []string{"a"}, false)
}

// --- Concurrency ---

func TestSearch_OutOfOrderResponsesKeepLatest(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	f := &mockFetcher{fn: func(_ context.Context, n int, _ url.Values, _ int) (domain.Page, error) {
		if n == 0 {
			close(started)
			<-release // arrives after the second response, ignoring cancellation
			return domain.Page{Items: []string{"first"}, HasMore: true}, nil
		}
		return domain.Page{Items: []string{"second"}}, nil
	}}
	form := NewForm(url.Values{"q": {"one"}})
	c := New(f, form, &recordingRenderer{})

	errCh := make(chan error, 1)
	go func() { errCh <- c.Search(context.Background()) }()
	<-started

	form.Set("q", "two")
	if err := c.Search(context.Background()); err != nil {
		t.Fatalf("second search: %v", err)
	}

	close(release)
	if err := <-errCh; err != nil {
		t.Fatalf("stale search should be dropped silently, got %v", err)
	}

	st := c.State()
	assertResults(t, st, []string{"second"}, false)
	if st.Err != nil {
		t.Errorf("stale drop must not set error, got %v", st.Err)
	}
}

// switchableForm serves values until fail is set, then returns err.
type switchableForm struct {
	mu   sync.Mutex
	fail bool
	err  error
}

func (f *switchableForm) ReadForm(context.Context) (url.Values, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return nil, f.err
	}
	return url.Values{"q": {"cat"}}, nil
}

func (f *switchableForm) setFail() {
	f.mu.Lock()
	f.fail = true
	f.mu.Unlock()
}

func TestSearch_FormErrorSupersedesInFlight(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	f := &mockFetcher{fn: func(_ context.Context, _ int, _ url.Values, _ int) (domain.Page, error) {
		close(started)
		<-release // responds after the failed search, ignoring cancellation
		return domain.Page{Items: []string{"old-result"}}, nil
	}}
	formErr := errors.New("form gone")
	form := &switchableForm{err: formErr}
	c := New(f, form, &recordingRenderer{})

	errCh := make(chan error, 1)
	go func() { errCh <- c.Search(context.Background()) }()
	<-started

	form.setFail()
	if err := c.Search(context.Background()); !errors.Is(err, formErr) {
		t.Fatalf("second search: expected form error, got %v", err)
	}

	close(release)
	if err := <-errCh; err != nil {
		t.Fatalf("superseded search should be dropped silently, got %v", err)
	}

	st := c.State()
	assertResults(t, st, nil, false)
	if !errors.Is(st.Err, formErr) {
		t.Errorf("state error = %v, want the latest form error", st.Err)
	}
}

func TestLoadMore_FormErrorSupersedesInFlight(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	f := &mockFetcher{fn: func(_ context.Context, n int, _ url.Values, _ int) (domain.Page, error) {
		switch n {
		case 0:
			return domain.Page{Items: []string{"a"}, HasMore: true}, nil
		default:
			close(started)
			<-release
			return domain.Page{Items: []string{"stale"}, HasMore: true}, nil
		}
	}}
	formErr := errors.New("form gone")
	form := &switchableForm{err: formErr}
	c := New(f, form, nil)

	if err := c.Search(context.Background()); err != nil {
		t.Fatalf("search: %v", err)
	}

	errCh := make(chan error, 1)
	go func() { errCh <- c.LoadMore(context.Background()) }()
	<-started

	form.setFail()
	if err := c.LoadMore(context.Background()); !errors.Is(err, formErr) {
		t.Fatalf("second load more: expected form error, got %v", err)
	}

	close(release)
	if err := <-errCh; err != nil {
		t.Fatalf("superseded load more should be dropped silently, got %v", err)
	}

	st := c.State()
	assertResults(t, st, []string{"a"}, true)
	if !errors.Is(st.Err, formErr) {
		t.Errorf("state error = %v, want the latest form error", st.Err)
	}
}

func TestSearch_CallerCancelLeavesStateUntouched(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	f := &mockFetcher{fn: func(reqCtx context.Context, n int, _ url.Values, _ int) (domain.Page, error) {
		if n != 1 {
			return domain.Page{Items: []string{"kept"}, HasMore: true}, nil
		}
		cancel()
		<-reqCtx.Done()
		return domain.Page{}, reqCtx.Err()
	}}
	r := &recordingRenderer{}
	c := New(f, catForm(), r)

	if err := c.Search(context.Background()); err != nil {
		t.Fatalf("first search: %v", err)
	}
	renders := len(r.views)

	err := c.Search(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}

	st := c.State()
	assertResults(t, st, []string{"kept"}, true)
	if st.Err != nil {
		t.Errorf("caller cancellation must not set error, got %v", st.Err)
	}
	if len(r.views) != renders {
		t.Errorf("renders = %d, want %d (no repaint on abort)", len(r.views), renders)
	}

	// The session stays usable.
	if err := c.LoadMore(context.Background()); err != nil {
		t.Fatalf("load more after abort: %v", err)
	}
}

func TestSearch_CancelledBeforeFormRead(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	f := pages()
	c := New(f, catForm(), &recordingRenderer{})

	if err := c.Search(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if c.State().Err != nil {
		t.Errorf("caller cancellation must not set error, got %v", c.State().Err)
	}
	if f.callCount() != 0 {
		t.Errorf("expected no fetch, got %d", f.callCount())
	}
}

func TestSearch_CancelsInFlightRequest(t *testing.T) {
	started := make(chan struct{})
	cancelled := make(chan struct{})
	f := &mockFetcher{fn: func(ctx context.Context, n int, _ url.Values, _ int) (domain.Page, error) {
		if n == 0 {
			close(started)
			<-ctx.Done()
			close(cancelled)
			return domain.Page{}, ctx.Err()
		}
		return domain.Page{Items: []string{"fresh"}}, nil
	}}
	c := New(f, catForm(), nil)

	errCh := make(chan error, 1)
	go func() { errCh <- c.Search(context.Background()) }()
	<-started

	if err := c.Search(context.Background()); err != nil {
		t.Fatalf("second search: %v", err)
	}

	select {
	case <-cancelled:
	case <-time.After(time.Second):
		t.Fatal("first request was not cancelled")
	}
	if err := <-errCh; err != nil {
		t.Errorf("superseded search returned %v, want nil", err)
	}

	st := c.State()
	assertResults(t, st, []string{"fresh"}, false)
	if st.Err != nil {
		t.Errorf("cancellation of a superseded request must not set error, got %v", st.Err)
	}
}

func TestLoadMore_SupersededBySearch(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	f := &mockFetcher{fn: func(_ context.Context, n int, _ url.Values, _ int) (domain.Page, error) {
		switch n {
		case 0:
			return domain.Page{Items: []string{"a"}, HasMore: true}, nil
		case 1:
			close(started)
			<-release
			return domain.Page{Items: []string{"late"}}, nil
		default:
			return domain.Page{Items: []string{"z"}, HasMore: true}, nil
		}
	}}
	c := New(f, catForm(), nil)
	ctx := context.Background()

	_ = c.Search(ctx)

	errCh := make(chan error, 1)
	go func() { errCh <- c.LoadMore(ctx) }()
	<-started

	if err := c.Search(ctx); err != nil {
		t.Fatalf("search: %v", err)
	}
	close(release)
	if err := <-errCh; err != nil {
		t.Fatalf("stale load more returned %v", err)
	}

	assertResults(t, c.State(), []string{"z"}, true)
}

func TestLoadMore_SkippedWhileSearchInFlight(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	f := &mockFetcher{fn: func(_ context.Context, n int, _ url.Values, _ int) (domain.Page, error) {
		switch n {
		case 0:
			return domain.Page{Items: []string{"a"}, HasMore: true}, nil
		case 1:
			close(started)
			<-release
			return domain.Page{Items: []string{"b"}, HasMore: true}, nil
		default:
			t.Errorf("unexpected fetch %d", n)
			return domain.Page{}, nil
		}
	}}
	c := New(f, catForm(), nil)
	ctx := context.Background()

	_ = c.Search(ctx)

	errCh := make(chan error, 1)
	go func() { errCh <- c.Search(ctx) }()
	<-started

	if err := c.LoadMore(ctx); err != nil {
		t.Fatalf("load more: %v", err)
	}
	if f.callCount() != 2 {
		t.Errorf("expected load more to issue no fetch, got %d calls", f.callCount())
	}

	close(release)
	if err := <-errCh; err != nil {
		t.Fatalf("search: %v", err)
	}
	assertResults(t, c.State(), []string{"b"}, true)
}

func TestClose_CancelsInFlight(t *testing.T) {
	started := make(chan struct{})
	f := &mockFetcher{fn: func(ctx context.Context, _ int, _ url.Values, _ int) (domain.Page, error) {
		close(started)
		<-ctx.Done()
		return domain.Page{}, ctx.Err()
	}}
	c := New(f, catForm(), nil)

	errCh := make(chan error, 1)
	go func() { errCh <- c.Search(context.Background()) }()
	<-started

	c.Close()

	select {
	case err := <-errCh:
		if err != nil {
			t.Errorf("closed dispatch returned %v, want nil", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Close did not cancel the in-flight request")
	}
	if c.State().Err != nil {
		t.Errorf("expected no error after Close, got %v", c.State().Err)
	}
}

func TestForm_ReadFormReturnsCopy(t *testing.T) {
	form := NewForm(url.Values{"q": {"cat"}})

	v, err := form.ReadForm(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	v.Set("q", "mutated")

	if form.Get("q") != "cat" {
		t.Error("ReadForm must return a copy")
	}
}

func TestForm_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := NewForm(nil).ReadForm(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
