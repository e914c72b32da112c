package content

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kalambet/folio/internal/config"
	"github.com/kalambet/folio/internal/notion"
	"github.com/kalambet/folio/internal/record"
	"github.com/kalambet/folio/internal/storage"
)

// fakeStore serves pages from memory. It narrows by the Type condition of the
// filter but ignores Status, so tests can check the local Active filter.
type fakeStore struct {
	mu       sync.Mutex
	pages    []notion.Page
	err      error
	failType record.RecordType
	calls    atomic.Int32
	lastReq  notion.QueryRequest
	release  chan struct{}
}

func (f *fakeStore) QueryAll(ctx context.Context, databaseID string, req notion.QueryRequest) ([]notion.Page, error) {
	f.calls.Add(1)
	if f.release != nil {
		<-f.release
	}
	f.mu.Lock()
	f.lastReq = req
	f.mu.Unlock()

	if f.err != nil {
		return nil, f.err
	}
	want := typeCondition(req.Filter)
	if f.failType != "" && want == string(f.failType) {
		return nil, fmt.Errorf("query %s: %w", want, notion.ErrUnavailable)
	}
	var out []notion.Page
	for _, p := range f.pages {
		if want == "" || record.Select(p.Properties, record.PropType) == want {
			out = append(out, p)
		}
	}
	return out, nil
}

func typeCondition(f *notion.Filter) string {
	if f == nil {
		return ""
	}
	if f.Property == record.PropType && f.Select != nil {
		return f.Select.Equals
	}
	for i := range f.And {
		if v := typeCondition(&f.And[i]); v != "" {
			return v
		}
	}
	return ""
}

func page(id string, r record.PortfolioRecord) notion.Page {
	return notion.Page{ID: id, Properties: record.PortfolioProperties(r)}
}

func order(i int) *int { return &i }

func skill(name string, status record.Status, ord *int) record.PortfolioRecord {
	return record.PortfolioRecord{Type: record.TypeSkill, Name: name, Status: status, DisplayOrder: ord}
}

func names(recs []record.PortfolioRecord) []string {
	out := make([]string, 0, len(recs))
	for _, r := range recs {
		out = append(out, r.Name)
	}
	return out
}

func newClient(t *testing.T, fs *fakeStore, opts ...Option) *Client {
	t.Helper()
	c, err := New(fs, "portfolio-db", opts...)
	require.NoError(t, err)
	return c
}

func TestNew_ConfigurationErrors(t *testing.T) {
	_, err := New(nil, "db")
	require.ErrorIs(t, err, config.ErrMissing)

	_, err = New(&fakeStore{}, "")
	require.ErrorIs(t, err, config.ErrMissing)
}

func TestListRecords_ActiveSkillsOrdered(t *testing.T) {
	fs := &fakeStore{pages: []notion.Page{
		page("a", skill("Three", record.StatusActive, order(3))),
		page("b", skill("One", record.StatusActive, order(1))),
		page("c", skill("Old", record.StatusArchived, order(0))),
		page("d", skill("Two", record.StatusActive, order(2))),
	}}
	c := newClient(t, fs)

	recs, err := c.ListRecords(t.Context(), record.TypeSkill)
	require.NoError(t, err)
	assert.Equal(t, []string{"One", "Two", "Three"}, names(recs))
	for _, r := range recs {
		assert.Equal(t, record.StatusActive, r.Status)
	}
}

func TestListRecords_QueryShape(t *testing.T) {
	fs := &fakeStore{}
	c := newClient(t, fs)

	_, err := c.ListRecords(t.Context(), record.TypeExperience)
	require.NoError(t, err)

	f := fs.lastReq.Filter
	require.NotNil(t, f)
	require.Len(t, f.And, 2)
	assert.Equal(t, notion.SelectEquals("Type", "Experience"), f.And[0])
	assert.Equal(t, notion.SelectEquals("Status", "Active"), f.And[1])
	assert.Equal(t, []notion.Sort{{Property: "Display Order", Direction: notion.Ascending}}, fs.lastReq.Sorts)

	_, err = c.ListRecords(t.Context(), "")
	require.NoError(t, err)
	assert.Equal(t, notion.SelectEquals("Status", "Active"), *fs.lastReq.Filter)
}

func TestListRecords_NullOrderLastAndStableTies(t *testing.T) {
	fs := &fakeStore{pages: []notion.Page{
		page("1", skill("NoOrderA", record.StatusActive, nil)),
		page("2", skill("TieFirst", record.StatusActive, order(5))),
		page("3", skill("Early", record.StatusActive, order(1))),
		page("4", skill("NoOrderB", record.StatusActive, nil)),
		page("5", skill("TieSecond", record.StatusActive, order(5))),
	}}
	c := newClient(t, fs)

	recs, err := c.ListRecords(t.Context(), record.TypeSkill)
	require.NoError(t, err)
	assert.Equal(t, []string{"Early", "TieFirst", "TieSecond", "NoOrderA", "NoOrderB"}, names(recs))
}

func TestListRecords_EmptyIsNotAnError(t *testing.T) {
	c := newClient(t, &fakeStore{})

	recs, err := c.ListRecords(t.Context(), record.TypeProject)
	require.NoError(t, err)
	assert.NotNil(t, recs)
	assert.Empty(t, recs)
}

func TestListRecords_StoreUnavailable(t *testing.T) {
	fs := &fakeStore{err: &notion.APIError{Status: 401, Code: "unauthorized"}}
	c := newClient(t, fs)

	recs, err := c.ListRecords(t.Context(), record.TypeSkill)
	require.ErrorIs(t, err, notion.ErrUnavailable)
	assert.Nil(t, recs)
}

func openCache(t *testing.T) *storage.Store {
	t.Helper()
	s, err := storage.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestListRecords_CacheServesFreshEntries(t *testing.T) {
	fs := &fakeStore{pages: []notion.Page{page("a", skill("Go", record.StatusActive, order(1)))}}
	now := time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)
	c := newClient(t, fs, WithCache(openCache(t), time.Minute), WithClock(func() time.Time { return now }))

	first, err := c.ListRecords(t.Context(), record.TypeSkill)
	require.NoError(t, err)
	second, err := c.ListRecords(t.Context(), record.TypeSkill)
	require.NoError(t, err)

	assert.Equal(t, int32(1), fs.calls.Load())
	assert.Equal(t, first, second)

	now = now.Add(2 * time.Minute)
	_, err = c.ListRecords(t.Context(), record.TypeSkill)
	require.NoError(t, err)
	assert.Equal(t, int32(2), fs.calls.Load(), "stale entry must go to the store")
}

func TestListRecords_StaleCacheDoesNotMaskStoreError(t *testing.T) {
	fs := &fakeStore{pages: []notion.Page{page("a", skill("Go", record.StatusActive, order(1)))}}
	now := time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)
	c := newClient(t, fs, WithCache(openCache(t), time.Minute), WithClock(func() time.Time { return now }))

	_, err := c.ListRecords(t.Context(), record.TypeSkill)
	require.NoError(t, err)

	now = now.Add(time.Hour)
	fs.err = notion.ErrUnavailable
	_, err = c.ListRecords(t.Context(), record.TypeSkill)
	require.ErrorIs(t, err, notion.ErrUnavailable)
}

func TestInvalidate(t *testing.T) {
	fs := &fakeStore{}
	cache := openCache(t)
	c := newClient(t, fs, WithCache(cache, time.Hour))

	c.ListRecords(t.Context(), record.TypeBio)
	require.NoError(t, Invalidate(t.Context(), cache))
	c.ListRecords(t.Context(), record.TypeBio)

	assert.Equal(t, int32(2), fs.calls.Load())
}

func TestInvalidate_OneType(t *testing.T) {
	fs := &fakeStore{}
	cache := openCache(t)
	c := newClient(t, fs, WithCache(cache, time.Hour))

	for _, rt := range []record.RecordType{record.TypeBio, record.TypeSkill, ""} {
		_, err := c.ListRecords(t.Context(), rt)
		require.NoError(t, err)
	}
	require.Equal(t, int32(3), fs.calls.Load())

	require.NoError(t, Invalidate(t.Context(), cache, record.TypeSkill))

	// Bio is still cached; skills and the combined list are fetched again.
	for _, rt := range []record.RecordType{record.TypeBio, record.TypeSkill, ""} {
		_, err := c.ListRecords(t.Context(), rt)
		require.NoError(t, err)
	}
	assert.Equal(t, int32(5), fs.calls.Load())
}

func TestListRecords_CollapsesConcurrentMisses(t *testing.T) {
	fs := &fakeStore{release: make(chan struct{})}
	c := newClient(t, fs)

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.ListRecords(context.Background(), record.TypeSkill)
			assert.NoError(t, err)
		}()
	}
	time.Sleep(100 * time.Millisecond)
	close(fs.release)
	wg.Wait()

	assert.Equal(t, int32(1), fs.calls.Load())
}

func portfolioPages() []notion.Page {
	return []notion.Page{
		page("bio", record.PortfolioRecord{Type: record.TypeBio, Name: "About", Content: "Data engineer.", Status: record.StatusActive, DisplayOrder: order(1)}),
		page("fun", record.PortfolioRecord{Type: record.TypeBio, Name: "Personal Interests", Content: "Football.", Status: record.StatusActive, DisplayOrder: order(2)}),
		page("exp", record.PortfolioRecord{Type: record.TypeExperience, Name: "Acme", Content: strings.Repeat("x", 350), Status: record.StatusActive}),
		page("edu", record.PortfolioRecord{Type: record.TypeEducation, Name: "MSc", Content: "TU Berlin", Status: record.StatusActive}),
		page("s1", skill("Go", record.StatusActive, order(1))),
		page("s2", skill("SQL", record.StatusActive, order(2))),
		page("gh", record.PortfolioRecord{Type: record.TypeContact, Name: "GitHub", URL: "https://github.com/someone", Status: record.StatusActive}),
	}
}

func TestBuildKnowledgeSummary(t *testing.T) {
	c := newClient(t, &fakeStore{pages: portfolioPages()})

	got, err := c.BuildKnowledgeSummary(t.Context())
	require.NoError(t, err)

	want := strings.Join([]string{
		"PROFILE:\nData engineer.\n\nPersonal Info:\nFootball.",
		"\nEXPERIENCE:",
		"- Acme: " + strings.Repeat("x", 300) + "...",
		"\nEDUCATION:",
		"- MSc: TU Berlin",
		"\nSKILLS:",
		"Go, SQL",
		"\nCONTACT:",
		"- GitHub: https://github.com/someone",
	}, "\n")
	assert.Equal(t, want, got)
}

func TestBuildKnowledgeSummary_CapsSkillsAndOmitsEmptySections(t *testing.T) {
	var pages []notion.Page
	for i := range 25 {
		pages = append(pages, page(fmt.Sprint(i), skill(fmt.Sprintf("s%02d", i), record.StatusActive, order(i))))
	}
	c := newClient(t, &fakeStore{pages: pages})

	got, err := c.BuildKnowledgeSummary(t.Context())
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(got, "\nSKILLS:\n"), got)
	assert.Contains(t, got, "s19")
	assert.NotContains(t, got, "s20")
	assert.NotContains(t, got, "PROFILE:")
}

func TestBuildKnowledgeSummary_FailsOnAnyType(t *testing.T) {
	c := newClient(t, &fakeStore{pages: portfolioPages(), failType: record.TypeEducation})

	got, err := c.BuildKnowledgeSummary(t.Context())
	require.ErrorIs(t, err, notion.ErrUnavailable)
	assert.Empty(t, got)
}

func TestPortfolioInfo(t *testing.T) {
	c := newClient(t, &fakeStore{pages: portfolioPages()})

	info, err := c.PortfolioInfo(t.Context())
	require.NoError(t, err)

	assert.Equal(t, "Data engineer.\n\nPersonal Info:\nFootball.", info.Bio)
	assert.Equal(t, "Go, SQL", info.Skills)
	assert.Equal(t, "Acme: "+strings.Repeat("x", 200)+"...", info.ExperienceSummary)
	assert.Equal(t, "MSc: TU Berlin", info.Education)
	assert.Equal(t, "GitHub: https://github.com/someone", info.ContactInfo)

	text := info.String()
	assert.True(t, strings.HasPrefix(text, "Portfolio Information:\n\nBIO:\nData engineer."))
	assert.Contains(t, text, "\n\nCONTACT:\nGitHub: https://github.com/someone\n")
}

func TestPortfolioInfo_NoBio(t *testing.T) {
	c := newClient(t, &fakeStore{})

	info, err := c.PortfolioInfo(t.Context())
	require.NoError(t, err)
	assert.Equal(t, "Not available", info.Bio)
	assert.Empty(t, info.Skills)
}

type fakeWarmer struct {
	mu      sync.Mutex
	fail    record.RecordType
	touched []record.RecordType
}

func (f *fakeWarmer) Refresh(ctx context.Context, t record.RecordType) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.touched = append(f.touched, t)
	if t == f.fail {
		return 0, notion.ErrUnavailable
	}
	return 1, nil
}

func TestRefresherRunOnce_ContinuesPastFailures(t *testing.T) {
	w := &fakeWarmer{fail: record.TypeSkill}
	r := NewRefresher(w, time.Minute)

	err := r.RunOnce(t.Context())
	require.ErrorIs(t, err, notion.ErrUnavailable)
	assert.Len(t, w.touched, len(record.RecordTypes)+1)
}

func TestRefresherRun_StopsOnCancel(t *testing.T) {
	w := &fakeWarmer{}
	r := NewRefresher(w, 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.Run(ctx)
		close(done)
	}()

	time.Sleep(35 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	assert.GreaterOrEqual(t, len(w.touched), len(record.RecordTypes)+1)
}

func TestClientRefresh_WritesCache(t *testing.T) {
	fs := &fakeStore{pages: []notion.Page{page("a", skill("Go", record.StatusActive, order(1)))}}
	cache := openCache(t)
	c := newClient(t, fs, WithCache(cache, time.Hour))

	n, err := c.Refresh(t.Context(), record.TypeSkill)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	e, err := cache.GetCacheEntry(t.Context(), "records:Skill")
	require.NoError(t, err)
	assert.Equal(t, 1, e.RecordCount)
}
