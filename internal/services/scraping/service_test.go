package scraping

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"pokewatch/internal/model"
	"pokewatch/internal/repositories/jsonfile"
	"pokewatch/internal/telegram"
)

const origin = "https://shop.test"

type fakeProvider struct {
	name  string
	links []string
	err   error
	calls atomic.Int32
	fetch func(ctx context.Context) (model.Content, error)
}

func (p *fakeProvider) Name() string { return p.name }

func (p *fakeProvider) Fetch(ctx context.Context, _ model.Target) (model.Content, error) {
	p.calls.Add(1)
	if p.fetch != nil {
		return p.fetch(ctx)
	}
	if p.err != nil {
		return model.Content{}, p.err
	}
	return listing(p.name, p.links...), nil
}

func listing(provider string, paths ...string) model.Content {
	var b strings.Builder
	b.WriteString("<html><body>")
	for _, p := range paths {
		fmt.Fprintf(&b, `<a href="%s">item</a>`, p)
	}
	b.WriteString(`<a href="/pages/about">about</a></body></html>`)
	return model.Content{Kind: model.ContentHTML, Body: []byte(b.String()), Provider: provider}
}

type fakeNotifier struct {
	mu    sync.Mutex
	calls [][]string
	fail  bool
}

func (n *fakeNotifier) Notify(_ context.Context, lines []string) []telegram.BatchResult {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, append([]string(nil), lines...))
	var err error
	if n.fail {
		err = errors.New("telegram error: 500")
	}
	return []telegram.BatchResult{{Index: 0, Lines: len(lines), Err: err}}
}

func (n *fakeNotifier) sent() [][]string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([][]string(nil), n.calls...)
}

type fakeSnapshots struct {
	saved []model.Content
}

func (f *fakeSnapshots) Save(target string, content model.Content) string {
	f.saved = append(f.saved, content)
	return target + "-" + content.Provider + ".html"
}

func target(name string, providers ...string) model.Target {
	return model.Target{Name: name, BaseOrigin: origin, Providers: providers}
}

func url(path string) string { return origin + path }

type fixture struct {
	repo      *jsonfile.SeenRepository
	notifier  *fakeNotifier
	snapshots *fakeSnapshots
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return &fixture{
		repo:      jsonfile.NewSeenRepository(filepath.Join(t.TempDir(), "cache.json")),
		notifier:  &fakeNotifier{},
		snapshots: &fakeSnapshots{},
	}
}

func (f *fixture) service(targets []model.Target, providers ...*fakeProvider) *Service {
	registry := map[string]Provider{}
	for _, p := range providers {
		registry[p.name] = p
	}
	return NewService(targets, registry, f.repo, f.notifier, f.snapshots, zap.NewNop())
}

func (f *fixture) seen(t *testing.T, target string) []string {
	t.Helper()
	links, err := f.repo.Load(context.Background(), target)
	require.NoError(t, err)
	return links
}

func TestRunEmptyCacheNotifiesEverything(t *testing.T) {
	f := newFixture(t)
	svc := f.service([]model.Target{target("shop", "primary")},
		&fakeProvider{name: "primary", links: []string{"/products/b", "/products/a"}})

	summary := svc.Run(context.Background())

	assert.True(t, summary.Success)
	assert.Equal(t, 2, summary.TotalLinks)
	assert.Equal(t, 2, summary.NewLinks)
	assert.Equal(t, "primary", summary.Source)
	assert.NotEmpty(t, summary.RunID)
	assert.Equal(t, [][]string{{url("/products/a"), url("/products/b")}}, f.notifier.sent())
	assert.Equal(t, []string{url("/products/a"), url("/products/b")}, f.seen(t, "shop"))
	require.Len(t, summary.Targets, 1)
	assert.True(t, summary.Targets[0].Persisted)
}

func TestRunNotifiesOnlyUnseenLinks(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.repo.Save(context.Background(), "shop", []string{url("/products/a")}))
	svc := f.service([]model.Target{target("shop", "primary")},
		&fakeProvider{name: "primary", links: []string{"/products/a", "/products/b"}})

	summary := svc.Run(context.Background())

	assert.True(t, summary.Success)
	assert.Equal(t, 2, summary.TotalLinks)
	assert.Equal(t, 1, summary.NewLinks)
	assert.Equal(t, [][]string{{url("/products/b")}}, f.notifier.sent())
	assert.Equal(t, []string{url("/products/a"), url("/products/b")}, f.seen(t, "shop"))
}

func TestRunZeroLinksLeavesCacheUntouched(t *testing.T) {
	f := newFixture(t)
	svc := f.service([]model.Target{target("shop", "primary")},
		&fakeProvider{name: "primary"})

	summary := svc.Run(context.Background())

	assert.True(t, summary.Success)
	assert.Equal(t, 0, summary.TotalLinks)
	assert.Equal(t, 0, summary.NewLinks)
	assert.Equal(t, SourceNone, summary.Source)
	assert.Empty(t, f.notifier.sent())
	assert.False(t, summary.Targets[0].Persisted)

	_, err := os.Stat(f.repo.Path())
	assert.True(t, errors.Is(err, os.ErrNotExist))

	require.Len(t, f.snapshots.saved, 1)
	assert.Equal(t, "primary", f.snapshots.saved[0].Provider)
	assert.Equal(t, "shop-primary.html", summary.DebugHTML)
}

func TestRunFallsBackToNextProvider(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.repo.Save(context.Background(), "shop", []string{url("/products/a")}))
	primary := &fakeProvider{name: "primary", err: errors.New("503 service unavailable")}
	fallback := &fakeProvider{name: "fallback", links: []string{"/products/c"}}
	svc := f.service([]model.Target{target("shop", "primary", "fallback")}, primary, fallback)

	summary := svc.Run(context.Background())

	assert.True(t, summary.Success)
	assert.Equal(t, "fallback", summary.Source)
	assert.Equal(t, 1, summary.NewLinks)
	assert.Equal(t, int32(1), primary.calls.Load())
	assert.Equal(t, [][]string{{url("/products/c")}}, f.notifier.sent())
	assert.Equal(t, []string{url("/products/a"), url("/products/c")}, f.seen(t, "shop"))
}

func TestRunPersistsWhenNotificationFails(t *testing.T) {
	f := newFixture(t)
	f.notifier.fail = true
	svc := f.service([]model.Target{target("shop", "primary")},
		&fakeProvider{name: "primary", links: []string{"/products/a", "/products/b"}})

	summary := svc.Run(context.Background())

	assert.True(t, summary.Success)
	assert.Equal(t, 2, summary.NewLinks)
	assert.Equal(t, 1, summary.Targets[0].FailedBatches)
	assert.True(t, summary.Targets[0].Persisted)
	assert.Equal(t, []string{url("/products/a"), url("/products/b")}, f.seen(t, "shop"))
}

func TestRunSecondPassFindsNothingNew(t *testing.T) {
	f := newFixture(t)
	svc := f.service([]model.Target{target("shop", "primary")},
		&fakeProvider{name: "primary", links: []string{"/products/a"}})

	first := svc.Run(context.Background())
	second := svc.Run(context.Background())

	assert.Equal(t, 1, first.NewLinks)
	assert.Equal(t, 0, second.NewLinks)
	assert.Equal(t, 1, second.TotalLinks)
	assert.NotEqual(t, first.RunID, second.RunID)
	assert.Len(t, f.notifier.sent(), 1)
}

func TestRunUsesFallbackWhenPrimaryIsEmpty(t *testing.T) {
	f := newFixture(t)
	svc := f.service([]model.Target{target("shop", "primary", "fallback")},
		&fakeProvider{name: "primary"},
		&fakeProvider{name: "fallback", links: []string{"/products/x"}})

	summary := svc.Run(context.Background())

	assert.Equal(t, "fallback", summary.Source)
	assert.Empty(t, summary.DebugHTML)
	assert.Empty(t, f.snapshots.saved)
}

func TestRunSkipsUnknownProviders(t *testing.T) {
	f := newFixture(t)
	svc := f.service([]model.Target{target("shop", "algolia", "primary")},
		&fakeProvider{name: "primary", links: []string{"/products/a"}})

	summary := svc.Run(context.Background())

	assert.Equal(t, "primary", summary.Source)
	assert.Equal(t, 1, summary.NewLinks)
}

func TestRunCorruptCacheTreatsEverythingAsNew(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, os.WriteFile(f.repo.Path(), []byte("{not json"), 0o644))
	svc := f.service([]model.Target{target("shop", "primary")},
		&fakeProvider{name: "primary", links: []string{"/products/a"}})

	summary := svc.Run(context.Background())

	assert.True(t, summary.Success)
	assert.Equal(t, 1, summary.NewLinks)
	assert.Equal(t, []string{url("/products/a")}, f.seen(t, "shop"))
}

func TestRunIsolatesTargetFailures(t *testing.T) {
	f := newFixture(t)
	broken := &fakeProvider{name: "broken", fetch: func(context.Context) (model.Content, error) {
		panic("unexpected nil page")
	}}
	healthy := &fakeProvider{name: "healthy", links: []string{"/products/a"}}
	svc := f.service([]model.Target{target("first", "broken"), target("second", "healthy")}, broken, healthy)

	summary := svc.Run(context.Background())

	assert.True(t, summary.Success)
	require.Len(t, summary.Targets, 2)
	assert.Contains(t, summary.Targets[0].Error, "unexpected nil page")
	assert.Empty(t, summary.Targets[1].Error)
	assert.Equal(t, 1, summary.NewLinks)
	assert.Equal(t, []string{url("/products/a")}, f.seen(t, "second"))
}

func TestRunFailsWhenEveryTargetFails(t *testing.T) {
	f := newFixture(t)
	broken := &fakeProvider{name: "broken", fetch: func(context.Context) (model.Content, error) {
		panic("boom")
	}}
	svc := f.service([]model.Target{target("shop", "broken")}, broken)

	summary := svc.Run(context.Background())

	assert.False(t, summary.Success)
	assert.NotEmpty(t, summary.Error)
}

func TestRunAllProvidersFailedIsNotARunFailure(t *testing.T) {
	f := newFixture(t)
	svc := f.service([]model.Target{target("shop", "a", "b")},
		&fakeProvider{name: "a", err: errors.New("timeout")},
		&fakeProvider{name: "b", err: errors.New("timeout")})

	summary := svc.Run(context.Background())

	assert.True(t, summary.Success)
	assert.Equal(t, SourceNone, summary.Source)
	assert.Empty(t, f.snapshots.saved)
}

func TestRunCoalescesOverlappingCalls(t *testing.T) {
	f := newFixture(t)
	started := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	slow := &fakeProvider{name: "slow", fetch: func(context.Context) (model.Content, error) {
		once.Do(func() { close(started) })
		<-release
		return listing("slow", "/products/a"), nil
	}}
	svc := f.service([]model.Target{target("shop", "slow")}, slow)

	results := make(chan Summary, 2)
	go func() { results <- svc.Run(context.Background()) }()
	<-started
	go func() { results <- svc.Run(context.Background()) }()
	time.Sleep(100 * time.Millisecond)
	close(release)

	a, b := <-results, <-results
	assert.Equal(t, a.RunID, b.RunID)
	assert.True(t, a.Shared != b.Shared)
	assert.Equal(t, int32(1), slow.calls.Load())
	assert.Len(t, f.notifier.sent(), 1)
}

func TestRunLimitsSamples(t *testing.T) {
	f := newFixture(t)
	paths := make([]string, 8)
	for i := range paths {
		paths[i] = fmt.Sprintf("/products/p%d", i)
	}
	svc := f.service([]model.Target{target("shop", "primary")}, &fakeProvider{name: "primary", links: paths})

	summary := svc.Run(context.Background())

	assert.Equal(t, 8, summary.TotalLinks)
	assert.Len(t, summary.Samples, maxSamples)
	assert.Equal(t, url("/products/p0"), summary.Samples[0])
}
