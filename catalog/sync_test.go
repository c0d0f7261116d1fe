package catalog

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/richinsley/glowsaver/api"
	"github.com/richinsley/glowsaver/store"
)

// fakeFetcher serves a fixed catalog and counts detail requests.
type fakeFetcher struct {
	ids      []string
	listErr  error
	missing  map[string]bool
	failing  map[string]bool
	delay    time.Duration
	gate     chan struct{}
	started  chan string
	inFlight atomic.Int32
	maxSeen  atomic.Int32

	mu        sync.Mutex
	requested map[string]int
	ctxErrs   []error
}

func newFakeFetcher(ids ...string) *fakeFetcher {
	return &fakeFetcher{
		ids:       ids,
		missing:   map[string]bool{},
		failing:   map[string]bool{},
		requested: map[string]int{},
	}
}

func (f *fakeFetcher) ListShaders(ctx context.Context) ([]string, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.ids, nil
}

func (f *fakeFetcher) ShaderByID(ctx context.Context, id string) (*api.Shader, error) {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		m := f.maxSeen.Load()
		if n <= m || f.maxSeen.CompareAndSwap(m, n) {
			break
		}
	}

	f.mu.Lock()
	f.requested[id]++
	f.mu.Unlock()

	if f.started != nil {
		f.started <- id
	}
	if f.gate != nil {
		<-f.gate
	}
	if f.delay > 0 {
		time.Sleep(f.delay)
	}

	f.mu.Lock()
	f.ctxErrs = append(f.ctxErrs, ctx.Err())
	f.mu.Unlock()

	switch {
	case f.missing[id]:
		return nil, fmt.Errorf("%s: %w", id, api.ErrShaderNotFound)
	case f.failing[id]:
		return nil, errors.New("connection reset by peer")
	}
	return &api.Shader{
		Info: api.ShaderInfo{ID: id, Name: "name " + id, Description: "about " + id, Username: "author"},
		RenderPass: []api.RenderPass{
			{Code: "void mainImage(out vec4 c, in vec2 p) { c = vec4(1.0); } // " + id, Name: "Image", Type: "image"},
		},
	}, nil
}

func (f *fakeFetcher) requests() map[string]int {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]int, len(f.requested))
	for k, v := range f.requested {
		out[k] = v
	}
	return out
}

func newStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.NewInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func fixedNow() time.Time {
	return time.Date(2024, 6, 1, 8, 30, 0, 0, time.UTC)
}

func TestSyncInsertsNewShaders(t *testing.T) {
	ctx := context.Background()
	f := newFakeFetcher("a", "b", "c")
	st := newStore(t)
	s := NewSyncer(f, st, 4)
	s.Now = fixedNow

	n, err := s.Sync(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	sh, err := st.GetByRemoteID(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, "name b", sh.Name)
	assert.Equal(t, "about b", sh.Description)
	assert.Equal(t, "author", sh.Author)
	assert.Equal(t, store.TypeGLSL, sh.Type)
	assert.True(t, sh.ReadOnly)
	assert.False(t, sh.Favorite)
	assert.True(t, sh.LastUpdate.Equal(fixedNow()))

	code, err := st.Source(ctx, sh.ID)
	require.NoError(t, err)
	assert.Contains(t, code, "// b")
}

func TestSyncIsIdempotent(t *testing.T) {
	ctx := context.Background()
	f := newFakeFetcher("a", "b", "c")
	st := newStore(t)
	s := NewSyncer(f, st, 4)

	_, err := s.Sync(ctx, nil)
	require.NoError(t, err)

	n, err := s.Sync(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	count, err := st.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, count)
	for id, times := range f.requests() {
		assert.Equal(t, 1, times, "id %s fetched again", id)
	}
}

func TestSyncSkipsKnownIDs(t *testing.T) {
	ctx := context.Background()
	st := newStore(t)
	_, err := st.InsertEntries(ctx, []store.Entry{
		{Shader: store.Shader{ShadertoyID: "old", Name: "old"}, SourceCode: "x"},
	})
	require.NoError(t, err)

	f := newFakeFetcher("old", "new", "new")
	n, err := NewSyncer(f, st, 4).Sync(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, map[string]int{"new": 1}, f.requests())
}

func TestSyncSentinelAndFailuresAreSkipped(t *testing.T) {
	ctx := context.Background()
	f := newFakeFetcher("ok1", "gone", "broken", "ok2")
	f.missing["gone"] = true
	f.failing["broken"] = true
	st := newStore(t)

	progress := make(chan Progress, 10)
	n, err := NewSyncer(f, st, 2).Sync(ctx, progress)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	known, err := st.KnownRemoteIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]struct{}{"ok1": {}, "ok2": {}}, known)

	close(progress)
	outcomes := map[string]Outcome{}
	var indexes []int
	for p := range progress {
		assert.Equal(t, 4, p.Total)
		outcomes[p.ID] = p.Outcome
		indexes = append(indexes, p.Index)
		if p.Outcome == Fetched {
			assert.Equal(t, "name "+p.ID, p.Name)
		}
	}
	assert.Equal(t, map[string]Outcome{"ok1": Fetched, "ok2": Fetched, "gone": NotFound, "broken": Failed}, outcomes)
	assert.ElementsMatch(t, []int{1, 2, 3, 4}, indexes)

	// A failed id is retried by the next pass.
	delete(f.failing, "broken")
	n, err = NewSyncer(f, st, 2).Sync(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 2, f.requests()["gone"])
}

func TestSyncConcurrencyCeiling(t *testing.T) {
	ids := make([]string, 500)
	for i := range ids {
		ids[i] = fmt.Sprintf("id%03d", i)
	}
	f := newFakeFetcher(ids...)
	f.delay = 2 * time.Millisecond
	st := newStore(t)

	n, err := NewSyncer(f, st, 128).Sync(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 500, n)
	assert.LessOrEqual(t, f.maxSeen.Load(), int32(128))
	assert.Greater(t, f.maxSeen.Load(), int32(1))
}

func TestSyncListFailureTouchesNothing(t *testing.T) {
	f := newFakeFetcher()
	f.listErr = errors.New("dns failure")
	st := &recordingStore{}

	_, err := NewSyncer(f, st, 4).Sync(context.Background(), nil)
	require.Error(t, err)
	assert.False(t, st.readKnown)
	assert.False(t, st.inserted)
}

func TestSyncCancelledCommitsNothing(t *testing.T) {
	ids := make([]string, 10)
	for i := range ids {
		ids[i] = fmt.Sprintf("id%d", i)
	}
	f := newFakeFetcher(ids...)
	f.gate = make(chan struct{})
	f.started = make(chan string, len(ids))
	st := newStore(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := NewSyncer(f, st, 2).Sync(ctx, nil)
		done <- err
	}()

	<-f.started
	<-f.started
	cancel()
	close(f.gate)

	err := <-done
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, len(f.requests()), len(ids))

	count, cerr := st.Count(context.Background())
	require.NoError(t, cerr)
	assert.Equal(t, 0, count)

	// In-flight jobs finished on an uncancelled context.
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.ctxErrs {
		assert.NoError(t, e)
	}
}

func TestSyncCommitFailureIsReported(t *testing.T) {
	f := newFakeFetcher("a", "b")
	boom := errors.New("disk I/O error")
	st := &recordingStore{insertErr: boom}

	n, err := NewSyncer(f, st, 4).Sync(context.Background(), nil)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, n)
	assert.Len(t, st.entries, 2)
}

func TestSyncDropsProgressWhenSinkIsFull(t *testing.T) {
	f := newFakeFetcher("a", "b", "c", "d")
	progress := make(chan Progress)

	n, err := NewSyncer(f, newStore(t), 4).Sync(context.Background(), progress)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
}

func TestTask(t *testing.T) {
	f := newFakeFetcher("a", "b", "c")
	task := Start(context.Background(), NewSyncer(f, newStore(t), 2))

	var updates []Progress
	for p := range task.Progress() {
		updates = append(updates, p)
	}
	<-task.Done()
	n, err := task.Result()
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Len(t, updates, 3)
}

func TestTaskCancel(t *testing.T) {
	f := newFakeFetcher("a", "b", "c", "d")
	f.gate = make(chan struct{})
	f.started = make(chan string, 4)
	st := newStore(t)

	task := Start(context.Background(), NewSyncer(f, st, 1))
	<-f.started
	task.Cancel()
	close(f.gate)

	_, err := task.Result()
	assert.ErrorIs(t, err, context.Canceled)
	count, cerr := st.Count(context.Background())
	require.NoError(t, cerr)
	assert.Equal(t, 0, count)
}

// recordingStore is a Store that records calls and can fail the commit.
type recordingStore struct {
	readKnown bool
	inserted  bool
	insertErr error
	entries   []store.Entry
}

func (s *recordingStore) KnownRemoteIDs(ctx context.Context) (map[string]struct{}, error) {
	s.readKnown = true
	return map[string]struct{}{}, nil
}

func (s *recordingStore) InsertEntries(ctx context.Context, entries []store.Entry) (int, error) {
	s.inserted = true
	s.entries = entries
	if s.insertErr != nil {
		return 0, s.insertErr
	}
	return len(entries), nil
}
