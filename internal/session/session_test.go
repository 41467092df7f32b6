package session

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tgfetch/tgfetch"
	"github.com/tgfetch/tgfetch/internal/bulk"
	"github.com/tgfetch/tgfetch/internal/history"
)

type fakeLister struct {
	urls []string
	err  error
}

func (l *fakeLister) List(ctx context.Context, url string) ([]tgfetch.SourceItem, error) {
	if l.err != nil {
		return nil, l.err
	}
	items := make([]tgfetch.SourceItem, len(l.urls))
	for i, u := range l.urls {
		items[i] = tgfetch.SourceItem{URL: u}
	}
	return items, nil
}

type fakeFetcher struct {
	block chan struct{}
}

func (f *fakeFetcher) Fetch(ctx context.Context, url string, req tgfetch.FetchRequest, destDir string) (tgfetch.FetchedFile, error) {
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return tgfetch.FetchedFile{}, ctx.Err()
		}
	}
	path := filepath.Join(destDir, "item.mp4")
	if err := os.WriteFile(path, bytes.Repeat([]byte("x"), 4), 0644); err != nil {
		return tgfetch.FetchedFile{}, err
	}
	return tgfetch.FetchedFile{Path: path, Title: url, Ext: "mp4", Size: 4}, nil
}

type fakeDeliverer struct {
	files int
}

func (d *fakeDeliverer) DeliverFile(ctx context.Context, file tgfetch.FetchedFile) (*bulk.Receipt, error) {
	d.files++
	return nil, nil
}

func (d *fakeDeliverer) DeliverContainer(ctx context.Context, container bulk.Container) (*bulk.Receipt, error) {
	return nil, nil
}

func testSession(t *testing.T, store *history.Store) *Session {
	t.Helper()
	s, err := New(Config{
		ScratchRoot: filepath.Join(t.TempDir(), "scratch"),
		History:     store,
	}, context.Background())
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s
}

func inlineSpec(urls []string, deliverer *fakeDeliverer) RunSpec {
	return RunSpec{
		SourceURL: "https://example.com/playlist",
		Config:    bulk.Config{Mode: bulk.DeliverInline},
		Deps: bulk.Deps{
			Lister:    &fakeLister{urls: urls},
			Fetcher:   &fakeFetcher{},
			Deliverer: deliverer,
		},
	}
}

func waitDone(t *testing.T, run *Run) {
	t.Helper()
	select {
	case <-run.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("run did not finish")
	}
}

func TestRunCompletes(t *testing.T) {
	assert := assert.New(t)
	s := testSession(t, nil)
	deliverer := &fakeDeliverer{}

	run, err := s.Create(42, inlineSpec([]string{"a", "b"}, deliverer))
	require.NoError(t, err)
	scratch := run.scratchDir
	assert.DirExists(scratch)

	run.Start()
	waitDone(t, run)

	state := run.State()
	assert.Equal(StatusComplete, state.Status)
	assert.Equal(2, state.Discovered)
	assert.Equal(2, state.Processed)
	assert.Equal(2, deliverer.files)
	assert.NoDirExists(scratch)
	assert.Nil(s.Get(42))
}

func TestOneRunPerChat(t *testing.T) {
	assert := assert.New(t)
	s := testSession(t, nil)
	deliverer := &fakeDeliverer{}

	block := make(chan struct{})
	spec := inlineSpec([]string{"a"}, deliverer)
	spec.Deps.Fetcher = &fakeFetcher{block: block}

	run, err := s.Create(42, spec)
	require.NoError(t, err)
	run.Start()

	_, err = s.Create(42, inlineSpec([]string{"x"}, deliverer))
	assert.ErrorIs(err, ErrRunInProgress)

	// A different chat is unaffected.
	other, err := s.Create(43, inlineSpec([]string{"x"}, deliverer))
	assert.NoError(err)
	other.Start()
	waitDone(t, other)

	close(block)
	waitDone(t, run)
	assert.Nil(s.Get(42))
}

func TestCancelRun(t *testing.T) {
	assert := assert.New(t)
	s := testSession(t, nil)
	deliverer := &fakeDeliverer{}

	block := make(chan struct{})
	defer close(block)
	spec := inlineSpec([]string{"a", "b"}, deliverer)
	spec.Deps.Fetcher = &fakeFetcher{block: block}

	run, err := s.Create(42, spec)
	require.NoError(t, err)
	run.Start()

	assert.True(s.Cancel(42))
	waitDone(t, run)
	assert.Equal(StatusCancelled, run.State().Status)
	assert.False(s.Cancel(42))
}

func TestRunEventsArriveInOrder(t *testing.T) {
	assert := assert.New(t)
	s := testSession(t, nil)
	deliverer := &fakeDeliverer{}

	run, err := s.Create(42, inlineSpec([]string{"a"}, deliverer))
	require.NoError(t, err)
	sub := run.Subscribe()
	run.Start()

	kinds := []string{}
	for event := range sub.Receive() {
		kinds = append(kinds, fmt.Sprintf("%T", event))
		assert.Equal(run, event.Run())
	}
	assert.Equal([]string{
		"session.RunStarted",
		"session.ItemStarted",
		"session.ItemFinished",
		"session.RunFinished",
	}, kinds)
}

func TestRunRecordsHistory(t *testing.T) {
	assert := assert.New(t)
	store, err := history.Open(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	defer store.Close()
	s := testSession(t, store)

	run, err := s.Create(42, inlineSpec([]string{"a", "b"}, &fakeDeliverer{}))
	require.NoError(t, err)
	run.Start()
	waitDone(t, run)

	records, err := store.Recent(42, 10)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(string(run.ID()), records[0].RunID)
	assert.Equal(2, records[0].Processed)
	assert.Empty(records[0].Error)
}

func TestListingFailureMarksRunFailed(t *testing.T) {
	assert := assert.New(t)
	s := testSession(t, nil)

	spec := inlineSpec(nil, &fakeDeliverer{})
	spec.Deps.Lister = &fakeLister{err: fmt.Errorf("channel gone")}

	run, err := s.Create(42, spec)
	require.NoError(t, err)
	run.Start()
	waitDone(t, run)

	state := run.State()
	assert.Equal(StatusError, state.Status)
	assert.Contains(state.Error, "channel gone")
}

func TestCloseCancelsRuns(t *testing.T) {
	assert := assert.New(t)
	s, err := New(Config{ScratchRoot: filepath.Join(t.TempDir(), "scratch")}, context.Background())
	require.NoError(t, err)

	block := make(chan struct{})
	defer close(block)
	spec := inlineSpec([]string{"a"}, &fakeDeliverer{})
	spec.Deps.Fetcher = &fakeFetcher{block: block}

	run, err := s.Create(42, spec)
	require.NoError(t, err)
	run.Start()

	s.Close()
	waitDone(t, run)
	assert.Equal(StatusCancelled, run.State().Status)

	_, err = s.Create(43, inlineSpec([]string{"x"}, &fakeDeliverer{}))
	assert.Error(err)
}
