package download

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/handiism/bandcamp-courier/internal/model"
	"github.com/handiism/bandcamp-courier/internal/retry"
)

func newTestFetcher(afs afero.Fs, src *fakeSource, cfg FetcherConfig) *Fetcher {
	log, _ := test.NewNullLogger()
	if cfg.StagingDir == "" {
		cfg.StagingDir = "/stage"
	}
	if cfg.Policy.MaxAttempts == 0 {
		cfg.Policy.MaxAttempts = 3
	}
	return NewFetcher(afs, src, src, cfg, log)
}

func TestFetch_SucceedsOnNthAttempt(t *testing.T) {
	afs := afero.NewMemMapFs()
	src := newFakeSource(afs)
	src.failFirst["song"] = 2
	f := newTestFetcher(afs, src, FetcherConfig{})

	r, err := f.Fetch(context.Background(), model.ItemDescriptor{ID: "song", Title: "Song", Artist: "Band"}, 3)
	require.NoError(t, err)

	assert.Equal(t, 3, src.transferCount("song"))
	assert.Equal(t, "/stage/item/song/song.mp3", r.Path)
	assert.Equal(t, "Song", r.Title)
	assert.Equal(t, "Band", r.Artist)
	assert.Equal(t, ".mp3", r.Extension)
	assert.Equal(t, int64(len("audio bytes of song")), r.Size)

	data, err := afero.ReadFile(afs, r.Path)
	require.NoError(t, err)
	assert.Equal(t, "audio bytes of song", string(data))
}

func TestFetch_ExhaustedRemovesStaging(t *testing.T) {
	afs := afero.NewMemMapFs()
	src := newFakeSource(afs)
	src.alwaysFail["song"] = true
	f := newTestFetcher(afs, src, FetcherConfig{})

	r, err := f.Fetch(context.Background(), model.ItemDescriptor{ID: "song"}, 4)
	require.Error(t, err)
	assert.Nil(t, r)

	assert.ErrorIs(t, err, ErrFetchFailed)
	assert.ErrorIs(t, err, ErrExhaustedRetries)
	assert.ErrorIs(t, err, retry.ErrExhausted)
	assert.ErrorIs(t, err, errTransient)

	var fe *FetchError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, "song", fe.ItemID)
	assert.Equal(t, 4, fe.Attempts)
	assert.Equal(t, 4, src.transferCount("song"))

	exists, err := afero.DirExists(afs, "/stage/item/song")
	require.NoError(t, err)
	assert.False(t, exists, "partial files must not survive a failed fetch")
}

func TestFetch_UsesPolicyBoundWhenNotGiven(t *testing.T) {
	afs := afero.NewMemMapFs()
	src := newFakeSource(afs)
	src.alwaysFail["song"] = true
	f := newTestFetcher(afs, src, FetcherConfig{Policy: retry.Policy{MaxAttempts: 2}})

	_, err := f.Fetch(context.Background(), model.ItemDescriptor{ID: "song"}, 0)
	require.Error(t, err)
	assert.Equal(t, 2, src.transferCount("song"))
}

func TestFetch_EmptyTransferIsRetried(t *testing.T) {
	afs := afero.NewMemMapFs()
	src := newFakeSource(afs)
	src.emptyFirst["song"] = 1
	f := newTestFetcher(afs, src, FetcherConfig{})

	r, err := f.Fetch(context.Background(), model.ItemDescriptor{ID: "song"}, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, src.transferCount("song"))
	assert.Positive(t, r.Size)
}

func TestFetch_EmptyTransferExhausts(t *testing.T) {
	afs := afero.NewMemMapFs()
	src := newFakeSource(afs)
	src.emptyFirst["song"] = 10
	f := newTestFetcher(afs, src, FetcherConfig{})

	_, err := f.Fetch(context.Background(), model.ItemDescriptor{ID: "song"}, 2)
	assert.ErrorIs(t, err, ErrEmptyTransfer)
	assert.ErrorIs(t, err, ErrExhaustedRetries)
}

func TestFetch_InvalidMetadata(t *testing.T) {
	tests := []struct {
		name    string
		records []model.TransferInfo
	}{
		{name: "no records", records: []model.TransferInfo{}},
		{name: "no media url", records: []model.TransferInfo{{ItemID: "song", MediaURL: "  "}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			afs := afero.NewMemMapFs()
			src := newFakeSource(afs)
			src.records["song"] = tt.records
			f := newTestFetcher(afs, src, FetcherConfig{})

			_, err := f.Fetch(context.Background(), model.ItemDescriptor{ID: "song"}, 2)
			assert.ErrorIs(t, err, ErrInvalidMetadata)
			assert.ErrorIs(t, err, ErrExhaustedRetries)
			assert.Zero(t, src.transferCount("song"), "nothing is transferred without a valid record")
		})
	}
}

func TestFetch_AmbiguousMetadataUsesFirstRecord(t *testing.T) {
	afs := afero.NewMemMapFs()
	src := newFakeSource(afs)
	src.records["song"] = []model.TransferInfo{
		{ItemID: "song", MediaURL: "https://cdn/first.mp3", Title: "First", Extension: ".mp3"},
		{ItemID: "song", MediaURL: "https://cdn/second.mp3", Title: "Second", Extension: ".mp3"},
	}
	f := newTestFetcher(afs, src, FetcherConfig{})

	r, err := f.Fetch(context.Background(), model.ItemDescriptor{ID: "song"}, 1)
	require.NoError(t, err)
	assert.Equal(t, "First", r.Title)
}

func TestFetch_KnownMediaURLSkipsResolver(t *testing.T) {
	afs := afero.NewMemMapFs()
	src := newFakeSource(afs)
	// would fail if consulted
	src.records["song"] = []model.TransferInfo{}
	f := newTestFetcher(afs, src, FetcherConfig{})

	r, err := f.Fetch(context.Background(), model.ItemDescriptor{ID: "song", MediaURL: "https://cdn/song"}, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, src.transferCount("song"))
	assert.Equal(t, "/stage/item/song/song", r.Path)
}

func TestFetch_Enrichment(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		afs := afero.NewMemMapFs()
		src := newFakeSource(afs)
		f := newTestFetcher(afs, src, FetcherConfig{})

		r, err := f.Fetch(context.Background(), model.ItemDescriptor{ID: "42", Position: 3}, 1)
		require.NoError(t, err)
		assert.Equal(t, "Track 42", r.Title)
		assert.Equal(t, "Unknown Artist", r.Artist)
		assert.Equal(t, 3, r.OrderKey())
	})

	t.Run("record wins over descriptor", func(t *testing.T) {
		afs := afero.NewMemMapFs()
		src := newFakeSource(afs)
		src.records["song"] = []model.TransferInfo{{
			MediaURL: "https://cdn/song.mp3", Title: "Real Title", Artist: "Real Artist", TrackNumber: "7", Extension: ".mp3",
		}}
		f := newTestFetcher(afs, src, FetcherConfig{})

		r, err := f.Fetch(context.Background(), model.ItemDescriptor{ID: "song", Title: "Guess", TrackNumber: "1"}, 1)
		require.NoError(t, err)
		assert.Equal(t, "Real Title", r.Title)
		assert.Equal(t, "Real Artist", r.Artist)
		assert.Equal(t, "7", r.TrackNumber)
		assert.Equal(t, "song", r.ItemID)
	})

	t.Run("extension sniffed from content", func(t *testing.T) {
		afs := afero.NewMemMapFs()
		src := newFakeSource(afs)
		src.records["doc"] = []model.TransferInfo{{MediaURL: "https://cdn/doc"}}
		src.content["doc"] = []byte("%PDF-1.4\n%\xe2\xe3\xcf\xd3\n1 0 obj\n<<>>\nendobj\n")
		f := newTestFetcher(afs, src, FetcherConfig{})

		r, err := f.Fetch(context.Background(), model.ItemDescriptor{ID: "doc"}, 1)
		require.NoError(t, err)
		assert.Equal(t, ".pdf", r.Extension)
	})
}

func TestFetch_HookCalledOnSuccess(t *testing.T) {
	afs := afero.NewMemMapFs()
	src := newFakeSource(afs)
	var got []*model.ItemResult
	f := newTestFetcher(afs, src, FetcherConfig{}).ForJob("/job", Hooks{
		Fetched: func(r *model.ItemResult) { got = append(got, r) },
	}, nil)

	r, err := f.Fetch(context.Background(), model.ItemDescriptor{ID: "song"}, 1)
	require.NoError(t, err)
	assert.Equal(t, "/job", f.StagingDir())
	assert.Equal(t, "/job/item/song/song.mp3", r.Path)
	assert.Equal(t, []*model.ItemResult{r}, got)
}

func TestFetch_ContextCancelled(t *testing.T) {
	afs := afero.NewMemMapFs()
	src := newFakeSource(afs)
	src.alwaysFail["song"] = true
	f := newTestFetcher(afs, src, FetcherConfig{Policy: retry.Policy{BaseDelay: time.Hour, MaxAttempts: 5}})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := f.Fetch(ctx, model.ItemDescriptor{ID: "song"}, 0)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.NotErrorIs(t, err, ErrExhaustedRetries)
	assert.Less(t, time.Since(start), time.Minute)
	assert.Equal(t, 1, src.transferCount("song"))

	exists, _ := afero.DirExists(afs, "/stage/item/song")
	assert.False(t, exists)
}

func TestFetch_BacksOffLinearly(t *testing.T) {
	afs := afero.NewMemMapFs()
	src := newFakeSource(afs)
	src.failFirst["song"] = 2
	f := newTestFetcher(afs, src, FetcherConfig{Policy: retry.Policy{BaseDelay: 10 * time.Millisecond}})

	start := time.Now()
	_, err := f.Fetch(context.Background(), model.ItemDescriptor{ID: "song"}, 3)
	require.NoError(t, err)

	// 10ms after the first failure, 20ms after the second
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
}

func TestFetch_LogsEachFailedAttempt(t *testing.T) {
	afs := afero.NewMemMapFs()
	src := newFakeSource(afs)
	src.failFirst["song"] = 2
	log, hook := test.NewNullLogger()
	f := NewFetcher(afs, src, src, FetcherConfig{StagingDir: "/stage", Policy: retry.Policy{MaxAttempts: 3}}, log)

	_, err := f.Fetch(context.Background(), model.ItemDescriptor{ID: "song"}, 0)
	require.NoError(t, err)

	var warnings int
	for _, e := range hook.AllEntries() {
		if e.Level == logrus.WarnLevel && e.Message == "Fetch attempt failed" {
			warnings++
			assert.Equal(t, "song", e.Data["item"])
		}
	}
	assert.Equal(t, 2, warnings)
}

func TestStagingName(t *testing.T) {
	assert.Equal(t, "abc", stagingName(model.ItemDescriptor{ID: "abc"}))
	assert.Equal(t, "item-4", stagingName(model.ItemDescriptor{Position: 4}))
	assert.Equal(t, []string{"a", "b", "a-3"}, stagingNames([]model.ItemDescriptor{{ID: "a"}, {ID: "b"}, {ID: "a"}}))
	assert.Equal(t, []string{"x-3", "x", "x-4"}, stagingNames([]model.ItemDescriptor{{ID: "x-3"}, {ID: "x"}, {ID: "x"}}))
}
