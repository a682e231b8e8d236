package download

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/spf13/afero"

	"github.com/handiism/bandcamp-courier/internal/model"
)

var errTransient = errors.New("connection reset")

// fakeSource is an in-memory catalog that counts calls and fails on demand.
type fakeSource struct {
	fs afero.Fs

	mu              sync.Mutex
	collection      *model.Collection
	collectionFails int
	collectionCalls int
	panicOnResolve  bool

	// per item ID
	failFirst  map[string]int
	emptyFirst map[string]int
	alwaysFail map[string]bool
	panicOn    map[string]bool
	content    map[string][]byte
	records    map[string][]model.TransferInfo
	transfers  map[string]int

	artwork []byte

	delay    time.Duration
	inFlight atomic.Int32
	maxSeen  atomic.Int32
}

func newFakeSource(afs afero.Fs) *fakeSource {
	return &fakeSource{
		fs:         afs,
		failFirst:  map[string]int{},
		emptyFirst: map[string]int{},
		alwaysFail: map[string]bool{},
		panicOn:    map[string]bool{},
		content:    map[string][]byte{},
		records:    map[string][]model.TransferInfo{},
		transfers:  map[string]int{},
	}
}

func (s *fakeSource) ResolveItem(_ context.Context, item model.ItemDescriptor) ([]model.TransferInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if recs, ok := s.records[item.ID]; ok {
		return recs, nil
	}
	return []model.TransferInfo{{
		ItemID:    item.ID,
		MediaURL:  "https://cdn.example.com/" + item.ID + ".mp3",
		Extension: ".mp3",
	}}, nil
}

func (s *fakeSource) ResolveCollection(_ context.Context, _ string) (*model.Collection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.panicOnResolve {
		panic("catalog exploded")
	}
	s.collectionCalls++
	if s.collectionCalls <= s.collectionFails {
		return nil, errTransient
	}
	return s.collection, nil
}

func (s *fakeSource) Download(_ context.Context, info model.TransferInfo, destDir, _ string) (string, error) {
	n := s.inFlight.Add(1)
	defer s.inFlight.Add(-1)
	for {
		seen := s.maxSeen.Load()
		if n <= seen || s.maxSeen.CompareAndSwap(seen, n) {
			break
		}
	}
	if s.delay > 0 {
		time.Sleep(s.delay)
	}

	s.mu.Lock()
	s.transfers[info.ItemID]++
	call := s.transfers[info.ItemID]
	fail := s.alwaysFail[info.ItemID] || call <= s.failFirst[info.ItemID]
	empty := call <= s.emptyFirst[info.ItemID]
	data, ok := s.content[info.ItemID]
	explode := s.panicOn[info.ItemID]
	s.mu.Unlock()

	if explode {
		panic("transfer of " + info.ItemID + " exploded")
	}

	path := filepath.Join(destDir, info.ItemID+info.Extension)
	if fail {
		// leave a partial file behind, as an interrupted transfer would
		_ = afero.WriteFile(s.fs, path, []byte("partial"), 0o644)
		return "", errTransient
	}
	if empty {
		return path, afero.WriteFile(s.fs, path, nil, 0o644)
	}
	if !ok {
		data = []byte("audio bytes of " + info.ItemID)
	}
	return path, afero.WriteFile(s.fs, path, data, 0o644)
}

func (s *fakeSource) Artwork(_ context.Context, _ string) ([]byte, error) {
	if s.artwork == nil {
		return nil, errTransient
	}
	return s.artwork, nil
}

func (s *fakeSource) transferCount(id string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transfers[id]
}

func testCollection(n int) *model.Collection {
	c := &model.Collection{
		ID:          "album-1",
		Title:       "Album",
		Artist:      "Artist",
		ReleaseDate: time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC),
		ArtworkURL:  "https://img.example.com/a.jpg",
	}
	titles := []string{"One", "Two", "Three", "Four", "Five", "Six"}
	for i := 0; i < n; i++ {
		c.Items = append(c.Items, model.ItemDescriptor{
			ID:          titles[i],
			Title:       titles[i],
			TrackNumber: itoa(i + 1),
		})
	}
	return c
}

func itoa(n int) string {
	return string(rune('0' + n))
}

func testPNG() []byte {
	img := image.NewRGBA(image.Rect(0, 0, 64, 48))
	for x := 0; x < 64; x++ {
		for y := 0; y < 48; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 4), G: uint8(y * 5), B: 90, A: 255})
		}
	}
	var buf bytes.Buffer
	_ = png.Encode(&buf, img)
	return buf.Bytes()
}
