package bandcamp

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	bchttp "github.com/handiism/bandcamp-courier/internal/http"
	"github.com/handiism/bandcamp-courier/internal/model"
)

const albumPage = `<html>
<script data-tralbum="{
	&quot;id&quot;:42,
	&quot;url&quot;:&quot;https://artist.bandcamp.com/album/test-album&quot;,
	&quot;current&quot;:{&quot;title&quot;:&quot;Test Album&quot;,&quot;release_date&quot;:&quot;01 Jan 2023 00:00:00 GMT&quot;},
	&quot;artist&quot;:&quot;Test Artist&quot;,
	&quot;art_id&quot;:1234567890,
	&quot;trackinfo&quot;:[
		{&quot;id&quot;:101,&quot;track_num&quot;:1,&quot;title&quot;:&quot;First Track&quot;,&quot;duration&quot;:180.5,&quot;title_link&quot;:&quot;/track/first&quot;,&quot;file&quot;:{&quot;mp3-128&quot;:&quot;//cdn.example.com/1.mp3&quot;}},
		{&quot;id&quot;:102,&quot;track_num&quot;:2,&quot;title&quot;:&quot;Second Track&quot;,&quot;duration&quot;:200.0,&quot;file&quot;:{&quot;mp3-128&quot;:&quot;https://cdn.example.com/2.mp3&quot;}},
		{&quot;id&quot;:103,&quot;track_num&quot;:3,&quot;title&quot;:&quot;Locked Track&quot;,&quot;file&quot;:null}
	]
}"></script>
<div id="lyrics_row_2"><div>la la la</div></div>
</html>`

func TestParser_Parse(t *testing.T) {
	c, err := NewParser("").Parse("https://artist.bandcamp.com/album/test-album", albumPage)
	require.NoError(t, err)

	assert.Equal(t, "42", c.ID)
	assert.Equal(t, "Test Artist", c.Artist)
	assert.Equal(t, "Test Album", c.Title)
	assert.Equal(t, "2023", c.Year())
	assert.Equal(t, "https://f4.bcbits.com/img/a1234567890_0.jpg", c.ArtworkURL)

	require.Len(t, c.Items, 2)
	assert.Equal(t, []string{"Locked Track"}, c.Unavailable)

	first := c.Items[0]
	assert.Equal(t, "101", first.ID)
	assert.Equal(t, "https://cdn.example.com/1.mp3", first.MediaURL)
	assert.Equal(t, "https://artist.bandcamp.com/track/first", first.URL)
	assert.Equal(t, "1", first.TrackNumber)
	assert.Equal(t, 1, first.Position)

	assert.Equal(t, "la la la", c.Items[1].Lyrics)
	assert.Empty(t, first.Lyrics)
}

func TestParser_Parse_NoData(t *testing.T) {
	_, err := NewParser("").Parse("https://x", `<html><body>No album data</body></html>`)
	assert.ErrorIs(t, err, ErrNoPageData)
}

func TestParser_Parse_BadJSON(t *testing.T) {
	_, err := NewParser("").Parse("https://x", `<html><script data-tralbum="{not json"></script></html>`)
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrNoPageData)
}

func TestParser_TrackPageLyrics(t *testing.T) {
	page := `<html><script data-tralbum="{&quot;id&quot;:7,&quot;trackinfo&quot;:[{&quot;id&quot;:7,&quot;title&quot;:&quot;Solo&quot;,&quot;file&quot;:{&quot;mp3-128&quot;:&quot;https://cdn/7.mp3&quot;}}]}"></script>
<div class="lyricsText">words here</div></html>`

	c, err := NewParser("").Parse("https://artist.bandcamp.com/track/solo", page)
	require.NoError(t, err)
	require.Len(t, c.Items, 1)
	assert.Equal(t, "words here", c.Items[0].Lyrics)
	assert.Empty(t, c.Items[0].TrackNumber)
}

func TestFixJSON(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "fix URL concatenation",
			input: `url: "http://example.bandcamp.com" + "/album/test",`,
			want:  `url: "http://example.bandcamp.com/album/test",`,
		},
		{
			name:  "no change needed",
			input: `url: "http://example.bandcamp.com/album/test",`,
			want:  `url: "http://example.bandcamp.com/album/test",`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, fixJSON(tt.input))
		})
	}
}

func TestDiscography_ReleasePaths(t *testing.T) {
	tests := []struct {
		name    string
		html    string
		want    []string
		wantErr bool
	}{
		{
			name: "single album link",
			html: `<html><body><a href="/album/test-album">Album</a></body></html>`,
			want: []string{"/album/test-album"},
		},
		{
			name: "multiple releases sorted",
			html: `<html><body>
				<a href="/track/single-track">x</a>
				<a href="/album/second-album">x</a>
				<a href="/album/first-album">x</a>
			</body></html>`,
			want: []string{"/album/first-album", "/album/second-album", "/track/single-track"},
		},
		{
			name: "duplicates filtered",
			html: `<html><body>
				<a href="/album/same-album">x</a>
				<li data-item="{&quot;page_url&quot;:&quot;/album/same-album&quot;}"></li>
			</body></html>`,
			want: []string{"/album/same-album"},
		},
		{
			name:    "no albums found",
			html:    `<html><body>No music here</body></html>`,
			wantErr: true,
		},
		{
			name: "single album artist page",
			html: `<html><body>
				<div id="discography"></div>
				<a href="/album/only-album">Only Album</a>
			</body></html>`,
			want: []string{"/album/only-album"},
		},
	}

	d := NewDiscography()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			paths, err := d.ReleasePaths(tt.html)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrNoAlbumFound)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, paths)
		})
	}
}

func newTestSource(t *testing.T, afs afero.Fs) *Source {
	t.Helper()
	log, _ := test.NewNullLogger()
	return NewSource(afs, bchttp.NewClient(), "mp3-128", log)
}

func TestSource_ResolveCollection_CachesPages(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte(albumPage))
	}))
	defer srv.Close()

	src := newTestSource(t, afero.NewMemMapFs())
	ctx := context.Background()

	c, err := src.ResolveCollection(ctx, srv.URL+"/album/test-album")
	require.NoError(t, err)
	assert.Len(t, c.Items, 2)

	_, err = src.ResolveCollection(ctx, srv.URL+"/album/test-album")
	require.NoError(t, err)
	assert.Equal(t, int32(1), hits.Load())
}

func TestSource_ResolveItem(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(albumPage))
	}))
	defer srv.Close()

	src := newTestSource(t, afero.NewMemMapFs())
	ctx := context.Background()

	t.Run("media url known", func(t *testing.T) {
		infos, err := src.ResolveItem(ctx, model.ItemDescriptor{ID: "9", MediaURL: "https://cdn/9.mp3", Title: "Nine"})
		require.NoError(t, err)
		require.Len(t, infos, 1)
		assert.Equal(t, "https://cdn/9.mp3", infos[0].MediaURL)
		assert.Equal(t, "Nine", infos[0].Title)
	})

	t.Run("album page is ambiguous", func(t *testing.T) {
		infos, err := src.ResolveItem(ctx, model.ItemDescriptor{ID: "x", URL: srv.URL + "/album/test-album"})
		require.NoError(t, err)
		require.Len(t, infos, 2)
		assert.Equal(t, "101", infos[0].ItemID)
		assert.Equal(t, "Test Artist", infos[0].Artist)
	})

	t.Run("nothing to resolve", func(t *testing.T) {
		infos, err := src.ResolveItem(ctx, model.ItemDescriptor{ID: "x"})
		require.NoError(t, err)
		assert.Empty(t, infos)
	})
}

func TestSource_Download(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("audio bytes"))
	}))
	defer srv.Close()

	afs := afero.NewMemMapFs()
	src := newTestSource(t, afs)

	path, err := src.Download(context.Background(), model.TransferInfo{ItemID: "a/b", MediaURL: srv.URL}, "/stage", "mp3-128")
	require.NoError(t, err)
	assert.Equal(t, "/stage/a_b.mp3", path)

	got, err := afero.ReadFile(afs, path)
	require.NoError(t, err)
	assert.Equal(t, "audio bytes", string(got))
}

func TestSource_RequestFor(t *testing.T) {
	src := newTestSource(t, afero.NewMemMapFs())

	req, err := src.RequestFor("alice", "https://artist.bandcamp.com/track/song")
	require.NoError(t, err)
	assert.Equal(t, model.TargetItem, req.Kind)
	assert.Equal(t, "song", req.Item.ID)
	assert.Equal(t, model.RequesterID("alice"), req.Requester)

	req, err = src.RequestFor("alice", " https://artist.bandcamp.com/album/record ")
	require.NoError(t, err)
	assert.Equal(t, model.TargetCollection, req.Kind)
	assert.Equal(t, "https://artist.bandcamp.com/album/record", req.CollectionID)

	_, err = src.RequestFor("alice", "https://artist.bandcamp.com/merch")
	assert.ErrorIs(t, err, ErrUnsupportedURL)

	_, err = src.RequestFor("alice", "not a url")
	assert.ErrorIs(t, err, ErrUnsupportedURL)
}

func TestSource_AlbumURLs(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/music" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(`<a href="/album/b">b</a><a href="/album/a">a</a>`))
	}))
	defer srv.Close()

	src := newTestSource(t, afero.NewMemMapFs())
	ctx := context.Background()

	urls, err := src.AlbumURLs(ctx, srv.URL)
	require.NoError(t, err)
	assert.Equal(t, []string{srv.URL + "/album/a", srv.URL + "/album/b"}, urls)

	urls, err = src.AlbumURLs(ctx, srv.URL+"/album/direct")
	require.NoError(t, err)
	assert.Equal(t, []string{srv.URL + "/album/direct"}, urls)
	assert.False(t, strings.HasSuffix(urls[0], "/music"))
}
