package download

import (
	"context"
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/handiism/bandcamp-courier/internal/admission"
	"github.com/handiism/bandcamp-courier/internal/archive"
	"github.com/handiism/bandcamp-courier/internal/audio"
	"github.com/handiism/bandcamp-courier/internal/config"
	ioutils "github.com/handiism/bandcamp-courier/internal/io"
	"github.com/handiism/bandcamp-courier/internal/metrics"
	"github.com/handiism/bandcamp-courier/internal/model"
)

const coverFileName = "cover.jpg"

// ProgressLevel indicates the severity/type of a progress message.
type ProgressLevel int

const (
	LevelInfo ProgressLevel = iota
	LevelVerbose
	LevelWarning
	LevelError
	LevelSuccess
)

// ProgressEvent represents a download progress update.
type ProgressEvent struct {
	Message string
	Level   ProgressLevel
}

// Delivery describes the outcome of a finished job.
type Delivery struct {
	JobID     string
	Requester model.RequesterID

	// Collection is nil for single item jobs.
	Collection *model.Collection

	// Files are the delivered files: archive parts, or individual items.
	Files []string

	// Items is the number of items delivered.
	Items int

	// Partial is true when some items of the collection could not be fetched.
	Partial bool

	// Skipped lists the entries the packer had to leave out.
	Skipped []archive.SkippedEntry

	// Bytes is the total size of the delivered content.
	Bytes int64
}

// Options carries the optional collaborators of a Manager.
type Options struct {
	// Fs holds staging and output. Defaults to the OS filesystem.
	Fs afero.Fs

	// Gate is the admission gate. Managers sharing a gate share admission.
	Gate *admission.Gate

	// Deliverer defaults to a CopyDeliverer when delivery_dir is set and
	// to a NopDeliverer otherwise.
	Deliverer Deliverer

	Log        logrus.FieldLogger
	OnProgress func(ProgressEvent)
}

// Manager runs download jobs end to end.
//
// A job is admitted per requester, fetches its item or collection, adds
// cover art, tags and a playlist, then packs and delivers the result.
// Staged files are removed and the requester released on every exit path.
type Manager struct {
	settings     *config.Settings
	fs           afero.Fs
	gate         *admission.Gate
	source       Source
	fetcher      *Fetcher
	packer       *archive.Packer
	deliverer    Deliverer
	tagger       *audio.Tagger
	playlist     *audio.PlaylistCreator
	imageService *ioutils.ImageService
	naming       model.NamingConfig
	log          logrus.FieldLogger
	onProgress   func(ProgressEvent)

	totalFiles   atomic.Int32
	fetchedFiles atomic.Int32
	packedBytes  atomic.Int64
}

// NewManager creates a new download Manager.
func NewManager(settings *config.Settings, src Source, opts Options) *Manager {
	afs := opts.Fs
	if afs == nil {
		afs = afero.NewOsFs()
	}
	log := opts.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	gate := opts.Gate
	if gate == nil {
		gate = admission.NewGate()
	}
	deliverer := opts.Deliverer
	if deliverer == nil {
		if settings.DeliveryDir != "" {
			deliverer = NewCopyDeliverer(afs, settings.DeliveryDir, log)
		} else {
			deliverer = NopDeliverer{}
		}
	}

	tagCfg := audio.DefaultTagConfig()
	tagCfg.ModifyTags = settings.ModifyTags

	return &Manager{
		settings: settings,
		fs:       afs,
		gate:     gate,
		source:   src,
		fetcher: NewFetcher(afs, src, src, FetcherConfig{
			Policy:         settings.RetryPolicy(),
			Quality:        settings.Quality,
			StagingDir:     settings.StagingDir,
			MaxConcurrency: settings.MaxConcurrentItems,
		}, log),
		packer:       archive.NewPacker(afs, settings.ArchivePartCapacityBytes, log),
		deliverer:    deliverer,
		tagger:       audio.NewTagger(tagCfg),
		playlist:     audio.NewPlaylistCreator(audio.ParsePlaylistFormat(settings.PlaylistFormat), settings.M3UExtended),
		imageService: ioutils.NewImageService(),
		naming:       settings.NamingConfig(),
		log:          log,
		onProgress:   opts.OnProgress,
	}
}

// Gate returns the admission gate of the manager.
func (m *Manager) Gate() *admission.Gate {
	return m.gate
}

// GetProgress returns the files fetched and announced, and the bytes
// packed, across all jobs run by the manager.
func (m *Manager) GetProgress() (filesFetched, filesTotal int32, bytesPacked int64) {
	return m.fetchedFiles.Load(), m.totalFiles.Load(), m.packedBytes.Load()
}

// job is the fetched content of one request.
type job struct {
	id         string
	requester  model.RequesterID
	collection *model.Collection
	results    []*model.ItemResult
	anyFailed  bool
	stagingDir string
	outputDir  string
	log        logrus.FieldLogger
}

// Run executes one request.
//
// admission.ErrAlreadyInProgress is returned at once if the requester has
// a job running. Otherwise the requester is held until Run returns, on
// every path, including a panic inside the job, which is converted to an
// error. Job staging is always removed; the output of a failed job is too.
func (m *Manager) Run(ctx context.Context, req model.DownloadRequest) (delivery *Delivery, err error) {
	release, err := m.gate.Acquire(req.Requester)
	if err != nil {
		metrics.AdmissionRejections.Inc()
		metrics.Jobs.WithLabelValues(req.Kind.String(), metrics.ResultRejected).Inc()
		m.progress(LevelWarning, "A download is already running for %s", req.Requester)
		return nil, err
	}

	id := uuid.NewString()
	j := &job{
		id:         id,
		requester:  req.Requester,
		stagingDir: filepath.Join(m.settings.StagingDir, id),
		outputDir:  filepath.Join(m.settings.OutputDir, id),
		log: m.log.WithFields(logrus.Fields{
			"requester": req.Requester,
			"job":       id,
		}),
	}
	metrics.ActiveJobs.Inc()

	defer func() {
		if r := recover(); r != nil {
			j.log.WithField("panic", r).Error("Job panicked")
			delivery, err = nil, fmt.Errorf("job %s panicked: %v", id, r)
		}
		if err != nil {
			m.discard(j.outputDir, j.log)
		}
		m.discard(j.stagingDir, j.log)
		metrics.ActiveJobs.Dec()
		metrics.Jobs.WithLabelValues(req.Kind.String(), jobResult(delivery, err)).Inc()
		release()
	}()

	j.log.WithField("target", req.Target()).Info("Job started")

	if err := m.fetch(ctx, req, j); err != nil {
		m.progress(LevelError, "Download of %s failed: %v", req.Target(), err)
		return nil, err
	}

	delivery, err = m.finish(ctx, j)
	if err != nil {
		m.progress(LevelError, "Delivery of %s failed: %v", req.Target(), err)
		return nil, err
	}

	j.log.WithFields(logrus.Fields{
		"files": len(delivery.Files),
		"bytes": delivery.Bytes,
	}).Info("Job finished")
	return delivery, nil
}

func jobResult(d *Delivery, err error) string {
	switch {
	case err != nil:
		return metrics.ResultFailed
	case d != nil && (d.Partial || len(d.Skipped) > 0):
		return metrics.ResultPartial
	default:
		return metrics.ResultSucceeded
	}
}

func (m *Manager) fetch(ctx context.Context, req model.DownloadRequest, j *job) error {
	fetcher := m.fetcher.ForJob(j.stagingDir, Hooks{
		Resolved: func(c *model.Collection) {
			m.totalFiles.Add(int32(len(c.Items)))
			m.progress(LevelInfo, "Found album: %s - %s (%d tracks)", c.Artist, c.Title, len(c.Items))
			if n := len(c.Unavailable); n > 0 {
				m.progress(LevelWarning, "%d tracks of %s cannot be downloaded", n, c.Title)
			}
		},
		Fetched: func(r *model.ItemResult) {
			m.fetchedFiles.Add(1)
			m.progress(LevelVerbose, "Downloaded: %s - %s", r.Artist, r.Title)
		},
	}, j.log)

	switch req.Kind {
	case model.TargetItem:
		m.totalFiles.Add(1)
		r, err := fetcher.Fetch(ctx, req.Item, m.settings.MaxAttempts)
		if err != nil {
			return err
		}
		j.results = []*model.ItemResult{r}

	case model.TargetCollection:
		batch, err := fetcher.FetchCollection(ctx, req.CollectionID, m.settings.MaxAttempts)
		if err != nil {
			return err
		}
		j.collection = batch.Collection
		j.results = batch.Results
		j.anyFailed = batch.AnyFailed
		if batch.AnyFailed {
			m.progress(LevelWarning, "%d of %d tracks of %s failed and were left out",
				len(batch.Collection.Items)-len(batch.Results), len(batch.Collection.Items), batch.Collection.Title)
		}

	default:
		return fmt.Errorf("unknown request kind %v", req.Kind)
	}
	return nil
}

// finish turns the fetched results into delivered files.
func (m *Manager) finish(ctx context.Context, j *job) (*Delivery, error) {
	model.SortResults(j.results)

	var cover []byte
	if j.collection.HasArtwork() && (m.settings.SendCover || m.settings.EmbedCoverInTags) {
		cover = m.fetchCover(ctx, j)
	}
	m.tag(j, cover)

	folder := m.naming.FolderName(j.collection)
	entries := make([]archive.Entry, 0, len(j.results)+2)

	if cover != nil && m.settings.SendCover {
		coverPath := filepath.Join(j.stagingDir, coverFileName)
		if err := ioutils.WriteFile(ctx, m.fs, coverPath, cover); err != nil {
			j.log.WithError(err).Warn("Could not stage cover art")
		} else {
			entries = append(entries, archive.Entry{Path: coverPath, Name: path.Join(folder, coverFileName), Priority: true})
		}
	}

	for _, r := range j.results {
		entries = append(entries, archive.Entry{Path: r.Path, Name: path.Join(folder, m.entryName(j.collection, r))})
	}

	if m.settings.CreatePlaylist && j.collection != nil {
		if entry, err := m.writePlaylist(ctx, j, folder); err != nil {
			j.log.WithError(err).Warn("Could not create playlist")
		} else {
			entries = append(entries, entry)
		}
	}

	d := &Delivery{
		JobID:      j.id,
		Requester:  j.requester,
		Collection: j.collection,
		Items:      len(j.results),
		Partial:    j.anyFailed,
	}

	var files []string
	if j.collection == nil || m.settings.Format == config.FormatFiles {
		var err error
		files, d.Bytes, err = m.copyOut(ctx, entries, j.outputDir)
		if err != nil {
			return nil, err
		}
	} else {
		base := m.naming.BaseName(j.collection, j.results[0])
		plan, parts, err := m.packer.Pack(ctx, entries, j.outputDir, base)
		if err != nil {
			return nil, err
		}
		for _, s := range plan.Skipped {
			m.progress(LevelWarning, "Left out of the archive: %v", s)
		}
		files, d.Bytes, d.Skipped = parts, plan.Size(), plan.Skipped
		m.progress(LevelVerbose, "Packed %s into %d part(s)", humanize.IBytes(uint64(d.Bytes)), len(parts))
	}
	m.packedBytes.Add(d.Bytes)

	delivered, err := m.deliverer.Deliver(ctx, j.outputDir, files)
	if err != nil {
		return nil, err
	}
	d.Files = delivered

	if d.Partial {
		m.progress(LevelWarning, "Finished %s, some tracks failed", describe(j))
	} else {
		m.progress(LevelSuccess, "Successfully downloaded %s", describe(j))
	}
	return d, nil
}

// entryName names a result inside its delivery. A standalone item has no
// track number worth showing and is named "{artist} - {title}".
func (m *Manager) entryName(c *model.Collection, r *model.ItemResult) string {
	if c == nil {
		return m.naming.BaseName(nil, r) + r.Extension
	}
	return m.naming.EntryName(c, r)
}

func describe(j *job) string {
	if j.collection != nil {
		return j.collection.Title
	}
	return j.results[0].Title
}

// fetchCover downloads the cover art with the retry policy and prepares
// it as a JPEG. A failure only costs the cover.
func (m *Manager) fetchCover(ctx context.Context, j *job) []byte {
	var data []byte
	err := m.settings.RetryPolicy().Do(ctx, func(ctx context.Context, _ int) error {
		b, err := m.source.Artwork(ctx, j.collection.ArtworkURL)
		if err != nil {
			return err
		}
		data = b
		return nil
	}, nil)
	if err != nil {
		j.log.WithError(err).Warn("Could not download cover art")
		m.progress(LevelWarning, "Error downloading artwork for %s: %v", j.collection.Title, err)
		return nil
	}

	cover, err := m.imageService.PrepareCover(ctx, data, m.settings.CoverMaxSize)
	if err != nil {
		j.log.WithError(err).Warn("Could not convert cover art")
		return nil
	}
	m.progress(LevelVerbose, "Downloaded artwork for %s", j.collection.Title)
	return cover
}

// tag writes ID3 tags into MP3 results. Tagging rewrites files in place,
// so it only happens when staging is on disk.
func (m *Manager) tag(j *job, cover []byte) {
	embed := cover != nil && m.settings.EmbedCoverInTags
	if !m.settings.ModifyTags && !embed {
		return
	}
	if _, onDisk := m.fs.(*afero.OsFs); !onDisk {
		j.log.Debug("Staging is not on disk, tags left untouched")
		return
	}
	if !embed {
		cover = nil
	}

	for _, r := range j.results {
		if !strings.EqualFold(r.Extension, ".mp3") {
			continue
		}
		if err := m.tagger.SaveTags(r, j.collection, cover); err != nil {
			j.log.WithError(err).WithField("item", r.ItemID).Warn("Error tagging item")
			continue
		}
		if stat, err := m.fs.Stat(r.Path); err == nil {
			r.Size = stat.Size()
		}
	}
}

func (m *Manager) writePlaylist(ctx context.Context, j *job, folder string) (archive.Entry, error) {
	pl := audio.Playlist{Title: j.collection.Title, Artist: j.collection.Artist}
	for _, r := range j.results {
		pl.Items = append(pl.Items, audio.PlaylistItem{
			Path:     m.entryName(j.collection, r),
			Title:    r.Title,
			Artist:   r.Artist,
			Duration: r.Duration,
		})
	}

	name := m.naming.BaseName(j.collection, nil) + m.playlist.Format().Extension()
	p := filepath.Join(j.stagingDir, name)
	if err := ioutils.WriteFile(ctx, m.fs, p, []byte(m.playlist.CreatePlaylist(pl))); err != nil {
		return archive.Entry{}, err
	}
	return archive.Entry{Path: p, Name: path.Join(folder, name)}, nil
}

// copyOut copies entries below dir under their destination names, for
// delivery without an archive.
func (m *Manager) copyOut(ctx context.Context, entries []archive.Entry, dir string) ([]string, int64, error) {
	names := archive.NewNameSet()
	files := make([]string, 0, len(entries))
	var total int64

	for _, e := range entries {
		dst := filepath.Join(dir, filepath.FromSlash(names.Unique(e.Name)))
		if err := ioutils.CopyFile(ctx, m.fs, e.Path, dst); err != nil {
			return nil, 0, fmt.Errorf("copying %s: %w", e.Name, err)
		}
		if stat, err := m.fs.Stat(dst); err == nil {
			total += stat.Size()
		}
		files = append(files, dst)
	}
	if len(files) == 0 {
		return nil, 0, archive.ErrNothingToPack
	}
	return files, total, nil
}

func (m *Manager) discard(dir string, log logrus.FieldLogger) {
	if err := m.fs.RemoveAll(dir); err != nil && !errors.Is(err, afero.ErrFileNotFound) {
		log.WithError(err).Warn("Could not remove job files")
	}
}

func (m *Manager) progress(level ProgressLevel, format string, args ...any) {
	if m.onProgress != nil {
		m.onProgress(ProgressEvent{Message: fmt.Sprintf(format, args...), Level: level})
	}
}
