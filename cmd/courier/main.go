package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/handiism/bandcamp-courier/internal/bandcamp"
	"github.com/handiism/bandcamp-courier/internal/config"
	"github.com/handiism/bandcamp-courier/internal/download"
	bchttp "github.com/handiism/bandcamp-courier/internal/http"
	"github.com/handiism/bandcamp-courier/internal/logging"
	"github.com/handiism/bandcamp-courier/internal/metrics"
	"github.com/handiism/bandcamp-courier/internal/model"
)

func main() {
	var (
		urlsFlag        = flag.String("url", "", "Bandcamp URL(s) to download (comma-separated or newline-separated)")
		outputFlag      = flag.String("output", "", "Delivery directory (overrides config)")
		configFlag      = flag.String("config", "", "Path to config file")
		requesterFlag   = flag.String("requester", "cli", "Requester the jobs run as")
		formatFlag      = flag.String("format", "", "Deliverable format: zip or files (overrides config)")
		discographyFlag = flag.Bool("discography", false, "Download entire artist discography")
		playlistFlag    = flag.Bool("playlist", false, "Create playlist file")
		verboseFlag     = flag.Bool("verbose", false, "Show verbose output")
		dryRunFlag      = flag.Bool("dry-run", false, "Parse URLs without downloading")
	)

	flag.Parse()

	if *urlsFlag == "" && flag.NArg() == 0 {
		fmt.Println("Bandcamp Courier - Download and pack music from Bandcamp")
		fmt.Println()
		fmt.Println("Usage:")
		fmt.Println("  courier -url <URL> [options]")
		fmt.Println("  courier <URL> [options]")
		fmt.Println()
		fmt.Println("For interactive mode, use: courier-tui")
		fmt.Println()
		flag.PrintDefaults()
		os.Exit(1)
	}

	settings, err := config.Load(*configFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	if *outputFlag != "" {
		settings.DeliveryDir = *outputFlag
	}
	if *formatFlag != "" {
		settings.Format = strings.ToLower(*formatFlag)
	}
	if *playlistFlag {
		settings.CreatePlaylist = true
	}
	if err := settings.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid settings: %v\n", err)
		os.Exit(1)
	}

	if err := logging.Setup(settings.LogLevel, settings.LogJSON, settings.LogDir); err != nil {
		fmt.Fprintf(os.Stderr, "Error setting up logging: %v\n", err)
		os.Exit(1)
	}
	log := logrus.StandardLogger()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if settings.MetricsAddr != "" {
		go func() {
			if err := metrics.Serve(ctx, settings.MetricsAddr, log); err != nil {
				log.WithError(err).Error("Metrics listener stopped")
			}
		}()
	}

	src := bandcamp.NewSource(afero.NewOsFs(), bchttp.NewClient(), settings.Quality, log)

	urls := *urlsFlag
	if urls == "" {
		urls = strings.Join(flag.Args(), "\n")
	}

	fmt.Println("♪ Bandcamp Courier")
	fmt.Println(strings.Repeat("━", 40))
	fmt.Println()

	requests, err := expand(ctx, src, model.RequesterID(*requesterFlag), urls, *discographyFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading URLs: %v\n", err)
		os.Exit(1)
	}
	for _, req := range requests {
		fmt.Printf("› %s (%s)\n", req.Target(), req.Kind)
	}

	if *dryRunFlag {
		fmt.Println("\n[Dry run - not downloading]")
		return
	}

	manager := download.NewManager(settings, src, download.Options{
		Log: log,
		OnProgress: func(event download.ProgressEvent) {
			if event.Level == download.LevelVerbose && !*verboseFlag {
				return
			}
			fmt.Println(prefix(event.Level) + event.Message)
		},
	})

	fmt.Println("\nStarting downloads...")
	fmt.Println()

	var (
		delivered []*download.Delivery
		failed    int
	)
	for _, req := range requests {
		d, err := manager.Run(ctx, req)
		if ctx.Err() != nil {
			fmt.Println("\nDownload cancelled.")
			os.Exit(130)
		}
		if err != nil {
			failed++
			continue
		}
		delivered = append(delivered, d)
	}

	fetched, total, packed := manager.GetProgress()
	fmt.Println()
	fmt.Println(strings.Repeat("━", 40))
	fmt.Printf("Complete! Downloaded %d/%d tracks (%s)\n", fetched, total, humanize.IBytes(uint64(packed)))
	for _, d := range delivered {
		for _, f := range d.Files {
			fmt.Printf("  %s\n", f)
		}
	}

	if failed > 0 {
		fmt.Fprintf(os.Stderr, "%d of %d downloads failed\n", failed, len(requests))
		os.Exit(1)
	}
}

// expand turns the given links into requests, one per release.
func expand(ctx context.Context, src *bandcamp.Source, requester model.RequesterID, input string, discography bool) ([]model.DownloadRequest, error) {
	var (
		requests []model.DownloadRequest
		errs     []error
	)
	seen := make(map[string]struct{})

	for _, link := range splitURLs(input) {
		releases := []string{link}
		if discography {
			urls, err := src.AlbumURLs(ctx, link)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			releases = urls
		}

		for _, release := range releases {
			if _, dup := seen[release]; dup {
				continue
			}
			seen[release] = struct{}{}

			req, err := src.RequestFor(requester, release)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			requests = append(requests, req)
		}
	}

	if len(requests) == 0 {
		if len(errs) == 0 {
			return nil, errors.New("no URL given")
		}
		return nil, errors.Join(errs...)
	}
	for _, err := range errs {
		logrus.WithError(err).Warn("Ignoring URL")
	}
	return requests, nil
}

func splitURLs(input string) []string {
	fields := strings.FieldsFunc(input, func(r rune) bool {
		return r == ',' || r == '\n' || r == '\r' || r == ' ' || r == '\t'
	})
	urls := fields[:0]
	for _, f := range fields {
		if f = strings.TrimSpace(f); f != "" {
			urls = append(urls, f)
		}
	}
	return urls
}

func prefix(level download.ProgressLevel) string {
	switch level {
	case download.LevelError:
		return "✗ "
	case download.LevelWarning:
		return "! "
	case download.LevelSuccess:
		return "✓ "
	case download.LevelInfo:
		return "› "
	default:
		return "  "
	}
}
