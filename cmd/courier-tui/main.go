package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/handiism/bandcamp-courier/internal/bandcamp"
	"github.com/handiism/bandcamp-courier/internal/config"
	bchttp "github.com/handiism/bandcamp-courier/internal/http"
	"github.com/handiism/bandcamp-courier/internal/logging"
	"github.com/handiism/bandcamp-courier/internal/tui"
)

func main() {
	configFlag := flag.String("config", "", "Path to config file")
	flag.Parse()

	settings, err := config.Load(*configFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	// The terminal belongs to the UI; logs only go to files, if anywhere.
	if err := logging.Setup(settings.LogLevel, settings.LogJSON, settings.LogDir); err != nil {
		fmt.Fprintf(os.Stderr, "Error setting up logging: %v\n", err)
		os.Exit(1)
	}
	logrus.SetOutput(io.Discard)

	src := bandcamp.NewSource(afero.NewOsFs(), bchttp.NewClient(), settings.Quality, logrus.StandardLogger())
	if err := tui.Run(settings, src, logrus.StandardLogger()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
