package ingest

import (
	"io"
	"os"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"
)

const progressDescription = "reading files"

// ProgressConfig determines whether the builder draws a progress bar.
type ProgressConfig struct {
	Enabled bool
	Writer  io.Writer
	NoColor bool
}

// NewProgressConfig enables progress on stderr when requested and stderr is a terminal.
func NewProgressConfig(requested bool, noColor bool) ProgressConfig {
	return ProgressConfig{
		Enabled: requested && isatty.IsTerminal(os.Stderr.Fd()),
		Writer:  os.Stderr,
		NoColor: noColor,
	}
}

// newProgressBar returns nil when progress is disabled or there is nothing to read.
func newProgressBar(progressConfig ProgressConfig, total int) *progressbar.ProgressBar {
	if !progressConfig.Enabled || progressConfig.Writer == nil || total == 0 {
		return nil
	}
	return progressbar.NewOptions64(int64(total),
		progressbar.OptionSetDescription(progressDescription),
		progressbar.OptionSetWriter(progressConfig.Writer),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionEnableColorCodes(!progressConfig.NoColor),
		progressbar.OptionThrottle(65*time.Millisecond),
	)
}
