package ui

import (
	"io"
	"os"
	"time"

	"github.com/briandowns/spinner"
	"github.com/schollz/progressbar/v3"
)

// progressOut is where bars and spinners draw; they never touch stdout so
// tables can be piped.
var progressOut io.Writer = os.Stderr

// DocumentProgress tracks a batch of documents going through the pipeline.
// It draws nothing when stderr is not a terminal or --no-color is set.
type DocumentProgress struct {
	bar *progressbar.ProgressBar
}

// NewDocumentProgress starts a bar for total documents.
func NewDocumentProgress(total int, title string) *DocumentProgress {
	opts := []progressbar.Option{
		progressbar.OptionSetWriter(progressOut),
		progressbar.OptionSetDescription(title),
		progressbar.OptionSetVisibility(progressFlag),
		progressbar.OptionShowCount(),
		progressbar.OptionSetItsString("docs"),
		progressbar.OptionShowIts(),
		progressbar.OptionSetWidth(30),
		progressbar.OptionThrottle(100 * time.Millisecond),
		progressbar.OptionClearOnFinish(),
	}
	if progressFlag && !noColorFlag {
		opts = append(opts,
			progressbar.OptionEnableColorCodes(true),
			progressbar.OptionSetTheme(progressbar.Theme{
				Saucer:        "[green]=[reset]",
				SaucerHead:    "[green]>[reset]",
				SaucerPadding: " ",
				BarStart:      "[",
				BarEnd:        "]",
			}),
		)
	}
	return &DocumentProgress{bar: progressbar.NewOptions(total, opts...)}
}

// Next shows label as the document now being processed.
func (p *DocumentProgress) Next(label string) {
	p.bar.Describe(label)
}

// Done counts one finished document.
func (p *DocumentProgress) Done() {
	_ = p.bar.Add(1)
}

// Close clears the bar.
func (p *DocumentProgress) Close() {
	_ = p.bar.Finish()
}

// Spin shows message with a spinner while fn runs and returns fn's error.
func Spin(message string, fn func() error) error {
	if !progressFlag {
		return fn()
	}
	s := spinner.New(spinner.CharSets[11], 120*time.Millisecond,
		spinner.WithWriter(progressOut),
		spinner.WithSuffix(" "+message),
		spinner.WithHiddenCursor(true),
	)
	s.Start()
	defer s.Stop()
	return fn()
}
