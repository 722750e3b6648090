package report

import (
	"io"
	"sync"
	"time"

	"github.com/cheggaaa/pb/v3"
	"github.com/fatih/color"
	"github.com/minio/pkg/console"
)

// ProgressBar counts the calls of the store and load phases on one rank.
type ProgressBar struct {
	mu  sync.Mutex
	bar *pb.ProgressBar
}

// NewProgressBar creates a bar for total calls and starts it on w.
func NewProgressBar(total int64, w io.Writer) *ProgressBar {
	// Progress bar specific theme customization.
	console.SetColor("Bar", color.New(color.FgGreen, color.Bold))

	bar := pb.New64(total)
	bar.SetWriter(w)
	bar.SetRefreshRate(time.Millisecond * 125)
	bar.SetTemplateString(`{{string . "prefix"}} {{counters . }} {{bar . }} {{percent . }} {{speed . }}`)
	bar.Start()

	return &ProgressBar{bar: bar}
}

// SetCaption sets the caption shown before the counters.
func (p *ProgressBar) SetCaption(caption string) {
	if p == nil {
		return
	}
	p.mu.Lock()
	p.bar.Set("prefix", console.Colorize("Bar", caption))
	p.mu.Unlock()
}

func (p *ProgressBar) increment() {
	if p == nil {
		return
	}
	p.mu.Lock()
	p.bar.Increment()
	p.mu.Unlock()
}

// Finish stops the bar.
func (p *ProgressBar) Finish() {
	if p == nil {
		return
	}
	p.mu.Lock()
	p.bar.Finish()
	p.mu.Unlock()
}
