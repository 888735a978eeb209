package main

import (
	"context"
	"io"

	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
)

// itemProgress draws a bar for split writes. A nil *itemProgress is a no-op
// so non-interactive runs skip the bookkeeping.
type itemProgress struct {
	container *mpb.Progress
	bar       *mpb.Bar
}

func newItemProgress(ctx context.Context, w io.Writer, label string, total int) *itemProgress {
	p := mpb.NewWithContext(ctx, mpb.WithOutput(w), mpb.WithWidth(48))
	bar := p.AddBar(int64(total),
		mpb.PrependDecorators(
			decor.Name(label+" ", decor.WCSyncSpaceR),
			decor.CountersNoUnit("%d / %d"),
		),
		mpb.AppendDecorators(
			decor.AverageETA(decor.ET_STYLE_GO),
			decor.Name(" "),
			decor.Percentage(),
		),
	)
	return &itemProgress{container: p, bar: bar}
}

func (p *itemProgress) set(done int) {
	if p == nil {
		return
	}
	p.bar.SetCurrent(int64(done))
}

// finish completes the bar on success and aborts it otherwise.
func (p *itemProgress) finish(ok bool) {
	if p == nil {
		return
	}
	if !ok {
		p.bar.Abort(false)
		p.container.Shutdown()
		return
	}
	p.bar.SetTotal(-1, true)
	p.container.Wait()
}
