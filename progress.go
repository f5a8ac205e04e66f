package main

import (
	"io"

	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
)

// progressBar is a single mpb bar in its own container.
type progressBar struct {
	p *mpb.Progress
	b *mpb.Bar
}

func newProgressBar(out io.Writer, total int, name string) *progressBar {
	p := mpb.New(mpb.WithOutput(out))
	b := p.New(int64(total),
		mpb.BarStyle().Lbound("[").Filler("=").Tip(">").Padding(" ").Rbound("]"),
		mpb.PrependDecorators(
			decor.Name(name, decor.WC{W: len(name) + 1, C: decor.DidentRight}),
			decor.CountersNoUnit("%d / %d"),
		),
		mpb.AppendDecorators(
			decor.Percentage(decor.WC{W: 5, C: decor.DidentRight}),
			decor.Elapsed(decor.ET_STYLE_GO),
		),
		mpb.BarRemoveOnComplete(),
	)
	return &progressBar{p: p, b: b}
}

func (pb *progressBar) SetCurrent(cur int) {
	pb.b.SetCurrent(int64(cur))
}

func (pb *progressBar) Done() {
	if pb.b.IsRunning() {
		pb.b.SetTotal(-1, true)
	}
	pb.p.Wait()
}

func (pb *progressBar) Abort() {
	if pb.b.IsRunning() {
		pb.b.Abort(true)
	}
	pb.p.Wait()
}
