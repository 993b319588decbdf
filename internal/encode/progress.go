package encode

import (
	"io"

	"github.com/vbauerster/mpb"
	"github.com/vbauerster/mpb/decor"
)

// progress is a single mpb bar counting encoded columns. A nil *progress is a no-op.
type progress struct {
	p    *mpb.Progress
	bar  *mpb.Bar
	left int
}

func newProgress(w io.Writer, width, total int) *progress {
	if w == nil || total <= 0 {
		return nil
	}
	opts := []mpb.ProgressOption{mpb.WithOutput(w)}
	if width > 0 {
		opts = append(opts, mpb.WithWidth(width))
	}
	p := mpb.New(opts...)
	bar := p.AddBar(int64(total),
		mpb.PrependDecorators(
			decor.Name("encoding enums"),
			decor.CountersNoUnit("%d/%d", decor.WCSyncSpace),
		),
		mpb.AppendDecorators(decor.AverageETA(decor.ET_STYLE_GO)),
		mpb.BarRemoveOnComplete())
	return &progress{p: p, bar: bar, left: total}
}

func (pr *progress) increment() {
	if pr == nil || pr.left == 0 {
		return
	}
	pr.bar.Increment()
	pr.left--
}

// finish completes the bar even when encoding stopped early, so Wait returns.
func (pr *progress) finish() {
	if pr == nil {
		return
	}
	if pr.left > 0 {
		pr.bar.IncrBy(pr.left)
		pr.left = 0
	}
	pr.p.Wait()
}
