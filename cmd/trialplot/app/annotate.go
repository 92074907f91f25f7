package app

import (
	"fmt"
	"image"
	"image/color"

	"github.com/dustin/go-humanize"
	"github.com/golang/freetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"

	"github.com/uhtp-tools/recorder/internal/storage"
)

const (
	dpi     float64 = 72
	size    float64 = 16
	spacing float64 = 1.1
)

type Annotator struct {
	context *freetype.Context
}

func NewAnnotator() (*Annotator, error) {
	parsedFont, err := freetype.ParseFont(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("parsing font: %w", err)
	}

	context := freetype.NewContext()
	context.SetDPI(dpi)
	context.SetFont(parsedFont)
	context.SetFontSize(size)
	context.SetSrc(image.White)
	context.SetHinting(font.HintingFull)

	return &Annotator{context: context}, nil
}

func (a *Annotator) Annotate(img *image.RGBA, record *storage.TrialRecord, traj *TrajectoryData) error {
	a.context.SetClip(img.Bounds())
	a.context.SetDst(img)

	ops := []struct {
		msg string
		fn  func(*image.RGBA, *storage.TrialRecord, *TrajectoryData) error
	}{
		{"drawing trial info", a.drawInfo},
		{"drawing legend", a.drawLegend},
		{"drawing error scale", a.drawErrorScale},
	}
	for _, op := range ops {
		if err := op.fn(img, record, traj); err != nil {
			return fmt.Errorf("%s: %w", op.msg, err)
		}
	}

	return nil
}

func (a *Annotator) drawInfo(img *image.RGBA, record *storage.TrialRecord, traj *TrajectoryData) error {
	outcome := "failed"
	if record.Success {
		outcome = "success"
	}

	strings := []string{
		fmt.Sprintf("Trial %d (%s)", record.TrialNumber, outcome),
		"Started: " + record.StartedAt.Format("2006-01-02 15:04:05"),
		fmt.Sprintf("Duration: %0.2f s", record.DurationS),
		fmt.Sprintf("RMSE: %0.2f mm (x %0.2f, y %0.2f)",
			record.RMSETotal*1000, record.RMSEX*1000, record.RMSEY*1000),
		fmt.Sprintf("Samples: %s", humanize.Comma(int64(traj.Len()))),
	}

	pt := freetype.Pt(10, 22)
	for _, s := range strings {
		_, _ = a.context.DrawString(s, pt)
		pt.Y += a.context.PointToFixed(size * spacing)
	}

	return nil
}

func (a *Annotator) drawLegend(img *image.RGBA, _ *storage.TrialRecord, _ *TrajectoryData) error {
	imgSize := img.Bounds().Size()
	left := imgSize.X - 150

	entries := []struct {
		label       string
		swatchColor color.RGBA
	}{
		{"cursor", cursorColor},
		{"target", targetColor},
	}

	pt := freetype.Pt(left+20, 22)
	for _, e := range entries {
		// swatch line next to the label
		y := int(pt.Y >> 6)
		drawLine(img, left, y-5, left+15, y-5, e.swatchColor)

		_, _ = a.context.DrawString(e.label, pt)
		pt.Y += a.context.PointToFixed(size * spacing)
	}

	return nil
}

func (a *Annotator) drawErrorScale(img *image.RGBA, _ *storage.TrialRecord, traj *TrajectoryData) error {
	imgSize := img.Bounds().Size()
	top := imgSize.Y - errorStripHeight

	maxErrorMM := traj.MaxErrorM * 1000
	if maxErrorMM < 10 {
		maxErrorMM = 10
	}

	label := fmt.Sprintf("error, peak %0.1f mm", maxErrorMM)
	pt := freetype.Pt(10, top+22)
	_, _ = a.context.DrawString(label, pt)

	return nil
}
