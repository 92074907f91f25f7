package app

import (
	"image"
	"image/color"
	"math"

	"github.com/uhtp-tools/recorder/internal/storage"
)

const (
	imageWidth  = 1280
	imageHeight = 720

	// bottom strip showing cursor-to-target error over the trial
	errorStripHeight = 150

	plotMargin = 40
)

var (
	backgroundColor = color.RGBA{R: 20, G: 20, B: 30, A: 255}
	gridColor       = color.RGBA{R: 50, G: 50, B: 60, A: 255}
	stripColor      = color.RGBA{R: 30, G: 30, B: 40, A: 255}
	cursorColor     = color.RGBA{R: 0, G: 200, B: 255, A: 255}
	targetColor     = color.RGBA{R: 255, G: 100, B: 100, A: 255}
	errorColor      = color.RGBA{R: 255, G: 150, B: 50, A: 255}
)

// TrajectoryData accumulates one trial's samples together with the world
// bounds needed to scale the drawing.
type TrajectoryData struct {
	Points []storage.SamplePoint

	MinX, MaxX float64
	MinY, MaxY float64
	MaxErrorM  float64
}

func NewTrajectoryData() *TrajectoryData {
	return &TrajectoryData{
		MinX: math.Inf(1),
		MaxX: math.Inf(-1),
		MinY: math.Inf(1),
		MaxY: math.Inf(-1),
	}
}

// Update folds one sample into the trajectory.
func (t *TrajectoryData) Update(p storage.SamplePoint) {
	t.Points = append(t.Points, p)

	t.MinX = min(t.MinX, p.CursorX, p.TargetX)
	t.MaxX = max(t.MaxX, p.CursorX, p.TargetX)
	t.MinY = min(t.MinY, p.CursorY, p.TargetY)
	t.MaxY = max(t.MaxY, p.CursorY, p.TargetY)

	t.MaxErrorM = max(t.MaxErrorM, math.Hypot(p.ErrorX, p.ErrorY))
}

// Len returns the number of accumulated samples.
func (t *TrajectoryData) Len() int {
	return len(t.Points)
}

// TrajectoryRenderer draws the cursor and target paths in the upper
// panel and the error magnitude strip below.
type TrajectoryRenderer struct {
	width  int
	height int
}

func NewTrajectoryRenderer() *TrajectoryRenderer {
	return &TrajectoryRenderer{width: imageWidth, height: imageHeight}
}

func (r *TrajectoryRenderer) Render(traj *TrajectoryData) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, r.width, r.height))
	fillRect(img, img.Bounds(), backgroundColor)

	plotHeight := r.height - errorStripHeight
	r.drawGrid(img, traj, plotHeight)
	r.drawPaths(img, traj, plotHeight)
	r.drawErrorStrip(img, traj)

	return img
}

// worldToScreen maps world metres onto the upper plot panel, preserving
// the aspect ratio. The Y axis is inverted: world up is screen up.
func (r *TrajectoryRenderer) worldToScreen(traj *TrajectoryData, plotHeight int, x, y float64) (int, int) {
	spanX := traj.MaxX - traj.MinX
	spanY := traj.MaxY - traj.MinY

	// a stationary trial still needs a finite scale
	span := max(spanX, spanY, 0.01)

	scale := float64(min(r.width, plotHeight)-2*plotMargin) / span
	originX := float64(r.width)/2 - (traj.MinX+traj.MaxX)/2*scale
	originY := float64(plotHeight)/2 + (traj.MinY+traj.MaxY)/2*scale

	return int(originX + x*scale), int(originY - y*scale)
}

func (r *TrajectoryRenderer) drawGrid(img *image.RGBA, traj *TrajectoryData, plotHeight int) {
	// grid lines every 10 cm in world space
	const step = 0.1

	for gx := math.Floor(traj.MinX/step) * step; gx <= traj.MaxX+step; gx += step {
		x, _ := r.worldToScreen(traj, plotHeight, gx, 0)
		if x >= 0 && x < r.width {
			drawLine(img, x, 0, x, plotHeight-1, gridColor)
		}
	}
	for gy := math.Floor(traj.MinY/step) * step; gy <= traj.MaxY+step; gy += step {
		_, y := r.worldToScreen(traj, plotHeight, 0, gy)
		if y >= 0 && y < plotHeight {
			drawLine(img, 0, y, r.width-1, y, gridColor)
		}
	}
}

func (r *TrajectoryRenderer) drawPaths(img *image.RGBA, traj *TrajectoryData, plotHeight int) {
	for i := 1; i < len(traj.Points); i++ {
		prev, curr := traj.Points[i-1], traj.Points[i]

		x0, y0 := r.worldToScreen(traj, plotHeight, prev.TargetX, prev.TargetY)
		x1, y1 := r.worldToScreen(traj, plotHeight, curr.TargetX, curr.TargetY)
		drawLine(img, x0, y0, x1, y1, targetColor)
	}
	for i := 1; i < len(traj.Points); i++ {
		prev, curr := traj.Points[i-1], traj.Points[i]

		x0, y0 := r.worldToScreen(traj, plotHeight, prev.CursorX, prev.CursorY)
		x1, y1 := r.worldToScreen(traj, plotHeight, curr.CursorX, curr.CursorY)
		drawLine(img, x0, y0, x1, y1, cursorColor)
	}
}

func (r *TrajectoryRenderer) drawErrorStrip(img *image.RGBA, traj *TrajectoryData) {
	top := r.height - errorStripHeight
	fillRect(img, image.Rect(0, top, r.width, r.height), stripColor)
	drawLine(img, 0, top, r.width-1, top, gridColor)

	if len(traj.Points) < 2 {
		return
	}

	// at least a 10 mm scale so near-perfect trials do not fill the strip
	// with noise
	maxError := max(traj.MaxErrorM, 0.01)

	toScreen := func(i int) (int, int) {
		p := traj.Points[i]
		x := i * (r.width - 1) / (len(traj.Points) - 1)
		err := math.Hypot(p.ErrorX, p.ErrorY)
		y := r.height - 5 - int(err/maxError*float64(errorStripHeight-20))
		return x, y
	}

	for i := 1; i < len(traj.Points); i++ {
		x0, y0 := toScreen(i - 1)
		x1, y1 := toScreen(i)
		drawLine(img, x0, y0, x1, y1, errorColor)
	}
}

func fillRect(img *image.RGBA, r image.Rectangle, c color.RGBA) {
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			img.SetRGBA(x, y, c)
		}
	}
}

// drawLine draws a straight segment using integer Bresenham stepping.
func drawLine(img *image.RGBA, x0, y0, x1, y1 int, c color.RGBA) {
	dx := abs(x1 - x0)
	dy := -abs(y1 - y0)

	sx, sy := 1, 1
	if x0 > x1 {
		sx = -1
	}
	if y0 > y1 {
		sy = -1
	}

	err := dx + dy
	for {
		if image.Pt(x0, y0).In(img.Bounds()) {
			img.SetRGBA(x0, y0, c)
		}
		if x0 == x1 && y0 == y1 {
			return
		}

		e2 := 2 * err
		if e2 >= dy {
			err += dy
			x0 += sx
		}
		if e2 <= dx {
			err += dx
			y0 += sy
		}
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
