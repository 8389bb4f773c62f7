// Package videoplayer implements the render side of spec.md §4.9: a
// pluggable Renderer contract plus a default ebitengine-backed
// implementation, and a Player that pulls frames from a queue and paces
// them against the A/V sync controller's scheduling predicates.
package videoplayer

import (
	"image/color"

	"github.com/hajimehoshi/ebiten/v2"
)

// Renderer is the pluggable presentation backend of spec.md §4.9. Player
// never calls Init; EbitenRenderer calls its own Init from RenderFrame
// whenever the frame size changes. OnResize is called whenever the render
// target's viewport changes; ClearCaches when internal caches (e.g. a GPU
// texture pool) should be dropped without tearing down the renderer itself
// (spec.md's Open Question on clear_caches timing, resolved in DESIGN.md:
// called during each seek and on every Stop, not on Pause).
type Renderer interface {
	Init(width, height int) error
	RenderFrame(pixels []byte, width, height int) error
	ClearCaches()
	OnResize(viewportWidth, viewportHeight int)
	Cleanup() error
	Name() string
}

// EbitenRenderer is the default Renderer: CalcProjection's letterboxing
// math and a reused *ebiten.Image frame buffer.
type EbitenRenderer struct {
	frame  *ebiten.Image
	target *ebiten.Image // the caller-owned render target, set via SetTarget

	vpWidth, vpHeight int
}

// NewEbitenRenderer constructs an uninitialized EbitenRenderer.
// Letterboxing projects into the viewport passed to DrawTo.
func NewEbitenRenderer() *EbitenRenderer { return &EbitenRenderer{} }

// SetTarget records a caller-owned ebiten.Image as the render target.
// DrawTo does not read it: it draws into the viewport it is given (the
// abstract Renderer contract's render_frame only hands over pixels; the
// facade calls DrawTo from its own Draw-time hook).
func (r *EbitenRenderer) SetTarget(target *ebiten.Image) { r.target = target }

func (r *EbitenRenderer) Init(width, height int) error {
	r.frame = ebiten.NewImage(width, height)
	r.frame.Fill(color.Black)
	return nil
}

func (r *EbitenRenderer) RenderFrame(pixels []byte, width, height int) error {
	if r.frame == nil || r.frame.Bounds().Dx() != width || r.frame.Bounds().Dy() != height {
		if err := r.Init(width, height); err != nil {
			return err
		}
	}
	r.frame.WritePixels(pixels)
	return nil
}

// ClearCaches drops the reused frame image; the next RenderFrame
// reallocates it via Init.
func (r *EbitenRenderer) ClearCaches() {
	r.frame = nil
}

func (r *EbitenRenderer) OnResize(viewportWidth, viewportHeight int) {
	r.vpWidth, r.vpHeight = viewportWidth, viewportHeight
}

func (r *EbitenRenderer) Cleanup() error {
	r.frame = nil
	r.target = nil
	return nil
}

func (r *EbitenRenderer) Name() string { return "ebiten" }

// DrawTo projects the current frame into viewport using CalcProjection's
// letterboxing math, preserving aspect ratio and centering without drawing
// explicit black bars.
func (r *EbitenRenderer) DrawTo(viewport *ebiten.Image) {
	if r.frame == nil || viewport == nil {
		return
	}
	geom, filter := CalcProjection(viewport, r.frame)
	var opts ebiten.DrawImageOptions
	opts.GeoM = geom
	opts.Filter = filter
	viewport.DrawImage(r.frame, &opts)
}

// CalcProjection returns the GeoM and recommended ebiten.Filter to project
// frame into viewport, scaling to fill as much space as possible while
// preserving aspect ratio and centering any remainder.
func CalcProjection(viewport, frame *ebiten.Image) (ebiten.GeoM, ebiten.Filter) {
	frameBounds := frame.Bounds()
	viewBounds := viewport.Bounds()
	vwWidth, vwHeight := viewBounds.Dx(), viewBounds.Dy()
	frWidth, frHeight := frameBounds.Dx(), frameBounds.Dy()

	tx, ty := float64(viewBounds.Min.X), float64(viewBounds.Min.Y)

	var geom ebiten.GeoM
	var filter ebiten.Filter = ebiten.FilterLinear
	wf, hf := float64(vwWidth)/float64(frWidth), float64(vwHeight)/float64(frHeight)
	sf := wf
	if hf < wf {
		sf = hf
	}
	if sf == 1.0 {
		offx := (float64(vwWidth) - float64(frWidth)) / 2
		offy := (float64(vwHeight) - float64(frHeight)) / 2
		geom.Translate(tx+offx, ty+offy)
	} else {
		sfrWidth := float64(frWidth) * sf
		sfrHeight := float64(frHeight) * sf
		geom.Scale(sf, sf)
		geom.Translate(tx+(float64(vwWidth)-sfrWidth)/2, ty+(float64(vwHeight)-sfrHeight)/2)
	}
	return geom, filter
}
