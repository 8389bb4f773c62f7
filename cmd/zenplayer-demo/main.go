// Command zenplayer-demo is a minimal ebitengine window driving a
// zenplay.Player against the queue-driven facade (SPEC_FULL.md §10.3): CLI
// parsing uses the standard flag package, and startup/shutdown logging
// goes through log/slog, since this is a real application binary rather
// than an embedded library.
package main

import (
	"errors"
	"flag"
	"fmt"
	"image"
	"image/color"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/audio"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/inpututil"

	"github.com/zenplay-go/zenplay"
)

func main() {
	windowWidth := flag.Int("width", 1280, "initial window width")
	windowHeight := flag.Int("height", 720, "initial window height")
	noHW := flag.Bool("no-hwaccel", false, "disable hardware-decode attempt")
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: zenplayer-demo [flags] path/to/video.mp4")
		flag.PrintDefaults()
		os.Exit(1)
	}

	path, err := filepath.Abs(flag.Arg(0))
	if err != nil {
		slog.Error("resolve path", "error", err)
		os.Exit(1)
	}
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			slog.Error("video not found", "path", path)
			os.Exit(1)
		}
		slog.Error("stat video", "error", err)
		os.Exit(1)
	}

	// The audio context is process-wide ebiten state (same requirement the
	// teacher's CreateAudioContextForMedia had), so it is created once here
	// at a conventional 48kHz and handed to the player via Options; the
	// resample package bridges any source whose sample rate actually
	// differs.
	audioCtx := audio.NewContext(48000)

	opts := zenplay.DefaultOptions()
	opts.AudioContext = audioCtx
	opts.HardwareDecodeEnabled = !*noHW

	player := zenplay.New(opts)
	if err := player.Open(path); err != nil {
		slog.Error("open video", "path", path, "error", err)
		os.Exit(1)
	}
	if err := player.Play(); err != nil {
		slog.Error("play video", "error", err)
		os.Exit(1)
	}

	ebiten.SetWindowTitle("zenplayer-demo: " + filepath.Base(path))
	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)
	ebiten.SetWindowSize(*windowWidth, *windowHeight)

	app := &demoApp{
		videoPath: path,
		player:    player,
		duration:  time.Duration(player.DurationMs()) * time.Millisecond,
	}
	if err := ebiten.RunGame(app); err != nil {
		slog.Error("run game", "error", err)
		os.Exit(1)
	}
}

type demoApp struct {
	videoPath string
	player    *zenplay.Player

	lastPosition time.Duration
	duration     time.Duration
}

func (a *demoApp) Layout(_, _ int) (int, int) {
	panic("Layout() should not be called when LayoutF() exists")
}

func (a *demoApp) LayoutF(w, h float64) (float64, float64) {
	scaleFactor := ebiten.Monitor().DeviceScaleFactor()
	return w * scaleFactor, h * scaleFactor
}

func (a *demoApp) Draw(canvas *ebiten.Image) {
	a.player.DrawTo(canvas)
	a.drawGUI(canvas)
}

func (a *demoApp) Update() error {
	a.lastPosition = time.Duration(a.player.CurrentPlayTimeMs()) * time.Millisecond

	if inpututil.IsKeyJustPressed(ebiten.KeyEscape) {
		if err := a.player.Close(); err != nil {
			return err
		}
		return ebiten.Termination
	}

	if inpututil.IsKeyJustPressed(ebiten.KeyP) || inpututil.IsKeyJustPressed(ebiten.KeySpace) {
		if a.player.State() == zenplay.Playing {
			if err := a.player.Pause(); err != nil {
				return err
			}
		} else {
			if err := a.player.Play(); err != nil {
				return err
			}
		}
	} else if inpututil.IsKeyJustPressed(ebiten.KeyS) {
		if err := a.player.Stop(); err != nil {
			return err
		}
	}

	if inpututil.IsKeyJustPressed(ebiten.KeyI) {
		slog.Info("playback state", "state", a.player.State())
	}

	return nil
}

// TODO: a clean GUI would use a faded darkened area, then light colors and icons for bars and text
func (a *demoApp) drawGUI(canvas *ebiten.Image) {
	bounds := canvas.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	playWidth := (w * 2) / 3
	playHeight := h / 48
	ox := (w - playWidth) / 2
	oy := h - playHeight*2
	playRect := image.Rect(ox, oy, ox+playWidth, oy+playHeight)
	canvas.SubImage(playRect).(*ebiten.Image).Fill(color.RGBA{255, 255, 255, 255})
	const borderThickness = 3
	playRect.Min.X += borderThickness
	playRect.Max.X -= borderThickness
	playRect.Min.Y += borderThickness
	playRect.Max.Y -= borderThickness
	canvas.SubImage(playRect).(*ebiten.Image).Fill(color.RGBA{0, 0, 0, 255})
	const innerMargin = 2
	playRect.Min.X += innerMargin
	playRect.Max.X -= innerMargin
	playRect.Min.Y += innerMargin
	playRect.Max.Y -= innerMargin
	t := float64(a.lastPosition) / float64(a.duration)
	playRect.Max.X = playRect.Min.X + int(float64(playRect.Dx())*t)
	canvas.SubImage(playRect).(*ebiten.Image).Fill(color.RGBA{255, 255, 255, 255})

	positionStr := durationToMMSS(a.lastPosition)
	durationStr := durationToMMSS(a.duration)
	ebitenutil.DebugPrintAt(canvas, positionStr+" / "+durationStr+" (SPACE to pause, S to stop)", ox, oy-16)
}

func durationToMMSS(d time.Duration) string {
	millis := d.Milliseconds()
	seconds := millis / 1000
	minutes := seconds / 60
	seconds %= 60
	return fmt.Sprintf("%02d:%02d", minutes, seconds)
}
