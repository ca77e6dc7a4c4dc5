// Command globe-snapshot renders the attack globe off-screen and writes a PNG.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math/rand"
	"os"
	"time"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/signalsfoundry/threatglobe/internal/asset"
	"github.com/signalsfoundry/threatglobe/internal/config"
	"github.com/signalsfoundry/threatglobe/internal/feed"
	"github.com/signalsfoundry/threatglobe/internal/logging"
	"github.com/signalsfoundry/threatglobe/internal/scene"
	"github.com/signalsfoundry/threatglobe/internal/surface"
	"github.com/signalsfoundry/threatglobe/model"
	"github.com/signalsfoundry/threatglobe/timectrl"
)

type options struct {
	Width, Height int
	Frames        int
	Seed          int64
	Samples       int
	Events        string
	Texture       string
	HUD           bool
}

func main() {
	configPath := flag.String("config", "", "YAML config file (defaults to $THREATGLOBE_CONFIG)")
	out := flag.String("out", "globe.png", "output PNG path")
	var opts options
	flag.IntVar(&opts.Width, "width", 0, "image width (defaults to render.width)")
	flag.IntVar(&opts.Height, "height", 0, "image height (defaults to render.height)")
	flag.IntVar(&opts.Frames, "frames", 30, "frames to simulate before capturing")
	flag.Int64Var(&opts.Seed, "seed", 1, "random seed for samples and spike clusters")
	flag.IntVar(&opts.Samples, "samples", 0, "synthetic events when -events is empty (defaults to feed.samples)")
	flag.StringVar(&opts.Events, "events", "", "JSON attack file to render")
	flag.StringVar(&opts.Texture, "texture", "", "globe texture (defaults to globe.texture)")
	flag.BoolVar(&opts.HUD, "hud", true, "draw a stats overlay")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	log, closer, err := logging.New(cfg.Log())
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	defer closer.Close()

	img, st, err := snapshot(context.Background(), cfg, opts, log)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if err := writePNG(*out, img); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	fmt.Printf("wrote %s: %dx%d spikes=%d arcs=%d frames=%d textured=%v\n",
		*out, st.Width, st.Height, st.Spikes, st.Arcs, st.Frames, st.Textured)
}

// snapshot mounts a scene into an in-memory container, steps it a fixed
// number of frames on a manual clock and returns the last presented frame.
func snapshot(ctx context.Context, cfg config.Config, opts options, log logging.Logger) (*image.RGBA, scene.Stats, error) {
	if opts.Width <= 0 {
		opts.Width = cfg.Render.Width
	}
	if opts.Height <= 0 {
		opts.Height = cfg.Render.Height
	}
	if opts.Samples <= 0 {
		opts.Samples = cfg.Feed.Samples
	}
	if opts.Texture == "" {
		opts.Texture = cfg.Globe.Texture
	}
	if opts.Frames <= 0 {
		opts.Frames = 1
	}

	rng := rand.New(rand.NewSource(opts.Seed))
	start := time.Unix(0, 0).UTC()
	clock := timectrl.NewManual(start, time.Second/time.Duration(cfg.Render.FPS))

	events, err := loadEvents(opts, rng, start)
	if err != nil {
		return nil, scene.Stats{}, err
	}

	sceneOpts := []scene.Option{
		scene.WithLogger(log),
		scene.WithFrameSource(clock),
		scene.WithRand(rng),
	}
	if opts.Texture != "" {
		// Decode up front so the capture never races the async texture apply.
		tex, err := asset.FileLoader{Path: opts.Texture, MaxWidth: cfg.Globe.TextureMaxWidth}.Load(ctx)
		if err != nil {
			return nil, scene.Stats{}, fmt.Errorf("load texture: %w", err)
		}
		sceneOpts = append(sceneOpts, scene.WithTextureLoader(asset.LoaderFunc(func(context.Context) (*image.RGBA, error) {
			return tex, nil
		})))
	}
	mgr := scene.New(cfg.Scene(), sceneOpts...)
	mem := surface.NewMemory(opts.Width, opts.Height)

	if err := mgr.SetAttackEvents(ctx, events); err != nil {
		return nil, scene.Stats{}, err
	}
	if err := mgr.Mount(ctx, mem); err != nil {
		return nil, scene.Stats{}, err
	}
	if opts.Texture != "" {
		waitTextured(mgr, 2*time.Second)
	}
	for i := 0; i < opts.Frames; i++ {
		clock.Step()
	}

	st := mgr.Stats()
	frame := mem.LastFrame()
	var img *image.RGBA
	if frame != nil {
		img = image.NewRGBA(frame.Bounds())
		copy(img.Pix, frame.Pix)
	}
	if err := mgr.Unmount(ctx); err != nil {
		return nil, st, err
	}
	if img == nil {
		return nil, st, errors.New("no frame presented")
	}
	if opts.HUD {
		drawHUD(img, st)
	}
	return img, st, nil
}

func loadEvents(opts options, rng *rand.Rand, now time.Time) ([]model.AttackEvent, error) {
	if opts.Events != "" {
		return feed.LoadFile(opts.Events)
	}
	return feed.Sample(rng, opts.Samples, now), nil
}

func waitTextured(mgr *scene.Manager, timeout time.Duration) {
	deadline := time.Now().Add(timeout)
	for !mgr.Stats().Textured && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
}

func drawHUD(img *image.RGBA, st scene.Stats) {
	lines := []string{
		fmt.Sprintf("spikes %d  arcs %d", st.Spikes, st.Arcs),
		fmt.Sprintf("epoch %d  frames %d", st.Epoch, st.Frames),
	}
	face := basicfont.Face7x13
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(color.RGBA{R: 0xe0, G: 0xe8, B: 0xff, A: 0xff}),
		Face: face,
	}
	for i, line := range lines {
		d.Dot = fixed.P(8, 8+face.Ascent+i*face.Height)
		d.DrawString(line)
	}
}

func writePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return f.Close()
}
