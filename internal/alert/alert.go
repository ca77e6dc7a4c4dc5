// Package alert beeps when a new attack set contains high-intensity events.
package alert

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/speaker"

	"github.com/signalsfoundry/threatglobe/internal/logging"
	"github.com/signalsfoundry/threatglobe/model"
)

// SampleRate is the output rate of every tone.
const SampleRate = beep.SampleRate(44100)

// Player plays a finite streamer without blocking.
type Player interface {
	Play(s beep.Streamer)
}

// Speaker plays through the system audio device.
type Speaker struct {
	mixer *beep.Mixer
}

// NewSpeaker initialises the audio device.
func NewSpeaker() (*Speaker, error) {
	if err := speaker.Init(SampleRate, SampleRate.N(100*time.Millisecond)); err != nil {
		return nil, err
	}
	s := &Speaker{mixer: &beep.Mixer{}}
	speaker.Play(s.mixer)
	return s, nil
}

// Play mixes s into the output.
func (s *Speaker) Play(st beep.Streamer) {
	speaker.Lock()
	s.mixer.Add(st)
	speaker.Unlock()
}

// Close releases the audio device.
func (s *Speaker) Close() {
	speaker.Clear()
	speaker.Close()
}

// Config controls when and how alerts sound.
type Config struct {
	Enabled   bool          `koanf:"enabled"`
	Threshold float64       `koanf:"threshold"`
	Duration  time.Duration `koanf:"duration"`
	BaseFreq  float64       `koanf:"base_freq"`
	Cooldown  time.Duration `koanf:"cooldown"`
}

// DefaultConfig returns a disabled alert with sensible tone settings.
func DefaultConfig() Config {
	return Config{
		Threshold: 0.8,
		Duration:  150 * time.Millisecond,
		BaseFreq:  440,
		Cooldown:  2 * time.Second,
	}
}

// Alerter sounds a tone for attack sets above the threshold.
type Alerter struct {
	cfg    Config
	player Player
	log    logging.Logger
	now    func() time.Time

	mu   sync.Mutex
	last time.Time
}

// New returns an Alerter playing through player. A nil player makes Notify
// count without sounding.
func New(cfg Config, player Player, log logging.Logger) *Alerter {
	if log == nil {
		log = logging.Noop()
	}
	return &Alerter{cfg: cfg, player: player, log: log, now: time.Now}
}

// Notify inspects events and sounds one tone whose pitch rises with the
// strongest intensity seen. It returns how many events crossed the threshold.
func (a *Alerter) Notify(ctx context.Context, events []model.AttackEvent) int {
	hot, peak := 0, 0.0
	for _, ev := range events {
		in := ev.IntensityOr(model.DefaultIntensity)
		if in >= a.cfg.Threshold {
			hot++
			peak = math.Max(peak, in)
		}
	}
	if hot == 0 || a.player == nil {
		return hot
	}

	a.mu.Lock()
	now := a.now()
	if !a.last.IsZero() && now.Sub(a.last) < a.cfg.Cooldown {
		a.mu.Unlock()
		return hot
	}
	a.last = now
	a.mu.Unlock()

	freq := a.cfg.BaseFreq * (1 + peak)
	a.player.Play(Tone(freq, a.cfg.Duration))
	a.log.Debug(ctx, "attack alert", logging.Int("events", hot), logging.Float("peak", peak), logging.Float("freq", freq))
	return hot
}

// Tone returns a sine tone of freq Hz lasting d, with short fades at both
// ends so it does not click.
func Tone(freq float64, d time.Duration) beep.Streamer {
	n := SampleRate.N(d)
	return beep.Take(n, &sine{freq: freq, total: n})
}

type sine struct {
	freq  float64
	total int
	pos   int
}

func (g *sine) Stream(samples [][2]float64) (int, bool) {
	fade := float64(SampleRate.N(10 * time.Millisecond))
	for i := range samples {
		t := float64(g.pos) / float64(SampleRate)
		env := math.Min(1, math.Min(float64(g.pos)/fade, float64(g.total-g.pos)/fade))
		v := 0.25 * math.Max(0, env) * math.Sin(2*math.Pi*g.freq*t)
		samples[i][0], samples[i][1] = v, v
		g.pos++
	}
	return len(samples), true
}

func (g *sine) Err() error { return nil }
