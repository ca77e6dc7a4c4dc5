package alert

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/gopxl/beep"

	"github.com/signalsfoundry/threatglobe/model"
)

type capture struct {
	played []beep.Streamer
}

func (c *capture) Play(s beep.Streamer) { c.played = append(c.played, s) }

func drain(s beep.Streamer) (n int, peak float64) {
	buf := make([][2]float64, 512)
	for {
		k, ok := s.Stream(buf)
		for i := 0; i < k; i++ {
			peak = math.Max(peak, math.Abs(buf[i][0]))
		}
		n += k
		if !ok || k == 0 {
			return n, peak
		}
	}
}

func TestToneLengthAndLevel(t *testing.T) {
	n, peak := drain(Tone(440, 100*time.Millisecond))
	if want := SampleRate.N(100 * time.Millisecond); n != want {
		t.Fatalf("samples = %d, want %d", n, want)
	}
	if peak <= 0 || peak > 0.25 {
		t.Fatalf("peak = %v, want within (0, 0.25]", peak)
	}
}

func TestNotifyThresholdAndCooldown(t *testing.T) {
	player := &capture{}
	cfg := DefaultConfig()
	a := New(cfg, player, nil)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	a.now = func() time.Time { return now }
	ctx := context.Background()

	quiet := []model.AttackEvent{model.NewEvent("US", 1, 2, 0.2), {SourceCountry: "XX"}}
	if got := a.Notify(ctx, quiet); got != 0 || len(player.played) != 0 {
		t.Fatalf("quiet set: hot=%d played=%d", got, len(player.played))
	}

	loud := []model.AttackEvent{model.NewEvent("US", 1, 2, 0.9), model.NewEvent("CN", 3, 4, 0.85)}
	if got := a.Notify(ctx, loud); got != 2 || len(player.played) != 1 {
		t.Fatalf("loud set: hot=%d played=%d, want 2 and 1", got, len(player.played))
	}

	now = now.Add(cfg.Cooldown / 2)
	a.Notify(ctx, loud)
	if len(player.played) != 1 {
		t.Fatalf("tone played during cooldown")
	}
	now = now.Add(cfg.Cooldown)
	a.Notify(ctx, loud)
	if len(player.played) != 2 {
		t.Fatalf("played = %d after cooldown, want 2", len(player.played))
	}
}

func TestNotifyWithoutPlayerOnlyCounts(t *testing.T) {
	a := New(DefaultConfig(), nil, nil)
	if got := a.Notify(context.Background(), []model.AttackEvent{model.NewEvent("US", 1, 2, 1)}); got != 1 {
		t.Fatalf("hot = %d, want 1", got)
	}
}
