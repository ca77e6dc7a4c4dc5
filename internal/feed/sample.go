// Package feed produces attack events: a synthetic generator, JSON files with
// live reload, and a resilient REST poller.
package feed

import (
	"math/rand"
	"time"

	"github.com/signalsfoundry/threatglobe/model"
)

// Centroid is a country's representative location.
type Centroid struct {
	Country  string
	Lat, Lng float64
}

// Centroids is the table Sample draws from.
var Centroids = []Centroid{
	{"US", 37.09, -95.71},
	{"CN", 35.86, 104.19},
	{"RU", 61.52, 105.32},
	{"BR", -14.24, -51.93},
	{"IN", 20.59, 78.96},
	{"DE", 51.17, 10.45},
	{"GB", 55.38, -3.44},
	{"FR", 46.23, 2.21},
	{"JP", 36.20, 138.25},
	{"KR", 35.91, 127.77},
	{"IR", 32.43, 53.69},
	{"KP", 40.34, 127.51},
	{"UA", 48.38, 31.17},
	{"NG", 9.08, 8.68},
	{"ZA", -30.56, 22.94},
	{"AU", -25.27, 133.78},
	{"CA", 56.13, -106.35},
	{"MX", 23.63, -102.55},
	{"AR", -38.42, -63.62},
	{"VN", 14.06, 108.28},
	{"ID", -0.79, 113.92},
	{"TR", 38.96, 35.24},
	{"NL", 52.13, 5.29},
	{"SG", 1.35, 103.82},
}

// AttackTypes labels synthetic events.
var AttackTypes = []string{"ddos", "malware", "phishing", "bruteforce", "scan", "exploit"}

// TargetRatio is the fraction of synthetic events that carry a target.
const TargetRatio = 0.6

// Sample returns n synthetic events. Roughly TargetRatio of them carry a
// target distinct from the source; the rest only produce spikes.
func Sample(rng *rand.Rand, n int, now time.Time) []model.AttackEvent {
	out := make([]model.AttackEvent, 0, n)
	for i := 0; i < n; i++ {
		src := Centroids[rng.Intn(len(Centroids))]
		ev := model.NewEvent(src.Country, src.Lat, src.Lng, 0.1+0.9*rng.Float64())
		ev.AttackType = AttackTypes[rng.Intn(len(AttackTypes))]
		ev.Timestamp = now.Add(-time.Duration(rng.Intn(3600)) * time.Second)
		if rng.Float64() < TargetRatio {
			dst := Centroids[rng.Intn(len(Centroids))]
			for dst.Country == src.Country {
				dst = Centroids[rng.Intn(len(Centroids))]
			}
			ev = ev.WithTarget(dst.Country, dst.Lat, dst.Lng)
		}
		out = append(out, ev)
	}
	return out
}
