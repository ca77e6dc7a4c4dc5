package core

import (
	"math"
	"time"

	satellite "github.com/joshuaferrara/go-satellite"
)

// SiderealAngle returns the Greenwich mean sidereal angle, in radians within
// [0, 2π), for the given instant. Rotating the globe about +Y by this angle
// turns the textured Earth the way the real one is turned relative to the
// stars at that time.
func SiderealAngle(t time.Time) float64 {
	t = t.UTC()
	year, month, day := t.Date()
	hour, min, sec := t.Clock()

	jd := satellite.JDay(year, int(month), day, hour, min, sec)
	// JDay works in whole seconds; add the fractional part so the globe
	// turns smoothly between frames.
	jd += float64(t.Nanosecond()) / 1e9 / 86400
	gmst := satellite.ThetaG_JD(jd)

	gmst = math.Mod(gmst, 2*math.Pi)
	if gmst < 0 {
		gmst += 2 * math.Pi
	}
	return gmst
}
