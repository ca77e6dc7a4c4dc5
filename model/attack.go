package model

import "time"

// DefaultIntensity is used when an AttackEvent carries no intensity.
const DefaultIntensity = 0.5

// AttackEvent is one observed attack, as delivered by a feed or synthesized
// by the sample generator. Coordinates are degrees.
//
// Source coordinates are required; an event without them is malformed and is
// skipped by geometry generation. Target coordinates are optional: when both
// are present the event also produces an arc.
type AttackEvent struct {
	SourceCountry string   `json:"sourceCountry"`
	SourceLat     *float64 `json:"sourceLat,omitempty"`
	SourceLng     *float64 `json:"sourceLng,omitempty"`

	TargetCountry string   `json:"targetCountry,omitempty"`
	TargetLat     *float64 `json:"targetLat,omitempty"`
	TargetLng     *float64 `json:"targetLng,omitempty"`

	// Intensity in [0,1]; nil means "use the default".
	Intensity *float64 `json:"intensity,omitempty"`

	AttackType string    `json:"attackType,omitempty"`
	Timestamp  time.Time `json:"timestamp,omitempty"`
}

// HasSource reports whether both source coordinates are present.
func (e AttackEvent) HasSource() bool {
	return e.SourceLat != nil && e.SourceLng != nil
}

// HasTarget reports whether both target coordinates are present.
func (e AttackEvent) HasTarget() bool {
	return e.TargetLat != nil && e.TargetLng != nil
}

// IntensityOr returns the event intensity, or def when unset.
func (e AttackEvent) IntensityOr(def float64) float64 {
	if e.Intensity == nil {
		return def
	}
	return *e.Intensity
}

// Source returns the source latitude and longitude. Callers must check
// HasSource first.
func (e AttackEvent) Source() (lat, lng float64) {
	return *e.SourceLat, *e.SourceLng
}

// Target returns the target latitude and longitude. Callers must check
// HasTarget first.
func (e AttackEvent) Target() (lat, lng float64) {
	return *e.TargetLat, *e.TargetLng
}

// Float returns a pointer to v. It keeps literal events readable:
//
//	model.AttackEvent{SourceLat: model.Float(37.09), SourceLng: model.Float(-95.71)}
func Float(v float64) *float64 {
	return &v
}

// NewEvent builds a source-only event.
func NewEvent(country string, lat, lng, intensity float64) AttackEvent {
	return AttackEvent{
		SourceCountry: country,
		SourceLat:     Float(lat),
		SourceLng:     Float(lng),
		Intensity:     Float(intensity),
	}
}

// WithTarget returns a copy of e aimed at the given target.
func (e AttackEvent) WithTarget(country string, lat, lng float64) AttackEvent {
	e.TargetCountry = country
	e.TargetLat = Float(lat)
	e.TargetLng = Float(lng)
	return e
}
