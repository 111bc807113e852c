// Package geo provides great-circle distance math and a position sampler
// that wraps a continuous watch source and judges geofences for gps trials.
package geo

import (
	"errors"
	"math"
	"sync"
	"time"
)

var (
	ErrNoFix          = errors.New("no position fix recorded")
	ErrAccuracyTooLow = errors.New("position accuracy too low")
)

// DefaultMinAccuracyMeters is the worst reported accuracy a sample may
// have and still be used for a geofence check.
const DefaultMinAccuracyMeters = 15

const earthRadiusMeters = 6371000

// Distance returns the haversine great-circle distance in meters between
// two WGS84 coordinates.
func Distance(lat1, lon1, lat2, lon2 float64) float64 {
	const rad = math.Pi / 180

	dLat := (lat2 - lat1) * rad
	dLon := (lon2 - lon1) * rad

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*rad)*math.Cos(lat2*rad)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadiusMeters * c
}

// Sample is one raw position fix from a provider.
type Sample struct {
	Lat            float64
	Lon            float64
	AccuracyMeters float64
	At             time.Time
}

// Provider is a push-based position source. Start must invoke the
// callback for every new fix until Stop is called.
type Provider interface {
	Start(onSample func(Sample)) error
	Stop()
}

// GeofenceResult is the outcome of a geofence check. On NoFix or
// AccuracyTooLow failures DistanceMeters is +Inf.
type GeofenceResult struct {
	Success        bool
	DistanceMeters float64
	AccuracyMeters float64
}

// Sampler holds the latest position fix from at most one active watch.
type Sampler struct {
	minAccuracy float64

	mu       sync.Mutex
	provider Provider
	latest   *Sample
}

// NewSampler returns a sampler using the given minimum-accuracy threshold
// in meters; zero or negative selects DefaultMinAccuracyMeters.
func NewSampler(minAccuracyMeters float64) *Sampler {
	if minAccuracyMeters <= 0 {
		minAccuracyMeters = DefaultMinAccuracyMeters
	}
	return &Sampler{minAccuracy: minAccuracyMeters}
}

// Watch starts observing the provider, replacing any active watch.
func (s *Sampler) Watch(p Provider) error {
	s.mu.Lock()
	if s.provider != nil {
		s.provider.Stop()
		s.provider = nil
	}
	s.provider = p
	s.mu.Unlock()

	return p.Start(func(sample Sample) {
		s.mu.Lock()
		s.latest = &sample
		s.mu.Unlock()
	})
}

// Stop ends the active watch. Safe to call when not watching.
func (s *Sampler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.provider != nil {
		s.provider.Stop()
		s.provider = nil
	}
}

// Watching reports whether a watch is active.
func (s *Sampler) Watching() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.provider != nil
}

// Latest returns the most recent sample, if any has been recorded.
func (s *Sampler) Latest() (Sample, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.latest == nil {
		return Sample{}, false
	}
	return *s.latest, true
}

// CheckGeofence compares the latest sample against a circular geofence.
// The check is a plain threshold compare: reported accuracy is not folded
// into the distance.
func (s *Sampler) CheckGeofence(targetLat, targetLon, toleranceMeters float64) (GeofenceResult, error) {
	sample, ok := s.Latest()
	if !ok {
		return GeofenceResult{DistanceMeters: math.Inf(1)}, ErrNoFix
	}
	if sample.AccuracyMeters > s.minAccuracy {
		return GeofenceResult{
			DistanceMeters: math.Inf(1),
			AccuracyMeters: sample.AccuracyMeters,
		}, ErrAccuracyTooLow
	}

	dist := Distance(sample.Lat, sample.Lon, targetLat, targetLon)
	return GeofenceResult{
		Success:        dist <= toleranceMeters,
		DistanceMeters: dist,
		AccuracyMeters: sample.AccuracyMeters,
	}, nil
}
