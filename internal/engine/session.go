package engine

import (
	"time"

	"github.com/trailplay/geohunt/internal/geo"
	"github.com/trailplay/geohunt/internal/geohunt"
)

// Session is the ephemeral in-memory position of the player inside a
// game: index pointers, wall-clock baselines, and in-progress answer
// selections. It is reconstructable from the team record plus game
// content, so losing it is never fatal.
type Session struct {
	LocationIndex int
	TrialIndex    int

	GameStartedAt  time.Time
	TrialStartedAt time.Time

	SelectedOption int
	Ordering       []string
	LastQRDecode   string
	LastGeofence   *geo.GeofenceResult

	HintsThisTrial int
}

func newSession(now time.Time) *Session {
	return &Session{
		GameStartedAt:  now,
		TrialStartedAt: now,
		SelectedOption: -1,
	}
}

// resetTrial clears the per-trial selections and restarts the trial
// clock for the trial at the given indexes.
func (s *Session) resetTrial(li, ti int, now time.Time) {
	s.LocationIndex = li
	s.TrialIndex = ti
	s.TrialStartedAt = now
	s.SelectedOption = -1
	s.Ordering = nil
	s.LastQRDecode = ""
	s.LastGeofence = nil
	s.HintsThisTrial = 0
}

// TrialElapsed derives the time spent in the current trial from its
// wall-clock start, never from a running counter.
func (s *Session) TrialElapsed(now time.Time) time.Duration {
	return now.Sub(s.TrialStartedAt)
}

// GameElapsed derives the total time spent in the game.
func (s *Session) GameElapsed(now time.Time) time.Duration {
	return now.Sub(s.GameStartedAt)
}

// CurrentLocation returns the session's location within the game, or nil
// when the index is out of range.
func (s *Session) CurrentLocation(g *geohunt.Game) *geohunt.Location {
	if g == nil || s.LocationIndex < 0 || s.LocationIndex >= len(g.Locations) {
		return nil
	}
	return &g.Locations[s.LocationIndex]
}

// CurrentTrial returns the session's trial within the game, or nil when
// either index is out of range.
func (s *Session) CurrentTrial(g *geohunt.Game) *geohunt.Trial {
	loc := s.CurrentLocation(g)
	if loc == nil || s.TrialIndex < 0 || s.TrialIndex >= len(loc.Trials) {
		return nil
	}
	return &loc.Trials[s.TrialIndex]
}
