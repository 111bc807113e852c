package engine

import (
	"time"

	"github.com/trailplay/geohunt/internal/geo"
	"github.com/trailplay/geohunt/internal/geohunt"
)

// Status is a read-only view of the engine for display.
type Status struct {
	State        State
	GameTitle    string
	LocationName string
	Narrative    string
	TrialID      string
	TrialType    geohunt.TrialType
	Question     string
	Options      []string
	Score        int
	HintsUsed    int
	HintsLeft    int
	TrialElapsed time.Duration
	GameElapsed  time.Duration
	LatestFix    *geo.Sample
	Completed    bool
}

// Status snapshots the current position, totals, and timers.
func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()

	st := Status{State: e.state}
	if e.game == nil || e.team == nil || e.sess == nil {
		return st
	}

	now := e.now()
	st.GameTitle = e.game.Title
	st.Score = e.team.Score
	st.HintsUsed = e.team.HintsUsed
	st.TrialElapsed = e.sess.TrialElapsed(now)
	st.GameElapsed = e.sess.GameElapsed(now)
	st.Completed = e.team.Completed

	if loc := e.sess.CurrentLocation(e.game); loc != nil {
		st.LocationName = loc.Name
		st.Narrative = loc.Narrative
	}
	if trial := e.sess.CurrentTrial(e.game); trial != nil {
		st.TrialID = trial.ID
		st.TrialType = trial.Type
		st.Question = trial.Question
		st.Options = trial.Options
		st.HintsLeft = trial.MaxHints - e.team.HintsUsedFor(trial.ID)
		if st.HintsLeft < 0 {
			st.HintsLeft = 0
		}
	}
	if sample, ok := e.sampler.Latest(); ok {
		st.LatestFix = &sample
	}
	return st
}
