// Package geohunt defines the core domain types for the scavenger-hunt
// game: games, locations, trials, teams, and progress records. It carries
// the wire representation used by the remote authority and the local
// snapshot, and the pure answer evaluator.
package geohunt

import (
	"errors"
	"time"
)

var (
	ErrUnsupportedTrialType = errors.New("unsupported trial type")
	ErrNoContent            = errors.New("game has no locations")
)

// TrialType identifies how a trial is answered and judged.
type TrialType string

const (
	TrialTextUnique  TrialType = "text-unique"
	TrialTextNumeric TrialType = "text-numeric"
	TrialOptions     TrialType = "options"
	TrialOrdering    TrialType = "ordering"
	TrialQR          TrialType = "qr"
	TrialGPS         TrialType = "gps"
)

// Game is the immutable content of a hunt as fetched for a session.
// Locations are pre-sorted by sequence index.
type Game struct {
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	Narrative string     `json:"narrative,omitempty"`
	MediaURL  string     `json:"mediaUrl,omitempty"`
	Locations []Location `json:"locations"`
}

// Location is one ordered stop of a game. Trials are pre-sorted by
// sequence index.
type Location struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	Narrative string  `json:"narrative,omitempty"`
	MediaURL  string  `json:"mediaUrl,omitempty"`
	Trials    []Trial `json:"trials"`
}

// Trial is a single challenge within a location. Only the fields for its
// Type are meaningful.
type Trial struct {
	ID        string    `json:"id"`
	Type      TrialType `json:"type"`
	Narrative string    `json:"narrative,omitempty"`
	MediaURL  string    `json:"mediaUrl,omitempty"`
	Question  string    `json:"question,omitempty"`

	// text-unique / text-numeric
	Answer string `json:"answer,omitempty"`

	// options
	Options       []string `json:"options,omitempty"`
	CorrectOption int      `json:"correctOption,omitempty"`

	// ordering
	CorrectOrder []string `json:"correctOrder,omitempty"`

	// qr
	QRContent string `json:"qrContent,omitempty"`

	// gps
	TargetLat       float64 `json:"targetLat,omitempty"`
	TargetLon       float64 `json:"targetLon,omitempty"`
	ToleranceMeters float64 `json:"toleranceMeters,omitempty"`

	Hints    []string `json:"hints,omitempty"`
	HintCost int      `json:"hintCost,omitempty"`
	MaxHints int      `json:"maxHints,omitempty"`
}

// Team is the working copy of the authority's team record. Score, time
// and hint totals are advisory between round-trips: whatever the
// authority returns after a mutation replaces them wholesale.
type Team struct {
	ID                string             `json:"id"`
	Name              string             `json:"name"`
	GameID            string             `json:"gameId"`
	Score             int                `json:"score"`
	TotalTimeSeconds  int                `json:"totalTimeSeconds"`
	HintsUsed         int                `json:"hintsUsed"`
	HintsPerTrial     map[string]int     `json:"hintsPerTrial,omitempty"`
	Progress          []ProgressLogEntry `json:"progress,omitempty"`
	CurrentLocationID string             `json:"currentLocationId,omitempty"`
	CurrentTrialID    string             `json:"currentTrialId,omitempty"`
	Completed         bool               `json:"completed"`
	LastActivity      time.Time          `json:"lastActivity"`
}

// HintsUsedFor returns how many hints the team has spent on a trial.
func (t *Team) HintsUsedFor(trialID string) int {
	if t.HintsPerTrial == nil {
		return 0
	}
	return t.HintsPerTrial[trialID]
}

// ProgressLogEntry records one successfully completed trial. Append-only.
type ProgressLogEntry struct {
	ID          string    `json:"id"`
	TrialID     string    `json:"trialId"`
	LocationID  string    `json:"locationId"`
	TimeSeconds int       `json:"timeSeconds"`
	Score       int       `json:"score"`
	HintsUsed   int       `json:"hintsUsed"`
	CompletedAt time.Time `json:"completedAt"`
}

// LocationByID returns the index of the location with the given id, or -1.
func (g *Game) LocationByID(id string) int {
	for i := range g.Locations {
		if g.Locations[i].ID == id {
			return i
		}
	}
	return -1
}

// TrialByID returns the index of the trial with the given id, or -1.
func (l *Location) TrialByID(id string) int {
	for i := range l.Trials {
		if l.Trials[i].ID == id {
			return i
		}
	}
	return -1
}
