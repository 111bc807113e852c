// Package authority talks to the remote backend that is the system of
// record for team score, hints, completion, and ranking. The engine only
// sees the Client interface; HTTPClient is the production implementation.
package authority

import (
	"context"
	"errors"
	"time"

	"github.com/trailplay/geohunt/internal/geohunt"
)

var (
	// ErrUnavailable wraps network failures and backend 5xx responses.
	// The caller's local state must be left intact so the operation can
	// be retried.
	ErrUnavailable = errors.New("remote authority unavailable")

	ErrNotFound = errors.New("not found")
)

// GameSummary is one entry of the active-games listing.
type GameSummary struct {
	ID            string `json:"id"`
	Title         string `json:"title"`
	LocationCount int    `json:"locationCount"`
}

// ValidateAnswerResult is the authority's verdict on a trial resolution.
// Score, time, and hint totals returned here replace the local copies.
type ValidateAnswerResult struct {
	Success        bool           `json:"success"`
	NewScore       int            `json:"newScore"`
	NewTotalTime   int            `json:"newTotalTime"`
	TotalHintsUsed int            `json:"totalHintsUsed"`
	HintsPerTrial  map[string]int `json:"hintsPerTrial,omitempty"`
	ScoreEarned    int            `json:"scoreEarned"`
	TrialTimeTaken int            `json:"trialTimeTaken"`
	Message        string         `json:"message,omitempty"`
}

// HintResult is the authority's response to a hint charge.
type HintResult struct {
	Success        bool           `json:"success"`
	NewScore       int            `json:"newScore"`
	TotalHintsUsed int            `json:"totalHintsUsed"`
	HintsPerTrial  map[string]int `json:"hintsPerTrial,omitempty"`
	Message        string         `json:"message,omitempty"`
}

// TeamUpdate is a partial team-state update. Nil fields are not sent;
// the authority stamps last-activity server-side on every update.
type TeamUpdate struct {
	CurrentLocationID *string `json:"currentLocationId,omitempty"`
	CurrentTrialID    *string `json:"currentTrialId,omitempty"`
}

// CreatedTeam is the result of joining a game: the team record plus the
// session token authenticating subsequent calls.
type CreatedTeam struct {
	Team  *geohunt.Team `json:"team"`
	Token string        `json:"token"`
}

type Client interface {
	ActiveGames(ctx context.Context) ([]GameSummary, error)
	GameDetails(ctx context.Context, gameID string) (*geohunt.Game, error)
	CreateTeam(ctx context.Context, name, gameID string) (CreatedTeam, error)
	TeamState(ctx context.Context, teamID string) (*geohunt.Team, error)
	UpdateTeamState(ctx context.Context, teamID string, update TeamUpdate) (*geohunt.Team, error)
	ValidateAnswer(ctx context.Context, teamID, trialID string, correct bool, elapsedSeconds, hintsUsedInTrial int) (ValidateAnswerResult, error)
	LogHintUsed(ctx context.Context, teamID, trialID string, hintCost int) (HintResult, error)
	MarkGameCompleted(ctx context.Context, teamID string, finalScore int, completionTime time.Duration) (*geohunt.Team, error)

	// SetToken installs the session token for authenticated calls,
	// e.g. when resuming from a persisted snapshot.
	SetToken(token string)
}
