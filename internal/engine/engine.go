// Package engine implements the game-progress state machine: trial and
// location sequencing, hint/score/time accounting, local persistence,
// and resume reconciliation against the remote authority.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/trailplay/geohunt/internal/authority"
	"github.com/trailplay/geohunt/internal/geo"
	"github.com/trailplay/geohunt/internal/geohunt"
	"github.com/trailplay/geohunt/internal/snapshot"
)

// State is the engine's position in the progress state machine.
type State string

const (
	StateIdle             State = "idle"
	StateLocationIntro    State = "location_intro"
	StateTrialActive      State = "trial_active"
	StateTrialEvaluating  State = "trial_evaluating"
	StateLocationComplete State = "location_complete"
	StateGameComplete     State = "game_complete"
	StateSuspended        State = "suspended"
)

var (
	ErrNoActiveTrial    = errors.New("no active trial")
	ErrRequestInFlight  = errors.New("a request is already in flight")
	ErrHintsExhausted   = errors.New("no hints left for this trial")
	ErrHintDeclined     = errors.New("hint declined")
	ErrNoSession        = errors.New("no saved session to resume")
	ErrNoScan           = errors.New("no code scanned yet")
	ErrNotLocationIntro = errors.New("not showing a location intro")
)

// Scanner is the QR-decode boundary. Start must invoke the callback for
// every decoded payload until Stop is called.
type Scanner interface {
	Start(onDecode func(payload string)) error
	Stop()
}

// SnapshotStore is the durable local store the engine persists to.
// Implemented by snapshot.Store.
type SnapshotStore interface {
	Save(ctx context.Context, snap snapshot.Snapshot) error
	Load(ctx context.Context) (snapshot.Snapshot, bool, error)
	Clear(ctx context.Context) error
}

// Engine drives a single team through a game. Its methods are meant to
// be called from one goroutine (the frontend's input loop); provider
// callbacks are serialized internally.
type Engine struct {
	authority authority.Client
	store     SnapshotStore
	sampler   *geo.Sampler
	positions geo.Provider
	scanner   Scanner
	notifier  *Notifier
	logger    *slog.Logger
	now       func() time.Time

	mu       sync.Mutex
	state    State
	game     *geohunt.Game
	team     *geohunt.Team
	sess     *Session
	token    string
	inFlight bool
}

func New(client authority.Client, store SnapshotStore, sampler *geo.Sampler, positions geo.Provider, scanner Scanner, notifier *Notifier, logger *slog.Logger) *Engine {
	return &Engine{
		authority: client,
		store:     store,
		sampler:   sampler,
		positions: positions,
		scanner:   scanner,
		notifier:  notifier,
		logger:    logger,
		now:       time.Now,
		state:     StateIdle,
	}
}

// State returns the current machine state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Join fetches the game content, creates a team on the authority, and
// starts the game at the first location.
func (e *Engine) Join(ctx context.Context, teamName, gameID string) error {
	game, err := e.authority.GameDetails(ctx, gameID)
	if err != nil {
		return fmt.Errorf("fetching game: %w", err)
	}
	if len(game.Locations) == 0 {
		return geohunt.ErrNoContent
	}
	created, err := e.authority.CreateTeam(ctx, teamName, gameID)
	if err != nil {
		return fmt.Errorf("creating team: %w", err)
	}
	return e.Start(ctx, game, created.Team, created.Token)
}

// Start begins a fresh session for the given game and team. The team is
// expected to be newly created (zero score, hints, and log).
func (e *Engine) Start(ctx context.Context, game *geohunt.Game, team *geohunt.Team, token string) error {
	if game == nil || len(game.Locations) == 0 {
		return geohunt.ErrNoContent
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.game = game
	e.team = team
	e.token = token
	e.sess = newSession(e.now())
	return e.enterLocationOrFinish(ctx, 0)
}

// Resume reconstructs the session from the local snapshot and the
// authority's team record. Fetch failures leave the snapshot intact so
// a later attempt can still resume.
func (e *Engine) Resume(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	snap, ok, err := e.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("loading snapshot: %w", err)
	}
	if !ok {
		return ErrNoSession
	}

	e.state = StateSuspended

	teamID := snap.TeamID
	if snap.Token != "" {
		e.authority.SetToken(snap.Token)
		e.token = snap.Token
		claims, err := authority.ParseSessionToken(snap.Token)
		switch {
		case errors.Is(err, authority.ErrTokenExpired):
			e.notifier.Publish(Notice{Type: NoticeWarning, Message: "saved session token has expired; the server may ask you to rejoin"})
		case err == nil && teamID == "":
			teamID = claims.TeamID
		}
	}

	team, err := e.authority.TeamState(ctx, teamID)
	if err != nil {
		e.state = StateIdle
		e.notifier.Publish(Notice{Type: NoticeWarning, Message: "could not reach the game server; your saved progress is kept"})
		return fmt.Errorf("fetching team state: %w", err)
	}
	game, err := e.authority.GameDetails(ctx, team.GameID)
	if err != nil {
		e.state = StateIdle
		e.notifier.Publish(Notice{Type: NoticeWarning, Message: "could not reach the game server; your saved progress is kept"})
		return fmt.Errorf("fetching game: %w", err)
	}

	if len(game.Locations) == 0 {
		e.state = StateIdle
		return geohunt.ErrNoContent
	}

	e.game = game
	e.team = team
	e.sess = newSession(e.now())

	// Total elapsed game time survives restarts: the start is derived
	// from the authority's last-activity stamp minus accumulated time.
	if !team.LastActivity.IsZero() {
		e.sess.GameStartedAt = team.LastActivity.Add(-time.Duration(team.TotalTimeSeconds) * time.Second)
	} else if !snap.GameStartedAt.IsZero() {
		e.sess.GameStartedAt = snap.GameStartedAt
	}

	if team.Completed {
		e.state = StateGameComplete
		e.notifier.Publish(Notice{Type: NoticeGameComplete, Score: team.Score, Message: "game already completed"})
		return nil
	}

	li := game.LocationByID(team.CurrentLocationID)
	fallback := false
	if li < 0 {
		li = 0
		fallback = true
	}
	ti := 0
	if !fallback {
		ti = game.Locations[li].TrialByID(team.CurrentTrialID)
		if ti < 0 {
			ti = 0
			fallback = true
		}
	}
	if fallback {
		e.logger.Warn("resume fallback: saved position missing from game content",
			"location_id", team.CurrentLocationID, "trial_id", team.CurrentTrialID)
		e.notifier.Publish(Notice{Type: NoticeResumeFallback, Message: "saved position no longer exists; restarting from the nearest point"})
	}

	loc := &game.Locations[li]
	if len(loc.Trials) == 0 {
		return e.enterLocationOrFinish(ctx, li)
	}
	if ti == 0 && loc.Narrative != "" {
		return e.enterLocation(ctx, li)
	}
	return e.enterTrial(ctx, li, ti)
}

// AcknowledgeIntro moves from a location intro to its first trial.
func (e *Engine) AcknowledgeIntro(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != StateLocationIntro {
		return ErrNotLocationIntro
	}
	return e.enterTrial(ctx, e.sess.LocationIndex, e.sess.TrialIndex)
}

// ActiveGames lists the games open for joining.
func (e *Engine) ActiveGames(ctx context.Context) ([]authority.GameSummary, error) {
	return e.authority.ActiveGames(ctx)
}

// SelectOption records an in-progress option selection.
func (e *Engine) SelectOption(index int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.sess != nil {
		e.sess.SelectedOption = index
	}
}

// SetOrdering records the in-progress ordering permutation.
func (e *Engine) SetOrdering(order []string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.sess != nil {
		e.sess.Ordering = order
	}
}

// SelectedOption returns the in-progress option selection, -1 if none.
func (e *Engine) SelectedOption() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.sess == nil {
		return -1
	}
	return e.sess.SelectedOption
}

// Ordering returns the in-progress ordering permutation.
func (e *Engine) Ordering() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.sess == nil {
		return nil
	}
	return append([]string(nil), e.sess.Ordering...)
}

// RecordScan stores a decoded QR payload for the active qr trial. Also
// used as the scanner callback.
func (e *Engine) RecordScan(payload string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != StateTrialActive || e.sess == nil {
		return
	}
	if trial := e.sess.CurrentTrial(e.game); trial != nil && trial.Type == geohunt.TrialQR {
		e.sess.LastQRDecode = payload
	}
}

// CheckLocation runs the geofence check for the active gps trial. Only
// a clean result is retained for submission; NoFix and AccuracyTooLow
// block the answer instead.
func (e *Engine) CheckLocation() (geo.GeofenceResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != StateTrialActive {
		return geo.GeofenceResult{}, ErrNoActiveTrial
	}
	trial := e.sess.CurrentTrial(e.game)
	if trial == nil || trial.Type != geohunt.TrialGPS {
		return geo.GeofenceResult{}, ErrNoActiveTrial
	}

	result, err := e.sampler.CheckGeofence(trial.TargetLat, trial.TargetLon, trial.ToleranceMeters)
	if err != nil {
		return result, err
	}
	e.sess.LastGeofence = &result
	return result, nil
}

// SubmitAnswer judges the player's input and reports the verdict to the
// authority. The authority's returned totals replace the local copies;
// local optimistic values are never merged.
func (e *Engine) SubmitAnswer(ctx context.Context, in geohunt.Input) (bool, error) {
	e.mu.Lock()
	if e.state != StateTrialActive {
		e.mu.Unlock()
		return false, ErrNoActiveTrial
	}
	if e.inFlight {
		e.mu.Unlock()
		return false, ErrRequestInFlight
	}

	trial := *e.sess.CurrentTrial(e.game)
	loc := e.sess.CurrentLocation(e.game)

	switch trial.Type {
	case geohunt.TrialOptions:
		e.sess.SelectedOption = in.Option
	case geohunt.TrialOrdering:
		e.sess.Ordering = in.Order
	case geohunt.TrialQR:
		if e.sess.LastQRDecode == "" {
			e.mu.Unlock()
			return false, ErrNoScan
		}
		in.QRDecode = e.sess.LastQRDecode
	case geohunt.TrialGPS:
		if e.sess.LastGeofence == nil {
			e.mu.Unlock()
			return false, geo.ErrNoFix
		}
		in.Geofence = e.sess.LastGeofence
	}

	correct, err := geohunt.Evaluate(trial, in)
	if err != nil {
		e.mu.Unlock()
		return false, err
	}

	elapsed := int(e.sess.TrialElapsed(e.now()).Seconds())
	hintsUsed := e.team.HintsUsedFor(trial.ID)
	teamID, locID := e.team.ID, loc.ID

	e.state = StateTrialEvaluating
	e.inFlight = true
	e.mu.Unlock()

	result, err := e.authority.ValidateAnswer(ctx, teamID, trial.ID, correct, elapsed, hintsUsed)

	e.mu.Lock()
	defer e.mu.Unlock()
	e.inFlight = false

	if err != nil {
		// Remote failure: session stays put so the player can retry.
		e.state = StateTrialActive
		e.notifier.Publish(Notice{Type: NoticeWarning, Message: "could not reach the game server; try again"})
		return false, err
	}

	if !correct || !result.Success {
		e.state = StateTrialActive
		e.sess.TrialStartedAt = e.now()
		e.notifier.Publish(Notice{Type: NoticeWrongAnswer, TrialID: trial.ID, Message: result.Message})
		return false, nil
	}

	e.applyAnswerResult(result)
	e.team.Progress = append(e.team.Progress, geohunt.ProgressLogEntry{
		ID:          uuid.NewString(),
		TrialID:     trial.ID,
		LocationID:  locID,
		TimeSeconds: result.TrialTimeTaken,
		Score:       result.ScoreEarned,
		HintsUsed:   hintsUsed,
		CompletedAt: e.now(),
	})
	e.notifier.Publish(Notice{Type: NoticeTrialCompleted, TrialID: trial.ID, Score: result.ScoreEarned})
	e.persist(ctx)

	return true, e.advanceTrial(ctx)
}

// RequestHint charges one hint for the active trial after the caller
// confirms the cost, and returns the hint text.
func (e *Engine) RequestHint(ctx context.Context, confirm func(cost int) bool) (string, error) {
	e.mu.Lock()
	if e.state != StateTrialActive {
		e.mu.Unlock()
		return "", ErrNoActiveTrial
	}
	if e.inFlight {
		e.mu.Unlock()
		return "", ErrRequestInFlight
	}

	trial := *e.sess.CurrentTrial(e.game)
	used := e.team.HintsUsedFor(trial.ID)
	if used >= trial.MaxHints {
		e.mu.Unlock()
		return "", ErrHintsExhausted
	}
	teamID := e.team.ID
	e.mu.Unlock()

	if confirm != nil && !confirm(trial.HintCost) {
		return "", ErrHintDeclined
	}

	e.mu.Lock()
	if e.state != StateTrialActive || e.inFlight {
		e.mu.Unlock()
		return "", ErrRequestInFlight
	}
	e.inFlight = true
	e.mu.Unlock()

	result, err := e.authority.LogHintUsed(ctx, teamID, trial.ID, trial.HintCost)

	e.mu.Lock()
	defer e.mu.Unlock()
	e.inFlight = false

	if err != nil {
		e.notifier.Publish(Notice{Type: NoticeWarning, Message: "could not reach the game server; try again"})
		return "", err
	}
	if !result.Success {
		e.notifier.Publish(Notice{Type: NoticeWarning, Message: result.Message})
		return "", fmt.Errorf("hint rejected: %s", result.Message)
	}

	e.team.Score = result.NewScore
	e.team.HintsUsed = result.TotalHintsUsed
	if result.HintsPerTrial != nil {
		e.team.HintsPerTrial = result.HintsPerTrial
	} else {
		if e.team.HintsPerTrial == nil {
			e.team.HintsPerTrial = make(map[string]int)
		}
		e.team.HintsPerTrial[trial.ID]++
	}
	e.sess.HintsThisTrial++

	hint := ""
	if used < len(trial.Hints) {
		hint = trial.Hints[used]
	}
	e.notifier.Publish(Notice{Type: NoticeHint, TrialID: trial.ID, Message: hint})
	e.persist(ctx)
	return hint, nil
}

// CompleteGame retries the final commit after a remote failure left the
// machine in LocationComplete with no locations remaining.
func (e *Engine) CompleteGame(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != StateLocationComplete {
		return fmt.Errorf("game is not awaiting completion")
	}
	return e.completeGame(ctx)
}

// Abandon clears the session and the persisted snapshot, stopping all
// observers. The authority's team record is untouched.
func (e *Engine) Abandon(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.stopProviders()
	if err := e.store.Clear(ctx); err != nil {
		e.logger.Warn("clearing snapshot failed", "error", err)
	}
	e.game = nil
	e.team = nil
	e.sess = nil
	e.token = ""
	e.state = StateIdle
	e.notifier.Publish(Notice{Type: NoticeStateChanged, State: StateIdle})
}

// --- internal transitions; callers hold e.mu ---

// enterLocationOrFinish enters the first location at or after index li
// that has trials, treating empty locations as immediately complete. If
// none remain it commits game completion.
func (e *Engine) enterLocationOrFinish(ctx context.Context, li int) error {
	for li < len(e.game.Locations) {
		if len(e.game.Locations[li].Trials) == 0 {
			li++
			continue
		}
		return e.enterLocation(ctx, li)
	}
	return e.completeGame(ctx)
}

func (e *Engine) enterLocation(ctx context.Context, li int) error {
	loc := &e.game.Locations[li]
	e.sess.resetTrial(li, 0, e.now())
	e.team.CurrentLocationID = loc.ID
	e.team.CurrentTrialID = loc.Trials[0].ID

	if loc.Narrative != "" {
		e.stopProviders()
		e.state = StateLocationIntro
		e.notifier.Publish(Notice{Type: NoticeStateChanged, State: StateLocationIntro, Message: loc.Name})
		e.persist(ctx)
		e.syncPosition(ctx)
		return nil
	}
	return e.enterTrial(ctx, li, 0)
}

func (e *Engine) enterTrial(ctx context.Context, li, ti int) error {
	loc := &e.game.Locations[li]
	trial := &loc.Trials[ti]

	e.sess.resetTrial(li, ti, e.now())
	e.team.CurrentLocationID = loc.ID
	e.team.CurrentTrialID = trial.ID

	e.startProviders(trial)
	e.state = StateTrialActive
	e.notifier.Publish(Notice{Type: NoticeStateChanged, State: StateTrialActive, TrialID: trial.ID})
	e.persist(ctx)
	e.syncPosition(ctx)
	return nil
}

func (e *Engine) advanceTrial(ctx context.Context) error {
	loc := e.sess.CurrentLocation(e.game)
	if e.sess.TrialIndex+1 < len(loc.Trials) {
		return e.enterTrial(ctx, e.sess.LocationIndex, e.sess.TrialIndex+1)
	}
	return e.completeLocation(ctx)
}

func (e *Engine) completeLocation(ctx context.Context) error {
	e.stopProviders()
	e.state = StateLocationComplete
	e.notifier.Publish(Notice{Type: NoticeStateChanged, State: StateLocationComplete})
	return e.enterLocationOrFinish(ctx, e.sess.LocationIndex+1)
}

// completeGame commits the one-time completion and ranking record. The
// authority treats a duplicate insert as already-done, and a locally
// completed team is never re-committed, so calling this twice cannot
// produce a second ranking entry.
func (e *Engine) completeGame(ctx context.Context) error {
	e.stopProviders()

	if e.team.Completed {
		e.state = StateGameComplete
		e.notifier.Publish(Notice{Type: NoticeGameComplete, Score: e.team.Score, Message: "game already completed"})
		return nil
	}

	finalScore := e.team.Score
	completionTime := time.Duration(e.team.TotalTimeSeconds) * time.Second

	team, err := e.authority.MarkGameCompleted(ctx, e.team.ID, finalScore, completionTime)
	if err != nil {
		e.state = StateLocationComplete
		e.notifier.Publish(Notice{Type: NoticeWarning, Message: "could not record completion; try again"})
		return fmt.Errorf("marking game completed: %w", err)
	}

	e.team = team
	e.team.Completed = true
	e.state = StateGameComplete
	e.notifier.Publish(Notice{
		Type:    NoticeGameComplete,
		Score:   e.team.Score,
		Message: fmt.Sprintf("final score %d, total time %ds", e.team.Score, e.team.TotalTimeSeconds),
	})
	e.persist(ctx)
	return nil
}

// applyAnswerResult replaces local totals with the authority's.
func (e *Engine) applyAnswerResult(r authority.ValidateAnswerResult) {
	e.team.Score = r.NewScore
	e.team.TotalTimeSeconds = r.NewTotalTime
	e.team.HintsUsed = r.TotalHintsUsed
	if r.HintsPerTrial != nil {
		e.team.HintsPerTrial = r.HintsPerTrial
	}
}

// startProviders stops both observers, then starts the one the trial
// type needs. At most one watch and one scan may ever be active.
func (e *Engine) startProviders(trial *geohunt.Trial) {
	e.stopProviders()

	switch trial.Type {
	case geohunt.TrialGPS:
		if err := e.sampler.Watch(e.positions); err != nil {
			e.logger.Warn("starting position watch failed", "error", err)
			e.notifier.Publish(Notice{Type: NoticeWarning, Message: "position updates unavailable"})
		}
	case geohunt.TrialQR:
		if err := e.scanner.Start(e.RecordScan); err != nil {
			e.logger.Warn("starting scanner failed", "error", err)
			e.notifier.Publish(Notice{Type: NoticeWarning, Message: "scanner unavailable"})
		}
	}
}

func (e *Engine) stopProviders() {
	e.sampler.Stop()
	e.scanner.Stop()
}

// persist writes the snapshot best-effort: a failure is logged and the
// in-memory state stands.
func (e *Engine) persist(ctx context.Context) {
	if e.team == nil || e.sess == nil {
		return
	}
	snap := snapshot.Snapshot{
		TeamID:        e.team.ID,
		GameID:        e.team.GameID,
		Token:         e.token,
		LocationID:    e.team.CurrentLocationID,
		TrialID:       e.team.CurrentTrialID,
		GameStartedAt: e.sess.GameStartedAt,
		Team:          e.team,
	}
	if err := e.store.Save(ctx, snap); err != nil {
		e.logger.Warn("saving snapshot failed", "error", err)
	}
}

// syncPosition pushes the current pointers to the authority so resume
// from another install sees them. Best-effort.
func (e *Engine) syncPosition(ctx context.Context) {
	locID, trialID := e.team.CurrentLocationID, e.team.CurrentTrialID
	update := authority.TeamUpdate{CurrentLocationID: &locID, CurrentTrialID: &trialID}
	team, err := e.authority.UpdateTeamState(ctx, e.team.ID, update)
	if err != nil {
		e.logger.Warn("syncing position to authority failed", "error", err)
		return
	}
	e.team.LastActivity = team.LastActivity
}
