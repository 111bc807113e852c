package authority

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/trailplay/geohunt/internal/geohunt"
)

// HTTPClient implements Client against the authority's JSON API.
type HTTPClient struct {
	base   *url.URL
	http   *http.Client
	logger *slog.Logger

	mu    sync.Mutex
	token string
}

func NewHTTPClient(baseURL string, timeout time.Duration, logger *slog.Logger) (*HTTPClient, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing authority url: %w", err)
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPClient{
		base:   base,
		http:   &http.Client{Timeout: timeout},
		logger: logger,
	}, nil
}

func (c *HTTPClient) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

func (c *HTTPClient) bearer() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token
}

// errorResponse is the authority's uniform error body.
type errorResponse struct {
	Error string `json:"error"`
}

// do sends one JSON request and decodes a 2xx body into out. Transport
// failures and 5xx statuses map to ErrUnavailable; 404 maps to
// ErrNotFound; other statuses surface the body's error message.
func (c *HTTPClient) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	u := c.base.JoinPath(path)
	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if tok := c.bearer(); tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 500:
		return fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case resp.StatusCode >= 400:
		var er errorResponse
		if err := json.NewDecoder(resp.Body).Decode(&er); err == nil && er.Error != "" {
			return fmt.Errorf("authority rejected request: %s", er.Error)
		}
		return fmt.Errorf("authority rejected request: status %d", resp.StatusCode)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}
	return nil
}

func (c *HTTPClient) ActiveGames(ctx context.Context) ([]GameSummary, error) {
	var games []GameSummary
	if err := c.do(ctx, http.MethodGet, "/api/games", nil, &games); err != nil {
		return nil, err
	}
	return games, nil
}

func (c *HTTPClient) GameDetails(ctx context.Context, gameID string) (*geohunt.Game, error) {
	var game geohunt.Game
	if err := c.do(ctx, http.MethodGet, "/api/games/"+gameID, nil, &game); err != nil {
		return nil, err
	}
	return &game, nil
}

func (c *HTTPClient) CreateTeam(ctx context.Context, name, gameID string) (CreatedTeam, error) {
	req := map[string]string{"name": name, "gameId": gameID}
	var created CreatedTeam
	if err := c.do(ctx, http.MethodPost, "/api/teams", req, &created); err != nil {
		return CreatedTeam{}, err
	}
	if created.Token != "" {
		c.SetToken(created.Token)
	}
	return created, nil
}

func (c *HTTPClient) TeamState(ctx context.Context, teamID string) (*geohunt.Team, error) {
	var team geohunt.Team
	if err := c.do(ctx, http.MethodGet, "/api/teams/"+teamID, nil, &team); err != nil {
		return nil, err
	}
	return &team, nil
}

func (c *HTTPClient) UpdateTeamState(ctx context.Context, teamID string, update TeamUpdate) (*geohunt.Team, error) {
	var team geohunt.Team
	if err := c.do(ctx, http.MethodPatch, "/api/teams/"+teamID, update, &team); err != nil {
		return nil, err
	}
	return &team, nil
}

func (c *HTTPClient) ValidateAnswer(ctx context.Context, teamID, trialID string, correct bool, elapsedSeconds, hintsUsedInTrial int) (ValidateAnswerResult, error) {
	req := map[string]any{
		"trialId":          trialID,
		"isCorrect":        correct,
		"elapsedSeconds":   elapsedSeconds,
		"hintsUsedInTrial": hintsUsedInTrial,
	}
	var result ValidateAnswerResult
	if err := c.do(ctx, http.MethodPost, "/api/teams/"+teamID+"/answers", req, &result); err != nil {
		return ValidateAnswerResult{}, err
	}
	return result, nil
}

func (c *HTTPClient) LogHintUsed(ctx context.Context, teamID, trialID string, hintCost int) (HintResult, error) {
	req := map[string]any{
		"trialId":  trialID,
		"hintCost": hintCost,
	}
	var result HintResult
	if err := c.do(ctx, http.MethodPost, "/api/teams/"+teamID+"/hints", req, &result); err != nil {
		return HintResult{}, err
	}
	return result, nil
}

// MarkGameCompleted commits the one-time completion and ranking record.
// The authority enforces uniqueness on (game, team); a 409 means the
// ranking row already exists, which is success for the caller, so the
// current team record is fetched and returned instead of an error.
func (c *HTTPClient) MarkGameCompleted(ctx context.Context, teamID string, finalScore int, completionTime time.Duration) (*geohunt.Team, error) {
	req := map[string]any{
		"finalScore":     finalScore,
		"completionTime": int(completionTime.Seconds()),
	}

	u := c.base.JoinPath("/api/teams/" + teamID + "/complete")
	buf, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), bytes.NewReader(buf))
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if tok := c.bearer(); tok != "" {
		httpReq.Header.Set("Authorization", "Bearer "+tok)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusConflict:
		c.logger.Info("completion already recorded", "team_id", teamID)
		return c.TeamState(ctx, teamID)
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrNotFound
	case resp.StatusCode >= 400:
		var er errorResponse
		if err := json.NewDecoder(resp.Body).Decode(&er); err == nil && er.Error != "" {
			return nil, fmt.Errorf("authority rejected completion: %s", er.Error)
		}
		return nil, fmt.Errorf("authority rejected completion: status %d", resp.StatusCode)
	}

	var team geohunt.Team
	if err := json.NewDecoder(resp.Body).Decode(&team); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	return &team, nil
}
