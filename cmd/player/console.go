package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/trailplay/geohunt/internal/engine"
	"github.com/trailplay/geohunt/internal/geo"
	"github.com/trailplay/geohunt/internal/geohunt"
)

// console is the terminal frontend: it reads player commands from stdin
// and prints engine notices. All engine calls happen on its loop.
type console struct {
	eng       *engine.Engine
	positions *manualProvider
	scanner   *manualScanner
	notifier  *engine.Notifier
	out       io.Writer
	in        *bufio.Scanner
}

func newConsole(eng *engine.Engine, positions *manualProvider, scanner *manualScanner, notifier *engine.Notifier, out io.Writer) *console {
	return &console{
		eng:       eng,
		positions: positions,
		scanner:   scanner,
		notifier:  notifier,
		out:       out,
		in:        bufio.NewScanner(os.Stdin),
	}
}

func (c *console) printf(format string, args ...any) {
	fmt.Fprintf(c.out, format+"\n", args...)
}

// watchNotices prints engine notices and a periodic trial clock.
func (c *console) watchNotices(ctx context.Context) {
	ch := c.notifier.Subscribe()
	defer c.notifier.Unsubscribe(ch)

	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case n := <-ch:
			c.printNotice(n)
		case <-ticker.C:
			if st := c.eng.Status(); st.State == engine.StateTrialActive {
				c.printf("[clock] %s in trial, %s in game",
					st.TrialElapsed.Round(time.Second), st.GameElapsed.Round(time.Second))
			}
		}
	}
}

func (c *console) printNotice(n engine.Notice) {
	switch n.Type {
	case engine.NoticeTrialCompleted:
		c.printf("*** trial solved! +%d points", n.Score)
	case engine.NoticeWrongAnswer:
		if n.Message != "" {
			c.printf("not quite: %s", n.Message)
		} else {
			c.printf("not quite, try again")
		}
	case engine.NoticeHint:
		// Printed inline by the hint command.
	case engine.NoticeGameComplete:
		c.printf("*** game complete! %s", n.Message)
	case engine.NoticeResumeFallback:
		c.printf("! %s", n.Message)
	case engine.NoticeWarning:
		c.printf("! %s", n.Message)
	case engine.NoticeStateChanged:
		if n.State == engine.StateLocationIntro {
			c.printf("--- arrived: %s (type 'intro' to continue)", n.Message)
		}
	}
}

func (c *console) run(ctx context.Context) error {
	c.printf("geohunt player — type 'help' for commands")

	for c.in.Scan() {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		line := strings.TrimSpace(c.in.Text())
		if line == "" {
			continue
		}
		cmd, rest, _ := strings.Cut(line, " ")
		if cmd == "quit" || cmd == "exit" {
			return nil
		}
		c.dispatch(ctx, cmd, strings.TrimSpace(rest))
	}
	return c.in.Err()
}

func (c *console) dispatch(ctx context.Context, cmd, rest string) {
	var err error
	switch cmd {
	case "help":
		c.help()
	case "games":
		err = c.listGames(ctx)
	case "join":
		err = c.join(ctx, rest)
	case "resume":
		err = c.eng.Resume(ctx)
	case "intro":
		err = c.eng.AcknowledgeIntro(ctx)
	case "answer":
		err = c.submit(ctx, geohunt.Input{Text: rest})
	case "select":
		err = c.selectOption(rest)
	case "order":
		c.eng.SetOrdering(splitList(rest))
		c.printf("ordering recorded")
	case "submit":
		err = c.submitStored(ctx)
	case "scan":
		if !c.scanner.Inject(rest) {
			c.printf("no scanner active for this trial")
		}
	case "fix":
		err = c.fix(rest)
	case "check":
		err = c.check()
	case "hint":
		err = c.hint(ctx)
	case "status":
		c.status()
	case "abandon":
		c.eng.Abandon(ctx)
		c.printf("session abandoned")
	default:
		c.printf("unknown command %q, type 'help'", cmd)
	}
	if err != nil {
		c.printf("! %v", err)
	}
}

func (c *console) help() {
	c.printf(`commands:
  games                      list active games
  join <gameID> <team name>  create a team and start
  resume                     resume the saved session
  intro                      continue past a location intro
  answer <text>              submit a text answer
  select <n> / submit        pick an option, then submit
  order <a,b,c> / submit     set an ordering, then submit
  scan <payload>             feed a QR decode
  fix <lat> <lon> <acc>      feed a GPS sample
  check                      run the geofence check
  hint                       request a hint (costs points)
  status / abandon / quit`)
}

func (c *console) listGames(ctx context.Context) error {
	games, err := c.eng.ActiveGames(ctx)
	if err != nil {
		return err
	}
	if len(games) == 0 {
		c.printf("no active games")
		return nil
	}
	for _, g := range games {
		c.printf("%s  %s (%d locations)", g.ID, g.Title, g.LocationCount)
	}
	return nil
}

func (c *console) join(ctx context.Context, rest string) error {
	gameID, name, ok := strings.Cut(rest, " ")
	if !ok || strings.TrimSpace(name) == "" {
		return errors.New("usage: join <gameID> <team name>")
	}
	return c.eng.Join(ctx, strings.TrimSpace(name), gameID)
}

func (c *console) selectOption(rest string) error {
	n, err := strconv.Atoi(rest)
	if err != nil {
		return errors.New("usage: select <option number>")
	}
	c.eng.SelectOption(n)
	c.printf("option %d selected", n)
	return nil
}

// submitStored submits whatever in-progress selection the session holds
// for the current trial type.
func (c *console) submitStored(ctx context.Context) error {
	st := c.eng.Status()
	in := geohunt.Input{}
	switch st.TrialType {
	case geohunt.TrialOptions:
		in.Option = c.eng.SelectedOption()
	case geohunt.TrialOrdering:
		in.Order = c.eng.Ordering()
	}
	return c.submit(ctx, in)
}

func (c *console) submit(ctx context.Context, in geohunt.Input) error {
	correct, err := c.eng.SubmitAnswer(ctx, in)
	if err != nil {
		return err
	}
	if correct {
		st := c.eng.Status()
		c.printf("score: %d", st.Score)
	}
	return nil
}

func (c *console) fix(rest string) error {
	parts := strings.Fields(rest)
	if len(parts) != 3 {
		return errors.New("usage: fix <lat> <lon> <accuracy>")
	}
	lat, err1 := strconv.ParseFloat(parts[0], 64)
	lon, err2 := strconv.ParseFloat(parts[1], 64)
	acc, err3 := strconv.ParseFloat(parts[2], 64)
	if err1 != nil || err2 != nil || err3 != nil {
		return errors.New("usage: fix <lat> <lon> <accuracy>")
	}
	if !c.positions.Inject(geo.Sample{Lat: lat, Lon: lon, AccuracyMeters: acc, At: time.Now()}) {
		c.printf("no position watch active for this trial")
	}
	return nil
}

func (c *console) check() error {
	result, err := c.eng.CheckLocation()
	switch {
	case errors.Is(err, geo.ErrNoFix):
		c.printf("no GPS fix yet — wait for a position update")
		return nil
	case errors.Is(err, geo.ErrAccuracyTooLow):
		c.printf("GPS accuracy too low (%.0f m) — move to open sky", result.AccuracyMeters)
		return nil
	case err != nil:
		return err
	}
	if result.Success {
		c.printf("inside the zone (%.0f m away) — submit when ready", result.DistanceMeters)
	} else if !math.IsInf(result.DistanceMeters, 1) {
		c.printf("%.0f m away — move closer", result.DistanceMeters)
	}
	return nil
}

func (c *console) hint(ctx context.Context) error {
	hint, err := c.eng.RequestHint(ctx, func(cost int) bool {
		c.printf("a hint costs %d points — take it? (y/n)", cost)
		if !c.in.Scan() {
			return false
		}
		answer := strings.ToLower(strings.TrimSpace(c.in.Text()))
		return answer == "y" || answer == "yes"
	})
	if errors.Is(err, engine.ErrHintDeclined) {
		c.printf("hint declined")
		return nil
	}
	if err != nil {
		return err
	}
	c.printf("hint: %s", hint)
	return nil
}

func (c *console) status() {
	st := c.eng.Status()
	c.printf("state: %s", st.State)
	if st.GameTitle == "" {
		return
	}
	c.printf("game: %s  score: %d  hints used: %d", st.GameTitle, st.Score, st.HintsUsed)
	if st.LocationName != "" {
		c.printf("location: %s", st.LocationName)
	}
	if st.TrialID != "" {
		c.printf("trial: %s (%s)  hints left: %d", st.TrialID, st.TrialType, st.HintsLeft)
		if st.Question != "" {
			c.printf("question: %s", st.Question)
		}
		for i, opt := range st.Options {
			c.printf("  %d) %s", i, opt)
		}
	}
	c.printf("elapsed: %s in trial, %s in game",
		st.TrialElapsed.Round(time.Second), st.GameElapsed.Round(time.Second))
	if st.LatestFix != nil {
		c.printf("last fix: %.5f, %.5f (±%.0f m)", st.LatestFix.Lat, st.LatestFix.Lon, st.LatestFix.AccuracyMeters)
	}
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
