// Package presence mirrors what a Jellyfin user is watching into Discord Rich
// Presence.
//
// A [Controller] runs one sequential loop. Each cycle probes the server,
// derives a [media.Presentation], and drives a two-state machine:
//
//	DISCONNECTED --present--> connect (retry forever), push     --> CONNECTED
//	CONNECTED    --same-----> push again, start time unchanged  --> CONNECTED
//	CONNECTED    --changed--> close, settle + cooldown          --> DISCONNECTED
//	CONNECTED    --absent---> close, settle                     --> DISCONNECTED
//
// A changed presentation is never pushed onto the old connection. The next
// cycle reconnects with a fresh start time.
package presence

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"tools.zach/dev/jellycord/internal/config"
	"tools.zach/dev/jellycord/internal/discord"
	"tools.zach/dev/jellycord/internal/media"
)

// banner frames the connect status line on stdout.
const banner = "//////////////////////////////////////////////////////////////////"

// ///////////////////////////////////////////////
// Collaborators
// ///////////////////////////////////////////////

// Channel is the presence transport. [*discord.Client] implements it.
type Channel interface {
	Connect() error
	SetActivity(activity *discord.Activity) error
	Close() error
}

// Prober reports what a user is watching. [*jellyfin.Client] implements it.
// Any error is treated as nothing playing for that cycle.
type Prober interface {
	Probe(ctx context.Context, username string) (media.Snapshot, error)
}

// SleepFunc blocks for d or until ctx is done, returning ctx.Err() in the
// latter case.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Sleep is the default [SleepFunc], backed by a timer.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// ///////////////////////////////////////////////
// State
// ///////////////////////////////////////////////

// State is the connection state of the controller.
type State int

const (
	Disconnected State = iota
	Connected
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connected:
		return "connected"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// ///////////////////////////////////////////////
// Errors
// ///////////////////////////////////////////////

// FatalError reports a presence channel failure the loop cannot recover from.
// Op is "set activity" or "close".
type FatalError struct {
	Op  string
	Err error
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("presence %s: %v", e.Op, e.Err)
}

func (e *FatalError) Unwrap() error { return e.Err }

// ///////////////////////////////////////////////
// Controller
// ///////////////////////////////////////////////

// Options configures a [Controller]. Channel and Prober are required.
type Options struct {
	Channel  Channel
	Prober   Prober
	Settings Settings

	// Out receives user-facing status lines. Nil discards them.
	Out io.Writer
	// Logger defaults to slog.Default().
	Logger *slog.Logger
	// Now and Sleep default to time.Now and [Sleep].
	Now   func() time.Time
	Sleep SleepFunc
}

// Controller owns the presence state machine. It is not safe for concurrent
// use except for [Controller.Update].
type Controller struct {
	ch    Channel
	probe Prober
	out   io.Writer
	log   *slog.Logger
	now   func() time.Time
	sleep SleepFunc

	settings Settings
	updates  chan Settings

	state        State
	last         media.Presentation
	sessionStart time.Time
}

// New returns a Controller in the Disconnected state.
func New(opts Options) *Controller {
	c := &Controller{
		ch:       opts.Channel,
		probe:    opts.Prober,
		out:      opts.Out,
		log:      opts.Logger,
		now:      opts.Now,
		sleep:    opts.Sleep,
		settings: opts.Settings,
		updates:  make(chan Settings, 1),
		state:    Disconnected,
	}
	if c.out == nil {
		c.out = io.Discard
	}
	if c.log == nil {
		c.log = slog.Default()
	}
	if c.now == nil {
		c.now = time.Now
	}
	if c.sleep == nil {
		c.sleep = Sleep
	}
	return c
}

// Update queues new settings for the next cycle. Only the most recent
// pending value is kept. Safe to call from any goroutine.
func (c *Controller) Update(s Settings) {
	for {
		select {
		case c.updates <- s:
			return
		default:
		}
		select {
		case <-c.updates:
		default:
		}
	}
}

// State returns the current connection state.
func (c *Controller) State() State { return c.state }

// Last returns the presentation recorded at the most recent connect.
func (c *Controller) Last() media.Presentation { return c.last }

// SessionStart returns the start time shown on the presence card.
func (c *Controller) SessionStart() time.Time { return c.sessionStart }

// Run cycles until ctx is done or a [*FatalError] occurs. On cancellation an
// open connection is closed best-effort and ctx.Err() is returned.
func (c *Controller) Run(ctx context.Context) error {
	for {
		delay, err := c.Step(ctx)
		if err == nil {
			err = c.sleep(ctx, delay)
		}
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				c.shutdown()
			}
			return err
		}
	}
}

// Step runs one cycle and returns how long to wait before the next one.
func (c *Controller) Step(ctx context.Context) (time.Duration, error) {
	c.applyUpdate()
	s := c.settings

	snap := c.observe(ctx)
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	p, present := media.Present(snap, s.Format)

	switch c.state {
	case Disconnected:
		if !present {
			return s.PollInterval, nil
		}
		if err := c.connect(ctx); err != nil {
			return 0, err
		}
		c.state = Connected
		c.sessionStart = c.now()
		c.last = p
		fmt.Fprintf(c.out, "%s\nConnected to Discord RPC client\n%s\n%s\n", banner, banner, p.Details)
		c.log.Info("presence connected", "media", snap.String(), "details", p.Details, "state", p.State)
		if err := c.push(p); err != nil {
			return 0, err
		}
		return s.PollInterval, nil

	case Connected:
		switch {
		case present && p == c.last:
			if err := c.push(p); err != nil {
				return 0, err
			}
			return s.PollInterval, nil
		case present:
			c.log.Info("playback changed, tearing down presence", "from", c.last.Details, "to", p.Details)
			if err := c.disconnect(); err != nil {
				return 0, err
			}
			if err := c.sleep(ctx, s.Settle); err != nil {
				return 0, err
			}
			if err := c.sleep(ctx, s.Cooldown); err != nil {
				return 0, err
			}
			return 0, nil
		default:
			c.log.Info("playback stopped, clearing presence")
			if err := c.disconnect(); err != nil {
				return 0, err
			}
			if err := c.sleep(ctx, s.Settle); err != nil {
				return 0, err
			}
			return s.PollInterval, nil
		}
	}
	return s.PollInterval, nil
}

// observe probes the server and applies ignore rules. Failures read as idle.
func (c *Controller) observe(ctx context.Context) media.Snapshot {
	s := c.settings
	snap, err := c.probe.Probe(ctx, s.Username)
	if err != nil {
		c.log.Debug("probe failed, treating as idle", "error", err)
		return media.Idle()
	}
	if !snap.IsIdle() && config.MatchAny(s.Ignore, snap.Path) {
		c.log.Debug("playing item is ignored", "path", snap.Path)
		return media.Idle()
	}
	return snap
}

// connect retries every ReconnectInterval until the channel connects or ctx
// is done.
func (c *Controller) connect(ctx context.Context) error {
	for attempt := 1; ; attempt++ {
		err := c.ch.Connect()
		if err == nil {
			return nil
		}
		c.log.Warn("Discord connect attempt failed", "attempt", attempt, "error", err)
		fmt.Fprintf(c.out, "Failed to connect, retrying in %s\n", c.settings.ReconnectInterval)
		if err := c.sleep(ctx, c.settings.ReconnectInterval); err != nil {
			return err
		}
	}
}

func (c *Controller) push(p media.Presentation) error {
	if err := c.ch.SetActivity(c.settings.activity(p, c.sessionStart)); err != nil {
		return &FatalError{Op: "set activity", Err: err}
	}
	return nil
}

func (c *Controller) disconnect() error {
	c.state = Disconnected
	if err := c.ch.Close(); err != nil {
		return &FatalError{Op: "close", Err: err}
	}
	fmt.Fprintln(c.out, "Disconnected from Discord RPC client")
	return nil
}

// shutdown closes an open connection when the loop is stopped.
func (c *Controller) shutdown() {
	if c.state != Connected {
		return
	}
	c.state = Disconnected
	if err := c.ch.Close(); err != nil {
		c.log.Warn("closing presence on shutdown", "error", err)
		return
	}
	fmt.Fprintln(c.out, "Disconnected from Discord RPC client")
}

func (c *Controller) applyUpdate() {
	select {
	case s := <-c.updates:
		c.settings = s
		c.log.Info("presence settings reloaded")
	default:
	}
}
