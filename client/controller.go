package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"sparhub/models"
)

// State is the controller's position in the session lifecycle.
type State int

const (
	StateLoading State = iota
	StateChat
	StateWaitingForReply
	StateFinalRound
	StateGeneratingSummary
	StateSummaryReady
	StateCompleted
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateChat:
		return "chat"
	case StateWaitingForReply:
		return "waiting-for-reply"
	case StateFinalRound:
		return "final-round"
	case StateGeneratingSummary:
		return "generating-summary"
	case StateSummaryReady:
		return "summary-ready"
	case StateCompleted:
		return "completed"
	default:
		return "unknown"
	}
}

// ConnectivityNotice is surfaced when the reply poll budget is exhausted.
// Recoverable: placeholders are cleared and input is re-enabled for a retry.
const ConnectivityNotice = "No reply received. Check your connection and try again."

// summaryFailureNotice is shown when completing the session (or fetching an
// already-stored verdict) keeps failing; input is re-enabled for a retry.
const summaryFailureNotice = "Couldn't generate the summary. Try again."

// ErrInvalidState is returned when an action is not legal in the current state.
var ErrInvalidState = errors.New("action not valid in current state")

// Config tunes the synchronization protocol. Zero values take the
// authoritative defaults.
type Config struct {
	ReplyPollInterval  time.Duration // poll cadence while a reply is outstanding
	ReplyPollBudget    int           // attempts before giving up on a reply
	ActivePollInterval time.Duration // cadence while the session is recently active
	ActiveWindow       time.Duration // how recent "recently active" is
	IdleBackoffCeiling time.Duration // cap for the idle exponential backoff
	MinSummaryDuration time.Duration // minimum visible summary-progress time
}

func (c *Config) withDefaults() {
	if c.ReplyPollInterval == 0 {
		c.ReplyPollInterval = time.Second
	}
	if c.ReplyPollBudget == 0 {
		c.ReplyPollBudget = 30
	}
	if c.ActivePollInterval == 0 {
		c.ActivePollInterval = 3 * time.Second
	}
	if c.ActiveWindow == 0 {
		c.ActiveWindow = 60 * time.Second
	}
	if c.IdleBackoffCeiling == 0 {
		c.IdleBackoffCeiling = 60 * time.Second
	}
	if c.MinSummaryDuration == 0 {
		c.MinSummaryDuration = 1500 * time.Millisecond
	}
}

// Snapshot is an immutable view of the controller handed to the change
// callback.
type Snapshot struct {
	State     State
	Entries   []Entry
	Rounds    int
	MaxRounds int
	Topic     string
	Notice    string
	Verdict   *models.Verdict
}

// Controller is the per-session state machine on the consuming side. It
// holds the optimistic local message log, merges it against authoritative
// fetches, and drives the synchronization poller. All methods are safe for
// concurrent use; internally a single logical poll is in flight at a time
// and every result is epoch-guarded.
type Controller struct {
	api      *API
	token    string
	cfg      Config
	onChange func(Snapshot)

	sched  *scheduler
	ctx    context.Context
	cancel context.CancelFunc

	mu            sync.Mutex
	state         State
	entries       []Entry
	maxRounds     int
	topic         string
	verdict       *models.Verdict
	notice        string
	nextLocalID   int64
	replyAttempts int
	idleInterval  time.Duration
}

// NewController builds a controller for the session behind token. onChange
// may be nil.
func NewController(api *API, token string, cfg Config, onChange func(Snapshot)) *Controller {
	cfg.withDefaults()
	if onChange == nil {
		onChange = func(Snapshot) {}
	}
	return &Controller{
		api:      api,
		token:    token,
		cfg:      cfg,
		onChange: onChange,
		sched:    newScheduler(),
		state:    StateLoading,
	}
}

// Start kicks off the initial fetch and the polling loop. The controller
// stops when ctx is cancelled or Close is called.
func (c *Controller) Start(ctx context.Context) {
	c.ctx, c.cancel = context.WithCancel(ctx)
	epoch := c.sched.Epoch()
	go c.poll(epoch)
}

// Close tears down the view: polling stops and any in-flight result is
// discarded. No server-side generation call is cancelled; its result is
// simply persisted for the next fetch to discover.
func (c *Controller) Close() {
	c.sched.Bump()
	c.sched.Stop()
	if c.cancel != nil {
		c.cancel()
	}
}

// Snapshot returns the current view.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// Submit optimistically appends the participant's message and a reply
// placeholder, then starts the reply-wait loop. A new submission supersedes
// any in-flight poll from a prior one.
func (c *Controller) Submit(content string) error {
	c.mu.Lock()
	if c.state != StateChat {
		c.mu.Unlock()
		return fmt.Errorf("%w: submit in %s", ErrInvalidState, c.state)
	}

	epoch := c.sched.Bump()
	now := time.Now()
	c.nextLocalID++
	c.entries = append(c.entries, Entry{
		Kind: EntryPendingEcho, LocalID: c.nextLocalID,
		Role: models.RoleUser, Content: content, CreatedAt: now,
	})
	c.nextLocalID++
	c.entries = append(c.entries, Entry{
		Kind: EntryPendingPlaceholder, LocalID: c.nextLocalID,
		Role: models.RoleAssistant, CreatedAt: now,
	})
	c.state = StateWaitingForReply
	c.replyAttempts = 0
	c.notice = ""
	c.scheduleNextLocked(epoch)
	c.mu.Unlock()

	c.emit()
	go c.submit(epoch, content)
	return nil
}

// RequestExtension raises the round limit; legal from the final round (and
// harmless from open chat).
func (c *Controller) RequestExtension(newMax int) error {
	c.mu.Lock()
	if c.state != StateFinalRound && c.state != StateChat {
		c.mu.Unlock()
		return fmt.Errorf("%w: extend in %s", ErrInvalidState, c.state)
	}
	epoch := c.sched.Epoch()
	c.mu.Unlock()

	go func() {
		view, err := c.api.ExtendRounds(c.ctx, c.token, newMax)
		c.mu.Lock()
		if !c.sched.Valid(epoch) {
			c.mu.Unlock()
			return
		}
		if err != nil {
			c.notice = noticeFor(err, "Couldn't extend the session.")
		} else {
			c.maxRounds = view.MaxRounds
			c.notice = ""
			c.transitionOpenLocked()
		}
		c.mu.Unlock()
		c.emit()
	}()
	return nil
}

// RequestCompletion asks the store to complete the session and generate the
// verdict. The progress state stays visible for at least MinSummaryDuration
// so a fast response doesn't flash.
func (c *Controller) RequestCompletion() error {
	c.mu.Lock()
	if c.state != StateChat && c.state != StateFinalRound {
		c.mu.Unlock()
		return fmt.Errorf("%w: complete in %s", ErrInvalidState, c.state)
	}
	epoch := c.sched.Bump()
	c.state = StateGeneratingSummary
	c.notice = ""
	c.mu.Unlock()

	c.emit()
	go c.complete(epoch)
	return nil
}

// Acknowledge moves SummaryReady to the terminal Completed state.
func (c *Controller) Acknowledge() error {
	c.mu.Lock()
	if c.state != StateSummaryReady {
		c.mu.Unlock()
		return fmt.Errorf("%w: acknowledge in %s", ErrInvalidState, c.state)
	}
	c.sched.Bump()
	c.state = StateCompleted
	c.mu.Unlock()
	c.emit()
	return nil
}

func (c *Controller) poll(epoch int64) {
	view, err := c.api.FetchSession(c.ctx, c.token)
	c.applyPoll(epoch, view, err)
}

func (c *Controller) applyPoll(epoch int64, view *SessionView, err error) {
	c.mu.Lock()
	if !c.sched.Valid(epoch) {
		c.mu.Unlock()
		return
	}

	if err != nil {
		switch c.state {
		case StateWaitingForReply:
			// Counts against the reply budget like an empty poll.
			if c.replyExhaustedLocked() {
				c.mu.Unlock()
				c.emit()
				return
			}
		case StateGeneratingSummary:
			// Fetching the stored verdict after losing the completion race.
			// Transport failures share the reply budget; once it is spent
			// the participant gets the retry affordance back.
			c.replyAttempts++
			if c.replyAttempts >= c.cfg.ReplyPollBudget {
				c.notice = summaryFailureNotice
				c.transitionOpenLocked()
				epoch = c.sched.Bump()
			}
		case StateLoading:
			c.notice = "Couldn't load the session. Retrying."
		}
		c.scheduleNextLocked(epoch)
		c.mu.Unlock()
		c.emit()
		return
	}

	merged, newIDs, fresh := MergeConfirmed(c.entries, view.Messages)
	if !fresh {
		// Lagging response: it predates messages the local view already
		// confirmed. Nothing in it, scalar fields included, may apply.
		c.scheduleNextLocked(epoch)
		c.mu.Unlock()
		return
	}
	c.entries = merged
	c.maxRounds = view.MaxRounds
	c.topic = view.Topic

	if view.Completed {
		// Completed server-side, whether by us, another view, or the
		// reaper. Polling stops unconditionally.
		c.verdict = view.Verdict
		if c.state != StateCompleted {
			c.state = StateSummaryReady
		}
		c.mu.Unlock()
		c.emit()
		return
	}

	switch c.state {
	case StateLoading:
		c.notice = ""
		c.transitionOpenLocked()
	case StateWaitingForReply:
		if hasNewAssistant(view.Messages, newIDs) {
			c.notice = ""
			c.idleInterval = 0
			c.transitionOpenLocked()
		} else if c.replyExhaustedLocked() {
			c.mu.Unlock()
			c.emit()
			return
		}
	}

	c.scheduleNextLocked(epoch)
	c.mu.Unlock()
	c.emit()
}

// replyExhaustedLocked advances the reply-wait attempt counter and, once
// the budget is spent, clears the placeholders, surfaces the connectivity
// notice, re-enables input and moves back to open chat. Returns true when
// it handled the transition (including its own reschedule).
func (c *Controller) replyExhaustedLocked() bool {
	c.replyAttempts++
	if c.replyAttempts < c.cfg.ReplyPollBudget {
		return false
	}
	c.clearPendingLocked()
	c.notice = ConnectivityNotice
	c.idleInterval = 0
	c.transitionOpenLocked()
	epoch := c.sched.Bump()
	c.scheduleNextLocked(epoch)
	return true
}

func (c *Controller) submit(epoch int64, content string) {
	result, err := c.api.SubmitMessage(c.ctx, c.token, content)

	c.mu.Lock()
	if !c.sched.Valid(epoch) {
		c.mu.Unlock()
		return
	}

	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.Status >= 400 && apiErr.Status < 500 {
			// The store rejected the submission (round limit, completed,
			// validation). The optimistic entries are wrong; remove them
			// and re-enable input.
			c.clearPendingLocked()
			c.notice = apiErr.Message
			c.transitionOpenLocked()
			newEpoch := c.sched.Bump()
			c.scheduleNextLocked(newEpoch)
			c.mu.Unlock()
			c.emit()
			return
		}
		// Transport failure: the mutation may still land server-side. Leave
		// the reply-wait poll loop to confirm or give up.
		c.mu.Unlock()
		return
	}

	// Direct confirmation path. A racing poll may have confirmed these ids
	// already; the set rule makes folding idempotent.
	known := make(map[string]struct{})
	for _, e := range c.entries {
		if e.Kind == EntryConfirmed {
			known[e.ServerID] = struct{}{}
		}
	}
	c.clearPendingLocked()
	for _, m := range []models.Message{result.UserMessage, result.AssistantMessage} {
		if _, ok := known[m.ID]; !ok {
			c.entries = append(c.entries, confirmedEntry(m))
		}
	}
	c.notice = ""
	c.idleInterval = 0
	c.transitionOpenLocked()
	newEpoch := c.sched.Bump()
	c.scheduleNextLocked(newEpoch)
	c.mu.Unlock()
	c.emit()
}

func (c *Controller) complete(epoch int64) {
	start := time.Now()
	verdict, err := c.api.CompleteSession(c.ctx, c.token)
	if remain := c.cfg.MinSummaryDuration - time.Since(start); remain > 0 {
		select {
		case <-time.After(remain):
		case <-c.ctx.Done():
			return
		}
	}

	c.mu.Lock()
	if !c.sched.Valid(epoch) {
		c.mu.Unlock()
		return
	}

	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.Status == http.StatusBadRequest {
			// Already completed elsewhere (typically the reaper). Fetch the
			// stored verdict instead of failing the flow; the fetch runs on
			// a fresh reply budget.
			c.replyAttempts = 0
			c.sched.Schedule(0, epoch, func() { c.poll(epoch) })
			c.mu.Unlock()
			return
		}
		c.notice = summaryFailureNotice
		c.transitionOpenLocked()
		c.scheduleNextLocked(epoch)
		c.mu.Unlock()
		c.emit()
		return
	}

	c.verdict = verdict
	c.state = StateSummaryReady
	c.mu.Unlock()
	c.emit()
}

// nextPollDelayLocked picks the next poll delay from the protocol cadence
// rules. ok is false when the current state does not poll.
func (c *Controller) nextPollDelayLocked() (time.Duration, bool) {
	switch c.state {
	case StateLoading, StateWaitingForReply, StateGeneratingSummary:
		// Loading retries, reply waits, and post-race verdict fetches all
		// watch at the short interval.
		return c.cfg.ReplyPollInterval, true
	case StateChat, StateFinalRound:
		last, ok := c.lastConfirmedLocked()
		switch {
		case ok && last.Role == models.RoleUser:
			// A reply is outstanding somewhere (another view of this
			// session); watch closely.
			return c.cfg.ReplyPollInterval, true
		case ok && time.Since(last.CreatedAt) < c.cfg.ActiveWindow:
			c.idleInterval = 0
			return c.cfg.ActivePollInterval, true
		default:
			if c.idleInterval == 0 {
				c.idleInterval = c.cfg.ActivePollInterval
			}
			c.idleInterval *= 2
			if c.idleInterval > c.cfg.IdleBackoffCeiling {
				c.idleInterval = c.cfg.IdleBackoffCeiling
			}
			return c.idleInterval, true
		}
	default:
		// SummaryReady, Completed: no polling.
		return 0, false
	}
}

func (c *Controller) scheduleNextLocked(epoch int64) {
	delay, ok := c.nextPollDelayLocked()
	if !ok {
		return
	}
	c.sched.Schedule(delay, epoch, func() { c.poll(epoch) })
}

func (c *Controller) transitionOpenLocked() {
	if c.confirmedRoundsLocked() >= c.maxRounds && c.maxRounds > 0 {
		c.state = StateFinalRound
	} else {
		c.state = StateChat
	}
}

func (c *Controller) confirmedRoundsLocked() int {
	n := 0
	for _, e := range c.entries {
		if e.Kind == EntryConfirmed && e.Role == models.RoleUser {
			n++
		}
	}
	return n
}

func (c *Controller) lastConfirmedLocked() (Entry, bool) {
	for i := len(c.entries) - 1; i >= 0; i-- {
		if c.entries[i].Kind == EntryConfirmed {
			return c.entries[i], true
		}
	}
	return Entry{}, false
}

func (c *Controller) clearPendingLocked() {
	kept := c.entries[:0]
	for _, e := range c.entries {
		if !e.Pending() {
			kept = append(kept, e)
		}
	}
	c.entries = kept
}

func (c *Controller) snapshotLocked() Snapshot {
	return Snapshot{
		State:     c.state,
		Entries:   append([]Entry(nil), c.entries...),
		Rounds:    c.confirmedRoundsLocked(),
		MaxRounds: c.maxRounds,
		Topic:     c.topic,
		Notice:    c.notice,
		Verdict:   c.verdict,
	}
}

func (c *Controller) emit() {
	c.mu.Lock()
	snap := c.snapshotLocked()
	c.mu.Unlock()
	c.onChange(snap)
}

func noticeFor(err error, fallback string) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return fallback
}
