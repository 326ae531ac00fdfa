package services

import (
	"context"
	"log"
	"time"
)

// Reaper sweeps open sessions on a fixed period and force-completes any
// session idle past the threshold. It coordinates with mutations only
// through durable state and the activity tracker, so every open session is
// completed within one sweep interval of crossing the threshold regardless
// of client behavior.
type Reaper struct {
	svc       *SessionService
	tracker   ActivityTracker
	interval  time.Duration
	threshold time.Duration
	now       func() time.Time
}

func NewReaper(svc *SessionService, tracker ActivityTracker, interval, threshold time.Duration) *Reaper {
	return &Reaper{
		svc:       svc,
		tracker:   tracker,
		interval:  interval,
		threshold: threshold,
		now:       time.Now,
	}
}

// Run blocks until ctx is cancelled, sweeping once per interval.
func (r *Reaper) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	log.Printf("reaper running: sweep every %s, threshold %s", r.interval, r.threshold)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Sweep(ctx)
		}
	}
}

// Sweep walks the open sessions once. A failure on one session is logged
// and must not abort the sweep over the rest.
func (r *Reaper) Sweep(ctx context.Context) {
	sessions, err := r.svc.OpenSessions(ctx)
	if err != nil {
		log.Printf("reaper: listing open sessions failed: %v", err)
		return
	}

	now := r.now()
	for _, sess := range sessions {
		last, tracked, err := r.tracker.LastSeen(ctx, sess.PublicToken)
		if err != nil {
			log.Printf("reaper: activity lookup failed for %s: %v", sess.PublicToken, err)
			continue
		}
		if !tracked {
			// First sight. Prefer the durable timestamp; seed the tracker so
			// a brand-new session gets a full grace window, never an
			// immediate reap.
			last = sess.LastActivityAt
			if last.IsZero() {
				last = now
			}
			if err := r.tracker.Touch(ctx, sess.PublicToken, last); err != nil {
				log.Printf("reaper: activity seed failed for %s: %v", sess.PublicToken, err)
			}
		}
		if sess.LastActivityAt.After(last) {
			last = sess.LastActivityAt
		}

		if now.Sub(last) <= r.threshold {
			continue
		}

		if err := r.svc.ForceCompleteInactive(ctx, sess.PublicToken); err != nil {
			log.Printf("reaper: force-complete failed for %s: %v", sess.PublicToken, err)
			continue
		}
		if err := r.tracker.Drop(ctx, sess.PublicToken); err != nil {
			log.Printf("reaper: activity drop failed for %s: %v", sess.PublicToken, err)
		}
		log.Printf("reaper: session %s timed out after %s of inactivity", sess.PublicToken, now.Sub(last).Truncate(time.Second))
	}
}
