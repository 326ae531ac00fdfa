package client

import (
	"time"

	"sparhub/models"
)

// EntryKind is the tagged variant distinguishing server-confirmed messages
// from client-local optimistic entries. Confirmed and local identifiers
// live in disjoint spaces by construction; nothing ever inspects an id
// string to tell them apart.
type EntryKind int

const (
	// EntryConfirmed carries a server-issued message identifier.
	EntryConfirmed EntryKind = iota
	// EntryPendingEcho is the optimistic echo of the participant's own
	// just-submitted message.
	EntryPendingEcho
	// EntryPendingPlaceholder is the transient "reply pending" marker shown
	// while a reply is outstanding.
	EntryPendingPlaceholder
)

// Entry is one row of the controller's local message view.
type Entry struct {
	Kind      EntryKind
	ServerID  string // set when Kind == EntryConfirmed
	LocalID   int64  // set for pending kinds
	Role      string
	Content   string
	CreatedAt time.Time
}

// Pending reports whether the entry is a client-local optimistic one.
func (e Entry) Pending() bool {
	return e.Kind != EntryConfirmed
}

func confirmedEntry(m models.Message) Entry {
	return Entry{
		Kind:      EntryConfirmed,
		ServerID:  m.ID,
		Role:      m.Role,
		Content:   m.Content,
		CreatedAt: m.CreatedAt,
	}
}

// MergeConfirmed reconciles the local view against an authoritative server
// log. The server's confirmed log is taken wholesale (its order is
// authoritative and append-only), every reserved-space entry is dropped,
// and newness is decided by comparing confirmed identifier sets, never
// counts, which placeholders and race windows corrupt.
//
// The result is the same for any interleaving of poll responses: folding a
// stale response after a fresher one cannot resurrect placeholders, because
// placeholders survive only when the server log holds no id the local view
// lacks. fresh is false when the response was rejected as stale; callers
// must not apply any part of a stale response, scalar fields included.
func MergeConfirmed(local []Entry, server []models.Message) (merged []Entry, newIDs []string, fresh bool) {
	serverIDs := make(map[string]struct{}, len(server))
	for _, m := range server {
		serverIDs[m.ID] = struct{}{}
	}

	known := make(map[string]struct{})
	for _, e := range local {
		if e.Kind == EntryConfirmed {
			known[e.ServerID] = struct{}{}
			if _, ok := serverIDs[e.ServerID]; !ok {
				// Stale response: it lacks a message the local view already
				// confirmed. Discard it wholesale.
				return local, nil, false
			}
		}
	}

	merged = make([]Entry, 0, len(server)+2)
	for _, m := range server {
		if _, ok := known[m.ID]; !ok {
			newIDs = append(newIDs, m.ID)
		}
		merged = append(merged, confirmedEntry(m))
	}

	if len(newIDs) == 0 {
		// Nothing new: pending entries stay in place until confirmation or
		// poll exhaustion removes them.
		for _, e := range local {
			if e.Pending() {
				merged = append(merged, e)
			}
		}
	}
	return merged, newIDs, true
}

// hasNewAssistant reports whether any of the ids confirmed by this merge
// belongs to an assistant message, the signal that an outstanding reply
// has landed.
func hasNewAssistant(server []models.Message, newIDs []string) bool {
	if len(newIDs) == 0 {
		return false
	}
	isNew := make(map[string]struct{}, len(newIDs))
	for _, id := range newIDs {
		isNew[id] = struct{}{}
	}
	for _, m := range server {
		if m.Role != models.RoleAssistant {
			continue
		}
		if _, ok := isNew[m.ID]; ok {
			return true
		}
	}
	return false
}
