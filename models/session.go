package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Message roles. The system role carries persona instructions and is
// stripped from every external view of the session.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Sides a verdict or a vote can name.
const (
	SideParticipant = "participant"
	SideCounterpart = "counterpart"
)

// Message is a single entry in a session's ordered log.
type Message struct {
	ID        string    `json:"id" bson:"id"`
	Role      string    `json:"role" bson:"role"`
	Content   string    `json:"content" bson:"content"`
	CreatedAt time.Time `json:"createdAt" bson:"createdAt"`
}

// Session is the authoritative record of one exchange between a participant
// and an AI counterpart. Sessions are never deleted; the reaper force-completes
// idle ones, so every session eventually reaches completed.
type Session struct {
	ID             primitive.ObjectID `json:"-" bson:"_id,omitempty"`
	PublicToken    string             `json:"publicToken" bson:"publicToken"`
	ParticipantID  string             `json:"participantId" bson:"participantId"`
	CounterpartID  string             `json:"counterpartId" bson:"counterpartId"`
	Topic          string             `json:"topic,omitempty" bson:"topic,omitempty"`
	Messages       []Message          `json:"messages" bson:"messages"`
	MaxRounds      int                `json:"maxRounds" bson:"maxRounds"`
	Completed      bool               `json:"completed" bson:"completed"`
	Verdict        *Verdict           `json:"verdict,omitempty" bson:"verdict,omitempty"`
	Votes          map[string]string  `json:"-" bson:"votes,omitempty"`
	CreatedAt      time.Time          `json:"createdAt" bson:"createdAt"`
	UpdatedAt      time.Time          `json:"updatedAt" bson:"updatedAt"`
	LastActivityAt time.Time          `json:"-" bson:"lastActivityAt"`
}

// RoundCount derives the round counter from the log: one round per
// user-authored message.
func (s *Session) RoundCount() int {
	n := 0
	for _, m := range s.Messages {
		if m.Role == RoleUser {
			n++
		}
	}
	return n
}

// VisibleMessages returns the log with the system message filtered out.
func (s *Session) VisibleMessages() []Message {
	out := make([]Message, 0, len(s.Messages))
	for _, m := range s.Messages {
		if m.Role == RoleSystem {
			continue
		}
		out = append(out, m)
	}
	return out
}
