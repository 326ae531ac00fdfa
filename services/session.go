package services

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"sparhub/models"
	"sparhub/utils"

	"github.com/google/uuid"
)

// Store is the persistence surface the session service runs against.
// db.MongoStore is the durable implementation, db.MemoryStore backs tests
// and -memory runs.
type Store interface {
	InsertSession(ctx context.Context, sess *models.Session) error
	FindSessionByToken(ctx context.Context, token string) (*models.Session, error)
	ReplaceSession(ctx context.Context, sess *models.Session) error
	ListOpenSessions(ctx context.Context) ([]models.Session, error)
	ListSessionsByParticipant(ctx context.Context, participantID string, limit int) ([]models.Session, error)
	GetCounterpart(ctx context.Context, id string) (*models.Counterpart, error)
	ListCounterparts(ctx context.Context) ([]models.Counterpart, error)
	KnowledgeForCounterpart(ctx context.Context, counterpartID string) (string, error)
}

// Generator produces replies and verdicts from a session's history. It is
// expected to bound its own calls with a timeout; any error it returns is
// absorbed by the service and replaced with fallback content.
type Generator interface {
	GenerateReply(ctx context.Context, sess *models.Session, cp *models.Counterpart, knowledge string) (string, error)
	GenerateVerdict(ctx context.Context, sess *models.Session, cp *models.Counterpart, knowledge string) (*models.Verdict, error)
}

// SessionService is the authoritative session store: it owns every mutation
// of a session and guarantees single-writer semantics per session.
type SessionService struct {
	store         Store
	gen           Generator
	tracker       ActivityTracker
	locks         *sessionLocks
	allowedRounds []int
	defaultRounds int
	guestOpen     bool
}

func NewSessionService(store Store, gen Generator, tracker ActivityTracker, allowedRounds []int, defaultRounds int, guestOpen bool) *SessionService {
	return &SessionService{
		store:         store,
		gen:           gen,
		tracker:       tracker,
		locks:         newSessionLocks(),
		allowedRounds: allowedRounds,
		defaultRounds: defaultRounds,
		guestOpen:     guestOpen,
	}
}

func (s *SessionService) roundsAllowed(n int) bool {
	for _, v := range s.allowedRounds {
		if v == n {
			return true
		}
	}
	return false
}

// CreateSession starts a new exchange: it seeds the persona system message
// and the counterpart's welcome message, assigns the public token, and
// persists. The generator is not involved; creation must be fast and must
// not depend on backend health.
func (s *SessionService) CreateSession(ctx context.Context, participantID, counterpartID, topic string, maxRounds int) (*models.Session, error) {
	if maxRounds == 0 {
		maxRounds = s.defaultRounds
	}
	if !s.roundsAllowed(maxRounds) {
		return nil, Validationf("maxRounds must be one of %v", s.allowedRounds)
	}

	cp, err := s.store.GetCounterpart(ctx, counterpartID)
	if err != nil {
		return nil, err
	}
	if cp == nil {
		return nil, ErrCounterpartNotFound
	}

	token, err := utils.NewPublicToken()
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	welcome := cp.Welcome
	if welcome == "" {
		welcome = fmt.Sprintf("Hello, I'm %s. Tell me where you stand and we'll take it from there.", cp.DisplayName)
	}

	sess := &models.Session{
		PublicToken:   token,
		ParticipantID: participantID,
		CounterpartID: counterpartID,
		Topic:         topic,
		MaxRounds:     maxRounds,
		Messages: []models.Message{
			{ID: uuid.NewString(), Role: models.RoleSystem, Content: cp.Persona, CreatedAt: now},
			{ID: uuid.NewString(), Role: models.RoleAssistant, Content: welcome, CreatedAt: now},
		},
		CreatedAt:      now,
		UpdatedAt:      now,
		LastActivityAt: now,
	}

	if err := s.store.InsertSession(ctx, sess); err != nil {
		return nil, err
	}
	if err := s.tracker.Touch(ctx, token, now); err != nil {
		log.Printf("activity touch failed for %s: %v", token, err)
	}

	return externalView(sess), nil
}

// Get returns the session with the system message filtered out.
func (s *SessionService) Get(ctx context.Context, token, participantID string) (*models.Session, error) {
	sess, err := s.loadOwned(ctx, token, participantID)
	if err != nil {
		return nil, err
	}
	return externalView(sess), nil
}

// ListForParticipant returns the caller's recent sessions, newest first.
func (s *SessionService) ListForParticipant(ctx context.Context, participantID string, limit int) ([]models.Session, error) {
	sessions, err := s.store.ListSessionsByParticipant(ctx, participantID, limit)
	if err != nil {
		return nil, err
	}
	out := make([]models.Session, 0, len(sessions))
	for i := range sessions {
		out = append(out, *externalView(&sessions[i]))
	}
	return out, nil
}

// AppendUserMessage appends the participant's message, synchronously asks
// the generator for a reply (fallback on failure), persists, and returns
// both messages. The whole operation holds the session's mutation lock.
func (s *SessionService) AppendUserMessage(ctx context.Context, token, participantID, content string) (*models.Message, *models.Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, nil, Validationf("message content must not be empty")
	}

	unlock := s.locks.Acquire(token)
	defer unlock()

	sess, err := s.loadOwned(ctx, token, participantID)
	if err != nil {
		return nil, nil, err
	}
	if sess.Completed {
		return nil, nil, ErrAlreadyCompleted
	}
	if sess.RoundCount() >= sess.MaxRounds {
		return nil, nil, ErrRoundLimit
	}

	// Once the mutation starts, generation and persistence run to
	// completion even if the caller disconnects; the result is there for
	// the next fetch.
	ctx = context.WithoutCancel(ctx)

	now := time.Now().UTC()
	userMsg := models.Message{ID: uuid.NewString(), Role: models.RoleUser, Content: content, CreatedAt: now}
	sess.Messages = append(sess.Messages, userMsg)

	reply := s.generateReply(ctx, sess)
	assistantMsg := models.Message{ID: uuid.NewString(), Role: models.RoleAssistant, Content: reply, CreatedAt: time.Now().UTC()}
	sess.Messages = append(sess.Messages, assistantMsg)

	sess.UpdatedAt = assistantMsg.CreatedAt
	sess.LastActivityAt = assistantMsg.CreatedAt
	if err := s.store.ReplaceSession(ctx, sess); err != nil {
		return nil, nil, err
	}
	if err := s.tracker.Touch(ctx, token, sess.LastActivityAt); err != nil {
		log.Printf("activity touch failed for %s: %v", token, err)
	}

	return &userMsg, &assistantMsg, nil
}

// Complete marks the session terminal and returns its verdict. The verdict
// comes from the generator, or from the deterministic fallback when the
// generator fails; the caller always gets a verdict.
func (s *SessionService) Complete(ctx context.Context, token, participantID string) (*models.Verdict, error) {
	unlock := s.locks.Acquire(token)
	defer unlock()

	sess, err := s.loadOwned(ctx, token, participantID)
	if err != nil {
		return nil, err
	}
	if sess.Completed {
		return nil, ErrAlreadyCompleted
	}

	ctx = context.WithoutCancel(ctx)
	verdict := s.generateVerdict(ctx, sess)
	sess.Completed = true
	sess.Verdict = verdict
	sess.UpdatedAt = time.Now().UTC()
	if err := s.store.ReplaceSession(ctx, sess); err != nil {
		return nil, err
	}
	if err := s.tracker.Drop(ctx, token); err != nil {
		log.Printf("activity drop failed for %s: %v", token, err)
	}
	return verdict, nil
}

// RegenerateVerdict replaces the stored verdict of a completed session with
// a fresh attempt. Safe to call repeatedly.
func (s *SessionService) RegenerateVerdict(ctx context.Context, token, participantID string) (*models.Verdict, error) {
	unlock := s.locks.Acquire(token)
	defer unlock()

	sess, err := s.loadOwned(ctx, token, participantID)
	if err != nil {
		return nil, err
	}
	if !sess.Completed {
		return nil, ErrNotCompleted
	}

	ctx = context.WithoutCancel(ctx)
	verdict := s.generateVerdict(ctx, sess)
	sess.Verdict = verdict
	sess.UpdatedAt = time.Now().UTC()
	if err := s.store.ReplaceSession(ctx, sess); err != nil {
		return nil, err
	}
	return verdict, nil
}

// ExtendRounds raises maxRounds. Only strictly increasing values from the
// allowed set are accepted, and only while the session is open.
func (s *SessionService) ExtendRounds(ctx context.Context, token, participantID string, newMax int) (*models.Session, error) {
	unlock := s.locks.Acquire(token)
	defer unlock()

	sess, err := s.loadOwned(ctx, token, participantID)
	if err != nil {
		return nil, err
	}
	if sess.Completed {
		return nil, ErrAlreadyCompleted
	}
	if !s.roundsAllowed(newMax) {
		return nil, Validationf("maxRounds must be one of %v", s.allowedRounds)
	}
	if newMax <= sess.MaxRounds {
		return nil, Validationf("maxRounds must be greater than current value %d", sess.MaxRounds)
	}

	now := time.Now().UTC()
	sess.MaxRounds = newMax
	sess.UpdatedAt = now
	sess.LastActivityAt = now
	if err := s.store.ReplaceSession(ctx, sess); err != nil {
		return nil, err
	}
	if err := s.tracker.Touch(ctx, token, now); err != nil {
		log.Printf("activity touch failed for %s: %v", token, err)
	}
	return externalView(sess), nil
}

// CastVote records which side the participant thinks won. One vote per
// participant per session, completed sessions only.
func (s *SessionService) CastVote(ctx context.Context, token, participantID, side string) error {
	if side != models.SideParticipant && side != models.SideCounterpart {
		return Validationf("side must be %q or %q", models.SideParticipant, models.SideCounterpart)
	}

	unlock := s.locks.Acquire(token)
	defer unlock()

	sess, err := s.loadOwned(ctx, token, participantID)
	if err != nil {
		return err
	}
	if !sess.Completed {
		return ErrNotCompleted
	}
	if sess.Votes == nil {
		sess.Votes = make(map[string]string)
	}
	if _, voted := sess.Votes[participantID]; voted {
		return ErrDuplicateVote
	}
	sess.Votes[participantID] = side
	sess.UpdatedAt = time.Now().UTC()
	return s.store.ReplaceSession(ctx, sess)
}

// ForceCompleteInactive is the reaper's terminal transition: it marks the
// session completed with a synthetic timeout verdict, bypassing the
// generator entirely. Completing an already-completed session is a no-op.
func (s *SessionService) ForceCompleteInactive(ctx context.Context, token string) error {
	unlock := s.locks.Acquire(token)
	defer unlock()

	sess, err := s.store.FindSessionByToken(ctx, token)
	if err != nil {
		return err
	}
	if sess == nil {
		return ErrSessionNotFound
	}
	if sess.Completed {
		return nil
	}

	sess.Completed = true
	sess.Verdict = TimeoutVerdict()
	sess.UpdatedAt = time.Now().UTC()
	return s.store.ReplaceSession(ctx, sess)
}

// OpenSessions exposes the open set to the reaper.
func (s *SessionService) OpenSessions(ctx context.Context) ([]models.Session, error) {
	return s.store.ListOpenSessions(ctx)
}

func (s *SessionService) generateReply(ctx context.Context, sess *models.Session) string {
	cp, knowledge := s.generationContext(ctx, sess)
	reply, err := s.gen.GenerateReply(ctx, sess, cp, knowledge)
	if err != nil || strings.TrimSpace(reply) == "" {
		log.Printf("reply generation failed for %s, using fallback: %v", sess.PublicToken, err)
		return FallbackReply(cp)
	}
	return reply
}

func (s *SessionService) generateVerdict(ctx context.Context, sess *models.Session) *models.Verdict {
	cp, knowledge := s.generationContext(ctx, sess)
	verdict, err := s.gen.GenerateVerdict(ctx, sess, cp, knowledge)
	if err != nil || verdict == nil {
		log.Printf("verdict generation failed for %s, using fallback: %v", sess.PublicToken, err)
		return FallbackVerdict()
	}
	return verdict
}

// generationContext loads the counterpart and curated knowledge for a
// generator call. Both are best-effort: a read failure degrades the prompt,
// never the mutation.
func (s *SessionService) generationContext(ctx context.Context, sess *models.Session) (*models.Counterpart, string) {
	cp, err := s.store.GetCounterpart(ctx, sess.CounterpartID)
	if err != nil || cp == nil {
		if err != nil {
			log.Printf("counterpart lookup failed for %s: %v", sess.PublicToken, err)
		}
		cp = &models.Counterpart{ID: sess.CounterpartID, DisplayName: "the counterpart"}
	}
	knowledge, err := s.store.KnowledgeForCounterpart(ctx, sess.CounterpartID)
	if err != nil {
		log.Printf("knowledge lookup failed for %s: %v", sess.PublicToken, err)
		knowledge = ""
	}
	return cp, knowledge
}

func (s *SessionService) loadOwned(ctx context.Context, token, participantID string) (*models.Session, error) {
	sess, err := s.store.FindSessionByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, ErrSessionNotFound
	}
	if !s.guestOpen && participantID != "" && sess.ParticipantID != participantID {
		return nil, ErrNotOwner
	}
	return sess, nil
}

// externalView strips the system message before a session leaves the store.
func externalView(sess *models.Session) *models.Session {
	out := *sess
	out.Messages = sess.VisibleMessages()
	return &out
}
