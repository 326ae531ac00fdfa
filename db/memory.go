package db

import (
	"context"
	"sort"
	"sync"

	"sparhub/models"
)

// MemoryStore implements the same surface as MongoStore against in-process
// maps. Used by tests and -memory development runs.
type MemoryStore struct {
	mu           sync.RWMutex
	sessions     map[string]models.Session
	counterparts map[string]models.Counterpart
	knowledge    []models.CuratedKnowledge
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions:     make(map[string]models.Session),
		counterparts: make(map[string]models.Counterpart),
	}
}

func (s *MemoryStore) InsertSession(ctx context.Context, sess *models.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.PublicToken] = cloneSession(*sess)
	return nil
}

func (s *MemoryStore) FindSessionByToken(ctx context.Context, token string) (*models.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[token]
	if !ok {
		return nil, nil
	}
	c := cloneSession(sess)
	return &c, nil
}

func (s *MemoryStore) ReplaceSession(ctx context.Context, sess *models.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.PublicToken] = cloneSession(*sess)
	return nil
}

func (s *MemoryStore) ListOpenSessions(ctx context.Context) ([]models.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Session
	for _, sess := range s.sessions {
		if !sess.Completed {
			out = append(out, cloneSession(sess))
		}
	}
	sortByCreated(out)
	return out, nil
}

func (s *MemoryStore) ListSessionsByParticipant(ctx context.Context, participantID string, limit int) ([]models.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Session
	for _, sess := range s.sessions {
		if sess.ParticipantID == participantID {
			out = append(out, cloneSession(sess))
		}
	}
	sortByCreated(out)
	// newest first
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) GetCounterpart(ctx context.Context, id string) (*models.Counterpart, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cp, ok := s.counterparts[id]
	if !ok {
		return nil, nil
	}
	return &cp, nil
}

func (s *MemoryStore) ListCounterparts(ctx context.Context) ([]models.Counterpart, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Counterpart, 0, len(s.counterparts))
	for _, cp := range s.counterparts {
		out = append(out, cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) UpsertCounterpart(ctx context.Context, cp models.Counterpart) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counterparts[cp.ID] = cp
	return nil
}

func (s *MemoryStore) AddKnowledge(entry models.CuratedKnowledge) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.knowledge = append(s.knowledge, entry)
}

func (s *MemoryStore) KnowledgeForCounterpart(ctx context.Context, counterpartID string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	combined := ""
	for _, e := range s.knowledge {
		if e.CounterpartID != counterpartID {
			continue
		}
		if combined != "" {
			combined += "\n\n"
		}
		if e.Title != "" {
			combined += e.Title + ": "
		}
		combined += e.Content
	}
	return combined, nil
}

func cloneSession(s models.Session) models.Session {
	s.Messages = append([]models.Message(nil), s.Messages...)
	if s.Votes != nil {
		votes := make(map[string]string, len(s.Votes))
		for k, v := range s.Votes {
			votes[k] = v
		}
		s.Votes = votes
	}
	if s.Verdict != nil {
		v := *s.Verdict
		s.Verdict = &v
	}
	return s
}

func sortByCreated(sessions []models.Session) {
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].CreatedAt.Before(sessions[j].CreatedAt)
	})
}
