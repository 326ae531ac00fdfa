package controllers

import (
	"errors"
	"log"
	"net/http"

	"sparhub/middlewares"
	"sparhub/models"
	"sparhub/services"

	"github.com/gin-gonic/gin"
)

type SessionController struct {
	svc *services.SessionService
}

func NewSessionController(svc *services.SessionService) *SessionController {
	return &SessionController{svc: svc}
}

type CreateSessionRequest struct {
	CounterpartID string `json:"counterpartId" binding:"required"`
	Topic         string `json:"topic"`
	MaxRounds     int    `json:"maxRounds"`
}

type SubmitMessageRequest struct {
	Content string `json:"content" binding:"required"`
}

type ExtendRoundsRequest struct {
	MaxRounds int `json:"maxRounds" binding:"required"`
}

type CastVoteRequest struct {
	Side string `json:"side" binding:"required"`
}

type SessionResponse struct {
	PublicToken string           `json:"publicToken"`
	Topic       string           `json:"topic,omitempty"`
	Counterpart string           `json:"counterpartId"`
	MaxRounds   int              `json:"maxRounds"`
	Completed   bool             `json:"completed"`
	Messages    []models.Message `json:"messages"`
	Verdict     *models.Verdict  `json:"verdict,omitempty"`
}

type SubmitMessageResponse struct {
	UserMessage      models.Message `json:"userMessage"`
	AssistantMessage models.Message `json:"assistantMessage"`
}

func sessionResponse(sess *models.Session) SessionResponse {
	return SessionResponse{
		PublicToken: sess.PublicToken,
		Topic:       sess.Topic,
		Counterpart: sess.CounterpartID,
		MaxRounds:   sess.MaxRounds,
		Completed:   sess.Completed,
		Messages:    sess.Messages,
		Verdict:     sess.Verdict,
	}
}

func participantID(c *gin.Context) string {
	return c.GetString(middlewares.ParticipantKey)
}

// respondError maps the service error taxonomy onto HTTP statuses.
func respondError(c *gin.Context, err error) {
	var validation *services.ValidationError
	switch {
	case errors.As(err, &validation):
		c.JSON(http.StatusBadRequest, gin.H{"error": validation.Msg})
	case errors.Is(err, services.ErrSessionNotFound),
		errors.Is(err, services.ErrCounterpartNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, services.ErrNotOwner):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, services.ErrAlreadyCompleted),
		errors.Is(err, services.ErrNotCompleted),
		errors.Is(err, services.ErrRoundLimit),
		errors.Is(err, services.ErrDuplicateVote):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		log.Printf("internal error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}

func (sc *SessionController) CreateSession(c *gin.Context) {
	var req CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request payload: " + err.Error()})
		return
	}

	sess, err := sc.svc.CreateSession(c.Request.Context(), participantID(c), req.CounterpartID, req.Topic, req.MaxRounds)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, sessionResponse(sess))
}

func (sc *SessionController) GetSession(c *gin.Context) {
	sess, err := sc.svc.Get(c.Request.Context(), c.Param("token"), participantID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, sessionResponse(sess))
}

func (sc *SessionController) ListSessions(c *gin.Context) {
	sessions, err := sc.svc.ListForParticipant(c.Request.Context(), participantID(c), 20)
	if err != nil {
		respondError(c, err)
		return
	}
	out := make([]SessionResponse, 0, len(sessions))
	for i := range sessions {
		out = append(out, sessionResponse(&sessions[i]))
	}
	c.JSON(http.StatusOK, gin.H{"sessions": out})
}

func (sc *SessionController) SubmitMessage(c *gin.Context) {
	var req SubmitMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request payload: " + err.Error()})
		return
	}

	userMsg, assistantMsg, err := sc.svc.AppendUserMessage(c.Request.Context(), c.Param("token"), participantID(c), req.Content)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, SubmitMessageResponse{UserMessage: *userMsg, AssistantMessage: *assistantMsg})
}

func (sc *SessionController) CompleteSession(c *gin.Context) {
	verdict, err := sc.svc.Complete(c.Request.Context(), c.Param("token"), participantID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"verdict": verdict})
}

func (sc *SessionController) RegenerateVerdict(c *gin.Context) {
	verdict, err := sc.svc.RegenerateVerdict(c.Request.Context(), c.Param("token"), participantID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"verdict": verdict})
}

func (sc *SessionController) ExtendRounds(c *gin.Context) {
	var req ExtendRoundsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request payload: " + err.Error()})
		return
	}

	sess, err := sc.svc.ExtendRounds(c.Request.Context(), c.Param("token"), participantID(c), req.MaxRounds)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, sessionResponse(sess))
}

func (sc *SessionController) CastVote(c *gin.Context) {
	var req CastVoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request payload: " + err.Error()})
		return
	}

	if err := sc.svc.CastVote(c.Request.Context(), c.Param("token"), participantID(c), req.Side); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "recorded"})
}
