// Package client implements the consuming side of a session: an HTTP API
// client, an optimistic local message log, and the polling state machine
// that keeps the local view reconciled with the authoritative store.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"time"

	"sparhub/models"
)

// API is a thin typed client over the server's session routes. The cookie
// jar keeps the guest identity stable across calls.
type API struct {
	base string
	http *http.Client
}

func NewAPI(base string) *API {
	jar, _ := cookiejar.New(nil)
	return &API{
		base: base,
		http: &http.Client{
			// Submit blocks on server-side generation; allow for the full
			// reply budget plus transport overhead.
			Timeout: 35 * time.Second,
			Jar:     jar,
		},
	}
}

// APIError is a non-2xx response from the server.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.Status, e.Message)
}

// SessionView mirrors the server's session response.
type SessionView struct {
	PublicToken   string           `json:"publicToken"`
	Topic         string           `json:"topic"`
	CounterpartID string           `json:"counterpartId"`
	MaxRounds     int              `json:"maxRounds"`
	Completed     bool             `json:"completed"`
	Messages      []models.Message `json:"messages"`
	Verdict       *models.Verdict  `json:"verdict,omitempty"`
}

// SubmitResult is the confirmed message pair returned by a submission.
type SubmitResult struct {
	UserMessage      models.Message `json:"userMessage"`
	AssistantMessage models.Message `json:"assistantMessage"`
}

func (a *API) CreateSession(ctx context.Context, counterpartID, topic string, maxRounds int) (*SessionView, error) {
	var view SessionView
	err := a.do(ctx, http.MethodPost, "/sessions", map[string]interface{}{
		"counterpartId": counterpartID,
		"topic":         topic,
		"maxRounds":     maxRounds,
	}, &view)
	if err != nil {
		return nil, err
	}
	return &view, nil
}

func (a *API) FetchSession(ctx context.Context, token string) (*SessionView, error) {
	var view SessionView
	if err := a.do(ctx, http.MethodGet, "/sessions/"+token, nil, &view); err != nil {
		return nil, err
	}
	return &view, nil
}

func (a *API) SubmitMessage(ctx context.Context, token, content string) (*SubmitResult, error) {
	var result SubmitResult
	err := a.do(ctx, http.MethodPost, "/sessions/"+token+"/messages", map[string]string{"content": content}, &result)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (a *API) CompleteSession(ctx context.Context, token string) (*models.Verdict, error) {
	var resp struct {
		Verdict *models.Verdict `json:"verdict"`
	}
	if err := a.do(ctx, http.MethodPost, "/sessions/"+token+"/complete", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Verdict, nil
}

func (a *API) RegenerateVerdict(ctx context.Context, token string) (*models.Verdict, error) {
	var resp struct {
		Verdict *models.Verdict `json:"verdict"`
	}
	if err := a.do(ctx, http.MethodPost, "/sessions/"+token+"/verdict/regenerate", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Verdict, nil
}

func (a *API) ExtendRounds(ctx context.Context, token string, maxRounds int) (*SessionView, error) {
	var view SessionView
	err := a.do(ctx, http.MethodPost, "/sessions/"+token+"/extend", map[string]int{"maxRounds": maxRounds}, &view)
	if err != nil {
		return nil, err
	}
	return &view, nil
}

func (a *API) CastVote(ctx context.Context, token, side string) error {
	return a.do(ctx, http.MethodPost, "/sessions/"+token+"/vote", map[string]string{"side": side}, nil)
}

func (a *API) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.base+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := a.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var errBody struct {
			Error string `json:"error"`
		}
		data, _ := io.ReadAll(resp.Body)
		_ = json.Unmarshal(data, &errBody)
		if errBody.Error == "" {
			errBody.Error = string(data)
		}
		return &APIError{Status: resp.StatusCode, Message: errBody.Error}
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
