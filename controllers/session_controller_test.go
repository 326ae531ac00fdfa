package controllers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"testing"

	"sparhub/config"
	"sparhub/db"
	"sparhub/models"
	"sparhub/routes"
	"sparhub/services"
	"sparhub/utils"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fixedGen struct{}

func (fixedGen) GenerateReply(ctx context.Context, sess *models.Session, cp *models.Counterpart, knowledge string) (string, error) {
	return "counter-argument", nil
}

func (fixedGen) GenerateVerdict(ctx context.Context, sess *models.Session, cp *models.Counterpart, knowledge string) (*models.Verdict, error) {
	return &models.Verdict{Conclusion: models.Conclusion{Outcome: models.SideParticipant}}, nil
}

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	cfg := &config.Config{}
	cfg.Server.AllowOrigins = []string{"http://localhost"}

	store := db.NewMemoryStore()
	utils.SeedCounterparts(context.Background(), store)
	svc := services.NewSessionService(store, fixedGen{}, services.NewMemoryActivityTracker(), []int{3, 6, 8}, 3, false)

	srv := httptest.NewServer(routes.NewRouter(cfg, svc, store))
	t.Cleanup(srv.Close)
	return srv
}

func newClient(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &http.Client{Jar: jar}
}

func postJSON(t *testing.T, client *http.Client, url string, body interface{}) (*http.Response, map[string]json.RawMessage) {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := client.Post(url, "application/json", bytes.NewReader(payload))
	require.NoError(t, err)
	defer resp.Body.Close()

	var decoded map[string]json.RawMessage
	_ = json.NewDecoder(resp.Body).Decode(&decoded)
	return resp, decoded
}

func createSession(t *testing.T, client *http.Client, base string) string {
	t.Helper()
	resp, body := postJSON(t, client, base+"/sessions", map[string]interface{}{
		"counterpartId": "pragmatist",
		"topic":         "test topic",
		"maxRounds":     3,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var token string
	require.NoError(t, json.Unmarshal(body["publicToken"], &token))
	require.NotEmpty(t, token)
	return token
}

func TestCreateSessionUnknownCounterpartIs404(t *testing.T) {
	srv := newServer(t)
	client := newClient(t)

	resp, _ := postJSON(t, client, srv.URL+"/sessions", map[string]interface{}{
		"counterpartId": "nobody",
	})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestGetUnknownSessionIs404(t *testing.T) {
	srv := newServer(t)
	client := newClient(t)

	resp, err := client.Get(srv.URL + "/sessions/does-not-exist")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestRoundLimitIs400(t *testing.T) {
	srv := newServer(t)
	client := newClient(t)
	token := createSession(t, client, srv.URL)

	for i := 0; i < 3; i++ {
		resp, _ := postJSON(t, client, srv.URL+"/sessions/"+token+"/messages", map[string]string{"content": "point"})
		require.Equal(t, http.StatusOK, resp.StatusCode)
	}

	resp, body := postJSON(t, client, srv.URL+"/sessions/"+token+"/messages", map[string]string{"content": "extra"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	var msg string
	require.NoError(t, json.Unmarshal(body["error"], &msg))
	assert.Contains(t, msg, "round limit")
}

func TestExtendRoundsValidation(t *testing.T) {
	srv := newServer(t)
	client := newClient(t)
	token := createSession(t, client, srv.URL)

	resp, _ := postJSON(t, client, srv.URL+"/sessions/"+token+"/extend", map[string]int{"maxRounds": 6})
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = postJSON(t, client, srv.URL+"/sessions/"+token+"/extend", map[string]int{"maxRounds": 3})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestVoteFlow(t *testing.T) {
	srv := newServer(t)
	client := newClient(t)
	token := createSession(t, client, srv.URL)

	// Voting before completion is rejected.
	resp, _ := postJSON(t, client, srv.URL+"/sessions/"+token+"/vote", map[string]string{"side": "participant"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = postJSON(t, client, srv.URL+"/sessions/"+token+"/complete", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = postJSON(t, client, srv.URL+"/sessions/"+token+"/vote", map[string]string{"side": "participant"})
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = postJSON(t, client, srv.URL+"/sessions/"+token+"/vote", map[string]string{"side": "counterpart"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestOwnershipIs403AcrossGuests(t *testing.T) {
	srv := newServer(t)
	owner := newClient(t)
	stranger := newClient(t)
	token := createSession(t, owner, srv.URL)

	resp, err := stranger.Get(srv.URL + "/sessions/" + token)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestGuestIdentityIsStable(t *testing.T) {
	srv := newServer(t)
	client := newClient(t)
	token := createSession(t, client, srv.URL)

	// The same jar carries the same guest identity, so the listing and the
	// session itself stay visible.
	resp, err := client.Get(srv.URL + "/sessions/" + token)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = client.Get(srv.URL + "/sessions")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var listing struct {
		Sessions []struct {
			PublicToken string `json:"publicToken"`
		} `json:"sessions"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&listing))
	require.Len(t, listing.Sessions, 1)
	assert.Equal(t, token, listing.Sessions[0].PublicToken)
}

func TestSessionViewHidesSystemMessage(t *testing.T) {
	srv := newServer(t)
	client := newClient(t)
	token := createSession(t, client, srv.URL)

	resp, err := client.Get(srv.URL + "/sessions/" + token)
	require.NoError(t, err)
	defer resp.Body.Close()

	var view struct {
		Messages []models.Message `json:"messages"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&view))
	require.NotEmpty(t, view.Messages)
	for _, m := range view.Messages {
		assert.NotEqual(t, models.RoleSystem, m.Role, fmt.Sprintf("system message leaked: %+v", m))
	}
}

func TestCounterpartCatalog(t *testing.T) {
	srv := newServer(t)
	client := newClient(t)

	resp, err := client.Get(srv.URL + "/counterparts")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var listing struct {
		Counterparts []models.Counterpart `json:"counterparts"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&listing))
	require.Len(t, listing.Counterparts, 3)
	for _, cp := range listing.Counterparts {
		assert.NotEmpty(t, cp.DisplayName)
		assert.NotEmpty(t, cp.AccentColor)
	}
}
