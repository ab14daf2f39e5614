package api_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"llmrpg/internal/api"
	"llmrpg/internal/character"
	"llmrpg/internal/llmclient"
	"llmrpg/internal/mission"
	"llmrpg/internal/session"
	"llmrpg/internal/store"
	"llmrpg/internal/streamhub"
)

const testFileID = "file1"

func newTestServer(t *testing.T, fake *llmclient.Fake) (*api.Server, *store.Store) {
	t.Helper()
	st, err := store.New(t.TempDir())
	require.NoError(t, err)

	lore := store.Lore{Title: "Oakhaven", Eras: []store.Era{{Title: "Dawn", YearStart: 0, YearEnd: 100}}}
	require.NoError(t, st.SaveTemplate(testFileID, store.DocLore, &lore))

	player := store.Player{
		Profile:        character.NewProfile("Ash", 20, "nonbinary"),
		Attributes:     map[string]store.Attribute{"strength": {Value: 5}},
		Location:       "gate",
		UnlockedScenes: []string{"gate"},
		Network:        map[string]int{},
	}
	require.NoError(t, st.SaveTemplate(testFileID, store.DocPlayer, &player))
	require.NoError(t, st.SaveTemplate(testFileID, store.DocItems, &store.ItemsCatalog{}))

	scenes := store.Scenes{"gate": {Name: "Gate", Description: "A weathered gate."}}
	require.NoError(t, st.SaveTemplate(testFileID, store.DocScenes, &scenes))

	hub := streamhub.New()
	missionEngine := mission.New(fake)
	cfg := session.RuntimeConfig{
		Model: "test-model", Temperature: 0.9, MaxTokens: 1024,
		Timeout: 5 * time.Second, MaxRetries: 1,
		HistoryCap: 40, MissionCadence: 5, GameHoursPerAction: 1,
	}
	sessions := session.New(st, fake, hub, missionEngine, cfg)

	return &api.Server{Sessions: sessions, Hub: hub, Store: st, AllowedOrigin: "http://localhost:3000"}, st
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer(t, &llmclient.Fake{})
	r := s.Router()

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"ok"`)
}

func TestCreateSession_ReturnsCreatedSnapshot(t *testing.T) {
	s, _ := newTestServer(t, &llmclient.Fake{})
	r := s.Router()

	body := `{"fileId":"file1","playerName":"Mira","literaryStyle":"literary"}`
	req := httptest.NewRequest(http.MethodPost, "/sessions", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusCreated, w.Code)
	var cs session.ConversationState
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &cs))
	assert.Equal(t, "Mira", cs.PlayerName)
	assert.Equal(t, "gate", cs.GameState.CurrentLocation)
}

func TestCreateSession_UnknownFileIdReturns404(t *testing.T) {
	s, _ := newTestServer(t, &llmclient.Fake{})
	r := s.Router()

	body := `{"fileId":"no-such-file"}`
	req := httptest.NewRequest(http.MethodPost, "/sessions", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), `"NotFound"`)
}

func TestGetSession_UnknownSessionReturns404(t *testing.T) {
	s, _ := newTestServer(t, &llmclient.Fake{})
	r := s.Router()

	req := httptest.NewRequest(http.MethodGet, "/sessions/no-such-session", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestProcessAction_RoundTripsThroughRouter(t *testing.T) {
	reply := "[MISSION: false]\n[NARRATION: The gate creaks open.]\n"
	fake := &llmclient.Fake{Replies: []string{reply}}
	s, _ := newTestServer(t, fake)
	r := s.Router()

	createReq := httptest.NewRequest(http.MethodPost, "/sessions", strings.NewReader(`{"fileId":"file1","playerName":"Mira"}`))
	createReq.Header.Set("Content-Type", "application/json")
	createW := httptest.NewRecorder()
	r.ServeHTTP(createW, createReq)
	require.Equal(t, http.StatusCreated, createW.Code)
	var cs session.ConversationState
	require.NoError(t, json.Unmarshal(createW.Body.Bytes(), &cs))

	actionReq := httptest.NewRequest(http.MethodPost, "/sessions/"+cs.SessionID+"/actions", strings.NewReader(`{"action":"look around"}`))
	actionReq.Header.Set("Content-Type", "application/json")
	actionW := httptest.NewRecorder()
	r.ServeHTTP(actionW, actionReq)

	require.Equal(t, http.StatusOK, actionW.Code)
	var result session.Result
	require.NoError(t, json.Unmarshal(actionW.Body.Bytes(), &result))
	assert.True(t, result.GameState.IsInitialized)
}

func TestCORSPreflight_ShortCircuits(t *testing.T) {
	s, _ := newTestServer(t, &llmclient.Fake{})
	r := s.Router()

	req := httptest.NewRequest(http.MethodOptions, "/sessions", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Empty(t, w.Body.String())
}
