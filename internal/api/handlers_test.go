package api

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/wellbeat/healthsync/internal/config"
	"github.com/wellbeat/healthsync/internal/server"
	"github.com/wellbeat/healthsync/internal/stats"
	"github.com/wellbeat/healthsync/internal/store"
	"github.com/wellbeat/healthsync/internal/testutil"
	"github.com/wellbeat/healthsync/pkg/event"
)

type testApp struct {
	app *App
	hub *server.Hub
	mux *http.ServeMux
	st  *store.MockStore
}

func newTestApp(t *testing.T) *testApp {
	su := &stats.MockStatsUpdater{}
	su.On("RegisterMetric", mock.Anything).Times(4)
	su.On("Incr", mock.Anything).Maybe()
	su.On("Decr", mock.Anything).Maybe()

	logger := testutil.TestLogger(t)

	hub, err := server.NewHub(logger, su)
	require.NoError(t, err, "expected hub to be created")

	dispatcher := server.NewDispatcher(hub, logger, su)

	cfg, err := config.NewConfig("localhost:0", "mongodb://localhost:27017/test",
		base64.StdEncoding.EncodeToString(testSigningKey), nil)
	require.NoError(t, err, "expected config to be created")

	st := &store.MockStore{}
	mux := http.NewServeMux()
	app := NewApp(mux, logger, hub, dispatcher, st, cfg)

	go hub.Run()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		if err := hub.Shutdown(ctx); err != nil {
			t.Errorf("hub shutdown: %v", err)
		}
	})

	return &testApp{app: app, hub: hub, mux: mux, st: st}
}

func (ta *testApp) request(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body), "expected request body to encode")
	}

	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rr := httptest.NewRecorder()
	ta.mux.ServeHTTP(rr, req)
	return rr
}

func TestCreateVitals(t *testing.T) {
	ta := newTestApp(t)
	token := makeToken(t, testSigningKey, "user-1")

	t.Run("stores and responds", func(t *testing.T) {
		want := store.VitalsRecord{Id: "v-1", UserId: "user-1", HeartRate: 72}
		ta.st.On("CreateVitals", mock.Anything, mock.MatchedBy(func(rec store.VitalsRecord) bool {
			return rec.UserId == "user-1" && rec.HeartRate == 72
		})).Return(want, nil).Once()
		defer ta.st.AssertExpectations(t)

		rr := ta.request(t, http.MethodPost, "/api/vitals", token, CreateVitalsRequest{HeartRate: 72})
		assert.Equal(t, http.StatusCreated, rr.Code, "expected created status")

		var rec store.VitalsRecord
		require.NoError(t, json.NewDecoder(rr.Body).Decode(&rec), "expected record in response")
		assert.Equal(t, want.Id, rec.Id, "expected the stored record")
	})

	t.Run("rejects missing token", func(t *testing.T) {
		rr := ta.request(t, http.MethodPost, "/api/vitals", "", CreateVitalsRequest{HeartRate: 72})
		assert.Equal(t, http.StatusUnauthorized, rr.Code, "expected unauthorized without a token")
	})

	t.Run("rejects malformed body", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/vitals", strings.NewReader("{"))
		req.Header.Set("Authorization", "Bearer "+token)
		rr := httptest.NewRecorder()
		ta.mux.ServeHTTP(rr, req)
		assert.Equal(t, http.StatusBadRequest, rr.Code, "expected bad request for malformed JSON")
	})
}

func TestCreateMood(t *testing.T) {
	ta := newTestApp(t)
	token := makeToken(t, testSigningKey, "user-1")

	t.Run("requires a mood", func(t *testing.T) {
		rr := ta.request(t, http.MethodPost, "/api/moods", token, CreateMoodRequest{Intensity: 3})
		assert.Equal(t, http.StatusBadRequest, rr.Code, "expected bad request without a mood value")
	})

	t.Run("stores and responds", func(t *testing.T) {
		want := store.MoodEntry{Id: "m-1", UserId: "user-1", Mood: "calm"}
		ta.st.On("CreateMood", mock.Anything, mock.MatchedBy(func(e store.MoodEntry) bool {
			return e.UserId == "user-1" && e.Mood == "calm"
		})).Return(want, nil).Once()
		defer ta.st.AssertExpectations(t)

		rr := ta.request(t, http.MethodPost, "/api/moods", token, CreateMoodRequest{Mood: "calm"})
		assert.Equal(t, http.StatusCreated, rr.Code, "expected created status")
	})
}

func TestRemindMedication(t *testing.T) {
	ta := newTestApp(t)
	token := makeToken(t, testSigningKey, "user-1")

	t.Run("forbids another user's medication", func(t *testing.T) {
		ta.st.On("GetMedication", mock.Anything, "med-1").
			Return(store.Medication{Id: "med-1", UserId: "user-2"}, nil).Once()
		defer ta.st.AssertExpectations(t)

		rr := ta.request(t, http.MethodPost, "/api/medications/med-1/remind", token, nil)
		assert.Equal(t, http.StatusForbidden, rr.Code, "expected forbidden for another user's medication")
	})

	t.Run("publishes a reminder", func(t *testing.T) {
		ta.st.On("GetMedication", mock.Anything, "med-1").
			Return(store.Medication{Id: "med-1", UserId: "user-1", Name: "Sertraline"}, nil).Once()
		defer ta.st.AssertExpectations(t)

		rr := ta.request(t, http.MethodPost, "/api/medications/med-1/remind", token, nil)
		assert.Equal(t, http.StatusAccepted, rr.Code, "expected accepted status")
	})
}

func TestEmergencyAlert(t *testing.T) {
	ta := newTestApp(t)
	token := makeToken(t, testSigningKey, "user-1")

	rr := ta.request(t, http.MethodPost, "/api/emergency", token,
		EmergencyRequest{Data: json.RawMessage(`{"reason":"fall"}`)})
	assert.Equal(t, http.StatusAccepted, rr.Code, "expected accepted status")

	var update event.HealthUpdate
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&update), "expected the published update in the response")
	assert.Equal(t, event.Emergency, update.Type, "expected an emergency update")
	assert.Equal(t, "user-1", update.UserId, "expected the acting user as target")
}

// TestRealtimeFanout exercises the full path: an authenticated websocket
// client joins its room, a write completes over HTTP, and the resulting
// update is delivered over the socket.
func TestRealtimeFanout(t *testing.T) {
	ta := newTestApp(t)
	token := makeToken(t, testSigningKey, "user-1")

	ts := httptest.NewServer(ta.mux)
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	header := http.Header{"Authorization": {"Bearer " + token}}

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, header)
	require.NoError(t, err, "expected websocket handshake to succeed")
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(map[string]any{
		"id":   1,
		"join": map[string]string{"user_id": "user-1"},
	}), "expected join message to send")

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	var ack server.ServerMessage
	require.NoError(t, conn.ReadJSON(&ack), "expected a join ack")
	require.NotNil(t, ack.Response, "expected a response message")
	assert.Equal(t, http.StatusOK, ack.Response.ResponseCode, "expected join to be acknowledged")

	want := store.VitalsRecord{Id: "v-1", UserId: "user-1", HeartRate: 88}
	ta.st.On("CreateVitals", mock.Anything, mock.Anything).Return(want, nil).Once()

	rr := ta.request(t, http.MethodPost, "/api/vitals", token, CreateVitalsRequest{HeartRate: 88})
	require.Equal(t, http.StatusCreated, rr.Code, "expected the write to succeed")

	var msg server.ServerMessage
	require.NoError(t, conn.ReadJSON(&msg), "expected an update over the socket")
	require.NotNil(t, msg.Update, "expected an update message")
	assert.Equal(t, event.Vitals, msg.Update.Type, "expected a vitals update")
	assert.Equal(t, "user-1", msg.Update.UserId, "expected the update targeted at the acting user")

	var rec store.VitalsRecord
	require.NoError(t, json.Unmarshal(msg.Update.Payload, &rec), "expected the stored record as payload")
	assert.Equal(t, 88, rec.HeartRate, "expected the written vitals in the payload")
}

func TestServeWsRequiresAuth(t *testing.T) {
	ta := newTestApp(t)

	ts := httptest.NewServer(ta.mux)
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	assert.Error(t, err, "expected handshake to fail without a token")
	if resp != nil {
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, "expected unauthorized status")
	}
}
