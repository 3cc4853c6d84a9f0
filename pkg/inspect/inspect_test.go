package inspect

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reduct-dev/reduct/pkg/reduct"
)

type todoState struct {
	Items []string `json:"items"`
}

type todoAction any

type addItem struct{ Text string }

func todoReducer(s todoState, a todoAction) (todoState, []reduct.Effect[todoAction]) {
	if add, ok := a.(addItem); ok {
		s.Items = append(s.Items, add.Text)
	}
	return s, nil
}

func newTestServer(t *testing.T) (*reduct.Store[todoState, todoAction], *httptest.Server) {
	t.Helper()

	store := reduct.New(todoState{}, todoReducer)
	srv := httptest.NewServer(NewServer(store, WithPingInterval(time.Hour)))

	t.Cleanup(func() {
		srv.Close()
		store.Close()
	})
	return store, srv
}

func TestHealthz(t *testing.T) {
	_, srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestStateEndpoint(t *testing.T) {
	store, srv := newTestServer(t)

	store.Send(addItem{Text: "write docs"})
	store.Flush()

	resp, err := http.Get(srv.URL + "/state")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var envelope struct {
		State     todoState `json:"state"`
		NodeCount int       `json:"node_count"`
	}
	require.NoError(t, jsonDecode(resp, &envelope))
	assert.Equal(t, []string{"write docs"}, envelope.State.Items)
	assert.Equal(t, 1, envelope.NodeCount)
}

func TestEffectsEndpointEmpty(t *testing.T) {
	_, srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/effects")
	require.NoError(t, err)
	defer resp.Body.Close()

	var effects []reduct.EffectStatus
	require.NoError(t, jsonDecode(resp, &effects))
	assert.Empty(t, effects)
}

func TestMetricsEndpoint(t *testing.T) {
	_, srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestChangeFeedPushesSnapshots(t *testing.T) {
	store, srv := newTestServer(t)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	// The feed opens with a snapshot of the current state.
	var first struct {
		State todoState `json:"state"`
	}
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	require.NoError(t, conn.ReadJSON(&first))
	assert.Empty(t, first.State.Items)

	store.Send(addItem{Text: "ship it"})
	store.Flush()

	// Each committed pass pushes a fresh snapshot.
	var second struct {
		State todoState `json:"state"`
	}
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	require.NoError(t, conn.ReadJSON(&second))
	assert.Equal(t, []string{"ship it"}, second.State.Items)
}

func jsonDecode(resp *http.Response, v any) error {
	return json.NewDecoder(resp.Body).Decode(v)
}
