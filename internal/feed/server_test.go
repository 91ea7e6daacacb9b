package feed

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"smart-energy/internal/config"
	"smart-energy/internal/simulation"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testServer(t *testing.T) (*Server, *simulation.EnergySystem, *httptest.Server) {
	t.Helper()
	logger := logrus.New()
	logger.SetLevel(logrus.FatalLevel)

	system := simulation.NewEnergySystem(simulation.NewSource(9), logger)
	s := NewServer(&config.Config{}, system, logger)

	ctx, cancel := context.WithCancel(context.Background())
	s.watch(ctx)

	srv := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		srv.Close()
		s.Stop()
		cancel()
	})
	return s, system, srv
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var msg Message
	require.NoError(t, json.Unmarshal(data, &msg))
	return msg
}

func TestFeed_InitialSnapshot(t *testing.T) {
	s, system, srv := testServer(t)
	conn := dial(t, srv)

	msg := readMessage(t, conn)

	assert.Equal(t, MessageSnapshot, msg.Type)
	assert.NotEmpty(t, msg.ClientID)
	require.NotNil(t, msg.Snapshot)
	assert.Equal(t, system.Snapshot(), *msg.Snapshot)
	assert.Eventually(t, func() bool { return s.ClientCount() == 1 }, time.Second, 5*time.Millisecond)
}

func TestFeed_PushesSnapshotAfterTick(t *testing.T) {
	s, system, srv := testServer(t)
	conn := dial(t, srv)
	readMessage(t, conn)
	require.Eventually(t, func() bool { return s.ClientCount() == 1 }, time.Second, 5*time.Millisecond)

	for i := 0; i < 3; i++ {
		system.Tick()
	}

	// snapshots are coalesced; read until the latest tick shows up
	var last Message
	for last.Snapshot == nil || last.Snapshot.Tick < 3 {
		last = readMessage(t, conn)
		assert.Equal(t, MessageSnapshot, last.Type)
		assert.Empty(t, last.ClientID)
	}
	assert.Equal(t, last.Snapshot.WindPower+last.Snapshot.SolarPower, last.Snapshot.TotalPower)
}

func TestFeed_RefreshRequest(t *testing.T) {
	s, system, srv := testServer(t)
	conn := dial(t, srv)
	readMessage(t, conn)
	require.Eventually(t, func() bool { return s.ClientCount() == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, conn.WriteJSON(Message{Type: MessageRefresh}))

	msg := readMessage(t, conn)
	assert.Equal(t, MessageSnapshot, msg.Type)
	assert.Equal(t, system.Snapshot(), *msg.Snapshot)
	assert.Equal(t, uint64(0), system.Ticks())
}

func TestFeed_UnknownMessageIgnored(t *testing.T) {
	s, _, srv := testServer(t)
	conn := dial(t, srv)
	readMessage(t, conn)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"set","snapshot":{"wind_power":99}}`)))
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`not json`)))

	// connection stays open
	require.NoError(t, conn.WriteJSON(Message{Type: MessageRefresh}))
	msg := readMessage(t, conn)
	assert.NotEqual(t, 99.0, msg.Snapshot.WindPower)
	assert.Equal(t, 1, s.ClientCount())
}

func TestFeed_ClientDisconnect(t *testing.T) {
	s, _, srv := testServer(t)
	conn := dial(t, srv)
	readMessage(t, conn)
	require.Eventually(t, func() bool { return s.ClientCount() == 1 }, time.Second, 5*time.Millisecond)

	conn.Close()

	assert.Eventually(t, func() bool { return s.ClientCount() == 0 }, time.Second, 5*time.Millisecond)
}

func TestFeed_Status(t *testing.T) {
	_, _, srv := testServer(t)

	resp, err := http.Get(srv.URL + "/status")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var status struct {
		Clients  int                 `json:"clients"`
		Snapshot simulation.Snapshot `json:"snapshot"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&status))
	assert.Equal(t, 0, status.Clients)
	assert.Len(t, status.Snapshot.SecurityParameters, 3)
	assert.Equal(t, 100.0, status.Snapshot.BatteryCapacity)
}
