package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"serialpha/src/acquisition"
	"serialpha/src/helpers"
	"serialpha/src/interfaces"
	"serialpha/src/logger"
	"serialpha/src/models"
	"serialpha/src/profile"
	"serialpha/src/transport"

	"github.com/gorilla/websocket"
)

// -----------------------------------------------------------------------------
// Fixtures
// -----------------------------------------------------------------------------

const benchProfile = `{"name":"bench","serial":{"baudRate":9600},"timing":{"minIntervalMs":100}}`

// pipeOpener hands out a transport fed through an in-memory pipe.
type pipeOpener struct {
	mu sync.Mutex
	w  *io.PipeWriter
}

func (o *pipeOpener) Open(ctx context.Context, p models.MProfile, port string) (interfaces.ITransport, error) {
	dec, err := transport.NewStreamDecoder(p.Serial.Encoding)
	if err != nil {
		return nil, err
	}
	r, w := io.Pipe()
	o.mu.Lock()
	o.w = w
	o.mu.Unlock()
	return transport.NewReaderTransport(r, "pipe", 0, 0, dec), nil
}

func (o *pipeOpener) write(t *testing.T, data string) {
	t.Helper()
	o.mu.Lock()
	w := o.w
	o.mu.Unlock()
	if _, err := w.Write([]byte(data)); err != nil {
		t.Fatalf("pipe write: %v", err)
	}
}

type testServer struct {
	srv    *ControlServer
	ctrl   *acquisition.Controller
	opener *pipeOpener
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	cfg := &models.MConfig{}
	cfg.Export.FallbackDir = t.TempDir()

	ts := &testServer{opener: &pipeOpener{}}
	ts.srv = NewControlServer(cfg, logger.NewLogger(cfg, "ControlServerTest"))
	ts.ctrl = acquisition.NewController(acquisition.Options{
		Config:   cfg,
		Registry: profile.NewRegistry(),
		Opener:   ts.opener,
		Exchange: ts.srv,
	})
	ts.srv.SetController(ts.ctrl)
	ts.ctrl.Restore()

	t.Cleanup(func() {
		ts.ctrl.Shutdown()
		ts.srv.Stop()
	})
	return ts
}

func (ts *testServer) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = strings.NewReader(b)
	default:
		data, err := json.Marshal(b)
		if err != nil {
			t.Fatal(err)
		}
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	ts.srv.Handler().ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, dst interface{}) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), dst); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
}

// selectBench imports the bench profile over HTTP and selects it.
func (ts *testServer) selectBench(t *testing.T) {
	t.Helper()
	rec := ts.do(t, http.MethodPost, "/api/profiles/import?filename=bench.json", benchProfile)
	if rec.Code != http.StatusOK {
		t.Fatalf("import: %d %s", rec.Code, rec.Body.String())
	}
	var imported struct{ Accepted, Rejected int }
	decode(t, rec, &imported)
	if imported.Accepted != 1 || imported.Rejected != 0 {
		t.Fatalf("import counts = %+v", imported)
	}

	profiles, _ := ts.ctrl.Profiles()
	rec = ts.do(t, http.MethodPut, "/api/profiles/selected", map[string]int{"index": len(profiles) - 1})
	if rec.Code != http.StatusOK {
		t.Fatalf("select: %d %s", rec.Code, rec.Body.String())
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

// -----------------------------------------------------------------------------
// REST
// -----------------------------------------------------------------------------

func TestHealth(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(t, http.MethodGet, "/api/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body struct {
		Status    string `json:"status"`
		Connected bool   `json:"connected"`
	}
	decode(t, rec, &body)
	if body.Status != "ok" || body.Connected {
		t.Errorf("body = %+v", body)
	}
}

func TestProfilesImportAndSelect(t *testing.T) {
	ts := newTestServer(t)
	ts.selectBench(t)

	rec := ts.do(t, http.MethodGet, "/api/profiles", nil)
	var body struct {
		Profiles []models.MProfile `json:"profiles"`
		Selected int               `json:"selected"`
	}
	decode(t, rec, &body)
	if body.Selected != len(body.Profiles)-1 || body.Profiles[body.Selected].Name != "bench" {
		t.Errorf("selected %d of %d", body.Selected, len(body.Profiles))
	}

	rec = ts.do(t, http.MethodGet, "/api/profiles/export", nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"bench"`) {
		t.Errorf("export: %d %s", rec.Code, rec.Body.String())
	}
	if cd := rec.Header().Get("Content-Disposition"); !strings.Contains(cd, "instrument-profiles.json") {
		t.Errorf("Content-Disposition = %q", cd)
	}
}

func TestProfilesImportRejectsGarbage(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(t, http.MethodPost, "/api/profiles/import", "{not json")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, body %s", rec.Code, rec.Body.String())
	}
}

func TestSelectProfileOutOfRange(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(t, http.MethodPut, "/api/profiles/selected", map[string]int{"index": 99})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d", rec.Code)
	}
	rec = ts.do(t, http.MethodPut, "/api/profiles/selected", map[string]string{})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing index: status = %d", rec.Code)
	}
}

func TestValidateInterval(t *testing.T) {
	ts := newTestServer(t)
	ts.selectBench(t)

	tests := []struct {
		value, unit string
		valid       bool
		ms          int64
	}{
		{"2", "s", true, 2000},
		{"100", "ms", true, 100},
		{"50", "ms", false, 0},
		{"abc", "s", false, 0},
		{"1", "week", false, 0},
	}
	for _, tt := range tests {
		t.Run(tt.value+tt.unit, func(t *testing.T) {
			rec := ts.do(t, http.MethodPost, "/api/interval/validate", map[string]string{"value": tt.value, "unit": tt.unit})
			var body struct {
				Valid       bool   `json:"valid"`
				IntervalMs  int64  `json:"interval_ms"`
				Message     string `json:"message"`
				MinInterval string `json:"min_interval"`
			}
			decode(t, rec, &body)
			if body.Valid != tt.valid || body.IntervalMs != tt.ms {
				t.Errorf("body = %+v", body)
			}
			if body.MinInterval != "100 ms" {
				t.Errorf("min_interval = %q", body.MinInterval)
			}
			if !tt.valid && body.Message == "" {
				t.Error("invalid interval without message")
			}
		})
	}
}

func TestConnectRefusesShortInterval(t *testing.T) {
	ts := newTestServer(t)
	ts.selectBench(t)

	rec := ts.do(t, http.MethodPost, "/api/connect", acquisition.ConnectRequest{IntervalValue: "10", IntervalUnit: "ms"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
	if ts.ctrl.Connected() {
		t.Error("connected after a refused interval")
	}
}

func TestDisconnectWhenIdle(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(t, http.MethodPost, "/api/disconnect", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestTitrationWithoutMeasurement(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(t, http.MethodPost, "/api/titration", map[string]string{"volume": "100"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestSelectUnknownField(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(t, http.MethodPut, "/api/field", map[string]string{"field": "voltage"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d", rec.Code)
	}
	rec = ts.do(t, http.MethodGet, "/api/series/summary?field=voltage", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("summary status = %d", rec.Code)
	}
}

func TestAcquisitionRoundTrip(t *testing.T) {
	ts := newTestServer(t)
	ts.selectBench(t)

	rec := ts.do(t, http.MethodPost, "/api/connect", acquisition.ConnectRequest{IntervalValue: "1", IntervalUnit: "h"})
	if rec.Code != http.StatusOK {
		t.Fatalf("connect: %d %s", rec.Code, rec.Body.String())
	}
	var state models.MLatestData
	decode(t, rec, &state)
	if !state.Connected || state.IntervalMs != 3600000 || state.Port != "replay pipe" {
		t.Errorf("state = %+v", state)
	}

	// selecting another instrument is refused while connected
	rec = ts.do(t, http.MethodPut, "/api/profiles/selected", map[string]int{"index": 0})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("select while connected: %d", rec.Code)
	}

	ts.opener.write(t, "7.3,24\n")
	waitFor(t, "measurement", func() bool {
		_, ok := ts.ctrl.State(acquisition.TypeUpdate, "").Latest["pH"]
		return ok
	})

	rec = ts.do(t, http.MethodGet, "/api/records/recent", nil)
	if !strings.Contains(rec.Body.String(), "7.3,24") {
		t.Errorf("recent records = %s", rec.Body.String())
	}

	rec = ts.do(t, http.MethodPost, "/api/titration", map[string]string{"volume": "100"})
	if rec.Code != http.StatusOK {
		t.Fatalf("titration: %d %s", rec.Code, rec.Body.String())
	}
	var row models.MTitrationRow
	decode(t, rec, &row)
	if row.Read != 1 || row.Volume != 100 {
		t.Errorf("row = %+v", row)
	}

	rec = ts.do(t, http.MethodGet, "/api/series/titration/csv", nil)
	if rec.Code != http.StatusOK || !strings.HasPrefix(rec.Body.String(), "time,read,volume") {
		t.Errorf("csv: %d %q", rec.Code, rec.Body.String())
	}

	rec = ts.do(t, http.MethodPost, "/api/disconnect", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("disconnect: %d %s", rec.Code, rec.Body.String())
	}
	if ts.ctrl.Connected() {
		t.Error("still connected")
	}

	rec = ts.do(t, http.MethodGet, "/api/series", nil)
	var series models.MExportData
	decode(t, rec, &series)
	if len(series.Titration) != 1 {
		t.Errorf("titration rows after disconnect = %d", len(series.Titration))
	}

	rec = ts.do(t, http.MethodDelete, "/api/data", nil)
	if rec.Code != http.StatusNoContent {
		t.Errorf("clear: %d", rec.Code)
	}
}

func TestSeriesCSVUnknownKind(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(t, http.MethodGet, "/api/series/volts/csv", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestExportFolder(t *testing.T) {
	ts := newTestServer(t)
	dir := t.TempDir()

	rec := ts.do(t, http.MethodPut, "/api/export/folder", map[string]string{"folder": dir})
	if rec.Code != http.StatusOK {
		t.Fatalf("set: %d %s", rec.Code, rec.Body.String())
	}
	if ts.ctrl.ExportFolder() != dir {
		t.Errorf("folder = %q", ts.ctrl.ExportFolder())
	}

	rec = ts.do(t, http.MethodPost, "/api/export", nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "no data") {
		t.Errorf("empty export: %d %s", rec.Code, rec.Body.String())
	}

	rec = ts.do(t, http.MethodDelete, "/api/export/folder", nil)
	if rec.Code != http.StatusNoContent || ts.ctrl.ExportFolder() != "" {
		t.Errorf("clear: %d, folder %q", rec.Code, ts.ctrl.ExportFolder())
	}

	rec = ts.do(t, http.MethodPut, "/api/export/folder", map[string]string{"folder": ""})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("empty folder: %d", rec.Code)
	}
}

func TestPorts(t *testing.T) {
	ts := newTestServer(t)

	orig := listPorts
	t.Cleanup(func() { listPorts = orig })

	listPorts = func() ([]string, error) { return []string{"/dev/ttyUSB0"}, nil }
	rec := ts.do(t, http.MethodGet, "/api/ports", nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "/dev/ttyUSB0") {
		t.Errorf("ports: %d %s", rec.Code, rec.Body.String())
	}

	listPorts = func() ([]string, error) {
		return nil, helpers.NewTransportError("enumeration failed", errors.New("boom"), false)
	}
	rec = ts.do(t, http.MethodGet, "/api/ports", nil)
	if rec.Code != http.StatusBadGateway {
		t.Errorf("failing enumeration: %d", rec.Code)
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{helpers.NewConfigurationError("bad"), http.StatusBadRequest},
		{helpers.NewTransportError("gone", nil, true), http.StatusBadGateway},
		{helpers.NewExportError("disk", nil), http.StatusInternalServerError},
		{errors.New("other"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := statusFor(tt.err); got != tt.want {
			t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

// -----------------------------------------------------------------------------
// WebSocket
// -----------------------------------------------------------------------------

func TestWebSocketInitialStateAndCommandError(t *testing.T) {
	ts := newTestServer(t)
	httpSrv := httptest.NewServer(ts.srv.Handler())
	defer httpSrv.Close()

	url := "ws" + strings.TrimPrefix(httpSrv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(3 * time.Second))

	var initial models.MLatestData
	if err := conn.ReadJSON(&initial); err != nil {
		t.Fatalf("read initial: %v", err)
	}
	if initial.Type != acquisition.TypeInitial || initial.Profile == "" {
		t.Errorf("initial = %+v", initial)
	}

	// no measurement yet, so the point is refused and only this client hears about it
	if err := conn.WriteJSON(models.MClientCommand{Command: "add_point", Volume: "10"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	var alert models.MLatestData
	if err := conn.ReadJSON(&alert); err != nil {
		t.Fatalf("read alert: %v", err)
	}
	if alert.Type != acquisition.TypeAlert || !strings.Contains(alert.Message, "no measurement") {
		t.Errorf("alert = %+v", alert)
	}
}

func TestBroadcastReachesClients(t *testing.T) {
	ts := newTestServer(t)
	httpSrv := httptest.NewServer(ts.srv.Handler())
	defer httpSrv.Close()

	url := "ws" + strings.TrimPrefix(httpSrv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(3 * time.Second))

	var initial models.MLatestData
	if err := conn.ReadJSON(&initial); err != nil {
		t.Fatalf("read initial: %v", err)
	}

	if err := conn.WriteJSON(models.MClientCommand{Command: "clear"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	var update models.MLatestData
	if err := conn.ReadJSON(&update); err != nil {
		t.Fatalf("read update: %v", err)
	}
	if update.Type != acquisition.TypeUpdate {
		t.Errorf("update = %+v", update)
	}
}

func TestWebSocketIgnoresBinaryFrames(t *testing.T) {
	ts := newTestServer(t)
	httpSrv := httptest.NewServer(ts.srv.Handler())
	defer httpSrv.Close()

	url := "ws" + strings.TrimPrefix(httpSrv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(3 * time.Second))

	var initial models.MLatestData
	if err := conn.ReadJSON(&initial); err != nil {
		t.Fatalf("read initial: %v", err)
	}

	if err := conn.WriteMessage(websocket.BinaryMessage, []byte(`{"command":"clear"}`)); err != nil {
		t.Fatalf("write binary: %v", err)
	}
	// the console stays attached and the next text command is answered
	if err := conn.WriteJSON(models.MClientCommand{Command: "add_point", Volume: "1"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	var reply models.MLatestData
	if err := conn.ReadJSON(&reply); err != nil {
		t.Fatalf("read reply: %v", err)
	}
	if reply.Type != acquisition.TypeAlert {
		t.Errorf("first message after binary frame = %+v, want the add_point alert", reply)
	}
}

func TestBroadcastIgnoresForeignPayload(t *testing.T) {
	ts := newTestServer(t)
	ts.srv.Broadcast(map[string]interface{}{"type": "UPDATE"})
	ts.srv.UpdateAllDatas("nope")
	if got := ts.srv.initialState(); got.Type != acquisition.TypeInitial {
		t.Errorf("initial type = %q", got.Type)
	}
}
