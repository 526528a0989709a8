package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/nerrad567/homesec-core/internal/actuator"
	"github.com/nerrad567/homesec-core/internal/ambient"
	"github.com/nerrad567/homesec-core/internal/audit"
	"github.com/nerrad567/homesec-core/internal/controller"
	"github.com/nerrad567/homesec-core/internal/infrastructure/config"
	"github.com/nerrad567/homesec-core/internal/infrastructure/logging"
	"github.com/nerrad567/homesec-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/homesec-core/internal/metrics"
	"github.com/nerrad567/homesec-core/internal/occupancy"
	"github.com/nerrad567/homesec-core/internal/otp"
)

type fakeState struct {
	snap controller.Snapshot
}

func (f *fakeState) Snapshot() controller.Snapshot { return f.snap }

type sentCommand struct {
	topic   string
	payload string
}

// fakeCommands validates like the real sender and records what it was given.
type fakeCommands struct {
	mu       sync.Mutex
	sent     []sentCommand
	delivery controller.Delivery
	err      error
}

func (f *fakeCommands) Send(topic string, payload []byte) (controller.Delivery, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	if topic == mqtt.TopicSecurityCount {
		if _, err := occupancy.ParseCapacity(payload); err != nil {
			return "", err
		}
	} else if _, err := actuator.Decode(topic, payload); err != nil {
		return "", err
	}
	f.sent = append(f.sent, sentCommand{topic: topic, payload: string(payload)})
	return f.delivery, nil
}

type fakeLink struct{ state mqtt.LinkState }

func (f fakeLink) State() mqtt.LinkState { return f.state }

type fakeAmbient struct {
	reading ambient.Reading
	ok      bool
}

func (f fakeAmbient) Latest() (ambient.Reading, bool) { return f.reading, f.ok }

type fakeCodes struct {
	verifyErr error
	qrErr     error
	verified  []int
	qrSize    int
}

func (f *fakeCodes) Verify(code int) error {
	f.verified = append(f.verified, code)
	return f.verifyErr
}

func (f *fakeCodes) QRCode(size int) ([]byte, error) {
	f.qrSize = size
	if f.qrErr != nil {
		return nil, f.qrErr
	}
	return []byte("\x89PNG"), nil
}

type fakeAudit struct {
	filter audit.Filter
	result *audit.ListResult
	err    error
}

func (f *fakeAudit) Create(_ context.Context, _ *audit.Entry) error { return nil }

func (f *fakeAudit) List(_ context.Context, filter audit.Filter) (*audit.ListResult, error) {
	f.filter = filter
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

type testDeps struct {
	state    *fakeState
	commands *fakeCommands
	codes    *fakeCodes
	audit    *fakeAudit
}

func testWSConfig() config.WebSocketConfig {
	return config.WebSocketConfig{MaxMessageSize: 8192, PingInterval: 30, PongTimeout: 10}
}

// testServer creates a Server wired to fakes. Optional deps are all set.
func testServer(t *testing.T) (*Server, *testDeps) {
	t.Helper()

	td := &testDeps{
		state: &fakeState{snap: controller.Snapshot{
			PeopleCount:      2,
			MaxPeopleAllowed: 5,
			Alarm:            "normal",
			CounterPhase:     "idle",
			Actuators: actuator.State{
				Lights:       []bool{true, false, false, false, false},
				HumidifierOn: true,
			},
		}},
		commands: &fakeCommands{delivery: controller.DeliveryMQTT},
		codes:    &fakeCodes{},
		audit:    &fakeAudit{result: &audit.ListResult{Entries: []audit.Entry{}, Limit: 50}},
	}

	log := logging.New(config.LoggingConfig{Level: "error", Format: "text", Output: "stdout"}, "test")

	srv, err := New(Deps{
		Config: config.APIConfig{
			Host: "127.0.0.1",
			Port: 0,
			Timeouts: config.APITimeoutConfig{
				Read:  5,
				Write: 5,
				Idle:  5,
			},
		},
		WS:       testWSConfig(),
		Logger:   log,
		State:    td.state,
		Commands: td.commands,
		Link:     fakeLink{state: mqtt.StateConnected},
		Ambient: fakeAmbient{
			reading: ambient.Reading{Temperature: 21.5, Humidity: 40},
			ok:      true,
		},
		Audit:   td.audit,
		Codes:   td.codes,
		Version: "test",
	})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go srv.hub.Run(ctx)

	return srv, td
}

func do(t *testing.T, srv *Server, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	srv.buildRouter().ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), v); err != nil {
		t.Fatalf("unmarshal %q: %v", w.Body.String(), err)
	}
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var resp struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	decodeBody(t, w, &resp)
	return resp.Error.Code
}

func TestNew_RequiredDeps(t *testing.T) {
	log := logging.Discard()
	tests := []struct {
		name string
		deps Deps
	}{
		{"no logger", Deps{State: &fakeState{}, Commands: &fakeCommands{}}},
		{"no state", Deps{Logger: log, Commands: &fakeCommands{}}},
		{"no commands", Deps{Logger: log, State: &fakeState{}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.deps); err == nil {
				t.Error("New() error = nil, want error")
			}
		})
	}
}

// ─── Health & System ───────────────────────────────────────────────

func TestHealth(t *testing.T) {
	srv, _ := testServer(t)

	w := do(t, srv, http.MethodGet, "/api/v1/health", "")
	if w.Code != http.StatusOK {
		t.Fatalf("health status = %d, want %d", w.Code, http.StatusOK)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}

	var resp map[string]any
	decodeBody(t, w, &resp)
	if resp["status"] != "ok" {
		t.Errorf("status = %v, want ok", resp["status"])
	}
	if resp["version"] != "test" {
		t.Errorf("version = %v, want test", resp["version"])
	}
	if resp["mqtt"] != mqtt.StateConnected.String() {
		t.Errorf("mqtt = %v, want %s", resp["mqtt"], mqtt.StateConnected)
	}
}

func TestSystem(t *testing.T) {
	srv, _ := testServer(t)

	w := do(t, srv, http.MethodGet, "/api/v1/system", "")
	if w.Code != http.StatusOK {
		t.Fatalf("system status = %d, want %d", w.Code, http.StatusOK)
	}
	var resp SystemMetrics
	decodeBody(t, w, &resp)
	if resp.Version != "test" {
		t.Errorf("version = %q, want test", resp.Version)
	}
	if resp.Runtime.Goroutines == 0 {
		t.Error("goroutines = 0, want > 0")
	}
	if resp.Database != nil {
		t.Errorf("database = %+v, want omitted without a pool", resp.Database)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	srv, _ := testServer(t)

	reg := prometheus.NewRegistry()
	m := metrics.New()
	if err := m.Register(reg); err != nil {
		t.Fatalf("Register: %v", err)
	}
	m.OccupancyCount.Set(3)
	srv.gatherer = reg

	w := do(t, srv, http.MethodGet, "/metrics", "")
	if w.Code != http.StatusOK {
		t.Fatalf("metrics status = %d, want %d", w.Code, http.StatusOK)
	}
	if !strings.Contains(w.Body.String(), "homesec_occupancy_count 3") {
		t.Errorf("metrics body missing occupancy gauge:\n%s", w.Body.String())
	}
}

// ─── Middleware ────────────────────────────────────────────────────

func TestRequestID_Generated(t *testing.T) {
	srv, _ := testServer(t)

	w := do(t, srv, http.MethodGet, "/api/v1/health", "")
	if w.Header().Get("X-Request-ID") == "" {
		t.Error("expected X-Request-ID header to be set")
	}
}

func TestRequestID_PreservesClient(t *testing.T) {
	srv, _ := testServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	req.Header.Set("X-Request-ID", "client-123")
	w := httptest.NewRecorder()
	srv.buildRouter().ServeHTTP(w, req)

	if got := w.Header().Get("X-Request-ID"); got != "client-123" {
		t.Errorf("X-Request-ID = %q, want %q", got, "client-123")
	}
}

func TestCORS_Preflight(t *testing.T) {
	srv, _ := testServer(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/occupancy/max", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	w := httptest.NewRecorder()
	srv.buildRouter().ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Errorf("preflight status = %d, want %d", w.Code, http.StatusNoContent)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Errorf("ACAO = %q, want %q", got, "http://localhost:3000")
	}
}

func TestNotFound(t *testing.T) {
	srv, _ := testServer(t)

	w := do(t, srv, http.MethodGet, "/api/v1/nonexistent", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("unknown route status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

// ─── Occupancy & Actuators ─────────────────────────────────────────

func TestGetOccupancy(t *testing.T) {
	srv, _ := testServer(t)

	w := do(t, srv, http.MethodGet, "/api/v1/occupancy", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	var resp OccupancyResponse
	decodeBody(t, w, &resp)
	if resp.PeopleCount != 2 || resp.MaxPeopleAllowed != 5 {
		t.Errorf("occupancy = %d/%d, want 2/5", resp.PeopleCount, resp.MaxPeopleAllowed)
	}
	if resp.Alarm != "normal" {
		t.Errorf("alarm = %q, want normal", resp.Alarm)
	}
}

func TestGetActuators(t *testing.T) {
	srv, _ := testServer(t)

	w := do(t, srv, http.MethodGet, "/api/v1/actuators", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	var resp ActuatorsResponse
	decodeBody(t, w, &resp)
	if len(resp.Lights) != 5 {
		t.Fatalf("lights = %d, want 5", len(resp.Lights))
	}
	if resp.Lights[0].LED != 1 || resp.Lights[0].Status != actuator.SwitchOn {
		t.Errorf("lights[0] = %+v, want led 1 on", resp.Lights[0])
	}
	if resp.Lights[4].LED != 5 || resp.Lights[4].Status != actuator.SwitchOff {
		t.Errorf("lights[4] = %+v, want led 5 off", resp.Lights[4])
	}
	if resp.Humidifier != actuator.SwitchOn {
		t.Errorf("humidifier = %q, want on", resp.Humidifier)
	}
	if resp.Door != actuator.SwitchOff {
		t.Errorf("door = %q, want off", resp.Door)
	}
}

// ─── Commands ──────────────────────────────────────────────────────

func TestCommands_Accepted(t *testing.T) {
	tests := []struct {
		name, method, path, body string
		wantTopic, wantPayload   string
	}{
		{"set max", http.MethodPut, "/api/v1/occupancy/max", `{"max_people":4}`,
			mqtt.TopicSecurityCount, `{"max_people":4}`},
		{"single light", http.MethodPost, "/api/v1/lighting", `{"led":3,"status":"on"}`,
			mqtt.TopicLightingCommand, `{"led":3,"status":"on"}`},
		{"all lights", http.MethodPost, "/api/v1/lighting", `{"status":"off"}`,
			mqtt.TopicLightingCommand, `{"status":"off"}`},
		{"humidifier", http.MethodPost, "/api/v1/humidifier", `{"status":"on"}`,
			mqtt.TopicHumidifierCommand, `{"status":"on"}`},
		{"door", http.MethodPost, "/api/v1/door", `{"command":"on"}`,
			mqtt.TopicServoCommand, `{"command":"on"}`},
		{"blink", http.MethodPost, "/api/v1/alarm/blink", "",
			mqtt.TopicSecurityCommand, `{"command":"blink"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, td := testServer(t)

			w := do(t, srv, tt.method, tt.path, tt.body)
			if w.Code != http.StatusAccepted {
				t.Fatalf("status = %d, want %d (body %s)", w.Code, http.StatusAccepted, w.Body.String())
			}
			var resp CommandAccepted
			decodeBody(t, w, &resp)
			if resp.Topic != tt.wantTopic || resp.Delivery != controller.DeliveryMQTT {
				t.Errorf("response = %+v, want topic %s via mqtt", resp, tt.wantTopic)
			}
			if len(td.commands.sent) != 1 {
				t.Fatalf("sent %d commands, want 1", len(td.commands.sent))
			}
			got := td.commands.sent[0]
			if got.topic != tt.wantTopic {
				t.Errorf("topic = %q, want %q", got.topic, tt.wantTopic)
			}
			if got.payload != tt.wantPayload {
				t.Errorf("payload = %s, want %s", got.payload, tt.wantPayload)
			}
		})
	}
}

func TestCommands_LocalDelivery(t *testing.T) {
	srv, td := testServer(t)
	td.commands.delivery = controller.DeliveryLocal

	w := do(t, srv, http.MethodPost, "/api/v1/humidifier", `{"status":"off"}`)
	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusAccepted)
	}
	var resp CommandAccepted
	decodeBody(t, w, &resp)
	if resp.Delivery != controller.DeliveryLocal {
		t.Errorf("delivery = %q, want local", resp.Delivery)
	}
}

func TestCommands_Rejected(t *testing.T) {
	tests := []struct {
		name, method, path, body string
		wantCode                 string
	}{
		{"not json", http.MethodPost, "/api/v1/lighting", `on`, ErrCodeBadRequest},
		{"bad status", http.MethodPost, "/api/v1/lighting", `{"led":1,"status":"dim"}`, ErrCodeValidation},
		{"missing command", http.MethodPost, "/api/v1/door", `{}`, ErrCodeValidation},
		{"negative max", http.MethodPut, "/api/v1/occupancy/max", `{"max_people":-1}`, ErrCodeValidation},
		{"string max", http.MethodPut, "/api/v1/occupancy/max", `{"max_people":"ten"}`, ErrCodeValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, td := testServer(t)

			w := do(t, srv, tt.method, tt.path, tt.body)
			if w.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want %d (body %s)", w.Code, http.StatusBadRequest, w.Body.String())
			}
			if code := errorCode(t, w); code != tt.wantCode {
				t.Errorf("error code = %q, want %q", code, tt.wantCode)
			}
			if len(td.commands.sent) != 0 {
				t.Errorf("sent %d commands, want 0", len(td.commands.sent))
			}
		})
	}
}

func TestCommands_Unavailable(t *testing.T) {
	srv, td := testServer(t)
	td.commands.err = controller.ErrInboxFull

	w := do(t, srv, http.MethodPost, "/api/v1/humidifier", `{"status":"on"}`)
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusServiceUnavailable)
	}
	if code := errorCode(t, w); code != ErrCodeUnavailable {
		t.Errorf("error code = %q, want %q", code, ErrCodeUnavailable)
	}
}

func TestCommands_BodyTooLarge(t *testing.T) {
	srv, td := testServer(t)

	body := `{"status":"on","pad":"` + strings.Repeat("x", maxRequestBodySize) + `"}`
	w := do(t, srv, http.MethodPost, "/api/v1/humidifier", body)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
	if len(td.commands.sent) != 0 {
		t.Errorf("sent %d commands, want 0", len(td.commands.sent))
	}
}

// ─── Ambient ───────────────────────────────────────────────────────

func TestGetAmbient(t *testing.T) {
	srv, _ := testServer(t)

	w := do(t, srv, http.MethodGet, "/api/v1/ambient", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	var resp ambient.Reading
	decodeBody(t, w, &resp)
	if resp.Temperature != 21.5 || resp.Humidity != 40 {
		t.Errorf("reading = %+v, want 21.5C 40%%", resp)
	}
}

func TestGetAmbient_NoReading(t *testing.T) {
	srv, _ := testServer(t)
	srv.ambient = fakeAmbient{}

	if w := do(t, srv, http.MethodGet, "/api/v1/ambient", ""); w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
	}

	srv.ambient = nil
	if w := do(t, srv, http.MethodGet, "/api/v1/ambient", ""); w.Code != http.StatusServiceUnavailable {
		t.Errorf("status without source = %d, want %d", w.Code, http.StatusServiceUnavailable)
	}
}

// ─── Audit ─────────────────────────────────────────────────────────

func TestListAudit_Filter(t *testing.T) {
	srv, td := testServer(t)

	w := do(t, srv, http.MethodGet, "/api/v1/audit?topic=home/lighting/command&kind=lighting&limit=10&offset=20", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	want := audit.Filter{Topic: "home/lighting/command", Kind: "lighting", Limit: 10, Offset: 20}
	if td.audit.filter != want {
		t.Errorf("filter = %+v, want %+v", td.audit.filter, want)
	}
}

func TestListAudit_Errors(t *testing.T) {
	srv, td := testServer(t)

	if w := do(t, srv, http.MethodGet, "/api/v1/audit?limit=-5", ""); w.Code != http.StatusBadRequest {
		t.Errorf("negative limit status = %d, want %d", w.Code, http.StatusBadRequest)
	}
	if w := do(t, srv, http.MethodGet, "/api/v1/audit?offset=abc", ""); w.Code != http.StatusBadRequest {
		t.Errorf("bad offset status = %d, want %d", w.Code, http.StatusBadRequest)
	}

	td.audit.err = errors.New("disk I/O error")
	if w := do(t, srv, http.MethodGet, "/api/v1/audit", ""); w.Code != http.StatusInternalServerError {
		t.Errorf("repo error status = %d, want %d", w.Code, http.StatusInternalServerError)
	}

	srv.auditRepo = nil
	if w := do(t, srv, http.MethodGet, "/api/v1/audit", ""); w.Code != http.StatusServiceUnavailable {
		t.Errorf("no repo status = %d, want %d", w.Code, http.StatusServiceUnavailable)
	}
}

// ─── Door codes ────────────────────────────────────────────────────

func TestVerifyCode(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		verifyErr  error
		wantStatus int
	}{
		{"accepted", `{"otp":123456}`, nil, http.StatusOK},
		{"mismatch", `{"otp":111111}`, otp.ErrMismatch, http.StatusUnauthorized},
		{"expired", `{"otp":123456}`, otp.ErrExpired, http.StatusUnauthorized},
		{"no code", `{"otp":123456}`, otp.ErrNoCode, http.StatusUnauthorized},
		{"send failed", `{"otp":123456}`, fmt.Errorf("opening door: %w", controller.ErrInboxFull), http.StatusServiceUnavailable},
		{"missing otp", `{}`, nil, http.StatusBadRequest},
		{"bad json", `{otp`, nil, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, td := testServer(t)
			td.codes.verifyErr = tt.verifyErr

			w := do(t, srv, http.MethodPost, "/api/v1/otp/verify", tt.body)
			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d (body %s)", w.Code, tt.wantStatus, w.Body.String())
			}
		})
	}
}

func TestCodeQR(t *testing.T) {
	srv, td := testServer(t)

	w := do(t, srv, http.MethodGet, "/api/v1/otp/qr", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if ct := w.Header().Get("Content-Type"); ct != "image/png" {
		t.Errorf("Content-Type = %q, want image/png", ct)
	}
	if td.codes.qrSize != defaultQRSize {
		t.Errorf("size = %d, want %d", td.codes.qrSize, defaultQRSize)
	}

	if w := do(t, srv, http.MethodGet, "/api/v1/otp/qr?size=512", ""); w.Code != http.StatusOK || td.codes.qrSize != 512 {
		t.Errorf("size=512: status %d size %d", w.Code, td.codes.qrSize)
	}
	if w := do(t, srv, http.MethodGet, "/api/v1/otp/qr?size=10", ""); w.Code != http.StatusBadRequest {
		t.Errorf("size=10 status = %d, want %d", w.Code, http.StatusBadRequest)
	}

	td.codes.qrErr = otp.ErrExpired
	if w := do(t, srv, http.MethodGet, "/api/v1/otp/qr", ""); w.Code != http.StatusNotFound {
		t.Errorf("expired status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

func TestCodes_NotConfigured(t *testing.T) {
	srv, _ := testServer(t)
	srv.codes = nil

	if w := do(t, srv, http.MethodPost, "/api/v1/otp/verify", `{"otp":1}`); w.Code != http.StatusServiceUnavailable {
		t.Errorf("verify status = %d, want %d", w.Code, http.StatusServiceUnavailable)
	}
	if w := do(t, srv, http.MethodGet, "/api/v1/otp/qr", ""); w.Code != http.StatusServiceUnavailable {
		t.Errorf("qr status = %d, want %d", w.Code, http.StatusServiceUnavailable)
	}
}

// ─── Panel ─────────────────────────────────────────────────────────

func TestPanel_Served(t *testing.T) {
	srv, _ := testServer(t)

	w := do(t, srv, http.MethodGet, "/panel/", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if !strings.Contains(w.Body.String(), "<html") {
		t.Error("panel index is not HTML")
	}
}

// ─── WebSocket Hub ─────────────────────────────────────────────────

// attach registers a connectionless client subscribed to channels.
func attach(hub *Hub, channels ...string) *wsClient {
	c := &wsClient{hub: hub, out: make(chan []byte, wsSendBufferSize), channels: map[string]bool{}}
	for _, ch := range channels {
		c.channels[ch] = true
	}
	hub.add(c)
	return c
}

func nextEvent(t *testing.T, c *wsClient) WSMessage {
	t.Helper()
	select {
	case data := <-c.out:
		var msg WSMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		return msg
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for message")
		return WSMessage{}
	}
}

func TestHub_BroadcastToSubscribed(t *testing.T) {
	hub := NewHub(testWSConfig(), logging.Discard())
	client := attach(hub, controller.ChannelStatus)

	hub.Broadcast(controller.ChannelStatus, map[string]any{"people_count": 1})

	if msg := nextEvent(t, client); msg.EventType != controller.ChannelStatus {
		t.Errorf("event_type = %q, want %q", msg.EventType, controller.ChannelStatus)
	}
}

func TestHub_NoMessageForUnsubscribed(t *testing.T) {
	hub := NewHub(testWSConfig(), logging.Discard())
	client := attach(hub, ChannelDisplay)

	hub.Broadcast(controller.ChannelActuators, actuator.State{})

	select {
	case <-client.out:
		t.Error("unsubscribed client should not receive message")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestHub_ClientCount(t *testing.T) {
	hub := NewHub(testWSConfig(), logging.Discard())
	if hub.ClientCount() != 0 {
		t.Errorf("initial client count = %d, want 0", hub.ClientCount())
	}

	client := attach(hub)
	if hub.ClientCount() != 1 {
		t.Errorf("after add count = %d, want 1", hub.ClientCount())
	}

	hub.remove(client)
	hub.remove(client)
	if hub.ClientCount() != 0 {
		t.Errorf("after remove count = %d, want 0", hub.ClientCount())
	}
}

func TestHub_SubscribeReplaysRetainedEvent(t *testing.T) {
	hub := NewHub(testWSConfig(), logging.Discard())
	NewHubDisplay(hub).ShowAlert()

	client := attach(hub)
	client.dispatch([]byte(`{"type":"subscribe","id":"7","payload":{"channels":["display","status"]}}`))

	if ack := nextEvent(t, client); ack.Type != WSTypeResponse || ack.ID != "7" {
		t.Fatalf("ack = %+v, want response to 7", ack)
	}
	replay := nextEvent(t, client)
	if replay.Type != WSTypeEvent || replay.EventType != ChannelDisplay {
		t.Fatalf("replay = %+v, want display event", replay)
	}
	frame, _ := replay.Payload.(map[string]any)
	if frame["view"] != ViewAlert {
		t.Errorf("replayed view = %v, want %q", frame["view"], ViewAlert)
	}

	// Nothing retained on status; a repeated subscribe replays nothing.
	client.dispatch([]byte(`{"type":"subscribe","id":"8","payload":{"channels":["display"]}}`))
	nextEvent(t, client)
	select {
	case data := <-client.out:
		t.Errorf("unexpected message %s", data)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestHub_SubscribeRejectsBadRequests(t *testing.T) {
	tests := []struct {
		name string
		req  string
		want string
	}{
		{"invalid json", `{"type":`, "invalid JSON message"},
		{"unknown channel", `{"type":"subscribe","payload":{"channels":["garage"]}}`, "unknown channel: garage"},
		{"no channels", `{"type":"unsubscribe","payload":{}}`, "payload must list channels"},
		{"unknown type", `{"type":"shout"}`, "unknown message type: shout"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := attach(NewHub(testWSConfig(), logging.Discard()))
			client.dispatch([]byte(tt.req))

			msg := nextEvent(t, client)
			body, _ := msg.Payload.(map[string]any)
			if msg.Type != WSTypeError || body["message"] != tt.want {
				t.Errorf("reply = %+v, want error %q", msg, tt.want)
			}
			if len(client.channels) != 0 {
				t.Errorf("channels = %v, want none", client.channels)
			}
		})
	}
}

func TestHubDisplay(t *testing.T) {
	hub := NewHub(testWSConfig(), logging.Discard())
	client := attach(hub, ChannelDisplay)
	display := NewHubDisplay(hub)

	display.ShowNormal(5, 3)
	display.ShowAlert()

	want := []DisplayFrame{
		{View: ViewNormal, Lines: []string{"MAX : 5", "CURRENT : 3"}},
		{View: ViewAlert, Lines: []string{"WARNING!"}},
	}
	for i, w := range want {
		msg := nextEvent(t, client)
		if msg.EventType != ChannelDisplay {
			t.Fatalf("message %d event_type = %q, want display", i, msg.EventType)
		}
		raw, _ := json.Marshal(msg.Payload)
		var got DisplayFrame
		if err := json.Unmarshal(raw, &got); err != nil {
			t.Fatalf("frame %d: %v", i, err)
		}
		if got.View != w.View || strings.Join(got.Lines, "|") != strings.Join(w.Lines, "|") {
			t.Errorf("frame %d = %+v, want %+v", i, got, w)
		}
	}
}

func TestWebSocket_SubscribeAndReceive(t *testing.T) {
	srv, _ := testServer(t)
	ts := httptest.NewServer(srv.buildRouter())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/v1/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	if resp.Body != nil {
		resp.Body.Close()
	}

	sub := WSMessage{
		Type:    WSTypeSubscribe,
		ID:      "1",
		Payload: WSSubscribePayload{Channels: []string{controller.ChannelStatus}},
	}
	if err := conn.WriteJSON(sub); err != nil {
		t.Fatalf("write subscribe: %v", err)
	}

	//nolint:errcheck // test deadline
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	var ack WSMessage
	if err := conn.ReadJSON(&ack); err != nil {
		t.Fatalf("read ack: %v", err)
	}
	if ack.Type != WSTypeResponse || ack.ID != "1" {
		t.Fatalf("ack = %+v, want response to 1", ack)
	}

	srv.hub.Broadcast(controller.ChannelStatus, map[string]int{"people_count": 4})

	var event WSMessage
	if err := conn.ReadJSON(&event); err != nil {
		t.Fatalf("read event: %v", err)
	}
	if event.Type != WSTypeEvent || event.EventType != controller.ChannelStatus {
		t.Errorf("event = %+v, want status event", event)
	}
}
