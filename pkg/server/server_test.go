package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"mercator-hq/mixpolicy/pkg/config"
	"mercator-hq/mixpolicy/pkg/policy/engine"
	"mercator-hq/mixpolicy/pkg/policy/manager"
	"mercator-hq/mixpolicy/pkg/policy/mix"
	"mercator-hq/mixpolicy/pkg/policy/parcel"
	"mercator-hq/mixpolicy/pkg/policy/snapshot"
	"mercator-hq/mixpolicy/pkg/telemetry/metrics"
)

type testEnv struct {
	handler   http.Handler
	manager   *manager.Manager
	collector *metrics.Collector
}

func newTestEnv(t *testing.T, mutate ...func(*config.Config)) *testEnv {
	t.Helper()

	cfg := config.Default()
	for _, fn := range mutate {
		fn(cfg)
	}

	mgr := manager.NewManager(manager.DefaultConfig(), manager.Options{})
	t.Cleanup(func() { _ = mgr.Close() })

	collector := metrics.NewCollector(&cfg.Telemetry.Metrics, prometheus.NewRegistry())
	srv := NewServer(cfg, mgr, Options{Metrics: collector})

	return &testEnv{handler: srv.Handler(), manager: mgr, collector: collector}
}

func (e *testEnv) do(t *testing.T, method, path, token string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if token != "" {
		req.Header.Set(TokenHeader, token)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) openSession(t *testing.T) string {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/v1/tokens", "", nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("open session status = %d", rec.Code)
	}
	var resp SessionResponse
	decode(t, rec, &resp)
	return resp.Token
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v (body %q)", err, rec.Body.String())
	}
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var resp ErrorResponse
	decode(t, rec, &resp)
	return resp.Error.Code
}

func playerMix(id string, criteria ...mix.Criterion) *mix.Mix {
	return &mix.Mix{
		RegistrationID: id,
		Type:           mix.TypePlayers,
		RouteFlags:     mix.RouteLoopBack,
		DeviceType:     mix.DeviceOutRemoteSubmix,
		CallbackFlags:  mix.CallbackNotifyActivity,
		Criteria:       criteria,
	}
}

func encodeMixes(t *testing.T, mixes ...*mix.Mix) []byte {
	t.Helper()
	data, err := parcel.MarshalMixes(mixes)
	if err != nil {
		t.Fatal(err)
	}
	return data
}

func streamBody(t *testing.T, req StreamRequest) []byte {
	t.Helper()
	data, err := json.Marshal(req)
	if err != nil {
		t.Fatal(err)
	}
	return data
}

func TestServer_RegisterAndEvaluate(t *testing.T) {
	env := newTestEnv(t)
	token := env.openSession(t)

	body := encodeMixes(t,
		playerMix("media", mix.MatchUsage(mix.UsageMedia)),
		playerMix("game", mix.MatchUsage(mix.UsageGame)),
	)
	rec := env.do(t, http.MethodPost, "/v1/mixes", token, body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("register status = %d: %s", rec.Code, rec.Body.String())
	}
	var reg RegisterResponse
	decode(t, rec, &reg)
	if len(reg.RegistrationIDs) != 2 || reg.RegistrationIDs[0] != "media" {
		t.Errorf("registration ids = %v", reg.RegistrationIDs)
	}

	tests := []struct {
		name    string
		req     StreamRequest
		matched bool
		id      string
	}{
		{"media by name", StreamRequest{Class: "playback", Usage: "media", UID: 10123}, true, "media"},
		{"game by code", StreamRequest{Class: "playback", Usage: "14"}, true, "game"},
		{"alarm unmatched", StreamRequest{Class: "playback", Usage: "alarm"}, false, ""},
		{"capture never matches players", StreamRequest{Class: "capture", Source: "mic"}, false, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, http.MethodPost, "/v1/evaluate", "", streamBody(t, tt.req))
			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
			}
			var d engine.Decision
			decode(t, rec, &d)
			if d.Matched != tt.matched || d.RegistrationID != tt.id {
				t.Errorf("decision = %+v, want matched=%v id=%q", d, tt.matched, tt.id)
			}
		})
	}

	rec = env.do(t, http.MethodGet, "/v1/mixes", "", nil)
	var list MixListResponse
	decode(t, rec, &list)
	if len(list.Mixes) != 2 || list.Mixes[1].RegistrationID != "game" || list.Mixes[0].State != "idle" {
		t.Errorf("mix list = %+v", list)
	}
	if list.Mixes[0].FromFile || list.Generation == 0 {
		t.Errorf("mix list = %+v", list)
	}
	if strings.Contains(rec.Body.String(), token) {
		t.Error("mix list exposes the owner token")
	}
}

func TestServer_EvaluateWithUserID(t *testing.T) {
	env := newTestEnv(t)
	token := env.openSession(t)

	body := encodeMixes(t, playerMix("work", mix.MatchUserID(10)))
	if rec := env.do(t, http.MethodPost, "/v1/mixes", token, body); rec.Code != http.StatusCreated {
		t.Fatalf("register status = %d: %s", rec.Code, rec.Body.String())
	}

	ten, zero := int32(10), int32(0)
	tests := []struct {
		name string
		req  StreamRequest
		id   string
	}{
		{"derived from uid", StreamRequest{Class: "playback", Usage: "media", UID: 1010123}, "work"},
		{"derived mismatch", StreamRequest{Class: "playback", Usage: "media", UID: 10123}, ""},
		{"explicit owner", StreamRequest{Class: "playback", Usage: "media", UID: 10123, UserID: &ten}, "work"},
		{"explicit override", StreamRequest{Class: "playback", Usage: "media", UID: 1010123, UserID: &zero}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, http.MethodPost, "/v1/evaluate", "", streamBody(t, tt.req))
			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
			}
			var d engine.Decision
			decode(t, rec, &d)
			if d.RegistrationID != tt.id {
				t.Errorf("decision = %+v, want %q", d, tt.id)
			}
		})
	}
}

func TestServer_RegisterErrors(t *testing.T) {
	env := newTestEnv(t)
	token := env.openSession(t)

	overflow := make([]*mix.Mix, mix.MaxMixesPerPolicy+1)
	for i := range overflow {
		overflow[i] = playerMix(string(rune('a'+i%26)) + strings.Repeat("x", i/26))
	}

	valid := encodeMixes(t, playerMix("dup"))
	if rec := env.do(t, http.MethodPost, "/v1/mixes", token, valid); rec.Code != http.StatusCreated {
		t.Fatalf("seed status = %d", rec.Code)
	}

	tests := []struct {
		name     string
		token    string
		body     []byte
		wantCode int
		wantErr  string
	}{
		{"missing token", "", valid, http.StatusUnauthorized, codeUnauthorized},
		{"garbage token", "not-a-token", valid, http.StatusUnauthorized, codeUnauthorized},
		{"unknown session", mix.NewToken().String(), encodeMixes(t, playerMix("x")), http.StatusForbidden, codePermissionDenied},
		{"truncated parcel", token, valid[:len(valid)-3], http.StatusBadRequest, codeMalformedInput},
		{"duplicate", token, valid, http.StatusConflict, codeDuplicate},
		{"bad route flags", token, encodeMixes(t, &mix.Mix{RegistrationID: "rf", RouteFlags: 0x80}), http.StatusUnprocessableEntity, codeInvalidCriteria},
		{"capacity", token, encodeMixes(t, overflow[1:]...), http.StatusInsufficientStorage, codeCapacityExceeded},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, http.MethodPost, "/v1/mixes", tt.token, tt.body)
			if rec.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d: %s", rec.Code, tt.wantCode, rec.Body.String())
			}
			if got := errorCode(t, rec); got != tt.wantErr {
				t.Errorf("error code = %q, want %q", got, tt.wantErr)
			}
		})
	}

	if n := len(env.manager.Mixes()); n != 1 {
		t.Errorf("rejected requests changed the registry: %d mixes", n)
	}
}

func TestServer_BodyLimit(t *testing.T) {
	env := newTestEnv(t, func(c *config.Config) { c.Server.MaxBodyBytes = 16 })
	token := env.openSession(t)

	rec := env.do(t, http.MethodPost, "/v1/mixes", token, encodeMixes(t, playerMix("big", mix.MatchUsage(mix.UsageMedia))))
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("status = %d, want 413", rec.Code)
	}
}

func TestServer_UpdateAndUnregister(t *testing.T) {
	env := newTestEnv(t)
	owner := env.openSession(t)
	other := env.openSession(t)

	env.do(t, http.MethodPost, "/v1/mixes", owner, encodeMixes(t, playerMix("m", mix.MatchUsage(mix.UsageMedia))))

	update, err := parcel.MarshalMix(playerMix("m", mix.MatchUsage(mix.UsageGame)))
	if err != nil {
		t.Fatal(err)
	}

	if rec := env.do(t, http.MethodPut, "/v1/mixes/m", other, update); rec.Code != http.StatusForbidden {
		t.Errorf("foreign update status = %d, want 403", rec.Code)
	}
	if rec := env.do(t, http.MethodPut, "/v1/mixes/nope", owner, update); rec.Code != http.StatusNotFound {
		t.Errorf("unknown update status = %d, want 404", rec.Code)
	}
	if rec := env.do(t, http.MethodPut, "/v1/mixes/m", owner, update); rec.Code != http.StatusNoContent {
		t.Fatalf("update status = %d: %s", rec.Code, rec.Body.String())
	}

	rec := env.do(t, http.MethodPost, "/v1/evaluate", "", streamBody(t, StreamRequest{Class: "playback", Usage: "game"}))
	var d engine.Decision
	decode(t, rec, &d)
	if !d.Matched || d.RegistrationID != "m" {
		t.Errorf("decision after update = %+v", d)
	}

	if rec := env.do(t, http.MethodDelete, "/v1/mixes/m", other, nil); rec.Code != http.StatusForbidden {
		t.Errorf("foreign unregister status = %d, want 403", rec.Code)
	}
	if rec := env.do(t, http.MethodDelete, "/v1/mixes/m", owner, nil); rec.Code != http.StatusNoContent {
		t.Errorf("unregister status = %d", rec.Code)
	}
	if rec := env.do(t, http.MethodDelete, "/v1/mixes/m", owner, nil); rec.Code != http.StatusNotFound {
		t.Errorf("second unregister status = %d, want 404", rec.Code)
	}
}

func TestServer_Streams(t *testing.T) {
	env := newTestEnv(t)
	token := env.openSession(t)
	env.do(t, http.MethodPost, "/v1/mixes", token, encodeMixes(t, playerMix("m", mix.MatchUsage(mix.UsageMedia))))

	rec := env.do(t, http.MethodPost, "/v1/streams", "", streamBody(t, StreamRequest{Class: "playback", Usage: "media"}))
	if rec.Code != http.StatusCreated {
		t.Fatalf("start status = %d: %s", rec.Code, rec.Body.String())
	}
	var started StreamResponse
	decode(t, rec, &started)
	if started.Handle == "" || !started.Decision.Matched {
		t.Fatalf("start response = %+v", started)
	}
	if got := env.manager.State("m"); got != mix.StateMixing {
		t.Errorf("state while streaming = %v", got)
	}

	if rec := env.do(t, http.MethodDelete, "/v1/streams/"+started.Handle, "", nil); rec.Code != http.StatusNoContent {
		t.Errorf("stop status = %d", rec.Code)
	}
	if got := env.manager.State("m"); got != mix.StateIdle {
		t.Errorf("state after stop = %v", got)
	}
	if rec := env.do(t, http.MethodDelete, "/v1/streams/"+started.Handle, "", nil); rec.Code != http.StatusNotFound {
		t.Errorf("second stop status = %d, want 404", rec.Code)
	}
}

func TestServer_StreamRequestErrors(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name string
		body string
	}{
		{"not json", "{"},
		{"unknown field", `{"class":"playback","volume":3}`},
		{"unknown class", `{"class":"broadcast"}`},
		{"unknown usage", `{"class":"playback","usage":"karaoke"}`},
		{"unknown source", `{"class":"capture","source":"telepathy"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, http.MethodPost, "/v1/evaluate", "", []byte(tt.body))
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", rec.Code)
			}
			if got := errorCode(t, rec); got != codeMalformedInput {
				t.Errorf("error code = %q", got)
			}
		})
	}
}

func TestServer_Sessions(t *testing.T) {
	env := newTestEnv(t)
	token := env.openSession(t)
	env.do(t, http.MethodPost, "/v1/mixes", token, encodeMixes(t, playerMix("a"), playerMix("b")))

	rec := env.do(t, http.MethodGet, "/v1/tokens/"+token+"/events", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("events status = %d", rec.Code)
	}
	var events EventsResponse
	decode(t, rec, &events)
	if events.Events == nil {
		t.Error("events should be an empty list, not null")
	}

	rec = env.do(t, http.MethodDelete, "/v1/tokens/"+token, "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("close status = %d", rec.Code)
	}
	var closed CloseSessionResponse
	decode(t, rec, &closed)
	if closed.RemovedMixes != 2 {
		t.Errorf("removed = %d, want 2", closed.RemovedMixes)
	}
	if n := len(env.manager.Mixes()); n != 0 {
		t.Errorf("%d mixes survived owner invalidation", n)
	}

	if rec := env.do(t, http.MethodDelete, "/v1/tokens/"+token, "", nil); rec.Code != http.StatusNotFound {
		t.Errorf("second close status = %d, want 404", rec.Code)
	}
	if rec := env.do(t, http.MethodGet, "/v1/tokens/"+token+"/events", "", nil); rec.Code != http.StatusForbidden {
		t.Errorf("events after close status = %d, want 403", rec.Code)
	}
	if rec := env.do(t, http.MethodDelete, "/v1/tokens/garbage", "", nil); rec.Code != http.StatusUnauthorized {
		t.Errorf("garbage token status = %d, want 401", rec.Code)
	}
}

func TestServer_Snapshot(t *testing.T) {
	env := newTestEnv(t)
	token := env.openSession(t)
	env.do(t, http.MethodPost, "/v1/mixes", token, encodeMixes(t,
		playerMix("a", mix.MatchUsage(mix.UsageMedia)),
		playerMix("b", mix.ExcludeUID(10001)),
	))

	rec := env.do(t, http.MethodGet, "/v1/snapshot", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != snapshot.ContentType {
		t.Errorf("content type = %q", ct)
	}

	snap, err := snapshot.Unmarshal(rec.Body.Bytes())
	if err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if err := snap.Verify(); err != nil {
		t.Errorf("Verify() error = %v", err)
	}
	if snap.Digest != rec.Header().Get(SnapshotDigestHeader) {
		t.Errorf("digest header %q != body digest %q", rec.Header().Get(SnapshotDigestHeader), snap.Digest)
	}
	for _, r := range snap.Mixes {
		if r.Owner != "" {
			t.Errorf("snapshot exposes the owner of %q", r.RegistrationID)
		}
	}
	if len(snap.Mixes) != 2 || snap.Generation != env.manager.Generation() {
		t.Errorf("snapshot = %d mixes at generation %d", len(snap.Mixes), snap.Generation)
	}
}

func TestServer_HealthAndMetrics(t *testing.T) {
	env := newTestEnv(t)
	env.do(t, http.MethodPost, "/v1/tokens", "", nil)

	for _, path := range []string{"/health", "/ready"} {
		if rec := env.do(t, http.MethodGet, path, "", nil); rec.Code != http.StatusOK {
			t.Errorf("%s status = %d", path, rec.Code)
		}
	}

	rec := env.do(t, http.MethodGet, "/metrics", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("metrics status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `mixpolicy_http_requests_total{method="POST",route="POST /v1/tokens",status="201"} 1`) {
		t.Errorf("metrics output missing request counter:\n%s", rec.Body.String())
	}

	registry := env.collector.Registry()
	if n, err := testutil.GatherAndCount(registry, "mixpolicy_http_requests_total"); err != nil || n != 1 {
		t.Errorf("request series = %d, %v", n, err)
	}
}

func TestServer_MetricsDisabled(t *testing.T) {
	env := newTestEnv(t, func(c *config.Config) { c.Telemetry.Metrics.Enabled = false })
	if rec := env.do(t, http.MethodGet, "/metrics", "", nil); rec.Code != http.StatusNotFound {
		t.Errorf("metrics status = %d, want 404", rec.Code)
	}
}

func TestServer_Version(t *testing.T) {
	cfg := config.Default()
	mgr := manager.NewManager(manager.DefaultConfig(), manager.Options{})
	t.Cleanup(func() { _ = mgr.Close() })

	srv := NewServer(cfg, mgr, Options{Build: BuildInfo{Version: "1.2.3", Commit: "abc"}})
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/version", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"1.2.3"`) {
		t.Errorf("body = %s", rec.Body.String())
	}

	env := newTestEnv(t)
	if rec := env.do(t, http.MethodGet, "/version", "", nil); rec.Code != http.StatusNotFound {
		t.Errorf("version without build info = %d, want 404", rec.Code)
	}
}

func TestServer_RequestID(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/health", "", nil)
	if rec.Header().Get(RequestIDHeader) == "" {
		t.Error("no request id generated")
	}

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(RequestIDHeader, "client-id")
	rec = httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	if got := rec.Header().Get(RequestIDHeader); got != "client-id" {
		t.Errorf("request id = %q, want client-id", got)
	}
}

func TestRecoveryMiddleware(t *testing.T) {
	h := recoveryMiddleware(discardLogger())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := errorCode(t, rec); got != codeInternal {
		t.Errorf("error code = %q", got)
	}
}

func TestServer_ServeAndShutdown(t *testing.T) {
	cfg := config.Default()
	mgr := manager.NewManager(manager.DefaultConfig(), manager.Options{})
	defer mgr.Close()
	srv := NewServer(cfg, mgr, Options{Logger: discardLogger()})

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln) }()

	url := "http://" + ln.Addr().String() + "/health"
	var resp *http.Response
	for deadline := time.Now().Add(2 * time.Second); time.Now().Before(deadline); time.Sleep(10 * time.Millisecond) {
		if resp, err = http.Get(url); err == nil {
			break
		}
	}
	if err != nil {
		t.Fatalf("server never answered: %v", err)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	if !srv.IsRunning() || srv.Addr() != ln.Addr().String() {
		t.Errorf("running = %v, addr = %q", srv.IsRunning(), srv.Addr())
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Serve() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Serve() did not return after cancel")
	}
	if srv.IsRunning() {
		t.Error("server still running after shutdown")
	}
}
