package control_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/momentics/tsrelay/control"
	"github.com/momentics/tsrelay/relay"
)

var _ relay.MetricsSink = (*control.MetricsRegistry)(nil)

func TestMetricsRegistry_Snapshot(t *testing.T) {
	mr := control.NewMetricsRegistry()
	if !mr.Updated().IsZero() {
		t.Error("fresh registry should have zero update time")
	}
	mr.Set(relay.MetricPacketsIn, uint64(10))
	snap := mr.GetSnapshot()
	mr.Set(relay.MetricPacketsIn, uint64(11))
	if snap[relay.MetricPacketsIn] != uint64(10) {
		t.Error("snapshot must not follow later updates")
	}
	if v, ok := mr.Get(relay.MetricPacketsIn); !ok || v != uint64(11) {
		t.Errorf("Get = %v, %v", v, ok)
	}
	if mr.Updated().IsZero() {
		t.Error("update time not recorded")
	}
}

func TestDebugProbes_DumpState(t *testing.T) {
	dp := control.NewDebugProbes()
	dp.RegisterProbe("b", func() any { return 2 })
	dp.RegisterProbe("a", func() any { return "one" })
	dp.RegisterProbe("boom", func() any { panic("bad probe") })

	if names := dp.Names(); strings.Join(names, ",") != "a,b,boom" {
		t.Errorf("names = %v", names)
	}
	state := dp.DumpState()
	if state["a"] != "one" || state["b"] != 2 {
		t.Errorf("state = %v", state)
	}
	if s, _ := state["boom"].(string); !strings.Contains(s, "bad probe") {
		t.Errorf("panicking probe reported %v", state["boom"])
	}
}

func TestRegisterPlatformProbes(t *testing.T) {
	dp := control.NewDebugProbes()
	if err := control.RegisterPlatformProbes(dp); err != nil {
		t.Skipf("process probes unavailable: %v", err)
	}
	state := dp.DumpState()
	if n, ok := state[control.ProbeGoroutines].(int); !ok || n < 1 {
		t.Errorf("goroutines probe = %v", state[control.ProbeGoroutines])
	}
	if _, ok := state[control.ProbeCPUs]; !ok {
		t.Error("cpu probe missing")
	}
}

func TestReporter_LogsSortedSnapshot(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&buf, nil))
	mr := control.NewMetricsRegistry()
	mr.Set(relay.MetricClientsActive, 3)
	mr.Set(relay.MetricBytesSent, uint64(4096))
	dp := control.NewDebugProbes()
	dp.RegisterProbe("process.goroutines", func() any { return 5 })

	control.NewReporter(mr, dp, log, time.Second).Report()
	line := buf.String()
	for _, want := range []string{"relay stats", "bytes.sent=4096", "clients.active=3", "process.goroutines=5"} {
		if !strings.Contains(line, want) {
			t.Errorf("missing %q in %q", want, line)
		}
	}
	if strings.Index(line, "bytes.sent") > strings.Index(line, "clients.active") {
		t.Error("attributes are not sorted")
	}
}

func TestReporter_RunStopsOnCancel(t *testing.T) {
	var buf bytes.Buffer
	r := control.NewReporter(control.NewMetricsRegistry(), nil, slog.New(slog.NewTextHandler(&buf, nil)), time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.Run(ctx)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("reporter did not stop")
	}
}

func TestStatsServer_Endpoints(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mr := control.NewMetricsRegistry()
	mr.Set(relay.MetricClientsActive, 2)
	dp := control.NewDebugProbes()
	dp.RegisterProbe("platform.cpus", func() any { return 8 })
	srv := control.NewStatsServer(mr, dp, nil)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"ok"`) {
		t.Fatalf("healthz: %d %s", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/stats", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("stats: %d", rec.Code)
	}
	var body struct {
		Metrics map[string]any `json:"metrics"`
		Probes  map[string]any `json:"probes"`
		Updated string         `json:"updated"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.Metrics[relay.MetricClientsActive] != float64(2) || body.Probes["platform.cpus"] != float64(8) {
		t.Errorf("unexpected body %+v", body)
	}
	if body.Updated == "" {
		t.Error("update time missing")
	}

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/stats", nil))
	if rec.Code == http.StatusOK {
		t.Error("POST should not be routed")
	}
}

func TestStatsServer_StartShutdown(t *testing.T) {
	gin.SetMode(gin.TestMode)
	srv := control.NewStatsServer(control.NewMetricsRegistry(), nil, slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)))
	if err := srv.Start("127.0.0.1:0"); err != nil {
		t.Skipf("loopback unavailable: %v", err)
	}
	resp, err := http.Get("http://" + srv.Addr() + "/healthz")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		t.Fatal(err)
	}
}
