package metrics

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/bft-labs/canary/internal/wdtest"
	"github.com/bft-labs/canary/pkg/canary"
	"github.com/bft-labs/canary/pkg/watchdog"
)

func gather(t *testing.T, reg *prometheus.Registry) map[string]*dto.MetricFamily {
	t.Helper()

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	out := make(map[string]*dto.MetricFamily, len(families))
	for _, fam := range families {
		out[fam.GetName()] = fam
	}
	return out
}

func counterValue(t *testing.T, fams map[string]*dto.MetricFamily, name string, labels ...string) float64 {
	t.Helper()

	fam, ok := fams[name]
	if !ok {
		t.Fatalf("metric family %q not found", name)
	}
	for _, m := range fam.GetMetric() {
		if matchLabels(m, labels) {
			return m.GetCounter().GetValue()
		}
	}
	t.Fatalf("metric %q with labels %v not found", name, labels)
	return 0
}

func matchLabels(m *dto.Metric, kv []string) bool {
	for i := 0; i+1 < len(kv); i += 2 {
		found := false
		for _, lp := range m.GetLabel() {
			if lp.GetName() == kv[i] && lp.GetValue() == kv[i+1] {
				found = true
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func TestMetricsRegistered(t *testing.T) {
	reg := prometheus.NewRegistry()
	p := New(Config{Registerer: reg})
	if err := p.Initialize(context.Background(), canary.PluginConfig{}); err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	fams := gather(t, reg)
	for _, name := range []string{
		"canary_pings_total",
		"canary_triggers_total",
		"canary_running",
		"canary_ping_gap_seconds",
		"canary_stops_total",
	} {
		if _, ok := fams[name]; !ok {
			t.Errorf("metric %q not registered", name)
		}
	}

	// Initializing again, as a restarted run does, is accepted.
	if err := p.Initialize(context.Background(), canary.PluginConfig{}); err != nil {
		t.Errorf("second Initialize: %v", err)
	}
}

func TestNamespace(t *testing.T) {
	reg := prometheus.NewRegistry()
	p := New(Config{Registerer: reg, Namespace: "worker"})
	if err := p.Initialize(context.Background(), canary.PluginConfig{}); err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	if _, ok := gather(t, reg)["worker_triggers_total"]; !ok {
		t.Error("namespaced metric not registered")
	}
}

func TestConflictingRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	if err := New(Config{Registerer: reg}).Initialize(context.Background(), canary.PluginConfig{}); err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	// A second plugin with the same names collides.
	if err := New(Config{Registerer: reg}).Initialize(context.Background(), canary.PluginConfig{}); err == nil {
		t.Error("expected duplicate registration error")
	}
}

func TestEventHandler(t *testing.T) {
	reg := prometheus.NewRegistry()
	p := New(Config{Registerer: reg})
	if err := p.Initialize(context.Background(), canary.PluginConfig{}); err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	p.OnStateChange(watchdog.StateChangeEvent{Current: watchdog.StateRunning})
	p.OnPing(watchdog.PingEvent{Gap: 10 * time.Millisecond})
	p.OnPing(watchdog.PingEvent{Gap: 20 * time.Millisecond})
	p.OnTrigger(watchdog.TriggerEvent{})
	p.OnStop(watchdog.StopEvent{Triggered: true})
	p.OnStop(watchdog.StopEvent{})

	fams := gather(t, reg)
	if v := counterValue(t, fams, "canary_pings_total"); v != 2 {
		t.Errorf("pings_total = %v, want 2", v)
	}
	if v := counterValue(t, fams, "canary_triggers_total"); v != 1 {
		t.Errorf("triggers_total = %v, want 1", v)
	}
	if v := counterValue(t, fams, "canary_stops_total", "result", "triggered"); v != 1 {
		t.Errorf("stops_total{triggered} = %v, want 1", v)
	}
	if v := counterValue(t, fams, "canary_stops_total", "result", "clean"); v != 1 {
		t.Errorf("stops_total{clean} = %v, want 1", v)
	}
	if n := fams["canary_ping_gap_seconds"].GetMetric()[0].GetHistogram().GetSampleCount(); n != 2 {
		t.Errorf("ping_gap_seconds count = %d, want 2", n)
	}
	if v := fams["canary_running"].GetMetric()[0].GetGauge().GetValue(); v != 1 {
		t.Errorf("running = %v, want 1", v)
	}

	p.OnStateChange(watchdog.StateChangeEvent{Current: watchdog.StateStopped})
	if v := gather(t, reg)["canary_running"].GetMetric()[0].GetGauge().GetValue(); v != 0 {
		t.Errorf("running = %v, want 0 after stop", v)
	}
}

// TestWithMetrics_realRun wires the plugin into a canary and lets the run time out.
func TestWithMetrics_realRun(t *testing.T) {
	reg := prometheus.NewRegistry()

	c, err := canary.New(watchdog.Config{
		Timeout: time.Duration(wdtest.ScaleMs(50)),
		Action:  watchdog.ReportOnly(),
		Logger:  wdtest.NewLogger(t),
	},
		canary.WithGuard(watchdog.NewGuard()),
		WithMetrics(Config{Registerer: reg}),
	)
	if err != nil {
		t.Fatalf("canary.New: %v", err)
	}
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	time.Sleep(time.Millisecond)
	if err := c.Ping(); err != nil {
		t.Fatalf("Ping: %v", err)
	}
	if v := gather(t, reg)["canary_running"].GetMetric()[0].GetGauge().GetValue(); v != 1 {
		t.Errorf("running = %v, want 1 while started", v)
	}

	wdtest.Sleep(wdtest.ScaleMs(200))

	triggered, err := c.Stop()
	if err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if !triggered {
		t.Fatal("expected run to trigger")
	}

	fams := gather(t, reg)
	if v := counterValue(t, fams, "canary_pings_total"); v != 1 {
		t.Errorf("pings_total = %v, want 1", v)
	}
	if v := counterValue(t, fams, "canary_triggers_total"); v != 1 {
		t.Errorf("triggers_total = %v, want 1", v)
	}
	if v := counterValue(t, fams, "canary_stops_total", "result", "triggered"); v != 1 {
		t.Errorf("stops_total{triggered} = %v, want 1", v)
	}
}
