package observe

import (
	"context"
	"testing"
	"time"

	"go.opentelemetry.io/otel/metric/noop"
)

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{
			name:    "missing service name",
			cfg:     Config{},
			wantErr: true,
		},
		{
			name: "minimal valid",
			cfg:  Config{ServiceName: "linkhoard"},
		},
		{
			name: "unknown tracing exporter",
			cfg: Config{
				ServiceName: "linkhoard",
				Tracing:     TracingConfig{Enabled: true, Exporter: "graphite"},
			},
			wantErr: true,
		},
		{
			name: "sample pct out of range",
			cfg: Config{
				ServiceName: "linkhoard",
				Tracing:     TracingConfig{Enabled: true, Exporter: "none", SamplePct: 1.5},
			},
			wantErr: true,
		},
		{
			name: "unknown metrics exporter",
			cfg: Config{
				ServiceName: "linkhoard",
				Metrics:     MetricsConfig{Enabled: true, Exporter: "statsd"},
			},
			wantErr: true,
		},
		{
			name: "unknown log level",
			cfg: Config{
				ServiceName: "linkhoard",
				Logging:     LoggingConfig{Enabled: true, Level: "verbose"},
			},
			wantErr: true,
		},
		{
			name: "all subsystems valid",
			cfg: Config{
				ServiceName: "linkhoard",
				Tracing:     TracingConfig{Enabled: true, Exporter: "none", SamplePct: 0.5},
				Metrics:     MetricsConfig{Enabled: true, Exporter: "none"},
				Logging:     LoggingConfig{Enabled: true, Level: "debug"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestNewObserver_Disabled(t *testing.T) {
	obs, err := NewObserver(context.Background(), Config{ServiceName: "linkhoard"})
	if err != nil {
		t.Fatalf("NewObserver() error = %v", err)
	}

	if obs.Tracer() == nil {
		t.Error("Tracer() = nil, want noop tracer")
	}
	if obs.Meter() == nil {
		t.Error("Meter() = nil, want noop meter")
	}
	if obs.Logger() == nil {
		t.Error("Logger() = nil, want noop logger")
	}

	if err := obs.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown() error = %v", err)
	}
}

func TestNewObserver_InvalidConfig(t *testing.T) {
	_, err := NewObserver(context.Background(), Config{})
	if err == nil {
		t.Error("NewObserver() with empty config succeeded, want error")
	}
}

func TestMetrics_NoPanic(t *testing.T) {
	m, err := NewMetrics(noop.NewMeterProvider().Meter("test"))
	if err != nil {
		t.Fatalf("NewMetrics() error = %v", err)
	}

	ctx := context.Background()
	meta := OpMeta{Operation: "bookmarks.get", Method: "GET", Path: "/api/bookmarks/1"}

	m.RecordRequest(ctx, meta, 25*time.Millisecond, nil)
	m.RecordCache(ctx, meta, true)
	m.RecordCache(ctx, meta, false)
	m.RecordAdmissionReject(ctx, meta)
	m.RecordRetry(ctx, meta)
}

func TestNopMetrics(t *testing.T) {
	m := NopMetrics()
	m.RecordRequest(context.Background(), OpMeta{}, 0, nil)
	m.RecordCache(context.Background(), OpMeta{}, false)
}
