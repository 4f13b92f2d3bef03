package discovery

import (
	"context"
	"net/netip"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestICMPProber_FailuresAreUnreachable(t *testing.T) {
	cancelled, cancel := context.WithCancel(context.Background())
	cancel()

	tests := []struct {
		name    string
		ctx     context.Context
		ip      netip.Addr
		timeout time.Duration
	}{
		{
			name:    "invalid address",
			ctx:     context.Background(),
			ip:      netip.Addr{},
			timeout: 100 * time.Millisecond,
		},
		{
			name:    "cancelled context",
			ctx:     cancelled,
			ip:      netip.MustParseAddr("192.0.2.1"),
			timeout: time.Second,
		},
		{
			name:    "no reply before timeout",
			ctx:     context.Background(),
			ip:      netip.MustParseAddr("192.0.2.1"),
			timeout: 50 * time.Millisecond,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewICMPProber(tt.timeout)
			p.Logger = zap.NewNop()

			start := time.Now()
			if p.Probe(tt.ctx, tt.ip) {
				t.Errorf("Probe(%v) = true, want false", tt.ip)
			}
			if elapsed := time.Since(start); elapsed > 5*time.Second {
				t.Errorf("Probe took %v, want bounded by its timeout", elapsed)
			}
		})
	}
}

func TestICMPProber_LogsFailure(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	p := NewICMPProber(100 * time.Millisecond)
	p.Logger = zap.New(core)

	if p.Probe(context.Background(), netip.Addr{}) {
		t.Fatal("Probe(invalid) = true, want false")
	}
	entries := logs.FilterMessage("Probe failed").All()
	if len(entries) != 1 {
		t.Fatalf("Probe failed entries = %d, want 1", len(entries))
	}
	if _, ok := entries[0].ContextMap()["error"]; !ok {
		t.Errorf("log entry has no error field: %v", entries[0].ContextMap())
	}
}

func TestNewICMPProber_DefaultTimeout(t *testing.T) {
	if p := NewICMPProber(0); p.Timeout != DefaultProbeTimeout {
		t.Errorf("Timeout = %v, want %v", p.Timeout, DefaultProbeTimeout)
	}
}
