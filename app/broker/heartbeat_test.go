package broker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/vurg/notification-service/app/metrics"
)

type recordingPublisher struct {
	mu       sync.Mutex
	payloads []string
	topics   []string
	err      error
}

func (p *recordingPublisher) Publish(_ context.Context, topic string, payload []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.topics = append(p.topics, topic)
	p.payloads = append(p.payloads, string(payload))
	return nil
}

func (p *recordingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.payloads)
}

func TestHeartbeatBeat(t *testing.T) {
	t.Parallel()

	pub := &recordingPublisher{}
	m := metrics.New(prometheus.NewRegistry())
	hb, err := NewHeartbeat(pub, "notification/status", 0, m, quietLogger())
	if err != nil {
		t.Fatalf("NewHeartbeat: %v", err)
	}
	defer hb.Stop()

	hb.Beat()
	if pub.count() != 1 || pub.payloads[0] != "alive" || pub.topics[0] != "notification/status" {
		t.Fatalf("unexpected publish %v to %v", pub.payloads, pub.topics)
	}
	if got := testutil.ToFloat64(m.Heartbeats.WithLabelValues("ok")); got != 1 {
		t.Fatalf("expected ok counter 1, got %v", got)
	}

	pub.err = errors.New("not connected")
	hb.Beat()
	if got := testutil.ToFloat64(m.Heartbeats.WithLabelValues("error")); got != 1 {
		t.Fatalf("expected error counter 1, got %v", got)
	}
}

func TestHeartbeatOneShotDoesNotSchedule(t *testing.T) {
	t.Parallel()

	pub := &recordingPublisher{}
	hb, err := NewHeartbeat(pub, "notification/status", 0, metrics.New(prometheus.NewRegistry()), quietLogger())
	if err != nil {
		t.Fatalf("NewHeartbeat: %v", err)
	}
	defer hb.Stop()

	if err := hb.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	time.Sleep(50 * time.Millisecond)
	if pub.count() != 0 {
		t.Fatalf("expected no scheduled publishes, got %d", pub.count())
	}
}

func TestHeartbeatPeriodic(t *testing.T) {
	t.Parallel()

	pub := &recordingPublisher{}
	hb, err := NewHeartbeat(pub, "notification/status", 20*time.Millisecond, metrics.New(prometheus.NewRegistry()), quietLogger())
	if err != nil {
		t.Fatalf("NewHeartbeat: %v", err)
	}
	if err := hb.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer hb.Stop()

	deadline := time.Now().Add(2 * time.Second)
	for pub.count() < 2 {
		if time.Now().After(deadline) {
			t.Fatalf("expected periodic heartbeats, got %d", pub.count())
		}
		time.Sleep(10 * time.Millisecond)
	}
}
