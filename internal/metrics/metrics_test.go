package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNilCollectorsAreSafe(t *testing.T) {
	var c *Collectors
	c.CommandEnqueued(1)
	c.CommandRejected()
	c.CommandWritten(0, nil)
	c.QueueCleared(3)
	c.Inbound(10)
	c.SweepCompleted(time.Second, 2, 1)
}

func TestDispatchCounters(t *testing.T) {
	c := New(prometheus.NewRegistry())

	c.CommandEnqueued(1)
	c.CommandEnqueued(2)
	c.CommandWritten(1, nil)
	c.CommandWritten(0, errors.New("broken pipe"))
	c.CommandRejected()

	if got := testutil.ToFloat64(c.commandsEnqueued); got != 2 {
		t.Errorf("enqueued = %v, want 2", got)
	}
	if got := testutil.ToFloat64(c.commandsWritten); got != 1 {
		t.Errorf("written = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.commandsFailed); got != 1 {
		t.Errorf("failed = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.commandsRejected); got != 1 {
		t.Errorf("rejected = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.queueDepth); got != 0 {
		t.Errorf("queue depth = %v, want 0", got)
	}
}

func TestQueueCleared(t *testing.T) {
	c := New(nil)
	c.CommandEnqueued(4)
	c.QueueCleared(4)

	if got := testutil.ToFloat64(c.commandsDropped); got != 4 {
		t.Errorf("discarded = %v, want 4", got)
	}
	if got := testutil.ToFloat64(c.queueDepth); got != 0 {
		t.Errorf("queue depth = %v, want 0", got)
	}
}

func TestSweepCompleted(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := New(reg)
	c.SweepCompleted(1200*time.Millisecond, 5, 3)

	if got := testutil.ToFloat64(c.hostsAlive); got != 5 {
		t.Errorf("hosts alive = %v, want 5", got)
	}
	if got := testutil.ToFloat64(c.hostsResolved); got != 3 {
		t.Errorf("hosts resolved = %v, want 3", got)
	}
	if n := testutil.CollectAndCount(c.sweepDuration); n != 1 {
		t.Errorf("histogram series = %d, want 1", n)
	}
}
