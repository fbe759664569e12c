package scheduler

import (
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/mariachi-loyalty/dispatch/internal/queue"
	"github.com/mariachi-loyalty/dispatch/internal/task"
)

func newTestBroker(t *testing.T, capacity int) *queue.Broker {
	t.Helper()
	router, err := task.NewRouter(task.DefaultRules())
	if err != nil {
		t.Fatalf("NewRouter() error = %v", err)
	}
	return queue.New(router, task.DefaultQueues(), capacity)
}

func TestNewBeatAcceptsDefaultSchedule(t *testing.T) {
	b, err := NewBeat(newTestBroker(t, 10), DefaultSchedule(), zap.NewNop())
	if err != nil {
		t.Fatalf("NewBeat() error = %v", err)
	}
	b.Start()
	b.Stop()
}

func TestBeatFiresScheduledTask(t *testing.T) {
	broker := newTestBroker(t, 10)
	b, err := NewBeat(broker, []Entry{
		{Name: task.UpdateAnalyticsCache, Period: 20 * time.Millisecond},
	}, zap.NewNop())
	if err != nil {
		t.Fatalf("NewBeat() error = %v", err)
	}

	b.Start()
	defer b.Stop()

	deadline := time.After(2 * time.Second)
	for {
		if broker.Depths()[task.QueueAnalytics] > 0 {
			return
		}
		select {
		case <-deadline:
			t.Fatal("beat never enqueued the scheduled task")
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestBeatSurvivesFullQueue(t *testing.T) {
	broker := newTestBroker(t, 1)
	// Saturate the analytics queue so the beat's enqueue fails.
	if _, err := broker.Enqueue(task.UpdateAnalyticsCache, struct{}{}, ""); err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}

	b, err := NewBeat(broker, []Entry{
		{Name: task.UpdateAnalyticsCache, Period: 20 * time.Millisecond},
	}, zap.NewNop())
	if err != nil {
		t.Fatalf("NewBeat() error = %v", err)
	}

	b.Start()
	time.Sleep(100 * time.Millisecond)
	// The failed fires were dropped and logged; stopping must not hang and
	// the queue holds exactly its capacity.
	b.Stop()
	if depth := broker.Depths()[task.QueueAnalytics]; depth != 1 {
		t.Errorf("analytics depth = %d, want 1", depth)
	}
}
