package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// collectSender gathers sent messages behind a mutex.
type collectSender struct {
	mu       sync.Mutex
	messages []string
	err      error
}

func (s *collectSender) Send(text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.messages = append(s.messages, text)
	return nil
}

func (s *collectSender) collected() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.messages...)
}

func TestDispatcherDelivers(t *testing.T) {
	sender := &collectSender{}
	d := NewDispatcher(sender)

	ctx, cancel := context.WithCancel(context.Background())
	d.Start(ctx)

	d.Enqueue("one")
	d.Enqueue("two")

	deadline := time.After(time.Second)
	for len(sender.collected()) < 2 {
		select {
		case <-deadline:
			t.Fatalf("delivered %v, want both messages", sender.collected())
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	d.Wait()
}

func TestDispatcherDrainsQueueOnShutdown(t *testing.T) {
	sender := &collectSender{}
	d := NewDispatcher(sender, WithBuffer(8))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// Enqueued before the goroutine ever observes the live context: the
	// drain pass must still deliver them.
	d.Enqueue("summary")
	d.Start(ctx)
	d.Wait()

	got := sender.collected()
	if len(got) != 1 || got[0] != "summary" {
		t.Errorf("delivered %v, want the queued summary", got)
	}
}

func TestDispatcherDropsWhenFull(t *testing.T) {
	sender := &collectSender{}
	d := NewDispatcher(sender, WithBuffer(2))

	// Not started: the queue fills and further messages are dropped
	// without blocking.
	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			d.Enqueue("msg")
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Enqueue blocked on a full queue")
	}
}

func TestDispatcherConcurrentEnqueue(t *testing.T) {
	sender := &collectSender{}
	d := NewDispatcher(sender, WithBuffer(64))

	ctx, cancel := context.WithCancel(context.Background())
	d.Start(ctx)

	// Within buffer capacity nothing is dropped, even under concurrency.
	const workers, perWorker = 8, 4
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				d.Enqueue("msg")
			}
		}()
	}
	wg.Wait()

	deadline := time.After(time.Second)
	for len(sender.collected()) < workers*perWorker {
		select {
		case <-deadline:
			t.Fatalf("delivered %d messages, want %d", len(sender.collected()), workers*perWorker)
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	d.Wait()
}

func TestDispatcherSwallowsSendFailures(t *testing.T) {
	sender := &collectSender{err: errors.New("transport down")}
	d := NewDispatcher(sender)

	ctx, cancel := context.WithCancel(context.Background())
	d.Start(ctx)

	d.Enqueue("lost")
	time.Sleep(20 * time.Millisecond)

	cancel()
	d.Wait() // must return despite the failing sender
}

func TestDispatcherStartIdempotent(t *testing.T) {
	sender := &collectSender{}
	d := NewDispatcher(sender)

	ctx, cancel := context.WithCancel(context.Background())
	d.Start(ctx)
	d.Start(ctx)
	d.Start(ctx)

	d.Enqueue("once")
	deadline := time.After(time.Second)
	for len(sender.collected()) < 1 {
		select {
		case <-deadline:
			t.Fatal("message not delivered")
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	d.Wait()

	if got := sender.collected(); len(got) != 1 {
		t.Errorf("delivered %v, want exactly one message", got)
	}
}
