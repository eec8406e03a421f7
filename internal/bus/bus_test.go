package bus

import (
	"sync"
	"testing"
	"time"
)

func TestBus_PublishSubscribe(t *testing.T) {
	b := New()
	sub := b.Subscribe(TopicTasksPrefix)
	defer b.Unsubscribe(sub)

	seq := b.Publish(TopicTasksChanged, TaskChangedEvent{Op: OpInsert, TaskID: 7, Rows: 1})

	select {
	case event := <-sub.Ch():
		if event.Topic != TopicTasksChanged {
			t.Fatalf("topic = %q, want %q", event.Topic, TopicTasksChanged)
		}
		if event.Seq != seq {
			t.Fatalf("seq = %d, want %d", event.Seq, seq)
		}
		ev, ok := event.Payload.(TaskChangedEvent)
		if !ok || ev.TaskID != 7 || ev.Op != OpInsert {
			t.Fatalf("payload = %#v", event.Payload)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
	}
}

func TestBus_PrefixMatching(t *testing.T) {
	b := New()

	taskSub := b.Subscribe(TopicTasksPrefix)
	defer b.Unsubscribe(taskSub)
	allSub := b.Subscribe("")
	defer b.Unsubscribe(allSub)

	b.Publish(TopicTasksChanged, TaskChangedEvent{Op: OpDeleteAll})
	b.Publish("config.reloaded", "ok")

	select {
	case event := <-taskSub.Ch():
		if event.Topic != TopicTasksChanged {
			t.Fatalf("topic = %q, want %q", event.Topic, TopicTasksChanged)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for task event")
	}

	select {
	case event := <-taskSub.Ch():
		t.Fatalf("unexpected event on taskSub: %v", event)
	case <-time.After(50 * time.Millisecond):
	}

	for i := 0; i < 2; i++ {
		select {
		case <-allSub.Ch():
		case <-time.After(time.Second):
			t.Fatal("timeout waiting for all event")
		}
	}
}

func TestBus_SequenceIncreases(t *testing.T) {
	b := New()
	first := b.Publish("a", nil)
	second := b.Publish("b", nil)
	if second <= first {
		t.Fatalf("seq did not increase: %d then %d", first, second)
	}
}

func TestBus_NilPublishIsNoop(t *testing.T) {
	var b *Bus
	if seq := b.Publish(TopicTasksChanged, nil); seq != 0 {
		t.Fatalf("seq = %d, want 0", seq)
	}
}

func TestBus_NonBlocking(t *testing.T) {
	b := New()
	sub := b.Subscribe("")
	defer b.Unsubscribe(sub)

	for i := 0; i < defaultBufferSize+10; i++ {
		b.Publish(TopicTasksChanged, i)
	}

	count := 0
	for {
		select {
		case <-sub.Ch():
			count++
		default:
			if count != defaultBufferSize {
				t.Fatalf("received %d events, expected %d (buffer size)", count, defaultBufferSize)
			}
			return
		}
	}
}

func TestBus_Unsubscribe(t *testing.T) {
	b := New()
	sub := b.Subscribe("")
	if b.SubscriberCount() != 1 {
		t.Fatalf("count = %d, want 1", b.SubscriberCount())
	}
	b.Unsubscribe(sub)
	if b.SubscriberCount() != 0 {
		t.Fatalf("count = %d, want 0", b.SubscriberCount())
	}
	if _, ok := <-sub.Ch(); ok {
		t.Fatal("expected closed channel")
	}
	// Second unsubscribe must not panic on the closed channel.
	b.Unsubscribe(sub)
}

func TestBus_ConcurrentPublish(t *testing.T) {
	b := New()
	sub := b.Subscribe("")
	defer b.Unsubscribe(sub)

	const goroutines = 8
	const perGoroutine = 5

	var wg sync.WaitGroup
	wg.Add(goroutines)
	for g := 0; g < goroutines; g++ {
		go func() {
			defer wg.Done()
			for i := 0; i < perGoroutine; i++ {
				b.Publish(TopicTasksChanged, i)
			}
		}()
	}
	wg.Wait()

	seen := make(map[uint64]bool)
	for len(seen) < goroutines*perGoroutine {
		select {
		case ev := <-sub.Ch():
			if seen[ev.Seq] {
				t.Fatalf("duplicate seq %d", ev.Seq)
			}
			seen[ev.Seq] = true
		case <-time.After(time.Second):
			t.Fatalf("received %d events, want %d", len(seen), goroutines*perGoroutine)
		}
	}
}
