package bus_test

import (
	"testing"

	"github.com/algolens/algolens/internal/bus"
)

func TestSingleSubscriberReceivesInOrder(t *testing.T) {
	b := bus.New()
	ch, unsub := b.Subscribe(bus.ChannelSteps)
	defer unsub()

	types := []string{"step-a", "step-b", "step-c"}
	for _, typ := range types {
		b.Publish(bus.ChannelSteps, bus.NewEnvelope(typ, "exec-1", nil))
	}
	b.Close()

	var got []string
	for env := range ch {
		got = append(got, env.Type)
	}

	if len(got) != len(types) {
		t.Fatalf("got %d envelopes, want %d", len(got), len(types))
	}
	for i, typ := range got {
		if typ != types[i] {
			t.Errorf("envelope[%d].Type = %q, want %q", i, typ, types[i])
		}
	}
}

func TestMultipleSubscribers(t *testing.T) {
	b := bus.New()
	ch1, unsub1 := b.Subscribe(bus.ChannelLifecycle)
	defer unsub1()
	ch2, unsub2 := b.Subscribe(bus.ChannelLifecycle)
	defer unsub2()

	b.Publish(bus.ChannelLifecycle, bus.NewEnvelope(bus.EventExecutionStarted, "exec-1", nil))
	b.Close()

	var got1, got2 []bus.Envelope
	for env := range ch1 {
		got1 = append(got1, env)
	}
	for env := range ch2 {
		got2 = append(got2, env)
	}

	if len(got1) != 1 || got1[0].Type != bus.EventExecutionStarted {
		t.Errorf("subscriber 1 got %v, want one execution_started", got1)
	}
	if len(got2) != 1 || got2[0].Type != bus.EventExecutionStarted {
		t.Errorf("subscriber 2 got %v, want one execution_started", got2)
	}
}

func TestChannelIsolation(t *testing.T) {
	b := bus.New()
	lifecycle, unsubL := b.Subscribe(bus.ChannelLifecycle)
	defer unsubL()
	steps, unsubS := b.Subscribe(bus.ChannelSteps)
	defer unsubS()

	b.Publish(bus.ChannelSteps, bus.NewEnvelope(bus.EventExecutionStep, "exec-1", nil))
	b.Close()

	var gotLifecycle, gotSteps []bus.Envelope
	for env := range lifecycle {
		gotLifecycle = append(gotLifecycle, env)
	}
	for env := range steps {
		gotSteps = append(gotSteps, env)
	}

	if len(gotLifecycle) != 0 {
		t.Errorf("lifecycle subscriber got %v, want nothing", gotLifecycle)
	}
	if len(gotSteps) != 1 {
		t.Errorf("steps subscriber got %d envelopes, want 1", len(gotSteps))
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	b := bus.New()
	ch, unsub := b.Subscribe(bus.ChannelSteps)
	unsub()

	b.Publish(bus.ChannelSteps, bus.NewEnvelope(bus.EventExecutionStep, "exec-1", nil))

	// Unsubscribe closed the channel before the publish.
	env, ok := <-ch
	if ok {
		t.Errorf("got unexpected envelope %v after unsubscribe", env)
	}
}

func TestUnsubscribeTwiceIsSafe(t *testing.T) {
	b := bus.New()
	_, unsub := b.Subscribe(bus.ChannelSteps)
	unsub()
	unsub()
	b.Close()
}

func TestPublishWithoutSubscribersIsNoop(t *testing.T) {
	b := bus.New()
	// Should not panic.
	b.Publish(bus.ChannelSteps, bus.NewEnvelope(bus.EventExecutionStep, "exec-1", nil))
	b.Close()
}

func TestLateSubscriberMissesEarlierEnvelopes(t *testing.T) {
	b := bus.New()
	ch1, unsub1 := b.Subscribe(bus.ChannelLifecycle)
	defer unsub1()

	b.Publish(bus.ChannelLifecycle, bus.NewEnvelope(bus.EventExecutionStarted, "exec-1", nil))

	ch2, unsub2 := b.Subscribe(bus.ChannelLifecycle)
	defer unsub2()

	b.Publish(bus.ChannelLifecycle, bus.NewEnvelope(bus.EventExecutionCompleted, "exec-1", nil))
	b.Close()

	var got1, got2 []bus.Envelope
	for env := range ch1 {
		got1 = append(got1, env)
	}
	for env := range ch2 {
		got2 = append(got2, env)
	}

	if len(got1) != 2 {
		t.Errorf("subscriber 1 got %d envelopes, want 2", len(got1))
	}
	if len(got2) != 1 || got2[0].Type != bus.EventExecutionCompleted {
		t.Errorf("late subscriber got %v, want [execution_completed]", got2)
	}
}

func TestCloseClosesChannels(t *testing.T) {
	b := bus.New()
	ch, unsub := b.Subscribe(bus.ChannelSteps)
	defer unsub()

	b.Close()

	_, ok := <-ch
	if ok {
		t.Error("channel should be closed after Close()")
	}
}

func TestSubscribeAfterCloseGetsClosedChannel(t *testing.T) {
	b := bus.New()
	b.Close()

	ch, unsub := b.Subscribe(bus.ChannelLifecycle)
	defer unsub()

	_, ok := <-ch
	if ok {
		t.Error("subscriber on closed bus should get a closed channel")
	}
}

func TestEnvelopeCarriesIdentityAndTimestamp(t *testing.T) {
	env := bus.NewEnvelope(bus.EventExecutionStep, "exec-42", map[string]int{"id": 7})
	if env.ExecutionID != "exec-42" {
		t.Errorf("ExecutionID = %q, want %q", env.ExecutionID, "exec-42")
	}
	if env.Timestamp.IsZero() {
		t.Error("Timestamp not stamped")
	}
}
