package policy

import (
	"sync"
	"testing"
)

func TestDefaultState(t *testing.T) {
	s := New()
	for _, c := range Categories() {
		want := c == Necessary
		if got := s.CheckConsent(c); got != want {
			t.Errorf("CheckConsent(%s) = %v, want %v", c, got, want)
		}
	}
}

func TestUpdatePolicyForcesNecessary(t *testing.T) {
	s := New()
	s.UpdatePolicy(ConsentState{Analytics: true, Necessary: false})

	if !s.CheckConsent(Necessary) {
		t.Error("necessary must always be granted")
	}
	if !s.CheckConsent(Analytics) {
		t.Error("analytics should be granted")
	}
	if s.CheckConsent(Marketing) {
		t.Error("marketing should not be granted")
	}
	if !s.GetSnapshot().Necessary {
		t.Error("snapshot must report necessary=true")
	}
}

func TestCheckConsentFailsClosed(t *testing.T) {
	s := New()
	s.UpdatePolicy(AllGranted())

	for _, c := range []Category{"nonexistent-category", "", "Analytics", "marketing "} {
		if s.CheckConsent(c) {
			t.Errorf("CheckConsent(%q) = true, want false", c)
		}
	}
}

func TestFanOutCompleteness(t *testing.T) {
	s := New()
	const n = 5
	var (
		order []int
		got   []ConsentState
	)
	for i := 0; i < n; i++ {
		i := i
		s.Subscribe(func(st ConsentState) {
			order = append(order, i)
			got = append(got, st)
		})
	}

	s.UpdatePolicy(ConsentState{Marketing: true})

	// All listeners have run by the time UpdatePolicy returns.
	if len(order) != n {
		t.Fatalf("invoked %d listeners, want %d", len(order), n)
	}
	for i, idx := range order {
		if idx != i {
			t.Errorf("order[%d] = %d, want subscription order", i, idx)
		}
		if !got[i].Necessary || !got[i].Marketing || got[i].Analytics {
			t.Errorf("listener %d received %+v", i, got[i])
		}
	}
}

func TestSubscribeDoesNotDeliverCurrentState(t *testing.T) {
	s := New()
	s.UpdatePolicy(AllGranted())

	called := false
	s.Subscribe(func(ConsentState) { called = true })
	if called {
		t.Error("Subscribe must not invoke the listener immediately")
	}
}

func TestUnsubscribeDuringOwnInvocation(t *testing.T) {
	s := New()
	var firstCalls, secondCalls int

	var unsub func()
	unsub = s.Subscribe(func(ConsentState) {
		firstCalls++
		unsub()
	})
	s.Subscribe(func(ConsentState) { secondCalls++ })

	s.UpdatePolicy(ConsentState{Analytics: true})
	s.UpdatePolicy(ConsentState{Functional: true})

	if firstCalls != 1 {
		t.Errorf("self-unsubscribing listener called %d times, want 1", firstCalls)
	}
	if secondCalls != 2 {
		t.Errorf("other listener called %d times, want 2", secondCalls)
	}
}

func TestUnsubscribeLaterListenerMidFanOut(t *testing.T) {
	s := New()
	var calls []string

	var unsubC func()
	s.Subscribe(func(ConsentState) {
		calls = append(calls, "a")
		unsubC()
	})
	s.Subscribe(func(ConsentState) { calls = append(calls, "b") })
	unsubC = s.Subscribe(func(ConsentState) { calls = append(calls, "c") })
	s.Subscribe(func(ConsentState) { calls = append(calls, "d") })

	s.UpdatePolicy(AllGranted())

	want := []string{"a", "b", "d"}
	if len(calls) != len(want) {
		t.Fatalf("calls = %v, want %v", calls, want)
	}
	for i := range want {
		if calls[i] != want[i] {
			t.Errorf("calls = %v, want %v", calls, want)
			break
		}
	}
}

func TestUnsubscribeIdempotent(t *testing.T) {
	s := New()
	var a, b int
	unsubA := s.Subscribe(func(ConsentState) { a++ })
	s.Subscribe(func(ConsentState) { b++ })

	unsubA()
	unsubA()

	s.UpdatePolicy(AllGranted())
	if a != 0 {
		t.Errorf("unsubscribed listener called %d times", a)
	}
	if b != 1 {
		t.Errorf("remaining listener called %d times, want 1", b)
	}
	if s.SubscriberCount() != 1 {
		t.Errorf("SubscriberCount = %d, want 1", s.SubscriberCount())
	}
}

func TestListenerPanicIsolated(t *testing.T) {
	s := New()
	var after bool
	s.Subscribe(func(ConsentState) { panic("boom") })
	s.Subscribe(func(ConsentState) { after = true })

	s.UpdatePolicy(AllGranted())

	if !after {
		t.Error("listener after a panicking one was not invoked")
	}
	if !s.CheckConsent(Marketing) {
		t.Error("state should still be applied")
	}
}

func TestSnapshotIsolation(t *testing.T) {
	s := New()
	snap := s.GetSnapshot()
	snap.Marketing = true
	snap.Necessary = false

	if s.CheckConsent(Marketing) {
		t.Error("mutating a snapshot changed the store")
	}
	if !s.GetSnapshot().Necessary {
		t.Error("mutating a snapshot changed necessary")
	}
}

func TestListenerCannotMutateCanonicalState(t *testing.T) {
	s := New()
	s.Subscribe(func(st ConsentState) {
		st.Analytics = true
	})
	s.UpdatePolicy(ConsentState{})
	if s.CheckConsent(Analytics) {
		t.Error("listener mutation leaked into the store")
	}
}

func TestListenerMayReadStore(t *testing.T) {
	s := New()
	var seen bool
	s.Subscribe(func(ConsentState) {
		seen = s.CheckConsent(Analytics) && s.GetSnapshot().Analytics
	})
	s.UpdatePolicy(ConsentState{Analytics: true})
	if !seen {
		t.Error("listener should observe the new state through the store")
	}
}

func TestConcurrentUpdatesSerialized(t *testing.T) {
	s := New()
	var (
		mu     sync.Mutex
		active int
		maxAct int
	)
	s.Subscribe(func(ConsentState) {
		mu.Lock()
		active++
		if active > maxAct {
			maxAct = active
		}
		mu.Unlock()

		mu.Lock()
		active--
		mu.Unlock()
	})

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s.UpdatePolicy(ConsentState{Analytics: i%2 == 0})
			_ = s.CheckConsent(Analytics)
		}(i)
	}
	wg.Wait()

	if maxAct != 1 {
		t.Errorf("max concurrent fan-outs = %d, want 1", maxAct)
	}
}

func TestScenarioAnalyticsOnly(t *testing.T) {
	s := New()
	s.UpdatePolicy(ConsentState{Analytics: true, Marketing: false, Functional: false, Personalization: false, Necessary: false})

	if !s.CheckConsent(Necessary) {
		t.Error("necessary should be true")
	}
	if !s.CheckConsent(Analytics) {
		t.Error("analytics should be true")
	}
	if s.CheckConsent(Marketing) {
		t.Error("marketing should be false")
	}
}
