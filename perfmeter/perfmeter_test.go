package perfmeter

import (
	"sync"
	"testing"
	"time"
)

func TestMeter_ConcurrentTicks(t *testing.T) {
	m := Start()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				m.Tick()
			}
		}()
	}
	wg.Wait()
	if got := m.Count(); got != 800 {
		t.Errorf("Count() = %d, want 800", got)
	}
}

func TestMeter_StopFixesElapsed(t *testing.T) {
	m := Start()
	time.Sleep(5 * time.Millisecond)
	first := m.Stop()
	if first < 5*time.Millisecond {
		t.Errorf("Stop() = %v, want >= 5ms", first)
	}
	time.Sleep(5 * time.Millisecond)
	if got := m.Elapsed(); got != first {
		t.Errorf("Elapsed() after Stop = %v, want %v", got, first)
	}
	if got := m.Stop(); got != first {
		t.Errorf("second Stop() = %v, want %v", got, first)
	}
}
