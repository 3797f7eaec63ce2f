package commander

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/kenanunal/lander/internal/track"
	"github.com/kenanunal/lander/internal/vehicle"
	"github.com/kenanunal/lander/pkg/logger"
)

// fakeVehicle records commands in arrival order.
type fakeVehicle struct {
	mu       sync.Mutex
	commands []string
	sps      []vehicle.Setpoint
	modes    []string
	mode     string

	spErr   error
	modeErr error
}

func (v *fakeVehicle) SetVelocitySetpoint(sp vehicle.Setpoint) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.spErr != nil {
		return v.spErr
	}
	v.commands = append(v.commands, "setpoint")
	v.sps = append(v.sps, sp)
	return nil
}

func (v *fakeVehicle) SetMode(name string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.modeErr != nil {
		return v.modeErr
	}
	v.commands = append(v.commands, "mode:"+name)
	v.modes = append(v.modes, name)
	return nil
}

func (v *fakeVehicle) Mode() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.mode
}

func (v *fakeVehicle) commandLog() []string {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]string, len(v.commands))
	copy(out, v.commands)
	return out
}

// recordingController appends its hook invocations to a shared journal so
// ordering across controllers can be asserted.
type recordingController struct {
	name    string
	journal *[]string
	tracks  []track.Observation

	onEnter func()
	onExit  func()
	onRun   func()
	onTrack func(track.Observation)
}

func (c *recordingController) Enter() {
	*c.journal = append(*c.journal, c.name+".enter")
	if c.onEnter != nil {
		c.onEnter()
	}
}

func (c *recordingController) Exit() {
	*c.journal = append(*c.journal, c.name+".exit")
	if c.onExit != nil {
		c.onExit()
	}
}

func (c *recordingController) Run() {
	*c.journal = append(*c.journal, c.name+".run")
	if c.onRun != nil {
		c.onRun()
	}
}

func (c *recordingController) HandleTrackUpdate(obs track.Observation) {
	*c.journal = append(*c.journal, c.name+".track")
	c.tracks = append(c.tracks, obs)
	if c.onTrack != nil {
		c.onTrack(obs)
	}
}

type harness struct {
	cmdr    *Commander
	veh     *fakeVehicle
	journal []string
	ctrls   map[FlightState]*recordingController
}

func newHarness(t *testing.T, period time.Duration) *harness {
	t.Helper()

	h := &harness{
		veh:   &fakeVehicle{mode: "STABILIZE"},
		ctrls: make(map[FlightState]*recordingController),
	}

	cfg := Config{
		LoopPeriod:  period,
		GuidedModes: []string{"GUIDED", "OFFBOARD"},
		HoldMode:    "POSHOLD",
	}

	cmdr, err := New(h.veh, cfg, func(*Commander) Registry {
		reg := make(Registry)
		for _, s := range ControllerStates() {
			ctrl := &recordingController{name: string(s), journal: &h.journal}
			h.ctrls[s] = ctrl
			reg[s] = ctrl
		}
		return reg
	}, logger.NewNop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	h.cmdr = cmdr
	return h
}

func countOf(journal []string, entry string) int {
	n := 0
	for _, e := range journal {
		if e == entry {
			n++
		}
	}
	return n
}

func TestConstruction(t *testing.T) {
	t.Run("INIT is never observed after construction", func(t *testing.T) {
		h := newHarness(t, 10*time.Millisecond)
		if got := h.cmdr.State(); got != StatePending {
			t.Fatalf("state after construction = %s, want %s", got, StatePending)
		}
	})

	t.Run("pending controller is entered exactly once", func(t *testing.T) {
		h := newHarness(t, 10*time.Millisecond)
		if got := countOf(h.journal, "PENDING.enter"); got != 1 {
			t.Errorf("PENDING.enter count = %d, want 1", got)
		}
		if got := countOf(h.journal, "PENDING.exit"); got != 0 {
			t.Errorf("PENDING.exit count = %d, want 0", got)
		}
	})

	t.Run("missing controller fails construction", func(t *testing.T) {
		cfg := Config{LoopPeriod: time.Second, GuidedModes: []string{"GUIDED"}, HoldMode: "POSHOLD"}
		var journal []string
		_, err := New(&fakeVehicle{}, cfg, func(*Commander) Registry {
			return Registry{
				StatePending: &recordingController{name: "PENDING", journal: &journal},
			}
		}, logger.NewNop())
		if err == nil {
			t.Fatal("expected error for incomplete registry")
		}
	})

	t.Run("invalid config is rejected", func(t *testing.T) {
		build := func(*Commander) Registry { return nil }
		cases := []struct {
			name string
			cfg  Config
		}{
			{"zero period", Config{GuidedModes: []string{"GUIDED"}, HoldMode: "POSHOLD"}},
			{"no guided modes", Config{LoopPeriod: time.Second, HoldMode: "POSHOLD"}},
			{"no hold mode", Config{LoopPeriod: time.Second, GuidedModes: []string{"GUIDED"}}},
		}
		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				if _, err := New(&fakeVehicle{}, tc.cfg, build, logger.NewNop()); err == nil {
					t.Fatal("expected error")
				}
			})
		}
	})
}

func TestModeClassifier(t *testing.T) {
	mc := NewModeClassifier([]string{"GUIDED", "OFFBOARD"})

	cases := []struct {
		mode   string
		guided bool
	}{
		{"GUIDED", true},
		{"OFFBOARD", true},
		{"MANUAL", false},
		{"POSHOLD", false},
		{"RTL", false},
		{"", false},
		{"guided", false}, // mode names are case sensitive
	}
	for _, tc := range cases {
		if got := mc.IsGuided(tc.mode); got != tc.guided {
			t.Errorf("IsGuided(%q) = %v, want %v", tc.mode, got, tc.guided)
		}
	}
}

func TestOnFcuMode(t *testing.T) {
	t.Run("guided mode while PENDING starts SEEK", func(t *testing.T) {
		h := newHarness(t, 10*time.Millisecond)
		h.journal = nil

		h.cmdr.OnFcuMode("GUIDED")

		if got := h.cmdr.State(); got != StateSeek {
			t.Fatalf("state = %s, want %s", got, StateSeek)
		}
		// Pending.exit then Seek.enter, exactly once each, in that order.
		want := []string{"PENDING.exit", "SEEK.enter"}
		if len(h.journal) != len(want) {
			t.Fatalf("journal = %v, want %v", h.journal, want)
		}
		for i := range want {
			if h.journal[i] != want[i] {
				t.Fatalf("journal = %v, want %v", h.journal, want)
			}
		}
	})

	t.Run("guided mode in active phases is a no-op", func(t *testing.T) {
		for _, s := range []FlightState{StateSeek, StateApproach, StateDescend, StateLand} {
			h := newHarness(t, 10*time.Millisecond)
			h.cmdr.RequestState(s)
			h.journal = nil

			h.cmdr.OnFcuMode("GUIDED")
			h.cmdr.OnFcuMode("OFFBOARD")

			if got := h.cmdr.State(); got != s {
				t.Errorf("state after guided event in %s = %s, want unchanged", s, got)
			}
			if len(h.journal) != 0 {
				t.Errorf("unexpected controller activity in %s: %v", s, h.journal)
			}
		}
	})

	t.Run("non-guided mode aborts any active phase to PENDING", func(t *testing.T) {
		for _, s := range []FlightState{StateSeek, StateApproach, StateDescend, StateLand} {
			h := newHarness(t, 10*time.Millisecond)
			h.cmdr.RequestState(s)

			h.cmdr.OnFcuMode("MANUAL")

			if got := h.cmdr.State(); got != StatePending {
				t.Errorf("state after MANUAL in %s = %s, want %s", s, got, StatePending)
			}
		}
	})

	t.Run("non-guided mode while PENDING is a no-op", func(t *testing.T) {
		h := newHarness(t, 10*time.Millisecond)
		h.journal = nil

		h.cmdr.OnFcuMode("MANUAL")

		if got := h.cmdr.State(); got != StatePending {
			t.Fatalf("state = %s, want %s", got, StatePending)
		}
		if len(h.journal) != 0 {
			t.Fatalf("unexpected controller activity: %v", h.journal)
		}
	})

	t.Run("unknown mode string is treated as not guided", func(t *testing.T) {
		h := newHarness(t, 10*time.Millisecond)
		h.cmdr.RequestState(StateDescend)

		h.cmdr.OnFcuMode("FIRMWARE_TRANSIENT_MODE")

		if got := h.cmdr.State(); got != StatePending {
			t.Fatalf("state = %s, want %s", got, StatePending)
		}
	})
}

func TestTrackRouting(t *testing.T) {
	t.Run("observations go to the controller active at delivery time", func(t *testing.T) {
		h := newHarness(t, 10*time.Millisecond)
		h.cmdr.OnFcuMode("GUIDED") // PENDING -> SEEK

		first := track.Observation{Timestamp: time.Now(), X: 1}
		h.cmdr.OnTrackUpdate(first)

		h.cmdr.RequestState(StateApproach)

		second := track.Observation{Timestamp: time.Now(), X: 2}
		h.cmdr.OnTrackUpdate(second)

		seek := h.ctrls[StateSeek]
		approach := h.ctrls[StateApproach]
		if len(seek.tracks) != 1 || seek.tracks[0].X != 1 {
			t.Errorf("seek tracks = %v, want exactly the first observation", seek.tracks)
		}
		if len(approach.tracks) != 1 || approach.tracks[0].X != 2 {
			t.Errorf("approach tracks = %v, want exactly the second observation", approach.tracks)
		}
	})

	t.Run("transition requested from a track handler resolves before the next delivery", func(t *testing.T) {
		h := newHarness(t, 10*time.Millisecond)
		h.cmdr.OnFcuMode("GUIDED")

		h.ctrls[StateSeek].onTrack = func(track.Observation) {
			h.cmdr.RequestState(StateApproach)
		}

		h.cmdr.OnTrackUpdate(track.Observation{Timestamp: time.Now()})
		if got := h.cmdr.State(); got != StateApproach {
			t.Fatalf("state = %s, want %s", got, StateApproach)
		}

		h.cmdr.OnTrackUpdate(track.Observation{Timestamp: time.Now()})
		if got := len(h.ctrls[StateApproach].tracks); got != 1 {
			t.Errorf("approach received %d observations, want 1", got)
		}
		if got := len(h.ctrls[StateSeek].tracks); got != 1 {
			t.Errorf("seek received %d observations, want 1", got)
		}
	})
}

func TestOnTick(t *testing.T) {
	t.Run("three ticks run the active controller three times", func(t *testing.T) {
		h := newHarness(t, 10*time.Millisecond)
		h.cmdr.RequestState(StateApproach)
		h.journal = nil

		h.cmdr.OnTick()
		h.cmdr.OnTick()
		h.cmdr.OnTick()

		if got := countOf(h.journal, "APPROACH.run"); got != 3 {
			t.Errorf("APPROACH.run count = %d, want 3", got)
		}
		if got := h.cmdr.State(); got != StateApproach {
			t.Errorf("state = %s, want unchanged %s", got, StateApproach)
		}
	})
}

func TestTransitionFailureHandling(t *testing.T) {
	t.Run("panicking exit does not abort the transition", func(t *testing.T) {
		h := newHarness(t, 10*time.Millisecond)
		h.cmdr.OnFcuMode("GUIDED")

		h.ctrls[StateSeek].onExit = func() { panic("seek exit blew up") }

		h.cmdr.OnFcuMode("MANUAL")

		if got := h.cmdr.State(); got != StatePending {
			t.Fatalf("state = %s, want %s", got, StatePending)
		}
		// The new controller was still entered, so the machine is not stuck
		// referencing the stale one.
		h.journal = nil
		h.cmdr.OnTick()
		if got := countOf(h.journal, "PENDING.run"); got != 1 {
			t.Errorf("PENDING.run count = %d, want 1", got)
		}
	})

	t.Run("panicking enter leaves bookkeeping consistent", func(t *testing.T) {
		h := newHarness(t, 10*time.Millisecond)
		h.ctrls[StateSeek].onEnter = func() { panic("seek enter blew up") }

		h.cmdr.OnFcuMode("GUIDED")

		if got := h.cmdr.State(); got != StateSeek {
			t.Fatalf("state = %s, want %s", got, StateSeek)
		}
	})
}

func TestTransitionSink(t *testing.T) {
	h := newHarness(t, 10*time.Millisecond)

	var mu sync.Mutex
	var changes [][2]FlightState
	h.cmdr.AddTransitionSink(TransitionSinkFunc(func(oldState, newState FlightState, _ time.Time) {
		mu.Lock()
		defer mu.Unlock()
		changes = append(changes, [2]FlightState{oldState, newState})
	}))

	h.cmdr.OnFcuMode("GUIDED")
	h.cmdr.OnFcuMode("MANUAL")

	mu.Lock()
	defer mu.Unlock()
	want := [][2]FlightState{
		{StatePending, StateSeek},
		{StateSeek, StatePending},
	}
	if len(changes) != len(want) {
		t.Fatalf("changes = %v, want %v", changes, want)
	}
	for i := range want {
		if changes[i] != want[i] {
			t.Fatalf("changes = %v, want %v", changes, want)
		}
	}
}

func TestRelinquishControl(t *testing.T) {
	const period = 10 * time.Millisecond

	t.Run("commands precede polling regardless of state", func(t *testing.T) {
		h := newHarness(t, period)
		// Already PENDING: must still issue both commands and return at once.
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()

		if err := h.cmdr.RelinquishControl(ctx); err != nil {
			t.Fatalf("RelinquishControl: %v", err)
		}

		log := h.veh.commandLog()
		if len(log) != 2 || log[0] != "setpoint" || log[1] != "mode:POSHOLD" {
			t.Fatalf("command log = %v, want [setpoint mode:POSHOLD]", log)
		}
		if sp := h.veh.sps[0]; sp != vehicle.FullStop {
			t.Errorf("setpoint = %+v, want full stop", sp)
		}
	})

	t.Run("returns once the FCU mode report forces PENDING", func(t *testing.T) {
		h := newHarness(t, period)
		h.cmdr.OnFcuMode("GUIDED")
		h.cmdr.RequestState(StateDescend)

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()

		done := make(chan error, 1)
		start := time.Now()
		go func() { done <- h.cmdr.RelinquishControl(ctx) }()

		// Mode confirmation arrives after roughly two loop ticks.
		time.Sleep(2 * period)
		h.cmdr.OnFcuMode("POSHOLD")

		select {
		case err := <-done:
			if err != nil {
				t.Fatalf("RelinquishControl: %v", err)
			}
		case <-time.After(time.Second):
			t.Fatal("RelinquishControl did not return after PENDING was reached")
		}
		if elapsed := time.Since(start); elapsed < 2*period {
			t.Errorf("returned after %v, before the mode confirmation could arrive", elapsed)
		}
	})

	t.Run("context cancellation exits the wait without asserting success", func(t *testing.T) {
		h := newHarness(t, period)
		h.cmdr.OnFcuMode("GUIDED")
		h.cmdr.RequestState(StateDescend)

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() { done <- h.cmdr.RelinquishControl(ctx) }()

		time.Sleep(3 * period)
		cancel()

		select {
		case err := <-done:
			if !errors.Is(err, context.Canceled) {
				t.Fatalf("err = %v, want context.Canceled", err)
			}
		case <-time.After(time.Second):
			t.Fatal("RelinquishControl did not return after cancellation")
		}
		if got := h.cmdr.State(); got != StateDescend {
			t.Errorf("state = %s; cancellation must not fabricate a transition", got)
		}
	})

	t.Run("setpoint failure is propagated after attempting the hold mode", func(t *testing.T) {
		h := newHarness(t, period)
		h.veh.spErr = errors.New("link down")

		err := h.cmdr.RelinquishControl(context.Background())
		if err == nil {
			t.Fatal("expected error")
		}
		if len(h.veh.modes) != 1 || h.veh.modes[0] != "POSHOLD" {
			t.Errorf("hold mode command was not attempted: %v", h.veh.modes)
		}
	})
}
