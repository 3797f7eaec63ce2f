// Package simulation provides a loopback stand-in for the vehicle and
// perception bridges: an ArduCopter-flavored fake FCU plus a drifting
// landing target, integrated kinematically. It lets the full landing
// program run on a desk with no hardware and no SITL stack.
package simulation

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/kenanunal/lander/internal/config"
	"github.com/kenanunal/lander/internal/physics"
	"github.com/kenanunal/lander/internal/track"
	"github.com/kenanunal/lander/internal/vehicle"
	"github.com/kenanunal/lander/pkg/logger"
)

// Simulated FCU mode names (ArduCopter-flavored).
const (
	ModeStabilize = "STABILIZE"
	ModeGuided    = "GUIDED"
	ModeLand      = "LAND"
)

// Rate at which the simulated FCU reports its state, matching the ~1 Hz
// heartbeat of a real bridge.
const stateReportInterval = time.Second

// landDescentRate is the descent rate of the simulated FCU's native LAND
// mode, in m/s.
const landDescentRate = 0.5

// Service is the loopback simulator. It implements vehicle.Interface and
// synthesizes mode reports and track observations.
type Service struct {
	cfg    config.SimulationConfig
	logger *logger.Logger
	rng    *rand.Rand

	mu           sync.Mutex
	mode         string
	pendingMode  string
	pendingAt    time.Time
	sp           vehicle.Setpoint
	modeHandler  vehicle.ModeHandler
	trackHandler track.Handler

	// Vehicle position in the local NED frame, target on the ground plane.
	vehN, vehE, altM float64
	tgtN, tgtE       float64
	tgtHeading       float64

	wg sync.WaitGroup
}

// NewService creates a simulator. The vehicle starts hovering at the
// configured altitude with the target a few meters off to the side.
func NewService(cfg config.SimulationConfig, log *logger.Logger) *Service {
	if cfg.InitialAltitudeM <= 0 {
		cfg.InitialAltitudeM = 20
	}
	if cfg.TrackRateHz <= 0 {
		cfg.TrackRateHz = 5
	}
	return &Service{
		cfg:    cfg,
		logger: log.Named("simulation"),
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
		mode:   ModeStabilize,
		altM:   cfg.InitialAltitudeM,
		tgtN:   6,
		tgtE:   -4,
	}
}

// SetModeHandler registers the FCU mode report handler. Must be called
// before Start.
func (s *Service) SetModeHandler(handler vehicle.ModeHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.modeHandler = handler
}

// SetTrackHandler registers the track observation handler. Must be called
// before Start.
func (s *Service) SetTrackHandler(handler track.Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.trackHandler = handler
}

// SetVelocitySetpoint implements vehicle.Interface. The setpoint is applied
// by the physics loop only while the simulated FCU is in GUIDED, mirroring
// real firmware behavior.
func (s *Service) SetVelocitySetpoint(sp vehicle.Setpoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sp = sp
	return nil
}

// SetMode implements vehicle.Interface. The commanded mode is reported back
// after the configured confirmation delay, exercising the asynchronous
// confirmation path the commander polls on.
func (s *Service) SetMode(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pendingMode = name
	s.pendingAt = time.Now().Add(time.Duration(s.cfg.ModeConfirmDelayMs) * time.Millisecond)
	s.logger.Info("Mode commanded", logger.String("mode", name))
	return nil
}

// Mode implements vehicle.Interface.
func (s *Service) Mode() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

// Start launches the state-report and physics loops. They stop when the
// context is done.
func (s *Service) Start(ctx context.Context) {
	s.logger.Info("Starting simulator",
		logger.Float64("initial_altitude_m", s.cfg.InitialAltitudeM),
		logger.Float64("track_rate_hz", s.cfg.TrackRateHz))

	s.wg.Add(2)
	go func() {
		defer s.wg.Done()
		s.stateLoop(ctx)
	}()
	go func() {
		defer s.wg.Done()
		s.physicsLoop(ctx)
	}()

	// Flip to GUIDED shortly after start, standing in for the operator's
	// mode switch that arms the landing program.
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		select {
		case <-ctx.Done():
		case <-time.After(2 * time.Second):
			s.mu.Lock()
			if s.mode == ModeStabilize {
				s.mode = ModeGuided
				s.logger.Info("Operator mode switch simulated", logger.String("mode", ModeGuided))
			}
			s.mu.Unlock()
		}
	}()
}

// Wait blocks until all simulator loops have exited.
func (s *Service) Wait() {
	s.wg.Wait()
}

func (s *Service) stateLoop(ctx context.Context) {
	ticker := time.NewTicker(stateReportInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.reportState()
		}
	}
}

func (s *Service) reportState() {
	s.mu.Lock()
	if s.pendingMode != "" && !time.Now().Before(s.pendingAt) {
		s.mode = s.pendingMode
		s.pendingMode = ""
		s.logger.Info("Mode confirmed", logger.String("mode", s.mode))
	}
	mode := s.mode
	handler := s.modeHandler
	s.mu.Unlock()

	if handler != nil {
		handler(mode)
	}
}

func (s *Service) physicsLoop(ctx context.Context) {
	period := time.Duration(float64(time.Second) / s.cfg.TrackRateHz)
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	dt := period.Seconds()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.step(dt)
		}
	}
}

func (s *Service) step(dt float64) {
	s.mu.Lock()

	switch s.mode {
	case ModeGuided:
		s.vehN += s.sp.VX * dt
		s.vehE += s.sp.VY * dt
		s.altM -= s.sp.VZ * dt
	case ModeLand:
		s.altM -= landDescentRate * dt
		if s.altM <= 0 {
			s.altM = 0
			s.mode = ModeStabilize
			s.logger.Info("Touchdown, simulated FCU disarmed")
		}
	}
	if s.altM < 0 {
		s.altM = 0
	}

	// Target drifts with a slow random heading walk.
	s.tgtHeading = physics.NormalizeHeading(s.tgtHeading + (s.rng.Float64()-0.5)*20*dt)
	drift := physics.HeadingToVector(s.tgtHeading, s.cfg.TargetDriftSpeed*dt)
	s.tgtN += drift.N
	s.tgtE += drift.E

	obs := track.Observation{
		Timestamp:  time.Now().UTC(),
		X:          s.tgtN - s.vehN,
		Y:          s.tgtE - s.vehE,
		Z:          s.altM,
		Confidence: 0.85 + 0.15*s.rng.Float64(),
	}
	handler := s.trackHandler
	visible := s.altM > 0.2 // the camera loses the pad in ground effect
	s.mu.Unlock()

	if handler != nil && visible {
		handler(obs)
	}
}
