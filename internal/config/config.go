package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// Config represents the main application configuration structure
// containing all configuration sections
type Config struct {
	Server     ServerConfig     `toml:"server"`     // HTTP server settings
	Logging    LoggingConfig    `toml:"logging"`    // Application logging settings
	Vehicle    VehicleConfig    `toml:"vehicle"`    // FCU bridge connection and mode settings
	Tracking   TrackingConfig   `toml:"tracking"`   // Target tracking source settings
	Control    ControlConfig    `toml:"control"`    // Control loop settings
	Guidance   GuidanceConfig   `toml:"guidance"`   // Per-phase guidance parameters
	Storage    StorageConfig    `toml:"storage"`    // Flight log persistence settings
	Station    StationConfig    `toml:"station"`    // Landing site location settings
	Simulation SimulationConfig `toml:"simulation"` // Loopback simulator settings
}

// ServerConfig contains HTTP server configuration settings
type ServerConfig struct {
	Port             int    `toml:"port"`                  // Primary HTTP port for the server
	Host             string `toml:"host"`                  // Host address to bind to
	ReadTimeoutSecs  int    `toml:"read_timeout_seconds"`  // Maximum duration for reading the entire request
	WriteTimeoutSecs int    `toml:"write_timeout_seconds"` // Maximum duration for writing the response
	IdleTimeoutSecs  int    `toml:"idle_timeout_seconds"`  // Keep-alive idle timeout
}

// LoggingConfig contains application logging configuration
type LoggingConfig struct {
	Level  string `toml:"level"`  // Log level: "debug", "info", "warn", or "error"
	Format string `toml:"format"` // Log format: "json" (structured) or "console" (human-readable)
}

// VehicleConfig contains FCU bridge connection and flight mode configuration
type VehicleConfig struct {
	// BridgeURL is the WebSocket endpoint of the MAVLink bridge that relays
	// FCU state messages and accepts setpoint/mode commands
	// (e.g. ws://127.0.0.1:5760/vehicle).
	BridgeURL string `toml:"bridge_url"`

	// GuidedModes is the set of FCU mode names in which this program has
	// authority to command velocity setpoints. The set differs between
	// firmware families (ArduCopter reports "GUIDED", PX4 reports "OFFBOARD").
	GuidedModes []string `toml:"guided_modes"`

	// HoldMode is the FCU mode commanded when relinquishing control.
	// ArduPilot: "POSHOLD". PX4: "AUTO.LOITER".
	HoldMode string `toml:"hold_mode"`

	ReconnectIntervalSecs int `toml:"reconnect_interval_secs"` // Seconds to wait before reconnecting after bridge failure
	CommandTimeoutSecs    int `toml:"command_timeout_secs"`    // Write deadline for bridge commands
}

// TrackingConfig contains target tracking source configuration
type TrackingConfig struct {
	// SourceURL is the WebSocket endpoint of the perception bridge that
	// publishes target track observations.
	SourceURL string `toml:"source_url"`

	ReconnectIntervalSecs int `toml:"reconnect_interval_secs"` // Seconds to wait before reconnecting after stream failure
}

// ControlConfig contains control loop configuration
type ControlConfig struct {
	LoopRateHz float64 `toml:"loop_rate_hz"` // Fixed control loop rate in Hz (default: 10)
}

// GuidanceConfig contains per-phase guidance parameters
type GuidanceConfig struct {
	// Seek phase
	SeekAltitudeM  float64 `toml:"seek_altitude_m"`   // Altitude to climb to while searching for the target
	SeekClimbRate  float64 `toml:"seek_climb_rate"`   // Climb rate in m/s while seeking
	SeekYawRateDPS float64 `toml:"seek_yaw_rate_dps"` // Yaw spin rate in deg/s while sweeping for the target

	// Approach phase
	ApproachGain          float64 `toml:"approach_gain"`           // Proportional gain on horizontal target offset
	ApproachMaxSpeed      float64 `toml:"approach_max_speed"`      // Horizontal speed clamp in m/s
	ApproachCaptureRadius float64 `toml:"approach_capture_radius"` // Horizontal offset in meters below which descent begins
	ApproachCaptureSpeed  float64 `toml:"approach_capture_speed"`  // Lateral speed in m/s below which descent begins
	TrackStaleSecs        float64 `toml:"track_stale_secs"`        // Age in seconds after which a track observation is ignored
	MinTrackConfidence    float64 `toml:"min_track_confidence"`    // Minimum track confidence to act on (0.0-1.0)

	// Descend phase
	DescendRate       float64 `toml:"descend_rate"`        // Descent rate in m/s
	DescendHandoffAlt float64 `toml:"descend_handoff_alt"` // Altitude in meters at which LAND takes over

	// Land phase
	LandMode string `toml:"land_mode"` // FCU native landing mode name (e.g. "LAND")
}

// StorageConfig contains flight log persistence configuration
type StorageConfig struct {
	Type           string `toml:"type"`             // Storage backend type (currently only "sqlite" is supported)
	SQLiteBasePath string `toml:"sqlite_base_path"` // Base path for SQLite database files (filename is generated as lander-YYYY-MM-DD.db)
	MaxRowsInAPI   int    `toml:"max_rows_in_api"`  // Maximum number of rows to return in list API responses
}

// StationConfig contains the landing site location, used for magnetic
// declination correction of yaw setpoints
type StationConfig struct {
	Latitude   float64 `toml:"latitude"`    // Landing site latitude in decimal degrees
	Longitude  float64 `toml:"longitude"`   // Landing site longitude in decimal degrees
	ElevationM float64 `toml:"elevation_m"` // Landing site elevation above sea level in meters
}

// SimulationConfig contains loopback simulator configuration
type SimulationConfig struct {
	Enabled bool `toml:"enabled"` // Run against the built-in simulator instead of the bridges

	ModeConfirmDelayMs int     `toml:"mode_confirm_delay_ms"` // Delay before a commanded mode is reported back by the simulated FCU
	InitialAltitudeM   float64 `toml:"initial_altitude_m"`    // Simulated vehicle start altitude
	TargetDriftSpeed   float64 `toml:"target_drift_speed"`    // Simulated target drift speed in m/s
	TrackRateHz        float64 `toml:"track_rate_hz"`         // Rate of synthesized track observations
}

// Load loads the configuration from the specified file path
func Load(path string) (*Config, error) {
	var config Config

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file not found: %s", path)
	}

	if _, err := toml.DecodeFile(path, &config); err != nil {
		return nil, fmt.Errorf("failed to decode config file: %w", err)
	}

	return &config, nil
}

// LoadWithFallback loads the configuration by checking multiple locations in order of preference
func LoadWithFallback(preferredPath string) (*Config, error) {
	searchPaths := []string{
		preferredPath,         // User-specified path (if provided)
		"configs/config.toml", // configs/ folder
		"config.toml",         // Root directory
	}

	// Remove duplicates while preserving order
	uniquePaths := make([]string, 0, len(searchPaths))
	seen := make(map[string]bool)
	for _, path := range searchPaths {
		if path != "" && !seen[path] {
			uniquePaths = append(uniquePaths, path)
			seen[path] = true
		}
	}

	var lastErr error
	for _, path := range uniquePaths {
		if _, err := os.Stat(path); err == nil {
			config, err := Load(path)
			if err != nil {
				lastErr = fmt.Errorf("failed to load config from %s: %w", path, err)
				continue
			}
			return config, nil
		}
		lastErr = fmt.Errorf("config file not found: %s", path)
	}

	return nil, fmt.Errorf("config file not found in any of the expected locations: %v. Last error: %w", uniquePaths, lastErr)
}

// Validate validates the configuration and fills defaults for optional fields
func (c *Config) Validate() error {
	// Validate server config
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	// Validate logging config
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
		// Valid log level
	default:
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	switch c.Logging.Format {
	case "json", "console":
		// Valid log format
	default:
		return fmt.Errorf("invalid log format: %s", c.Logging.Format)
	}

	if err := c.ValidateVehicle(); err != nil {
		return err
	}

	if err := c.ValidateControl(); err != nil {
		return err
	}

	if err := c.ValidateGuidance(); err != nil {
		return err
	}

	if err := c.ValidateStation(); err != nil {
		return err
	}

	// Validate tracking config
	if !c.Simulation.Enabled && c.Tracking.SourceURL == "" {
		return fmt.Errorf("tracking source_url is required when simulation is disabled")
	}
	if c.Tracking.ReconnectIntervalSecs == 0 {
		c.Tracking.ReconnectIntervalSecs = 2
	}
	if c.Tracking.ReconnectIntervalSecs < 0 {
		return fmt.Errorf("invalid tracking reconnect interval: %d", c.Tracking.ReconnectIntervalSecs)
	}

	// Validate storage config
	if c.Storage.Type != "sqlite" {
		return fmt.Errorf("invalid storage type: %s (only 'sqlite' is supported)", c.Storage.Type)
	}
	if c.Storage.SQLiteBasePath == "" {
		return fmt.Errorf("sqlite_base_path is required when storage type is sqlite")
	}
	if c.Storage.MaxRowsInAPI <= 0 {
		c.Storage.MaxRowsInAPI = 100
	}

	// Validate simulation config
	if c.Simulation.Enabled {
		if c.Simulation.ModeConfirmDelayMs < 0 {
			return fmt.Errorf("invalid mode_confirm_delay_ms: %d", c.Simulation.ModeConfirmDelayMs)
		}
		if c.Simulation.TrackRateHz == 0 {
			c.Simulation.TrackRateHz = 5
		}
		if c.Simulation.TrackRateHz < 0 {
			return fmt.Errorf("invalid track_rate_hz: %f", c.Simulation.TrackRateHz)
		}
	}

	return nil
}

// ValidateVehicle validates the vehicle configuration
func (c *Config) ValidateVehicle() error {
	if !c.Simulation.Enabled && c.Vehicle.BridgeURL == "" {
		return fmt.Errorf("vehicle bridge_url is required when simulation is disabled")
	}

	// An empty guided-mode set would classify every mode as not guided and the
	// landing program could never start.
	if len(c.Vehicle.GuidedModes) == 0 {
		return fmt.Errorf("at least one guided mode is required (e.g. \"GUIDED\" for ArduCopter, \"OFFBOARD\" for PX4)")
	}
	seen := make(map[string]bool)
	for _, m := range c.Vehicle.GuidedModes {
		if m == "" {
			return fmt.Errorf("guided mode names must be non-empty")
		}
		if seen[m] {
			return fmt.Errorf("duplicate guided mode: %s", m)
		}
		seen[m] = true
	}

	if c.Vehicle.HoldMode == "" {
		c.Vehicle.HoldMode = "POSHOLD"
	}
	if c.Vehicle.ReconnectIntervalSecs == 0 {
		c.Vehicle.ReconnectIntervalSecs = 2
	}
	if c.Vehicle.ReconnectIntervalSecs < 0 {
		return fmt.Errorf("invalid vehicle reconnect interval: %d", c.Vehicle.ReconnectIntervalSecs)
	}
	if c.Vehicle.CommandTimeoutSecs == 0 {
		c.Vehicle.CommandTimeoutSecs = 5
	}
	if c.Vehicle.CommandTimeoutSecs < 0 {
		return fmt.Errorf("invalid vehicle command timeout: %d", c.Vehicle.CommandTimeoutSecs)
	}

	return nil
}

// ValidateControl validates the control loop configuration
func (c *Config) ValidateControl() error {
	if c.Control.LoopRateHz == 0 {
		c.Control.LoopRateHz = 10
	}
	if c.Control.LoopRateHz < 0 {
		return fmt.Errorf("loop_rate_hz must be positive: %f", c.Control.LoopRateHz)
	}
	return nil
}

// ValidateGuidance validates the guidance configuration and fills defaults
func (c *Config) ValidateGuidance() error {
	g := &c.Guidance

	if g.SeekAltitudeM == 0 {
		g.SeekAltitudeM = 15.0
	}
	if g.SeekAltitudeM < 0 {
		return fmt.Errorf("seek_altitude_m must be positive: %f", g.SeekAltitudeM)
	}
	if g.SeekClimbRate == 0 {
		g.SeekClimbRate = 1.0
	}
	if g.SeekYawRateDPS == 0 {
		g.SeekYawRateDPS = 15.0
	}

	if g.ApproachGain == 0 {
		g.ApproachGain = 0.5
	}
	if g.ApproachGain < 0 {
		return fmt.Errorf("approach_gain must be positive: %f", g.ApproachGain)
	}
	if g.ApproachMaxSpeed == 0 {
		g.ApproachMaxSpeed = 3.0
	}
	if g.ApproachMaxSpeed < 0 {
		return fmt.Errorf("approach_max_speed must be positive: %f", g.ApproachMaxSpeed)
	}
	if g.ApproachCaptureRadius == 0 {
		g.ApproachCaptureRadius = 0.5
	}
	if g.ApproachCaptureSpeed == 0 {
		g.ApproachCaptureSpeed = 0.3
	}
	if g.TrackStaleSecs == 0 {
		g.TrackStaleSecs = 2.0
	}
	if g.TrackStaleSecs < 0 {
		return fmt.Errorf("track_stale_secs must be positive: %f", g.TrackStaleSecs)
	}
	if g.MinTrackConfidence < 0 || g.MinTrackConfidence > 1 {
		return fmt.Errorf("min_track_confidence must be between 0 and 1: %f", g.MinTrackConfidence)
	}

	if g.DescendRate == 0 {
		g.DescendRate = 0.5
	}
	if g.DescendRate < 0 {
		return fmt.Errorf("descend_rate must be positive: %f", g.DescendRate)
	}
	if g.DescendHandoffAlt == 0 {
		g.DescendHandoffAlt = 2.0
	}
	if g.DescendHandoffAlt < 0 {
		return fmt.Errorf("descend_handoff_alt must be positive: %f", g.DescendHandoffAlt)
	}

	if g.LandMode == "" {
		g.LandMode = "LAND"
	}

	return nil
}

// ValidateStation validates the station configuration
func (c *Config) ValidateStation() error {
	if c.Station.Latitude < -90 || c.Station.Latitude > 90 {
		return fmt.Errorf("invalid station latitude: %f", c.Station.Latitude)
	}
	if c.Station.Longitude < -180 || c.Station.Longitude > 180 {
		return fmt.Errorf("invalid station longitude: %f", c.Station.Longitude)
	}
	// Elevation can be negative (below sea level sites), bound it to a sane range.
	if c.Station.ElevationM < -500 || c.Station.ElevationM > 9000 {
		return fmt.Errorf("station elevation out of typical range: %f m", c.Station.ElevationM)
	}
	return nil
}
