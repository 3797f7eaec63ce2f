package websocket

import (
	"time"

	"github.com/kenanunal/lander/internal/commander"
	"github.com/kenanunal/lander/internal/track"
	"github.com/kenanunal/lander/internal/vehicle"
)

// Publisher converts landing program events into WebSocket messages and
// broadcasts them. It implements commander.TransitionSink.
type Publisher struct {
	server *Server
}

// NewPublisher creates a publisher bound to the given server.
func NewPublisher(server *Server) *Publisher {
	return &Publisher{server: server}
}

// StateChanged implements commander.TransitionSink.
func (p *Publisher) StateChanged(old, new commander.FlightState, at time.Time) {
	p.server.Broadcast(&Message{
		Type: MessageTypeStateChange,
		Data: map[string]any{
			"from":      string(old),
			"to":        string(new),
			"timestamp": at.UTC().Format(time.RFC3339Nano),
		},
	})
}

// PublishMode broadcasts an FCU mode report.
func (p *Publisher) PublishMode(mode string) {
	p.server.Broadcast(&Message{
		Type: MessageTypeModeUpdate,
		Data: map[string]any{
			"mode":      mode,
			"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
		},
	})
}

// PublishTrack broadcasts a target track observation.
func (p *Publisher) PublishTrack(obs track.Observation) {
	p.server.Broadcast(&Message{
		Type: MessageTypeTrackUpdate,
		Data: map[string]any{
			"x":          obs.X,
			"y":          obs.Y,
			"z":          obs.Z,
			"confidence": obs.Confidence,
			"timestamp":  obs.Timestamp.UTC().Format(time.RFC3339Nano),
		},
	})
}

// PublishSetpoint broadcasts a commanded velocity setpoint.
func (p *Publisher) PublishSetpoint(state string, sp vehicle.Setpoint) {
	p.server.Broadcast(&Message{
		Type: MessageTypeSetpoint,
		Data: map[string]any{
			"state":     state,
			"vx":        sp.VX,
			"vy":        sp.VY,
			"vz":        sp.VZ,
			"yaw_rate":  sp.YawRate,
			"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
		},
	})
}
