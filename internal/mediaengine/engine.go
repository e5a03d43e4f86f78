// Package mediaengine is the Media Engine Adapter (spec.md §4.1): the
// only place in the control plane that references pion/webrtc types.
// Every other package talks to it through opaque ids and the small DTOs
// defined in this package.
package mediaengine

import (
	"fmt"
	"sync"

	"github.com/pion/interceptor"
	"github.com/pion/logging"
	"github.com/pion/webrtc/v3"
	"go.uber.org/zap"
)

// Config configures the Worker's ICE/media behavior (spec.md §6.3).
type Config struct {
	ListenIP    string
	AnnouncedIP string
	PortMin     uint16
	PortMax     uint16
	EnableUDP   bool
	EnableTCP   bool
	PreferUDP   bool
}

// DeathHandler is invoked when the worker determines it can no longer
// serve media (spec.md §4.1 on_worker_died). The control plane treats
// this as fatal to every room the worker hosts (spec.md §4.5).
type DeathHandler func(reason error)

// Worker hosts one configured webrtc.API shared by every Router
// (spec.md §4.1: "one or more worker processes"; pion/webrtc runs
// in-process, so one Worker per process is sufficient here).
type Worker struct {
	api    *webrtc.API
	log    *zap.Logger
	mu     sync.Mutex
	dead   bool
	onDeath DeathHandler
}

// NewWorker starts the worker: registers the static codec list and
// default (non-BWE) interceptors, and builds the ICE/media settings from
// cfg. Failure is fatal to boot (spec.md §4.1).
func NewWorker(cfg Config, log *zap.Logger) (*Worker, error) {
	m := &webrtc.MediaEngine{}
	if err := registerCodecs(m); err != nil {
		return nil, fmt.Errorf("register codecs: %w", err)
	}

	ir := &interceptor.Registry{}
	// Only baseline retransmission (NACK generator/responder) is
	// registered. Transport-wide congestion control / bandwidth
	// estimation is a declared non-goal (spec.md §1) and is deliberately
	// not part of this registry.
	if err := webrtc.RegisterDefaultInterceptors(m, ir); err != nil {
		return nil, fmt.Errorf("register interceptors: %w", err)
	}

	s := webrtc.SettingEngine{}
	s.LoggerFactory = &zapLoggerFactory{log: log}
	if cfg.ListenIP != "" {
		_ = s.SetNAT1To1IPs([]string{firstNonEmpty(cfg.AnnouncedIP, cfg.ListenIP)}, webrtc.ICECandidateTypeHost)
	}
	if cfg.PortMin > 0 && cfg.PortMax > 0 {
		if err := s.SetEphemeralUDPPortRange(cfg.PortMin, cfg.PortMax); err != nil {
			return nil, fmt.Errorf("set udp port range: %w", err)
		}
	}
	networkTypes := make([]webrtc.NetworkType, 0, 2)
	if cfg.EnableUDP {
		networkTypes = append(networkTypes, webrtc.NetworkTypeUDP4)
	}
	if cfg.EnableTCP {
		networkTypes = append(networkTypes, webrtc.NetworkTypeTCP4)
	}
	s.SetNetworkTypes(networkTypes)

	api := webrtc.NewAPI(
		webrtc.WithMediaEngine(m),
		webrtc.WithInterceptorRegistry(ir),
		webrtc.WithSettingEngine(s),
	)

	w := &Worker{api: api, log: log}
	return w, nil
}

// OnDeath registers the handler invoked on fatal worker failure.
func (w *Worker) OnDeath(h DeathHandler) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onDeath = h
}

// Die marks the worker dead and notifies the registered handler. Safe to
// call more than once; only the first call has effect.
func (w *Worker) Die(reason error) {
	w.mu.Lock()
	if w.dead {
		w.mu.Unlock()
		return
	}
	w.dead = true
	h := w.onDeath
	w.mu.Unlock()

	w.log.Error("media engine worker died", zap.Error(reason))
	if h != nil {
		h(reason)
	}
}

// Alive reports whether the worker is still serving requests.
func (w *Worker) Alive() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return !w.dead
}

// CreateRouter allocates a new Router bound to this worker's API
// (spec.md §4.2 get_or_create allocates exactly one router per room).
func (w *Worker) CreateRouter(roomID string) (*Router, error) {
	if !w.Alive() {
		return nil, ErrWorkerNotRunning
	}
	return newRouter(roomID, w.api, w.log.With(zap.String("room_id", roomID))), nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// zapLoggerFactory bridges pion's logging.LoggerFactory to the shared
// zap logger so WebRTC-stack internals log through the same sink as the
// rest of the process.
type zapLoggerFactory struct {
	log *zap.Logger
}

func (f *zapLoggerFactory) NewLogger(scope string) logging.LeveledLogger {
	return &zapLeveledLogger{log: f.log.With(zap.String("pion_scope", scope)).Sugar()}
}

type zapLeveledLogger struct {
	log *zap.SugaredLogger
}

func (l *zapLeveledLogger) Trace(msg string)                          { l.log.Debug(msg) }
func (l *zapLeveledLogger) Tracef(format string, args ...interface{})  { l.log.Debugf(format, args...) }
func (l *zapLeveledLogger) Debug(msg string)                          { l.log.Debug(msg) }
func (l *zapLeveledLogger) Debugf(format string, args ...interface{}) { l.log.Debugf(format, args...) }
func (l *zapLeveledLogger) Info(msg string)                           { l.log.Info(msg) }
func (l *zapLeveledLogger) Infof(format string, args ...interface{})  { l.log.Infof(format, args...) }
func (l *zapLeveledLogger) Warn(msg string)                           { l.log.Warn(msg) }
func (l *zapLeveledLogger) Warnf(format string, args ...interface{})  { l.log.Warnf(format, args...) }
func (l *zapLeveledLogger) Error(msg string)                          { l.log.Error(msg) }
func (l *zapLeveledLogger) Errorf(format string, args ...interface{}) { l.log.Errorf(format, args...) }
