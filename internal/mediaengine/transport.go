package mediaengine

import (
	"sync"

	"github.com/pion/webrtc/v3"
)

// Direction mirrors spec.md §3 Transport.direction.
type Direction string

const (
	DirectionSend Direction = "send"
	DirectionRecv Direction = "recv"
)

// ICECandidate is the wire-shape subset of a gathered ICE candidate.
type ICECandidate struct {
	Foundation string
	Protocol   string
	Priority   uint32
	Address    string
	Port       uint16
	Typ        string
}

// ICEParameters is the wire-shape subset needed to drive the remote ICE agent.
type ICEParameters struct {
	UsernameFragment string
	Password         string
	ICELite          bool
}

// DTLSFingerprint is one algorithm/value pair of a DTLS certificate
// fingerprint.
type DTLSFingerprint struct {
	Algorithm string
	Value     string
}

// DTLSParameters carries the DTLS fingerprint set for handshake.
type DTLSParameters struct {
	Role         string
	Fingerprints []DTLSFingerprint
}

// TransportParams is returned from CreateTransport (spec.md §4.1).
type TransportParams struct {
	ID              string
	ICEParameters   ICEParameters
	ICECandidates   []ICECandidate
	DTLSParameters  DTLSParameters
}

// Transport wraps one ORTC ICE/DTLS transport pair (spec.md §3 Transport).
// One Transport is created per (peer, direction).
type Transport struct {
	ID        string
	Direction Direction
	router    *Router

	gatherer *webrtc.ICEGatherer
	ice      *webrtc.ICETransport
	dtls     *webrtc.DTLSTransport
	cert     webrtc.Certificate

	mu        sync.Mutex
	connected bool
}

// CreateTransport gathers ICE candidates and builds the ICE/DTLS
// transport pair, returning the parameters the client needs to drive its
// own ICE/DTLS agents (spec.md §4.1 create_transport).
func (r *Router) CreateTransport(id string, dir Direction, cfg Config) (*Transport, TransportParams, error) {
	gatherer, err := r.api.NewICEGatherer(webrtc.ICEGatherOptions{})
	if err != nil {
		return nil, TransportParams{}, err
	}

	ice := r.api.NewICETransport(gatherer)
	cert, err := webrtc.GenerateCertificate(nil)
	if err != nil {
		return nil, TransportParams{}, err
	}
	dtls, err := r.api.NewDTLSTransport(ice, []webrtc.Certificate{*cert})
	if err != nil {
		return nil, TransportParams{}, err
	}

	gatherFinished := make(chan struct{})
	gatherer.OnLocalCandidate(func(c *webrtc.ICECandidate) {
		if c == nil {
			close(gatherFinished)
		}
	})
	if err := gatherer.Gather(); err != nil {
		return nil, TransportParams{}, err
	}
	<-gatherFinished

	iceParams, err := gatherer.GetLocalParameters()
	if err != nil {
		return nil, TransportParams{}, err
	}
	candidates, err := gatherer.GetLocalCandidates()
	if err != nil {
		return nil, TransportParams{}, err
	}
	dtlsParams, err := dtls.GetLocalParameters()
	if err != nil {
		return nil, TransportParams{}, err
	}

	t := &Transport{
		ID:        id,
		Direction: dir,
		router:    r,
		gatherer:  gatherer,
		ice:       ice,
		dtls:      dtls,
		cert:      *cert,
	}

	params := TransportParams{
		ID:            id,
		ICEParameters: toICEParameters(iceParams),
		ICECandidates: toICECandidates(candidates),
		DTLSParameters: DTLSParameters{
			Role:         "server",
			Fingerprints: toFingerprints(dtlsParams),
		},
	}
	return t, params, nil
}

// Connect starts the ICE and DTLS transports with the remote's DTLS
// parameters (spec.md §4.1 connect_transport). Idempotent: a second call
// on an already-connected transport returns ErrAlreadyConnected without
// restarting anything (spec.md §4.1, §8).
func (t *Transport) Connect(remote DTLSParameters) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.connected {
		return ErrAlreadyConnected
	}

	iceParams, err := t.gatherer.GetLocalParameters()
	if err != nil {
		return err
	}
	role := webrtc.ICERoleControlled
	if err := t.ice.Start(t.gatherer, iceParams, &role); err != nil {
		return err
	}

	dtlsParams := webrtc.DTLSParameters{
		Role:         webrtc.DTLSRoleServer,
		Fingerprints: fromFingerprints(remote.Fingerprints),
	}
	if err := t.dtls.Start(dtlsParams); err != nil {
		return err
	}

	t.connected = true
	return nil
}

// Connected reports whether Connect has completed successfully.
func (t *Transport) Connected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.connected
}

// Close tears down the ICE/DTLS transports. Idempotent.
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.dtls != nil {
		_ = t.dtls.Stop()
	}
	if t.ice != nil {
		_ = t.ice.Stop()
	}
	return nil
}

func toICEParameters(p webrtc.ICEParameters) ICEParameters {
	return ICEParameters{
		UsernameFragment: p.UsernameFragment,
		Password:         p.Password,
		ICELite:          p.ICELite,
	}
}

func toICECandidates(cs []webrtc.ICECandidate) []ICECandidate {
	out := make([]ICECandidate, 0, len(cs))
	for _, c := range cs {
		out = append(out, ICECandidate{
			Foundation: c.Foundation,
			Protocol:   c.Protocol.String(),
			Priority:   c.Priority,
			Address:    c.Address,
			Port:       c.Port,
			Typ:        c.Typ.String(),
		})
	}
	return out
}

func toFingerprints(p webrtc.DTLSParameters) []DTLSFingerprint {
	out := make([]DTLSFingerprint, 0, len(p.Fingerprints))
	for _, f := range p.Fingerprints {
		out = append(out, DTLSFingerprint{Algorithm: f.Algorithm, Value: f.Value})
	}
	return out
}

func fromFingerprints(fs []DTLSFingerprint) []webrtc.DTLSFingerprint {
	out := make([]webrtc.DTLSFingerprint, 0, len(fs))
	for _, f := range fs {
		out = append(out, webrtc.DTLSFingerprint{Algorithm: f.Algorithm, Value: f.Value})
	}
	return out
}
