package mediaengine

import (
	"fmt"
	"sync"

	"github.com/pion/rtp"
	"github.com/pion/webrtc/v3"
)

// RTPParameters is the minimal subset of a produce/consume negotiation
// this adapter cares about: which of the four static codecs (spec.md
// §6.4) the track uses. A full mediasoup-style parameter set would also
// carry header extensions and encodings; out of scope here (no
// simulcast/SVC, per spec.md §1 Non-goals).
type RTPParameters struct {
	MimeType string
}

// rtpBufferSize is MTU-friendly, matching the teacher's relay buffer.
const rtpBufferSize = 1500

var rtpBufferPool = sync.Pool{
	New: func() interface{} {
		b := make([]byte, rtpBufferSize)
		return &b
	},
}

// Producer is a server-side handle for one uploaded media track
// (spec.md §3 Producer). The SFU receives the peer's RTP through an
// RTPReceiver on the peer's send Transport.
type Producer struct {
	ID       string
	Kind     webrtc.RTPCodecType
	receiver *webrtc.RTPReceiver
	router   *Router

	mu          sync.RWMutex
	subscribers map[string]*Consumer
	closed      bool
}

// Produce creates an RTPReceiver on transport's DTLS transport and begins
// reading the peer's uploaded track (spec.md §4.1 produce). The transport
// must already be connected; callers (internal/roomcore) enforce that
// precondition before calling, matching spec.md §6.2 create-producer
// preconditions.
func (t *Transport) Produce(id string, kind string, params RTPParameters) (*Producer, error) {
	if !t.Connected() {
		return nil, ErrNotConnected
	}
	codecType, err := kindToCodecType(kind)
	if err != nil {
		return nil, err
	}

	receiver, err := t.router.api.NewRTPReceiver(codecType, t.dtls)
	if err != nil {
		return nil, err
	}
	if err := receiver.Receive(webrtc.RTPReceiveParameters{
		Encodings: []webrtc.RTPDecodingParameters{
			{RTPCodingParameters: webrtc.RTPCodingParameters{}},
		},
	}); err != nil {
		return nil, err
	}

	p := &Producer{
		ID:          id,
		Kind:        codecType,
		receiver:    receiver,
		router:      t.router,
		subscribers: make(map[string]*Consumer),
	}
	t.router.registerProducer(id, codecType)
	go p.forward()
	return p, nil
}

// forward reads RTP from the uploaded track and fans it out to every
// subscribed consumer, mirroring the teacher's relayTrack.readAndForward
// (buffer pooled, subscriber list snapshotted under lock before writing
// so subscribing or unsubscribing never waits on a write). Packets are
// written to the subscribers one after another on this goroutine.
func (p *Producer) forward() {
	track := p.receiver.Track()
	if track == nil {
		return
	}
	for {
		ptr := rtpBufferPool.Get().(*[]byte)
		buf := *ptr
		n, _, err := track.Read(buf)
		if err != nil {
			rtpBufferPool.Put(ptr)
			return
		}

		var pkt rtp.Packet
		if err := pkt.Unmarshal(buf[:n]); err != nil {
			rtpBufferPool.Put(ptr)
			continue
		}

		p.mu.RLock()
		consumers := make([]*Consumer, 0, len(p.subscribers))
		for _, c := range p.subscribers {
			consumers = append(consumers, c)
		}
		p.mu.RUnlock()

		for _, c := range consumers {
			c.writeRTP(&pkt)
		}
		rtpBufferPool.Put(ptr)
	}
}

func (p *Producer) addSubscriber(c *Consumer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.subscribers[c.ID] = c
}

func (p *Producer) removeSubscriber(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.subscribers, id)
}

// Close closes the producer's receiver and deregisters it from the
// router. Any consumers still subscribed are the caller's responsibility
// to close (spec.md §3 Consumer: "automatically closed if its producer
// closes"; internal/roomcore drives that fan-out). Idempotent.
func (p *Producer) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	if p.router != nil {
		p.router.unregisterProducer(p.ID)
	}
	if p.receiver != nil {
		return p.receiver.Stop()
	}
	return nil
}

func kindToCodecType(kind string) (webrtc.RTPCodecType, error) {
	switch kind {
	case "audio":
		return webrtc.RTPCodecTypeAudio, nil
	case "video":
		return webrtc.RTPCodecTypeVideo, nil
	default:
		return 0, fmt.Errorf("mediaengine: unknown kind %q", kind)
	}
}
