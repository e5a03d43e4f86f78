package mediaengine

import (
	"sync"
	"sync/atomic"

	"github.com/pion/rtp"
	"github.com/pion/webrtc/v3"
)

// Consumer is a server-side handle representing one track the SFU is
// forwarding to a peer (spec.md §3 Consumer). It begins paused and the
// media engine drops packets until Resume is called (spec.md §4.1
// consume paused=true default).
type Consumer struct {
	ID         string
	ProducerID string
	Kind       webrtc.RTPCodecType

	sender *webrtc.RTPSender
	track  *webrtc.TrackLocalStaticRTP
	paused atomic.Bool

	mu      sync.Mutex
	closed  bool
	onClose func()
}

// Consume creates an RTPSender on transport bound to a fresh local track,
// registers it as a subscriber of producer, and starts paused (spec.md
// §4.1 consume). It checks Router.CanConsume itself and returns
// ErrCannotConsume when that check fails.
func (t *Transport) Consume(id string, producer *Producer, remoteKind string) (*Consumer, error) {
	if !t.Connected() {
		return nil, ErrNotConnected
	}
	wantKind, err := kindToCodecType(remoteKind)
	if err != nil {
		return nil, err
	}
	if !t.router.CanConsume(producer.ID, wantKind) {
		return nil, ErrCannotConsume
	}

	track, err := webrtc.NewTrackLocalStaticRTP(
		webrtc.RTPCodecCapability{MimeType: mimeTypeForKind(producer.Kind)},
		producer.ID,
		id,
	)
	if err != nil {
		return nil, err
	}
	sender, err := t.router.api.NewRTPSender(track, t.dtls)
	if err != nil {
		return nil, err
	}
	if err := sender.Send(webrtc.RTPSendParameters{}); err != nil {
		return nil, err
	}

	c := &Consumer{
		ID:         id,
		ProducerID: producer.ID,
		Kind:       producer.Kind,
		sender:     sender,
		track:      track,
	}
	c.paused.Store(true)
	producer.addSubscriber(c)
	c.onClose = func() { producer.removeSubscriber(id) }
	return c, nil
}

// writeRTP forwards one packet from the producer into this consumer's
// track, unless the consumer is paused (spec.md §3 Consumer.paused).
func (c *Consumer) writeRTP(pkt *rtp.Packet) {
	if c.paused.Load() {
		return
	}
	_ = c.track.WriteRTP(pkt)
}

// Resume switches the consumer from paused to forwarding. Calling it on
// a consumer that is already forwarding has no effect; after Pause it
// resumes forwarding again.
func (c *Consumer) Resume() error {
	c.paused.Store(false)
	return nil
}

// Pause stops forwarding without closing the consumer.
func (c *Consumer) Pause() error {
	c.paused.Store(true)
	return nil
}

// Paused reports the current pause state.
func (c *Consumer) Paused() bool {
	return c.paused.Load()
}

// Close stops the sender and unsubscribes from its producer. Idempotent.
func (c *Consumer) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	onClose := c.onClose
	c.mu.Unlock()

	if onClose != nil {
		onClose()
	}
	if c.sender != nil {
		return c.sender.Stop()
	}
	return nil
}

func mimeTypeForKind(kind webrtc.RTPCodecType) string {
	if kind == webrtc.RTPCodecTypeAudio {
		return webrtc.MimeTypeOpus
	}
	return webrtc.MimeTypeVP8
}
