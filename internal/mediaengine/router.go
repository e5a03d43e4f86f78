package mediaengine

import (
	"sync"

	"github.com/pion/webrtc/v3"
	"go.uber.org/zap"
)

// Router is the per-room media-engine object (spec.md §3 Room.router
// handle, §4.1 create_router). It tracks the set of live producers so
// can_consume can be answered without reaching into pion internals.
type Router struct {
	roomID string
	api    *webrtc.API
	log    *zap.Logger

	mu        sync.RWMutex
	producers map[string]producerRecord
	closed    bool
}

type producerRecord struct {
	kind webrtc.RTPCodecType
}

func newRouter(roomID string, api *webrtc.API, log *zap.Logger) *Router {
	return &Router{
		roomID:    roomID,
		api:       api,
		log:       log,
		producers: make(map[string]producerRecord),
	}
}

// Capabilities returns the static router capabilities advertised on join
// (spec.md §6.2, §6.4). Identical across routers, matching one worker.
func (r *Router) Capabilities() []RTPCodecCapability {
	return RouterCapabilities()
}

// CanConsume reports whether producerID is a live producer on this
// router whose kind equals remoteKind (spec.md §4.1 can_consume). Only
// the media kind is compared: codec mime types and parameter sets are
// not, so a remote that supports, say, VP8 but not VP9 is not told
// apart from one that supports both.
func (r *Router) CanConsume(producerID string, remoteKind webrtc.RTPCodecType) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.producers[producerID]
	if !ok {
		return false
	}
	return rec.kind == remoteKind
}

func (r *Router) registerProducer(id string, kind webrtc.RTPCodecType) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.producers[id] = producerRecord{kind: kind}
}

func (r *Router) unregisterProducer(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.producers, id)
}

// Close closes the router (spec.md §4.2 remove_member: "closes the
// router and removes the Room in the same critical section"). Idempotent.
func (r *Router) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.closed = true
	r.producers = nil
	r.log.Info("router closed")
}
