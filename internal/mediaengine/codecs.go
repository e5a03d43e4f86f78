package mediaengine

import (
	"github.com/pion/webrtc/v3"
)

// RTPCodecCapability mirrors a single entry of the router's advertised
// codec capabilities (spec.md §6.4). Kept independent of webrtc.RTPCodecCapability
// so that internal/roomcore never imports pion types directly.
type RTPCodecCapability struct {
	Kind         string // "audio" or "video"
	MimeType     string
	ClockRate    uint32
	Channels     uint16
	SDPFmtpLine  string
	StartBitrate uint32 // kbps, informational only, advertised in the router capabilities
}

// RouterCapabilities is the fixed codec list advertised to every peer on
// join (spec.md §6.2 video-room-joined.routerCapabilities, §6.4).
func RouterCapabilities() []RTPCodecCapability {
	return []RTPCodecCapability{
		{
			Kind:      "audio",
			MimeType:  webrtc.MimeTypeOpus,
			ClockRate: 48000,
			Channels:  2,
		},
		{
			Kind:         "video",
			MimeType:     webrtc.MimeTypeVP8,
			ClockRate:    90000,
			StartBitrate: 1000,
		},
		{
			Kind:         "video",
			MimeType:     webrtc.MimeTypeVP9,
			ClockRate:    90000,
			SDPFmtpLine:  "profile-id=2",
			StartBitrate: 1000,
		},
		{
			Kind:         "video",
			MimeType:     webrtc.MimeTypeH264,
			ClockRate:    90000,
			SDPFmtpLine:  "packetization-mode=1;profile-level-id=4d0032;level-asymmetry-allowed=1",
			StartBitrate: 1000,
		},
	}
}

// registerCodecs installs the static codec list (spec.md §6.4) into a
// pion MediaEngine, matching every Worker to the same router capabilities.
func registerCodecs(m *webrtc.MediaEngine) error {
	if err := m.RegisterCodec(webrtc.RTPCodecParameters{
		RTPCodecCapability: webrtc.RTPCodecCapability{
			MimeType:  webrtc.MimeTypeOpus,
			ClockRate: 48000,
			Channels:  2,
		},
		PayloadType: 111,
	}, webrtc.RTPCodecTypeAudio); err != nil {
		return err
	}

	videoCodecs := []webrtc.RTPCodecParameters{
		{
			RTPCodecCapability: webrtc.RTPCodecCapability{
				MimeType:  webrtc.MimeTypeVP8,
				ClockRate: 90000,
			},
			PayloadType: 96,
		},
		{
			RTPCodecCapability: webrtc.RTPCodecCapability{
				MimeType:    webrtc.MimeTypeVP9,
				ClockRate:   90000,
				SDPFmtpLine: "profile-id=2",
			},
			PayloadType: 98,
		},
		{
			RTPCodecCapability: webrtc.RTPCodecCapability{
				MimeType:    webrtc.MimeTypeH264,
				ClockRate:   90000,
				SDPFmtpLine: "packetization-mode=1;profile-level-id=4d0032;level-asymmetry-allowed=1",
			},
			PayloadType: 102,
		},
	}
	for _, c := range videoCodecs {
		if err := m.RegisterCodec(c, webrtc.RTPCodecTypeVideo); err != nil {
			return err
		}
	}
	return nil
}
