package mediaengine

import (
	"testing"

	"github.com/pion/webrtc/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRouterCapabilitiesCoversAllFourStaticCodecs(t *testing.T) {
	caps := RouterCapabilities()
	require.Len(t, caps, 4)

	byMime := make(map[string]RTPCodecCapability)
	for _, c := range caps {
		byMime[c.MimeType] = c
	}

	opus, ok := byMime["audio/opus"]
	require.True(t, ok)
	assert.Equal(t, "audio", opus.Kind)
	assert.Equal(t, uint32(48000), opus.ClockRate)
	assert.Equal(t, uint16(2), opus.Channels)

	for _, mime := range []string{"video/VP8", "video/VP9", "video/H264"} {
		c, ok := byMime[mime]
		require.True(t, ok, "missing %s", mime)
		assert.Equal(t, "video", c.Kind)
		assert.Equal(t, uint32(90000), c.ClockRate)
	}
}

func TestRegisterCodecsSucceedsOnFreshMediaEngine(t *testing.T) {
	m := &webrtc.MediaEngine{}
	err := registerCodecs(m)
	require.NoError(t, err)
}

func TestKindToCodecType(t *testing.T) {
	audio, err := kindToCodecType("audio")
	require.NoError(t, err)
	assert.Equal(t, webrtc.RTPCodecTypeAudio, audio)

	video, err := kindToCodecType("video")
	require.NoError(t, err)
	assert.Equal(t, webrtc.RTPCodecTypeVideo, video)

	_, err = kindToCodecType("screen")
	assert.Error(t, err)
}

func TestMimeTypeForKind(t *testing.T) {
	assert.Equal(t, webrtc.MimeTypeOpus, mimeTypeForKind(webrtc.RTPCodecTypeAudio))
	assert.Equal(t, webrtc.MimeTypeVP8, mimeTypeForKind(webrtc.RTPCodecTypeVideo))
}
