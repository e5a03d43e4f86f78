package mediaengine

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func zapNop() *zap.Logger {
	return zap.NewNop()
}

func TestSentinelErrorsAreDistinct(t *testing.T) {
	sentinels := []error{
		ErrAlreadyConnected,
		ErrNotConnected,
		ErrCannotConsume,
		ErrUnknownProducer,
		ErrUnknownTransport,
		ErrWorkerNotRunning,
	}
	for i, a := range sentinels {
		for j, b := range sentinels {
			if i == j {
				continue
			}
			assert.False(t, errors.Is(a, b), "sentinel %d and %d must not compare equal", i, j)
		}
	}
}
