package exception

import (
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/yanun0323/errors"
)

func TestSentinelsSurviveWrapping(t *testing.T) {
	sentinels := []error{
		ErrConnectionClose,
		ErrMaxReconnectRetries,
		ErrStreamDisconnected,
		ErrQueueFull,
		ErrQueueClosed,
		ErrUnexpectedStatusCode,
		ErrUnknownSymbol,
		ErrInvalidConfig,
	}
	for _, s := range sentinels {
		wrapped := errors.Wrapf(errors.Wrap(s, "inner"), "outer %d", 1)
		assert.True(t, stderrors.Is(wrapped, s), s.Error())
	}
}
