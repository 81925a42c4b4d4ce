package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewRejectsBadLevel(t *testing.T) {
	_, err := New(Config{Level: "shout"})
	assert.Error(t, err)
}

func TestNewBuildsForEachMode(t *testing.T) {
	prod, err := New(Config{Level: "info"})
	require.NoError(t, err)
	require.NotNil(t, prod)

	dev, err := New(Config{Level: "debug", Development: true})
	require.NoError(t, err)
	require.NotNil(t, dev)
}

// Named and With must both return the wrapper type so scoped loggers chain
// and still satisfy *Logger parameters.
func TestScopedLoggersKeepWrapperType(t *testing.T) {
	var log *Logger = NewNop().Named("engine").With(zap.String("batch_id", "b-1"))
	require.NotNil(t, log)
	log.Info("ok")

	accept := func(l *Logger) {}
	accept(log.With(zap.Int("n", 1)))
}
