package testutil

import (
	"testing"

	"github.com/sirupsen/logrus"
)

type testWriter struct {
	t *testing.T
}

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Log(string(p))
	return len(p), nil
}

// TestLogger returns a logger which writes through t.Log so output is
// attributed to the test that produced it.
func TestLogger(t *testing.T) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(testWriter{t})
	logger.SetLevel(logrus.DebugLevel)
	return logger
}
