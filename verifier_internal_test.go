package invite

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingLogger struct {
	mu    sync.Mutex
	lines []string
}

func (l *recordingLogger) record(level, msg string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lines = append(l.lines, level+" "+msg+" "+fmt.Sprint(args...))
}

func (l *recordingLogger) Debug(msg string, args ...any) { l.record("debug", msg, args...) }
func (l *recordingLogger) Info(msg string, args ...any)  { l.record("info", msg, args...) }
func (l *recordingLogger) Warn(msg string, args ...any)  { l.record("warn", msg, args...) }
func (l *recordingLogger) Error(msg string, args ...any) { l.record("error", msg, args...) }

func TestJWKSVerifier_RefreshErrorsUseInjectedLogger(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"keys":[]}`))
	}))
	t.Cleanup(server.Close)

	logger := &recordingLogger{}
	v, err := NewJWKSVerifier([]string{server.URL}, WithVerifierLogger(logger))
	require.NoError(t, err)
	assert.Same(t, logger, v.logger)

	v.refreshErrorHandler(errors.New("jwks unreachable"))

	require.Len(t, logger.lines, 1)
	assert.Contains(t, logger.lines[0], "warn failed to do a background refresh of JWT set")
	assert.Contains(t, logger.lines[0], "jwks unreachable")
}

func TestVerifierLogger_NilFallsBackToDefault(t *testing.T) {
	v := NewHMACVerifier([]byte("secret"), WithVerifierLogger(nil))
	assert.Equal(t, defLogger{}, v.logger)
}
