package health_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/slowdrip-api/internal/health"
)

func TestReadinessAfterShutdown(t *testing.T) {
	handler := health.Handler{Probes: []health.Probe{health.PostgresProbe(pinger{})}}
	t.Cleanup(func() { health.SetReady(true) })

	health.SetReady(true)
	code, _ := ready(t, handler)
	require.Equal(t, http.StatusOK, code)

	health.SetReady(false)
	code, body := ready(t, handler)
	require.Equal(t, http.StatusServiceUnavailable, code)
	require.Equal(t, "draining", body["server"])
}
