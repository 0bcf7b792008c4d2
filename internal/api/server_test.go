package api

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcoot/villefarm/internal/config"
	"github.com/mcoot/villefarm/internal/testutil"
)

func TestServerConfigFrom(t *testing.T) {
	sc := ServerConfigFrom(config.Server{Host: "127.0.0.1", Port: 9090, ShutdownTimeout: 5 * time.Second})
	assert.Equal(t, "127.0.0.1", sc.Host)
	assert.Equal(t, 9090, sc.Port)
	assert.Equal(t, 5*time.Second, sc.ShutdownTimeout)
	assert.Equal(t, DefaultServerConfig().ReadHeaderTimeout, sc.ReadHeaderTimeout)

	sc = ServerConfigFrom(config.Server{Port: 8080})
	assert.Equal(t, DefaultServerConfig().ShutdownTimeout, sc.ShutdownTimeout)
}

func TestServerShutdownBeforeStart(t *testing.T) {
	s := NewServer(http.NotFoundHandler(), ServerConfig{Host: "127.0.0.1", Port: 0, ShutdownTimeout: time.Second}, testutil.NopLogger())
	assert.Equal(t, "127.0.0.1:0", s.Addr())
	require.NoError(t, s.Shutdown(context.Background()))
}
