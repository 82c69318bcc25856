package server

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calibot/assistant-relay/pkg/relay"
)

func storelessConfig() *relay.Config {
	cfg := &relay.Config{}
	cfg.Assistant.APIKey = "test-key"
	cfg.Assistant.AssistantID = "asst_test"
	return cfg
}

func TestNew_StorelessAssembly(t *testing.T) {
	srv, err := New(storelessConfig(), nil)
	require.NoError(t, err)
	defer func() { _ = srv.Close() }()

	require.NotNil(t, srv.Manager)
	require.NotNil(t, srv.Gate)
	require.NotNil(t, srv.Health)

	// Without a database the checker must still report ready.
	assert.True(t, srv.Health.IsReady(context.Background()))
	assert.Equal(t, "ready", srv.Health.State())
}

func TestVersion(t *testing.T) {
	// Version should be set to "dev" by default
	if Version != "dev" {
		t.Errorf("expected Version 'dev', got %q", Version)
	}
}

func TestServer_CloseIsDraining(t *testing.T) {
	srv, err := New(storelessConfig(), nil)
	require.NoError(t, err)

	require.NoError(t, srv.Close())
	assert.Equal(t, "draining", srv.Health.State())
	assert.False(t, srv.Health.IsReady(context.Background()))

	// Close twice is harmless.
	require.NoError(t, srv.Close())
}

func TestServer_GateRefresh(t *testing.T) {
	cfg := storelessConfig()
	cfg.Access.AllowedRoles = []string{"Beta"}

	srv, err := New(cfg, nil)
	require.NoError(t, err)
	defer func() { _ = srv.Close() }()

	assert.True(t, srv.Gate.Allowed([]string{"Beta"}))
	assert.False(t, srv.Gate.Allowed([]string{"Relay"}))

	srv.Gate.SetBotRoles([]string{"Relay"})
	assert.True(t, srv.Gate.Allowed([]string{"Relay"}))
}

func TestServer_ManagerHandlesMessageStoreless(t *testing.T) {
	srv, err := New(storelessConfig(), nil)
	require.NoError(t, err)
	defer func() { _ = srv.Close() }()

	// The assistant backend is unreachable in tests; an empty message never
	// reaches it and exercises the full gate-and-reply path.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	out, err := srv.Manager.HandleInbound(ctx, relay.Inbound{
		UserID: "u1",
		Roles:  []string{"Admin"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{relay.MsgEmptyMessage}, out.Replies)
}
