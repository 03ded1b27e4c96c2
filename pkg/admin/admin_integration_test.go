//go:build !windows

package admin

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/eslym/troupe/pkg/config"
	"github.com/eslym/troupe/pkg/console"
	"github.com/eslym/troupe/pkg/manifest"
	"github.com/eslym/troupe/pkg/supervisor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestAdminServer_Integration drives a real supervisor through the admin API
func TestAdminServer_Integration(t *testing.T) {
	cons := console.NewConsole(io.Discard)
	sup := supervisor.NewSupervisor(supervisor.Options{
		Console:    cons,
		Palette:    console.NewPalette(false),
		Terminator: supervisor.TreeTerminator{},
		Signals:    make(chan os.Signal, 1),
	})

	runErr := make(chan error, 1)
	go func() {
		runErr <- sup.Run(context.Background(), []manifest.Entry{
			{Name: "sleeper", Command: "exec sleep 30"},
		})
	}()

	require.Eventually(t, func() bool {
		p, ok := sup.GetProcess("sleeper")
		return ok && p.Alive()
	}, 5*time.Second, 10*time.Millisecond)

	adminCfg := &config.AdminEntry{Host: "127.0.0.1", Port: 0}
	server := NewAdminServer(context.Background(), sup, cons, adminCfg, false)
	require.NoError(t, server.Start())
	defer server.Stop()
	base := "http://" + server.Addr()

	t.Run("Process", func(t *testing.T) {
		resp, err := http.Get(base + "/process/sleeper")
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var data map[string]any
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&data))
		assert.Equal(t, "running", data["status"])
		assert.NotZero(t, data["pid"])
		assert.Contains(t, data, "resource")
	})

	t.Run("Shutdown", func(t *testing.T) {
		resp, err := http.Post(base+"/shutdown", "application/json", nil)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		select {
		case err := <-runErr:
			assert.NoError(t, err)
		case <-time.After(10 * time.Second):
			t.Fatal("supervisor did not terminate after /shutdown")
		}
		assert.Equal(t, supervisor.StateTerminated, sup.State())
	})
}
