package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/plantlog/internal/config"
	"github.com/conneroisu/plantlog/internal/logging"
)

func memoryConfig(t *testing.T, settings map[string]any) *viper.Viper {
	t.Helper()
	v := viper.New()
	v.Set("store.driver", config.DriverMemory)
	v.Set("server.port", 0)
	v.Set("server.host", "127.0.0.1")
	for k, val := range settings {
		v.Set(k, val)
	}
	return v
}

func TestBindFlags(t *testing.T) {
	fs := pflag.NewFlagSet("serve", pflag.ContinueOnError)
	addServeFlags(fs)

	v := viper.New()
	require.NoError(t, bindFlags(v, fs, serveFlagKeys))
	require.NoError(t, fs.Parse([]string{"--port", "9000", "--store-driver", "sqlite", "--store-path", "garden.db"}))

	cfg, err := config.LoadFrom(v)
	require.NoError(t, err)
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, config.DriverSQLite, cfg.Store.Driver)
	assert.Equal(t, "garden.db", cfg.Store.Path)
	assert.Equal(t, "localhost", cfg.Server.Host, "unset flags fall back to defaults")

	err = bindFlags(viper.New(), fs, map[string]string{"server.port": "no-such-flag"})
	assert.ErrorContains(t, err, "--no-such-flag")
}

func TestOpenStore(t *testing.T) {
	ctx := context.Background()

	st, err := openStore(ctx, config.StoreConfig{Driver: config.DriverMemory}, nil)
	require.NoError(t, err)
	require.NoError(t, st.Ping(ctx))
	require.NoError(t, st.Close(ctx))

	path := filepath.Join(t.TempDir(), "plants.db")
	st, err = openStore(ctx, config.StoreConfig{Driver: config.DriverSQLite, Path: path}, nil)
	require.NoError(t, err)
	require.NoError(t, st.Close(ctx))
	assert.FileExists(t, path)

	_, err = openStore(ctx, config.StoreConfig{Driver: "redis"}, nil)
	assert.ErrorContains(t, err, `unknown store driver "redis"`)
}

func TestWriteConfig(t *testing.T) {
	cfg, err := config.LoadFrom(viper.New())
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, writeConfig(&buf, cfg, "yaml"))
	assert.Contains(t, buf.String(), "driver: mongo")
	assert.Contains(t, buf.String(), "database: plantsDatabase")
	assert.Contains(t, buf.String(), "shutdown_timeout: 10s")

	buf.Reset()
	require.NoError(t, writeConfig(&buf, cfg, "json"))
	var decoded map[string]map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "mongo", decoded["store"]["driver"])
	assert.Equal(t, float64(8080), decoded["server"]["port"])

	assert.Error(t, writeConfig(io.Discard, cfg, "toml"))
}

func TestValidateWith(t *testing.T) {
	tests := []struct {
		name     string
		settings map[string]any
		strict   bool
		wantErr  bool
		output   string
	}{
		{
			name:     "valid",
			settings: map[string]any{"store.driver": config.DriverSQLite},
			output:   "Configuration is valid.",
		},
		{
			name:     "warning passes",
			settings: map[string]any{"store.driver": config.DriverMemory},
			output:   "memory driver loses all data on exit",
		},
		{
			name:     "warning fails in strict mode",
			settings: map[string]any{"store.driver": config.DriverMemory},
			strict:   true,
			wantErr:  true,
		},
		{
			name:     "unknown driver",
			settings: map[string]any{"store.driver": "redis"},
			wantErr:  true,
			output:   "supported drivers: mongo, sqlite, memory",
		},
		{
			name:     "hot reload without templates dir",
			settings: map[string]any{"store.driver": config.DriverSQLite, "development.hot_reload": true},
			wantErr:  true,
			output:   "development.hot_reload",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := viper.New()
			for k, val := range tt.settings {
				v.Set(k, val)
			}
			var buf bytes.Buffer
			err := validateWith(&buf, v, tt.strict)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			assert.Contains(t, buf.String(), tt.output)
		})
	}
}

func TestConfigValidateFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plantlog.yml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 70000\nstore:\n  driver: sqlite\n"), 0o600))

	configFile = path
	defer func() { configFile = "" }()

	var buf bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&buf)
	err := runConfigValidate(cmd, nil)
	assert.Error(t, err)
	assert.Contains(t, buf.String(), "server.port")

	configFile = filepath.Join(t.TempDir(), "missing.yml")
	assert.Error(t, runConfigValidate(cmd, nil))
}

func TestDiagnose(t *testing.T) {
	t.Run("all checks pass", func(t *testing.T) {
		results := diagnose(context.Background(), memoryConfig(t, nil), time.Second)
		require.Len(t, results, 3)

		var buf bytes.Buffer
		require.NoError(t, printResults(&buf, results))
		for _, name := range []string{"configuration", "store", "templates"} {
			assert.Contains(t, buf.String(), name)
		}
		assert.NotContains(t, buf.String(), "FAIL")
	})

	t.Run("sqlite store", func(t *testing.T) {
		v := memoryConfig(t, map[string]any{
			"store.driver": config.DriverSQLite,
			"store.path":   filepath.Join(t.TempDir(), "plants.db"),
		})
		results := diagnose(context.Background(), v, time.Second)
		require.Len(t, results, 3)
		assert.True(t, results[1].OK, results[1].Detail)
		assert.Contains(t, results[1].Detail, "0 plant(s)")
	})

	t.Run("missing templates dir fails", func(t *testing.T) {
		v := memoryConfig(t, map[string]any{"templates.dir": filepath.Join(t.TempDir(), "nope")})
		results := diagnose(context.Background(), v, time.Second)
		require.Len(t, results, 3)
		assert.False(t, results[2].OK)

		var buf bytes.Buffer
		assert.ErrorContains(t, printResults(&buf, results), "1 of 3 checks failed")
		assert.Contains(t, buf.String(), "FAIL")
	})

	t.Run("invalid configuration stops early", func(t *testing.T) {
		results := diagnose(context.Background(), memoryConfig(t, map[string]any{"store.driver": "redis"}), time.Second)
		require.Len(t, results, 1)
		assert.False(t, results[0].OK)
	})
}

func TestWriteVersion(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeVersion(&buf, "text", false))
	assert.True(t, strings.HasPrefix(buf.String(), "plantlog "))
	assert.Contains(t, buf.String(), "Platform:")

	buf.Reset()
	require.NoError(t, writeVersion(&buf, "text", true))
	assert.NotContains(t, buf.String(), "Platform:")

	buf.Reset()
	require.NoError(t, writeVersion(&buf, "json", false))
	var info map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &info))
	assert.Contains(t, info, "version")
	assert.Contains(t, info, "go_version")

	assert.Error(t, writeVersion(io.Discard, "xml", false))
}

func TestNewLogger_FallsBackToInfo(t *testing.T) {
	assert.NotNil(t, newLogger(config.LogConfig{Level: "loud", Format: "json"}))
}

// startServe runs serve in the background and returns the bound address.
func startServe(t *testing.T, v *viper.Viper) (string, context.CancelFunc, <-chan error) {
	t.Helper()
	cfg, err := config.LoadFrom(v)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	addrs := make(chan string, 1)
	done := make(chan error, 1)
	go func() {
		done <- serve(ctx, cfg, logging.NewNopLogger(), func(addr string) { addrs <- addr })
	}()

	select {
	case addr := <-addrs:
		return addr, cancel, done
	case err := <-done:
		cancel()
		t.Fatalf("serve exited early: %v", err)
	case <-time.After(5 * time.Second):
		cancel()
		t.Fatal("serve did not start")
	}
	return "", cancel, done
}

func waitStopped(t *testing.T, cancel context.CancelFunc, done <-chan error) {
	t.Helper()
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not stop")
	}
}

func TestServe_GracefulShutdown(t *testing.T) {
	addr, cancel, done := startServe(t, memoryConfig(t, nil))

	resp, err := http.Get("http://" + addr + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	waitStopped(t, cancel, done)

	_, err = http.Get("http://" + addr + "/healthz")
	assert.Error(t, err)
}

func TestServe_BadStore(t *testing.T) {
	cfg, err := config.LoadFrom(memoryConfig(t, map[string]any{
		"store.driver": config.DriverSQLite,
		"store.path":   t.TempDir(),
	}))
	require.NoError(t, err)

	err = serve(context.Background(), cfg, logging.NewNopLogger(), nil)
	assert.ErrorContains(t, err, "opening sqlite store")
}

func copyTemplates(t *testing.T) string {
	t.Helper()
	src := filepath.Join("..", "internal", "renderer", "templates")
	dst := t.TempDir()
	entries, err := os.ReadDir(src)
	require.NoError(t, err)
	for _, e := range entries {
		data, err := os.ReadFile(filepath.Join(src, e.Name()))
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(filepath.Join(dst, e.Name()), data, 0o600))
	}
	return dst
}

func TestServe_HotReload(t *testing.T) {
	dir := copyTemplates(t)
	addr, cancel, done := startServe(t, memoryConfig(t, map[string]any{
		"templates.dir":          dir,
		"development.hot_reload": true,
	}))
	defer waitStopped(t, cancel, done)

	ctx, ctxCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer ctxCancel()

	conn, _, err := websocket.Dial(ctx, "ws://"+addr+"/ws", nil)
	require.NoError(t, err)
	defer conn.CloseNow()

	// Give the hub a moment to register the client before the change lands.
	time.Sleep(100 * time.Millisecond)

	about := filepath.Join(dir, "about.html")
	page := `{{define "title"}}About{{end}}{{define "content"}}<h1>Hot reloaded</h1>{{end}}`
	require.NoError(t, os.WriteFile(about, []byte(page), 0o600))

	_, msg, err := conn.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, "reload", string(msg))

	resp, err := http.Get("http://" + addr + "/about")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Contains(t, string(body), "Hot reloaded")
}
