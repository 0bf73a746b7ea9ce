package main

import (
	"bytes"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"testing"

	"galleryvault/internal/config"
	"galleryvault/internal/services"
	"galleryvault/internal/testsupport"
	"galleryvault/internal/transport"
)

type cliTestEnv struct {
	cfg        *config.Config
	configPath string
	stub       *testsupport.StubProvider
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	base := t.TempDir()
	homeDir := filepath.Join(base, "home")
	if err := os.MkdirAll(homeDir, 0o755); err != nil {
		t.Fatalf("mkdir home: %v", err)
	}
	t.Setenv("HOME", homeDir)
	t.Setenv("GALLERYVAULT_API_TOKEN", "")
	t.Setenv("GALLERYVAULT_NTFY_TOPIC", "")

	cfg := testsupport.NewConfig(t)
	cfg.Paths.APIBind = reserveAddress(t)
	configPath := filepath.Join(base, "config.toml")
	writeTestConfig(t, configPath, cfg)

	return &cliTestEnv{
		cfg:        cfg,
		configPath: configPath,
		stub:       testsupport.NewStubProvider("stub"),
	}
}

func (env *cliTestEnv) serviceOptions() []services.Option {
	return []services.Option{
		services.WithProviders(env.stub.Registration()),
		services.WithTransfers(map[string]transport.Transfer{}),
	}
}

func runCLI(t *testing.T, env *cliTestEnv, args ...string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand(env.serviceOptions()...)
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(append([]string{"--config", env.configPath}, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	content := fmt.Sprintf(
		"[paths]\narchive_dir = %q\ntorrent_dir = %q\nstate_dir = %q\nlog_dir = %q\napi_bind = %q\napi_token = %q\nmin_free_gib = 0\n\n[crawl]\nwait_seconds = 0\n",
		cfg.Paths.ArchiveDir,
		cfg.Paths.TorrentDir,
		cfg.Paths.StateDir,
		cfg.Paths.LogDir,
		cfg.Paths.APIBind,
		cfg.Paths.APIToken,
	)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

// reserveAddress returns a loopback address that was free a moment ago.
func reserveAddress(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	ln.Close()
	return addr
}
