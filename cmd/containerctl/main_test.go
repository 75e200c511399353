package main

import (
	"bytes"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/FairForge/containerdispatch/internal/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runCmd(args ...string) (int, string, string) {
	var stdout, stderr bytes.Buffer
	code := run(args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func noConfig(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "absent.yaml")
}

func TestRun_Usage(t *testing.T) {
	code, _, stderr := runCmd()
	assert.Equal(t, 2, code)
	assert.Contains(t, stderr, "usage: containerctl")

	code, _, stderr = runCmd("launch")
	assert.Equal(t, 2, code)
	assert.Contains(t, stderr, `unknown command "launch"`)

	code, stdout, _ := runCmd("help")
	assert.Equal(t, 0, code)
	assert.Contains(t, stdout, "keygen")
}

func TestKeygen(t *testing.T) {
	t.Run("to file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "chacha.key")
		code, stdout, stderr := runCmd("keygen", "-out", path)
		require.Equal(t, 0, code, stderr)
		assert.Contains(t, stdout, path)

		key, err := crypto.LoadKeyFile(path)
		require.NoError(t, err)
		assert.Len(t, key, crypto.KeySize)

		info, err := os.Stat(path)
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
	})

	t.Run("refuses to overwrite", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "aes.key")
		require.Equal(t, 0, run([]string{"keygen", "-out", path}, io.Discard, io.Discard))
		code, _, stderr := runCmd("keygen", "-out", path)
		assert.Equal(t, 1, code)
		assert.NotEmpty(t, stderr)
	})

	t.Run("to stdout", func(t *testing.T) {
		code, stdout, _ := runCmd("keygen")
		require.Equal(t, 0, code)
		assert.Len(t, strings.TrimSpace(stdout), 64)
	})
}

func pointRESTAt(t *testing.T, server *httptest.Server) {
	t.Helper()
	u, err := url.Parse(server.URL)
	require.NoError(t, err)
	host, port, err := net.SplitHostPort(u.Host)
	require.NoError(t, err)
	t.Setenv("CONTAINERCTL_REST_HOST", host)
	t.Setenv("CONTAINERCTL_REST_PORT", port)
	t.Setenv("CONTAINERCTL_LOG_LEVEL", "error")
}

func TestSend_REST(t *testing.T) {
	bodies := make(chan []byte, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		bodies <- b
		_, _ = w.Write([]byte(`{"status":"success","message":"Request received and will be processed."}`))
	}))
	defer server.Close()
	pointRESTAt(t, server)

	code, stdout, stderr := runCmd("send", "-config", noConfig(t),
		"-runtime", "podman", "-operation", "create", "-name", "cache",
		"-cpus", "1.5", "-memory", "256m", "-pids", "64", "-restart", "on-failure", "-image", "redis:7")
	require.Equal(t, 0, code, stderr)

	var out map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(stdout), &out))
	assert.Equal(t, "delivered", out["state"])
	assert.Equal(t, "rest", out["transport"])
	assert.NotEmpty(t, out["request_id"])

	assert.JSONEq(t,
		`{"runtime":"podman","operation":"create","parameters":[{"container_name":"cache","cpus":"1.5","memory":"256","pids":"64","restart_policy":"on-failure","image_name":"redis:7"}]}`,
		string(<-bodies))
}

func TestSend_Encrypted(t *testing.T) {
	keyPath := filepath.Join(t.TempDir(), "aes.key")
	require.NoError(t, crypto.WriteKeyFile(keyPath))
	t.Setenv("CONTAINERCTL_AES_KEY_FILE", keyPath)

	bodies := make(chan []byte, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/octet-stream", r.Header.Get("Content-Type"))
		b, _ := io.ReadAll(r.Body)
		bodies <- b
	}))
	defer server.Close()
	pointRESTAt(t, server)

	code, _, stderr := runCmd("send", "-config", noConfig(t), "-operation", "stop", "-name", "web", "-encrypt", "aes", "-format", "proto")
	require.Equal(t, 0, code, stderr)

	key, err := crypto.LoadKeyFile(keyPath)
	require.NoError(t, err)
	keys, err := crypto.NewStaticKeyStore(map[crypto.Algorithm][]byte{crypto.AlgorithmAES256GCM: key})
	require.NoError(t, err)
	_, err = crypto.NewBox(keys).Open(<-bodies, crypto.AlgorithmAES256GCM)
	assert.NoError(t, err)
}

func TestSend_Failures(t *testing.T) {
	t.Setenv("CONTAINERCTL_LOG_LEVEL", "error")

	t.Run("invalid field", func(t *testing.T) {
		code, stdout, _ := runCmd("send", "-config", noConfig(t), "-runtime", "rkt", "-operation", "start")
		assert.Equal(t, 1, code)
		assert.Contains(t, stdout, `"kind": "validation"`)
	})

	t.Run("missing key", func(t *testing.T) {
		code, stdout, _ := runCmd("send", "-config", noConfig(t), "-operation", "start", "-encrypt", "chacha20poly1305")
		assert.Equal(t, 1, code)
		assert.Contains(t, stdout, `"kind": "key_not_found"`)
	})

	t.Run("bad transport flag", func(t *testing.T) {
		code, _, stderr := runCmd("send", "-config", noConfig(t), "-transport", "smoke-signal")
		assert.Equal(t, 1, code)
		assert.Contains(t, stderr, "unsupported transport")
	})

	t.Run("unknown flag", func(t *testing.T) {
		code, _, _ := runCmd("send", "-colour", "blue")
		assert.Equal(t, 1, code)
	})
}
