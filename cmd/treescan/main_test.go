package main

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rehla/internal/tree/models"
	"rehla/pkg/testutil"
)

type result struct {
	stdout string
	stderr string
	err    error
}

func execute(t *testing.T, stdin string, args ...string) result {
	t.Helper()
	var stdout, stderr bytes.Buffer
	root := newRootCmd()
	root.SetArgs(args)
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetIn(strings.NewReader(stdin))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err := root.ExecuteContext(ctx)
	return result{stdout: stdout.String(), stderr: stderr.String(), err: err}
}

func TestResolve(t *testing.T) {
	t.Run("tag url", func(t *testing.T) {
		res := execute(t, "", "resolve", "https://rehla-trees-planting.com/00042")
		require.NoError(t, res.err)
		assert.Equal(t, "00042\n", res.stdout)
		assert.Empty(t, res.stderr)
	})

	t.Run("unexpected host warns", func(t *testing.T) {
		res := execute(t, "", "resolve", "https://example.org/trees/ABC123")
		require.NoError(t, res.err)
		assert.Equal(t, "ABC123\n", res.stdout)
		assert.Contains(t, res.stderr, "tag points at example.org")
	})

	t.Run("json", func(t *testing.T) {
		res := execute(t, "", "resolve", "--json", "00042")
		require.NoError(t, res.err)
		var got map[string]any
		require.NoError(t, json.Unmarshal([]byte(res.stdout), &got))
		assert.Equal(t, "00042", got["serial"])
		assert.Equal(t, false, got["is_url"])
	})

	t.Run("payload required", func(t *testing.T) {
		assert.Error(t, execute(t, "", "resolve").err)
	})
}

func TestEncodeThenScan(t *testing.T) {
	frames := t.TempDir()
	rear := filepath.Join(frames, "rear-main")

	res := execute(t, "", "encode", "TREE-7", "-o", filepath.Join(rear, "frame-1.png"))
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "https://rehla-trees-planting.com/TREE-7")
	require.NoError(t, os.MkdirAll(filepath.Join(frames, "front"), 0o755))

	res = execute(t, "", "devices", "--frames", frames)
	require.NoError(t, res.err)
	lines := strings.Split(strings.TrimSpace(res.stdout), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "rear-main\trear"))

	res = execute(t, "", "scan", "--frames", frames)
	require.NoError(t, res.err)
	assert.Equal(t, "TREE-7\n", res.stdout)
}

func TestScanWithoutCameras(t *testing.T) {
	res := execute(t, "", "scan", "--frames", filepath.Join(t.TempDir(), "none"))
	require.Error(t, res.err)
}

// fakeCMS serves just enough of the CMS REST API for the CLI.
type fakeCMS struct {
	token   string
	created []map[string]any
}

func (f *fakeCMS) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/auth/local", func(w http.ResponseWriter, r *http.Request) {
		var body struct{ Identifier, Password string }
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body.Password != "secret" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":{"status":400,"name":"ValidationError","message":"Invalid identifier or password"}}`))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"jwt":  f.token,
			"user": map[string]any{"id": 7, "username": body.Identifier, "email": "planter@example.org"},
		})
	})
	mux.HandleFunc("POST /api/upload", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer "+f.token, r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`[{"id":11,"name":"leaf.png","url":"/uploads/leaf.png","mime":"image/png","size":1}]`))
	})
	mux.HandleFunc("POST /api/trees", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Data map[string]any `json:"data"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		f.created = append(f.created, body.Data)
		_, _ = w.Write([]byte(`{"data":{"id":5,"attributes":{"serial_number":"ABC123","species":"Ghaf",
			"photos":{"data":[{"id":11,"attributes":{"name":"leaf.png","url":"/uploads/leaf.png","mime":"image/png"}}]}}}}`))
	})
	mux.HandleFunc("GET /api/trees", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("filters[serial_number][$eq]") != "ABC123" {
			_, _ = w.Write([]byte(`{"data":[]}`))
			return
		}
		_, _ = w.Write([]byte(`{"data":[{"id":5,"attributes":{"serial_number":"ABC123","species":"Ghaf","photos":{"data":[]}}}]}`))
	})
	return mux
}

func pngFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "leaf.png")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, image.NewGray(image.Rect(0, 0, 4, 4))))
	require.NoError(t, f.Close())
	return path
}

func TestSessionLifecycleAndSubmit(t *testing.T) {
	cms := &fakeCMS{token: testutil.CMSToken(t, "cms-secret", 7, time.Hour)}
	srv := httptest.NewServer(cms.handler(t))
	defer srv.Close()

	sessionFile := filepath.Join(t.TempDir(), "session.json")
	common := []string{"--cms-url", srv.URL, "--session-file", sessionFile}
	run := func(stdin string, args ...string) result {
		return execute(t, stdin, append(common, args...)...)
	}

	res := run("", "submit", "ABC123")
	require.Error(t, res.err, "submit needs a session")

	res = run("", "whoami")
	require.NoError(t, res.err)
	assert.Equal(t, "not logged in\n", res.stdout)

	res = run("wrong\n", "login", "-u", "planter")
	require.Error(t, res.err)
	assert.NoFileExists(t, sessionFile)

	res = run("secret\n", "login", "-u", "planter")
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "logged in as planter")
	assert.FileExists(t, sessionFile)

	res = run("", "whoami")
	require.NoError(t, res.err)
	assert.Equal(t, "planter <planter@example.org>\n", res.stdout)

	res = run("", "submit",
		"--payload", "https://rehla-trees-planting.com/ABC123",
		"--species", "Ghaf",
		"--lat", "24.45", "--lon", "54.38",
		"--photo", pngFile(t),
	)
	require.NoError(t, res.err)
	var tree models.Tree
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &tree))
	assert.Equal(t, 5, tree.ID)
	require.Len(t, tree.Photos, 1)
	assert.Equal(t, srv.URL+"/uploads/leaf.png", tree.Photos[0].URL)

	require.Len(t, cms.created, 1)
	assert.Equal(t, "ABC123", cms.created[0]["serial_number"])
	assert.Equal(t, []any{float64(11)}, cms.created[0]["photos"])

	res = run("", "submit", "ABC123", "--lat", "24.45")
	require.Error(t, res.err, "latitude without longitude")
	assert.Len(t, cms.created, 1)

	res = run("", "logout")
	require.NoError(t, res.err)
	assert.NoFileExists(t, sessionFile)
}

func TestProfile(t *testing.T) {
	cms := &fakeCMS{}
	srv := httptest.NewServer(cms.handler(t))
	defer srv.Close()

	res := execute(t, "", "--cms-url", srv.URL, "profile", "https://rehla-trees-planting.com/ABC123")
	require.NoError(t, res.err)
	var tree models.Tree
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &tree))
	assert.Equal(t, "Ghaf", tree.Species)

	res = execute(t, "", "--cms-url", srv.URL, "profile", "NOPE")
	require.Error(t, res.err)
}
