// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package agentconfig

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromJSON(t *testing.T) {
	doc, err := FromJSON([]byte("  {\n \"mcpServers\": {\"fs\": {\"command\": \"npx\"}}\n}\n"))
	require.NoError(t, err)
	assert.Equal(t, `{"mcpServers":{"fs":{"command":"npx"}}}`, string(doc))

	_, err = FromJSON([]byte(`[1,2]`))
	assert.ErrorIs(t, err, ErrNotObject)

	_, err = FromJSON([]byte(`{"a":`))
	assert.Error(t, err)
}

func TestFromYAML(t *testing.T) {
	src := `
mcpServers:
  filesystem:
    command: npx
    args: ["-y", "@modelcontextprotocol/server-filesystem", "/tmp"]
    env:
      DEBUG: true
  ports:
    8080: web
model: gpt-4o
`
	doc, err := FromYAML([]byte(src))
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"mcpServers": {
			"filesystem": {
				"command": "npx",
				"args": ["-y", "@modelcontextprotocol/server-filesystem", "/tmp"],
				"env": {"DEBUG": true}
			},
			"ports": {"8080": "web"}
		},
		"model": "gpt-4o"
	}`, string(doc))
}

func TestFromYAMLRejectsNonObject(t *testing.T) {
	_, err := FromYAML([]byte("- a\n- b\n"))
	assert.ErrorIs(t, err, ErrNotObject)

	_, err = FromYAML([]byte("key: [unclosed"))
	assert.Error(t, err)
}

func TestLoadByExtension(t *testing.T) {
	dir := t.TempDir()
	yml := filepath.Join(dir, "agent.yml")
	require.NoError(t, os.WriteFile(yml, []byte("a: 1\n"), 0o600))
	doc, err := Load(yml)
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":1}`, string(doc))

	js := filepath.Join(dir, "agent.json")
	require.NoError(t, os.WriteFile(js, []byte(`{"a": 2}`), 0o600))
	doc, err = Load(js)
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":2}`, string(doc))

	_, err = Load(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)
}

func TestWatcherFiresOnChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "agent.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"v":0}`), 0o600))

	var mu sync.Mutex
	var docs []string
	var errs []error
	w := NewWatcher(path, 20*time.Millisecond, func(_ context.Context, doc []byte) error {
		mu.Lock()
		docs = append(docs, string(doc))
		mu.Unlock()
		return nil
	})
	w.OnError(func(err error) {
		mu.Lock()
		errs = append(errs, err)
		mu.Unlock()
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	// Give the watcher time to register before writing.
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.json"), []byte(`{}`), 0o600))
	require.NoError(t, os.WriteFile(path, []byte(`{"v":1}`), 0o600))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(docs) > 0 && docs[len(docs)-1] == `{"v":1}`
	}, 3*time.Second, 10*time.Millisecond)

	require.NoError(t, os.WriteFile(path, []byte(`not json`), 0o600))
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(errs) > 0
	}, 3*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("watcher did not stop")
	}

	mu.Lock()
	defer mu.Unlock()
	for _, d := range docs {
		assert.NotContains(t, d, "{}", "unrelated file must not trigger")
	}
}
