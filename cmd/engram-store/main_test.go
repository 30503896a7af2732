package main

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thebtf/engram-storage/internal/config"
	"github.com/thebtf/engram-storage/internal/db/factory"
	"github.com/thebtf/engram-storage/pkg/models"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func seed(t *testing.T, dataDir string) {
	t.Helper()
	ctx := context.Background()
	store, err := factory.New(factory.Options{Adapter: "file", DataDir: dataDir})
	require.NoError(t, err)
	require.NoError(t, store.Initialize(ctx))
	defer store.Close()

	id, err := store.CreateSDKSession(ctx, "abc-1", "demo", "hello")
	require.NoError(t, err)
	_, err = store.SaveUserPrompt(ctx, "abc-1", 1, "hello")
	require.NoError(t, err)
	_, err = store.EnqueuePendingMessage(ctx, &models.PendingMessage{
		SessionDBID:      id,
		ContentSessionID: "abc-1",
		MessageType:      models.PendingTypeSummarize,
	})
	require.NoError(t, err)
}

func TestCommands(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	dataDir := filepath.Join(t.TempDir(), "store")
	seed(t, dataDir)

	base := []string{"--adapter", "file", "--data-dir", dataDir}

	out, err := run(t, append([]string{"init"}, base...)...)
	require.NoError(t, err)
	assert.JSONEq(t, `{"adapter":"file","status":"ready"}`, out)

	out, err = run(t, append([]string{"projects"}, base...)...)
	require.NoError(t, err)
	assert.JSONEq(t, `["demo"]`, out)

	out, err = run(t, append([]string{"sessions", "demo", "--limit", "5"}, base...)...)
	require.NoError(t, err)
	var sessions []map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &sessions))
	require.Len(t, sessions, 1)
	assert.Equal(t, "abc-1", sessions[0]["content_session_id"])

	out, err = run(t, append([]string{"sessions", "nope"}, base...)...)
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, out)

	out, err = run(t, append([]string{"queue", "1"}, base...)...)
	require.NoError(t, err)
	var messages []map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &messages))
	require.Len(t, messages, 1)
	assert.Equal(t, "summarize", messages[0]["message_type"])
	assert.Equal(t, "pending", messages[0]["status"])

	out, err = run(t, append([]string{"prompts"}, base...)...)
	require.NoError(t, err)
	var prompts []map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &prompts))
	require.Len(t, prompts, 1)
	assert.Equal(t, "demo", prompts[0]["project"])
	assert.Equal(t, "hello", prompts[0]["prompt_text"])
}

func TestCommands_Errors(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"unknown adapter", []string{"projects", "--adapter", "mongo"}, "available: embedded-sql, file, shared-sql"},
		{"missing connection string", []string{"projects", "--adapter", "shared-sql"}, "ENGRAM_DATABASE_URL"},
		{"bad session id", []string{"queue", "abc", "--adapter", "file", "--data-dir", t.TempDir()}, "invalid session id"},
		{"missing project", []string{"sessions"}, "accepts 1 arg"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := run(t, tt.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestFlagsOverrideConfig(t *testing.T) {
	cfg := &config.Config{
		Adapter:      "embedded-sql",
		DatabaseURL:  "postgres://cfg@h/db",
		StorageDir:   "/cfg/store",
		DBPath:       "/cfg/engram.db",
		MaxConns:     4,
		WatchStorage: true,
	}

	f := &flags{adapter: "file", dataDir: "/flag/store"}
	opts := f.options(cfg)
	assert.Equal(t, "file", opts.Factory.Adapter)
	assert.Equal(t, "/flag/store", opts.Factory.DataDir)
	assert.Equal(t, "/cfg/engram.db", opts.Factory.DBPath)
	assert.Equal(t, "postgres://cfg@h/db", opts.Factory.DatabaseURL)
	assert.Equal(t, 4, opts.Factory.MaxConns)
	assert.True(t, opts.Watch)

	empty := (&flags{}).options(cfg)
	assert.Equal(t, factory.FromConfig(cfg), empty.Factory)
	assert.True(t, empty.Watch)

	cfg.WatchStorage = false
	assert.False(t, (&flags{}).options(cfg).Watch)
}
