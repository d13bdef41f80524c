package watcher

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stringstack/internal/protocol"
	"stringstack/internal/session"
)

func writeScript(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestRunScript_CapacityTwo(t *testing.T) {
	dir := t.TempDir()
	path := writeScript(t, dir, "two.stack", "2\na\nb\nc\n그만\n")

	result := RunScript(path, session.Options{})
	assert.Empty(t, result.Error)
	assert.Equal(t, "two.stack", result.Script)
	assert.Equal(t, []string{"b", "a"}, result.Values)
	assert.Equal(t, 1, result.Overflows)
	assert.False(t, result.Underflow)
	assert.Equal(t, session.OverflowNotice+"\n"+session.DrainHeader+"b a \n", result.Output)
}

func TestRunScript_Underflow(t *testing.T) {
	dir := t.TempDir()
	path := writeScript(t, dir, "short.stack", "3 x 그만")

	result := RunScript(path, session.Options{})
	assert.Empty(t, result.Error)
	assert.Equal(t, []string{"x"}, result.Values)
	assert.True(t, result.Underflow)
}

func TestRunScript_BadCapacity(t *testing.T) {
	dir := t.TempDir()
	path := writeScript(t, dir, "bad.stack", "lots of values")

	result := RunScript(path, session.Options{})
	assert.NotEmpty(t, result.Error)
}

func TestRunScript_Missing(t *testing.T) {
	result := RunScript(filepath.Join(t.TempDir(), "gone.stack"), session.Options{})
	assert.NotEmpty(t, result.Error)
}

func TestListScripts(t *testing.T) {
	dir := t.TempDir()
	writeScript(t, dir, "b.stack", "1")
	writeScript(t, dir, "a.stack", "1")
	writeScript(t, dir, ".hidden.stack", "1")
	writeScript(t, dir, "notes.txt", "1")
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "dir.stack"), 0755))

	scripts := ListScripts(dir)
	assert.Equal(t, []string{
		filepath.Join(dir, "a.stack"),
		filepath.Join(dir, "b.stack"),
	}, scripts)
}

func TestListScripts_MissingDir(t *testing.T) {
	assert.Nil(t, ListScripts(filepath.Join(t.TempDir(), "nope")))
}

func TestIsScript(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"demo.stack", true},
		{".demo.stack", false},
		{".stack", false},
		{"demo.txt", false},
		{"", false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, IsScript(tt.name), "IsScript(%q)", tt.name)
	}
}

func TestWatcher_ReplaysExistingAndNewScripts(t *testing.T) {
	dir := t.TempDir()
	writeScript(t, dir, "existing.stack", "1 a 그만")

	results := make(chan protocol.ScriptResultPayload, 10)
	w := New(dir, session.Options{}, func(r protocol.ScriptResultPayload) {
		results <- r
	})
	w.debounce = 50 * time.Millisecond

	require.NoError(t, w.Start())
	defer w.Shutdown()

	next := func() protocol.ScriptResultPayload {
		select {
		case r := <-results:
			return r
		case <-time.After(5 * time.Second):
			t.Fatal("timed out waiting for script result")
			return protocol.ScriptResultPayload{}
		}
	}

	first := next()
	assert.Equal(t, "existing.stack", first.Script)
	assert.Equal(t, []string{"a"}, first.Values)

	writeScript(t, dir, "ignored.txt", "1 z 그만")
	writeScript(t, dir, "new.stack", "2 x y 그만")

	second := next()
	assert.Equal(t, "new.stack", second.Script)
	assert.Equal(t, []string{"y", "x"}, second.Values)
}

func TestWatcher_StartMissingDir(t *testing.T) {
	w := New(filepath.Join(t.TempDir(), "nope"), session.Options{}, nil)
	assert.Error(t, w.Start())
	// Should not panic.
	w.Shutdown()
}
