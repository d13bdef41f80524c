package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stringstack/internal/session"
)

func runCLI(t *testing.T, input string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	a := &app{in: strings.NewReader(input), out: &out}
	cmd := newRootCommand(a)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestRootCommand_Structure(t *testing.T) {
	cmd := newRootCommand(&app{in: strings.NewReader(""), out: &bytes.Buffer{}})

	assert.Equal(t, "stringstack", cmd.Use)
	names := make([]string, 0, len(cmd.Commands()))
	for _, c := range cmd.Commands() {
		names = append(names, c.Name())
	}
	assert.Contains(t, names, "play")
	assert.Contains(t, names, "serve")

	for _, flag := range []string{"capacity", "sentinel", "drain", "history"} {
		assert.NotNil(t, cmd.Flags().Lookup(flag), flag)
	}
}

func TestPlay_PromptsForCapacity(t *testing.T) {
	out, err := runCLI(t, "2 a b c 그만")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(out, session.PromptCapacity))
	assert.Equal(t, 1, strings.Count(out, session.OverflowNotice))
	assert.True(t, strings.HasSuffix(out, session.DrainHeader+"b a \n"))
}

func TestPlay_CapacityFlag(t *testing.T) {
	out, err := runCLI(t, "x y 그만", "play", "--capacity", "3")
	require.NoError(t, err)

	assert.NotContains(t, out, session.PromptCapacity)
	assert.Equal(t, 3, strings.Count(out, session.PromptToken))
	assert.True(t, strings.HasSuffix(out, session.DrainHeader+"y x \n"))
}

func TestPlay_SentinelFlag(t *testing.T) {
	out, err := runCLI(t, "a 그만 b stop", "--capacity", "5", "--sentinel", "stop")
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(out, session.DrainHeader+"b 그만 a \n"))
}

func TestPlay_DrainByLength(t *testing.T) {
	out, err := runCLI(t, "a 그만", "--capacity", "3", "--drain", "length")
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(out, session.DrainHeader+"a \n"))
}

func TestPlay_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		args  []string
	}{
		{"capacity not a number", "many a 그만", nil},
		{"negative capacity", "-2 a 그만", nil},
		{"unknown drain policy", "a 그만", []string{"--capacity", "1", "--drain", "all"}},
		{"stray argument", "", []string{"extra"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := runCLI(t, tt.input, tt.args...)
			assert.Error(t, err)
		})
	}
}

func TestPlay_BadEnvironment(t *testing.T) {
	t.Setenv("STRINGSTACK_DRAIN", "sometimes")
	_, err := runCLI(t, "1 a 그만")
	assert.Error(t, err)
}
