package cmd

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Timvanhoudt/VirtualTeamLeader/internal/buildinfo"
	"github.com/Timvanhoudt/VirtualTeamLeader/internal/inference"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := RootCommand(buildinfo.New("1.4.0", "deadbeef", "2025-06-01"))
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "1.4.0")
	assert.Contains(t, out, "deadbeef")

	out, err = execute(t, "version", "--json")
	require.NoError(t, err)
	var info buildinfo.Info
	require.NoError(t, json.Unmarshal([]byte(out), &info))
	assert.Equal(t, "2025-06-01", info.BuildDate)
}

func TestClassesCommand(t *testing.T) {
	out, err := execute(t, "classes")
	require.NoError(t, err)
	assert.Contains(t, out, "seven_class")
	assert.Contains(t, out, "nok_hamer_weg")
	// header, column names and seven rows
	assert.Len(t, strings.Split(strings.TrimSpace(out), "\n"), 9)

	out, err = execute(t, "classes", "--scheme", "binary", "--json")
	require.NoError(t, err)
	var classes []inference.ClassInfo
	require.NoError(t, json.Unmarshal([]byte(out), &classes))
	assert.Len(t, classes, 2)

	_, err = execute(t, "classes", "--scheme", "twelve_class")
	assert.Error(t, err)
}

func TestUnknownCommand(t *testing.T) {
	_, err := execute(t, "realtime")
	assert.Error(t, err)
}
