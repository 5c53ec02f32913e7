package cli

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func run(t *testing.T, dir string, args ...string) (string, error) {
	t.Helper()

	cmd := NewRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append(args, "--path", dir, "--log-level", "error"))

	err := cmd.Execute()
	return out.String(), err
}

func mustRun(t *testing.T, dir string, args ...string) string {
	t.Helper()

	out, err := run(t, dir, args...)
	require.NoError(t, err, out)
	return out
}

func TestSetGet(t *testing.T) {
	dir := t.TempDir()

	mustRun(t, dir, "set", "user", `{"name": "ada", "langs": ["go"]}`)
	require.Equal(t, "{\"langs\": [\"go\"], \"name\": \"ada\"}\n", mustRun(t, dir, "get", "user"))
	require.Equal(t, "[]\n", mustRun(t, dir, "get", "missing"))
	require.Equal(t, "true\n", mustRun(t, dir, "has", `"user"`))
	require.Equal(t, "1\n", mustRun(t, dir, "len"))

	mustRun(t, dir, "del", "user")
	require.Equal(t, "false\n", mustRun(t, dir, "has", "user"))

	_, err := run(t, dir, "del", "user")
	require.Error(t, err)
}

func TestAppendMget(t *testing.T) {
	dir := t.TempDir()

	mustRun(t, dir, "append", "log", "1", "log", "2", "other", "true")
	require.Equal(t, "[1, 2]\n", mustRun(t, dir, "get", "log"))

	out := mustRun(t, dir, "mget", "log", "other", "nope")
	require.Equal(t, "\"log\"\t[1, 2]\n\"other\"\t[true]\n\"nope\"\t[]\n", out)

	_, err := run(t, dir, "append", "log")
	require.Error(t, err)
}

func TestKeysItems(t *testing.T) {
	dir := t.TempDir()

	for _, k := range []string{"c", "a", "b"} {
		mustRun(t, dir, "set", k, "1")
	}
	require.Equal(t, "\"a\"\n\"b\"\n\"c\"\n", mustRun(t, dir, "keys"))

	lines := strings.Split(strings.TrimSpace(mustRun(t, dir, "items")), "\n")
	require.Equal(t, []string{"\"a\"\t1", "\"b\"\t1", "\"c\"\t1"}, lines)
}

func TestEngines(t *testing.T) {
	for _, engine := range []string{"bolt", "badger", "leveldb", "pebble"} {
		t.Run(engine, func(t *testing.T) {
			dir := t.TempDir()

			mustRun(t, dir, "--engine", engine, "--compression", "snappy", "set", "k", "[1, 2.5]")
			mustRun(t, dir, "--engine", engine, "flush")
			require.Equal(t, "[1, 2.5]\n", mustRun(t, dir, "--engine", engine, "--compression", "snappy", "get", "k"))
		})
	}
}

func TestStats(t *testing.T) {
	dir := t.TempDir()

	mustRun(t, dir, "set", "k", "v")
	out := mustRun(t, dir, "stats", "--metrics")
	require.Contains(t, out, "engine=bolt\n")
	require.Contains(t, out, "entries=1\n")
	require.Contains(t, out, "packstore_gets_total")
}

func TestReadOnlyFlag(t *testing.T) {
	dir := t.TempDir()

	mustRun(t, dir, "set", "k", "v")
	_, err := run(t, dir, "--readonly", "set", "k", "w")
	require.Error(t, err)
	require.Equal(t, "\"v\"\n", mustRun(t, dir, "--readonly", "get", "k"))
}

func TestEnvironment(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("PACKSTORE_ENGINE", "leveldb")

	mustRun(t, dir, "set", "k", "v")
	out := mustRun(t, dir, "stats")
	require.Contains(t, out, "engine=leveldb\n")
}

func TestInvalidFlags(t *testing.T) {
	dir := t.TempDir()

	_, err := run(t, dir, "--engine", "lmdb", "len")
	require.Error(t, err)

	_, err = run(t, dir, "--log-format", "xml", "len")
	require.Error(t, err)

	_, err = run(t, dir, "--max-size", "10", "len")
	require.Error(t, err)
}

func TestExportImport(t *testing.T) {
	src, dst := t.TempDir(), t.TempDir()
	dump := t.TempDir() + "/dump.json"

	mustRun(t, src, "set", "a", `{"x": 1}`)
	mustRun(t, src, "append", "b", "1")
	mustRun(t, src, "export", dump)

	mustRun(t, dst, "import", dump)
	require.Equal(t, "\"a\"\t{\"x\": 1}\n\"b\"\t[1]\n", mustRun(t, dst, "items"))
}

func TestWriteCommandsFlush(t *testing.T) {
	dir := t.TempDir()

	debugRun := func(args ...string) string {
		cmd := NewRootCmd()
		var out bytes.Buffer
		cmd.SetOut(&out)
		cmd.SetErr(&out)
		cmd.SetArgs(append(args, "--path", dir, "--log-level", "debug", "--log-format", "json"))
		require.NoError(t, cmd.Execute(), out.String())
		return out.String()
	}

	for _, args := range [][]string{
		{"set", "k", "1"},
		{"append", "log", "1"},
		{"del", "k"},
	} {
		require.Contains(t, debugRun(args...), `"message":"store flushed"`, args[0])
	}
	require.NotContains(t, debugRun("get", "log"), "store flushed")
}

func TestVersion(t *testing.T) {
	require.Equal(t, "packstore v"+Version+"\n", mustRun(t, t.TempDir(), "version"))
}

func TestWrapString(t *testing.T) {
	wrapped := WrapString(strings.Repeat("word ", 30))
	for _, line := range strings.Split(wrapped, "\n") {
		require.LessOrEqual(t, len(line), Wrap)
	}
}
