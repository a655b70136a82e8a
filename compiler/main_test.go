package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Matt-Rice/KnightCode-MJR/compiler/internal"
	"github.com/Matt-Rice/KnightCode-MJR/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const greet = `PROGRAM Greet
DECLARE INTEGER n
BEGIN
	READ n
	SET n := n * 2
	PRINT n
END
`

func writeSource(t *testing.T, dir string) string {
	path := filepath.Join(dir, "greet.kc")
	require.NoError(t, os.WriteFile(path, []byte(greet), 0644))
	return path
}

func runKcc(t *testing.T, stdin string, args ...string) (string, error) {
	var stdout, stderr bytes.Buffer
	err := kcc(context.Background(), args, strings.NewReader(stdin), &stdout, &stderr)
	return stdout.String(), err
}

func TestKcc_CompileAndRun(t *testing.T) {
	dir := t.TempDir()
	source := writeSource(t, dir)
	out, err := runKcc(t, "21\n", "-o", dir, "-run", source)
	require.NoError(t, err)
	classPath := filepath.Join(dir, "Greet.class")
	assert.Equal(t, "Compiled "+source+" to "+classPath+"\nPlease enter an integer value for n: \n42\n", out)
	data, err := os.ReadFile(classPath)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xca, 0xfe, 0xba, 0xbe}, data[:4])
}

func TestKcc_ConfigAndDump(t *testing.T) {
	dir := t.TempDir()
	source := writeSource(t, dir)
	require.NoError(t, os.Mkdir(filepath.Join(dir, "out"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, config.FileName),
		[]byte("[output]\ndir = \"out\"\nextension = \"kcx\"\n[dump]\nenabled = true\n"), 0644))

	out, err := runKcc(t, "", "-i", source, "-S")
	require.NoError(t, err)
	assert.Contains(t, out, filepath.Join(dir, "out", "Greet.kcx"))
	assert.Contains(t, out, "\tinvokevirtual java/util/Scanner.nextInt:()I\n")

	data, err := os.ReadFile(filepath.Join(dir, "out", "Greet.dump.cbor"))
	require.NoError(t, err)
	record, err := internal.UnmarshalDump(data)
	require.NoError(t, err)
	assert.Equal(t, "Greet", record.Program)
	assert.Equal(t, []internal.DumpVariable{{Name: "n", Type: "INTEGER", Slot: 0}}, record.Variables)
}

func TestKcc_Errors(t *testing.T) {
	dir := t.TempDir()
	_, err := runKcc(t, "")
	assert.NotNil(t, err)

	_, err = runKcc(t, "", filepath.Join(dir, "missing.kc"))
	assert.NotNil(t, err)

	bad := filepath.Join(dir, "bad.kc")
	require.NoError(t, os.WriteFile(bad, []byte("PROGRAM Bad DECLARE BEGIN PRINT nope END"), 0644))
	_, err = runKcc(t, "", "-o", dir, bad)
	require.NotNil(t, err)
	assert.Contains(t, err.Error(), "nope")
	_, statErr := os.Stat(filepath.Join(dir, "Bad.class"))
	assert.True(t, os.IsNotExist(statErr))

	_, err = runKcc(t, "", "-config", filepath.Join(dir, "none.toml"), bad)
	assert.NotNil(t, err)
}
