package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wnxd/microfi/faultspace"
)

const arm64Config = `
[faultspace]
arch = "arm64"

[[faultspace.memory]]
name = "ram"
base = 0x20000000
size = 0x1000
`

const memoryConfig = `
[faultspace]
[[faultspace.memory]]
name = "ram"
base = 0x1000
size = 0x10
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fsp.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	err := cmd.Execute()
	return out.String(), err
}

func TestLayout(t *testing.T) {
	out, err := execute(t, "--config", writeConfig(t, arm64Config), "layout")
	require.NoError(t, err)
	assert.Equal(t, ""+
		"registers    0x0 0x114\n"+
		"ram          0x114 0x1000\n"+
		"total        0x1114\n", out)
}

func TestDecode(t *testing.T) {
	out, err := execute(t, "--config", writeConfig(t, arm64Config), "decode", "0x9", "0x115")
	require.NoError(t, err)
	assert.Contains(t, out, "0x9 { RegisterElement 'x1' at byte 0x1")
	assert.Contains(t, out, "0x115 { MemoryElement for addr 0x20000001 (mapped at=0x115) }")

	_, err = execute(t, "--config", writeConfig(t, arm64Config), "decode", "0x2000")
	assert.ErrorIs(t, err, faultspace.ErrAddressInvalid)

	_, err = execute(t, "--config", writeConfig(t, memoryConfig), "decode", "zz")
	assert.ErrorIs(t, err, errUsage)
}

func TestEncodeReg(t *testing.T) {
	path := writeConfig(t, arm64Config)

	out, err := execute(t, "--config", path, "encode-reg", "nzcv")
	require.NoError(t, err)
	lines := bytes.Split(bytes.TrimSpace([]byte(out)), []byte("\n"))
	require.Len(t, lines, 4)
	assert.Contains(t, string(lines[0]), "0x108 mask=0xff")
	assert.Contains(t, string(lines[3]), "0x10b mask=0xff")

	out, err = execute(t, "--config", path, "encode-reg", "x0", "--bits", "4:8")
	require.NoError(t, err)
	lines = bytes.Split(bytes.TrimSpace([]byte(out)), []byte("\n"))
	require.Len(t, lines, 2)
	assert.Contains(t, string(lines[0]), "0x0 mask=0xf0")
	assert.Contains(t, string(lines[1]), "0x1 mask=0x0f")

	_, err = execute(t, "--config", path, "encode-reg", "x0", "--bits", "60:8")
	assert.ErrorIs(t, err, faultspace.ErrRegisterWidth)

	_, err = execute(t, "--config", path, "encode-reg", "r99")
	assert.ErrorIs(t, err, faultspace.ErrRegisterNotFound)

	_, err = execute(t, "--config", writeConfig(t, memoryConfig), "encode-reg", "x0")
	assert.ErrorIs(t, err, faultspace.ErrAreaNotFound)
}

func TestInjectRegister(t *testing.T) {
	out, err := execute(t, "--config", writeConfig(t, arm64Config),
		"inject", "0x1", "--reg", "x0=0x1122")
	require.NoError(t, err)
	assert.Contains(t, out, "0x11 -> 0xee\n")
	assert.Contains(t, out, "x0 = 0xee22\n")
}

func TestInjectMemory(t *testing.T) {
	path := writeConfig(t, memoryConfig)

	out, err := execute(t, "--config", path, "inject", "0x2", "--mem", "0x1002=0x0f", "--flip", "7")
	require.NoError(t, err)
	assert.Contains(t, out, "0x0f -> 0x8f\n")

	out, err = execute(t, "--config", path, "inject", "0x0", "--set", "0x42")
	require.NoError(t, err)
	assert.Contains(t, out, "0x00 -> 0x42\n")
}

func TestInjectUsage(t *testing.T) {
	path := writeConfig(t, memoryConfig)
	for _, args := range [][]string{
		{"inject", "0x0", "--flip", "1", "--set", "1"},
		{"inject", "0x0", "--flip", "8"},
		{"inject", "0x0", "--set", "0x100"},
		{"inject", "0x0", "--mem", "0x1000"},
		{"inject", "0x0", "--mem", "0x1000=0x100"},
	} {
		_, err := execute(t, append([]string{"--config", path}, args...)...)
		assert.ErrorIs(t, err, errUsage, "%v", args)
	}
}

func TestMissingConfig(t *testing.T) {
	_, err := execute(t, "layout")
	assert.Error(t, err)
}
