package config

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wnxd/microfi/emulator"
	"github.com/wnxd/microfi/faultspace"
	"github.com/wnxd/microfi/hops"
	"github.com/wnxd/microfi/internal/fakeemu"
)

const tomlConfig = `
[planner]
use_weights = false
use_checkpoints = true
checkpoint_threshold = 100
checkpoint_costs = 10
rollback_threshold = 20
max_steps = 5000

[faultspace]
arch = "arm64"

[[faultspace.memory]]
name = "ram"
base = 0x20000000
size = 0x1000

[[faultspace.memory]]
name = "stack"
base = 0x7ff0000
size = 0x100
`

const yamlConfig = `
planner:
  use_weights: false
  use_checkpoints: true
  checkpoint_threshold: 100
  checkpoint_costs: 10
  rollback_threshold: 20
  max_steps: 5000
faultspace:
  arch: arm64
  memory:
    - name: ram
      base: 0x20000000
      size: 0x1000
    - name: stack
      base: 0x7ff0000
      size: 0x100
`

func want() Config {
	return Config{
		Planner: PlannerConfig{
			UseWatchpoints:      true,
			UseCheckpoints:      true,
			CheckpointThreshold: 100,
			CheckpointCosts:     10,
			RollbackThreshold:   20,
			MaxSteps:            5000,
		},
		FaultSpace: FaultSpaceConfig{
			Arch: "arm64",
			Memory: []MemoryConfig{
				{Name: "ram", Base: 0x20000000, Size: 0x1000},
				{Name: "stack", Base: 0x7ff0000, Size: 0x100},
			},
		},
	}
}

func writeFile(t *testing.T, name, data string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	for name, data := range map[string]string{"fi.toml": tomlConfig, "fi.yaml": yamlConfig, "fi.yml": yamlConfig} {
		t.Run(name, func(t *testing.T) {
			cfg, err := Load(writeFile(t, name, data))
			require.NoError(t, err)
			assert.Equal(t, want(), cfg)
		})
	}
}

func TestLoadUnsupported(t *testing.T) {
	_, err := Load(writeFile(t, "fi.json", "{}"))
	assert.ErrorIs(t, err, ErrFormatUnsupported)
	_, err = Load(filepath.Join(t.TempDir(), "missing.toml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestDecodeDefaults(t *testing.T) {
	for _, format := range []Format{FORMAT_TOML, FORMAT_YAML} {
		cfg, err := Decode(strings.NewReader(""), format)
		require.NoError(t, err)
		assert.Equal(t, Default(), cfg)
		assert.Equal(t, hops.DefaultConfig(), cfg.Planner.Hops())
	}
}

func TestDecodeInvalid(t *testing.T) {
	tests := []struct {
		name   string
		format Format
		data   string
	}{
		{"unknown toml key", FORMAT_TOML, "[planner]\nuse_magic = true\n"},
		{"unknown yaml key", FORMAT_YAML, "planner:\n  use_magic: true\n"},
		{"toml syntax", FORMAT_TOML, "[planner\nuse_weights = true\n"},
		{"yaml syntax", FORMAT_YAML, "planner: [\n"},
		{"yaml type", FORMAT_YAML, "planner:\n  max_steps: many\n"},
		{"arch", FORMAT_TOML, "[faultspace]\narch = \"mips\"\n"},
		{"empty area", FORMAT_TOML, "[[faultspace.memory]]\nname = \"ram\"\n"},
		{"unnamed area", FORMAT_YAML, "faultspace:\n  memory:\n    - size: 16\n"},
		{"duplicate area", FORMAT_YAML, "faultspace:\n  memory:\n    - {name: a, size: 1}\n    - {name: a, size: 1}\n"},
		{"missing threshold", FORMAT_TOML, "[planner]\nuse_checkpoints = true\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(strings.NewReader(tt.data), tt.format)
			assert.ErrorIs(t, err, ErrConfigInvalid)
		})
	}
}

func TestDecodePlannerRelation(t *testing.T) {
	data := "[planner]\nuse_checkpoints = true\ncheckpoint_threshold = 10\ncheckpoint_costs = 4\nrollback_threshold = 3\n"
	_, err := Decode(strings.NewReader(data), FORMAT_TOML)
	assert.ErrorIs(t, err, hops.ErrConfigInvalid)
}

func TestBuild(t *testing.T) {
	emu := fakeemu.New(emulator.ARCH_ARM64)
	space, err := want().FaultSpace.Build(emu)
	require.NoError(t, err)

	areas := space.Areas()
	require.Len(t, areas, 3)
	assert.Equal(t, "registers", areas[0].Name())
	assert.Equal(t, uint64(276), areas[1].Offset())
	assert.Equal(t, uint64(276+0x1000), areas[2].Offset())
	assert.Equal(t, uint64(276+0x1000+0x100), space.Size())

	e, err := space.Decode(276 + 0x10)
	require.NoError(t, err)
	mem, ok := e.(*faultspace.MemoryElement)
	require.True(t, ok)
	assert.Equal(t, uint64(0x20000010), mem.GuestAddress())

	require.NoError(t, space.Close())
	assert.True(t, emu.Closed())
}

func TestBuildArchMismatch(t *testing.T) {
	emu := fakeemu.New(emulator.ARCH_ARM)
	_, err := want().FaultSpace.Build(emu)
	assert.ErrorIs(t, err, emulator.ErrArchMismatch)
	assert.True(t, emu.Closed())
}

func TestBuildOverflowClosesTarget(t *testing.T) {
	emu := fakeemu.New(emulator.ARCH_ARM64)
	fs := FaultSpaceConfig{Arch: "arm64", Memory: []MemoryConfig{
		{Name: "low", Size: math.MaxUint64},
		{Name: "high", Size: 1},
	}}
	_, err := fs.Build(emu)
	assert.ErrorIs(t, err, faultspace.ErrAddressOverflow)
	assert.True(t, emu.Closed())
}

func TestBuildMemoryOnly(t *testing.T) {
	emu := fakeemu.New(emulator.ARCH_ARM)
	fs := FaultSpaceConfig{Memory: []MemoryConfig{{Name: "ram", Base: 0x1000, Size: 0x10}}}
	space, err := fs.Build(emu)
	require.NoError(t, err)
	assert.Equal(t, uint64(0x10), space.Size())
	require.NoError(t, space.Close())
	assert.True(t, emu.Closed())
}
