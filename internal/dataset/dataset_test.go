package dataset

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const registry = `
datasets:
  - name: marlin
    path: repos/marlin
    ref: bugfix-2.1.x
    resolver: marlin
    exclude: ["buildroot/**"]
  - name: busybox
    url: https://git.busybox.net/busybox
    include: ["**/*.c"]
`

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "datasets.yaml")
	require.NoError(t, os.WriteFile(path, []byte(registry), 0o644))

	reg, err := Load(path)
	require.NoError(t, err)
	require.Len(t, reg.Datasets, 2)

	m := reg.Datasets[0]
	assert.Equal(t, filepath.Join(dir, "repos/marlin"), m.Path)
	assert.Equal(t, "bugfix-2.1.x", m.Ref)
	r, err := m.MacroResolver()
	require.NoError(t, err)
	assert.NotNil(t, r)

	b := reg.Datasets[1]
	assert.Equal(t, filepath.Join("/data", "repos", "busybox"), b.ClonePath("/data"))
	assert.Equal(t, m.Path, m.ClonePath("/data"))
}

func TestLoad_Missing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestParse_Invalid(t *testing.T) {
	tests := map[string]string{
		"empty":        "datasets: []\n",
		"no name":      "datasets:\n  - path: x\n",
		"no source":    "datasets:\n  - name: x\n",
		"duplicate":    "datasets:\n  - {name: x, path: a}\n  - {name: x, path: b}\n",
		"bad pattern":  "datasets:\n  - {name: x, path: a, include: ['[']}\n",
		"bad resolver": "datasets:\n  - {name: x, path: a, resolver: gcc}\n",
		"not yaml":     "datasets: [",
	}
	for name, text := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(text))
			assert.Error(t, err)
		})
	}
}

func TestMatches(t *testing.T) {
	ds := Dataset{Name: "x", Path: "p", Exclude: []string{"vendor/**"}}
	tests := []struct {
		path string
		want bool
	}{
		{"main.c", true},
		{"src/util/list.h", true},
		{"src/engine.cpp", true},
		{"include/a.hpp", true},
		{"README.md", false},
		{"src/main.go", false},
		{"vendor/zlib/inflate.c", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ds.Matches(tt.path), tt.path)
	}

	only := Dataset{Name: "y", Path: "p", Include: []string{"src/*.c"}}
	assert.True(t, only.Matches("src/a.c"))
	assert.False(t, only.Matches("src/sub/a.c"))
	assert.False(t, only.Matches("src/a.h"))
}
