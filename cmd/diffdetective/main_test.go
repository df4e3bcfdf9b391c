package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/VariantSync/DiffDetective-sub004/linegraph"
)

const sampleDiff = ` int a;
+#ifdef FEATURE
+int b;
+#endif
 #if X
-int c;
 #endif
`

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&bytes.Buffer{})
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestParseAndValidate(t *testing.T) {
	dir := t.TempDir()
	diff := writeFile(t, dir, "sample.diff", sampleDiff)

	out, err := execute(t, "", "parse", diff, "--format", "linenumber")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "t # "+diff+"$$$\n"), out)
	assert.Contains(t, out, "v 0 NON root")

	lg := writeFile(t, dir, "sample.lg", out)
	out, err = execute(t, "", "validate", lg, "--format", "linenumber")
	require.NoError(t, err)
	assert.Equal(t, "1 variation diffs, 6 nodes, 0 inconsistent\n", out)
}

func TestParse_Stdin(t *testing.T) {
	out, err := execute(t, sampleDiff, "parse", "-", "--format", "type")
	require.NoError(t, err)
	assert.Contains(t, out, "v 0 NON_root\n")
	assert.Contains(t, out, "ADD_if")
	assert.Contains(t, out, "REM_artifact")
}

func TestParse_Tree(t *testing.T) {
	dir := t.TempDir()
	src := writeFile(t, dir, "a.c", "#if A\nint x;\n#endif\n")
	out, err := execute(t, "", "parse", src, "--tree", "--format", "type")
	require.NoError(t, err)
	assert.NotContains(t, out, "ADD_")
	assert.Contains(t, out, "NON_if")
	treeFlag = false
}

func TestParse_Errors(t *testing.T) {
	dir := t.TempDir()
	bad := writeFile(t, dir, "bad.diff", "+#endif\n")
	_, err := execute(t, "", "parse", bad, "--format", "linenumber")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "EndifWithoutIf")

	_, err = execute(t, "", "parse", filepath.Join(dir, "missing.diff"))
	assert.Error(t, err)

	ok := writeFile(t, dir, "ok.diff", sampleDiff)
	_, err = execute(t, "", "parse", ok, "--format", "pretty")
	assert.Error(t, err)

	_, err = execute(t, "", "parse", ok, "--format", "linenumber", "--resolver", "gcc")
	resolverName = ""
	assert.ErrorContains(t, err, `unknown macro resolver "gcc"`)
}

func TestClassify(t *testing.T) {
	dir := t.TempDir()
	diff := writeFile(t, dir, "sample.diff", sampleDiff)

	out, err := execute(t, "", "classify", diff)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "[1, 2)\tUntouched\tint a;", lines[0])
	assert.Equal(t, "[3, 4)\tAddToPC\tint b;", lines[1])
	assert.Equal(t, "[6, 7)\tRemWithMapping\tint c;", lines[2])
	assert.Equal(t, "total 3: AddToPC=1 RemWithMapping=1 Untouched=1", lines[3])
}

func TestValidate_WriteOnlyFormat(t *testing.T) {
	dir := t.TempDir()
	lg := writeFile(t, dir, "x.lg", "t # a$$$b\nv 0 NON_root\n\n")
	for _, format := range []string{"type", "releasemining", "debug"} {
		_, err := execute(t, "", "validate", lg, "--format", format)
		assert.ErrorIs(t, err, linegraph.ErrUnsupportedFormat, format)
	}
}

func TestMine(t *testing.T) {
	repoDir := t.TempDir()
	repo, err := git.PlainInit(repoDir, false)
	require.NoError(t, err)
	wt, err := repo.Worktree()
	require.NoError(t, err)
	sig := &object.Signature{Name: "Test", Email: "test@example.com", When: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	for _, content := range []string{"int a;\n", "#if A\nint a;\n#endif\n"} {
		writeFile(t, repoDir, "main.c", content)
		_, err := wt.Add("main.c")
		require.NoError(t, err)
		_, err = wt.Commit("step", &git.CommitOptions{Author: sig})
		require.NoError(t, err)
	}

	dir := t.TempDir()
	registry := writeFile(t, dir, "datasets.yaml", "datasets:\n  - name: sample\n    path: "+repoDir+"\n")
	data := filepath.Join(dir, "data")
	metrics := filepath.Join(dir, "metrics.prom")

	out, err := execute(t, "", "mine", registry, "--data", data, "--no-compress", "--workers", "2", "--metrics-file", metrics, "--format", "linenumber")
	require.NoError(t, err)
	assert.Contains(t, out, "sample: 1 commits, 1 patches parsed, 0 failed, 0 skipped")
	assert.FileExists(t, filepath.Join(data, "linegraphs", "sample.lg"))
	assert.FileExists(t, filepath.Join(data, "results.db"))

	prom, err := os.ReadFile(metrics)
	require.NoError(t, err)
	assert.Contains(t, string(prom), `diffdetective_patches_total{outcome="parsed"} 1`)
}
