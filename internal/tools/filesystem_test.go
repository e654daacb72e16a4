package tools

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadFileTool(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "hello.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello world"), 0644))

	tool := &ReadFileTool{}
	out, err := tool.Execute(context.Background(), map[string]any{"path": path})
	require.NoError(t, err)
	assert.Equal(t, "hello world", out)

	out, err = tool.Execute(context.Background(), map[string]any{"path": filepath.Join(dir, "missing.txt")})
	require.NoError(t, err)
	assert.Contains(t, out, "File not found")

	out, err = tool.Execute(context.Background(), map[string]any{"path": dir})
	require.NoError(t, err)
	assert.Contains(t, out, "Not a file")
}

func TestWriteFileTool_CreatesParents(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a", "b", "out.txt")

	tool := &WriteFileTool{}
	out, err := tool.Execute(context.Background(), map[string]any{"path": path, "content": "data"})
	require.NoError(t, err)
	assert.Contains(t, out, "Successfully wrote")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "data", string(data))
}

func TestEditFileTool(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "f.txt")
	require.NoError(t, os.WriteFile(path, []byte("alpha beta gamma"), 0644))

	tool := &EditFileTool{}
	out, err := tool.Execute(context.Background(), map[string]any{
		"path": path, "old_text": "beta", "new_text": "BETA",
	})
	require.NoError(t, err)
	assert.Contains(t, out, "Successfully edited")

	data, _ := os.ReadFile(path)
	assert.Equal(t, "alpha BETA gamma", string(data))

	out, _ = tool.Execute(context.Background(), map[string]any{
		"path": path, "old_text": "zeta", "new_text": "x",
	})
	assert.Contains(t, out, "not found")
}

func TestEditFileTool_AmbiguousMatch(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "f.txt")
	require.NoError(t, os.WriteFile(path, []byte("aa aa"), 0644))

	tool := &EditFileTool{}
	out, err := tool.Execute(context.Background(), map[string]any{
		"path": path, "old_text": "aa", "new_text": "bb",
	})
	require.NoError(t, err)
	assert.Contains(t, out, "appears 2 times")

	// File untouched on ambiguity.
	data, _ := os.ReadFile(path)
	assert.Equal(t, "aa aa", string(data))
}

func TestListDirTool(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.txt"), []byte("x"), 0644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0755))

	tool := &ListDirTool{}
	out, err := tool.Execute(context.Background(), map[string]any{"path": dir})
	require.NoError(t, err)
	// Directories first.
	assert.Equal(t, "sub/\nb.txt", out)
}

func TestResolvePath_AllowedDir(t *testing.T) {
	dir := t.TempDir()
	inside := filepath.Join(dir, "ok.txt")

	resolved, err := resolvePath(inside, dir)
	require.NoError(t, err)
	assert.Equal(t, inside, resolved)

	_, err = resolvePath("/etc/passwd", dir)
	assert.Error(t, err)

	// Sibling dir sharing the prefix string is still outside.
	_, err = resolvePath(dir+"-evil/x.txt", dir)
	assert.Error(t, err)
}
