package fsproject

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenCollectsDocumentsAndAdditionalDocuments(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "A.cs"), []byte("class A {}"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Index.razor"), []byte("<h1/>"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("ignored"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, ".git"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".git", "B.cs"), []byte("skip me"), 0o644))

	opener := Opener{Extensions: []string{".cs"}, AdditionalExtensions: []string{".razor"}}
	sol, err := opener.Open(context.Background(), dir)
	require.NoError(t, err)

	require.Len(t, sol.Projects, 1)
	assert.Len(t, sol.Projects[0].Documents, 1)
	assert.Len(t, sol.Projects[0].AdditionalDocuments, 1)
}

func TestOpenUsesDirBaseNameByDefault(t *testing.T) {
	dir := t.TempDir()
	opener := Opener{Extensions: []string{".cs"}}
	sol, err := opener.Open(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Base(dir), sol.Projects[0].Name)
}
