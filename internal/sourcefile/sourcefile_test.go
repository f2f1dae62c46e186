package sourcefile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/forgesync/frg/internal/types"
)

func TestWriteLoadRoundTrip(t *testing.T) {
	root := t.TempDir()
	sf := SourceFile{ForgeKind: types.KindREST, RemoteID: "acme/widgets"}
	require.NoError(t, Write(root, sf))

	loaded, ok := Load(root)
	require.True(t, ok)
	require.Equal(t, sf, loaded)
}

func TestLoadMissingOrMalformedYieldsZero(t *testing.T) {
	root := t.TempDir()

	_, ok := Load(root)
	require.False(t, ok)

	dir := filepath.Join(root, DirName)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "source.yaml"), []byte(":\tnot yaml"), 0o644))

	_, ok = Load(root)
	require.False(t, ok, "a malformed marker must not block a read command")
}

func TestFindRootWalksUp(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, Write(root, SourceFile{ForgeKind: types.KindGraphQL, RemoteID: "eng/team-1"}))

	nested := filepath.Join(root, "a", "b", "c")
	require.NoError(t, os.MkdirAll(nested, 0o755))

	found, ok := FindRoot(nested)
	require.True(t, ok)
	require.Equal(t, root, found)

	_, ok = FindRoot(t.TempDir())
	require.False(t, ok)
}

func TestRemoveDeletesMarker(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, Write(root, SourceFile{ForgeKind: types.KindREST, RemoteID: "acme/widgets"}))
	require.NoError(t, Remove(root))

	_, ok := Load(root)
	require.False(t, ok)

	require.NoError(t, Remove(root), "removing an absent marker is fine")
}
