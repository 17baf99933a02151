package store

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/projdex/pkg/types"
)

const testDebounce = 30 * time.Millisecond

func openTest(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "catalog.json")
	s, err := OpenWithDebounce(path, testDebounce, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s, path
}

func testProject(id, name string) types.Project {
	return types.Project{
		ID:         id,
		Name:       name,
		Path:       "/projects/" + name,
		Type:       types.ProjectTypeGit,
		Tags:       []string{},
		Importance: types.DefaultImportance,
		ScanStatus: types.ScanStatusComplete,
	}
}

func TestOpen_CreatesEmptyCatalog(t *testing.T) {
	s, path := openTest(t)

	assert.Empty(t, s.ListProjects())

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var doc Document
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, CurrentVersion, doc.Meta.Version)
	assert.Equal(t, 0, doc.Meta.ProjectCount)
}

func TestUpsertGetDelete(t *testing.T) {
	s, _ := openTest(t)

	s.UpsertProject(testProject("p1", "alpha"))
	s.UpsertProject(testProject("p2", "beta"))

	got, err := s.GetProject("p1")
	require.NoError(t, err)
	assert.Equal(t, "alpha", got.Name)

	require.NoError(t, s.DeleteProject("p1"))
	_, err = s.GetProject("p1")
	assert.ErrorIs(t, err, types.ErrProjectNotFound)

	assert.ErrorIs(t, s.DeleteProject("p1"), types.ErrProjectNotFound)
	assert.Len(t, s.ListProjects(), 1)
}

func TestUpsert_PreservesUserState(t *testing.T) {
	s, _ := openTest(t)

	s.UpsertProject(testProject("p1", "alpha"))

	tags := []string{"work", "active"}
	importance := 5
	_, err := s.UpdateProject("p1", ProjectUpdate{Tags: &tags, Importance: &importance})
	require.NoError(t, err)

	// Re-scan delivers a fresh record with default user fields.
	rescanned := testProject("p1", "alpha")
	rescanned.Branch = "develop"
	s.UpsertProject(rescanned)

	got, err := s.GetProject("p1")
	require.NoError(t, err)
	assert.Equal(t, "develop", got.Branch)
	assert.Equal(t, []string{"work", "active"}, got.Tags)
	assert.Equal(t, 5, got.Importance)
	// The re-scan resets the modification marker.
	assert.Equal(t, types.ScanStatusComplete, got.ScanStatus)
}

func TestUpdateProject_MarksUserModified(t *testing.T) {
	s, _ := openTest(t)
	s.UpsertProject(testProject("p1", "alpha"))

	name := "renamed"
	got, err := s.UpdateProject("p1", ProjectUpdate{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, "renamed", got.Name)
	assert.Equal(t, types.ScanStatusUserModified, got.ScanStatus)

	_, err = s.UpdateProject("missing", ProjectUpdate{Name: &name})
	assert.ErrorIs(t, err, types.ErrProjectNotFound)
}

func TestDebounce_CoalescesBurst(t *testing.T) {
	s, _ := openTest(t)

	base := s.flushes.Load() // Open's initial flush

	for i := 0; i < 10; i++ {
		s.UpsertProject(testProject("p1", "alpha"))
	}

	require.Eventually(t, func() bool {
		return s.flushes.Load() > base
	}, time.Second, 5*time.Millisecond)

	// The burst produced exactly one flush.
	time.Sleep(3 * testDebounce)
	assert.Equal(t, base+1, s.flushes.Load())
}

func TestFlush_ForcedWriteIsDurable(t *testing.T) {
	s, path := openTest(t)

	s.UpsertProject(testProject("p1", "alpha"))
	require.NoError(t, s.Flush())

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var doc Document
	require.NoError(t, json.Unmarshal(data, &doc))
	require.Len(t, doc.Projects, 1)
	assert.Equal(t, 1, doc.Meta.ProjectCount)
}

// Simulates a crash after the .tmp write but before the rename: the
// canonical file must be byte-identical to its pre-flush state.
func TestCrashBeforeRename_CanonicalUntouched(t *testing.T) {
	s, path := openTest(t)
	s.UpsertProject(testProject("p1", "alpha"))
	require.NoError(t, s.Flush())
	require.NoError(t, s.Close())

	before, err := os.ReadFile(path)
	require.NoError(t, err)

	// Orphaned tmp from an interrupted write.
	require.NoError(t, os.WriteFile(path+tmpSuffix, []byte("partial garbage"), 0o644))

	reopened, err := OpenWithDebounce(path, testDebounce, nil)
	require.NoError(t, err)
	defer reopened.Close()

	after, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, before, after)

	_, err = reopened.GetProject("p1")
	assert.NoError(t, err)
}

func TestLoad_BackupFallback(t *testing.T) {
	s, path := openTest(t)
	s.UpsertProject(testProject("p1", "alpha"))
	require.NoError(t, s.Flush())
	// Second flush copies the good canonical file to .bak.
	require.NoError(t, s.Flush())
	require.NoError(t, s.Close())

	require.NoError(t, os.WriteFile(path, []byte("{corrupt"), 0o644))

	reopened, err := OpenWithDebounce(path, testDebounce, nil)
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.GetProject("p1")
	require.NoError(t, err)
	assert.Equal(t, "alpha", got.Name)

	// Recovery re-persisted the backup content as canonical.
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var doc Document
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Len(t, doc.Projects, 1)
}

func TestLoad_ResetWhenBackupAlsoCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.json")
	require.NoError(t, os.WriteFile(path, []byte("{corrupt"), 0o644))
	require.NoError(t, os.WriteFile(path+backupSuffix, []byte("also corrupt"), 0o644))

	s, err := OpenWithDebounce(path, testDebounce, nil)
	require.NoError(t, err)
	defer s.Close()

	assert.Empty(t, s.ListProjects())

	// Self-healed: the canonical file is valid again.
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var doc Document
	assert.NoError(t, json.Unmarshal(data, &doc))
}

func TestExportImport(t *testing.T) {
	s, _ := openTest(t)
	s.UpsertProject(testProject("p1", "alpha"))

	snapshot := s.Export()
	require.Len(t, snapshot.Projects, 1)

	// Snapshot is detached from the live document.
	snapshot.Projects[0].Name = "mutated"
	got, err := s.GetProject("p1")
	require.NoError(t, err)
	assert.Equal(t, "alpha", got.Name)

	other, _ := openTest(t)
	require.NoError(t, other.Import(snapshot))
	imported, err := other.GetProject("p1")
	require.NoError(t, err)
	assert.Equal(t, "mutated", imported.Name)
	assert.Equal(t, CurrentVersion, other.Export().Meta.Version)
}

func TestSetLastScanAt(t *testing.T) {
	s, _ := openTest(t)
	now := time.Now().Truncate(time.Second)
	s.SetLastScanAt(now)
	assert.True(t, s.Export().Meta.LastScanAt.Equal(now))
}
