package organize

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rastipwnerr/investigator/internal/artifact"
)

func testRoots() map[artifact.Type]string {
	roots := make(map[artifact.Type]string)
	for _, t := range artifact.All() {
		roots[t] = filepath.Join("/data", t.DirName())
	}
	return roots
}

func seedSource(t *testing.T, fs afero.Fs) {
	t.Helper()
	files := map[string]string{
		"/evidence/Security.evtx":       "evtx-data",
		"/evidence/C/$MFT":              "mft-data",
		"/evidence/user/recent/doc.lnk": "lnk-data",
		"/evidence/Amcache.hve":         "amcache-data",
		"/evidence/config/SYSTEM":       "hive-data",
		"/evidence/logs/app.log":        "other-data",
		"/evidence/.DS_Store":           "junk",
		"/evidence/~tmp.evtx":           "junk",
	}
	for path, body := range files {
		require.NoError(t, fs.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, afero.WriteFile(fs, path, []byte(body), 0o644))
	}
}

func TestOrganizeCopy(t *testing.T) {
	fs := afero.NewMemMapFs()
	seedSource(t, fs)
	org := New(fs, testRoots())

	report, err := org.Organize("/evidence", "Case01", false)
	require.NoError(t, err)
	assert.Empty(t, report.Failed)
	assert.Len(t, report.Transfers, 6)

	counts := report.CountByType()
	assert.Equal(t, 1, counts[artifact.Evtx])
	assert.Equal(t, 1, counts[artifact.MFT])
	assert.Equal(t, 1, counts[artifact.Lnk])
	assert.Equal(t, 1, counts[artifact.Amcache])
	assert.Equal(t, 1, counts[artifact.Registry])
	assert.Equal(t, 1, counts[artifact.Other])

	body, err := afero.ReadFile(fs, "/data/evtx/Case01/Security.evtx")
	require.NoError(t, err)
	assert.Equal(t, "evtx-data", string(body))

	// Copy mode keeps the source.
	exists, _ := afero.Exists(fs, "/evidence/Security.evtx")
	assert.True(t, exists)
}

func TestOrganizeMoveRemovesSourceAfterCopy(t *testing.T) {
	fs := afero.NewMemMapFs()
	seedSource(t, fs)
	org := New(fs, testRoots())

	report, err := org.Organize("/evidence", "Case01", true)
	require.NoError(t, err)
	assert.Empty(t, report.Failed)

	for _, tr := range report.Transfers {
		srcExists, _ := afero.Exists(fs, tr.Source)
		destExists, _ := afero.Exists(fs, tr.Dest)
		assert.False(t, srcExists, "source %s should be gone", tr.Source)
		assert.True(t, destExists, "dest %s should exist", tr.Dest)
	}
}

// A file is never present in neither location: on a failed copy the source
// survives and the partial destination is removed.
func TestOrganizeMoveKeepsSourceOnCopyFailure(t *testing.T) {
	base := afero.NewMemMapFs()
	seedSource(t, base)
	fs := &failingFs{Fs: base, failPath: "/data/evtx/Case01/Security.evtx"}
	org := New(fs, testRoots())

	report, err := org.Organize("/evidence", "Case01", true)
	require.NoError(t, err)
	require.Contains(t, report.Failed, "/evidence/Security.evtx")

	srcExists, _ := afero.Exists(base, "/evidence/Security.evtx")
	assert.True(t, srcExists, "source must survive a failed transfer")
}

func TestOrganizeMissingSource(t *testing.T) {
	org := New(afero.NewMemMapFs(), testRoots())
	_, err := org.Organize("/nope", "Case01", false)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrSourceNotFound))
}

func TestOrganizeDuplicateNames(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/evidence/a/Security.evtx", []byte("one"), 0o644))
	require.NoError(t, afero.WriteFile(fs, "/evidence/b/Security.evtx", []byte("two"), 0o644))
	org := New(fs, testRoots())

	report, err := org.Organize("/evidence", "Case01", false)
	require.NoError(t, err)
	require.Len(t, report.Transfers, 2)

	first, _ := afero.Exists(fs, "/data/evtx/Case01/Security.evtx")
	second, _ := afero.Exists(fs, "/data/evtx/Case01/Security_1.evtx")
	assert.True(t, first)
	assert.True(t, second)
}

func TestListCasesAfterOrganize(t *testing.T) {
	fs := afero.NewMemMapFs()
	seedSource(t, fs)
	org := New(fs, testRoots())

	_, err := org.Organize("/evidence", "CaseX", false)
	require.NoError(t, err)

	cases, err := org.ListCases()
	require.NoError(t, err)
	require.Len(t, cases, 1)
	assert.Equal(t, "CaseX", cases[0].Name)
	assert.Equal(t, 1, cases[0].Files[artifact.Evtx])
}

func TestListCasesEmpty(t *testing.T) {
	org := New(afero.NewMemMapFs(), testRoots())
	cases, err := org.ListCases()
	require.NoError(t, err)
	assert.Empty(t, cases)
}

// failingFs rejects writes to one destination path.
type failingFs struct {
	afero.Fs
	failPath string
}

func (f *failingFs) OpenFile(name string, flag int, perm os.FileMode) (afero.File, error) {
	if name == f.failPath && flag&os.O_CREATE != 0 {
		return nil, errors.New("disk full")
	}
	return f.Fs.OpenFile(name, flag, perm)
}
