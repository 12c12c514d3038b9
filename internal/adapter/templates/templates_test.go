package templates

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Strob0t/TenantCMS/internal/domain"
)

func TestLoadBuiltins(t *testing.T) {
	r, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, []string{"blog", "landing"}, r.Names())

	d, err := r.Get("landing")
	require.NoError(t, err)
	require.Len(t, d.PageTypes, 1)
	require.Len(t, d.Pages, 1)
	assert.Equal(t, "landing", d.Pages[0].PageType)

	content, ok := d.Pages[0].Content.(map[string]any)
	require.True(t, ok, "nested YAML content decodes to string-keyed maps")
	assert.Contains(t, content, "hero")
}

func TestGetUnknown(t *testing.T) {
	r, err := Load("")
	require.NoError(t, err)
	_, err = r.Get("nope")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestLoadDirectoryOverrides(t *testing.T) {
	dir := t.TempDir()
	custom := `name: landing
page_types:
  - slug: simple
    name: Simple
pages:
  - slug: home
    title: Hi {{tenant-name}}
    page_type: simple
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "landing.yml"), []byte(custom), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("ignored"), 0o600))

	r, err := Load(dir)
	require.NoError(t, err)
	d, err := r.Get("landing")
	require.NoError(t, err)
	assert.Equal(t, "simple", d.PageTypes[0].Slug)
}

func TestLoadRejectsInvalidTemplate(t *testing.T) {
	dir := t.TempDir()
	bad := "name: bad\npages:\n  - slug: home\n    title: Home\n    page_type: missing\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.yaml"), []byte(bad), 0o600))

	_, err := Load(dir)
	assert.ErrorContains(t, err, "unknown page type")
}

func TestLoadMissingDirectory(t *testing.T) {
	r, err := Load(filepath.Join(t.TempDir(), "absent"))
	require.NoError(t, err)
	assert.Len(t, r.Names(), 2)
}
