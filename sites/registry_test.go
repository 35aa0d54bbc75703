package sites

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/use-agent/figscrape/models"
)

func TestDefault_HasMFC(t *testing.T) {
	r := Default()

	cfg, ok := r.Get("mfc")
	require.True(t, ok)
	assert.NotEmpty(t, cfg.ImageSelector)
	require.NotNil(t, cfg.FieldLayout)
	assert.Equal(t, ".data-field", cfg.FieldLayout.Container)
	require.NotNil(t, cfg.CloudflareDetection)
	assert.Contains(t, cfg.CloudflareDetection.TitleIncludes, "Just a moment")
	assert.Equal(t, 2000, cfg.WaitTime)

	_, ok = r.Get("nope")
	assert.False(t, ok)
}

func TestGet_ReturnsCopy(t *testing.T) {
	r := Default()
	cfg, _ := r.Get("mfc")
	cfg.ImageSelector = "mutated"

	again, _ := r.Get("mfc")
	assert.NotEqual(t, "mutated", again.ImageSelector)
}

func TestLoad_Override(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sites.yaml")
	data := `
sites:
  mfc:
    nameSelector: "h1.title"
  shop:
    nameSelector: ".product-name"
    scaleSelector: ".scale"
    waitTime: 500
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))

	r, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"mfc", "shop"}, r.Keys())

	mfc, _ := r.Get("mfc")
	assert.Equal(t, "h1.title", mfc.NameSelector)
	assert.Nil(t, mfc.FieldLayout, "override replaces the whole entry")

	shop, ok := r.Get("shop")
	require.True(t, ok)
	assert.Equal(t, models.ScrapeConfig{NameSelector: ".product-name", ScaleSelector: ".scale", WaitTime: 500}, *shop)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("sites:\n  x:\n    bogusField: 1\n"), 0o600))
	_, err = Load(path)
	assert.Error(t, err, "unknown fields are rejected")
}

func TestLoad_EmptyPath(t *testing.T) {
	r, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default().Keys(), r.Keys())
}
