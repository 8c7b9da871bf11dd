package main

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abelbrown/postboard/internal/config"
)

func TestWriteConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "config.yaml")
	c := config.DefaultConfig()
	c.API.BaseURL = "http://localhost:8080"
	c.API.SkipProbe = true

	var out bytes.Buffer
	require.NoError(t, writeConfig(&out, c, path, false))
	assert.Contains(t, out.String(), path)

	got, err := config.Load(config.New(), path)
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080", got.API.BaseURL)
	assert.True(t, got.API.SkipProbe)

	err = writeConfig(&out, c, path, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")

	c.API.TotalPages = 3
	require.NoError(t, writeConfig(&out, c, path, true))
	got, err = config.Load(config.New(), path)
	require.NoError(t, err)
	assert.Equal(t, 3, got.API.TotalPages)
}
