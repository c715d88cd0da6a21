package logging

import (
	"log"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetup_WritesToFile(t *testing.T) {
	t.Cleanup(func() { log.SetOutput(os.Stderr) })

	path := filepath.Join(t.TempDir(), "api.log")
	closer := Setup(Options{File: path, MaxSizeMB: 1, MaxBackups: 1, MaxAgeDays: 1})

	log.Printf("[INFO] hello from test")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "[INFO] hello from test")
}

func TestSetup_NoFile(t *testing.T) {
	t.Cleanup(func() { log.SetOutput(os.Stderr) })
	assert.NoError(t, Setup(Options{}).Close())
}
