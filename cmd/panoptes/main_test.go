package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(append(args, "--config", filepath.Join(t.TempDir(), "absent.yaml")))
	err := rootCmd.Execute()
	return out.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "Panoptes "+Version)
}

func TestSchemaCommand(t *testing.T) {
	out, err := execute(t, "schema", "--engine", "sqlite", "--table", "audit_events")
	require.NoError(t, err)
	assert.Contains(t, out, "CREATE TABLE IF NOT EXISTS audit_events")

	_, err = execute(t, "schema", "--engine", "db2")
	assert.Error(t, err)
}

func TestCreateTableCommand(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "audit.db")

	out, err := execute(t, "create-table", "--engine", "sqlite", "--dsn", dsn, "--table", "audit_events")
	require.NoError(t, err)
	assert.Contains(t, out, "created audit_events")

	out, err = execute(t, "create-table", "--engine", "sqlite", "--dsn", dsn, "--table", "audit_events")
	require.NoError(t, err)
	assert.Contains(t, out, "already exists")

	_, err = os.Stat(dsn)
	require.NoError(t, err)
}
