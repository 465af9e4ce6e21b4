package commands_test

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleared-dev/freightbooks/internal/commands"
	"github.com/cleared-dev/freightbooks/internal/config"
)

// run executes the CLI in-process and returns stdout.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := commands.NewRootCommand()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

// books initializes a fresh set of books and returns a runner bound to
// its config file.
func books(t *testing.T) func(args ...string) (string, error) {
	t.Helper()
	dir := t.TempDir()
	_, err := run(t, "init", dir, "--name", "Test Freight")
	require.NoError(t, err)
	cfgPath := filepath.Join(dir, config.FileName)
	return func(args ...string) (string, error) {
		return run(t, append([]string{"--config", cfgPath, "--log-level", "error"}, args...)...)
	}
}

func TestInit_CreatesBooks(t *testing.T) {
	dir := t.TempDir()
	out, err := run(t, "init", dir, "--name", "Test Freight")
	require.NoError(t, err)
	assert.Contains(t, out, "Initialized books for Test Freight")

	cfg, err := config.Load(filepath.Join(dir, config.FileName))
	require.NoError(t, err)
	assert.Equal(t, "Test Freight", cfg.Company.Name)

	info, err := os.Stat(filepath.Join(dir, "logs"))
	require.NoError(t, err)
	assert.True(t, info.IsDir())

	info, err = os.Stat(cfg.StorageDir(filepath.Join(dir, config.FileName)))
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestInit_FailsWhenAlreadyInitialized(t *testing.T) {
	dir := t.TempDir()
	_, err := run(t, "init", dir, "--name", "First")
	require.NoError(t, err)

	_, err = run(t, "init", dir, "--name", "Second")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")
}

func TestInit_RequiresName(t *testing.T) {
	_, err := run(t, "init", t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "name")
}

func TestInit_SeedsChartAndFiscalYear(t *testing.T) {
	fb := books(t)

	out, err := fb("account", "list")
	require.NoError(t, err)
	for _, n := range []string{"411", "445", "512", "531", "701"} {
		assert.Contains(t, out, n)
	}

	out, err = fb("fiscal", "current")
	require.NoError(t, err)
	assert.Contains(t, out, "open")
}

func TestCommands_FailWithoutBooks(t *testing.T) {
	_, err := run(t, "--config", filepath.Join(t.TempDir(), config.FileName), "account", "list")
	require.Error(t, err)
}

func lines(out string) []string {
	return strings.Split(strings.TrimSpace(out), "\n")
}

func TestRoot_Version(t *testing.T) {
	out, err := run(t, "--version")
	require.NoError(t, err)
	assert.Contains(t, out, "commit:")
}

func TestPostInvoice_HonorsConfiguredAmountScale(t *testing.T) {
	dir := t.TempDir()
	_, err := run(t, "init", dir, "--name", "Test Freight")
	require.NoError(t, err)
	cfgPath := filepath.Join(dir, config.FileName)
	fb := func(args ...string) (string, error) {
		return run(t, append([]string{"--config", cfgPath, "--log-level", "error"}, args...)...)
	}

	out, err := fb("post", "invoice", "--id", "inv-1", "--number", "F-001", "--total", "118.125", "--tax", "18.125")
	require.NoError(t, err)
	assert.Contains(t, out, "No entry posted")

	cfg, err := config.Load(cfgPath)
	require.NoError(t, err)
	scale := int32(3)
	cfg.Posting.AmountScale = &scale
	require.NoError(t, config.Save(cfgPath, cfg))

	out, err = fb("post", "invoice", "--id", "inv-1", "--number", "F-001", "--total", "118.125", "--tax", "18.125")
	require.NoError(t, err)
	assert.Contains(t, out, "118.125")

	out, err = fb("report", "balance", "411")
	require.NoError(t, err)
	assert.Contains(t, out, "118.125")
}
