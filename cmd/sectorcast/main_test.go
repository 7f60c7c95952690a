package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/paveg/sectorcast/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	configPath, verbose, predictInput, predictOutput = "", false, "", "predictions.csv"

	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func writeConfig(t *testing.T) (string, string) {
	t.Helper()
	dir := t.TempDir()
	raw := testutil.WriteRawFixture(t, filepath.Join(dir, "raw"))

	cfg := "raw_data_dir: " + raw + "\n" +
		"train_output_path: " + filepath.Join(dir, "out", "train.csv") + "\n" +
		"test_output_path: " + filepath.Join(dir, "out", "test.csv") + "\n" +
		"scaler_path: " + filepath.Join(dir, "model", "scaler.json") + "\n" +
		"model_dir: " + filepath.Join(dir, "model") + "\n" +
		"workers: 2\n"
	path := filepath.Join(dir, "sectorcast.yaml")
	require.NoError(t, os.WriteFile(path, []byte(cfg), 0o600))
	return path, dir
}

func TestCommands(t *testing.T) {
	cfgPath, dir := writeConfig(t)

	out, err := execute(t, "build", "--config", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, out, "train: 1 rows")
	assert.Contains(t, out, "test:  4 rows")

	out, err = execute(t, "build", "--config", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, out, "nothing to do")

	out, err = execute(t, "train", "-c", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, out, "ridge")
	assert.Contains(t, out, "best:")

	predictions := filepath.Join(dir, "predictions.csv")
	out, err = execute(t, "predict", "-c", cfgPath, "-i", filepath.Join(dir, "out", "test.csv"), "-o", predictions)
	require.NoError(t, err)
	assert.Contains(t, out, "4 predictions")
	assert.FileExists(t, predictions)
}

func TestPredictRequiresInput(t *testing.T) {
	_, err := execute(t, "predict")
	assert.Error(t, err)
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "sectorcast")
	assert.Contains(t, out, "Go Version:")
}

func TestInvalidConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("workers: -1\n"), 0o600))

	_, err := execute(t, "build", "--config", path)
	assert.ErrorContains(t, err, "invalid configuration")
}
