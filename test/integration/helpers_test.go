package integration

import (
	"bufio"
	"encoding/json"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func getProjectRoot() (string, error) {
	wd, err := os.Getwd()
	if err != nil {
		return "", err
	}

	// Look for go.mod file to identify project root
	for dir := wd; dir != "/"; dir = filepath.Dir(dir) {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
	}

	return wd, nil
}

func buildPanoptesBinary(t *testing.T, projectRoot string) string {
	binaryPath := filepath.Join(t.TempDir(), "panoptes_test")

	cmd := exec.Command("go", "build", "-o", binaryPath, "./cmd/panoptes")
	cmd.Dir = projectRoot

	output, err := cmd.CombinedOutput()
	if err != nil {
		t.Logf("Build output: %s", string(output))
		require.NoError(t, err, "Failed to build panoptes binary")
	}

	return binaryPath
}

// runPanoptes runs the binary in dir and returns combined output.
func runPanoptes(t *testing.T, binary, dir string, args ...string) string {
	t.Helper()
	cmd := exec.Command(binary, args...)
	cmd.Dir = dir
	output, err := cmd.CombinedOutput()
	if err != nil {
		t.Logf("Command output: %s", string(output))
	}
	require.NoError(t, err, "panoptes %s", strings.Join(args, " "))
	return string(output)
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func parseJSONLFile(t *testing.T, filePath string) []map[string]any {
	file, err := os.Open(filePath)
	require.NoError(t, err)
	defer file.Close()

	var events []map[string]any
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) != "" {
			var event map[string]any
			err := json.Unmarshal([]byte(line), &event)
			require.NoError(t, err, "Failed to parse JSON line: %s", line)
			events = append(events, event)
		}
	}

	require.NoError(t, scanner.Err())
	return events
}
