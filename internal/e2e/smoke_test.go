package e2e

import (
	"bytes"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSmokeFlow(t *testing.T) {
	home := t.TempDir()
	binaryPath := buildBinary(t)
	require.NoError(t, writeConfigFixture(home))

	stdout, stderr, err := runAFKGuard(t, binaryPath, home, "", "credits", "give", "steve", "15")
	require.NoError(t, err, "stderr: %s", stderr)
	assert.Equal(t, "steve: balance 0 -> 15 min (max 120)\n", stdout)

	input := strings.Join([]string{
		`{"type":"join","session":"steve"}`,
		`{"type":"return","session":"steve"}`,
		`{"type":"quit","session":"steve"}`,
	}, "\n")
	stdout, stderr, err = runAFKGuard(t, binaryPath, home, input, "run")
	require.NoError(t, err, "stderr: %s", stderr)
	assert.Contains(t, stdout, `"result":"NOT_IN_ZONE"`)

	stdout, stderr, err = runAFKGuard(t, binaryPath, home, "", "credits", "show", "steve")
	require.NoError(t, err, "stderr: %s", stderr)
	assert.Contains(t, stdout, "15/120 min")

	stdout, stderr, err = runAFKGuard(t, binaryPath, home, "", "credits", "history", "steve")
	require.NoError(t, err, "stderr: %s", stderr)
	assert.Contains(t, stdout, "ADMIN_GIVE")
}

func buildBinary(t *testing.T) string {
	t.Helper()

	binaryPath := filepath.Join(t.TempDir(), "afkguard-e2e")
	cmd := exec.Command("go", "build", "-o", binaryPath, "./cmd/afkguard")
	cmd.Dir = repoRoot(t)

	output, err := cmd.CombinedOutput()
	require.NoError(t, err, "build afkguard binary: %s", string(output))
	return binaryPath
}

func runAFKGuard(t *testing.T, binaryPath, home, input string, args ...string) (string, string, error) {
	t.Helper()

	cmd := exec.Command(binaryPath, args...)
	cmd.Env = append(os.Environ(), "HOME="+home, "AFKGUARD_CONFIG=")
	cmd.Stdin = strings.NewReader(input)

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	return stdout.String(), stderr.String(), err
}

func repoRoot(t *testing.T) string {
	t.Helper()

	wd, err := os.Getwd()
	require.NoError(t, err)
	return filepath.Clean(filepath.Join(wd, "..", ".."))
}

func writeConfigFixture(home string) error {
	configDir := filepath.Join(home, ".afkguard")
	if err := os.MkdirAll(configDir, 0o700); err != nil {
		return err
	}

	config := `
[logging]
level = "error"
format = "console"
`

	return os.WriteFile(filepath.Join(configDir, "afkguard.toml"), []byte(config), 0o600)
}
