package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bnema/afkguard/internal/domain"
	"github.com/bnema/afkguard/internal/version"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVersionPrintsBuildVersion(t *testing.T) {
	home := t.TempDir()

	stdout, _, err := executeCLI(t, home, "version")
	require.NoError(t, err)
	assert.Equal(t, version.Version+"\n", stdout)
}

func TestCreditsGiveTakeAndShow(t *testing.T) {
	home := t.TempDir()
	require.NoError(t, writeConfigFixture(home, ""))

	stdout, _, err := executeCLI(t, home, "credits", "give", "steve", "30")
	require.NoError(t, err)
	assert.Equal(t, "steve: balance 0 -> 30 min (max 120)\n", stdout)

	stdout, _, err = executeCLI(t, home, "credits", "take", "steve", "50")
	require.NoError(t, err)
	assert.Equal(t, "steve: balance 30 -> 0 min (max 120)\n", stdout)

	stdout, _, err = executeCLI(t, home, "credits", "take", "steve", "5")
	require.NoError(t, err)
	assert.Equal(t, "steve: balance unchanged at 0 min (max 120)\n", stdout)

	stdout, _, err = executeCLI(t, home, "credits", "set", "steve", "500")
	require.NoError(t, err)
	assert.Equal(t, "steve: balance 0 -> 120 min (max 120)\n", stdout)

	stdout, _, err = executeCLI(t, home, "credits", "show", "steve")
	require.NoError(t, err)
	assert.Contains(t, stdout, "sessions: 1")
	assert.Contains(t, stdout, "steve (default)")
	assert.Contains(t, stdout, "120/120 min")
}

func TestCreditsTierComesFromConfiguredGrants(t *testing.T) {
	home := t.TempDir()
	require.NoError(t, writeConfigFixture(home, `
[[permissions.grants]]
session = "alex"
permissions = ["afkguard.tier.vip"]
`))

	stdout, _, err := executeCLI(t, home, "credits", "set", "alex", "200")
	require.NoError(t, err)
	assert.Equal(t, "alex: balance 0 -> 200 min (max 240)\n", stdout)

	stdout, _, err = executeCLI(t, home, "credits", "list")
	require.NoError(t, err)
	assert.Contains(t, stdout, "alex (vip)")
	assert.Contains(t, stdout, "200/240 min")
}

func TestCreditsResetAndListJSON(t *testing.T) {
	home := t.TempDir()
	require.NoError(t, writeConfigFixture(home, ""))

	_, _, err := executeCLI(t, home, "credits", "give", "alex", "10")
	require.NoError(t, err)
	_, _, err = executeCLI(t, home, "credits", "give", "steve", "20")
	require.NoError(t, err)

	stdout, _, err := executeCLI(t, home, "credits", "reset", "steve")
	require.NoError(t, err)
	assert.Equal(t, "steve: balance 20 -> 0 min (max 120)\n", stdout)

	stdout, _, err = executeCLI(t, home, "credits", "list", "--json")
	require.NoError(t, err)
	assert.True(t, json.Valid([]byte(stdout)))

	var rows []struct {
		Account struct {
			SessionID      string
			BalanceMinutes int
		}
		Max int
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &rows))
	require.Len(t, rows, 2)
	assert.Equal(t, "alex", rows[0].Account.SessionID)
	assert.Equal(t, 10, rows[0].Account.BalanceMinutes)
	assert.Equal(t, "steve", rows[1].Account.SessionID)
	assert.Equal(t, 0, rows[1].Account.BalanceMinutes)
}

func TestCreditsHistoryNewestFirst(t *testing.T) {
	home := t.TempDir()
	require.NoError(t, writeConfigFixture(home, ""))

	_, _, err := executeCLI(t, home, "credits", "give", "steve", "30")
	require.NoError(t, err)
	_, _, err = executeCLI(t, home, "credits", "take", "steve", "10")
	require.NoError(t, err)

	stdout, _, err := executeCLI(t, home, "credits", "history", "steve")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Credit history: steve")
	assert.Contains(t, stdout, "entries: 2")

	take := strings.Index(stdout, "ADMIN_TAKE")
	give := strings.Index(stdout, "ADMIN_GIVE")
	require.NotEqual(t, -1, take)
	require.NotEqual(t, -1, give)
	assert.Less(t, take, give)
}

func TestCreditsHistoryNeedsSQLite(t *testing.T) {
	home := t.TempDir()
	require.NoError(t, writeConfigFixture(home, `
[storage]
backend = "toml"
`))

	_, _, err := executeCLI(t, home, "credits", "give", "steve", "5")
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(home, ".afkguard", "credits.toml"))

	_, _, err = executeCLI(t, home, "credits", "history", "steve")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "needs the sqlite storage backend")
}

func TestCreditsRejectsBadInput(t *testing.T) {
	home := t.TempDir()
	require.NoError(t, writeConfigFixture(home, ""))

	_, _, err := executeCLI(t, home, "credits", "give", "--", "steve", "-3")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)
	assert.Contains(t, err.Error(), "minutes -3")

	_, _, err = executeCLI(t, home, "credits", "give", "steve", "lots")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `parse minutes "lots"`)

	_, _, err = executeCLI(t, home, "credits", "show", "nobody")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "credit account not found")
}

func TestCreditsFallsBackToTOMLWhenSQLiteCannotOpen(t *testing.T) {
	home := t.TempDir()
	blocker := filepath.Join(home, "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("not a directory"), 0o600))
	require.NoError(t, writeConfigFixture(home, `
[storage]
backend = "sqlite"
sqlite_path = "`+filepath.ToSlash(filepath.Join(blocker, "credits.db"))+`"
`))

	stdout, _, err := executeCLI(t, home, "credits", "give", "steve", "15")
	require.NoError(t, err)
	assert.Equal(t, "steve: balance 0 -> 15 min (max 120)\n", stdout)
	assert.FileExists(t, filepath.Join(home, ".afkguard", "credits.toml"))
	assert.NoFileExists(t, filepath.Join(blocker, "credits.db"))

	stdout, _, err = executeCLI(t, home, "credits", "show", "steve")
	require.NoError(t, err)
	assert.Contains(t, stdout, "15/120 min")

	_, _, err = executeCLI(t, home, "credits", "history", "steve")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrHistoryUnsupported)
	assert.Contains(t, err.Error(), "needs the sqlite storage backend")
}

func TestCreditsAdminCommandsRefusedWhileDisabled(t *testing.T) {
	home := t.TempDir()
	require.NoError(t, writeConfigFixture(home, `
[credits]
enabled = false
`))

	for _, args := range [][]string{
		{"credits", "give", "steve", "5"},
		{"credits", "take", "steve", "5"},
		{"credits", "set", "steve", "5"},
		{"credits", "reset", "steve"},
	} {
		_, _, err := executeCLI(t, home, args...)
		require.Error(t, err, args)
		assert.ErrorIs(t, err, domain.ErrCreditsDisabled, args)
	}

	stdout, _, err := executeCLI(t, home, "credits", "list")
	require.NoError(t, err)
	assert.Contains(t, stdout, "sessions: 0")
}

func TestInvalidConfigFailsCommands(t *testing.T) {
	home := t.TempDir()
	require.NoError(t, writeConfigFixture(home, `
[action]
mode = "ban"
`))

	_, _, err := executeCLI(t, home, "credits", "list")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load config")
}

func TestConfigFlagOverridesDefaultLocation(t *testing.T) {
	home := t.TempDir()
	path := filepath.Join(t.TempDir(), "custom.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[logging]
level = "error"

[storage]
backend = "toml"
path = "`+filepath.Join(home, "elsewhere.toml")+`"
`), 0o600))

	_, _, err := executeCLI(t, home, "--config", path, "credits", "give", "steve", "1")
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(home, "elsewhere.toml"))
}

func TestRunProcessesStdinEvents(t *testing.T) {
	home := t.TempDir()
	require.NoError(t, writeConfigFixture(home, ""))

	input := strings.Join([]string{
		`{"type":"join","session":"steve"}`,
		`{"type":"activity","session":"steve","kind":"chat"}`,
		`{"type":"return","session":"steve"}`,
		`{"type":"dance","session":"steve"}`,
	}, "\n")

	stdout, _, err := executeCLIWithInput(t, home, input, "run")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(stdout), "\n")
	require.Len(t, lines, 2)
	assert.JSONEq(t, `{"type":"return_result","session":"steve","result":"NOT_IN_ZONE"}`, lines[0])
	assert.Contains(t, lines[1], `"type":"error"`)

	stdout, _, err = executeCLI(t, home, "credits", "show", "steve")
	require.NoError(t, err)
	assert.Contains(t, stdout, "steve (default)")
}

func executeCLI(t *testing.T, home string, args ...string) (string, string, error) {
	t.Helper()
	return executeCLIWithInput(t, home, "", args...)
}

func executeCLIWithInput(t *testing.T, home, input string, args ...string) (string, string, error) {
	t.Helper()
	t.Setenv("HOME", home)
	t.Setenv(configEnv, "")

	root := newRootCmd()
	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}
	root.SetIn(strings.NewReader(input))
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.SetArgs(args)

	err := root.Execute()
	return stdout.String(), stderr.String(), err
}

func writeConfigFixture(home, extra string) error {
	configDir := filepath.Join(home, ".afkguard")
	if err := os.MkdirAll(configDir, 0o700); err != nil {
		return err
	}

	config := `
[logging]
level = "error"
` + extra

	return os.WriteFile(filepath.Join(configDir, "afkguard.toml"), []byte(config), 0o600)
}
