package main

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/tally/internal/common"
)

// cliHarness runs tally commands against one temporary database.
type cliHarness struct {
	t  *testing.T
	db string
}

func newHarness(t *testing.T) *cliHarness {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	return &cliHarness{t: t, db: filepath.Join(t.TempDir(), "tally.db")}
}

func (h *cliHarness) runWithInput(stdin string, args ...string) (string, error) {
	h.t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(append([]string{"--db", h.db, "--log-level", "error"}, args...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func (h *cliHarness) run(args ...string) string {
	h.t.Helper()
	out, err := h.runWithInput("", args...)
	require.NoError(h.t, err, "tally %s\n%s", strings.Join(args, " "), out)
	return out
}

func (h *cliHarness) seed() {
	h.run("accounts", "add", "Wallet", "--id", "wallet", "--type", "cash", "--opening", "50")
	h.run("accounts", "add", "Checking", "--id", "bank", "--opening", "1000")
	h.run("categories", "add", "Salary", "--id", "salary", "--type", "income")
	h.run("categories", "add", "Food", "--id", "food")
}

func accountLine(out, name string) string {
	for _, line := range strings.Split(out, "\n") {
		if strings.Contains(line, name) {
			return line
		}
	}
	return ""
}

func TestCLI_LedgerWorkflow(t *testing.T) {
	h := newHarness(t)
	h.seed()

	h.run("tx", "add", "expense", "12.50", "--from", "wallet", "--category", "food", "--date", "2024-05-01", "--id", "t1")
	h.run("tx", "add", "transfer", "100", "--from", "bank", "--to", "wallet", "--date", "2024-05-02", "--id", "t2")

	out := h.run("accounts", "list")
	assert.Contains(t, accountLine(out, "Wallet"), "$137.50")
	assert.Contains(t, accountLine(out, "Checking"), "$900.00")

	assert.Contains(t, h.run("report", "total", "--account", "wallet"), "$87.50")
	assert.Contains(t, h.run("report", "total"), "-$12.50")

	breakdown := h.run("report", "breakdown", "--category-type", "expense")
	assert.Contains(t, breakdown, "Food")
	assert.Contains(t, breakdown, "100.00%")

	listed := h.run("tx", "list", "--from", "2024-05-02", "--to", "2024-05-02")
	assert.Contains(t, listed, "t2")
	assert.NotContains(t, listed, "t1")

	h.run("tx", "edit", "t1", "--amount", "20")
	assert.Contains(t, accountLine(h.run("accounts", "list"), "Wallet"), "$130.00")

	h.run("tx", "delete", "t2")
	out = h.run("accounts", "list")
	assert.Contains(t, accountLine(out, "Wallet"), "$30.00")
	assert.Contains(t, accountLine(out, "Checking"), "$1,000.00")

	assert.Contains(t, h.run("tx", "show", "t1"), "Food")
	assert.Contains(t, h.run("balances", "verify"), "All balances match")
}

func TestCLI_RejectsInvalidTransaction(t *testing.T) {
	h := newHarness(t)
	h.seed()

	_, err := h.runWithInput("", "tx", "add", "income", "10", "--from", "wallet", "--category", "food")
	require.ErrorIs(t, err, common.ErrValidation)

	_, err = h.runWithInput("", "tx", "add", "transfer", "10", "--from", "wallet", "--to", "wallet")
	require.ErrorIs(t, err, common.ErrValidation)

	assert.Contains(t, accountLine(h.run("accounts", "list"), "Wallet"), "$50.00")
}

func TestCLI_DeletePolicies(t *testing.T) {
	h := newHarness(t)
	h.seed()
	h.run("tx", "add", "expense", "20", "--from", "wallet", "--category", "food", "--id", "lunch")

	_, err := h.runWithInput("", "categories", "delete", "food")
	require.ErrorIs(t, err, common.ErrReferenced)

	out, err := h.runWithInput("n\n", "categories", "delete", "food", "--cascade")
	require.NoError(t, err)
	assert.Contains(t, out, "Nothing deleted")
	assert.Contains(t, accountLine(h.run("accounts", "list"), "Wallet"), "$30.00")

	h.run("categories", "delete", "food", "--cascade", "--yes")
	assert.Contains(t, accountLine(h.run("accounts", "list"), "Wallet"), "$50.00")
	assert.NotContains(t, h.run("categories", "list"), "Food")

	h.run("tx", "add", "income", "5", "--from", "wallet", "--category", "salary")
	h.run("accounts", "delete", "wallet", "--reassign-to", "bank")
	assert.Contains(t, accountLine(h.run("accounts", "list"), "Checking"), "$1,005.00")
}

func TestCLI_PrivacyMode(t *testing.T) {
	h := newHarness(t)
	h.seed()
	h.run("tx", "add", "expense", "12.50", "--from", "wallet", "--category", "food")

	h.run("settings", "set", "hide-values", "true")
	hidden := h.run("accounts", "list")
	assert.Contains(t, accountLine(hidden, "Wallet"), "****")
	assert.NotContains(t, hidden, "$37.50")
	assert.NotContains(t, h.run("tx", "list"), "$12.50")
	assert.Contains(t, h.run("tx", "list"), "****")
	assert.Contains(t, h.run("tx", "list", "--reveal"), "-$12.50")

	tests := []struct {
		name string
		args []string
		want []string
	}{
		{name: "total", args: []string{"report", "total"}, want: []string{"-$12.50"}},
		{name: "total for one account", args: []string{"report", "total", "--account", "wallet"}, want: []string{"-$12.50"}},
		{name: "breakdown", args: []string{"report", "breakdown"}, want: []string{"100.00%", "-$12.50"}},
	}
	for _, tt := range tests {
		out := h.run(tt.args...)
		assert.NotContains(t, out, "****", tt.name)
		for _, want := range tt.want {
			assert.Contains(t, out, want, tt.name)
		}
	}

	assert.Contains(t, accountLine(h.run("accounts", "list", "--reveal"), "Wallet"), "$37.50")

	h.run("settings", "set", "hide-values", "false")
	h.run("settings", "set", "currency", "€")
	h.run("settings", "set", "currency-position", "suffix")
	assert.Contains(t, accountLine(h.run("accounts", "list"), "Wallet"), "37.50€")
}

func TestCLI_Settings(t *testing.T) {
	h := newHarness(t)

	h.run("settings", "set", "theme", "dark")
	h.run("settings", "set", "reminder", "21:30")
	out := h.run("settings", "show")
	assert.Contains(t, out, "dark")
	assert.Contains(t, out, "21:30")

	_, err := h.runWithInput("", "settings", "set", "theme", "neon")
	require.ErrorIs(t, err, common.ErrValidation)
	_, err = h.runWithInput("", "settings", "set", "volume", "11")
	require.ErrorIs(t, err, common.ErrValidation)
}

func TestCLI_ImportOFX(t *testing.T) {
	h := newHarness(t)
	h.seed()
	file := filepath.Join("testdata", "checking.ofx")

	preview := h.run("import", "ofx", file, "--account", "bank",
		"--income-category", "salary", "--expense-category", "food", "--dry-run")
	assert.Contains(t, preview, "2024011501")
	assert.Contains(t, accountLine(h.run("accounts", "list"), "Checking"), "$1,000.00")

	out := h.run("import", "ofx", file, "--account", "bank",
		"--income-category", "salary", "--expense-category", "food")
	assert.Contains(t, out, "Imported: 4")
	assert.Contains(t, accountLine(h.run("accounts", "list"), "Checking"), "$1,849.50")

	out = h.run("import", "ofx", file, "--account", "bank",
		"--income-category", "salary", "--expense-category", "food")
	assert.Contains(t, out, "Imported: 0")
	assert.Contains(t, accountLine(h.run("accounts", "list"), "Checking"), "$1,849.50")
}

func TestCLI_MigrateStatus(t *testing.T) {
	h := newHarness(t)
	h.run("migrate")
	out := h.run("migrate", "--status")
	assert.Contains(t, out, "Current version: 2")
	assert.Contains(t, out, "Latest version:  2")
}

func TestCLI_Version(t *testing.T) {
	h := newHarness(t)
	assert.Contains(t, h.run("version"), "tally dev")
}

func TestCLI_BackupAndRestore(t *testing.T) {
	h := newHarness(t)
	h.seed()

	assert.Contains(t, h.run("backup", "list"), "No backups yet")
	assert.Contains(t, h.run("backup", "create", "seeded", "-m", "after setup"), `Created backup "seeded"`)

	h.run("accounts", "add", "Savings", "--id", "savings")
	h.run("categories", "delete", "food", "--cascade", "--yes")

	list := h.run("backup", "list")
	assert.Contains(t, list, "seeded")
	assert.Contains(t, list, "auto-delete-category")

	out, err := h.runWithInput("n\n", "backup", "restore", "seeded")
	require.NoError(t, err)
	assert.Contains(t, out, "Nothing restored")

	assert.Contains(t, h.run("backup", "restore", "seeded", "--yes"), `Restored backup "seeded"`)
	accounts := h.run("accounts", "list")
	assert.NotContains(t, accounts, "Savings")
	assert.Contains(t, h.run("categories", "list"), "Food")

	_, err = h.runWithInput("", "backup", "delete", "missing")
	require.ErrorIs(t, err, common.ErrNotFound)
}
