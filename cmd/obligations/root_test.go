package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	obligationapp "github.com/erp/obligations/internal/application/obligation"
)

// writeConfig points the CLI at a sqlite file inside a temp directory
func writeConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := fmt.Sprintf(`[app]
env = "test"

[database]
driver = "sqlite"
path = %q

[log]
level = "error"
output = "stderr"

[engine]
locale = "en-US"
currency = "USD"
`, filepath.Join(dir, "obligations.db"))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func execute(t *testing.T, configPath string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(append([]string{"--config", configPath}, args...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func mustExecute(t *testing.T, configPath string, args ...string) string {
	t.Helper()
	out, err := execute(t, configPath, args...)
	require.NoError(t, err, "obligations %v", args)
	return out
}

func decode[T any](t *testing.T, out string) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal([]byte(out), &v), out)
	return v
}

func TestRootCmd_Subcommands(t *testing.T) {
	cmd := newRootCmd()
	var names []string
	for _, c := range cmd.Commands() {
		names = append(names, c.Name())
	}
	assert.Subset(t, names, []string{
		"generate", "reconcile", "mark-awaiting", "cancel", "cancel-group", "list", "show", "migrate",
	})
}

func TestMigrateCmd(t *testing.T) {
	cfg := writeConfig(t)

	out := mustExecute(t, cfg, "migrate", "list")
	assert.Contains(t, out, "000001_create_obligations\tdown=true")

	mustExecute(t, cfg, "migrate", "up")
	version := decode[map[string]any](t, mustExecute(t, cfg, "migrate", "version"))
	assert.Equal(t, float64(1), version["version"])
	assert.Equal(t, false, version["dirty"])

	mustExecute(t, cfg, "migrate", "down")
	version = decode[map[string]any](t, mustExecute(t, cfg, "migrate", "version"))
	assert.Equal(t, float64(0), version["version"])
}

func TestMigrateCreateCmd(t *testing.T) {
	cfg := writeConfig(t)
	dir := t.TempDir()

	out := mustExecute(t, cfg, "migrate", "create", "add settlement index", "--dir", dir)
	assert.Contains(t, out, "000001_add_settlement_index.up.sql")

	listed := mustExecute(t, cfg, "migrate", "list", "--dir", dir)
	assert.Contains(t, listed, "000001_add_settlement_index")
}

func TestObligationLifecycle(t *testing.T) {
	cfg := writeConfig(t)
	mustExecute(t, cfg, "migrate", "up")
	counterpartyID := uuid.New()

	schedule := decode[obligationapp.ScheduleResponse](t, mustExecute(t, cfg, "generate",
		"--direction", "RECEIVABLE",
		"--counterparty", counterpartyID.String(),
		"--total", "900.00",
		"--start-date", "2024-01-15",
		"--term", "INSTALLMENT_PLAN",
		"--count", "3",
		"--description", "Annual support",
	))
	require.Len(t, schedule.Obligations, 3)
	first := schedule.Obligations[0]

	awaiting := decode[obligationapp.ObligationResponse](t, mustExecute(t, cfg, "mark-awaiting", first.ID.String()))
	assert.Equal(t, "AWAITING_SETTLEMENT", awaiting.Status)

	preview := decode[obligationapp.ReconciliationResponse](t, mustExecute(t, cfg, "reconcile", first.ID.String(),
		"--amount", "250.00", "--date", "2024-01-20",
		"--strategy", "SPAWN_OBLIGATION", "--spawn-due-date", "2024-04-15",
		"--preview",
	))
	assert.True(t, preview.Preview)
	shown := decode[obligationapp.ObligationResponse](t, mustExecute(t, cfg, "show", first.ID.String()))
	assert.Equal(t, "AWAITING_SETTLEMENT", shown.Status)

	result := decode[obligationapp.ReconciliationResponse](t, mustExecute(t, cfg, "reconcile", first.ID.String(),
		"--amount", "250.00", "--date", "2024-01-20", "--account", "bank-001",
		"--strategy", "SPAWN_OBLIGATION", "--spawn-due-date", "2024-04-15",
	))
	assert.Equal(t, "SHORTFALL", result.Outcome)
	assert.Equal(t, "SETTLED", result.Settled.Status)
	require.Len(t, result.Spawned, 1)
	assert.Equal(t, "50.00", result.Spawned[0].ExpectedAmount)
	assert.Contains(t, result.Message, "250.00")

	list := decode[obligationapp.ListResponse](t, mustExecute(t, cfg, "list",
		"--counterparty", counterpartyID.String(), "--status", "PROVISIONED"))
	assert.Equal(t, int64(3), list.Total)

	cancelled := decode[obligationapp.CancelGroupResponse](t, mustExecute(t, cfg, "cancel-group",
		schedule.GroupID.String(), "--reason", "Contract terminated"))
	assert.Len(t, cancelled.Cancelled, 3)
	assert.Equal(t, 1, cancelled.Skipped)

	_, err := execute(t, cfg, "cancel", first.ID.String(), "--reason", "late")
	assert.Error(t, err)
}

func TestCommands_InvalidArguments(t *testing.T) {
	cfg := writeConfig(t)

	_, err := execute(t, cfg, "show", "not-a-uuid")
	assert.ErrorContains(t, err, "invalid obligation id")

	_, err = execute(t, cfg, "reconcile", uuid.NewString(), "--date", "2024-01-01")
	assert.Error(t, err)

	_, err = execute(t, cfg, "migrate", "step", "two")
	assert.ErrorContains(t, err, "invalid step count")
}
