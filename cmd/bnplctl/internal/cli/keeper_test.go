package cli

import (
	"bytes"
	"encoding/json"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/bnpl/keeper"
)

func TestKeeperRunAfterScenario(t *testing.T) {
	buf := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(buf)
	cmd.SetErr(io.Discard)
	cmd.SetArgs([]string{"--format", "json", "keeper", "run", "--scenario", "testdata/checkout.yaml", "billing", "aging"})
	require.NoError(t, cmd.Execute())

	var resp struct {
		Status string          `json:"status"`
		Data   []keeper.Report `json:"data"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	require.Len(t, resp.Data, 2)

	// alice is hard frozen, so billing skips her.
	assert.Equal(t, keeper.Report{Job: keeper.JobBilling}, resp.Data[0])
	assert.Equal(t, keeper.JobAging, resp.Data[1].Job)
	assert.Equal(t, 2, resp.Data[1].Seen, "the paid note is no longer aged")
}

func TestKeeperRunLiquidationText(t *testing.T) {
	buf := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(buf)
	cmd.SetErr(io.Discard)
	cmd.SetArgs([]string{"keeper", "run", "--scenario", "testdata/checkout.yaml", "risk", "liquidation"})
	require.NoError(t, cmd.Execute())

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "risk        seen="), lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "liquidation seen="), lines[1])
}

func TestKeeperRunUnknownJob(t *testing.T) {
	cmd := NewRootCommand()
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	cmd.SetArgs([]string{"keeper", "run", "payroll"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "unknown job")
}

func TestKeeperCommandFlags(t *testing.T) {
	cmd := NewKeeperCommand(&RootOptions{Format: "text"})
	assert.NotNil(t, cmd.PersistentFlags().Lookup("scenario"))

	serve, _, err := cmd.Find([]string{"serve"})
	require.NoError(t, err)
	assert.NotNil(t, serve.Flags().Lookup("shutdown-timeout"))
}
