package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stylebot/server/internal/domain/billing"
)

func writeConfig(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
store:
  driver: memory
log:
  level: error
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append(args, "--config", writeConfig(t)))
	err := cmd.Execute()
	return out.String(), err
}

func TestParseUserID(t *testing.T) {
	id, err := parseUserID("42")
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)

	for _, bad := range []string{"", "0", "-1", "abc"} {
		_, err := parseUserID(bad)
		assert.Error(t, err, bad)
	}
}

func TestQuotaStatusCmd(t *testing.T) {
	out, err := run(t, "quota", "status", "42")
	require.NoError(t, err)

	var status billing.AccountStatus
	require.NoError(t, json.Unmarshal([]byte(out), &status))
	assert.Equal(t, int64(42), status.UserID)
	assert.Equal(t, int64(5), status.Remaining(billing.ServiceImage))
	assert.Equal(t, int64(1), status.Remaining(billing.ServiceVideo))
}

func TestQuotaTopupCmd(t *testing.T) {
	out, err := run(t, "quota", "topup", "42", "video_3")
	require.NoError(t, err)

	var status billing.AccountStatus
	require.NoError(t, json.Unmarshal([]byte(out), &status))
	assert.Equal(t, int64(3), status.Remaining(billing.ServiceVideo))

	_, err = run(t, "quota", "topup", "42", "video_99")
	assert.ErrorIs(t, err, billing.ErrInvalidTopupType)
}

func TestPassActivateCmd(t *testing.T) {
	out, err := run(t, "pass", "activate", "42", "pass_7d")
	require.NoError(t, err)

	var pass billing.Pass
	require.NoError(t, json.Unmarshal([]byte(out), &pass))
	assert.Equal(t, billing.PassWeek, pass.Type)
	assert.Equal(t, int64(300), pass.ImageQuota)

	_, err = run(t, "pass", "activate", "42", "pass_year")
	assert.ErrorIs(t, err, billing.ErrInvalidPassType)
}

func TestQuotaRefundCmd_InvalidArgs(t *testing.T) {
	_, err := run(t, "quota", "refund", "42", "audio", "1")
	assert.ErrorIs(t, err, billing.ErrInvalidService)

	_, err = run(t, "quota", "refund", "42", "image", "0")
	assert.Error(t, err)
}
