package cli

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRulesCmd_ListsShippedRulesInOrder(t *testing.T) {
	out, err := execute(t, "rules", "--config", filepath.Join(t.TempDir(), "absent.toml"))
	require.NoError(t, err)

	assert.Contains(t, out, "Classification Rules")

	granted := strings.Index(out, "reward-granted")
	awaiting := strings.Index(out, "awaiting-outcome")
	fallback := strings.Index(out, "fallback")
	require.NotEqual(t, -1, granted)
	require.NotEqual(t, -1, awaiting)
	require.NotEqual(t, -1, fallback)
	assert.Less(t, granted, awaiting, "lower priority number prints first")
	assert.Less(t, awaiting, fallback)

	assert.Contains(t, out, `when description eq "berhasil"`)
	assert.Contains(t, out, "when transaction_at not_before field referral_at")
	assert.Contains(t, out, "always matches")
}

func TestRulesCmd_ListsConfiguredRules(t *testing.T) {
	cfg := writeConfig(t, `
[[rules]]
name = "only-rule"
priority = 5
classification = "valid"
score = 0.5
`)

	out, err := execute(t, "rules", "--config", cfg)
	require.NoError(t, err)

	assert.Contains(t, out, "only-rule")
	assert.Contains(t, out, "always matches")
	assert.NotContains(t, out, "reward-granted", "configured rules replace the shipped set")
}
