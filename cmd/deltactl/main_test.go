package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandTree(t *testing.T) {
	for _, path := range [][]string{
		{"migrate"},
		{"rules", "seed"},
		{"rules", "list"},
		{"wallet", "freeze"},
		{"wallet", "unfreeze"},
		{"tx", "reverse"},
	} {
		cmd, rest, err := rootCmd.Find(path)
		require.NoError(t, err, path)
		assert.Empty(t, rest, path)
		assert.Equal(t, path[len(path)-1], cmd.Name())
	}
}

func TestReverseRequiresValidID(t *testing.T) {
	err := runTxReverse(txReverseCmd, []string{"not-a-uuid"})
	assert.ErrorContains(t, err, "invalid transaction id")
}

func TestReadRules(t *testing.T) {
	require.NoError(t, rulesSeedCmd.Flags().Set("file", ""))
	rules, err := readRules(rulesSeedCmd)
	require.NoError(t, err)
	assert.Nil(t, rules)

	path := filepath.Join(t.TempDir(), "rules.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[[rule]]
name = "correct_answer"
description = "Correct answer"
amount = "7.50"

[[rule]]
name = "perfect_practice"
amount = 60
active = false
[rule.conditions]
min_accuracy = 100
`), 0o600))

	require.NoError(t, rulesSeedCmd.Flags().Set("file", path))
	defer rulesSeedCmd.Flags().Set("file", "")

	rules, err = readRules(rulesSeedCmd)
	require.NoError(t, err)
	require.Len(t, rules, 2)
	assert.Equal(t, "7.50", rules[0].Amount.StringFixed(2))
	assert.False(t, rules[1].IsActive)
	assert.EqualValues(t, 100, rules[1].Conditions["min_accuracy"])

	require.NoError(t, rulesSeedCmd.Flags().Set("file", filepath.Join(t.TempDir(), "missing.toml")))
	_, err = readRules(rulesSeedCmd)
	assert.Error(t, err)
}
