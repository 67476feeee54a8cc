package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const tripSnapshot = `
members: [U1, U2, U3]
expenses:
  - description: Dinner
    amount: 90
    payer: U1
    date: 2024-05-01
    split: equal
  - description: Museum
    amount: "60.00"
    payer: U2
    date: 2024-05-02
    shares:
      - {member: U1, amount: 20}
      - {member: U2, amount: 20}
      - {member: U3, amount: 20}
settlements:
  - {from: U3, to: U1, amount: 30}
`

func writeSnapshot(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "snapshot.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func runCmd(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

type edgeJSON struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Amount string `json:"amount"`
}

func edgeStrings(edges []edgeJSON) []string {
	out := make([]string, len(edges))
	for i, e := range edges {
		out[i] = e.From + "->" + e.To + " " + e.Amount
	}
	return out
}

func TestBalancesJSON(t *testing.T) {
	path := writeSnapshot(t, tripSnapshot)

	out, err := runCmd(t, "", "balances", "-f", path, "--settled", "-o", "json")
	require.NoError(t, err)

	var got struct {
		Debts       []edgeJSON `json:"debts"`
		Outstanding []edgeJSON `json:"outstanding"`
		Positions   []struct {
			Member string `json:"member"`
			Net    string `json:"net"`
		} `json:"positions"`
		TotalSpent string `json:"total_spent"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &got))

	assert.Equal(t, []string{"U2->U1 10.00", "U3->U1 30.00", "U3->U2 20.00"}, edgeStrings(got.Debts))
	assert.Equal(t, []string{"U2->U1 10.00", "U3->U2 20.00"}, edgeStrings(got.Outstanding))
	require.Len(t, got.Positions, 3)
	assert.Equal(t, "40.00", got.Positions[0].Net)
	assert.Equal(t, "10.00", got.Positions[1].Net)
	assert.Equal(t, "-50.00", got.Positions[2].Net)
	assert.Equal(t, "150.00", got.TotalSpent)
}

func TestBalancesWithoutSettledOmitsOutstanding(t *testing.T) {
	path := writeSnapshot(t, tripSnapshot)

	out, err := runCmd(t, "", "balances", "-f", path, "-o", "json")
	require.NoError(t, err)
	assert.NotContains(t, out, "outstanding")
}

func TestBalancesFullySettledKeepsOutstanding(t *testing.T) {
	path := writeSnapshot(t, `
members: [U1, U2]
expenses:
  - {description: Taxi, amount: 40, payer: U1, date: 2024-05-01, split: equal}
settlements:
  - {from: U2, to: U1, amount: 20}
`)

	out, err := runCmd(t, "", "balances", "-f", path, "--settled", "-o", "json")
	require.NoError(t, err)

	var got map[string]json.RawMessage
	require.NoError(t, json.Unmarshal([]byte(out), &got), out)
	require.Contains(t, got, "outstanding")
	assert.JSONEq(t, `[]`, string(got["outstanding"]))
	assert.JSONEq(t, `[{"from":"U2","to":"U1","amount":"20.00"}]`, string(got["debts"]))
}

func TestBalancesText(t *testing.T) {
	path := writeSnapshot(t, tripSnapshot)

	out, err := runCmd(t, "", "balances", "-f", path, "--settled")
	require.NoError(t, err)
	assert.Regexp(t, `U3 owes U1\s+30\.00`, out)
	assert.Contains(t, out, "Outstanding:")
	assert.Contains(t, out, "Total spent: 150.00")
}

func TestBalancesFromStdinJSON(t *testing.T) {
	snap := `{"expenses":[{"description":"Taxi","amount":"10","payer":"A","date":"2024-01-01","split":"equal","between":["A","B"]}]}`

	out, err := runCmd(t, snap, "balances", "-f", "-", "-o", "json")
	require.NoError(t, err)
	assert.Contains(t, out, `"from": "B"`)
	assert.Contains(t, out, `"amount": "5.00"`)
}

func TestBalancesEmptySnapshot(t *testing.T) {
	path := writeSnapshot(t, "members: [A, B]\n")

	out, err := runCmd(t, "", "balances", "-f", path, "-o", "json")
	require.NoError(t, err)
	assert.Contains(t, out, `"debts": []`)
}

func TestSettled(t *testing.T) {
	path := writeSnapshot(t, tripSnapshot)

	out, err := runCmd(t, "", "settled", "--from", "U3", "--to", "U1", "-f", path)
	require.NoError(t, err)
	assert.Equal(t, "U3 -> U1: 30.00\n", out)

	out, err = runCmd(t, "", "settled", "--from", "U1", "--to", "U3", "-f", path)
	require.NoError(t, err)
	assert.Equal(t, "U1 -> U3: -30.00\n", out)

	out, err = runCmd(t, "", "settled", "--from", "U1", "--to", "U2", "-f", path)
	require.NoError(t, err)
	assert.Equal(t, "U1 -> U2: 0.00\n", out)
}

func TestCommandErrors(t *testing.T) {
	path := writeSnapshot(t, tripSnapshot)

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"missing file flag", []string{"balances"}, "snapshot file is required"},
		{"unreadable file", []string{"balances", "-f", filepath.Join(t.TempDir(), "nope.yaml")}, "read snapshot"},
		{"bad output", []string{"balances", "-f", path, "-o", "xml"}, "unsupported output format"},
		{"settled without members", []string{"settled", "-f", path}, "--from and --to"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := runCmd(t, "", tt.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestSnapshotExpenses(t *testing.T) {
	t.Run("equal split with shares", func(t *testing.T) {
		snap, err := parseSnapshot([]byte("expenses:\n  - {amount: 10, payer: A, split: equal, shares: [{member: A, amount: 10}]}\n"))
		require.NoError(t, err)
		_, err = snap.expenses()
		assert.ErrorContains(t, err, "equal split cannot list shares")
	})

	t.Run("unknown split", func(t *testing.T) {
		snap, err := parseSnapshot([]byte("expenses:\n  - {amount: 10, payer: A, split: percent}\n"))
		require.NoError(t, err)
		_, err = snap.expenses()
		assert.ErrorContains(t, err, `unknown split "percent"`)
	})

	t.Run("members derived from expenses", func(t *testing.T) {
		snap, err := parseSnapshot([]byte("expenses:\n  - {amount: 10, payer: B, shares: [{member: A, amount: 10}]}\n"))
		require.NoError(t, err)
		assert.Equal(t, "B", string(snap.members()[0]))
		assert.Equal(t, "A", string(snap.members()[1]))
	})

	t.Run("bad amount", func(t *testing.T) {
		_, err := parseSnapshot([]byte("expenses:\n  - {amount: abc, payer: A}\n"))
		assert.Error(t, err)
	})
}
