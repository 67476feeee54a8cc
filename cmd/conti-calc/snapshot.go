package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"conti/internal/core"
)

// snapshot is a group's members, expenses and settlements as read from a
// YAML or JSON file.
type snapshot struct {
	Members     []core.MemberID      `yaml:"members"`
	Expenses    []snapshotExpense    `yaml:"expenses"`
	Settlements []snapshotSettlement `yaml:"settlements"`
}

type snapshotExpense struct {
	Description string        `yaml:"description"`
	Amount      core.Money    `yaml:"amount"`
	Payer       core.MemberID `yaml:"payer"`
	Date        core.Date     `yaml:"date"`
	// Split is "equal" or empty; equal splits use Between, else all members.
	Split   string          `yaml:"split"`
	Between []core.MemberID `yaml:"between"`
	Shares  []snapshotShare `yaml:"shares"`
}

type snapshotShare struct {
	Member core.MemberID `yaml:"member"`
	Amount core.Money    `yaml:"amount"`
}

type snapshotSettlement struct {
	From   core.MemberID `yaml:"from"`
	To     core.MemberID `yaml:"to"`
	Amount core.Money    `yaml:"amount"`
}

// loadSnapshot reads path, or stdin when path is "-".
func loadSnapshot(path string, stdin io.Reader) (*snapshot, error) {
	if path == "" {
		return nil, errors.New("snapshot file is required (-f)")
	}
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	return parseSnapshot(data)
}

// parseSnapshot accepts YAML; JSON parses as its subset.
func parseSnapshot(data []byte) (*snapshot, error) {
	var s snapshot
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse snapshot: %w", err)
	}
	return &s, nil
}

// members returns the declared members, or when none are declared every
// member seen in the expenses in order of appearance.
func (s *snapshot) members() []core.MemberID {
	if len(s.Members) > 0 {
		return s.Members
	}
	var out []core.MemberID
	seen := make(map[core.MemberID]struct{})
	add := func(m core.MemberID) {
		if _, ok := seen[m]; ok {
			return
		}
		seen[m] = struct{}{}
		out = append(out, m)
	}
	for _, e := range s.Expenses {
		add(e.Payer)
		for _, sh := range e.Shares {
			add(sh.Member)
		}
		for _, m := range e.Between {
			add(m)
		}
	}
	return out
}

// expenses converts the snapshot's expenses. Shares are taken as given;
// the engine does not require them to add up.
func (s *snapshot) expenses() ([]core.Expense, error) {
	out := make([]core.Expense, 0, len(s.Expenses))
	for i, se := range s.Expenses {
		e := core.Expense{
			ID:          int64(i + 1),
			Description: se.Description,
			Amount:      se.Amount,
			Payer:       se.Payer,
			Date:        se.Date,
		}
		switch strings.ToLower(strings.TrimSpace(se.Split)) {
		case "equal":
			if len(se.Shares) > 0 {
				return nil, fmt.Errorf("expense %d: equal split cannot list shares", i+1)
			}
			between := se.Between
			if len(between) == 0 {
				between = s.members()
			}
			e.Shares = core.SplitEqually(se.Amount, between)
		case "", "exact":
			for _, sh := range se.Shares {
				e.Shares = append(e.Shares, core.Share{Member: sh.Member, Amount: sh.Amount})
			}
		default:
			return nil, fmt.Errorf("expense %d: unknown split %q", i+1, se.Split)
		}
		out = append(out, e)
	}
	return out, nil
}

func (s *snapshot) settlements() []core.Settlement {
	out := make([]core.Settlement, 0, len(s.Settlements))
	for i, ss := range s.Settlements {
		out = append(out, core.Settlement{
			ID:     int64(i + 1),
			From:   ss.From,
			To:     ss.To,
			Amount: ss.Amount,
		})
	}
	return out
}
