package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

type (
	// MemberID identifies a participant. Opaque, unique within a group.
	MemberID string

	// GroupID identifies a group of members sharing expenses.
	GroupID string

	Date struct {
		time.Time
	}

	Member struct {
		ID   MemberID `json:"id"`
		Name string   `json:"name"`
	}

	Group struct {
		ID          GroupID   `json:"id"`
		Name        string    `json:"name"`
		Description string    `json:"description,omitempty"`
		Members     []Member  `json:"members"`
		CreatedAt   time.Time `json:"created_at"`
	}

	// Share is the portion of an expense attributed to a member.
	// Negative amounts represent refunds or credits.
	Share struct {
		Member MemberID `json:"member"`
		Amount Money    `json:"amount"`
	}

	Expense struct {
		ID          int64    `json:"id"`
		GroupID     GroupID  `json:"group_id"`
		Description string   `json:"description"`
		Amount      Money    `json:"amount"`
		Payer       MemberID `json:"payer"`
		Date        Date     `json:"date"`
		Shares      []Share  `json:"shares"`
	}

	// Settlement is a real-world payment from From to To that offsets
	// a computed debt.
	Settlement struct {
		ID        int64     `json:"id"`
		GroupID   GroupID   `json:"group_id"`
		From      MemberID  `json:"from"`
		To        MemberID  `json:"to"`
		Amount    Money     `json:"amount"`
		CreatedAt time.Time `json:"created_at"`
	}

	// DebtEdge reads "From owes To Amount". Amount is always positive.
	DebtEdge struct {
		From   MemberID `json:"from"`
		To     MemberID `json:"to"`
		Amount Money    `json:"amount"`
	}
)

var (
	ErrMissingDate       = errors.New("date cannot be zero")
	ErrInvalidDay        = errors.New("invalid day")
	ErrInvalidMonth      = errors.New("invalid month")
	ErrInvalidAmount     = errors.New("invalid amount")
	ErrEmptyDescription  = errors.New("empty description")
	ErrEmptyName         = errors.New("empty name")
	ErrMissingPayer      = errors.New("missing payer")
	ErrMissingMember     = errors.New("missing member")
	ErrNoShares          = errors.New("expense has no shares")
	ErrDuplicateShare    = errors.New("each share must have a unique member")
	ErrNegativeShare     = errors.New("share amount cannot be negative")
	ErrSharesMismatch    = errors.New("the sum of all shares must equal the total amount")
	ErrPayerNotInShares  = errors.New("payer must be included among the share members")
	ErrSelfSettlement    = errors.New("a member cannot settle with themselves")
	ErrDuplicateMember   = errors.New("member already in group")
	ErrUnknownMember     = errors.New("member is not part of the group")
	ErrGroupNotFound     = errors.New("group not found")
	ErrGroupExists       = errors.New("group already exists")
	ErrExpenseNotFound   = errors.New("expense not found")
	ErrDescriptionLength = errors.New("description too long (max 200 characters)")
)

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrMissingDate
	}
	_, month, day := d.Date()
	if day < 1 || day > 31 {
		return ErrInvalidDay
	}
	if month < 1 || month > 12 {
		return ErrInvalidMonth
	}
	return nil
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a date string in YYYY-MM-DD format.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(time.DateOnly, strings.TrimSpace(s))
	if err != nil {
		return Date{}, err
	}
	return Date{Time: t}, nil
}

// String formats the date as YYYY-MM-DD.
func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(time.DateOnly)
}

func (d Date) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Date) UnmarshalText(text []byte) error {
	if len(text) == 0 {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(string(text))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// MarshalJSON shadows the promoted time.Time encoder so dates travel as
// plain YYYY-MM-DD strings.
func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("date must be a YYYY-MM-DD string: %w", err)
	}
	return d.UnmarshalText([]byte(s))
}

// MemberIDs returns the identifiers of the group members in order.
func (g Group) MemberIDs() []MemberID {
	ids := make([]MemberID, len(g.Members))
	for i, m := range g.Members {
		ids[i] = m.ID
	}
	return ids
}

// HasMember reports whether id belongs to the group.
func (g Group) HasMember(id MemberID) bool {
	for _, m := range g.Members {
		if m.ID == id {
			return true
		}
	}
	return false
}

func (g Group) Validate() error {
	if strings.TrimSpace(g.Name) == "" {
		return ErrEmptyName
	}
	seen := make(map[MemberID]struct{}, len(g.Members))
	for _, m := range g.Members {
		if err := m.Validate(); err != nil {
			return err
		}
		if _, ok := seen[m.ID]; ok {
			return fmt.Errorf("%w: %s", ErrDuplicateMember, m.ID)
		}
		seen[m.ID] = struct{}{}
	}
	return nil
}

func (m Member) Validate() error {
	if strings.TrimSpace(string(m.ID)) == "" {
		return ErrMissingMember
	}
	return nil
}

// Validate checks the preconditions of the expense recording workflow.
// The balance engine never calls it: it trusts whatever it is given.
func (e Expense) Validate() error {
	if err := e.Date.Validate(); err != nil {
		return err
	}
	if len(strings.TrimSpace(e.Description)) == 0 {
		return ErrEmptyDescription
	}
	if len(e.Description) > 200 {
		return ErrDescriptionLength
	}
	if err := e.Amount.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(string(e.Payer)) == "" {
		return ErrMissingPayer
	}
	if len(e.Shares) == 0 {
		return ErrNoShares
	}

	var total Money
	payerIncluded := false
	seen := make(map[MemberID]struct{}, len(e.Shares))
	for _, s := range e.Shares {
		if strings.TrimSpace(string(s.Member)) == "" {
			return ErrMissingMember
		}
		if _, ok := seen[s.Member]; ok {
			return ErrDuplicateShare
		}
		seen[s.Member] = struct{}{}
		if s.Amount.IsNegative() {
			return ErrNegativeShare
		}
		if s.Member == e.Payer {
			payerIncluded = true
		}
		total = total.Add(s.Amount)
	}
	if !total.Equal(e.Amount) {
		return fmt.Errorf("%w: shares %s, total %s", ErrSharesMismatch, total, e.Amount)
	}
	if !payerIncluded {
		return ErrPayerNotInShares
	}
	return nil
}

func (s Settlement) Validate() error {
	if strings.TrimSpace(string(s.From)) == "" || strings.TrimSpace(string(s.To)) == "" {
		return ErrMissingMember
	}
	if s.From == s.To {
		return ErrSelfSettlement
	}
	return s.Amount.Validate()
}

// Involves reports whether the settlement was paid or received by id.
func (s Settlement) Involves(id MemberID) bool {
	return s.From == id || s.To == id
}

// SplitEqually divides amount across members so that the shares add up
// exactly to amount. Leftover cents go to the first members in order.
func SplitEqually(amount Money, members []MemberID) []Share {
	if len(members) == 0 {
		return nil
	}
	cents := amount.Cents()
	n := int64(len(members))
	base, rem := cents/n, cents%n

	shares := make([]Share, len(members))
	for i, m := range members {
		c := base
		switch {
		case rem > 0 && int64(i) < rem:
			c++
		case rem < 0 && int64(i) < -rem:
			c--
		}
		shares[i] = Share{Member: m, Amount: MoneyFromCents(c)}
	}
	return shares
}
