// Package http provides HTTP server and handler implementations.
//
// This file implements utilities for decoding and validating request
// bodies and parameters.

package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"conti/internal/core"
)

// maxBodyBytes bounds every JSON request body.
const maxBodyBytes = 1 << 20

// SplitEqual asks the server to divide the amount evenly.
const SplitEqual = "equal"

type createGroupRequest struct {
	Name        string        `json:"name"`
	Description string        `json:"description"`
	Members     []core.Member `json:"members"`
}

type expenseRequest struct {
	Description string          `json:"description"`
	Amount      core.Money      `json:"amount"`
	Payer       core.MemberID   `json:"payer"`
	Date        core.Date       `json:"date"`
	Split       string          `json:"split"`
	Members     []core.MemberID `json:"members"`
	Shares      []core.Share    `json:"shares"`
}

type settlementRequest struct {
	From   core.MemberID `json:"from"`
	To     core.MemberID `json:"to"`
	Amount core.Money    `json:"amount"`
}

// decodeJSON reads a single JSON object into dst, rejecting unknown
// fields and trailing data.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxErr):
			return fmt.Errorf("%w: body larger than %d bytes", errBadRequest, maxErr.Limit)
		case errors.Is(err, io.EOF):
			return fmt.Errorf("%w: empty body", errBadRequest)
		default:
			return fmt.Errorf("%w: invalid JSON: %v", errBadRequest, err)
		}
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: body must contain a single JSON object", errBadRequest)
	}
	return nil
}

// toExpense builds the expense described by req for group g. Amounts are
// rounded to cents. An equal split covers req.Members, or every group member
// when none are listed. A missing date means today.
func (req expenseRequest) toExpense(g core.Group, now time.Time) (core.Expense, error) {
	e := core.Expense{
		GroupID:     g.ID,
		Description: sanitizeInput(req.Description),
		Amount:      req.Amount.RoundCents(),
		Payer:       core.MemberID(strings.TrimSpace(string(req.Payer))),
		Date:        req.Date,
	}
	if e.Date.IsZero() {
		y, m, d := now.Date()
		e.Date = core.NewDate(y, int(m), d)
	}

	switch strings.ToLower(strings.TrimSpace(req.Split)) {
	case SplitEqual:
		if len(req.Shares) > 0 {
			return core.Expense{}, fmt.Errorf("%w: equal split does not take explicit shares", errBadRequest)
		}
		members := req.Members
		if len(members) == 0 {
			members = g.MemberIDs()
		}
		e.Shares = core.SplitEqually(e.Amount, members)
	case "", "exact":
		if len(req.Members) > 0 {
			return core.Expense{}, fmt.Errorf("%w: members is only used with an equal split", errBadRequest)
		}
		for _, sh := range req.Shares {
			e.Shares = append(e.Shares, core.Share{Member: sh.Member, Amount: sh.Amount.RoundCents()})
		}
	default:
		return core.Expense{}, fmt.Errorf("%w: unknown split %q", errBadRequest, req.Split)
	}
	return e, nil
}

// sanitizeInput removes control characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}

func groupIDParam(r *http.Request) core.GroupID {
	return core.GroupID(chi.URLParam(r, "groupID"))
}

func expenseIDParam(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "expenseID")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid expense id %q", errBadRequest, raw)
	}
	return id, nil
}

// requiredQuery returns the trimmed query parameter or a bad request error.
func requiredQuery(r *http.Request, name string) (string, error) {
	v := strings.TrimSpace(r.URL.Query().Get(name))
	if v == "" {
		return "", fmt.Errorf("%w: missing query parameter %q", errBadRequest, name)
	}
	return v, nil
}
