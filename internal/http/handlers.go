package http

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"conti/internal/core"
)

func (s *Server) handleListGroups(w http.ResponseWriter, r *http.Request) {
	groups, err := s.deps.Groups.List(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().Body(nonNil(groups)).Write(w)
}

func (s *Server) handleCreateGroup(w http.ResponseWriter, r *http.Request) {
	var req createGroupRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	g, err := s.deps.Groups.CreateGroup(r.Context(), core.Group{
		Name:        sanitizeInput(req.Name),
		Description: sanitizeInput(req.Description),
		Members:     req.Members,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().
		Status(http.StatusCreated).
		Header("Location", "/api/groups/"+string(g.ID)).
		Body(g).
		Write(w)
}

func (s *Server) handleGetGroup(w http.ResponseWriter, r *http.Request) {
	g, err := s.deps.Groups.Get(r.Context(), groupIDParam(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().Body(g).Write(w)
}

func (s *Server) handleAddMember(w http.ResponseWriter, r *http.Request) {
	var m core.Member
	if err := decodeJSON(w, r, &m); err != nil {
		writeError(w, r, err)
		return
	}
	m.Name = sanitizeInput(m.Name)
	g, err := s.deps.Groups.AddMember(r.Context(), groupIDParam(r), m)
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().Status(http.StatusCreated).Body(g).Write(w)
}

func (s *Server) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	groupID := groupIDParam(r)
	if _, err := s.deps.Groups.Get(r.Context(), groupID); err != nil {
		writeError(w, r, err)
		return
	}
	expenses, err := s.deps.Expenses.ListExpenses(r.Context(), groupID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().Body(nonNil(expenses)).Write(w)
}

func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	var req expenseRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	g, err := s.deps.Groups.Get(r.Context(), groupIDParam(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	e, err := req.toExpense(g, s.now().UTC())
	if err != nil {
		writeError(w, r, err)
		return
	}
	saved, err := s.deps.Expenses.RecordExpense(r.Context(), e)
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().
		Status(http.StatusCreated).
		Header("Location", fmt.Sprintf("/api/groups/%s/expenses/%d", saved.GroupID, saved.ID)).
		Body(saved).
		Write(w)
}

func (s *Server) handleUpdateExpense(w http.ResponseWriter, r *http.Request) {
	id, err := expenseIDParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req expenseRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	g, err := s.deps.Groups.Get(r.Context(), groupIDParam(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	e, err := req.toExpense(g, s.now().UTC())
	if err != nil {
		writeError(w, r, err)
		return
	}
	e.ID = id
	saved, err := s.deps.Expenses.UpdateExpense(r.Context(), e)
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().Body(saved).Write(w)
}

func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request) {
	id, err := expenseIDParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.deps.Expenses.DeleteExpense(r.Context(), groupIDParam(r), id); err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().Status(http.StatusNoContent).Write(w)
}

func (s *Server) handleBalances(w http.ResponseWriter, r *http.Request) {
	report, err := s.deps.Balances.Report(r.Context(), groupIDParam(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().Body(report).Write(w)
}

type settledResponse struct {
	From   core.MemberID `json:"from"`
	To     core.MemberID `json:"to"`
	Amount core.Money    `json:"amount"`
}

func (s *Server) handleSettled(w http.ResponseWriter, r *http.Request) {
	from, err := requiredQuery(r, "from")
	if err != nil {
		writeError(w, r, err)
		return
	}
	to, err := requiredQuery(r, "to")
	if err != nil {
		writeError(w, r, err)
		return
	}
	amount, err := s.deps.Balances.SettledBetween(r.Context(), groupIDParam(r), core.MemberID(from), core.MemberID(to))
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().Body(settledResponse{From: core.MemberID(from), To: core.MemberID(to), Amount: amount}).Write(w)
}

// handleListSettlements lists a group's settlements, optionally those
// involving ?member, or only those between ?member and ?with.
func (s *Server) handleListSettlements(w http.ResponseWriter, r *http.Request) {
	groupID := groupIDParam(r)
	q := r.URL.Query()
	member := core.MemberID(sanitizeInput(q.Get("member")))
	with := core.MemberID(sanitizeInput(q.Get("with")))

	var (
		list []core.Settlement
		err  error
	)
	switch {
	case with != "" && member == "":
		writeError(w, r, fmt.Errorf("%w: with requires member", errBadRequest))
		return
	case with != "":
		if _, err = s.deps.Groups.Get(r.Context(), groupID); err == nil {
			list, err = s.deps.Settlements.ListBetween(r.Context(), groupID, member, with)
		}
	default:
		list, err = s.deps.Settlements.ListForGroup(r.Context(), groupID)
		if err == nil && member != "" {
			list = involving(list, member)
		}
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().Body(nonNil(list)).Write(w)
}

func (s *Server) handleMemberSettlements(w http.ResponseWriter, r *http.Request) {
	member := core.MemberID(chi.URLParam(r, "memberID"))
	list, err := s.deps.Settlements.ListForMember(r.Context(), member)
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().Body(nonNil(list)).Write(w)
}

func (s *Server) handleCreateSettlement(w http.ResponseWriter, r *http.Request) {
	var req settlementRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	st, err := s.deps.Settlements.RecordSettlement(r.Context(), core.Settlement{
		GroupID: groupIDParam(r),
		From:    req.From,
		To:      req.To,
		Amount:  req.Amount.RoundCents(),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().Status(http.StatusCreated).Body(st).Write(w)
}

func involving(list []core.Settlement, member core.MemberID) []core.Settlement {
	out := make([]core.Settlement, 0, len(list))
	for _, st := range list {
		if st.Involves(member) {
			out = append(out, st)
		}
	}
	return out
}

// nonNil makes empty lists encode as [] rather than null.
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
