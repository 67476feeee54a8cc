package services

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"conti/internal/amqp"
	"conti/internal/core"
	"conti/internal/sheets"
)

type groupStore interface {
	sheets.GroupReader
	sheets.GroupWriter
}

type GroupService struct {
	store     groupStore
	balances  reportInvalidator
	publisher EventPublisher
	newID     func() string
}

func NewGroupService(store groupStore, balances reportInvalidator, publisher EventPublisher) *GroupService {
	return &GroupService{
		store:     store,
		balances:  balances,
		publisher: publisher,
		newID:     uuid.NewString,
	}
}

// CreateGroup assigns a fresh ID to g and stores it. Members without a
// name are named after their ID.
func (s *GroupService) CreateGroup(ctx context.Context, g core.Group) (core.Group, error) {
	g.ID = core.GroupID(s.newID())
	g.Name = strings.TrimSpace(g.Name)
	for i := range g.Members {
		g.Members[i] = normalizeMember(g.Members[i])
	}
	if err := g.Validate(); err != nil {
		return core.Group{}, err
	}
	if err := s.store.CreateGroup(ctx, g); err != nil {
		return core.Group{}, err
	}
	return s.store.GetGroup(ctx, g.ID)
}

func (s *GroupService) AddMember(ctx context.Context, groupID core.GroupID, m core.Member) (core.Group, error) {
	m = normalizeMember(m)
	if err := s.store.AddMember(ctx, groupID, m); err != nil {
		return core.Group{}, err
	}
	ledgerChanged(ctx, s.balances, s.publisher, amqp.NewLedgerEvent(amqp.EventGroupChanged, groupID, 0))
	return s.store.GetGroup(ctx, groupID)
}

func (s *GroupService) Get(ctx context.Context, id core.GroupID) (core.Group, error) {
	return s.store.GetGroup(ctx, id)
}

func (s *GroupService) List(ctx context.Context) ([]core.Group, error) {
	return s.store.ListGroups(ctx)
}

func normalizeMember(m core.Member) core.Member {
	m.ID = core.MemberID(strings.TrimSpace(string(m.ID)))
	m.Name = strings.TrimSpace(m.Name)
	if m.Name == "" {
		m.Name = string(m.ID)
	}
	return m
}
