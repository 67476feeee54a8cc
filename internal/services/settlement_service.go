package services

import (
	"context"
	"fmt"
	"time"

	"conti/internal/amqp"
	"conti/internal/core"
	applog "conti/internal/log"
	"conti/internal/sheets"
)

type settlementStore interface {
	sheets.GroupReader
	sheets.SettlementWriter
	sheets.SettlementLister
}

// SettlementService records payments made between members.
type SettlementService struct {
	store     settlementStore
	balances  reportInvalidator
	publisher EventPublisher
	now       func() time.Time
}

func NewSettlementService(store settlementStore, balances reportInvalidator, publisher EventPublisher) *SettlementService {
	return &SettlementService{
		store:     store,
		balances:  balances,
		publisher: publisher,
		now:       time.Now,
	}
}

// RecordSettlement stores a payment between two members of the same group.
func (s *SettlementService) RecordSettlement(ctx context.Context, st core.Settlement) (core.Settlement, error) {
	if err := st.Validate(); err != nil {
		return core.Settlement{}, err
	}
	group, err := s.store.GetGroup(ctx, st.GroupID)
	if err != nil {
		return core.Settlement{}, err
	}
	for _, m := range []core.MemberID{st.From, st.To} {
		if !group.HasMember(m) {
			return core.Settlement{}, fmt.Errorf("%w: %s", core.ErrUnknownMember, m)
		}
	}

	st.CreatedAt = s.now().UTC()
	id, err := s.store.AddSettlement(ctx, st)
	if err != nil {
		return core.Settlement{}, fmt.Errorf("save settlement: %w", err)
	}
	st.ID = id

	applog.LogLedgerChange(ctx, "Settlement recorded", applog.OpSettle,
		string(st.GroupID), string(st.From), string(st.To), st.Amount.String(), id)

	ledgerChanged(ctx, s.balances, s.publisher, amqp.NewLedgerEvent(amqp.EventSettlementRecorded, st.GroupID, id))
	return st, nil
}

// ListForGroup returns the group's settlements, newest first.
func (s *SettlementService) ListForGroup(ctx context.Context, groupID core.GroupID) ([]core.Settlement, error) {
	if _, err := s.store.GetGroup(ctx, groupID); err != nil {
		return nil, err
	}
	return s.store.ListSettlements(ctx, groupID)
}

// ListForMember returns settlements the member paid or received.
func (s *SettlementService) ListForMember(ctx context.Context, member core.MemberID) ([]core.Settlement, error) {
	return s.store.ListSettlementsForMember(ctx, member)
}

// ListBetween returns settlements between a and b in either direction.
func (s *SettlementService) ListBetween(ctx context.Context, groupID core.GroupID, a, b core.MemberID) ([]core.Settlement, error) {
	return s.store.ListSettlementsBetween(ctx, a, b, groupID)
}
