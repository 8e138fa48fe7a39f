package models

import (
	"time"

	"github.com/erp/obligations/internal/domain/obligation"
	"github.com/erp/obligations/internal/domain/shared/valueobject"
	"github.com/google/uuid"
)

// ObligationModel is the persistence model for the Obligation aggregate root
type ObligationModel struct {
	AggregateModel
	Direction            string             `gorm:"type:varchar(20);not null"`
	CounterpartyID       uuid.UUID          `gorm:"type:uuid;not null;index:idx_obligations_counterparty_status,priority:1"`
	GroupID              *uuid.UUID         `gorm:"type:uuid;index"`
	ParentID             *uuid.UUID         `gorm:"type:uuid;index"`
	Sequence             int                `gorm:"not null;default:1"`
	SequenceTotal        int                `gorm:"not null;default:1"`
	ExpectedAmount       valueobject.Money  `gorm:"type:decimal(18,2);not null"`
	DueDate              time.Time          `gorm:"type:date;not null;index"`
	Status               string             `gorm:"type:varchar(30);not null;index:idx_obligations_counterparty_status,priority:2"`
	SettledAmount        *valueobject.Money `gorm:"type:decimal(18,2)"`
	SettledDate          *time.Time         `gorm:"type:date"`
	SettlementAccountRef string             `gorm:"type:varchar(100)"`
	Discount             valueobject.Money  `gorm:"type:decimal(18,2);not null"`
	Surcharge            valueobject.Money  `gorm:"type:decimal(18,2);not null"`
	CategoryRef          string             `gorm:"type:varchar(100)"`
	Description          string             `gorm:"type:varchar(500)"`
	CancelledAt          *time.Time
	CancelReason         string `gorm:"type:varchar(500)"`
}

// TableName returns the table name for GORM
func (ObligationModel) TableName() string {
	return "obligations"
}

// ToDomain converts the persistence model to a domain Obligation entity.
// The returned obligation is marked as persisted and clean.
func (m *ObligationModel) ToDomain() *obligation.Obligation {
	o := &obligation.Obligation{
		BaseAggregateRoot:    m.AggregateModel.ToDomainAggregateRoot(),
		Direction:            obligation.Direction(m.Direction),
		CounterpartyID:       m.CounterpartyID,
		GroupID:              m.GroupID,
		ParentID:             m.ParentID,
		Sequence:             m.Sequence,
		SequenceTotal:        m.SequenceTotal,
		ExpectedAmount:       m.ExpectedAmount,
		DueDate:              obligation.NormalizeDate(m.DueDate),
		Status:               obligation.Status(m.Status),
		SettledAmount:        m.SettledAmount,
		SettlementAccountRef: m.SettlementAccountRef,
		Discount:             m.Discount,
		Surcharge:            m.Surcharge,
		CategoryRef:          m.CategoryRef,
		Description:          m.Description,
		CancelledAt:          m.CancelledAt,
		CancelReason:         m.CancelReason,
	}
	if m.SettledDate != nil {
		d := obligation.NormalizeDate(*m.SettledDate)
		o.SettledDate = &d
	}
	o.MarkPersisted()
	return o
}

// FromDomain populates the persistence model from a domain Obligation entity
func (m *ObligationModel) FromDomain(o *obligation.Obligation) {
	m.FromDomainAggregateRoot(o.BaseAggregateRoot)
	m.Direction = string(o.Direction)
	m.CounterpartyID = o.CounterpartyID
	m.GroupID = o.GroupID
	m.ParentID = o.ParentID
	m.Sequence = o.Sequence
	m.SequenceTotal = o.SequenceTotal
	m.ExpectedAmount = o.ExpectedAmount
	m.DueDate = o.DueDate
	m.Status = string(o.Status)
	m.SettledAmount = o.SettledAmount
	m.SettledDate = o.SettledDate
	m.SettlementAccountRef = o.SettlementAccountRef
	m.Discount = o.Discount
	m.Surcharge = o.Surcharge
	m.CategoryRef = o.CategoryRef
	m.Description = o.Description
	m.CancelledAt = o.CancelledAt
	m.CancelReason = o.CancelReason
}

// ObligationModelFromDomain creates a new persistence model from a domain Obligation entity
func ObligationModelFromDomain(o *obligation.Obligation) *ObligationModel {
	m := &ObligationModel{}
	m.FromDomain(o)
	return m
}
