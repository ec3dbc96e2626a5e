package repository

import (
	"errors"
	"time"

	"crm_backend/internal/leads/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrNotFound = errors.New("record not found")

// ErrCursorConflict is returned by services when the distribution cursor kept
// moving underneath every compare-and-swap attempt.
var ErrCursorConflict = errors.New("distribution cursor changed concurrently")

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type Pipeline struct {
	ID        uuid.UUID
	TenantID  uuid.UUID
	Name      string
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Stage struct {
	ID         uuid.UUID
	PipelineID uuid.UUID
	Name       string
	OrderIndex int
	CreatedAt  time.Time
}

type Lead struct {
	ID             uuid.UUID
	TenantID       uuid.UUID
	PipelineID     uuid.UUID
	StageID        uuid.UUID
	AssignedTo     *uuid.UUID
	Data           domain.DataBag
	LifecycleStage domain.LifecycleStage
	Source         domain.LeadSource
	CreatedBy      *uuid.UUID
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type CreateLeadParams struct {
	TenantID   uuid.UUID
	PipelineID uuid.UUID
	StageID    uuid.UUID
	Data       domain.DataBag
	Source     domain.LeadSource
	CreatedBy  *uuid.UUID
}

// StageCounts holds the number of leads per lifecycle stage.
type StageCounts map[domain.LifecycleStage]int

// Total sums every stage.
func (c StageCounts) Total() int {
	total := 0
	for _, n := range c {
		total += n
	}
	return total
}

type SaveDistributionRuleParams struct {
	TenantID         uuid.UUID
	PipelineID       uuid.UUID
	Mode             domain.DistributionMode
	IsActive         bool
	WorkingHours     domain.WorkingHours
	FallbackToManual bool
}

// CursorAdvance describes one successful rotation step.
type CursorAdvance struct {
	TenantID   uuid.UUID
	PipelineID uuid.UUID
	Expected   *uuid.UUID
	Next       uuid.UUID
	At         time.Time
}
