// Package distribution assigns new leads to pipeline members in a fair,
// stable rotation and manages each pipeline's distribution rule.
package distribution

import (
	"context"
	"errors"
	"fmt"
	"time"

	"crm_backend/internal/leads/domain"
	"crm_backend/internal/leads/repository"
	"crm_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
)

// Store is the data access the distributor needs.
// This is a consumer-driven interface - only what distribution needs.
type Store interface {
	GetPipeline(ctx context.Context, pipelineID uuid.UUID) (repository.Pipeline, error)
	repository.MemberReader
	repository.DistributionRuleStore
	ListAssignmentRecords(ctx context.Context, tenantID, pipelineID uuid.UUID, limit int) ([]repository.AssignmentRecord, error)
}

// Locker serialises rotation steps per pipeline across processes. Steps in
// the same process are always serialised; a Locker extends that to other
// instances.
type Locker interface {
	Lock(ctx context.Context, name string) (func(), error)
}

// Options tunes the distributor. Zero values select the defaults.
type Options struct {
	MaxAttempts int
	RetryDelay  time.Duration
	Locker      Locker
	Now         func() time.Time
}

const (
	defaultMaxAttempts = 5
	defaultRetryDelay  = 15 * time.Millisecond

	reasonManual        = "manual distribution"
	reasonInactive      = "distribution rule inactive"
	reasonOutsideHours  = "outside working hours"
	reasonNoMembers     = "no eligible members"
	recentAssignmentCap = 10
)

// Service computes and persists lead assignments.
type Service struct {
	store       Store
	log         *logger.Logger
	local       *pipelineLocks
	locker      Locker
	maxAttempts int
	retryDelay  time.Duration
	now         func() time.Time
}

// New creates a distribution service.
func New(store Store, log *logger.Logger, opts Options) *Service {
	s := &Service{
		store:       store,
		log:         log,
		local:       newPipelineLocks(),
		locker:      opts.Locker,
		maxAttempts: opts.MaxAttempts,
		retryDelay:  opts.RetryDelay,
		now:         opts.Now,
	}
	if s.maxAttempts < 1 {
		s.maxAttempts = defaultMaxAttempts
	}
	if s.retryDelay <= 0 {
		s.retryDelay = defaultRetryDelay
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// Assignment is the outcome of one distribution step. MemberID is nil when
// the lead stays unassigned; Reason then says why.
type Assignment struct {
	MemberID      *uuid.UUID
	Member        *domain.Member
	Method        string
	Position      int
	EligibleCount int
	Reason        string
}

// Assigned reports whether a member was selected.
func (a Assignment) Assigned() bool {
	return a.MemberID != nil
}

// plan is a selection computed from one consistent read of the rule.
type plan struct {
	Assignment
	cursor *uuid.UUID
}

// AssignNext selects the next member of the pipeline's rotation and advances
// the cursor. Select and persist form one atomic step: the cursor only moves
// if it still holds the value the selection was computed from, otherwise the
// step is recomputed. Manual mode, an inactive rule, the working-hours gate
// and an empty rotation all return an unassigned result without touching the
// cursor. Steps for one pipeline run one at a time within the process. An
// error means the cursor could not be advanced; the failure is counted on the
// rule unless ctx ended while the step was still queued.
func (s *Service) AssignNext(ctx context.Context, tenantID, pipelineID uuid.UUID) (Assignment, error) {
	key := "distribution:" + pipelineID.String()

	unlockLocal, err := s.local.Lock(ctx, key)
	if err != nil {
		return Assignment{Method: repository.AssignmentMethodRoundRobin, Reason: err.Error()}, fmt.Errorf("assign next member: %w", err)
	}
	defer unlockLocal()

	if s.locker != nil {
		unlock, err := s.locker.Lock(ctx, key)
		if err != nil {
			s.log.WithContext(ctx).Warn("distribution lock unavailable, relying on compare-and-swap",
				"pipelineId", pipelineID, "error", err)
		} else {
			defer unlock()
		}
	}

	var result Assignment
	err = retry.Do(ctx, s.backoff(), func(ctx context.Context) error {
		p, err := s.plan(ctx, tenantID, pipelineID)
		if err != nil {
			return err
		}
		if !p.Assigned() {
			result = p.Assignment
			return nil
		}

		advanced, err := s.store.AdvanceCursor(ctx, repository.CursorAdvance{
			TenantID:   tenantID,
			PipelineID: pipelineID,
			Expected:   p.cursor,
			Next:       *p.MemberID,
			At:         s.now(),
		})
		if err != nil {
			return err
		}
		if !advanced {
			return retry.RetryableError(repository.ErrCursorConflict)
		}
		result = p.Assignment
		return nil
	})
	if err != nil {
		if ferr := s.store.RecordDistributionFailure(ctx, tenantID, pipelineID); ferr != nil {
			s.log.DatabaseError("record_distribution_failure", ferr)
		}
		return Assignment{Method: repository.AssignmentMethodRoundRobin, Reason: err.Error()}, fmt.Errorf("assign next member: %w", err)
	}

	if !result.Assigned() {
		s.log.DistributionSkipped(pipelineID.String(), result.Reason)
	}
	return result, nil
}

func (s *Service) backoff() retry.Backoff {
	b := retry.NewConstant(s.retryDelay)
	b = retry.WithJitterPercent(50, b)
	return retry.WithMaxRetries(uint64(s.maxAttempts-1), b)
}

// plan reads the rule and members and computes the selection without
// writing anything.
func (s *Service) plan(ctx context.Context, tenantID, pipelineID uuid.UUID) (plan, error) {
	rule, err := s.store.GetDistributionRule(ctx, tenantID, pipelineID)
	if errors.Is(err, repository.ErrNotFound) {
		rule = domain.ManualRule(tenantID, pipelineID)
	} else if err != nil {
		return plan{}, err
	}

	p := plan{cursor: rule.LastAssignedMemberID}
	switch {
	case rule.Mode != domain.ModeRoundRobin:
		p.Method = repository.AssignmentMethodManual
		p.Reason = reasonManual
		return p, nil
	case !rule.IsActive:
		p.Method = repository.AssignmentMethodManual
		p.Reason = reasonInactive
		return p, nil
	case !rule.WorkingHours.Allows(s.now()):
		p.Method = unassignedMethod(rule)
		p.Reason = reasonOutsideHours
		return p, nil
	}

	members, err := s.store.ListPipelineMembers(ctx, tenantID, pipelineID)
	if err != nil {
		return plan{}, err
	}
	rotation := domain.EligibleMembers(members)
	p.EligibleCount = len(rotation)

	pick, ok := domain.NextMember(rotation, rule.LastAssignedMemberID)
	if !ok {
		p.Method = unassignedMethod(rule)
		p.Reason = reasonNoMembers
		return p, nil
	}

	id := pick.Member.ID
	member := pick.Member
	p.MemberID = &id
	p.Member = &member
	p.Position = pick.Position
	p.Method = repository.AssignmentMethodRoundRobin
	return p, nil
}

func unassignedMethod(rule domain.DistributionRule) string {
	if rule.FallbackToManual {
		return repository.AssignmentMethodFallback
	}
	return repository.AssignmentMethodRejected
}
