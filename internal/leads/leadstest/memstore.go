// Package leadstest provides an in-memory implementation of the leads
// repository for service tests.
package leadstest

import (
	"context"
	"encoding/json"
	"errors"
	"slices"
	"sort"
	"sync"
	"time"

	"crm_backend/internal/leads/domain"
	"crm_backend/internal/leads/repository"

	"github.com/google/uuid"
)

// ErrInjected is returned by operations configured to fail.
var ErrInjected = errors.New("leadstest: injected failure")

// Store is a mutex-guarded, tenant-aware fake of repository.LeadsRepository.
// The cursor compare-and-swap runs under the same mutex as every read, which
// gives it the atomicity of the conditional UPDATE it stands in for.
type Store struct {
	mu sync.Mutex

	pipelines   map[uuid.UUID]repository.Pipeline
	stages      map[uuid.UUID][]repository.Stage
	members     map[uuid.UUID][]domain.Member
	rules       map[uuid.UUID]domain.DistributionRule
	ruleSets    map[uuid.UUID][]byte
	leads       map[uuid.UUID]repository.Lead
	history     []repository.LifecycleHistoryEntry
	assignments []repository.AssignmentRecord

	// Failure injection.
	FailCreateLead    bool
	FailAssignLead    bool
	FailHistory       bool
	FailAssignmentLog bool
	FailMembers       bool
	FailRuleSets      bool
	FailEnsureStage   bool

	// BeforeAdvance runs before each AdvanceCursor with the lock released.
	// Tests use it to move the cursor underneath the caller.
	BeforeAdvance func()

	advanceCalls int
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		pipelines: make(map[uuid.UUID]repository.Pipeline),
		stages:    make(map[uuid.UUID][]repository.Stage),
		members:   make(map[uuid.UUID][]domain.Member),
		rules:     make(map[uuid.UUID]domain.DistributionRule),
		ruleSets:  make(map[uuid.UUID][]byte),
		leads:     make(map[uuid.UUID]repository.Lead),
	}
}

var _ repository.LeadsRepository = (*Store)(nil)

// =====================================
// Seeding helpers
// =====================================

// AddPipeline registers an active pipeline and returns it.
func (s *Store) AddPipeline(tenantID uuid.UUID, name string) repository.Pipeline {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	p := repository.Pipeline{ID: uuid.New(), TenantID: tenantID, Name: name, IsActive: true, CreatedAt: now, UpdatedAt: now}
	s.pipelines[p.ID] = p
	return p
}

// SetPipelineActive toggles a pipeline's active flag.
func (s *Store) SetPipelineActive(pipelineID uuid.UUID, active bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.pipelines[pipelineID]
	p.IsActive = active
	s.pipelines[pipelineID] = p
}

// AddStage appends a stage to a pipeline.
func (s *Store) AddStage(pipelineID uuid.UUID, name string, order int) repository.Stage {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := repository.Stage{ID: uuid.New(), PipelineID: pipelineID, Name: name, OrderIndex: order, CreatedAt: time.Now()}
	s.stages[pipelineID] = append(s.stages[pipelineID], st)
	return st
}

// Stages returns a copy of a pipeline's stages.
func (s *Store) Stages(pipelineID uuid.UUID) []repository.Stage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.stages[pipelineID])
}

// SetMembers replaces a pipeline's members.
func (s *Store) SetMembers(pipelineID uuid.UUID, members ...domain.Member) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.members[pipelineID] = slices.Clone(members)
}

// PutRule stores a distribution rule as-is.
func (s *Store) PutRule(rule domain.DistributionRule) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rules[rule.PipelineID] = rule
}

// Rule returns the stored rule and whether one exists.
func (s *Store) Rule(pipelineID uuid.UUID) (domain.DistributionRule, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rules[pipelineID]
	return r, ok
}

// SetCursor overwrites the stored cursor.
func (s *Store) SetCursor(pipelineID uuid.UUID, cursor *uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.rules[pipelineID]
	r.LastAssignedMemberID = cloneID(cursor)
	s.rules[pipelineID] = r
}

// PutRuleSetJSON stores raw rule set JSON, valid or not.
func (s *Store) PutRuleSetJSON(pipelineID uuid.UUID, raw string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ruleSets[pipelineID] = []byte(raw)
}

// PutLead stores a lead as-is.
func (s *Store) PutLead(lead repository.Lead) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.leads[lead.ID] = lead
}

// Lead returns a stored lead by ID regardless of tenant.
func (s *Store) Lead(leadID uuid.UUID) (repository.Lead, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.leads[leadID]
	return l, ok
}

// LeadCount returns the number of stored leads.
func (s *Store) LeadCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.leads)
}

// History returns every lifecycle entry in insertion order.
func (s *Store) History() []repository.LifecycleHistoryEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.history)
}

// Assignments returns every assignment record in insertion order.
func (s *Store) Assignments() []repository.AssignmentRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.assignments)
}

// AdvanceCalls reports how many compare-and-swap attempts were made.
func (s *Store) AdvanceCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.advanceCalls
}

// =====================================
// PipelineReader / MemberReader
// =====================================

func (s *Store) GetPipeline(_ context.Context, pipelineID uuid.UUID) (repository.Pipeline, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pipelines[pipelineID]
	if !ok {
		return repository.Pipeline{}, repository.ErrNotFound
	}
	return p, nil
}

func (s *Store) GetFirstStage(_ context.Context, pipelineID uuid.UUID) (repository.Stage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.firstStageLocked(pipelineID)
}

func (s *Store) firstStageLocked(pipelineID uuid.UUID) (repository.Stage, error) {
	stages := s.stages[pipelineID]
	if len(stages) == 0 {
		return repository.Stage{}, repository.ErrNotFound
	}
	first := stages[0]
	for _, st := range stages[1:] {
		if st.OrderIndex < first.OrderIndex {
			first = st
		}
	}
	return first, nil
}

func (s *Store) EnsureDefaultStage(_ context.Context, pipelineID uuid.UUID) (repository.Stage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailEnsureStage {
		return repository.Stage{}, ErrInjected
	}
	for _, st := range s.stages[pipelineID] {
		if st.OrderIndex == domain.DefaultFirstStageOrder {
			return s.firstStageLocked(pipelineID)
		}
	}
	s.stages[pipelineID] = append(s.stages[pipelineID], repository.Stage{
		ID:         uuid.New(),
		PipelineID: pipelineID,
		Name:       domain.DefaultFirstStageName,
		OrderIndex: domain.DefaultFirstStageOrder,
		CreatedAt:  time.Now(),
	})
	return s.firstStageLocked(pipelineID)
}

func (s *Store) ListPipelineMembers(_ context.Context, _, pipelineID uuid.UUID) ([]domain.Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailMembers {
		return nil, ErrInjected
	}
	return slices.Clone(s.members[pipelineID]), nil
}

// =====================================
// Leads
// =====================================

func (s *Store) GetLead(_ context.Context, tenantID, leadID uuid.UUID) (repository.Lead, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.leads[leadID]
	if !ok || l.TenantID != tenantID {
		return repository.Lead{}, repository.ErrNotFound
	}
	l.Data = l.Data.Clone()
	return l, nil
}

func (s *Store) ListLeadsBelowStage(_ context.Context, tenantID, pipelineID uuid.UUID, stage domain.LifecycleStage) ([]repository.Lead, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]repository.Lead, 0)
	for _, l := range s.leads {
		if l.TenantID == tenantID && l.PipelineID == pipelineID && l.LifecycleStage != stage {
			l.Data = l.Data.Clone()
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) CountLifecycleStages(_ context.Context, tenantID uuid.UUID, pipelineID *uuid.UUID) (repository.StageCounts, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	counts := repository.StageCounts{domain.StageLead: 0, domain.StageMQL: 0, domain.StageSQL: 0}
	for _, l := range s.leads {
		if l.TenantID != tenantID || (pipelineID != nil && l.PipelineID != *pipelineID) {
			continue
		}
		counts[l.LifecycleStage]++
	}
	return counts, nil
}

func (s *Store) CreateLead(_ context.Context, params repository.CreateLeadParams) (repository.Lead, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailCreateLead {
		return repository.Lead{}, ErrInjected
	}
	data, err := roundTrip(params.Data)
	if err != nil {
		return repository.Lead{}, err
	}
	now := time.Now()
	lead := repository.Lead{
		ID:             uuid.New(),
		TenantID:       params.TenantID,
		PipelineID:     params.PipelineID,
		StageID:        params.StageID,
		Data:           data,
		LifecycleStage: domain.StageLead,
		Source:         params.Source,
		CreatedBy:      cloneID(params.CreatedBy),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	s.leads[lead.ID] = lead
	return lead, nil
}

func (s *Store) AssignLead(_ context.Context, tenantID, leadID, memberID uuid.UUID) (repository.Lead, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailAssignLead {
		return repository.Lead{}, ErrInjected
	}
	l, ok := s.leads[leadID]
	if !ok || l.TenantID != tenantID {
		return repository.Lead{}, repository.ErrNotFound
	}
	l.AssignedTo = &memberID
	l.UpdatedAt = time.Now()
	s.leads[leadID] = l
	return l, nil
}

func (s *Store) UpdateLeadData(_ context.Context, tenantID, leadID uuid.UUID, data domain.DataBag) (repository.Lead, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.leads[leadID]
	if !ok || l.TenantID != tenantID {
		return repository.Lead{}, repository.ErrNotFound
	}
	stored, err := roundTrip(data)
	if err != nil {
		return repository.Lead{}, err
	}
	l.Data = stored
	l.UpdatedAt = time.Now()
	s.leads[leadID] = l
	return l, nil
}

func (s *Store) PromoteLifecycleStage(_ context.Context, tenantID, leadID uuid.UUID, from, to domain.LifecycleStage) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.leads[leadID]
	if !ok || l.TenantID != tenantID || l.LifecycleStage != from {
		return false, nil
	}
	l.LifecycleStage = to
	l.UpdatedAt = time.Now()
	s.leads[leadID] = l
	return true, nil
}

func (s *Store) SetLifecycleStage(_ context.Context, tenantID, leadID uuid.UUID, to domain.LifecycleStage) (domain.LifecycleStage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.leads[leadID]
	if !ok || l.TenantID != tenantID {
		return "", repository.ErrNotFound
	}
	previous := l.LifecycleStage
	l.LifecycleStage = to
	l.UpdatedAt = time.Now()
	s.leads[leadID] = l
	return previous, nil
}

// =====================================
// Distribution
// =====================================

func (s *Store) GetDistributionRule(_ context.Context, tenantID, pipelineID uuid.UUID) (domain.DistributionRule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rules[pipelineID]
	if !ok || r.TenantID != tenantID {
		return domain.DistributionRule{}, repository.ErrNotFound
	}
	r.LastAssignedMemberID = cloneID(r.LastAssignedMemberID)
	return r, nil
}

func (s *Store) UpsertDistributionRule(_ context.Context, params repository.SaveDistributionRuleParams) (domain.DistributionRule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	existing, ok := s.rules[params.PipelineID]
	if ok && existing.TenantID != params.TenantID {
		return domain.DistributionRule{}, repository.ErrNotFound
	}
	if !ok {
		existing = domain.DistributionRule{PipelineID: params.PipelineID, TenantID: params.TenantID, CreatedAt: now}
	}
	if existing.Mode != params.Mode {
		existing.LastAssignedMemberID = nil
	}
	wh := params.WorkingHours
	if len(wh.Days) == 0 {
		wh.Days = slices.Clone(domain.DefaultWorkingDays)
	}
	wh.Start = domain.NormalizeClock(wh.Start)
	wh.End = domain.NormalizeClock(wh.End)
	existing.Mode = params.Mode
	existing.IsActive = params.IsActive
	existing.WorkingHours = wh
	existing.FallbackToManual = params.FallbackToManual
	existing.UpdatedAt = now
	s.rules[params.PipelineID] = existing
	return existing, nil
}

func (s *Store) AdvanceCursor(_ context.Context, adv repository.CursorAdvance) (bool, error) {
	if s.BeforeAdvance != nil {
		s.BeforeAdvance()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.advanceCalls++
	r, ok := s.rules[adv.PipelineID]
	if !ok || r.TenantID != adv.TenantID || r.Mode != domain.ModeRoundRobin || !r.IsActive {
		return false, nil
	}
	if !sameID(r.LastAssignedMemberID, adv.Expected) {
		return false, nil
	}
	next := adv.Next
	at := adv.At
	r.LastAssignedMemberID = &next
	r.TotalAssignments++
	r.SuccessfulAssignments++
	r.LastAssignmentAt = &at
	r.UpdatedAt = time.Now()
	s.rules[adv.PipelineID] = r
	return true, nil
}

func (s *Store) RecordDistributionFailure(_ context.Context, tenantID, pipelineID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rules[pipelineID]
	if !ok || r.TenantID != tenantID {
		return nil
	}
	r.TotalAssignments++
	r.FailedAssignments++
	s.rules[pipelineID] = r
	return nil
}

func (s *Store) ResetCursor(_ context.Context, tenantID, pipelineID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rules[pipelineID]
	if !ok || r.TenantID != tenantID {
		return repository.ErrNotFound
	}
	r.LastAssignedMemberID = nil
	s.rules[pipelineID] = r
	return nil
}

func (s *Store) CreateAssignmentRecord(_ context.Context, params repository.CreateAssignmentRecordParams) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailAssignmentLog {
		return ErrInjected
	}
	s.assignments = append(s.assignments, repository.AssignmentRecord{
		ID:                   uuid.New(),
		TenantID:             params.TenantID,
		PipelineID:           params.PipelineID,
		LeadID:               cloneID(params.LeadID),
		AssignedTo:           cloneID(params.AssignedTo),
		Method:               params.Method,
		RoundRobinPosition:   params.RoundRobinPosition,
		TotalEligibleMembers: params.TotalEligibleMembers,
		Status:               params.Status,
		ErrorMessage:         params.ErrorMessage,
		CreatedAt:            time.Now(),
	})
	return nil
}

func (s *Store) ListAssignmentRecords(_ context.Context, tenantID, pipelineID uuid.UUID, limit int) ([]repository.AssignmentRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]repository.AssignmentRecord, 0)
	for i := len(s.assignments) - 1; i >= 0 && len(out) < limit; i-- {
		rec := s.assignments[i]
		if rec.TenantID == tenantID && rec.PipelineID == pipelineID {
			out = append(out, rec)
		}
	}
	return out, nil
}

// =====================================
// Qualification rules / history
// =====================================

func (s *Store) GetQualificationRules(_ context.Context, tenantID, pipelineID uuid.UUID) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailRuleSets {
		return nil, ErrInjected
	}
	p, ok := s.pipelines[pipelineID]
	if !ok || p.TenantID != tenantID {
		return nil, repository.ErrNotFound
	}
	return slices.Clone(s.ruleSets[pipelineID]), nil
}

func (s *Store) SaveQualificationRules(_ context.Context, tenantID, pipelineID uuid.UUID, raw []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pipelines[pipelineID]
	if !ok || p.TenantID != tenantID {
		return repository.ErrNotFound
	}
	s.ruleSets[pipelineID] = slices.Clone(raw)
	return nil
}

func (s *Store) CreateLifecycleHistory(_ context.Context, params repository.CreateLifecycleHistoryParams) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailHistory {
		return ErrInjected
	}
	s.history = append(s.history, repository.LifecycleHistoryEntry{
		ID:                  uuid.New(),
		TenantID:            params.TenantID,
		LeadID:              params.LeadID,
		Action:              params.Action,
		FromStage:           params.FromStage,
		ToStage:             params.ToStage,
		ChangedBy:           cloneID(params.ChangedBy),
		AutomationTriggered: params.AutomationTriggered,
		RuleMatched:         params.RuleMatched,
		Metadata:            params.Metadata,
		CreatedAt:           time.Now(),
	})
	return nil
}

func (s *Store) ListLifecycleHistory(_ context.Context, tenantID, leadID uuid.UUID) ([]repository.LifecycleHistoryEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]repository.LifecycleHistoryEntry, 0)
	for _, e := range s.history {
		if e.TenantID == tenantID && e.LeadID == leadID {
			out = append(out, e)
		}
	}
	return out, nil
}

// roundTrip stores data the way the JSONB column would.
func roundTrip(data domain.DataBag) (domain.DataBag, error) {
	if data == nil {
		return domain.DataBag{}, nil
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return domain.ParseDataBag(raw)
}

func cloneID(id *uuid.UUID) *uuid.UUID {
	if id == nil {
		return nil
	}
	v := *id
	return &v
}

func sameID(a, b *uuid.UUID) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
