package history

import (
	"context"
	"io"
	"testing"

	"crm_backend/internal/leads/domain"
	"crm_backend/internal/leads/leadstest"
	"crm_backend/internal/leads/repository"
	"crm_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRecorder(store *leadstest.Store) *Recorder {
	return New(store, logger.NewWithWriter("test", io.Discard))
}

func testLead() repository.Lead {
	return repository.Lead{
		ID:             uuid.New(),
		TenantID:       uuid.New(),
		PipelineID:     uuid.New(),
		StageID:        uuid.New(),
		LifecycleStage: domain.StageLead,
		Source:         domain.SourceForm,
	}
}

func TestLeadCreatedFromFormIsAutomated(t *testing.T) {
	store := leadstest.NewStore()
	lead := testLead()

	res := newRecorder(store).LeadCreated(context.Background(), lead)

	require.True(t, res.OK())
	entries := store.History()
	require.Len(t, entries, 1)
	assert.Equal(t, repository.ActionLeadCreated, entries[0].Action)
	assert.Nil(t, entries[0].FromStage)
	assert.Equal(t, domain.StageLead, entries[0].ToStage)
	assert.True(t, entries[0].AutomationTriggered)
	assert.Equal(t, "form", entries[0].Metadata["source"])
	assert.Nil(t, entries[0].Metadata["assigned_to"])
}

func TestLeadCreatedCarriesOwner(t *testing.T) {
	store := leadstest.NewStore()
	lead := testLead()
	owner := uuid.New()
	lead.AssignedTo = &owner

	res := newRecorder(store).LeadCreated(context.Background(), lead)

	require.True(t, res.OK())
	entries := store.History()
	require.Len(t, entries, 1)
	assert.Equal(t, owner.String(), entries[0].Metadata["assigned_to"])
}

func TestAssignedWritesBothTrails(t *testing.T) {
	store := leadstest.NewStore()
	lead := testLead()
	member := uuid.New()
	pos, eligible := 2, 3

	res := newRecorder(store).Assigned(context.Background(), lead, Assignment{
		MemberID:      &member,
		Method:        repository.AssignmentMethodRoundRobin,
		Position:      &pos,
		EligibleCount: &eligible,
		Status:        repository.AssignmentStatusSuccess,
	})

	require.True(t, res.OK())
	require.Len(t, store.History(), 1)
	assert.Equal(t, repository.ActionAutomaticAssignment, store.History()[0].Action)
	records := store.Assignments()
	require.Len(t, records, 1)
	assert.Equal(t, member, *records[0].AssignedTo)
	assert.Equal(t, 2, *records[0].RoundRobinPosition)
	assert.Equal(t, lead.ID, *records[0].LeadID)
}

func TestFailedWritesAreReportedNotRaised(t *testing.T) {
	store := leadstest.NewStore()
	store.FailHistory = true
	lead := testLead()

	rec := newRecorder(store)
	res := rec.StageChanged(context.Background(), StageChange{
		TenantID:    lead.TenantID,
		LeadID:      lead.ID,
		From:        domain.StageLead,
		To:          domain.StageSQL,
		Automatic:   true,
		RuleMatched: "HighBudget",
	})

	assert.False(t, res.OK())
	assert.ErrorIs(t, res.Err(), leadstest.ErrInjected)

	// The assignment row is still attempted when the lifecycle entry fails.
	member := uuid.New()
	res = rec.Assigned(context.Background(), lead, Assignment{MemberID: &member, Method: "round_robin", Status: "success"})
	assert.False(t, res.OK())
	assert.Len(t, store.Assignments(), 1)
}

func TestStageChangedLabelsManualTransitions(t *testing.T) {
	store := leadstest.NewStore()
	actor := uuid.New()
	lead := testLead()

	newRecorder(store).StageChanged(context.Background(), StageChange{
		TenantID:    lead.TenantID,
		LeadID:      lead.ID,
		From:        domain.StageSQL,
		To:          domain.StageMQL,
		ChangedBy:   &actor,
		RuleMatched: repository.ManualQualificationLabel,
	})

	entries := store.History()
	require.Len(t, entries, 1)
	assert.Equal(t, repository.ActionManualQualification, entries[0].Action)
	assert.False(t, entries[0].AutomationTriggered)
	assert.Equal(t, domain.StageSQL, *entries[0].FromStage)
	assert.Equal(t, repository.ManualQualificationLabel, *entries[0].RuleMatched)
}
