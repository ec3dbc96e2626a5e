package management

import (
	"context"
	"testing"

	"crm_backend/internal/leads/domain"
	"crm_backend/internal/leads/repository"
	"crm_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const budgetRules = `{
	"mql": [{"name": "Interested", "is_active": true, "conditions": [{"field": "interest", "operator": "not_empty"}]}],
	"sql": [{"name": "Big budget", "is_active": true, "conditions": [{"field": "budget", "operator": "greater_than", "value": "10000"}]}]
}`

func TestUpdateLeadDataMergesAndPromotes(t *testing.T) {
	h := newHarness(t)
	h.store.PutRuleSetJSON(h.pipeline.ID, budgetRules)
	ctx := context.Background()

	created, err := h.svc.CreateLead(ctx, h.tenant, nil, h.request())
	require.NoError(t, err)

	resp, err := h.svc.UpdateLeadData(ctx, h.tenant, created.ID, domain.DataBag{"interest": domain.String("solar")})
	require.NoError(t, err)
	assert.True(t, resp.Qualification.Promoted)
	assert.Equal(t, domain.StageMQL, resp.Qualification.NewStage)
	assert.Equal(t, domain.StageMQL, resp.Lead.LifecycleStage)
	assert.Equal(t, domain.String("Ada"), resp.Lead.Data["first_name"])
	assert.Equal(t, domain.String("solar"), resp.Lead.Data["interest"])

	resp, err = h.svc.UpdateLeadData(ctx, h.tenant, created.ID, domain.DataBag{"budget": domain.String("15000")})
	require.NoError(t, err)
	assert.True(t, resp.Qualification.Promoted)
	assert.Equal(t, domain.StageMQL, resp.Qualification.PreviousStage)
	assert.Equal(t, domain.StageSQL, resp.Qualification.NewStage)
	assert.Equal(t, "Big budget", resp.Qualification.MatchedRule)

	hist, err := h.svc.ListHistory(ctx, h.tenant, created.ID)
	require.NoError(t, err)
	got := make([]string, 0, len(hist.Items))
	for _, item := range hist.Items {
		got = append(got, item.Action)
	}
	assert.Equal(t, []string{
		repository.ActionAutomaticAssignment,
		repository.ActionLeadCreated,
		repository.ActionAutomaticQualification,
		repository.ActionAutomaticQualification,
	}, got)
}

func TestUpdateLeadDataWithoutMatchKeepsStage(t *testing.T) {
	h := newHarness(t)
	h.store.PutRuleSetJSON(h.pipeline.ID, budgetRules)
	ctx := context.Background()

	created, err := h.svc.CreateLead(ctx, h.tenant, nil, h.request())
	require.NoError(t, err)

	// Unparseable numbers never match.
	resp, err := h.svc.UpdateLeadData(ctx, h.tenant, created.ID, domain.DataBag{"budget": domain.String("a lot")})
	require.NoError(t, err)
	assert.False(t, resp.Qualification.Promoted)
	assert.Equal(t, domain.StageLead, resp.Lead.LifecycleStage)
}

func TestUpdateLeadDataUnknownLead(t *testing.T) {
	h := newHarness(t)
	_, err := h.svc.UpdateLeadData(context.Background(), h.tenant, uuid.New(), domain.DataBag{"a": domain.String("b")})
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestGetLeadIsTenantScoped(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	created, err := h.svc.CreateLead(ctx, h.tenant, nil, h.request())
	require.NoError(t, err)

	got, err := h.svc.GetLead(ctx, h.tenant, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)

	_, err = h.svc.GetLead(ctx, uuid.New(), created.ID)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	_, err = h.svc.ListHistory(ctx, uuid.New(), created.ID)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}
