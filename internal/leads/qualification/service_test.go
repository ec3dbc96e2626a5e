package qualification

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"crm_backend/internal/events"
	"crm_backend/internal/leads/domain"
	"crm_backend/internal/leads/history"
	"crm_backend/internal/leads/leadstest"
	"crm_backend/internal/leads/repository"
	"crm_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const standardRules = `{
	"mql": [
		{"name": "Engaged", "is_active": true, "conditions": [{"field": "downloads", "operator": "greater_than", "value": "2"}]}
	],
	"sql": [
		{"name": "Budget confirmed", "is_active": true, "conditions": [
			{"field": "budget", "operator": "greater_than", "value": "10000"},
			{"field": "decision_maker", "operator": "equals", "value": "true"}
		]}
	]
}`

type harness struct {
	store    *leadstest.Store
	bus      *events.InMemoryBus
	svc      *Service
	tenant   uuid.UUID
	pipeline uuid.UUID

	mu        sync.Mutex
	qualified []events.LeadQualified
	changed   []events.QualificationRulesChanged
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	log := logger.NewWithWriter("test", io.Discard)
	store := leadstest.NewStore()
	bus := events.NewInMemoryBus(log)
	tenant := uuid.New()
	p := store.AddPipeline(tenant, "Sales")

	h := &harness{
		store:    store,
		bus:      bus,
		svc:      New(store, history.New(store, log), bus, log),
		tenant:   tenant,
		pipeline: p.ID,
	}
	bus.Subscribe(events.LeadQualified{}.EventName(), events.HandlerFunc(func(_ context.Context, e events.Event) error {
		h.mu.Lock()
		defer h.mu.Unlock()
		h.qualified = append(h.qualified, e.(events.LeadQualified))
		return nil
	}))
	bus.Subscribe(events.QualificationRulesChanged{}.EventName(), events.HandlerFunc(func(_ context.Context, e events.Event) error {
		h.mu.Lock()
		defer h.mu.Unlock()
		h.changed = append(h.changed, e.(events.QualificationRulesChanged))
		return nil
	}))
	return h
}

func (h *harness) addLead(stage domain.LifecycleStage, data domain.DataBag) repository.Lead {
	now := time.Now()
	lead := repository.Lead{
		ID:             uuid.New(),
		TenantID:       h.tenant,
		PipelineID:     h.pipeline,
		StageID:        uuid.New(),
		Data:           data,
		LifecycleStage: stage,
		Source:         domain.SourceForm,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	h.store.PutLead(lead)
	return lead
}

func (h *harness) qualifiedEvents() []events.LeadQualified {
	h.bus.Wait()
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]events.LeadQualified(nil), h.qualified...)
}

func (h *harness) stage(t *testing.T, leadID uuid.UUID) domain.LifecycleStage {
	t.Helper()
	l, ok := h.store.Lead(leadID)
	require.True(t, ok)
	return l.LifecycleStage
}

func TestEvaluateAndPromoteToSQL(t *testing.T) {
	h := newHarness(t)
	h.store.PutRuleSetJSON(h.pipeline, standardRules)
	lead := h.addLead(domain.StageLead, domain.DataBag{})

	out := h.svc.EvaluateAndPromote(context.Background(), h.tenant, lead.ID, domain.DataBag{
		"budget":         domain.Number(50000),
		"decision_maker": domain.Bool(true),
		"downloads":      domain.Number(5),
	})

	assert.True(t, out.Promoted)
	assert.Equal(t, domain.StageLead, out.PreviousStage)
	assert.Equal(t, domain.StageSQL, out.NewStage)
	assert.Equal(t, "Budget confirmed", out.MatchedRule)
	assert.Equal(t, domain.StageSQL, h.stage(t, lead.ID))

	entries := h.store.History()
	require.Len(t, entries, 1)
	assert.Equal(t, repository.ActionAutomaticQualification, entries[0].Action)
	assert.True(t, entries[0].AutomationTriggered)
	require.NotNil(t, entries[0].FromStage)
	assert.Equal(t, domain.StageLead, *entries[0].FromStage)
	require.NotNil(t, entries[0].RuleMatched)
	assert.Equal(t, "Budget confirmed", *entries[0].RuleMatched)

	evs := h.qualifiedEvents()
	require.Len(t, evs, 1)
	assert.True(t, evs[0].Automatic)
	assert.Equal(t, "sql", evs[0].ToStage)
}

func TestEvaluateAndPromoteToMQL(t *testing.T) {
	h := newHarness(t)
	h.store.PutRuleSetJSON(h.pipeline, standardRules)
	lead := h.addLead(domain.StageLead, domain.DataBag{"downloads": domain.Number(3)})

	// Nil data evaluates the stored bag.
	out := h.svc.EvaluateAndPromote(context.Background(), h.tenant, lead.ID, nil)
	assert.True(t, out.Promoted)
	assert.Equal(t, domain.StageMQL, out.NewStage)
	assert.Equal(t, "Engaged", out.MatchedRule)
}

func TestEvaluateAndPromoteNoMatchWritesNothing(t *testing.T) {
	h := newHarness(t)
	h.store.PutRuleSetJSON(h.pipeline, standardRules)
	lead := h.addLead(domain.StageLead, nil)

	out := h.svc.EvaluateAndPromote(context.Background(), h.tenant, lead.ID, domain.DataBag{"downloads": domain.Number(1)})
	assert.False(t, out.Promoted)
	assert.Equal(t, domain.StageLead, out.NewStage)
	assert.Empty(t, h.store.History())
	assert.Empty(t, h.qualifiedEvents())
}

func TestEvaluateAndPromoteNeverFails(t *testing.T) {
	t.Run("missing lead", func(t *testing.T) {
		h := newHarness(t)
		out := h.svc.EvaluateAndPromote(context.Background(), h.tenant, uuid.New(), domain.DataBag{})
		assert.False(t, out.Promoted)
	})

	t.Run("malformed rules", func(t *testing.T) {
		h := newHarness(t)
		h.store.PutRuleSetJSON(h.pipeline, `{"mql": "not a list"`)
		lead := h.addLead(domain.StageLead, nil)
		out := h.svc.EvaluateAndPromote(context.Background(), h.tenant, lead.ID, domain.DataBag{"downloads": domain.Number(9)})
		assert.False(t, out.Promoted)
		assert.Equal(t, domain.StageLead, h.stage(t, lead.ID))
	})

	t.Run("rules unavailable", func(t *testing.T) {
		h := newHarness(t)
		h.store.FailRuleSets = true
		lead := h.addLead(domain.StageLead, nil)
		out := h.svc.EvaluateAndPromote(context.Background(), h.tenant, lead.ID, domain.DataBag{})
		assert.False(t, out.Promoted)
		assert.Equal(t, domain.StageLead, out.NewStage)
	})

	t.Run("no rules configured", func(t *testing.T) {
		h := newHarness(t)
		lead := h.addLead(domain.StageMQL, nil)
		out := h.svc.EvaluateAndPromote(context.Background(), h.tenant, lead.ID, domain.DataBag{})
		assert.False(t, out.Promoted)
		assert.Equal(t, domain.StageMQL, out.NewStage)
	})

	t.Run("history write fails after promotion", func(t *testing.T) {
		h := newHarness(t)
		h.store.PutRuleSetJSON(h.pipeline, standardRules)
		h.store.FailHistory = true
		lead := h.addLead(domain.StageLead, nil)
		out := h.svc.EvaluateAndPromote(context.Background(), h.tenant, lead.ID, domain.DataBag{"downloads": domain.Number(4)})
		assert.True(t, out.Promoted)
		assert.Equal(t, domain.StageMQL, h.stage(t, lead.ID))
	})
}

func TestEvaluateAndPromoteTerminalStage(t *testing.T) {
	h := newHarness(t)
	h.store.PutRuleSetJSON(h.pipeline, standardRules)
	lead := h.addLead(domain.StageSQL, nil)

	out := h.svc.EvaluateAndPromote(context.Background(), h.tenant, lead.ID, domain.DataBag{
		"budget":         domain.Number(50000),
		"decision_maker": domain.String("true"),
	})
	assert.False(t, out.Promoted)
	assert.Equal(t, domain.StageSQL, h.stage(t, lead.ID))
}

func TestEvaluateAndPromoteOtherTenantIsIgnored(t *testing.T) {
	h := newHarness(t)
	h.store.PutRuleSetJSON(h.pipeline, standardRules)
	lead := h.addLead(domain.StageLead, nil)

	out := h.svc.EvaluateAndPromote(context.Background(), uuid.New(), lead.ID, domain.DataBag{"downloads": domain.Number(9)})
	assert.False(t, out.Promoted)
	assert.Equal(t, domain.StageLead, h.stage(t, lead.ID))
}

func TestEvaluateAndPromoteIsIdempotent(t *testing.T) {
	h := newHarness(t)
	h.store.PutRuleSetJSON(h.pipeline, standardRules)
	lead := h.addLead(domain.StageLead, nil)
	data := domain.DataBag{"downloads": domain.Number(9)}

	first := h.svc.EvaluateAndPromote(context.Background(), h.tenant, lead.ID, data)
	second := h.svc.EvaluateAndPromote(context.Background(), h.tenant, lead.ID, data)
	assert.True(t, first.Promoted)
	assert.False(t, second.Promoted)
	assert.Len(t, h.store.History(), 1)
}
