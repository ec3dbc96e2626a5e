// Package management handles lead creation, reads and data updates.
// This is a vertically sliced feature package: it orchestrates the store,
// the distributor and the qualification engine for a single lead.
package management

import (
	"context"
	"errors"
	"strings"

	"crm_backend/internal/events"
	"crm_backend/internal/leads/distribution"
	"crm_backend/internal/leads/domain"
	"crm_backend/internal/leads/history"
	"crm_backend/internal/leads/qualification"
	"crm_backend/internal/leads/repository"
	"crm_backend/internal/leads/transport"
	"crm_backend/platform/apperr"
	"crm_backend/platform/logger"
	"crm_backend/platform/phone"
	"crm_backend/platform/sanitize"

	"github.com/google/uuid"
)

// Repository defines the data access interface needed by the management service.
// This is a consumer-driven interface - only what management needs.
type Repository interface {
	repository.PipelineReader
	repository.LeadReader
	repository.LeadWriter
	ListLifecycleHistory(ctx context.Context, tenantID, leadID uuid.UUID) ([]repository.LifecycleHistoryEntry, error)
}

// Distributor picks the owner of a new lead.
type Distributor interface {
	AssignNext(ctx context.Context, tenantID, pipelineID uuid.UUID) (distribution.Assignment, error)
}

// Qualifier runs lifecycle promotion after a data change.
type Qualifier interface {
	EvaluateAndPromote(ctx context.Context, tenantID, leadID uuid.UUID, data domain.DataBag) qualification.Outcome
}

// Service handles lead management operations.
type Service struct {
	repo        Repository
	distributor Distributor
	qualifier   Qualifier
	recorder    *history.Recorder
	bus         events.Bus
	log         *logger.Logger
	phoneRegion string
}

// New creates a new lead management service.
func New(repo Repository, distributor Distributor, qualifier Qualifier, recorder *history.Recorder, bus events.Bus, log *logger.Logger) *Service {
	return &Service{
		repo:        repo,
		distributor: distributor,
		qualifier:   qualifier,
		recorder:    recorder,
		bus:         bus,
		log:         log,
		phoneRegion: phone.DefaultRegion,
	}
}

// SetPhoneRegion sets the region national phone numbers are read in.
func (s *Service) SetPhoneRegion(region string) {
	if region != "" {
		s.phoneRegion = region
	}
}

// contact holds the well-known fields folded into the data bag.
type contact struct {
	FirstName string
	LastName  string
	Email     string
	Phone     string
	Company   string
}

type createInput struct {
	PipelineID uuid.UUID
	// TenantID is the creating actor's tenant; nil for anonymous capture.
	TenantID *uuid.UUID
	ActorID  *uuid.UUID
	Source   domain.LeadSource
	Contact  contact
	Data     domain.DataBag
}

// CreateLead creates a lead on behalf of an authenticated actor.
func (s *Service) CreateLead(ctx context.Context, tenantID uuid.UUID, actorID *uuid.UUID, req transport.CreateLeadRequest) (transport.LeadResponse, error) {
	source := req.Source
	if source == "" {
		source = domain.SourceManual
	}
	return s.create(ctx, createInput{
		PipelineID: req.PipelineID,
		TenantID:   &tenantID,
		ActorID:    actorID,
		Source:     source,
		Contact: contact{
			FirstName: req.FirstName,
			LastName:  req.LastName,
			Email:     req.Email,
			Phone:     req.Phone,
			Company:   req.Company,
		},
		Data: req.Data,
	})
}

// CaptureForm creates a lead from a public form submission. The tenant is
// the pipeline's own.
func (s *Service) CaptureForm(ctx context.Context, pipelineID uuid.UUID, req transport.FormCaptureRequest) (transport.LeadResponse, error) {
	return s.create(ctx, createInput{
		PipelineID: pipelineID,
		Source:     domain.SourceForm,
		Contact: contact{
			FirstName: req.FirstName,
			LastName:  req.LastName,
			Email:     req.Email,
			Phone:     req.Phone,
			Company:   req.Company,
		},
		Data: req.Data,
	})
}

// create validates the pipeline, resolves its first stage and persists the
// lead. Only those steps can fail the call; distribution, audit and events
// after the insert are best-effort. Writes happen in order: lead, owner,
// then history.
func (s *Service) create(ctx context.Context, in createInput) (transport.LeadResponse, error) {
	if !domain.IsKnownLeadSource(in.Source) {
		return transport.LeadResponse{}, apperr.Validation("unknown lead source")
	}

	pipeline, err := s.repo.GetPipeline(ctx, in.PipelineID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return transport.LeadResponse{}, apperr.NotFound("pipeline not found")
		}
		return transport.LeadResponse{}, err
	}
	if !pipeline.IsActive || (in.TenantID != nil && pipeline.TenantID != *in.TenantID) {
		return transport.LeadResponse{}, apperr.NotFound("pipeline not found")
	}

	stage, err := s.firstStage(ctx, pipeline.ID)
	if err != nil {
		return transport.LeadResponse{}, err
	}

	lead, err := s.repo.CreateLead(ctx, repository.CreateLeadParams{
		TenantID:   pipeline.TenantID,
		PipelineID: pipeline.ID,
		StageID:    stage.ID,
		Data:       foldContact(in.Data, in.Contact, s.phoneRegion),
		Source:     in.Source,
		CreatedBy:  in.ActorID,
	})
	if err != nil {
		return transport.LeadResponse{}, err
	}

	s.bus.Publish(ctx, events.LeadCreated{
		BaseEvent:  events.NewBaseEvent(),
		LeadID:     lead.ID,
		TenantID:   lead.TenantID,
		PipelineID: lead.PipelineID,
		Source:     string(lead.Source),
		CreatedBy:  lead.CreatedBy,
	})

	// The creation entry follows distribution so it can carry the owner.
	lead = s.distribute(ctx, lead)
	s.recorder.LeadCreated(ctx, lead)
	return ToLeadResponse(lead), nil
}

// firstStage returns the lowest-ordered stage, creating the default one when
// the pipeline has none.
func (s *Service) firstStage(ctx context.Context, pipelineID uuid.UUID) (repository.Stage, error) {
	stage, err := s.repo.GetFirstStage(ctx, pipelineID)
	if err == nil {
		return stage, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return repository.Stage{}, err
	}

	stage, err = s.repo.EnsureDefaultStage(ctx, pipelineID)
	if err != nil {
		s.log.WithContext(ctx).Error("default stage creation failed", "pipelineId", pipelineID, "error", err)
		return repository.Stage{}, apperr.Configuration("pipeline has no stage and none could be created")
	}
	return stage, nil
}

// distribute asks the distributor for an owner and stores it. The lead is
// returned unassigned whenever any step fails.
func (s *Service) distribute(ctx context.Context, lead repository.Lead) repository.Lead {
	log := s.log.WithContext(ctx)

	a, err := s.distributor.AssignNext(ctx, lead.TenantID, lead.PipelineID)
	if err != nil {
		log.Warn("lead left unassigned: distribution failed", "leadId", lead.ID, "pipelineId", lead.PipelineID, "error", err)
		s.recorder.AssignmentAttempt(ctx, lead, history.Assignment{
			Method: a.Method,
			Status: repository.AssignmentStatusFailed,
			Reason: err.Error(),
		})
		return lead
	}

	if !a.Assigned() {
		if a.Method != repository.AssignmentMethodManual {
			count := a.EligibleCount
			s.recorder.AssignmentAttempt(ctx, lead, history.Assignment{
				Method:        a.Method,
				EligibleCount: &count,
				Status:        repository.AssignmentStatusSkipped,
				Reason:        a.Reason,
			})
		}
		return lead
	}

	assigned, err := s.repo.AssignLead(ctx, lead.TenantID, lead.ID, *a.MemberID)
	if err != nil {
		log.Warn("lead left unassigned: owner write failed", "leadId", lead.ID, "memberId", *a.MemberID, "error", err)
		s.recorder.AssignmentAttempt(ctx, lead, history.Assignment{
			MemberID: a.MemberID,
			Method:   a.Method,
			Status:   repository.AssignmentStatusFailed,
			Reason:   err.Error(),
		})
		return lead
	}

	position, count := a.Position, a.EligibleCount
	s.recorder.Assigned(ctx, assigned, history.Assignment{
		MemberID:      a.MemberID,
		Method:        a.Method,
		Position:      &position,
		EligibleCount: &count,
		Status:        repository.AssignmentStatusSuccess,
	})
	s.bus.Publish(ctx, events.LeadAssigned{
		BaseEvent:  events.NewBaseEvent(),
		LeadID:     assigned.ID,
		TenantID:   assigned.TenantID,
		PipelineID: assigned.PipelineID,
		MemberID:   *a.MemberID,
		Method:     a.Method,
		Position:   a.Position,
	})
	return assigned
}

// GetLead retrieves a lead by ID.
func (s *Service) GetLead(ctx context.Context, tenantID, leadID uuid.UUID) (transport.LeadResponse, error) {
	lead, err := s.repo.GetLead(ctx, tenantID, leadID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return transport.LeadResponse{}, apperr.NotFound("lead not found")
		}
		return transport.LeadResponse{}, err
	}
	return ToLeadResponse(lead), nil
}

// UpdateLeadData merges patch into the lead's data bag, stores it and runs
// qualification against the result.
func (s *Service) UpdateLeadData(ctx context.Context, tenantID, leadID uuid.UUID, patch domain.DataBag) (transport.UpdateLeadDataResponse, error) {
	current, err := s.repo.GetLead(ctx, tenantID, leadID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return transport.UpdateLeadDataResponse{}, apperr.NotFound("lead not found")
		}
		return transport.UpdateLeadDataResponse{}, err
	}

	updated, err := s.repo.UpdateLeadData(ctx, tenantID, leadID, current.Data.Merge(sanitizeBag(patch)))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return transport.UpdateLeadDataResponse{}, apperr.NotFound("lead not found")
		}
		return transport.UpdateLeadDataResponse{}, err
	}

	outcome := s.qualifier.EvaluateAndPromote(ctx, tenantID, leadID, updated.Data)
	if outcome.Promoted {
		updated.LifecycleStage = outcome.NewStage
	}
	return transport.UpdateLeadDataResponse{
		Lead:          ToLeadResponse(updated),
		Qualification: outcome.Response(),
	}, nil
}

// ListHistory returns the lead's lifecycle history, oldest first.
func (s *Service) ListHistory(ctx context.Context, tenantID, leadID uuid.UUID) (transport.HistoryResponse, error) {
	if _, err := s.repo.GetLead(ctx, tenantID, leadID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return transport.HistoryResponse{}, apperr.NotFound("lead not found")
		}
		return transport.HistoryResponse{}, err
	}

	entries, err := s.repo.ListLifecycleHistory(ctx, tenantID, leadID)
	if err != nil {
		return transport.HistoryResponse{}, err
	}
	return ToHistoryResponse(entries), nil
}

// foldContact copies the contact fields into the data bag under their
// canonical keys. Empty fields are left out; a provided field overwrites the
// same key in data. National phone numbers are read in region.
func foldContact(data domain.DataBag, c contact, region string) domain.DataBag {
	bag := sanitizeBag(data)
	set := func(key, value string) {
		if value != "" {
			bag[key] = domain.String(value)
		}
	}
	set("first_name", sanitize.Name(c.FirstName))
	set("last_name", sanitize.Name(c.LastName))
	set("email", sanitize.Email(c.Email))
	set("phone", phone.NormalizeE164In(c.Phone, region))
	set("company", sanitize.Text(c.Company))
	return bag
}

// sanitizeBag strips markup from string values and drops blank keys.
func sanitizeBag(data domain.DataBag) domain.DataBag {
	out := make(domain.DataBag, len(data))
	for k, v := range data {
		key := strings.TrimSpace(k)
		if key == "" {
			continue
		}
		if v.Kind() == domain.KindString {
			v = domain.String(sanitize.Text(v.Text()))
		}
		out[key] = v
	}
	return out
}
