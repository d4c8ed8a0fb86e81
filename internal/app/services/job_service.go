package services

import (
	"context"
	"sort"
	"time"

	"github.com/asaskevich/EventBus"
	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"github.com/rs/zerolog"
	"github.com/samber/lo"
	"github.com/yigit/admissions/internal/app/auth"
	"github.com/yigit/admissions/internal/app/models"
	"github.com/yigit/admissions/internal/app/repositories"
	"github.com/yigit/admissions/internal/domain/admission"
	"github.com/yigit/admissions/internal/domain/matching"
	"github.com/yigit/admissions/internal/pkg/apperrors"
	"github.com/yigit/admissions/internal/pkg/events"
)

// ScoredJob is a job with the caller's match result; Match is nil for non-student views
type ScoredJob struct {
	Job   *models.Job
	Match *matching.Result
}

// Candidate is a student ranked against a job
type Candidate struct {
	Profile         *models.StudentProfile
	Match           matching.Result
	HasTranscripts  bool
	HasCertificates bool
	AdmissionsCount int
}

// JobService exposes the job feed, candidate ranking and job applications
type JobService interface {
	ListJobs(ctx context.Context, p auth.Principal) ([]ScoredJob, error)
	// Candidates is cached per job until the requirements change or the TTL passes, so
	// AdmissionsCount may lag by up to one TTL
	Candidates(ctx context.Context, p auth.Principal, jobID string) ([]Candidate, error)
	UpdateRequirements(ctx context.Context, p auth.Principal, jobID string, req models.JobRequirements) (*models.Job, error)
	Apply(ctx context.Context, p auth.Principal, jobID string) (*models.JobApplication, error)
}

type jobServiceImpl struct {
	jobs       repositories.JobStore
	jobApps    repositories.JobApplicationStore
	students   repositories.StudentStore
	documents  repositories.DocumentStore
	apps       repositories.ApplicationStore
	candidates *cache.Cache
	bus        EventBus.BusPublisher
	log        zerolog.Logger
}

// NewJobService creates a new job service instance. Candidate rankings are cached per job for candidatesTTL.
func NewJobService(
	jobs repositories.JobStore,
	jobApps repositories.JobApplicationStore,
	students repositories.StudentStore,
	documents repositories.DocumentStore,
	apps repositories.ApplicationStore,
	candidatesTTL time.Duration,
	bus EventBus.BusPublisher,
	log zerolog.Logger,
) JobService {
	if candidatesTTL <= 0 {
		candidatesTTL = 30 * time.Second
	}
	return &jobServiceImpl{
		jobs:       jobs,
		jobApps:    jobApps,
		students:   students,
		documents:  documents,
		apps:       apps,
		candidates: cache.New(candidatesTTL, 2*candidatesTTL),
		bus:        bus,
		log:        log.With().Str("service", "jobs").Logger(),
	}
}

func toMatchProfile(p *models.StudentProfile) matching.Profile {
	if p == nil {
		return matching.Profile{}
	}
	return matching.Profile{
		GPA:             p.GPA,
		FieldOfStudy:    p.FieldOfStudy,
		Skills:          p.Skills,
		YearsExperience: p.YearsExperience,
	}
}

func toMatchRequirements(r models.JobRequirements) matching.Requirements {
	return matching.Requirements{
		MinimumGPA:        r.MinimumGPA,
		FieldsOfStudy:     r.FieldsOfStudy,
		Skills:            r.Skills,
		MinimumExperience: r.MinimumExperience,
	}
}

func (s *jobServiceImpl) ListJobs(ctx context.Context, p auth.Principal) ([]ScoredJob, error) {
	switch p.Role {
	case models.RoleCompany:
		jobs, err := s.jobs.List(ctx, repositories.JobFilter{CompanyID: p.ID})
		if err != nil {
			return nil, storeError("failed to list jobs", err)
		}
		return lo.Map(jobs, func(j *models.Job, _ int) ScoredJob { return ScoredJob{Job: j} }), nil
	case models.RoleAdmin:
		jobs, err := s.jobs.List(ctx, repositories.JobFilter{})
		if err != nil {
			return nil, storeError("failed to list jobs", err)
		}
		return lo.Map(jobs, func(j *models.Job, _ int) ScoredJob { return ScoredJob{Job: j} }), nil
	case models.RoleStudent:
	default:
		return nil, apperrors.NewForbiddenError("role " + string(p.Role) + " may not list jobs")
	}

	profile, err := s.students.GetProfile(ctx, p.ID)
	if err != nil {
		return nil, notFound("Student profile not found", err)
	}
	jobs, err := s.jobs.List(ctx, repositories.JobFilter{Status: models.JobStatusActive})
	if err != nil {
		return nil, storeError("failed to list jobs", err)
	}

	mp := toMatchProfile(profile)
	feed := make([]ScoredJob, 0, len(jobs))
	for _, j := range jobs {
		res := matching.Score(mp, toMatchRequirements(j.Requirements))
		if !res.Qualified {
			continue
		}
		feed = append(feed, ScoredJob{Job: j, Match: &res})
	}
	sort.SliceStable(feed, func(i, k int) bool { return feed[i].Match.Score > feed[k].Match.Score })
	return feed, nil
}

func (s *jobServiceImpl) ownedJob(ctx context.Context, p auth.Principal, jobID string) (*models.Job, error) {
	job, err := s.jobs.GetByID(ctx, jobID)
	if err != nil {
		return nil, notFound("Job not found", err)
	}
	if !p.CanManageJob(job) {
		return nil, apperrors.NewForbiddenError("Only the owning company may manage this job")
	}
	return job, nil
}

func (s *jobServiceImpl) Candidates(ctx context.Context, p auth.Principal, jobID string) ([]Candidate, error) {
	if err := p.RequireRole(models.RoleCompany, models.RoleAdmin); err != nil {
		return nil, err
	}
	job, err := s.ownedJob(ctx, p, jobID)
	if err != nil {
		return nil, err
	}

	if cached, ok := s.candidates.Get(job.ID); ok {
		return copyCandidates(cached.([]Candidate)), nil
	}

	profiles, err := s.students.ListProfiles(ctx)
	if err != nil {
		return nil, storeError("failed to load students", err)
	}
	ids := lo.Map(profiles, func(sp *models.StudentProfile, _ int) string { return sp.ID })

	docs, err := s.documents.DocumentTypes(ctx, ids)
	if err != nil {
		return nil, storeError("failed to load documents", err)
	}
	admissions, err := s.apps.AdmissionCounts(ctx, ids)
	if err != nil {
		return nil, storeError("failed to load admissions", err)
	}

	req := toMatchRequirements(job.Requirements)
	out := make([]Candidate, 0)
	for _, sp := range profiles {
		held := docs[sp.ID]
		if !held[models.DocumentTypeTranscript] {
			continue
		}
		res := matching.Score(toMatchProfile(sp), req)
		if !res.Qualified {
			continue
		}
		out = append(out, Candidate{
			Profile:         sp,
			Match:           res,
			HasTranscripts:  true,
			HasCertificates: held[models.DocumentTypeCertificate],
			AdmissionsCount: admissions[sp.ID],
		})
	}
	sort.SliceStable(out, func(i, k int) bool { return out[i].Match.Score > out[k].Match.Score })

	s.candidates.SetDefault(job.ID, out)
	return copyCandidates(out), nil
}

// copyCandidates keeps callers from reordering or editing the cached ranking
func copyCandidates(in []Candidate) []Candidate {
	out := make([]Candidate, len(in))
	for i, c := range in {
		profile := *c.Profile
		c.Profile = &profile
		c.Match.Reasons = append([]string(nil), c.Match.Reasons...)
		out[i] = c
	}
	return out
}

func (s *jobServiceImpl) UpdateRequirements(ctx context.Context, p auth.Principal, jobID string, req models.JobRequirements) (*models.Job, error) {
	if err := p.RequireRole(models.RoleCompany); err != nil {
		return nil, err
	}
	job, err := s.ownedJob(ctx, p, jobID)
	if err != nil {
		return nil, err
	}
	if req.MinimumGPA < 0 || req.MinimumExperience < 0 {
		return nil, apperrors.NewValidationError("requirements cannot be negative")
	}

	t := now()
	if err := s.jobs.UpdateRequirements(ctx, job.ID, req, t); err != nil {
		return nil, notFound("Job not found", err)
	}
	s.candidates.Delete(job.ID)

	job.Requirements = req
	job.UpdatedAt = t
	return job, nil
}

func (s *jobServiceImpl) Apply(ctx context.Context, p auth.Principal, jobID string) (*models.JobApplication, error) {
	if err := p.RequireRole(models.RoleStudent); err != nil {
		return nil, err
	}

	held, err := s.apps.List(ctx, models.ApplicationFilter{
		StudentID: p.ID,
		Statuses:  []models.ApplicationStatus{models.StatusAdmitted, models.StatusConfirmed},
	})
	if err != nil {
		return nil, storeError("failed to load admissions", err)
	}
	if admission.RequiresSelection(held) {
		return nil, reject("selection_required", apperrors.NewCustomError(apperrors.ErrSelectionRequired,
			"You hold more than one admission. Select an institution before applying for jobs"))
	}

	job, err := s.jobs.GetByID(ctx, jobID)
	if err != nil {
		return nil, notFound("Job not found", err)
	}
	if job.Status != models.JobStatusActive {
		return nil, apperrors.NewConflictError("This job is no longer accepting applications")
	}

	hasTranscript, err := s.documents.HasDocumentType(ctx, p.ID, models.DocumentTypeTranscript)
	if err != nil {
		return nil, storeError("failed to check documents", err)
	}
	if !hasTranscript {
		return nil, apperrors.NewValidationError("Please upload your academic transcript before applying for jobs")
	}

	exists, err := s.jobApps.Exists(ctx, job.ID, p.ID)
	if err != nil {
		return nil, storeError("failed to check job applications", err)
	}
	if exists {
		return nil, reject("duplicate_application", apperrors.NewCustomError(apperrors.ErrDuplicateApplication,
			"You have already applied for this job"))
	}

	ja := &models.JobApplication{
		ID:        uuid.NewString(),
		JobID:     job.ID,
		StudentID: p.ID,
		CompanyID: job.CompanyID,
		Status:    string(models.StatusPending),
		CreatedAt: now(),
	}
	if err := s.jobApps.Create(ctx, ja); err != nil {
		return nil, storeError("failed to create job application", err)
	}

	publishAll(s.bus, []pendingEvent{{
		topic: events.JobApplicationCreatedTopic,
		payload: events.JobApplicationCreated{
			JobApplicationID: ja.ID,
			JobID:            ja.JobID,
			StudentID:        ja.StudentID,
			At:               ja.CreatedAt,
		},
	}})
	return ja, nil
}
