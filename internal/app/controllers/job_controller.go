package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/samber/lo"
	"github.com/yigit/admissions/internal/app/models/dto"
	"github.com/yigit/admissions/internal/app/services"
	"github.com/yigit/admissions/internal/middleware"
)

// JobController handles job feed, candidate ranking and job applications
type JobController struct {
	jobService services.JobService
}

// NewJobController creates a new JobController
func NewJobController(jobService services.JobService) *JobController {
	return &JobController{
		jobService: jobService,
	}
}

// ListJobs returns the caller's view of job postings
// @Summary List jobs
// @Description Students receive active jobs they qualify for, ranked by match score. Companies see their own postings; administrators see all.
// @Tags jobs
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.APIResponse{data=[]dto.JobFeedItem} "Jobs retrieved"
// @Failure 401 {object} dto.ErrorResponse "Unauthorized - Invalid or missing token"
// @Failure 403 {object} dto.ErrorResponse "Forbidden"
// @Failure 404 {object} dto.ErrorResponse "Student profile not found"
// @Router /jobs [get]
func (c *JobController) ListJobs(ctx *gin.Context) {
	p, ok := principal(ctx)
	if !ok {
		return
	}

	jobs, err := c.jobService.ListJobs(ctx.Request.Context(), p)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	items := lo.Map(jobs, func(j services.ScoredJob, _ int) dto.JobFeedItem {
		item := dto.JobFeedItem{Job: j.Job}
		if j.Match != nil {
			item.Score = &j.Match.Score
			item.Qualified = &j.Match.Qualified
			item.Reasons = j.Match.Reasons
		}
		return item
	})
	ctx.JSON(http.StatusOK, dto.NewAPIResponse(items, ""))
}

// GetCandidates ranks students for a job
// @Summary Rank candidates for a job
// @Description Qualified students holding a transcript, ranked by match score. Rankings are cached per job until its requirements change, so admission counts can lag by up to the cache TTL.
// @Tags jobs
// @Produce json
// @Security BearerAuth
// @Param id path string true "Job ID"
// @Success 200 {object} dto.APIResponse{data=[]dto.CandidateResponse} "Candidates retrieved"
// @Failure 401 {object} dto.ErrorResponse "Unauthorized - Invalid or missing token"
// @Failure 403 {object} dto.ErrorResponse "Forbidden - Not the owning company"
// @Failure 404 {object} dto.ErrorResponse "Job not found"
// @Router /jobs/{id}/candidates [get]
func (c *JobController) GetCandidates(ctx *gin.Context) {
	p, ok := principal(ctx)
	if !ok {
		return
	}

	candidates, err := c.jobService.Candidates(ctx.Request.Context(), p, ctx.Param("id"))
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	resp := lo.Map(candidates, func(cd services.Candidate, _ int) dto.CandidateResponse {
		return dto.CandidateResponse{
			StudentID:       cd.Profile.ID,
			Name:            cd.Profile.Name,
			Email:           cd.Profile.Email,
			GPA:             cd.Profile.GPA,
			FieldOfStudy:    cd.Profile.FieldOfStudy,
			Skills:          cd.Profile.Skills,
			YearsExperience: cd.Profile.YearsExperience,
			Score:           cd.Match.Score,
			Qualified:       cd.Match.Qualified,
			Reasons:         cd.Match.Reasons,
			HasTranscripts:  cd.HasTranscripts,
			HasCertificates: cd.HasCertificates,
			AdmissionsCount: cd.AdmissionsCount,
		}
	})
	ctx.JSON(http.StatusOK, dto.NewAPIResponse(resp, ""))
}

// UpdateRequirements replaces a job's requirements
// @Summary Update job requirements
// @Tags jobs
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Job ID"
// @Param request body dto.UpdateRequirementsRequest true "Requirements"
// @Success 200 {object} dto.APIResponse{data=models.Job} "Requirements updated"
// @Failure 400 {object} dto.ErrorResponse "Invalid requirements"
// @Failure 401 {object} dto.ErrorResponse "Unauthorized - Invalid or missing token"
// @Failure 403 {object} dto.ErrorResponse "Forbidden - Not the owning company"
// @Failure 404 {object} dto.ErrorResponse "Job not found"
// @Router /jobs/{id}/requirements [put]
func (c *JobController) UpdateRequirements(ctx *gin.Context) {
	p, ok := principal(ctx)
	if !ok {
		return
	}

	var req dto.UpdateRequirementsRequest
	if !middleware.BindJSON(ctx, &req) {
		return
	}

	job, err := c.jobService.UpdateRequirements(ctx.Request.Context(), p, ctx.Param("id"), req.ToModel())
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.NewAPIResponse(job, "Job requirements updated"))
}

// Apply submits a job application
// @Summary Apply for a job
// @Description Requires an uploaded transcript. Blocked while the student must still select an institution.
// @Tags jobs
// @Produce json
// @Security BearerAuth
// @Param id path string true "Job ID"
// @Success 201 {object} dto.APIResponse{data=models.JobApplication} "Application submitted"
// @Failure 400 {object} dto.ErrorResponse "Transcript missing or already applied"
// @Failure 401 {object} dto.ErrorResponse "Unauthorized - Invalid or missing token"
// @Failure 403 {object} dto.ErrorResponse "Forbidden - Students only"
// @Failure 404 {object} dto.ErrorResponse "Job not found"
// @Failure 409 {object} dto.ErrorResponse "Job closed or institution selection required"
// @Router /jobs/{id}/apply [post]
func (c *JobController) Apply(ctx *gin.Context) {
	p, ok := principal(ctx)
	if !ok {
		return
	}

	ja, err := c.jobService.Apply(ctx.Request.Context(), p, ctx.Param("id"))
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusCreated, dto.NewAPIResponse(ja, "Job application submitted"))
}
