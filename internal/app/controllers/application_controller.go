package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/samber/lo"
	"github.com/yigit/admissions/internal/app/auth"
	"github.com/yigit/admissions/internal/app/models"
	"github.com/yigit/admissions/internal/app/models/dto"
	"github.com/yigit/admissions/internal/app/services"
	"github.com/yigit/admissions/internal/middleware"
	"github.com/yigit/admissions/internal/pkg/apperrors"
	"github.com/yigit/admissions/internal/pkg/helpers"
)

// ApplicationController handles course application operations
type ApplicationController struct {
	applicationService services.ApplicationService
	resolver           services.AdmissionResolver
	waitingList        services.WaitingListService
}

// NewApplicationController creates a new ApplicationController
func NewApplicationController(
	applicationService services.ApplicationService,
	resolver services.AdmissionResolver,
	waitingList services.WaitingListService,
) *ApplicationController {
	return &ApplicationController{
		applicationService: applicationService,
		resolver:           resolver,
		waitingList:        waitingList,
	}
}

// principal returns the authenticated caller or writes a 401
func principal(ctx *gin.Context) (auth.Principal, bool) {
	p, ok := middleware.PrincipalFromContext(ctx)
	if !ok {
		errorDetail := dto.NewErrorDetail(dto.ErrorCodeUnauthorized, "Authentication required")
		ctx.AbortWithStatusJSON(http.StatusUnauthorized, dto.NewErrorResponse(errorDetail))
	}
	return p, ok
}

// SubmitApplication handles application submission
// @Summary Submit a course application
// @Description Applies to a course. At most two active applications per institution; the previous education must qualify for the program level.
// @Tags applications
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body dto.SubmitApplicationRequest true "Application details"
// @Success 201 {object} dto.APIResponse{data=models.Application} "Application submitted"
// @Failure 400 {object} dto.ErrorResponse "Invalid request, capacity exceeded or duplicate application"
// @Failure 401 {object} dto.ErrorResponse "Unauthorized - Invalid or missing token"
// @Failure 403 {object} dto.ErrorResponse "Forbidden - Students only"
// @Failure 409 {object} dto.ErrorResponse "Institution selection required"
// @Failure 422 {object} dto.ErrorResponse "Previous education does not qualify"
// @Failure 503 {object} dto.ErrorResponse "Datastore unavailable"
// @Router /applications [post]
func (c *ApplicationController) SubmitApplication(ctx *gin.Context) {
	p, ok := principal(ctx)
	if !ok {
		return
	}

	var req dto.SubmitApplicationRequest
	if !middleware.BindJSON(ctx, &req) {
		return
	}

	app, err := c.applicationService.Submit(ctx.Request.Context(), p, services.SubmitInput{
		InstitutionID:     req.InstitutionID,
		InstitutionName:   req.InstitutionName,
		CourseID:          req.CourseID,
		CourseName:        req.Course,
		Level:             req.Level,
		PreviousEducation: req.PreviousEducation,
	})
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusCreated, dto.NewAPIResponse(app, "Application submitted successfully"))
}

// ListApplications lists applications visible to the caller
// @Summary List applications
// @Description Students see their own applications, institutions see applications to them, administrators see all.
// @Tags applications
// @Produce json
// @Security BearerAuth
// @Param status query string false "Filter by status" Enums(pending, admitted, rejected, waiting, confirmed, declined)
// @Param institutionId query string false "Filter by institution (administrators)"
// @Param courseId query string false "Filter by course"
// @Param page query int false "Page number" default(1)
// @Param size query int false "Page size" default(20)
// @Success 200 {object} dto.APIResponse{data=dto.ApplicationListResponse} "Applications retrieved"
// @Failure 400 {object} dto.ErrorResponse "Invalid filter"
// @Failure 401 {object} dto.ErrorResponse "Unauthorized - Invalid or missing token"
// @Failure 403 {object} dto.ErrorResponse "Forbidden"
// @Router /applications [get]
func (c *ApplicationController) ListApplications(ctx *gin.Context) {
	p, ok := principal(ctx)
	if !ok {
		return
	}

	var query dto.ApplicationListQuery
	if !middleware.BindQuery(ctx, &query) {
		return
	}
	page, size := helpers.ParsePaginationParams(ctx)
	offset, limit := helpers.CalculateOffsetLimit(page, size)

	filter := models.ApplicationFilter{
		InstitutionID: query.InstitutionID,
		CourseID:      query.CourseID,
		Offset:        offset,
		Limit:         limit,
	}
	if query.Status != "" {
		filter.Statuses = []models.ApplicationStatus{models.ApplicationStatus(query.Status)}
	}

	apps, total, err := c.applicationService.List(ctx.Request.Context(), p, filter)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.NewAPIResponse(dto.ApplicationListResponse{
		Applications: apps,
		Pagination:   helpers.NewPaginationInfo(total, page, size),
	}, ""))
}

// GetApplication retrieves one application
// @Summary Get application details
// @Tags applications
// @Produce json
// @Security BearerAuth
// @Param id path string true "Application ID"
// @Success 200 {object} dto.APIResponse{data=models.Application} "Application retrieved"
// @Failure 401 {object} dto.ErrorResponse "Unauthorized - Invalid or missing token"
// @Failure 403 {object} dto.ErrorResponse "Forbidden"
// @Failure 404 {object} dto.ErrorResponse "Application not found"
// @Router /applications/{id} [get]
func (c *ApplicationController) GetApplication(ctx *gin.Context) {
	p, ok := principal(ctx)
	if !ok {
		return
	}

	app, err := c.applicationService.Get(ctx.Request.Context(), p, ctx.Param("id"))
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.NewAPIResponse(app, ""))
}

// GetAdmissions lists the caller's admission offers
// @Summary Get my admissions
// @Description Returns admitted applications, the confirmed enrollment if any, and whether an institution must be selected.
// @Tags applications
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.APIResponse{data=dto.AdmissionsResponse} "Admissions retrieved"
// @Failure 401 {object} dto.ErrorResponse "Unauthorized - Invalid or missing token"
// @Failure 403 {object} dto.ErrorResponse "Forbidden - Students only"
// @Router /applications/admissions [get]
func (c *ApplicationController) GetAdmissions(ctx *gin.Context) {
	p, ok := principal(ctx)
	if !ok {
		return
	}

	view, err := c.applicationService.Admissions(ctx.Request.Context(), p)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.NewAPIResponse(dto.AdmissionsResponse{
		Admissions:        view.Admissions,
		Confirmed:         view.Confirmed,
		SelectionRequired: view.SelectionRequired,
	}, ""))
}

// UpdateStatus moves an application through the status machine
// @Summary Update application status
// @Description Admitting is refused while the student already holds an admission at the institution or must first select an institution. Declining an admission promotes the next waiting applicant. Confirming declines the student's other admissions and fills each freed seat.
// @Tags applications
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Application ID"
// @Param request body dto.UpdateStatusRequest true "New status"
// @Success 200 {object} dto.APIResponse{data=dto.StatusUpdateResponse} "Status updated"
// @Failure 400 {object} dto.ErrorResponse "Invalid status or transition"
// @Failure 401 {object} dto.ErrorResponse "Unauthorized - Invalid or missing token"
// @Failure 403 {object} dto.ErrorResponse "Forbidden - Not the owning institution"
// @Failure 404 {object} dto.ErrorResponse "Application not found"
// @Failure 409 {object} dto.ErrorResponse "Duplicate admission, selection required or already confirmed"
// @Failure 503 {object} dto.ErrorResponse "Datastore unavailable"
// @Router /applications/{id}/status [put]
func (c *ApplicationController) UpdateStatus(ctx *gin.Context) {
	p, ok := principal(ctx)
	if !ok {
		return
	}

	var req dto.UpdateStatusRequest
	if !middleware.BindJSON(ctx, &req) {
		return
	}

	result, err := c.applicationService.Transition(ctx.Request.Context(), p, ctx.Param("id"),
		models.ApplicationStatus(req.Status), req.Remarks)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	message := "Application status updated"
	switch {
	case failedOutcomes(result.Outcomes) > 0:
		message = "Enrollment confirmed; some admissions could not be declined"
	case result.Promoted != nil:
		message = "Application declined; next waiting applicant admitted"
	}
	ctx.JSON(http.StatusOK, dto.NewAPIResponse(dto.StatusUpdateResponse{
		Application: result.Application,
		Promoted:    result.Promoted,
		Outcomes:    selectionOutcomes(result.Outcomes),
	}, message))
}

// SelectInstitution confirms one admission and declines the rest
// @Summary Select an institution
// @Description Confirms the chosen admission, then declines every other admission of the student and fills each freed seat from its waiting list.
// @Tags applications
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body dto.SelectInstitutionRequest true "Chosen application"
// @Success 200 {object} dto.APIResponse{data=dto.SelectInstitutionResponse} "Enrollment confirmed"
// @Failure 400 {object} dto.ErrorResponse "Invalid request"
// @Failure 401 {object} dto.ErrorResponse "Unauthorized - Invalid or missing token"
// @Failure 404 {object} dto.ErrorResponse "Admitted application not found"
// @Failure 409 {object} dto.ErrorResponse "Already confirmed elsewhere"
// @Failure 503 {object} dto.ErrorResponse "Datastore unavailable"
// @Router /applications/select-institution [post]
func (c *ApplicationController) SelectInstitution(ctx *gin.Context) {
	p, ok := principal(ctx)
	if !ok {
		return
	}

	var req dto.SelectInstitutionRequest
	if !middleware.BindJSON(ctx, &req) {
		return
	}

	result, err := c.resolver.SelectInstitution(ctx.Request.Context(), p, req.SelectedApplicationID)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	message := "Enrollment confirmed"
	if result.Failed() > 0 {
		message = "Enrollment confirmed; some admissions could not be declined"
	}
	ctx.JSON(http.StatusOK, dto.NewAPIResponse(dto.SelectInstitutionResponse{
		Confirmed: result.Confirmed,
		Outcomes:  selectionOutcomes(result.Outcomes),
	}, message))
}

func selectionOutcomes(outcomes []services.SelectionOutcome) []dto.SelectionOutcome {
	return lo.Map(outcomes, func(o services.SelectionOutcome, _ int) dto.SelectionOutcome {
		out := dto.SelectionOutcome{
			ApplicationID: o.ApplicationID,
			InstitutionID: o.InstitutionID,
			CourseID:      o.CourseID,
			Declined:      o.Declined,
		}
		if o.Promoted != nil {
			out.PromotedApplicationID = &o.Promoted.ID
		}
		if o.Err != nil {
			msg := apperrors.Message(o.Err)
			out.Error = &msg
		}
		return out
	})
}

func failedOutcomes(outcomes []services.SelectionOutcome) int {
	return lo.CountBy(outcomes, func(o services.SelectionOutcome) bool { return o.Err != nil })
}

// PublishAdmissions makes an institution's admission decisions visible
// @Summary Publish admissions
// @Tags applications
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body dto.PublishAdmissionsRequest false "Institution (administrators only)"
// @Success 200 {object} dto.APIResponse{data=dto.CountResponse} "Admissions published"
// @Failure 400 {object} dto.ErrorResponse "Institution required"
// @Failure 401 {object} dto.ErrorResponse "Unauthorized - Invalid or missing token"
// @Failure 403 {object} dto.ErrorResponse "Forbidden"
// @Router /applications/publish [post]
func (c *ApplicationController) PublishAdmissions(ctx *gin.Context) {
	p, ok := principal(ctx)
	if !ok {
		return
	}

	var req dto.PublishAdmissionsRequest
	if ctx.Request.ContentLength > 0 && !middleware.BindJSON(ctx, &req) {
		return
	}

	n, err := c.applicationService.Publish(ctx.Request.Context(), p, req.InstitutionID)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.NewAPIResponse(dto.CountResponse{Count: n}, "Admissions published"))
}

// PromoteFromWaitingList admits the earliest waiting applicant of a course
// @Summary Promote from waiting list
// @Description Admits the applicant who joined the waiting list first. Returns a null promotion when the list is empty.
// @Tags waiting-list
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body dto.WaitingListRequest true "Course"
// @Success 200 {object} dto.APIResponse{data=dto.PromoteResponse} "Promotion result"
// @Failure 400 {object} dto.ErrorResponse "Invalid request"
// @Failure 401 {object} dto.ErrorResponse "Unauthorized - Invalid or missing token"
// @Failure 403 {object} dto.ErrorResponse "Forbidden"
// @Failure 503 {object} dto.ErrorResponse "Datastore unavailable"
// @Router /applications/waiting-list/promote [post]
func (c *ApplicationController) PromoteFromWaitingList(ctx *gin.Context) {
	p, ok := principal(ctx)
	if !ok {
		return
	}

	var req dto.WaitingListRequest
	if !middleware.BindJSON(ctx, &req) {
		return
	}

	promoted, err := c.waitingList.Promote(ctx.Request.Context(), p, req.InstitutionID, req.CourseID)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	message := "No applicants on the waiting list"
	if promoted != nil {
		message = "Applicant promoted from waiting list"
	}
	ctx.JSON(http.StatusOK, dto.NewAPIResponse(dto.PromoteResponse{Promoted: promoted}, message))
}

// CountWaitingList returns the waiting list length of a course
// @Summary Count waiting list
// @Tags waiting-list
// @Produce json
// @Security BearerAuth
// @Param institutionId query string false "Institution (administrators only)"
// @Param courseId query string true "Course ID"
// @Success 200 {object} dto.APIResponse{data=dto.CountResponse} "Waiting list length"
// @Failure 400 {object} dto.ErrorResponse "Invalid request"
// @Failure 401 {object} dto.ErrorResponse "Unauthorized - Invalid or missing token"
// @Failure 403 {object} dto.ErrorResponse "Forbidden"
// @Router /applications/waiting-list/count [get]
func (c *ApplicationController) CountWaitingList(ctx *gin.Context) {
	p, ok := principal(ctx)
	if !ok {
		return
	}

	var req dto.WaitingListRequest
	if !middleware.BindQuery(ctx, &req) {
		return
	}

	n, err := c.waitingList.Count(ctx.Request.Context(), p, req.InstitutionID, req.CourseID)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.NewAPIResponse(dto.CountResponse{Count: n}, ""))
}
