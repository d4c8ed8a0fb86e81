package dto

import "github.com/yigit/admissions/internal/app/models"

// SubmitApplicationRequest is the body of POST /applications
type SubmitApplicationRequest struct {
	InstitutionID     string `json:"institutionId" binding:"required,max=128" example:"inst-1"`
	InstitutionName   string `json:"institutionName" binding:"max=255" example:"Limkokwing University"`
	CourseID          string `json:"courseId" binding:"required,max=128" example:"course-42"`
	Course            string `json:"course" binding:"max=255" example:"BSc Software Engineering"`
	Level             string `json:"level" binding:"required" example:"Undergraduate"`
	PreviousEducation string `json:"previousEducation" binding:"required,max=2000" example:"LGCSE Secondary School Certificate"`
}

// UpdateStatusRequest is the body of PUT /applications/:id/status
type UpdateStatusRequest struct {
	Status  string  `json:"status" binding:"required,oneof=pending admitted rejected waiting confirmed declined" example:"admitted"`
	Remarks *string `json:"remarks,omitempty" binding:"omitempty,max=2000"`
}

// SelectInstitutionRequest is the body of POST /applications/select-institution
type SelectInstitutionRequest struct {
	SelectedApplicationID string `json:"selectedApplicationId" binding:"required" example:"6c1f..."`
}

// WaitingListRequest identifies one course's waiting list
type WaitingListRequest struct {
	InstitutionID string `json:"institutionId" form:"institutionId" example:"inst-1"`
	CourseID      string `json:"courseId" form:"courseId" binding:"required" example:"course-42"`
}

// PublishAdmissionsRequest is the body of POST /applications/publish
type PublishAdmissionsRequest struct {
	InstitutionID string `json:"institutionId" example:"inst-1"`
}

// ApplicationListQuery holds the list filters of GET /applications
type ApplicationListQuery struct {
	Status        string `form:"status" binding:"omitempty,oneof=pending admitted rejected waiting confirmed declined"`
	InstitutionID string `form:"institutionId"`
	CourseID      string `form:"courseId"`
}

// ApplicationListResponse is one page of applications
type ApplicationListResponse struct {
	Applications []*models.Application `json:"applications"`
	Pagination   PaginationInfo        `json:"pagination"`
}

// AdmissionsResponse lists a student's offers and whether a choice is pending
type AdmissionsResponse struct {
	Admissions        []*models.Application `json:"admissions"`
	Confirmed         *models.Application   `json:"confirmed,omitempty"`
	SelectionRequired bool                  `json:"selectionRequired"`
}

// SelectionOutcome reports what happened to one of the declined admissions
type SelectionOutcome struct {
	ApplicationID         string  `json:"applicationId"`
	InstitutionID         string  `json:"institutionId"`
	CourseID              string  `json:"courseId"`
	Declined              bool    `json:"declined"`
	PromotedApplicationID *string `json:"promotedApplicationId,omitempty"`
	Error                 *string `json:"error,omitempty"`
}

// SelectInstitutionResponse is the result of POST /applications/select-institution
type SelectInstitutionResponse struct {
	Confirmed *models.Application `json:"confirmed"`
	Outcomes  []SelectionOutcome  `json:"outcomes"`
}

// StatusUpdateResponse is the result of PUT /applications/{id}/status
type StatusUpdateResponse struct {
	Application *models.Application `json:"application"`
	Promoted    *models.Application `json:"promoted,omitempty"`
	Outcomes    []SelectionOutcome  `json:"outcomes,omitempty"`
}

// PromoteResponse carries the promoted application, null when the list was empty
type PromoteResponse struct {
	Promoted *models.Application `json:"promoted"`
}

// CountResponse carries a single count
type CountResponse struct {
	Count int64 `json:"count" example:"3"`
}
