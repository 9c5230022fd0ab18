package dtos

type ApplicationCreateRequest struct {
	CandidateID uint   `json:"candidate_id" binding:"required"`
	JobID       uint   `json:"job_id" binding:"required"`
	ResumeID    *uint  `json:"resume_id"`
	Notes       string `json:"notes"`
}

type ApplicationStatusRequest struct {
	Status string `json:"status" binding:"required,oneof=applied screening interview offer rejected hired"`
	Note   string `json:"note"`
}

type ApplicationFilter struct {
	JobID       uint   `form:"job_id"`
	CandidateID uint   `form:"candidate_id"`
	Status      string `form:"status" binding:"omitempty,oneof=applied screening interview offer rejected hired"`
}
