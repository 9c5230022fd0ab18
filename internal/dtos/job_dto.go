package dtos

type JobExtractionRequest struct {
	RawHTML string `json:"raw_html" binding:"required"`
	URL     string `json:"url"`
}

// ExtractedJob is what the AI pulls out of a raw posting.
type ExtractedJob struct {
	Title          string   `json:"title"`
	Department     string   `json:"department"`
	Location       string   `json:"location"`
	EmploymentType string   `json:"employment_type"`
	Description    string   `json:"description"`
	RequiredSkills []string `json:"required_skills"`
	SalaryRange    string   `json:"salary_range"`
}

type JobCreationRequest struct {
	Title string `json:"title" binding:"required,max=200"`

	// Optional Fields
	Department     string   `json:"department"`
	Location       string   `json:"location"`
	EmploymentType string   `json:"employment_type"`
	Description    string   `json:"description"`
	Requirements   string   `json:"requirements"`
	RequiredSkills []string `json:"required_skills"`
	SalaryMin      int      `json:"salary_min" binding:"gte=0"`
	SalaryMax      int      `json:"salary_max" binding:"gte=0"`
	Currency       string   `json:"currency" binding:"omitempty,len=3"`
	JobLink        string   `json:"job_link" binding:"omitempty,url"`
	Status         string   `json:"status" binding:"omitempty,oneof=draft open closed"` // Defaults to "draft" if empty
}

// JobUpdateRequest only touches the fields that are present.
type JobUpdateRequest struct {
	Title          *string   `json:"title" binding:"omitempty,min=1,max=200"`
	Department     *string   `json:"department"`
	Location       *string   `json:"location"`
	EmploymentType *string   `json:"employment_type"`
	Description    *string   `json:"description"`
	Requirements   *string   `json:"requirements"`
	RequiredSkills *[]string `json:"required_skills"`
	SalaryMin      *int      `json:"salary_min" binding:"omitempty,gte=0"`
	SalaryMax      *int      `json:"salary_max" binding:"omitempty,gte=0"`
	Currency       *string   `json:"currency" binding:"omitempty,len=3"`
	JobLink        *string   `json:"job_link" binding:"omitempty,url"`
	Status         *string   `json:"status" binding:"omitempty,oneof=draft open closed"`
}

type JobFilter struct {
	Status string `form:"status" binding:"omitempty,oneof=draft open closed"`
	Q      string `form:"q"`
}

type MatchFilter struct {
	MinScore float64 `form:"min_score" binding:"gte=0,lte=100"`
}
