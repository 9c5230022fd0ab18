package dtos

type CandidateCreateRequest struct {
	Email string `json:"email" binding:"required,email"`

	FirstName       string  `json:"first_name"`
	LastName        string  `json:"last_name"`
	FullName        string  `json:"full_name"`
	Phone           string  `json:"phone"`
	Location        string  `json:"location"`
	Headline        string  `json:"headline"`
	Summary         string  `json:"summary"`
	YearsExperience float64 `json:"years_experience" binding:"gte=0,lte=80"`
	LinkedInURL     string  `json:"linkedin_url" binding:"omitempty,url"`
	PortfolioURL    string  `json:"portfolio_url" binding:"omitempty,url"`
	Status          string  `json:"status" binding:"omitempty,oneof=new active hired archived"`
	Source          string  `json:"source" binding:"omitempty,oneof=manual upload email"`
}

type CandidateUpdateRequest struct {
	Email           *string  `json:"email" binding:"omitempty,email"`
	FirstName       *string  `json:"first_name"`
	LastName        *string  `json:"last_name"`
	FullName        *string  `json:"full_name"`
	Phone           *string  `json:"phone"`
	Location        *string  `json:"location"`
	Headline        *string  `json:"headline"`
	Summary         *string  `json:"summary"`
	YearsExperience *float64 `json:"years_experience" binding:"omitempty,gte=0,lte=80"`
	LinkedInURL     *string  `json:"linkedin_url" binding:"omitempty,url"`
	PortfolioURL    *string  `json:"portfolio_url" binding:"omitempty,url"`
	Status          *string  `json:"status" binding:"omitempty,oneof=new active hired archived"`
}

type CandidateFilter struct {
	Q        string `form:"q"`
	Status   string `form:"status" binding:"omitempty,oneof=new active hired archived"`
	Skill    string `form:"skill"`
	Page     int    `form:"page" binding:"gte=0"`
	PageSize int    `form:"page_size" binding:"gte=0,lte=200"`
}

// CandidateProfile is the full set of child records. Dates are free-form
// ("2021", "2021-03", "2021-03-15", "Present").
type CandidateProfile struct {
	Skills          []SkillInput         `json:"skills" binding:"dive"`
	WorkExperiences []ExperienceInput    `json:"work_experiences" binding:"dive"`
	Educations      []EducationInput     `json:"educations" binding:"dive"`
	Projects        []ProjectInput       `json:"projects" binding:"dive"`
	Certifications  []CertificationInput `json:"certifications" binding:"dive"`
	Languages       []LanguageInput      `json:"languages" binding:"dive"`
}

type SkillInput struct {
	Name  string  `json:"name" binding:"required"`
	Level string  `json:"level"`
	Years float64 `json:"years" binding:"gte=0"`
}

type ExperienceInput struct {
	Company     string `json:"company"`
	Title       string `json:"title"`
	Location    string `json:"location"`
	StartDate   string `json:"start_date"`
	EndDate     string `json:"end_date"`
	IsCurrent   bool   `json:"is_current"`
	Description string `json:"description"`
}

type EducationInput struct {
	Institution string `json:"institution"`
	Degree      string `json:"degree"`
	Field       string `json:"field"`
	StartYear   int    `json:"start_year"`
	EndYear     int    `json:"end_year"`
	Grade       string `json:"grade"`
}

type ProjectInput struct {
	Name         string   `json:"name" binding:"required"`
	Role         string   `json:"role"`
	Description  string   `json:"description"`
	URL          string   `json:"url"`
	Technologies []string `json:"technologies"`
}

type CertificationInput struct {
	Name         string `json:"name" binding:"required"`
	Issuer       string `json:"issuer"`
	IssuedAt     string `json:"issued_at"`
	ExpiresAt    string `json:"expires_at"`
	CredentialID string `json:"credential_id"`
}

type LanguageInput struct {
	Name        string `json:"name" binding:"required"`
	Proficiency string `json:"proficiency"`
}
