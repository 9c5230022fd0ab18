package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/justsurfingit/ats-backend/internal/dtos"
	"github.com/justsurfingit/ats-backend/internal/models"
)

// PromptVersion is stored with every analysis; bump it when the prompt changes.
const PromptVersion = "resume-v1"

// maxResumeChars bounds the resume text sent to the model.
const maxResumeChars = 30000

// ParsedResume is the structured resume the model is asked to return.
type ParsedResume struct {
	FullName        string                `json:"full_name"`
	FirstName       string                `json:"first_name"`
	LastName        string                `json:"last_name"`
	Email           string                `json:"email"`
	Phone           string                `json:"phone"`
	Location        string                `json:"location"`
	Headline        string                `json:"headline"`
	Summary         string                `json:"summary"`
	YearsExperience FlexFloat             `json:"years_experience"`
	LinkedInURL     string                `json:"linkedin_url"`
	PortfolioURL    string                `json:"portfolio_url"`
	Skills          []ParsedSkill         `json:"skills"`
	WorkExperience  []ParsedExperience    `json:"work_experience"`
	Education       []ParsedEducation     `json:"education"`
	Projects        []ParsedProject       `json:"projects"`
	Certifications  []ParsedCertification `json:"certifications"`
	Languages       []ParsedLanguage      `json:"languages"`
}

type ParsedSkill struct {
	Name  string    `json:"name"`
	Level string    `json:"level"`
	Years FlexFloat `json:"years"`
}

// UnmarshalJSON accepts either "Go" or {"name": "Go", ...}.
func (s *ParsedSkill) UnmarshalJSON(b []byte) error {
	if bytes.HasPrefix(bytes.TrimSpace(b), []byte(`"`)) {
		return json.Unmarshal(b, &s.Name)
	}
	type plain ParsedSkill
	return json.Unmarshal(b, (*plain)(s))
}

type ParsedExperience struct {
	Company     string `json:"company"`
	Title       string `json:"title"`
	Location    string `json:"location"`
	StartDate   string `json:"start_date"`
	EndDate     string `json:"end_date"`
	IsCurrent   bool   `json:"is_current"`
	Description string `json:"description"`
}

type ParsedEducation struct {
	Institution string  `json:"institution"`
	Degree      string  `json:"degree"`
	Field       string  `json:"field"`
	StartYear   FlexInt `json:"start_year"`
	EndYear     FlexInt `json:"end_year"`
	Grade       string  `json:"grade"`
}

type ParsedProject struct {
	Name         string   `json:"name"`
	Role         string   `json:"role"`
	Description  string   `json:"description"`
	URL          string   `json:"url"`
	Technologies []string `json:"technologies"`
}

type ParsedCertification struct {
	Name         string `json:"name"`
	Issuer       string `json:"issuer"`
	IssuedAt     string `json:"issued_at"`
	ExpiresAt    string `json:"expires_at"`
	CredentialID string `json:"credential_id"`
}

type ParsedLanguage struct {
	Name        string `json:"name"`
	Proficiency string `json:"proficiency"`
}

// FlexFloat decodes numbers, numeric strings ("5", "5+ years") and null.
type FlexFloat float64

func (f *FlexFloat) UnmarshalJSON(b []byte) error {
	v, err := flexNumber(b)
	*f = FlexFloat(v)
	return err
}

// FlexInt is FlexFloat truncated to an int.
type FlexInt int

func (i *FlexInt) UnmarshalJSON(b []byte) error {
	v, err := flexNumber(b)
	*i = FlexInt(int(v))
	return err
}

var leadingNumber = regexp.MustCompile(`-?\d+(\.\d+)?`)

func flexNumber(b []byte) (float64, error) {
	s := strings.TrimSpace(string(b))
	if s == "" || s == "null" {
		return 0, nil
	}
	if strings.HasPrefix(s, `"`) {
		var str string
		if err := json.Unmarshal(b, &str); err != nil {
			return 0, err
		}
		m := leadingNumber.FindString(str)
		if m == "" {
			return 0, nil
		}
		s = m
	}
	return strconv.ParseFloat(s, 64)
}

// Profile converts the parse into child-record inputs, dropping unnamed entries
// and duplicate skills.
func (p *ParsedResume) Profile() dtos.CandidateProfile {
	var prof dtos.CandidateProfile
	seen := map[string]bool{}
	for _, s := range p.Skills {
		name := strings.TrimSpace(s.Name)
		key := NormalizeSkill(name)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		prof.Skills = append(prof.Skills, dtos.SkillInput{Name: name, Level: s.Level, Years: max(float64(s.Years), 0)})
	}
	for _, w := range p.WorkExperience {
		if strings.TrimSpace(w.Company) == "" && strings.TrimSpace(w.Title) == "" {
			continue
		}
		prof.WorkExperiences = append(prof.WorkExperiences, dtos.ExperienceInput(w))
	}
	for _, e := range p.Education {
		if strings.TrimSpace(e.Institution) == "" && strings.TrimSpace(e.Degree) == "" {
			continue
		}
		prof.Educations = append(prof.Educations, dtos.EducationInput{
			Institution: e.Institution, Degree: e.Degree, Field: e.Field,
			StartYear: int(e.StartYear), EndYear: int(e.EndYear), Grade: e.Grade,
		})
	}
	for _, pr := range p.Projects {
		if strings.TrimSpace(pr.Name) == "" {
			continue
		}
		prof.Projects = append(prof.Projects, dtos.ProjectInput(pr))
	}
	for _, c := range p.Certifications {
		if strings.TrimSpace(c.Name) == "" {
			continue
		}
		prof.Certifications = append(prof.Certifications, dtos.CertificationInput(c))
	}
	for _, l := range p.Languages {
		if strings.TrimSpace(l.Name) == "" {
			continue
		}
		prof.Languages = append(prof.Languages, dtos.LanguageInput(l))
	}
	return prof
}

// ParseOutcome is one resume parse, AI or fallback.
type ParseOutcome struct {
	Parsed   *ParsedResume
	Status   string // models.AnalysisCompleted or models.AnalysisFallback
	Provider string
	Model    string
	Raw      string
	Error    string
	Attempts int
	Latency  time.Duration
}

type ResumeParser struct {
	LLM *LLMService
}

func NewResumeParser(llm *LLMService) *ResumeParser {
	return &ResumeParser{LLM: llm}
}

const resumePrompt = `You are an expert resume parser for an applicant tracking system.
Extract the candidate's details from the resume text below.

Rules:
- Respond with ONE valid JSON object and nothing else. No markdown fences.
- Use exactly the keys in the schema. Unknown values are "" (strings), 0 (numbers) or [] (lists).
- Dates use "YYYY-MM" when the month is known, otherwise "YYYY". Use "Present" for ongoing roles.
- Do not invent information that is not in the text.

Schema:
{
  "full_name": "", "first_name": "", "last_name": "",
  "email": "", "phone": "", "location": "",
  "headline": "Current title or one-line professional headline",
  "summary": "2-3 sentence professional summary",
  "years_experience": 0,
  "linkedin_url": "", "portfolio_url": "",
  "skills": [{"name": "", "level": "beginner|intermediate|advanced|expert", "years": 0}],
  "work_experience": [{"company": "", "title": "", "location": "", "start_date": "", "end_date": "", "is_current": false, "description": ""}],
  "education": [{"institution": "", "degree": "", "field": "", "start_year": 0, "end_year": 0, "grade": ""}],
  "projects": [{"name": "", "role": "", "description": "", "url": "", "technologies": []}],
  "certifications": [{"name": "", "issuer": "", "issued_at": "", "expires_at": "", "credential_id": ""}],
  "languages": [{"name": "", "proficiency": ""}]
}

Resume text:
"""
%s
"""`

// Parse runs the AI extraction and falls back to the keyword parser when the
// provider is unavailable or never returns usable JSON. It only errors when ctx ends.
func (p *ResumeParser) Parse(ctx context.Context, text string) (*ParseOutcome, error) {
	prompt := fmt.Sprintf(resumePrompt, truncateUTF8(text, maxResumeChars))

	out := &ParseOutcome{}
	var (
		parsed *ParsedResume
		comp   *Completion
		err    error
	)
	if p.LLM != nil {
		parsed, comp, err = GenerateJSON[ParsedResume](ctx, p.LLM, prompt)
	} else {
		err = fmt.Errorf("%w: no ai service", ErrAIUnavailable)
	}
	if comp != nil {
		out.Provider, out.Model = comp.Provider, comp.Model
		out.Raw, out.Attempts, out.Latency = comp.Text, comp.Attempts, comp.Latency
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	if err == nil {
		out.Parsed = parsed
		out.Status = models.AnalysisCompleted
		fillFromHeuristics(parsed, text)
		return out, nil
	}

	if out.Provider == "" && p.LLM != nil {
		if s, serr := p.LLM.ActiveSettings(ctx); serr == nil {
			out.Provider, out.Model = s.Provider, s.Model
		}
	}
	out.Parsed = HeuristicParse(text)
	out.Status = models.AnalysisFallback
	out.Error = err.Error()
	return out, nil
}

var (
	emailRe    = regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)
	phoneRe    = regexp.MustCompile(`\+?\(?\d[\d \t().\-]{7,}\d`)
	linkedinRe = regexp.MustCompile(`(?i)(?:https?://)?(?:[a-z]{2,3}\.)?linkedin\.com/in/[A-Za-z0-9_\-%]+/?`)
	githubRe   = regexp.MustCompile(`(?i)(?:https?://)?(?:www\.)?github\.com/[A-Za-z0-9_\-]+/?`)
)

var nameStopWords = []string{"resume", "curriculum", "vitae", "cv", "profile", "contact", "summary"}

// HeuristicParse extracts contact details and known skills without a model.
func HeuristicParse(text string) *ParsedResume {
	p := &ParsedResume{}
	p.Email = strings.ToLower(emailRe.FindString(text))
	p.Phone = findPhone(text)
	p.LinkedInURL = normalizeURL(linkedinRe.FindString(text))
	p.PortfolioURL = normalizeURL(githubRe.FindString(text))
	p.FullName = guessName(text)
	p.FirstName, p.LastName = splitName(p.FullName)
	for _, s := range FindKnownSkills(text) {
		p.Skills = append(p.Skills, ParsedSkill{Name: s})
	}
	return p
}

// fillFromHeuristics patches contact fields the model left empty.
func fillFromHeuristics(p *ParsedResume, text string) {
	if p.Email == "" {
		p.Email = strings.ToLower(emailRe.FindString(text))
	}
	if p.Phone == "" {
		p.Phone = findPhone(text)
	}
	if p.LinkedInURL == "" {
		p.LinkedInURL = normalizeURL(linkedinRe.FindString(text))
	}
	if p.FullName == "" {
		p.FullName = strings.TrimSpace(p.FirstName + " " + p.LastName)
	}
	if p.FirstName == "" && p.LastName == "" {
		p.FirstName, p.LastName = splitName(p.FullName)
	}
}

func findPhone(text string) string {
	for _, m := range phoneRe.FindAllString(text, -1) {
		digits := 0
		for _, r := range m {
			if r >= '0' && r <= '9' {
				digits++
			}
		}
		if digits >= 9 && digits <= 15 {
			return strings.TrimSpace(m)
		}
	}
	return ""
}

func normalizeURL(u string) string {
	u = strings.TrimSuffix(strings.TrimSpace(u), "/")
	if u == "" {
		return ""
	}
	if !strings.HasPrefix(strings.ToLower(u), "http") {
		u = "https://" + u
	}
	return u
}

// guessName takes the first short line that looks like a person's name.
func guessName(text string) string {
	for i, line := range strings.Split(text, "\n") {
		if i > 15 {
			break
		}
		line = strings.TrimSpace(line)
		if line == "" || len(line) > 60 || strings.ContainsAny(line, "@:/|0123456789") {
			continue
		}
		words := strings.Fields(line)
		if len(words) < 2 || len(words) > 5 {
			continue
		}
		lower := strings.ToLower(line)
		stop := false
		for _, w := range nameStopWords {
			if strings.Contains(lower, w) {
				stop = true
				break
			}
		}
		if !stop {
			return line
		}
	}
	return ""
}

func splitName(full string) (first, last string) {
	parts := strings.Fields(full)
	switch len(parts) {
	case 0:
		return "", ""
	case 1:
		return parts[0], ""
	default:
		return parts[0], strings.Join(parts[1:], " ")
	}
}

// parseLooseDate understands "2021", "2021-03", "2021-03-15", "03/2021" and
// "Mar 2021". Present/current and unknown values give nil.
func parseLooseDate(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	switch strings.ToLower(s) {
	case "present", "current", "now", "ongoing":
		return nil
	}
	for _, layout := range []string{"2006-01-02", "2006-01", "2006", "01/2006", "Jan 2006", "January 2006", "2006/01"} {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}
