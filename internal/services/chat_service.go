package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"unicode"

	"github.com/justsurfingit/ats-backend/internal/dtos"
	"github.com/justsurfingit/ats-backend/internal/models"
	"github.com/tmc/langchaingo/llms"
	"gorm.io/gorm"
)

const (
	defaultChatCandidates = 10
	maxChatCandidates     = 25
	maxChatHistory        = 10
	maxChatTurnChars      = 1000
	maxSummaryChars       = 400
)

type ChatService struct {
	DB       *gorm.DB
	LLM      *LLMService
	Settings *SettingsService
}

func NewChatService(db *gorm.DB, llm *LLMService, settings *SettingsService) *ChatService {
	return &ChatService{DB: db, LLM: llm, Settings: settings}
}

const chatSystemPrompt = `You are a recruiting assistant inside an applicant tracking system%s.
Answer the recruiter's question using ONLY the candidate profiles below.
If the profiles do not contain the answer, say so plainly. Do not invent candidates,
skills or experience. Refer to candidates by name and #id. Keep answers concise.

Candidate profiles:
%s`

var chatStopWords = map[string]bool{
	"the": true, "and": true, "for": true, "with": true, "who": true, "has": true, "have": true,
	"are": true, "any": true, "our": true, "can": true, "what": true, "which": true, "show": true,
	"find": true, "list": true, "candidate": true, "candidates": true, "give": true, "best": true,
	"top": true, "years": true, "experience": true, "from": true, "that": true, "this": true,
	"know": true, "knows": true, "about": true, "tell": true, "does": true, "there": true,
	"in": true, "of": true, "to": true, "is": true, "an": true, "at": true, "on": true, "or": true,
	"by": true, "we": true, "me": true, "my": true, "do": true, "as": true, "be": true, "it": true,
	"us": true, "if": true, "so": true, "no": true, "up": true, "how": true, "many": true, "most": true,
}

// searchTerms picks the words of a question worth searching for.
func searchTerms(message string) []string {
	seen := map[string]bool{}
	var terms []string
	for _, w := range strings.FieldsFunc(strings.ToLower(message), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '+' && r != '#'
	}) {
		if len(w) < 2 || chatStopWords[w] || seen[w] {
			continue
		}
		seen[w] = true
		terms = append(terms, w)
	}
	return terms
}

func preloadProfile(db *gorm.DB) *gorm.DB {
	return db.Preload("Skills").
		Preload("WorkExperiences", func(db *gorm.DB) *gorm.DB { return db.Order("start_date DESC NULLS LAST") }).
		Preload("Educations")
}

// contextCandidates returns the candidates the answer may draw on.
func (s *ChatService) contextCandidates(ctx context.Context, req *dtos.ChatRequest) ([]models.Candidate, error) {
	limit := s.Settings.Int(ctx, SettingChatContextLimit, defaultChatCandidates)
	if limit <= 0 || limit > maxChatCandidates {
		limit = defaultChatCandidates
	}

	var out []models.Candidate
	if len(req.CandidateIDs) > 0 {
		ids := req.CandidateIDs
		if len(ids) > maxChatCandidates {
			return nil, invalid("at most %d candidate_ids per question", maxChatCandidates)
		}
		if err := preloadProfile(s.DB.WithContext(ctx)).Where("id IN ?", ids).Order("id").Find(&out).Error; err != nil {
			return nil, err
		}
		if len(out) == 0 {
			return nil, fmt.Errorf("none of the requested candidates %w", ErrNotFound)
		}
		return out, nil
	}

	terms := searchTerms(req.Message)
	q := preloadProfile(s.DB.WithContext(ctx)).Model(&models.Candidate{}).
		Where("candidates.status <> ?", models.CandidateStatusArchived)
	if len(terms) > 0 {
		byKey, err := skillNamesByKey(s.DB.WithContext(ctx))
		if err != nil {
			return nil, err
		}
		var conds []string
		var args []any
		for _, t := range terms {
			like := "%" + escapeLike(t) + "%"
			conds = append(conds, `(candidates.full_name ILIKE ? OR candidates.headline ILIKE ? OR candidates.summary ILIKE ?
				OR candidates.location ILIKE ? OR EXISTS (SELECT 1 FROM skills WHERE skills.candidate_id = candidates.id AND skills.name ILIKE ?))`)
			args = append(args, like, like, like, like, like)
			if names := byKey[NormalizeSkill(t)]; len(names) > 0 {
				conds = append(conds, `EXISTS (SELECT 1 FROM skills WHERE skills.candidate_id = candidates.id AND skills.name IN ?)`)
				args = append(args, names)
			}
		}
		q = q.Where(strings.Join(conds, " OR "), args...)
	}
	if err := q.Order("candidates.updated_at DESC").Limit(limit * 5).Find(&out).Error; err != nil {
		return nil, err
	}
	rankCandidates(out, terms)
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// rankCandidates orders candidates by how many search terms their profile mentions.
func rankCandidates(cands []models.Candidate, terms []string) {
	if len(terms) == 0 {
		return
	}
	hits := make(map[uint]int, len(cands))
	for _, c := range cands {
		text := strings.ToLower(renderProfile(&c))
		skills := make(map[string]bool, len(c.Skills))
		for _, sk := range c.Skills {
			skills[NormalizeSkill(sk.Name)] = true
		}
		for _, t := range terms {
			if strings.Contains(text, t) || skills[NormalizeSkill(t)] {
				hits[c.ID]++
			}
		}
	}
	sort.SliceStable(cands, func(i, j int) bool { return hits[cands[i].ID] > hits[cands[j].ID] })
}

// renderProfile is the compact text form of a candidate given to the model.
func renderProfile(c *models.Candidate) string {
	var b strings.Builder
	head := []string{fmt.Sprintf("[Candidate #%d] %s", c.ID, orDash(c.FullName))}
	for _, v := range []string{c.Headline, c.Location} {
		if v != "" {
			head = append(head, v)
		}
	}
	if c.YearsExperience > 0 {
		head = append(head, strconv.FormatFloat(c.YearsExperience, 'f', -1, 64)+" yrs experience")
	}
	head = append(head, "status: "+c.Status)
	b.WriteString(strings.Join(head, " | "))
	b.WriteString("\nEmail: " + c.Email)

	if len(c.Skills) > 0 {
		names := make([]string, 0, len(c.Skills))
		for _, s := range c.Skills {
			names = append(names, s.Name)
		}
		b.WriteString("\nSkills: " + strings.Join(names, ", "))
	}
	if len(c.WorkExperiences) > 0 {
		var jobs []string
		for _, w := range c.WorkExperiences {
			jobs = append(jobs, fmt.Sprintf("%s at %s (%s)", orDash(w.Title), orDash(w.Company), span(w)))
		}
		b.WriteString("\nExperience: " + strings.Join(jobs, "; "))
	}
	if len(c.Educations) > 0 {
		var edus []string
		for _, e := range c.Educations {
			s := strings.TrimSpace(e.Degree + " " + e.Field)
			if e.Institution != "" {
				s += ", " + e.Institution
			}
			if e.EndYear > 0 {
				s += fmt.Sprintf(" (%d)", e.EndYear)
			}
			edus = append(edus, strings.TrimSpace(s))
		}
		b.WriteString("\nEducation: " + strings.Join(edus, "; "))
	}
	if c.Summary != "" {
		b.WriteString("\nSummary: " + truncateUTF8(c.Summary, maxSummaryChars))
	}
	return b.String()
}

func span(w models.WorkExperience) string {
	from, to := "?", "?"
	if w.StartDate != nil {
		from = w.StartDate.Format("2006-01")
	}
	switch {
	case w.IsCurrent:
		to = "present"
	case w.EndDate != nil:
		to = w.EndDate.Format("2006-01")
	}
	return from + " to " + to
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}

// Ask answers a recruiter question from stored candidate data.
func (s *ChatService) Ask(ctx context.Context, req *dtos.ChatRequest) (*dtos.ChatResponse, error) {
	if strings.TrimSpace(req.Message) == "" {
		return nil, invalid("message is required")
	}
	cands, err := s.contextCandidates(ctx, req)
	if err != nil {
		return nil, err
	}

	ids := make([]uint, 0, len(cands))
	profiles := make([]string, 0, len(cands))
	for i := range cands {
		ids = append(ids, cands[i].ID)
		profiles = append(profiles, renderProfile(&cands[i]))
	}
	contextText := strings.Join(profiles, "\n\n")
	if contextText == "" {
		contextText = "(no matching candidates)"
	}
	company := ""
	if name := s.Settings.String(ctx, SettingCompanyName, ""); name != "" {
		company = " for " + name
	}

	msgs := []llms.MessageContent{llms.TextParts(llms.ChatMessageTypeSystem, fmt.Sprintf(chatSystemPrompt, company, contextText))}
	history := req.History
	if len(history) > maxChatHistory {
		history = history[len(history)-maxChatHistory:]
	}
	for _, turn := range history {
		role := llms.ChatMessageTypeHuman
		if turn.Role == "assistant" {
			role = llms.ChatMessageTypeAI
		}
		msgs = append(msgs, llms.TextParts(role, truncateUTF8(turn.Content, maxChatTurnChars)))
	}
	msgs = append(msgs, llms.TextParts(llms.ChatMessageTypeHuman, req.Message))

	comp, err := s.LLM.generate(ctx, msgs, false, nonEmpty)
	if err != nil {
		if errors.Is(err, ErrAIUnavailable) || ctx.Err() != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrAIUnavailable, err)
	}
	return &dtos.ChatResponse{
		Answer:       strings.TrimSpace(comp.Text),
		CandidateIDs: ids,
		Provider:     comp.Provider,
		Model:        comp.Model,
	}, nil
}
