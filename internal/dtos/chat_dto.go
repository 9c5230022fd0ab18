package dtos

type ChatTurn struct {
	Role    string `json:"role" binding:"required,oneof=user assistant"`
	Content string `json:"content" binding:"required"`
}

type ChatRequest struct {
	Message      string     `json:"message" binding:"required,max=4000"`
	CandidateIDs []uint     `json:"candidate_ids"`
	History      []ChatTurn `json:"history" binding:"omitempty,max=50,dive"`
}

type ChatResponse struct {
	Answer       string `json:"answer"`
	CandidateIDs []uint `json:"candidate_ids"`
	Provider     string `json:"provider"`
	Model        string `json:"model"`
}
