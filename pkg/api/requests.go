package api

// ProcessDocRequest is the body of POST /process-doc.
type ProcessDocRequest struct {
	DocumentURL string `json:"document_url" binding:"required"`
	UserID      string `json:"user_id" binding:"required"`
}

// QuestionUpdateRequest is the body of PUT /documents/:id/questions/:question_id.
// ReEmbed defaults to true when omitted.
type QuestionUpdateRequest struct {
	QuestionText  string            `json:"question_text" binding:"required"`
	Options       map[string]string `json:"options"`
	CorrectAnswer *string           `json:"correct_answer"`
	ReEmbed       *bool             `json:"re_embed"`
}
