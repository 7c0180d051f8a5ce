package practice

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/dsatschool/delta-api/internal/domain/delta"
)

// Requests

type StartSessionRequest struct {
	DomainCode   string `json:"domain_code" validate:"max=20"`
	SkillCode    string `json:"skill_code" validate:"max=20"`
	ProviderCode string `json:"provider_code" validate:"max=20"`
	QuestionType string `json:"question_type" validate:"question_type"`
	Difficulty   string `json:"difficulty" validate:"omitempty,oneof=E M H"`
	Resume       bool   `json:"resume"`
}

func (r StartSessionRequest) Filters() Filters {
	return Filters{
		DomainCode:   r.DomainCode,
		SkillCode:    r.SkillCode,
		ProviderCode: r.ProviderCode,
		Type:         QuestionType(r.QuestionType),
		Difficulty:   r.Difficulty,
	}
}

type SubmitAnswerRequest struct {
	QuestionID string `json:"question_id" validate:"required,uuid"`
	Answer     string `json:"answer" validate:"required,max=100"`
	TimeTaken  int    `json:"time_taken_seconds" validate:"gte=0"`
}

// Responses

// QuestionResponse omits answers and the explanation; those come back with the graded answer.
type QuestionResponse struct {
	ID           uuid.UUID         `json:"id"`
	IdentifierID string            `json:"identifier_id"`
	DomainCode   string            `json:"domain_code"`
	DomainName   string            `json:"domain_name"`
	SkillCode    string            `json:"skill_code"`
	SkillName    string            `json:"skill_name"`
	ProviderCode string            `json:"provider_code"`
	ProviderName string            `json:"provider_name"`
	QuestionType QuestionType      `json:"question_type"`
	Stimulus     string            `json:"stimulus"`
	Stem         string            `json:"stem"`
	Options      map[string]string `json:"options,omitempty"`
	Difficulty   string            `json:"difficulty"`
	IsMarked     bool              `json:"is_marked"`
	IsMastered   bool              `json:"is_mastered"`
}

func NewQuestionResponse(v *QuestionView) QuestionResponse {
	q := v.Question
	resp := QuestionResponse{
		ID:           q.ID,
		IdentifierID: q.IdentifierID,
		DomainCode:   q.DomainCode,
		DomainName:   q.DomainName,
		SkillCode:    q.SkillCode,
		SkillName:    q.SkillName,
		ProviderCode: q.ProviderCode,
		ProviderName: q.ProviderName,
		QuestionType: q.Type,
		Stimulus:     q.Stimulus,
		Stem:         q.Stem,
		Difficulty:   q.Difficulty,
		IsMarked:     v.Marked,
		IsMastered:   v.Mastered,
	}
	if q.Type == TypeMCQ {
		resp.Options = q.MCQOptions
	}
	return resp
}

type SessionResponse struct {
	ID                uuid.UUID     `json:"id"`
	Status            SessionStatus `json:"status"`
	DomainCode        string        `json:"domain_code,omitempty"`
	SkillCode         string        `json:"skill_code,omitempty"`
	ProviderCode      string        `json:"provider_code,omitempty"`
	QuestionType      QuestionType  `json:"question_type,omitempty"`
	Difficulty        string        `json:"difficulty,omitempty"`
	IsResume          bool          `json:"is_resume"`
	QuestionIDs       []uuid.UUID   `json:"question_ids"`
	TotalQuestions    int           `json:"total_questions"`
	QuestionsAnswered int           `json:"questions_answered"`
	CorrectAnswers    int           `json:"correct_answers"`
	Accuracy          float64       `json:"accuracy"`
	TotalTimeSeconds  int           `json:"total_time_seconds"`
	StartedAt         time.Time     `json:"started_at"`
	CompletedAt       *time.Time    `json:"completed_at,omitempty"`
}

func NewSessionResponse(s *Session) SessionResponse {
	ids := []uuid.UUID(s.QuestionIDs)
	if ids == nil {
		ids = []uuid.UUID{}
	}
	return SessionResponse{
		ID:                s.ID,
		Status:            s.Status,
		DomainCode:        s.DomainCode,
		SkillCode:         s.SkillCode,
		ProviderCode:      s.ProviderCode,
		QuestionType:      s.Type,
		Difficulty:        s.Difficulty,
		IsResume:          s.IsResume,
		QuestionIDs:       ids,
		TotalQuestions:    s.TotalQuestions,
		QuestionsAnswered: s.QuestionsAnswered,
		CorrectAnswers:    s.CorrectAnswers,
		Accuracy:          s.Accuracy(),
		TotalTimeSeconds:  s.TotalTimeSeconds,
		StartedAt:         s.StartedAt,
		CompletedAt:       s.CompletedAt,
	}
}

type AnswerResponse struct {
	QuestionID        uuid.UUID                  `json:"question_id"`
	IsCorrect         bool                       `json:"is_correct"`
	UserAnswer        string                     `json:"user_answer"`
	CorrectAnswer     string                     `json:"correct_answer"`
	Explanation       string                     `json:"explanation"`
	QuestionsAnswered int                        `json:"questions_answered"`
	CorrectAnswers    int                        `json:"correct_answers"`
	DeltaEarned       *delta.TransactionResponse `json:"delta_earned,omitempty"`
}

func NewAnswerResponse(res *AnswerResult) AnswerResponse {
	resp := AnswerResponse{
		QuestionID:        res.Answer.QuestionID,
		IsCorrect:         res.Answer.IsCorrect,
		UserAnswer:        res.Answer.UserAnswer,
		CorrectAnswer:     res.Answer.CorrectAnswer,
		Explanation:       res.Explanation,
		QuestionsAnswered: res.Session.QuestionsAnswered,
		CorrectAnswers:    res.Session.CorrectAnswers,
	}
	if res.Award != nil {
		t := delta.NewTransactionResponse(res.Award, nil)
		resp.DeltaEarned = &t
	}
	return resp
}

type CompletionResponse struct {
	Session     SessionResponse             `json:"session"`
	Streak      int                         `json:"streak"`
	DeltaEarned []delta.TransactionResponse `json:"delta_earned"`
	TotalEarned string                      `json:"total_earned"`
	Formatted   string                      `json:"formatted_total_earned"`
}

func NewCompletionResponse(c *Completion) CompletionResponse {
	resp := CompletionResponse{
		Session:     NewSessionResponse(c.Session),
		Streak:      c.Streak,
		DeltaEarned: make([]delta.TransactionResponse, 0, len(c.Awards)),
	}
	total := decimal.Zero
	for _, t := range c.Awards {
		resp.DeltaEarned = append(resp.DeltaEarned, delta.NewTransactionResponse(t, nil))
		total = total.Add(t.Amount)
	}
	resp.TotalEarned = total.StringFixed(2)
	resp.Formatted = delta.Format(total)
	return resp
}
