package practice

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// QuestionType is multiple choice or student-produced response
type QuestionType string

const (
	TypeMCQ QuestionType = "mcq"
	TypeSPR QuestionType = "spr"
)

// Difficulty levels
const (
	DifficultyEasy   = "E"
	DifficultyMedium = "M"
	DifficultyHard   = "H"
)

// SessionStatus of a practice session
type SessionStatus string

const (
	StatusActive    SessionStatus = "active"
	StatusCompleted SessionStatus = "completed"
	StatusAbandoned SessionStatus = "abandoned"
)

// Question is a bank item
type Question struct {
	ID           uuid.UUID    `db:"id"`
	IdentifierID string       `db:"identifier_id"`
	DomainCode   string       `db:"domain_code"`
	DomainName   string       `db:"domain_name"`
	SkillCode    string       `db:"skill_code"`
	SkillName    string       `db:"skill_name"`
	ProviderCode string       `db:"provider_code"`
	ProviderName string       `db:"provider_name"`
	Type         QuestionType `db:"question_type"`
	Stimulus     string       `db:"stimulus"`
	Stem         string       `db:"stem"`
	Explanation  string       `db:"explanation"`
	MCQAnswer    string       `db:"mcq_answer"`
	MCQOptions   Options      `db:"mcq_options"`
	SPRAnswers   StringList   `db:"spr_answers"`
	Difficulty   string       `db:"difficulty"`
	IsActive     bool         `db:"is_active"`
	CreatedAt    time.Time    `db:"created_at"`
	UpdatedAt    time.Time    `db:"updated_at"`
}

// Filters select candidate questions; empty fields match everything.
type Filters struct {
	DomainCode   string       `db:"domain_code"`
	SkillCode    string       `db:"skill_code"`
	ProviderCode string       `db:"provider_code"`
	Type         QuestionType `db:"question_type"`
	Difficulty   string       `db:"difficulty"`
}

// Session is one run through an ordered question list
type Session struct {
	ID     uuid.UUID     `db:"id"`
	UserID uuid.UUID     `db:"user_id"`
	Status SessionStatus `db:"status"`
	Filters
	IsResume          bool       `db:"is_resume"`
	QuestionIDs       UUIDList   `db:"question_ids"`
	TotalQuestions    int        `db:"total_questions"`
	QuestionsAnswered int        `db:"questions_answered"`
	CorrectAnswers    int        `db:"correct_answers"`
	TotalTimeSeconds  int        `db:"total_time_seconds"`
	StartedAt         time.Time  `db:"started_at"`
	CompletedAt       *time.Time `db:"completed_at"`
}

// Accuracy is the percentage of answered questions that were correct, 0 when none were answered.
func (s *Session) Accuracy() float64 {
	if s.QuestionsAnswered == 0 {
		return 0
	}
	return float64(s.CorrectAnswers) * 100 / float64(s.QuestionsAnswered)
}

// Contains reports whether the question belongs to the session.
func (s *Session) Contains(questionID uuid.UUID) bool {
	for _, id := range s.QuestionIDs {
		if id == questionID {
			return true
		}
	}
	return false
}

// Answer is a recorded submission
type Answer struct {
	ID               uuid.UUID `db:"id"`
	SessionID        uuid.UUID `db:"session_id"`
	QuestionID       uuid.UUID `db:"question_id"`
	UserID           uuid.UUID `db:"user_id"`
	UserAnswer       string    `db:"user_answer"`
	CorrectAnswer    string    `db:"correct_answer"`
	IsCorrect        bool      `db:"is_correct"`
	TimeTakenSeconds int       `db:"time_taken_seconds"`
	AnsweredAt       time.Time `db:"answered_at"`
}

// Options maps choice letters to their text
type Options map[string]string

func (o Options) Value() (driver.Value, error) { return jsonValue(o, "{}") }

func (o *Options) Scan(src interface{}) error {
	out := Options{}
	if err := jsonScan(src, &out); err != nil {
		return err
	}
	*o = out
	return nil
}

// StringList is a JSONB array of strings
type StringList []string

func (l StringList) Value() (driver.Value, error) { return jsonValue(l, "[]") }

func (l *StringList) Scan(src interface{}) error {
	out := StringList{}
	if err := jsonScan(src, &out); err != nil {
		return err
	}
	*l = out
	return nil
}

// UUIDList is a JSONB array of ids
type UUIDList []uuid.UUID

func (l UUIDList) Value() (driver.Value, error) { return jsonValue(l, "[]") }

func (l *UUIDList) Scan(src interface{}) error {
	out := UUIDList{}
	if err := jsonScan(src, &out); err != nil {
		return err
	}
	*l = out
	return nil
}

func jsonValue(v interface{}, empty string) (driver.Value, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	if string(b) == "null" {
		return empty, nil
	}
	return string(b), nil
}

func jsonScan(src interface{}, dst interface{}) error {
	switch v := src.(type) {
	case nil:
		return nil
	case []byte:
		if len(v) == 0 {
			return nil
		}
		return json.Unmarshal(v, dst)
	case string:
		if v == "" {
			return nil
		}
		return json.Unmarshal([]byte(v), dst)
	default:
		return fmt.Errorf("practice: unsupported json source %T", src)
	}
}
