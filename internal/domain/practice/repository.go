package practice

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/dsatschool/delta-api/internal/pkg/database"
)

const queryTimeout = 5 * time.Second

// Upper bound on the questions placed in one session.
const maxSessionQuestions = 500

const questionColumns = `id, identifier_id, domain_code, domain_name, skill_code, skill_name,
	provider_code, provider_name, question_type, stimulus, stem, explanation, mcq_answer,
	mcq_options, spr_answers, difficulty, is_active, created_at, updated_at`

const sessionColumns = `id, user_id, status, domain_code, skill_code, provider_code, question_type,
	difficulty, is_resume, question_ids, total_questions, questions_answered, correct_answers,
	total_time_seconds, started_at, completed_at`

// Repository is the Postgres store for the question bank and sessions.
type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) beginTx(ctx context.Context) (*sqlx.Tx, error) {
	tx, err := r.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return nil, fmt.Errorf("%w: begin tx", ErrInternal)
	}
	return tx, nil
}

// CreateQuestion inserts a bank item.
func (r *Repository) CreateQuestion(ctx context.Context, q *Question) error {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	if q.ID == uuid.Nil {
		q.ID = uuid.New()
	}
	if q.Difficulty == "" {
		q.Difficulty = DifficultyMedium
	}
	err := r.db.QueryRowxContext(ctx2, `
		INSERT INTO practice_questions (id, identifier_id, domain_code, domain_name, skill_code, skill_name,
			provider_code, provider_name, question_type, stimulus, stem, explanation, mcq_answer,
			mcq_options, spr_answers, difficulty, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		RETURNING created_at, updated_at
	`, q.ID, q.IdentifierID, q.DomainCode, q.DomainName, q.SkillCode, q.SkillName,
		q.ProviderCode, q.ProviderName, q.Type, q.Stimulus, q.Stem, q.Explanation, q.MCQAnswer,
		q.MCQOptions, q.SPRAnswers, q.Difficulty, q.IsActive).Scan(&q.CreatedAt, &q.UpdatedAt)
	if err != nil {
		return fmt.Errorf("%w: create question", ErrInternal)
	}
	return nil
}

// GetQuestion returns an active question or ErrQuestionNotFound
func (r *Repository) GetQuestion(ctx context.Context, id uuid.UUID) (*Question, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var q Question
	err := r.db.GetContext(ctx2, &q, `SELECT `+questionColumns+` FROM practice_questions WHERE id = $1 AND is_active`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrQuestionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get question", ErrInternal)
	}
	return &q, nil
}

// CandidateIDs returns active questions matching every non-empty filter, newest first.
func (r *Repository) CandidateIDs(ctx context.Context, f Filters) ([]uuid.UUID, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	query := `SELECT id FROM practice_questions WHERE is_active`
	args := make([]interface{}, 0, 5)
	add := func(column, value string) {
		if value == "" {
			return
		}
		args = append(args, value)
		query += fmt.Sprintf(" AND %s = $%d", column, len(args))
	}
	add("domain_code", f.DomainCode)
	add("skill_code", f.SkillCode)
	add("provider_code", f.ProviderCode)
	add("question_type", string(f.Type))
	add("difficulty", f.Difficulty)

	args = append(args, maxSessionQuestions)
	query += fmt.Sprintf(" ORDER BY created_at DESC, identifier_id LIMIT $%d", len(args))

	ids := make([]uuid.UUID, 0)
	if err := r.db.SelectContext(ctx2, &ids, query, args...); err != nil {
		return nil, fmt.Errorf("%w: candidate questions", ErrInternal)
	}
	return ids, nil
}

// History loads mastery and missed answers of userID for the given questions.
func (r *Repository) History(ctx context.Context, userID uuid.UUID, ids []uuid.UUID) (History, error) {
	h := History{Mastered: map[uuid.UUID]bool{}, Missed: map[uuid.UUID]bool{}}
	if len(ids) == 0 {
		return h, nil
	}

	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	query, args, err := sqlx.In(`SELECT question_id FROM practice_mastered_questions WHERE user_id = ? AND question_id IN (?)`, userID, ids)
	if err != nil {
		return h, fmt.Errorf("%w: build mastered query", ErrInternal)
	}
	mastered := make([]uuid.UUID, 0)
	if err := r.db.SelectContext(ctx2, &mastered, r.db.Rebind(query), args...); err != nil {
		return h, fmt.Errorf("%w: load mastered", ErrInternal)
	}
	for _, id := range mastered {
		h.Mastered[id] = true
	}

	query, args, err = sqlx.In(`
		SELECT DISTINCT question_id FROM practice_answers
		WHERE user_id = ? AND NOT is_correct AND question_id IN (?)`, userID, ids)
	if err != nil {
		return h, fmt.Errorf("%w: build missed query", ErrInternal)
	}
	missed := make([]uuid.UUID, 0)
	if err := r.db.SelectContext(ctx2, &missed, r.db.Rebind(query), args...); err != nil {
		return h, fmt.Errorf("%w: load missed", ErrInternal)
	}
	for _, id := range missed {
		if !h.Mastered[id] {
			h.Missed[id] = true
		}
	}
	return h, nil
}

func (r *Repository) CreateSession(ctx context.Context, s *Session) error {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	s.Status = StatusActive
	s.TotalQuestions = len(s.QuestionIDs)

	err := r.db.QueryRowxContext(ctx2, `
		INSERT INTO practice_sessions (id, user_id, status, domain_code, skill_code, provider_code,
			question_type, difficulty, is_resume, question_ids, total_questions)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING started_at
	`, s.ID, s.UserID, s.Status, s.DomainCode, s.SkillCode, s.ProviderCode,
		s.Type, s.Difficulty, s.IsResume, s.QuestionIDs, s.TotalQuestions).Scan(&s.StartedAt)
	if err != nil {
		return fmt.Errorf("%w: create session", ErrInternal)
	}
	return nil
}

// GetSession returns the session or ErrSessionNotFound
func (r *Repository) GetSession(ctx context.Context, id uuid.UUID) (*Session, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var s Session
	err := r.db.GetContext(ctx2, &s, `SELECT `+sessionColumns+` FROM practice_sessions WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get session", ErrInternal)
	}
	return &s, nil
}

func (r *Repository) lockSession(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) (*Session, error) {
	var s Session
	err := tx.GetContext(ctx, &s, `SELECT `+sessionColumns+` FROM practice_sessions WHERE id = $1 FOR UPDATE`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: lock session", ErrInternal)
	}
	return &s, nil
}

func (r *Repository) insertAnswer(ctx context.Context, tx *sqlx.Tx, a *Answer) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	err := tx.QueryRowxContext(ctx, `
		INSERT INTO practice_answers (id, session_id, question_id, user_id, user_answer,
			correct_answer, is_correct, time_taken_seconds)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING answered_at
	`, a.ID, a.SessionID, a.QuestionID, a.UserID, a.UserAnswer, a.CorrectAnswer,
		a.IsCorrect, a.TimeTakenSeconds).Scan(&a.AnsweredAt)
	if err != nil {
		if database.IsUniqueViolation(err, "practice_answers_session_question_key") {
			return ErrAlreadyAnswered
		}
		return fmt.Errorf("%w: insert answer", ErrInternal)
	}
	return nil
}

func (r *Repository) saveProgress(ctx context.Context, tx *sqlx.Tx, s *Session) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE practice_sessions
		SET questions_answered = $2, correct_answers = $3, total_time_seconds = $4,
		    status = $5, completed_at = $6
		WHERE id = $1
	`, s.ID, s.QuestionsAnswered, s.CorrectAnswers, s.TotalTimeSeconds, s.Status, s.CompletedAt)
	if err != nil {
		return fmt.Errorf("%w: update session", ErrInternal)
	}
	return nil
}

// CompletedCount returns how many sessions the user has completed.
func (r *Repository) CompletedCount(ctx context.Context, userID uuid.UUID) (int, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var n int
	err := r.db.GetContext(ctx2, &n, `SELECT COUNT(*) FROM practice_sessions WHERE user_id = $1 AND status = 'completed'`, userID)
	if err != nil {
		return 0, fmt.Errorf("%w: count completed sessions", ErrInternal)
	}
	return n, nil
}

// PracticeDays returns the distinct UTC days with a completed session, most recent first.
func (r *Repository) PracticeDays(ctx context.Context, userID uuid.UUID, limit int) ([]time.Time, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	days := make([]time.Time, 0, limit)
	err := r.db.SelectContext(ctx2, &days, `
		SELECT DISTINCT (completed_at AT TIME ZONE 'UTC')::date AS day
		FROM practice_sessions
		WHERE user_id = $1 AND status = 'completed' AND completed_at IS NOT NULL
		ORDER BY day DESC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: practice days", ErrInternal)
	}
	return days, nil
}

func (r *Repository) SetMastered(ctx context.Context, userID, questionID uuid.UUID, on bool) error {
	return r.toggle(ctx, "practice_mastered_questions", userID, questionID, on)
}

func (r *Repository) SetMarked(ctx context.Context, userID, questionID uuid.UUID, on bool) error {
	return r.toggle(ctx, "practice_marked_questions", userID, questionID, on)
}

func (r *Repository) toggle(ctx context.Context, table string, userID, questionID uuid.UUID, on bool) error {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var err error
	if on {
		_, err = r.db.ExecContext(ctx2, `INSERT INTO `+table+` (user_id, question_id) VALUES ($1, $2)
			ON CONFLICT (user_id, question_id) DO NOTHING`, userID, questionID)
		if database.PQCode(err) == database.SQLStateForeignKeyViolation {
			return ErrQuestionNotFound
		}
	} else {
		_, err = r.db.ExecContext(ctx2, `DELETE FROM `+table+` WHERE user_id = $1 AND question_id = $2`, userID, questionID)
	}
	if err != nil {
		return fmt.Errorf("%w: update %s", ErrInternal, table)
	}
	return nil
}

// IsMarked reports whether the user flagged the question for review.
func (r *Repository) IsMarked(ctx context.Context, userID, questionID uuid.UUID) (bool, bool, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var flags struct {
		Marked   bool `db:"marked"`
		Mastered bool `db:"mastered"`
	}
	err := r.db.GetContext(ctx2, &flags, `
		SELECT
			EXISTS (SELECT 1 FROM practice_marked_questions WHERE user_id = $1 AND question_id = $2) AS marked,
			EXISTS (SELECT 1 FROM practice_mastered_questions WHERE user_id = $1 AND question_id = $2) AS mastered
	`, userID, questionID)
	if err != nil {
		return false, false, fmt.Errorf("%w: question flags", ErrInternal)
	}
	return flags.Marked, flags.Mastered, nil
}
