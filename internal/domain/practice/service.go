package practice

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/dsatschool/delta-api/internal/domain/delta"
)

// Number of recent practice days loaded for streak awards.
const streakWindow = 7

// Awarder credits activity rewards on the ledger.
type Awarder interface {
	AwardForActivity(ctx context.Context, userID uuid.UUID, rule string, ac delta.AwardContext) (*delta.Transaction, error)
}

// Service implements practice sessions
type Service struct {
	repo    *Repository
	awarder Awarder
	now     func() time.Time
}

func NewService(repo *Repository, awarder Awarder) *Service {
	return &Service{repo: repo, awarder: awarder, now: time.Now}
}

// QuestionView is a question with the caller's flags.
type QuestionView struct {
	Question *Question
	Marked   bool
	Mastered bool
}

// GetQuestion returns an active question and the user's flags on it.
func (s *Service) GetQuestion(ctx context.Context, userID, id uuid.UUID) (*QuestionView, error) {
	q, err := s.repo.GetQuestion(ctx, id)
	if err != nil {
		return nil, err
	}
	marked, mastered, err := s.repo.IsMarked(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	return &QuestionView{Question: q, Marked: marked, Mastered: mastered}, nil
}

func (f Filters) validate() error {
	if f.Type != "" && f.Type != TypeMCQ && f.Type != TypeSPR {
		return fmt.Errorf("%w: question type must be mcq or spr", ErrInvalidFilter)
	}
	switch f.Difficulty {
	case "", DifficultyEasy, DifficultyMedium, DifficultyHard:
	default:
		return fmt.Errorf("%w: difficulty must be E, M or H", ErrInvalidFilter)
	}
	return nil
}

// StartSession creates a session over the questions matching f. In resume mode
// the list is reordered by the user's history.
func (s *Service) StartSession(ctx context.Context, userID uuid.UUID, f Filters, resume bool) (*Session, error) {
	if err := f.validate(); err != nil {
		return nil, err
	}

	ids, err := s.repo.CandidateIDs(ctx, f)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, ErrNoQuestions
	}

	if resume {
		h, err := s.repo.History(ctx, userID, ids)
		if err != nil {
			return nil, err
		}
		ids = ResumeOrder(ids, h)
	}

	session := &Session{
		UserID:      userID,
		Filters:     f,
		IsResume:    resume,
		QuestionIDs: ids,
	}
	if err := s.repo.CreateSession(ctx, session); err != nil {
		return nil, err
	}

	log.Info().
		Str("user_id", userID.String()).
		Str("session_id", session.ID.String()).
		Int("questions", session.TotalQuestions).
		Bool("resume", resume).
		Msg("practice session started")

	return session, nil
}

// GetSession returns a session owned by userID.
func (s *Service) GetSession(ctx context.Context, userID, id uuid.UUID) (*Session, error) {
	session, err := s.repo.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}
	if session.UserID != userID {
		return nil, ErrSessionNotFound
	}
	return session, nil
}

// AnswerResult is the outcome of SubmitAnswer.
type AnswerResult struct {
	Answer      *Answer
	Explanation string
	Session     *Session
	Award       *delta.Transaction
}

// SubmitAnswer grades and records one answer, then rewards a correct one.
func (s *Service) SubmitAnswer(ctx context.Context, userID, sessionID, questionID uuid.UUID, answer string, timeTaken int) (*AnswerResult, error) {
	if timeTaken < 0 {
		timeTaken = 0
	}

	q, err := s.repo.GetQuestion(ctx, questionID)
	if err != nil {
		return nil, err
	}

	tx, err := s.repo.beginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	session, err := s.repo.lockSession(ctx, tx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.UserID != userID {
		return nil, ErrSessionNotFound
	}
	if session.Status != StatusActive {
		return nil, ErrSessionNotActive
	}
	if !session.Contains(questionID) {
		return nil, ErrQuestionNotInSession
	}

	correct, expected := Check(q, answer)
	a := &Answer{
		SessionID:        sessionID,
		QuestionID:       questionID,
		UserID:           userID,
		UserAnswer:       answer,
		CorrectAnswer:    expected,
		IsCorrect:        correct,
		TimeTakenSeconds: timeTaken,
	}
	if err := s.repo.insertAnswer(ctx, tx, a); err != nil {
		return nil, err
	}

	session.QuestionsAnswered++
	if correct {
		session.CorrectAnswers++
	}
	session.TotalTimeSeconds += timeTaken
	if err := s.repo.saveProgress(ctx, tx, session); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%w: commit answer", ErrInternal)
	}

	result := &AnswerResult{Answer: a, Explanation: q.Explanation, Session: session}
	if correct {
		result.Award = s.award(ctx, userID, delta.RuleCorrectAnswer, delta.AwardContext{
			ReferenceID:   fmt.Sprintf("%s:%s", sessionID, questionID),
			ReferenceType: "practice_answer",
			Metadata:      delta.JSONMap{"session_id": sessionID.String(), "question_id": questionID.String()},
		})
	}
	return result, nil
}

// Completion is the outcome of CompleteSession.
type Completion struct {
	Session *Session
	Streak  int
	Awards  []*delta.Transaction
}

// CompleteSession closes the session and grants the session rewards. Calling it
// again on a completed session re-runs the awards, which are idempotent.
func (s *Service) CompleteSession(ctx context.Context, userID, sessionID uuid.UUID) (*Completion, error) {
	tx, err := s.repo.beginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	session, err := s.repo.lockSession(ctx, tx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.UserID != userID {
		return nil, ErrSessionNotFound
	}
	switch session.Status {
	case StatusAbandoned:
		return nil, ErrSessionNotActive
	case StatusActive:
		now := s.now().UTC()
		session.Status = StatusCompleted
		session.CompletedAt = &now
		if err := s.repo.saveProgress(ctx, tx, session); err != nil {
			return nil, err
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%w: commit completion", ErrInternal)
	}

	out := &Completion{Session: session}
	if session.QuestionsAnswered == 0 {
		return out, nil
	}

	completed, err := s.repo.CompletedCount(ctx, userID)
	if err != nil {
		return nil, err
	}
	days, err := s.repo.PracticeDays(ctx, userID, streakWindow)
	if err != nil {
		return nil, err
	}
	out.Streak = Streak(days, s.now())

	ac := delta.AwardContext{
		ReferenceID:   sessionID.String(),
		ReferenceType: "practice_session",
		Values: map[string]float64{
			"accuracy":           session.Accuracy(),
			"streak":             float64(out.Streak),
			"questions_answered": float64(session.QuestionsAnswered),
			"correct_answers":    float64(session.CorrectAnswers),
		},
		Metadata: delta.JSONMap{"session_id": sessionID.String()},
	}

	rules := []string{delta.RuleCompleteSession, delta.RuleHighAccuracy, delta.RulePerfectPractice}
	if completed == 1 {
		rules = append(rules, delta.RuleFirstPractice)
	}
	rules = append(rules, delta.RuleWeeklyStreak3, delta.RuleWeeklyStreak7)

	for _, rule := range rules {
		if t := s.award(ctx, userID, rule, ac); t != nil {
			out.Awards = append(out.Awards, t)
		}
	}

	log.Info().
		Str("user_id", userID.String()).
		Str("session_id", sessionID.String()).
		Float64("accuracy", session.Accuracy()).
		Int("streak", out.Streak).
		Int("awards", len(out.Awards)).
		Msg("practice session completed")

	return out, nil
}

// award never fails the practice flow; ledger errors are logged.
func (s *Service) award(ctx context.Context, userID uuid.UUID, rule string, ac delta.AwardContext) *delta.Transaction {
	if s.awarder == nil {
		return nil
	}
	t, err := s.awarder.AwardForActivity(ctx, userID, rule, ac)
	if err != nil {
		log.Error().Err(err).
			Str("user_id", userID.String()).
			Str("rule", rule).
			Str("reference_id", ac.ReferenceID).
			Msg("practice award failed")
		return nil
	}
	return t
}

// Streak counts consecutive UTC days in days (most recent first) ending today.
func Streak(days []time.Time, today time.Time) int {
	want := truncateDay(today)
	streak := 0
	for _, d := range days {
		day := truncateDay(d)
		if day.After(want) {
			continue
		}
		if !day.Equal(want) {
			break
		}
		streak++
		want = want.AddDate(0, 0, -1)
	}
	return streak
}

func truncateDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func (s *Service) SetMastered(ctx context.Context, userID, questionID uuid.UUID) error {
	if _, err := s.repo.GetQuestion(ctx, questionID); err != nil {
		return err
	}
	return s.repo.SetMastered(ctx, userID, questionID, true)
}

func (s *Service) UnsetMastered(ctx context.Context, userID, questionID uuid.UUID) error {
	return s.repo.SetMastered(ctx, userID, questionID, false)
}

func (s *Service) SetMarked(ctx context.Context, userID, questionID uuid.UUID) error {
	if _, err := s.repo.GetQuestion(ctx, questionID); err != nil {
		return err
	}
	return s.repo.SetMarked(ctx, userID, questionID, true)
}

func (s *Service) UnsetMarked(ctx context.Context, userID, questionID uuid.UUID) error {
	return s.repo.SetMarked(ctx, userID, questionID, false)
}
