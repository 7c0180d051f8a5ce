package practice

import "github.com/google/uuid"

// History is what the user has done with a set of questions.
type History struct {
	Mastered map[uuid.UUID]bool
	Missed   map[uuid.UUID]bool
}

// ResumeOrder stably partitions ids into mastered, fresh and previously
// missed questions, in that order. A mastered question is never "missed".
func ResumeOrder(ids []uuid.UUID, h History) []uuid.UUID {
	mastered := make([]uuid.UUID, 0)
	fresh := make([]uuid.UUID, 0, len(ids))
	missed := make([]uuid.UUID, 0)

	for _, id := range ids {
		switch {
		case h.Mastered[id]:
			mastered = append(mastered, id)
		case h.Missed[id]:
			missed = append(missed, id)
		default:
			fresh = append(fresh, id)
		}
	}

	out := make([]uuid.UUID, 0, len(ids))
	out = append(out, mastered...)
	out = append(out, fresh...)
	return append(out, missed...)
}
