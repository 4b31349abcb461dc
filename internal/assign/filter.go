package assign

import (
	"strings"

	"github.com/nhle/teamtasks/internal/model"
)

// FilterTasks returns the tasks matching q, preserving order. Search is a
// case-insensitive substring match on title or description; Status and
// Priority match exactly, with "" or "all" matching anything.
func FilterTasks(tasks []model.Task, q model.TaskQuery) []model.Task {
	search := strings.ToLower(strings.TrimSpace(q.Search))

	out := make([]model.Task, 0, len(tasks))
	for _, t := range tasks {
		if search != "" &&
			!strings.Contains(strings.ToLower(t.Title), search) &&
			!strings.Contains(strings.ToLower(t.Description), search) {
			continue
		}
		if !matchesEnum(q.Status, t.Status) || !matchesEnum(q.Priority, t.Priority) {
			continue
		}
		out = append(out, t)
	}
	return out
}

func matchesEnum(want, got string) bool {
	return want == "" || want == model.FilterAll || want == got
}
