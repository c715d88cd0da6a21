package ranking

import (
	"sort"
	"time"

	"todo-relevance-backend/internal/model"
)

// Rank scores every todo with the non-linear algorithm and returns them in
// canonical order. The input slice is not modified.
func Rank(todos []model.Todo, s SortSettings, now time.Time) []model.RankedTodo {
	return RankWith(NonLinear, todos, s, now)
}

// RankWith is Rank with an explicit scoring algorithm.
func RankWith(a Algorithm, todos []model.Todo, s SortSettings, now time.Time) []model.RankedTodo {
	score := a.ScoreFunc()

	ranked := make([]model.RankedTodo, len(todos))
	for i, t := range todos {
		ranked[i] = model.RankedTodo{
			Todo:  t,
			Score: score(t.Priority, AgeHours(t.CreatedAt, now), s),
		}
	}

	CanonicalSort(ranked)
	return ranked
}

// CanonicalSort orders ranked todos by:
// 1. Score: higher first
// 2. CreatedAt: older first
// 3. ID: lexical ascending
func CanonicalSort(ranked []model.RankedTodo) {
	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]

		if a.Score != b.Score {
			return a.Score > b.Score
		}

		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}

		return a.ID < b.ID
	})
}

// Todos strips the scores from a ranked slice.
func Todos(ranked []model.RankedTodo) []model.Todo {
	out := make([]model.Todo, len(ranked))
	for i, r := range ranked {
		out[i] = r.Todo
	}
	return out
}
