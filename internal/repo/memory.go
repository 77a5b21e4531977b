package repo

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryRepository keeps feedback in process memory. Nothing survives a
// restart.
type MemoryRepository struct {
	mu       sync.Mutex
	feedback []Feedback
	nextID   int64
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{nextID: 1}
}

func (r *MemoryRepository) CreateFeedback(_ context.Context, arg CreateFeedbackParams) (Feedback, error) {
	if arg.CreatedAt.IsZero() {
		arg.CreatedAt = time.Now().UTC()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	fb := Feedback{
		ID:        r.nextID,
		Feedback:  arg.Feedback,
		ResultKey: arg.ResultKey,
		TraceID:   arg.TraceID,
		UserName:  arg.UserName,
		Payload:   arg.Payload,
		CreatedAt: arg.CreatedAt,
	}
	r.nextID++
	r.feedback = append(r.feedback, fb)
	return fb, nil
}

func (r *MemoryRepository) ListFeedback(_ context.Context, arg ListFeedbackParams) ([]Feedback, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var results []Feedback
	for _, fb := range r.feedback {
		if fb.Feedback != arg.Feedback || fb.CreatedAt.Before(arg.Since) {
			continue
		}
		if arg.ResultKey != "" && fb.ResultKey != arg.ResultKey {
			continue
		}
		if arg.UserName != "" && fb.UserName != arg.UserName {
			continue
		}
		results = append(results, fb)
	}

	sort.SliceStable(results, func(i, j int) bool {
		if !results[i].CreatedAt.Equal(results[j].CreatedAt) {
			return results[i].CreatedAt.After(results[j].CreatedAt)
		}
		return results[i].ID > results[j].ID
	})
	if arg.Limit > 0 && len(results) > int(arg.Limit) {
		results = results[:arg.Limit]
	}
	return results, nil
}
