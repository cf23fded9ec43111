package task

import (
	"time"

	"github.com/google/uuid"
)

const DefaultCategory = "general"

func NewFromCreateRequest(userID string, req CreateTaskRequest) Task {
	now := time.Now().UTC()

	category := req.Category
	if category == "" {
		category = DefaultCategory
	}

	return Task{
		ID:          uuid.NewString(),
		UserID:      userID,
		Title:       req.Title,
		Description: req.Description,
		Completed:   false,
		DueDate:     req.DueDate,
		DueTime:     req.DueTime,
		Category:    category,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}
