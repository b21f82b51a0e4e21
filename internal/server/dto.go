package server

import (
	"time"

	"taskgate/internal/domain"
)

// Request payloads

type LoginRequest struct {
	Username string `json:"username" maxLength:"64"`
	Password string `json:"password" maxLength:"256"`
}

type CreateUserRequest struct {
	Username string `json:"username" minLength:"3" maxLength:"50"`
	Email    string `json:"email" format:"email" maxLength:"254"`
	Password string `json:"password" minLength:"6" maxLength:"256"`
	Role     string `json:"role" enum:"admin,user"`
}

type CreateTaskRequest struct {
	Title          string    `json:"title" minLength:"1" maxLength:"255"`
	Description    string    `json:"description,omitempty" maxLength:"4000"`
	DueDate        time.Time `json:"due_date" format:"date-time"`
	Status         string    `json:"status,omitempty" enum:"pending,in-progress,completed"`
	AssignedUserID *int64    `json:"assigned_user_id,omitempty" nullable:"true"`
}

// UpdateTaskRequest documents the PATCH body. Presence and null are read from
// the raw body so omitted fields stay untouched.
type UpdateTaskRequest struct {
	Title          *string    `json:"title,omitempty" minLength:"1" maxLength:"255"`
	Description    *string    `json:"description,omitempty" maxLength:"4000"`
	DueDate        *time.Time `json:"due_date,omitempty" format:"date-time"`
	Status         *string    `json:"status,omitempty" enum:"pending,in-progress,completed"`
	AssignedUserID *int64     `json:"assigned_user_id,omitempty" nullable:"true"`
}

// Response payloads

type LoginResponse struct {
	UserID    int64     `json:"user_id"`
	Role      string    `json:"role" enum:"admin,user"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at" format:"date-time"`
}

type UserResponse struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	Role      string    `json:"role" enum:"admin,user"`
	CreatedAt time.Time `json:"created_at" format:"date-time"`
}

type TaskResponse struct {
	ID             int64     `json:"id"`
	Title          string    `json:"title"`
	Description    string    `json:"description"`
	DueDate        time.Time `json:"due_date" format:"date-time"`
	Status         string    `json:"status" enum:"pending,in-progress,completed"`
	AssignedUserID *int64    `json:"assigned_user_id" nullable:"true"`
	CreatedBy      int64     `json:"created_by"`
	CreatedAt      time.Time `json:"created_at" format:"date-time"`
	UpdatedAt      time.Time `json:"updated_at" format:"date-time"`
}

// TaskViewResponse is the listing shape. It has no creator field.
type TaskViewResponse struct {
	ID             int64     `json:"id"`
	Title          string    `json:"title"`
	Description    string    `json:"description"`
	DueDate        time.Time `json:"due_date" format:"date-time"`
	Status         string    `json:"status" enum:"pending,in-progress,completed"`
	AssignedUserID *int64    `json:"assigned_user_id" nullable:"true"`
	CreatedAt      time.Time `json:"created_at" format:"date-time"`
	UpdatedAt      time.Time `json:"updated_at" format:"date-time"`
}

type DeleteResponse struct {
	Success bool `json:"success"`
}

func userResponse(u domain.User) UserResponse {
	return UserResponse{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		Role:      string(u.Role),
		CreatedAt: u.CreatedAt,
	}
}

func taskResponse(t domain.Task) TaskResponse {
	return TaskResponse{
		ID:             t.ID,
		Title:          t.Title,
		Description:    t.Description,
		DueDate:        t.DueDate,
		Status:         string(t.Status),
		AssignedUserID: t.AssignedUserID,
		CreatedBy:      t.CreatedBy,
		CreatedAt:      t.CreatedAt,
		UpdatedAt:      t.UpdatedAt,
	}
}

func mapTaskViews(items []domain.TaskView) []TaskViewResponse {
	out := make([]TaskViewResponse, 0, len(items))
	for _, v := range items {
		out = append(out, TaskViewResponse{
			ID:             v.ID,
			Title:          v.Title,
			Description:    v.Description,
			DueDate:        v.DueDate,
			Status:         string(v.Status),
			AssignedUserID: v.AssignedUserID,
			CreatedAt:      v.CreatedAt,
			UpdatedAt:      v.UpdatedAt,
		})
	}
	return out
}
