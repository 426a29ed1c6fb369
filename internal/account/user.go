// Package account manages the signed-in teacher: login, the bearer credential
// the gateway injects, and per-teacher preferences such as theme.
package account

import "time"

// Role of a signed-in user. The dashboard only signs in teachers.
const RoleTeacher = "teacher"

// Class is a class section the teacher is assigned to.
type Class struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Strength  int    `json:"strength,omitempty"`
	GradeID   string `json:"gradeId,omitempty"`
	GradeName string `json:"gradeName,omitempty"`
}

// User is the signed-in teacher.
type User struct {
	ID      string  `json:"id"`
	Name    string  `json:"name"`
	Email   string  `json:"email"`
	Role    string  `json:"role"`
	Classes []Class `json:"classes"`
}

// FirstClassID returns the default class for new assessments, or "".
func (u User) FirstClassID() string {
	if len(u.Classes) == 0 {
		return ""
	}
	return u.Classes[0].ID
}

// Credentials is what a successful login yields.
type Credentials struct {
	User      User
	Token     string
	ExpiresAt time.Time
}

// LoginRequest is posted to the backend.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
	Role     string `json:"role" validate:"required,oneof=teacher"`
}
