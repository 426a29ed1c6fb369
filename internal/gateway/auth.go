package gateway

import (
	"context"
	"fmt"
	"net/http"

	"github.com/p-n-ai/teachmate/internal/account"
)

type classWire struct {
	ID        oid     `json:"_id"`
	Name      string  `json:"class_name"`
	Strength  flexInt `json:"class_strength"`
	GradeID   oid     `json:"grade_id"`
	GradeName string  `json:"grade_name"`
}

type userWire struct {
	MongoID oid         `json:"_id"`
	ID      oid         `json:"id"`
	Name    string      `json:"name"`
	Email   string      `json:"email"`
	Role    string      `json:"role"`
	Classes []classWire `json:"classes"`
}

type loginWire struct {
	User  *userWire `json:"user"`
	Token string    `json:"token"`
}

// Login exchanges email and password for the teacher record and a bearer
// token. It never triggers the unauthorized handler.
func (c *Client) Login(ctx context.Context, req account.LoginRequest) (account.User, string, error) {
	resp, err := c.call(ctx, http.MethodPost, "/api/auth/login", req, callOpts{public: true})
	if err != nil {
		return account.User{}, "", fmt.Errorf("login: %w", err)
	}
	var w loginWire
	if err := decode(resp.payload, &w); err != nil {
		return account.User{}, "", fmt.Errorf("login: %w", err)
	}
	if w.User == nil {
		return account.User{}, "", fmt.Errorf("login: %w: response has no user", ErrRejected)
	}

	id := w.User.MongoID
	if id == "" {
		id = w.User.ID
	}
	u := account.User{
		ID:      string(id),
		Name:    w.User.Name,
		Email:   w.User.Email,
		Role:    w.User.Role,
		Classes: make([]account.Class, len(w.User.Classes)),
	}
	for i, cl := range w.User.Classes {
		u.Classes[i] = account.Class{
			ID:        string(cl.ID),
			Name:      cl.Name,
			Strength:  int(cl.Strength),
			GradeID:   string(cl.GradeID),
			GradeName: cl.GradeName,
		}
	}
	return u, w.Token, nil
}
