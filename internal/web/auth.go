package web

import (
	"log/slog"
	"net/http"

	"github.com/p-n-ai/teachmate/internal/account"
)

type loginBody struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type meBody struct {
	User  account.User  `json:"user"`
	Theme account.Theme `json:"theme"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var body loginBody
	if err := decodeJSON(w, r, &body); err != nil {
		writeError(w, err)
		return
	}

	sf := s.newSurface()
	user, err := sf.accounts.Login(r.Context(), body.Email, body.Password)
	if err != nil {
		sf.close()
		writeError(w, err)
		return
	}
	sf.teacherID = user.ID

	sess, _ := s.cfg.Cookies.Get(r, cookieName)
	sess.Values[teacherIDKey] = user.ID
	if err := sess.Save(r, w); err != nil {
		sf.close()
		slog.Error("failed to save session cookie", "teacher_id", user.ID, "error", err)
		writeError(w, err)
		return
	}
	s.attach(sf)

	theme, _ := sf.accounts.Theme(r.Context(), user.ID)
	writeJSON(w, http.StatusOK, meBody{User: user, Theme: theme})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if teacherID := s.teacherID(r); teacherID != "" {
		s.mu.Lock()
		sf := s.surfaces[teacherID]
		s.mu.Unlock()
		if sf != nil {
			if err := sf.accounts.Logout(r.Context()); err != nil {
				slog.Warn("logout failed", "teacher_id", teacherID, "error", err)
			}
		}
		s.detach(teacherID)
	}

	sess, _ := s.cfg.Cookies.Get(r, cookieName)
	delete(sess.Values, teacherIDKey)
	sess.Options.MaxAge = -1
	if err := sess.Save(r, w); err != nil {
		slog.Warn("failed to clear session cookie", "error", err)
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request, sf *surface) {
	theme, err := sf.accounts.Theme(r.Context(), sf.teacherID)
	if err != nil {
		slog.Warn("failed to read theme", "teacher_id", sf.teacherID, "error", err)
	}
	writeJSON(w, http.StatusOK, meBody{User: sf.user(), Theme: theme})
}

func (s *Server) handleSetTheme(w http.ResponseWriter, r *http.Request, sf *surface) {
	var body struct {
		Theme string `json:"theme"`
	}
	if err := decodeJSON(w, r, &body); err != nil {
		writeError(w, err)
		return
	}
	theme, err := account.ParseTheme(body.Theme)
	if err == nil {
		err = sf.accounts.SetTheme(r.Context(), sf.teacherID, theme)
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]account.Theme{"theme": theme})
}

func (s *Server) handleToggleTheme(w http.ResponseWriter, r *http.Request, sf *surface) {
	theme, err := sf.accounts.ToggleTheme(r.Context(), sf.teacherID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]account.Theme{"theme": theme})
}
