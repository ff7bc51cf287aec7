package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/secmon-lab/compliflow/pkg/domain/model"
	"github.com/secmon-lab/compliflow/pkg/domain/model/auth"
	"github.com/secmon-lab/compliflow/pkg/domain/types"
	"github.com/secmon-lab/compliflow/pkg/usecase"
)

type registerRequest struct {
	Name             string         `json:"name"`
	Email            string         `json:"email"`
	Password         string         `json:"password" masq:"secret"`
	OrganizationName string         `json:"organizationName"`
	Industry         types.Industry `json:"industry"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password" masq:"secret"`
}

type createUserRequest struct {
	Name     string     `json:"name"`
	Email    string     `json:"email"`
	Password string     `json:"password" masq:"secret"`
	Role     types.Role `json:"role"`
}

type meResponse struct {
	User         *model.User         `json:"user"`
	Organization *model.Organization `json:"organization"`
}

// actorOf returns the actor set by authMiddleware
func actorOf(r *http.Request) *auth.Actor {
	actor, _ := auth.ActorFromContext(r.Context())
	return actor
}

func (s *Server) registerHandler(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	session, err := s.uc.Auth.Register(r.Context(), usecase.RegisterInput{
		Name:             req.Name,
		Email:            req.Email,
		Password:         req.Password,
		OrganizationName: req.OrganizationName,
		Industry:         req.Industry,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, session)
}

func (s *Server) loginHandler(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	session, err := s.uc.Auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, session)
}

func (s *Server) meHandler(w http.ResponseWriter, r *http.Request) {
	user, org, err := s.uc.Auth.GetMe(r.Context(), actorOf(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, meResponse{User: user, Organization: org})
}

func (s *Server) listUsersHandler(w http.ResponseWriter, r *http.Request) {
	users, err := s.uc.Auth.ListUsers(r.Context(), actorOf(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"users": users})
}

func (s *Server) createUserHandler(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	user, err := s.uc.Auth.CreateUser(r.Context(), actorOf(r), usecase.CreateUserInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Role:     req.Role,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, user)
}

func (s *Server) deactivateUserHandler(w http.ResponseWriter, r *http.Request) {
	user, err := s.uc.Auth.DeactivateUser(r.Context(), actorOf(r), model.UserID(chi.URLParam(r, "id")))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, user)
}
