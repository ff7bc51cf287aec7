package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/secmon-lab/compliflow/pkg/domain/model"
	"github.com/secmon-lab/compliflow/pkg/usecase"
)

type workflowRequest struct {
	Name         string             `json:"name"`
	States       []string           `json:"states"`
	InitialState string             `json:"initialState"`
	FinalStates  []string           `json:"finalStates"`
	Transitions  []model.Transition `json:"transitions"`
	IsDefault    *bool              `json:"isDefault"`
	IsActive     *bool              `json:"isActive"`
}

func (req *workflowRequest) input() usecase.WorkflowInput {
	return usecase.WorkflowInput{
		Name:         req.Name,
		States:       req.States,
		InitialState: req.InitialState,
		FinalStates:  req.FinalStates,
		Transitions:  req.Transitions,
		IsDefault:    req.IsDefault,
		IsActive:     req.IsActive,
	}
}

func workflowID(r *http.Request) model.WorkflowID {
	return model.WorkflowID(chi.URLParam(r, "id"))
}

func (s *Server) listWorkflowsHandler(w http.ResponseWriter, r *http.Request) {
	workflows, err := s.uc.Workflow.ListWorkflows(r.Context(), actorOf(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"workflows": workflows})
}

func (s *Server) getWorkflowHandler(w http.ResponseWriter, r *http.Request) {
	wf, err := s.uc.Workflow.GetWorkflow(r.Context(), actorOf(r), workflowID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, wf)
}

func (s *Server) createWorkflowHandler(w http.ResponseWriter, r *http.Request) {
	var req workflowRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	wf, err := s.uc.Workflow.CreateWorkflow(r.Context(), actorOf(r), req.input())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, wf)
}

func (s *Server) updateWorkflowHandler(w http.ResponseWriter, r *http.Request) {
	var req workflowRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	wf, err := s.uc.Workflow.UpdateWorkflow(r.Context(), actorOf(r), workflowID(r), req.input())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, wf)
}

func (s *Server) deleteWorkflowHandler(w http.ResponseWriter, r *http.Request) {
	if err := s.uc.Workflow.DeleteWorkflow(r.Context(), actorOf(r), workflowID(r)); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"success": true})
}
