package http

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/compliflow/pkg/domain/interfaces"
	"github.com/secmon-lab/compliflow/pkg/domain/model"
	"github.com/secmon-lab/compliflow/pkg/domain/types"
	"github.com/secmon-lab/compliflow/pkg/usecase"
	"github.com/secmon-lab/compliflow/pkg/utils/safe"
)

type createIssueRequest struct {
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Category    types.Category `json:"category"`
	Priority    types.Priority `json:"priority"`
	AssigneeID  model.UserID   `json:"assigneeId"`
	DueDate     *time.Time     `json:"dueDate"`
}

type updateIssueRequest struct {
	Title       *string         `json:"title"`
	Description *string         `json:"description"`
	Category    *types.Category `json:"category"`
	Priority    *types.Priority `json:"priority"`
	AssigneeID  *model.UserID   `json:"assigneeId"`
	DueDate     *time.Time      `json:"dueDate"`
}

type transitionRequest struct {
	Status string `json:"status"`
}

func issueID(r *http.Request) model.IssueID {
	return model.IssueID(chi.URLParam(r, "id"))
}

func (s *Server) createIssueHandler(w http.ResponseWriter, r *http.Request) {
	var req createIssueRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	issue, err := s.uc.Issue.CreateIssue(r.Context(), actorOf(r), usecase.CreateIssueInput{
		Title:       req.Title,
		Description: req.Description,
		Category:    req.Category,
		Priority:    req.Priority,
		AssigneeID:  req.AssigneeID,
		DueDate:     req.DueDate,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, issue)
}

func (s *Server) getIssueHandler(w http.ResponseWriter, r *http.Request) {
	issue, err := s.uc.Issue.GetIssue(r.Context(), actorOf(r), issueID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, issue)
}

// parseIssueFilter reads status, category, priority, assignee and slaBreached query parameters
func parseIssueFilter(r *http.Request) (*interfaces.IssueFilter, error) {
	q := r.URL.Query()
	filter := &interfaces.IssueFilter{}

	if v := q.Get("status"); v != "" {
		filter.Status = &v
	}
	if v := q.Get("category"); v != "" {
		c, err := types.ParseCategory(v)
		if err != nil {
			return nil, goerr.Wrap(usecase.ErrInvalidInput, "invalid category", goerr.V(usecase.FieldKey, "category"))
		}
		filter.Category = &c
	}
	if v := q.Get("priority"); v != "" {
		p, err := types.ParsePriority(v)
		if err != nil {
			return nil, goerr.Wrap(usecase.ErrInvalidInput, "invalid priority", goerr.V(usecase.FieldKey, "priority"))
		}
		filter.Priority = &p
	}
	if v := q.Get("assignee"); v != "" {
		id := model.UserID(v)
		filter.AssigneeID = &id
	}
	if v := q.Get("slaBreached"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return nil, goerr.Wrap(usecase.ErrInvalidInput, "invalid slaBreached", goerr.V(usecase.FieldKey, "slaBreached"))
		}
		filter.SLABreached = &b
	}
	return filter, nil
}

func (s *Server) listIssuesHandler(w http.ResponseWriter, r *http.Request) {
	filter, err := parseIssueFilter(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	page, err := queryInt(r, "page")
	if err != nil {
		writeError(w, r, err)
		return
	}
	pageSize, err := queryInt(r, "pageSize")
	if err != nil {
		writeError(w, r, err)
		return
	}

	result, err := s.uc.Issue.ListIssues(r.Context(), actorOf(r), filter, page, pageSize)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, result)
}

func (s *Server) updateIssueHandler(w http.ResponseWriter, r *http.Request) {
	var req updateIssueRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	issue, err := s.uc.Issue.UpdateIssueFields(r.Context(), actorOf(r), issueID(r), usecase.IssuePatch{
		Title:       req.Title,
		Description: req.Description,
		Category:    req.Category,
		Priority:    req.Priority,
		AssigneeID:  req.AssigneeID,
		DueDate:     req.DueDate,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, issue)
}

func (s *Server) transitionIssueHandler(w http.ResponseWriter, r *http.Request) {
	var req transitionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.Status == "" {
		writeError(w, r, goerr.Wrap(usecase.ErrInvalidInput, "status is required", goerr.V(usecase.FieldKey, "status")))
		return
	}

	issue, err := s.uc.Issue.TransitionIssue(r.Context(), actorOf(r), issueID(r), req.Status)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, issue)
}

func (s *Server) deleteIssueHandler(w http.ResponseWriter, r *http.Request) {
	if err := s.uc.Issue.DeleteIssue(r.Context(), actorOf(r), issueID(r)); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"success": true})
}

// addAttachmentHandler accepts a multipart form with one "file" part
func (s *Server) addAttachmentHandler(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)

	file, header, err := r.FormFile("file")
	if err != nil {
		var maxBytes *http.MaxBytesError
		if errors.As(err, &maxBytes) {
			writeError(w, r, goerr.Wrap(err, "attachment too large"))
			return
		}
		writeError(w, r, goerr.Wrap(usecase.ErrInvalidInput, "multipart field \"file\" is required",
			goerr.V(usecase.FieldKey, "file"), goerr.V("reason", err.Error())))
		return
	}
	defer safe.Close(r.Context(), file)

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	issue, err := s.uc.Issue.AddAttachment(r.Context(), actorOf(r), issueID(r), header.Filename, contentType, file)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, issue)
}

func (s *Server) generateSummaryHandler(w http.ResponseWriter, r *http.Request) {
	summary, err := s.uc.Summary.Generate(r.Context(), actorOf(r), issueID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, summary)
}

func (s *Server) listSummariesHandler(w http.ResponseWriter, r *http.Request) {
	summaries, err := s.uc.Summary.List(r.Context(), actorOf(r), issueID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"summaries": summaries})
}
