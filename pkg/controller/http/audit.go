package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/compliflow/pkg/domain/model"
	"github.com/secmon-lab/compliflow/pkg/domain/types"
	"github.com/secmon-lab/compliflow/pkg/usecase"
)

func queryTime(r *http.Request, name string) (*time.Time, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, goerr.Wrap(usecase.ErrInvalidInput, "time must be RFC3339",
			goerr.V(usecase.FieldKey, name), goerr.V("value", raw))
	}
	return &t, nil
}

func (s *Server) queryAuditHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := usecase.AuditQuery{
		Entity:      types.EntityKind(q.Get("entity")),
		EntityID:    q.Get("entityId"),
		Action:      types.AuditAction(q.Get("action")),
		PerformedBy: model.UserID(q.Get("performedBy")),
	}

	var err error
	if query.From, err = queryTime(r, "from"); err != nil {
		writeError(w, r, err)
		return
	}
	if query.To, err = queryTime(r, "to"); err != nil {
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

	result, err := s.uc.Audit.Query(r.Context(), actorOf(r), query, page, pageSize)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, result)
}

func (s *Server) entityAuditHandler(w http.ResponseWriter, r *http.Request) {
	entity := types.EntityKind(chi.URLParam(r, "entity"))
	entries, err := s.uc.Audit.ForEntity(r.Context(), actorOf(r), entity, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"entries": entries})
}
