package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jonathan/gigmatch/internal/assignment"
	"github.com/jonathan/gigmatch/internal/server/middleware"
	"github.com/jonathan/gigmatch/internal/types"
)

// ---------------------------------------------------------------------
// Project Handlers
// ---------------------------------------------------------------------

type createProjectResponse struct {
	Project *types.Project             `json:"project"`
	Batch   *types.BatchWithCandidates `json:"batch"`
}

func (s *Server) handleCreateProject(w http.ResponseWriter, r *http.Request) {
	p, err := middleware.GetPrincipal(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req types.CreateProjectRequest
	if err := decodeJSON(w, r, &req, false); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := req.Validate(); err != nil {
		s.writeError(w, r, validationError(err))
		return
	}

	project, batch, err := s.manager.PostProject(r.Context(), assignment.PostProjectInput{
		ClientID:    p.GetUserID(),
		Title:       req.Title,
		Description: req.Description,
		Skills:      req.Skills,
		LevelMix:    assignment.LevelMix(req.LevelMix),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusCreated, createProjectResponse{Project: project, Batch: batch})
}

func (s *Server) handleGetProject(w http.ResponseWriter, r *http.Request) {
	project, ok := s.authorizeProject(w, r)
	if !ok {
		return
	}
	s.jsonResponse(w, http.StatusOK, project)
}

type closeProjectResponse struct {
	Status      types.ProjectStatus `json:"status"`
	Invalidated int64               `json:"invalidated"`
}

func (s *Server) handleCloseProject(w http.ResponseWriter, r *http.Request) {
	project, ok := s.authorizeProject(w, r)
	if !ok {
		return
	}
	res, err := s.manager.CloseProject(r.Context(), project.ID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, closeProjectResponse{Status: res.Status, Invalidated: res.Invalidated})
}

// ---------------------------------------------------------------------
// Batch Handlers
// ---------------------------------------------------------------------

func (s *Server) handleActiveBatch(w http.ResponseWriter, r *http.Request) {
	project, ok := s.authorizeProject(w, r)
	if !ok {
		return
	}

	batchType := types.BatchAutoRotation
	if t := r.URL.Query().Get("type"); t != "" {
		batchType = types.BatchType(t)
		if !batchType.IsValid() {
			s.writeError(w, r, &ErrValidation{Field: "type", Message: "unknown batch type " + strconv.Quote(t)})
			return
		}
	}

	batch, err := s.manager.ActiveBatch(r.Context(), project.ID, batchType)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, batch)
}

func (s *Server) handleComposeBatch(w http.ResponseWriter, r *http.Request) {
	project, ok := s.authorizeProject(w, r)
	if !ok {
		return
	}

	var req types.ComposeBatchRequest
	if err := decodeJSON(w, r, &req, true); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := req.Validate(); err != nil {
		s.writeError(w, r, validationError(err))
		return
	}

	batch, err := s.manager.ComposeBatch(r.Context(), assignment.ComposeRequest{
		ProjectID: project.ID,
		Type:      types.BatchAutoRotation,
		LevelMix:  assignment.LevelMix(req.LevelMix),
		NoExpire:  req.NoExpire,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusCreated, batch)
}

type refreshResponse struct {
	Refreshed    bool                       `json:"refreshed"`
	NewBatchID   *uuid.UUID                 `json:"new_batch_id,omitempty"`
	FallbackUsed bool                       `json:"fallback_used"`
	Batch        *types.BatchWithCandidates `json:"batch,omitempty"`
}

func (s *Server) handleRefreshBatch(w http.ResponseWriter, r *http.Request) {
	project, ok := s.authorizeProject(w, r)
	if !ok {
		return
	}

	res, err := s.manager.RefreshBatch(r.Context(), project.ID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	out := refreshResponse{Refreshed: res.Refreshed, FallbackUsed: res.FallbackUsed, Batch: res.Batch}
	if res.NewBatchID != uuid.Nil {
		id := res.NewBatchID
		out.NewBatchID = &id
	}
	s.jsonResponse(w, http.StatusOK, out)
}

func (s *Server) handleInviteDeveloper(w http.ResponseWriter, r *http.Request) {
	project, ok := s.authorizeProject(w, r)
	if !ok {
		return
	}

	var req types.ManualInviteRequest
	if err := decodeJSON(w, r, &req, false); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := req.Validate(); err != nil {
		s.writeError(w, r, validationError(err))
		return
	}

	candidate, err := s.manager.InviteDeveloper(r.Context(), assignment.ManualInvite{
		ProjectID:   project.ID,
		DeveloperID: uuid.MustParse(req.DeveloperID),
		Window:      time.Duration(req.WindowMinutes) * time.Minute,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusCreated, candidate)
}

// ---------------------------------------------------------------------
// Developer Handlers
// ---------------------------------------------------------------------

func (s *Server) handleRespond(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.GetUserID(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	candidateID, ok := s.pathUUID(w, r, "id")
	if !ok {
		return
	}

	var req types.RespondRequest
	if err := decodeJSON(w, r, &req, false); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := req.Validate(); err != nil {
		s.writeError(w, r, validationError(err))
		return
	}

	candidate, err := s.manager.Respond(r.Context(), candidateID, req.Action, userID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, candidate)
}

func (s *Server) handlePendingInvitations(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.GetUserID(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	invitations, err := s.manager.PendingInvitations(r.Context(), userID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if invitations == nil {
		invitations = []types.Candidate{}
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{"invitations": invitations})
}

func (s *Server) handleRecentActivity(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.GetUserID(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 100 {
			s.writeError(w, r, &ErrValidation{Field: "limit", Message: "must be between 1 and 100"})
			return
		}
		limit = n
	}

	activity, err := s.manager.RecentActivity(r.Context(), userID, limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if activity == nil {
		activity = []types.Candidate{}
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{"activity": activity})
}

// ---------------------------------------------------------------------
// Internal Handlers
// ---------------------------------------------------------------------

func (s *Server) handleSweep(w http.ResponseWriter, r *http.Request) {
	if s.sweeper == nil {
		s.jsonResponse(w, http.StatusServiceUnavailable, errorBody{Error: "sweep_disabled", Message: "sweeper not configured"})
		return
	}
	report, err := s.sweeper.Run(r.Context(), s.manager.Now())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, report)
}

// ---------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------

func (s *Server) pathUUID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	raw := chi.URLParam(r, name)
	id, err := uuid.Parse(raw)
	if err != nil {
		s.writeError(w, r, &ErrValidation{Field: name, Message: "invalid UUID " + strconv.Quote(raw)})
		return uuid.Nil, false
	}
	return id, true
}

// authorizeProject loads the project named in the path and checks that the
// caller owns it. Admins may act on any project.
func (s *Server) authorizeProject(w http.ResponseWriter, r *http.Request) (*types.Project, bool) {
	p, err := middleware.GetPrincipal(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return nil, false
	}
	projectID, ok := s.pathUUID(w, r, "id")
	if !ok {
		return nil, false
	}

	project, err := s.manager.Project(r.Context(), projectID)
	if err != nil {
		s.writeError(w, r, err)
		return nil, false
	}
	if p.GetRole() != middleware.RoleAdmin && project.ClientID != p.GetUserID() {
		s.jsonResponse(w, http.StatusForbidden, errorBody{Error: "forbidden", Message: "project belongs to another client"})
		return nil, false
	}
	return project, true
}
