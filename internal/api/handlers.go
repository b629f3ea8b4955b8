package api

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"legacy-scheduler/internal/assets"
	"legacy-scheduler/internal/engine"
	"legacy-scheduler/internal/models"
)

func (s *Server) handleCreateTrigger(w http.ResponseWriter, r *http.Request) {
	var req struct {
		OwnerID uuid.UUID          `json:"owner_id"`
		Type    models.TriggerType `json:"type"`
		Config  json.RawMessage    `json:"config"`
		Active  bool               `json:"active"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	trigger, err := s.triggers.Create(r.Context(), req.OwnerID, req.Type, req.Config, req.Active)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, trigger)
}

func (s *Server) handleActivateTrigger(w http.ResponseWriter, r *http.Request) {
	id, err := urlUUID(r, "id")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid trigger id"})
		return
	}
	var req struct {
		ReferenceInstant *time.Time `json:"reference_instant"`
	}
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
			return
		}
	}
	instant := time.Now().UTC()
	if req.ReferenceInstant != nil {
		instant = req.ReferenceInstant.UTC()
	}
	if err := s.triggers.Activate(r.Context(), id, instant); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "activated"})
}

func (s *Server) handleDeactivateTrigger(w http.ResponseWriter, r *http.Request) {
	id, err := urlUUID(r, "id")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid trigger id"})
		return
	}
	var req struct {
		OwnerID uuid.UUID `json:"owner_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if err := s.triggers.Deactivate(r.Context(), req.OwnerID, id); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deactivated"})
}

func (s *Server) handleDeleteTrigger(w http.ResponseWriter, r *http.Request) {
	id, err := urlUUID(r, "id")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid trigger id"})
		return
	}
	ownerID, err := uuid.Parse(r.URL.Query().Get("owner_id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid owner id"})
		return
	}
	if err := s.triggers.Delete(r.Context(), ownerID, id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListTriggers(w http.ResponseWriter, r *http.Request) {
	ownerID, err := urlUUID(r, "ownerID")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid owner id"})
		return
	}
	triggers, err := s.triggers.ListForOwner(r.Context(), ownerID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"triggers": triggers})
}

func (s *Server) handleCreateConfirmation(w http.ResponseWriter, r *http.Request) {
	var req struct {
		OwnerID   uuid.UUID `json:"owner_id"`
		TrusteeID uuid.UUID `json:"trustee_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	confirmation, err := s.confirmations.Create(r.Context(), req.OwnerID, req.TrusteeID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, confirmation)
}

func (s *Server) confirmationAction(w http.ResponseWriter, r *http.Request, act func(r *http.Request, id, trusteeID uuid.UUID) error, status string) {
	id, err := urlUUID(r, "id")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid confirmation id"})
		return
	}
	var req struct {
		TrusteeID uuid.UUID `json:"trustee_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if err := act(r, id, req.TrusteeID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": status})
}

func (s *Server) handleConfirmDeath(w http.ResponseWriter, r *http.Request) {
	s.confirmationAction(w, r, func(r *http.Request, id, trusteeID uuid.UUID) error {
		return s.confirmations.Confirm(r.Context(), id, trusteeID)
	}, "confirmed")
}

func (s *Server) handleRejectConfirmation(w http.ResponseWriter, r *http.Request) {
	s.confirmationAction(w, r, func(r *http.Request, id, trusteeID uuid.UUID) error {
		return s.confirmations.Reject(r.Context(), id, trusteeID)
	}, "rejected")
}

func (s *Server) handleCurrentConfirmation(w http.ResponseWriter, r *http.Request) {
	ownerID, err := urlUUID(r, "ownerID")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid owner id"})
		return
	}
	confirmation, found, err := s.confirmations.Current(r.Context(), ownerID)
	if err != nil {
		writeError(w, err)
		return
	}
	if !found {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no confirmed record"})
		return
	}
	writeJSON(w, http.StatusOK, confirmation)
}

func (s *Server) handleCreateJob(w http.ResponseWriter, r *http.Request) {
	var req struct {
		EntityID        uuid.UUID           `json:"entity_id"`
		JobType         models.JobType      `json:"job_type"`
		OwnerID         uuid.UUID           `json:"owner_id"`
		ScheduleType    models.ScheduleType `json:"schedule_type"`
		ExactTime       *time.Time          `json:"exact_time"`
		TimeOffset      *int                `json:"time_offset"`
		RecipientEmails []string            `json:"recipient_emails"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	job, err := s.scheduler.CreateJob(r.Context(), engine.CreateJobParams{
		EntityID:        req.EntityID,
		JobType:         req.JobType,
		OwnerID:         req.OwnerID,
		ScheduleType:    req.ScheduleType,
		ExactTime:       req.ExactTime,
		TimeOffset:      req.TimeOffset,
		RecipientEmails: req.RecipientEmails,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, job)
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	id, err := urlUUID(r, "id")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid job id"})
		return
	}
	job, err := s.scheduler.GetJob(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (s *Server) handleFireJob(w http.ResponseWriter, r *http.Request) {
	id, err := urlUUID(r, "id")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid job id"})
		return
	}
	if err := s.scheduler.FireAbsoluteJob(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "fired"})
}

func (s *Server) handleClaim(w http.ResponseWriter, r *http.Request) {
	if !s.allowClaimAttempt(r) {
		writeJSON(w, http.StatusTooManyRequests, map[string]string{"error": "too many attempts"})
		return
	}
	var req struct {
		AccessCode string    `json:"access_code"`
		TrusteeID  uuid.UUID `json:"trustee_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	grant, err := s.grants.Claim(r.Context(), req.AccessCode, req.TrusteeID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, grant)
}

func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	if !s.allowClaimAttempt(r) {
		writeJSON(w, http.StatusTooManyRequests, map[string]string{"error": "too many attempts"})
		return
	}
	grant, err := s.grants.Validate(r.Context(), r.URL.Query().Get("code"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"valid":  true,
		"job_id": grant.JobID,
		"email":  grant.Email,
	})
}

func (s *Server) handleRevoke(w http.ResponseWriter, r *http.Request) {
	id, err := urlUUID(r, "id")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid grant id"})
		return
	}
	if err := s.grants.Revoke(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "revoked"})
}

func (s *Server) handleTrusteeContent(w http.ResponseWriter, r *http.Request) {
	trusteeID, err := urlUUID(r, "trusteeID")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid trustee id"})
		return
	}
	content, err := s.gate.ResolveContentForTrustee(r.Context(), trusteeID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, content)
}

func (s *Server) handleCreateMessage(w http.ResponseWriter, r *http.Request) {
	var req struct {
		OwnerID uuid.UUID `json:"owner_id"`
		Subject string    `json:"subject"`
		Body    string    `json:"body"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.Subject == "" && req.Body == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "message needs a subject or a body"})
		return
	}
	ok, err := s.users.UserExists(r.Context(), req.OwnerID)
	if err != nil {
		writeError(w, engine.Persistence("lookup owner", err))
		return
	}
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "owner not found"})
		return
	}
	msg := models.Message{
		ID:        uuid.New(),
		OwnerID:   req.OwnerID,
		Subject:   req.Subject,
		Body:      req.Body,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.messages.CreateMessage(r.Context(), msg); err != nil {
		writeError(w, engine.Persistence("create message", err))
		return
	}
	writeJSON(w, http.StatusCreated, msg)
}

func (s *Server) handleUploadAsset(w http.ResponseWriter, r *http.Request) {
	if s.assets == nil {
		writeJSON(w, http.StatusNotImplemented, map[string]string{"error": "asset storage is not configured"})
		return
	}
	if err := r.ParseMultipartForm(s.cfg.AssetMaxBytes); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid multipart form"})
		return
	}
	ownerID, err := uuid.Parse(r.FormValue("owner_id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid owner id"})
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "file field is required"})
		return
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "failed to read upload"})
		return
	}

	name := r.FormValue("name")
	if name == "" {
		name = header.Filename
	}
	asset, err := s.assets.Register(r.Context(), assets.RegisterParams{
		OwnerID:     ownerID,
		Name:        name,
		Description: r.FormValue("description"),
		MimeType:    header.Header.Get("Content-Type"),
		Data:        data,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, asset)
}
