package main

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"path/filepath"
	"strconv"

	"roomchat/internal/attachment"
	"roomchat/internal/errors"
	"roomchat/internal/models"
	"roomchat/internal/privacy"
	"roomchat/internal/room"
	"roomchat/internal/security"
	"roomchat/internal/settings"
	"roomchat/internal/tracing"
	"roomchat/internal/validation"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

const maxBodyBytes = 1 << 20

// actionResponse reports whether a mutation changed anything along with the
// resulting state. Operations that do not apply are not errors.
type actionResponse struct {
	Applied bool          `json:"applied"`
	State   room.Snapshot `json:"state"`
}

type joinRequest struct {
	DisplayName string          `json:"displayName"`
	RoomID      string          `json:"roomId"`
	Mode        models.RoomMode `json:"mode"`
}

type textRequest struct {
	Text *string `json:"text"`
}

type searchRequest struct {
	Query string `json:"query"`
}

type typingRequest struct {
	Typing bool `json:"typing"`
}

type fileRequest struct {
	Name string `json:"name"`
	Size int64  `json:"size"`
	Type string `json:"type"`
}

type pickFilesRequest struct {
	Files []fileRequest `json:"files"`
	Paths []string      `json:"paths"`
}

type apiBaseURLRequest struct {
	Value string `json:"value"`
}

type apiBaseURLResponse struct {
	APIBaseURL string `json:"apiBaseUrl"`
	Message    string `json:"message,omitempty"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.WithError(err).Warn("Failed to encode response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := errors.HTTPStatusCode(err)
	fields := logrus.Fields{"request_id": tracing.GetRequestID(r.Context())}
	errors.WrapLogger(s.logger).Log(errors.LevelFor(err), err, "Request failed", fields)
	s.writeJSON(w, status, errors.ToHTTPResponse(err, tracing.GetRequestID(r.Context())))
}

func (s *Server) writeAction(w http.ResponseWriter, applied bool) {
	s.writeJSON(w, http.StatusOK, actionResponse{Applied: applied, State: s.session.Snapshot()})
}

func decodeBody(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil && err != io.EOF {
		return errors.Wrap(err, errors.ErrCodeInvalidInput, "invalid request body").
			WithUserMessage("Invalid request body")
	}
	return nil
}

func firstError(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

func pathID(r *http.Request) (int64, error) {
	raw := mux.Vars(r)["id"]
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, errors.NewValidationError("id", raw, "must be an integer")
	}
	return id, nil
}

// idAction adapts a session operation keyed by a path id
func (s *Server) idAction(op func(id int64) bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		s.writeAction(w, op(id))
	}
}

func (s *Server) handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap := s.session.Snapshot()
		s.writeJSON(w, http.StatusOK, map[string]interface{}{
			"status": "ok",
			"joined": snap.Room.Joined,
			"call":   snap.Call.Mode,
		})
	}
}

func (s *Server) handleState() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.writeJSON(w, http.StatusOK, s.session.Snapshot())
	}
}

func (s *Server) handleJoin() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req joinRequest
		if err := decodeBody(r, &req); err != nil {
			s.writeError(w, r, err)
			return
		}
		if err := firstError(validation.ValidateDisplayName(req.DisplayName), validation.ValidateRoomID(req.RoomID)); err != nil {
			s.writeError(w, r, err)
			return
		}
		s.session.Join(req.DisplayName, req.RoomID, req.Mode)
		s.writeAction(w, true)
	}
}

func (s *Server) handleLeave() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		joined := s.session.Joined()
		s.session.Leave()
		s.writeAction(w, joined)
	}
}

func (s *Server) handleDraft() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req textRequest
		if err := decodeBody(r, &req); err != nil {
			s.writeError(w, r, err)
			return
		}
		text := ""
		if req.Text != nil {
			text = *req.Text
		}
		if err := validation.ValidateMessageText(text); err != nil {
			s.writeError(w, r, err)
			return
		}
		s.writeAction(w, s.session.SetDraft(text))
	}
}

// handleSend sends the current draft, or the given text when the body has one
func (s *Server) handleSend() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req textRequest
		if err := decodeBody(r, &req); err != nil {
			s.writeError(w, r, err)
			return
		}
		if req.Text != nil {
			if err := validation.ValidateMessageText(*req.Text); err != nil {
				s.writeError(w, r, err)
				return
			}
		}
		var ok bool
		if req.Text != nil {
			_, ok = s.session.Compose(*req.Text)
		} else {
			_, ok = s.session.Send()
		}
		s.writeAction(w, ok)
	}
}

func (s *Server) handleEdit() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		var req textRequest
		if err := decodeBody(r, &req); err != nil {
			s.writeError(w, r, err)
			return
		}
		if req.Text == nil {
			s.writeError(w, r, errors.NewValidationError("text", "", "is required"))
			return
		}
		if err := validation.ValidateMessageText(*req.Text); err != nil {
			s.writeError(w, r, err)
			return
		}
		s.writeAction(w, s.session.Edit(id, *req.Text))
	}
}

func (s *Server) handleStartEdit() http.HandlerFunc {
	return s.idAction(s.session.StartEdit)
}

func (s *Server) handleCancelEdit() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.writeAction(w, s.session.CancelEdit())
	}
}

func (s *Server) handleDelete() http.HandlerFunc {
	return s.idAction(s.session.Delete)
}

func (s *Server) handleLike() http.HandlerFunc {
	return s.idAction(s.session.ToggleLike)
}

func (s *Server) handleReply() http.HandlerFunc {
	return s.idAction(s.session.SetReplyTarget)
}

func (s *Server) handleClearReply() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.writeAction(w, s.session.ClearReplyTarget())
	}
}

func (s *Server) handleDelivered() http.HandlerFunc {
	return s.idAction(s.session.MarkDelivered)
}

func (s *Server) handleRead() http.HandlerFunc {
	return s.idAction(s.session.MarkRead)
}

func (s *Server) handleSearch() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req searchRequest
		if err := decodeBody(r, &req); err != nil {
			s.writeError(w, r, err)
			return
		}
		if err := validation.ValidateSearchQuery(req.Query); err != nil {
			s.writeError(w, r, err)
			return
		}
		s.writeAction(w, s.session.SetSearchQuery(req.Query))
	}
}

func (s *Server) handleTyping() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req typingRequest
		if err := decodeBody(r, &req); err != nil {
			s.writeError(w, r, err)
			return
		}
		s.writeAction(w, s.session.SetOtherTyping(req.Typing))
	}
}

func (s *Server) handleSimulate() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, ok := s.session.SimulateIncoming()
		s.writeAction(w, ok)
	}
}

// handlePickFiles accepts file descriptors from the UI or local paths which
// are stat'ed on this host
func (s *Server) handlePickFiles() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req pickFilesRequest
		if err := decodeBody(r, &req); err != nil {
			s.writeError(w, r, err)
			return
		}

		files := make([]attachment.FileHandle, 0, len(req.Files)+len(req.Paths))
		for _, f := range req.Files {
			files = append(files, attachment.FileHandle{Name: f.Name, Size: f.Size, Type: f.Type})
		}
		for _, path := range req.Paths {
			if err := security.ValidateFilePath(path); err != nil {
				s.writeError(w, r, errors.NewValidationError("path", privacy.MaskPath(path), err.Error()))
				return
			}
			fh, err := attachment.FromPath(path)
			if err != nil {
				s.writeError(w, r, errors.NewNotFoundError("File", filepath.Base(path), err).
					WithContext("path", privacy.MaskPath(path)))
				return
			}
			files = append(files, fh)
		}

		added := s.session.PickFiles(files)
		s.writeAction(w, len(added) > 0)
	}
}

func (s *Server) handleRemoveAttachment() http.HandlerFunc {
	return s.idAction(s.session.RemovePendingAttachment)
}

// handleStartCall keeps the request's values but not its cancellation, so a
// dropped HTTP connection does not abort a device prompt
func (s *Server) handleStartCall(mode models.CallMode) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := context.WithoutCancel(r.Context())

		var err error
		if mode == models.CallModeVideo {
			err = s.session.StartVideo(ctx)
		} else {
			err = s.session.StartAudio(ctx)
		}
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		s.writeAction(w, true)
	}
}

func (s *Server) handleEndCall() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		active := s.session.Snapshot().Call.Mode != models.CallModeIdle
		s.session.EndCall()
		s.writeAction(w, active)
	}
}

func (s *Server) handleToggleMute() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		before := s.session.Snapshot().Call.Muted
		s.writeAction(w, s.session.ToggleMute() != before)
	}
}

func (s *Server) handleToggleCamera() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		before := s.session.Snapshot().Call.CameraOn
		s.writeAction(w, s.session.ToggleCamera() != before)
	}
}

func (s *Server) handleGetAPIBaseURL() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		value, err := s.apiURL.Load(r.Context())
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		s.writeJSON(w, http.StatusOK, apiBaseURLResponse{APIBaseURL: value})
	}
}

func (s *Server) handleSaveAPIBaseURL() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req apiBaseURLRequest
		if err := decodeBody(r, &req); err != nil {
			s.writeError(w, r, err)
			return
		}
		if err := validation.ValidateAPIBaseURL(req.Value); err != nil {
			s.writeError(w, r, err)
			return
		}
		saved, err := s.apiURL.Save(r.Context(), req.Value)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		s.logger.WithFields(privacy.MaskSensitiveFields(logrus.Fields{
			"request_id":   tracing.GetRequestID(r.Context()),
			"api_base_url": saved,
		})).Info("API base URL saved")
		s.writeJSON(w, http.StatusOK, apiBaseURLResponse{APIBaseURL: saved, Message: settings.SavedMessage(saved)})
	}
}
