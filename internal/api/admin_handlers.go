package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"salon/internal/models"
	"salon/internal/service"
)

type statusChangeRequest struct {
	Status  string `json:"status"`
	Version int64  `json:"version"`
}

type scheduleRequest struct {
	Days []models.MasterSchedule `json:"days"`
}

type uploadResponse struct {
	Path string `json:"path"`
	URL  string `json:"url"`
}

func bookingFilter(r *http.Request) (models.BookingFilter, error) {
	q := r.URL.Query()
	f := models.BookingFilter{
		From:   strings.TrimSpace(q.Get("from")),
		To:     strings.TrimSpace(q.Get("to")),
		Status: strings.TrimSpace(q.Get("status")),
	}
	if raw := q.Get("master_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return f, &service.ValidationError{Field: "master_id", Message: "must be an integer"}
		}
		f.MasterID = id
	}
	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			return f, &service.ValidationError{Field: "limit", Message: "must be an integer"}
		}
		f.Limit = limit
	}
	return f, nil
}

func (s *HTTPServer) handleAdminListBookings(w http.ResponseWriter, r *http.Request) {
	f, err := bookingFilter(r)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	bookings, err := s.deps.Admin.ListBookings(r.Context(), f)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"bookings": bookings, "count": len(bookings)})
}

func (s *HTTPServer) handleAdminExport(w http.ResponseWriter, r *http.Request) {
	f, err := bookingFilter(r)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	path, err := s.deps.Admin.ExportBookings(r.Context(), f)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filepath.Base(path)+`"`)
	http.ServeFile(w, r, path)
}

func (s *HTTPServer) handleAdminChangeStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeServiceError(w, r, service.ErrBookingNotFound)
		return
	}
	var req statusChangeRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}

	booking, err := s.deps.Admin.ChangeBookingStatus(r.Context(), id, req.Version, req.Status, clientName(r.Context()))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, booking)
}

func (s *HTTPServer) handleAdminCreateService(w http.ResponseWriter, r *http.Request) {
	var in service.ServiceInput
	if !s.decodeJSON(w, r, &in) {
		return
	}
	svc, err := s.deps.Admin.CreateService(r.Context(), in)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, svc)
}

func (s *HTTPServer) handleAdminUpdateService(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeServiceError(w, r, service.ErrServiceNotFound)
		return
	}
	var in service.ServiceInput
	if !s.decodeJSON(w, r, &in) {
		return
	}
	svc, err := s.deps.Admin.UpdateService(r.Context(), id, in)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, svc)
}

func (s *HTTPServer) handleAdminCreateMaster(w http.ResponseWriter, r *http.Request) {
	var in service.MasterInput
	if !s.decodeJSON(w, r, &in) {
		return
	}
	master, err := s.deps.Admin.CreateMaster(r.Context(), in)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, master)
}

func (s *HTTPServer) handleAdminUpdateMaster(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeServiceError(w, r, service.ErrMasterNotFound)
		return
	}
	var in service.MasterInput
	if !s.decodeJSON(w, r, &in) {
		return
	}
	master, err := s.deps.Admin.UpdateMaster(r.Context(), id, in)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, master)
}

func (s *HTTPServer) handleAdminSetSchedule(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeServiceError(w, r, service.ErrMasterNotFound)
		return
	}
	var req scheduleRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	days, err := s.deps.Admin.SetMasterSchedule(r.Context(), id, req.Days)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"days": days})
}

func (s *HTTPServer) handleAdminServiceImage(w http.ResponseWriter, r *http.Request) {
	s.handleUpload(w, r, service.ErrServiceNotFound, s.deps.Admin.UploadServiceImage)
}

func (s *HTTPServer) handleAdminMasterPhoto(w http.ResponseWriter, r *http.Request) {
	s.handleUpload(w, r, service.ErrMasterNotFound, s.deps.Admin.UploadMasterPhoto)
}

type uploadFunc func(ctx context.Context, id int64, filename string, r io.Reader) (string, error)

func (s *HTTPServer) handleUpload(w http.ResponseWriter, r *http.Request, notFound error, upload uploadFunc) {
	id, ok := pathID(r)
	if !ok {
		writeServiceError(w, r, notFound)
		return
	}

	// multipart overhead on top of the file itself
	r.Body = http.MaxBytesReader(w, r.Body, s.media.MaxUpload+1<<20)
	if err := r.ParseMultipartForm(s.media.MaxUpload); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "file too large")
			return
		}
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	rel, err := upload(r.Context(), id, header.Filename, file)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, uploadResponse{
		Path: rel,
		URL:  strings.TrimSuffix(s.media.URLPrefix, "/") + "/" + rel,
	})
}
