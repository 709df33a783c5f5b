package api

import (
	"net/http"
	"os"
	"strings"

	"salon/internal/service"
)

type bookingCreatedResponse struct {
	ID      int64  `json:"id"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

func (s *HTTPServer) handleListServices(w http.ResponseWriter, r *http.Request) {
	services, err := s.deps.Catalog.ListServices(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, services)
}

func (s *HTTPServer) handleListMasters(w http.ResponseWriter, r *http.Request) {
	masters, err := s.deps.Catalog.ListMasters(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, masters)
}

func (s *HTTPServer) handleGetMaster(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeServiceError(w, r, service.ErrMasterNotFound)
		return
	}
	master, err := s.deps.Catalog.GetMaster(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, master)
}

func (s *HTTPServer) handleMasterSchedule(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeServiceError(w, r, service.ErrMasterNotFound)
		return
	}
	days, err := s.deps.Catalog.GetMasterSchedule(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, days)
}

func (s *HTTPServer) handleBookedTimes(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeServiceError(w, r, service.ErrMasterNotFound)
		return
	}
	date := strings.TrimSpace(r.URL.Query().Get("date"))
	if date == "" {
		writeError(w, http.StatusBadRequest, "date is required")
		return
	}
	times, err := s.deps.Catalog.GetBookedTimes(r.Context(), id, date)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"booked_times": times})
}

func (s *HTTPServer) handleCreateBooking(w http.ResponseWriter, r *http.Request) {
	var req service.BookingRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}

	booking, err := s.deps.Bookings.CreateBooking(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, bookingCreatedResponse{
		ID:      booking.ID,
		Status:  "success",
		Message: "Бронирование создано успешно",
	})
}

// mediaDir serves uploaded files without directory listings.
type mediaDir string

func (d mediaDir) Open(name string) (http.File, error) {
	f, err := http.Dir(d).Open(name)
	if err != nil {
		return nil, err
	}
	stat, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	if stat.IsDir() {
		f.Close()
		return nil, os.ErrNotExist
	}
	return f, nil
}
