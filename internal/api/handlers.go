package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/gurin-alexey/pulse-app-sub001/internal/calendar"
	appLog "github.com/gurin-alexey/pulse-app-sub001/internal/log"
	"github.com/gurin-alexey/pulse-app-sub001/internal/model"
	"github.com/gurin-alexey/pulse-app-sub001/internal/series"
	"github.com/gurin-alexey/pulse-app-sub001/internal/storage"
)

const defaultWindowDays = 7

// Handler serves the occurrence API over a resolver and its store.
type Handler struct {
	Resolver     *series.Resolver
	Store        storage.Repository
	WindowDays   int
	CalendarName string
}

func NewHandler(resolver *series.Resolver, store storage.Repository) *Handler {
	return &Handler{Resolver: resolver, Store: store, WindowDays: defaultWindowDays, CalendarName: "Pulse"}
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ListOccurrences returns the expanded window ?start=YYYY-MM-DD&end=YYYY-MM-DD.
func (h *Handler) ListOccurrences(w http.ResponseWriter, r *http.Request) {
	start, end, err := h.window(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid window", err)
		return
	}
	win, err := h.Resolver.Window(r.Context(), start, end)
	if err != nil {
		writeFailure(w, "Failed to load occurrences", err)
		return
	}
	writeJSON(w, http.StatusOK, win)
}

func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	start, end, err := h.window(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid window", err)
		return
	}
	stats, err := h.Resolver.Stats(r.Context(), start, end)
	if err != nil {
		writeFailure(w, "Failed to compute stats", err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *Handler) CreateTask(w http.ResponseWriter, r *http.Request) {
	var req CreateTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	task, err := h.Resolver.Create(r.Context(), req.toTask())
	if err != nil {
		writeFailure(w, "Failed to create task", err)
		return
	}
	writeJSON(w, http.StatusCreated, task)
}

func (h *Handler) GetTask(w http.ResponseWriter, r *http.Request) {
	task, err := h.Resolver.Load(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeFailure(w, "Task not found", err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

// EditTask applies {date?, mode?, patch} to the task or one of its
// occurrences.
func (h *Handler) EditTask(w http.ResponseWriter, r *http.Request) {
	var req EditRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	mode, err := series.ParseMode(req.Mode)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid mode", err)
		return
	}
	task, err := h.Resolver.Load(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeFailure(w, "Task not found", err)
		return
	}
	out, err := h.Resolver.Edit(r.Context(), series.Request{Task: &task, Date: req.Date, Mode: mode, Patch: req.Patch})
	if err != nil {
		writeFailure(w, "Failed to edit task", err)
		return
	}
	writeJSON(w, http.StatusOK, toOutcomeDTO(out))
}

// DeleteTask honours ?date=YYYY-MM-DD&mode=single|following|all.
func (h *Handler) DeleteTask(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	mode, err := series.ParseMode(q.Get("mode"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid mode", err)
		return
	}
	var date *model.LocalDate
	if raw := q.Get("date"); raw != "" {
		d, err := model.ParseDate(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid date (use YYYY-MM-DD)", err)
			return
		}
		date = &d
	}
	task, err := h.Resolver.Load(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeFailure(w, "Task not found", err)
		return
	}
	out, err := h.Resolver.Delete(r.Context(), series.Request{Task: &task, Date: date, Mode: mode})
	if err != nil {
		writeFailure(w, "Failed to delete task", err)
		return
	}
	writeJSON(w, http.StatusOK, toOutcomeDTO(out))
}

func (h *Handler) DetachOccurrence(w http.ResponseWriter, r *http.Request) {
	var req DetachRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Date.IsZero() {
		writeError(w, http.StatusBadRequest, "date is required", nil)
		return
	}
	task, err := h.Resolver.Load(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeFailure(w, "Task not found", err)
		return
	}
	out, err := h.Resolver.Detach(r.Context(), &task, req.Date)
	if err != nil {
		writeFailure(w, "Failed to detach occurrence", err)
		return
	}
	writeJSON(w, http.StatusCreated, toOutcomeDTO(out))
}

func (h *Handler) SetOccurrenceStatus(w http.ResponseWriter, r *http.Request) {
	date, err := model.ParseDate(chi.URLParam(r, "date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date (use YYYY-MM-DD)", err)
		return
	}
	var req StatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	status, err := model.ParseStatus(req.Status)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid status", err)
		return
	}
	task, err := h.Resolver.Load(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeFailure(w, "Task not found", err)
		return
	}
	out, err := h.Resolver.SetStatus(r.Context(), &task, date, status)
	if err != nil {
		writeFailure(w, "Failed to set status", err)
		return
	}
	writeJSON(w, http.StatusOK, toOutcomeDTO(out))
}

func (h *Handler) RestoreOccurrence(w http.ResponseWriter, r *http.Request) {
	date, err := model.ParseDate(chi.URLParam(r, "date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date (use YYYY-MM-DD)", err)
		return
	}
	task, err := h.Resolver.Load(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeFailure(w, "Task not found", err)
		return
	}
	out, err := h.Resolver.Restore(r.Context(), &task, date)
	if err != nil {
		writeFailure(w, "Failed to restore occurrence", err)
		return
	}
	writeJSON(w, http.StatusOK, toOutcomeDTO(out))
}

func (h *Handler) ExportCalendar(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	n, err := calendar.Write(r.Context(), &buf, h.Store, calendar.Options{Location: h.Resolver.Location(), Name: h.CalendarName})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to export calendar", err)
		return
	}
	appLog.Debug("calendar exported", "events", n)
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="pulse.ics"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

// window reads ?start and ?end. A missing start is today; a missing end
// covers WindowDays days from start.
func (h *Handler) window(r *http.Request) (model.LocalDate, model.LocalDate, error) {
	q := r.URL.Query()
	start := h.Resolver.Today()
	if raw := q.Get("start"); raw != "" {
		d, err := model.ParseDate(raw)
		if err != nil {
			return model.LocalDate{}, model.LocalDate{}, err
		}
		start = d
	}
	days := h.WindowDays
	if days <= 0 {
		days = defaultWindowDays
	}
	end := start.AddDays(days - 1)
	if raw := q.Get("end"); raw != "" {
		d, err := model.ParseDate(raw)
		if err != nil {
			return model.LocalDate{}, model.LocalDate{}, err
		}
		end = d
	}
	if end.Before(start) {
		return model.LocalDate{}, model.LocalDate{}, fmt.Errorf("end %s before start %s", end, start)
	}
	return start, end, nil
}

// statusFor maps resolver and storage errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, storage.ErrNotFound), errors.Is(err, series.ErrPreconditionFailed):
		return http.StatusNotFound
	case errors.Is(err, series.ErrModeRequired), errors.Is(err, series.ErrInvalidOperation):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func writeFailure(w http.ResponseWriter, message string, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		appLog.Error("api: request failed", err, "message", message)
	}
	writeError(w, status, message, err)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		appLog.Warn("api: encode response failed", "err", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
