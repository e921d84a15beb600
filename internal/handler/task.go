package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/dukerupert/homekeep/internal/model"
	"github.com/dukerupert/homekeep/internal/recurrence"
	"github.com/dukerupert/homekeep/internal/tracker"
)

type TaskHandler struct {
	tracker *tracker.Tracker
	logger  *slog.Logger
}

func NewTaskHandler(t *tracker.Tracker, logger *slog.Logger) *TaskHandler {
	return &TaskHandler{tracker: t, logger: logger}
}

type frequencyRequest struct {
	Value int    `json:"value"`
	Unit  string `json:"unit"`
}

type taskRequest struct {
	PropertyID  string           `json:"property_id"`
	Title       string           `json:"title"`
	Description string           `json:"description"`
	Category    string           `json:"category"`
	Frequency   frequencyRequest `json:"frequency"`
	NextDue     time.Time        `json:"next_due"`
}

// toModel normalizes the unit spelling ("month", "Weeks") before the
// facade sees it.
func (req *taskRequest) toModel() (model.MaintenanceTask, error) {
	unit, err := recurrence.ParseUnit(req.Frequency.Unit)
	if err != nil {
		return model.MaintenanceTask{}, err
	}
	f := model.Frequency{Value: req.Frequency.Value, Unit: unit}
	if err := recurrence.Validate(f); err != nil {
		return model.MaintenanceTask{}, err
	}
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return model.MaintenanceTask{}, errors.New("title is required")
	}
	if req.NextDue.IsZero() {
		return model.MaintenanceTask{}, errors.New("next_due is required")
	}
	return model.MaintenanceTask{
		PropertyID:  req.PropertyID,
		Title:       title,
		Description: req.Description,
		Category:    model.Category(req.Category),
		Frequency:   f,
		NextDue:     req.NextDue.UTC(),
	}, nil
}

// taskView adds the derived status to a task.
type taskView struct {
	model.MaintenanceTask
	Status   tracker.TaskStatus `json:"status"`
	Schedule string             `json:"schedule"`
}

func (h *TaskHandler) view(task model.MaintenanceTask) taskView {
	return taskView{
		MaintenanceTask: task,
		Status:          h.tracker.TaskStatus(task),
		Schedule:        recurrence.Describe(task.Frequency),
	}
}

// List handles GET /api/tasks, optionally filtered by ?property_id=
func (h *TaskHandler) List(w http.ResponseWriter, r *http.Request) {
	var tasks []model.MaintenanceTask
	if pid := r.URL.Query().Get("property_id"); pid != "" {
		tasks = h.tracker.TasksForProperty(pid)
	} else {
		tasks = h.tracker.Tasks()
	}

	out := make([]taskView, 0, len(tasks))
	for _, task := range tasks {
		out = append(out, h.view(task))
	}
	writeJSON(w, http.StatusOK, out)
}

// Create handles POST /api/tasks
func (h *TaskHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req taskRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	task, err := req.toModel()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	created, err := h.tracker.AddMaintenanceTask(r.Context(), task)
	if err != nil {
		respondErr(w, h.logger, err, "failed to create task")
		return
	}
	writeJSON(w, http.StatusCreated, h.view(*created))
}

// Update handles PUT /api/tasks/{id}. LastCompleted is kept from the stored
// task; only completions change it.
func (h *TaskHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req taskRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	task, err := req.toModel()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	task.ID = r.PathValue("id")
	if existing, ok := h.tracker.Task(task.ID); ok {
		task.LastCompleted = existing.LastCompleted
	}

	updated, err := h.tracker.UpdateMaintenanceTask(r.Context(), task)
	if err != nil {
		respondErr(w, h.logger, err, "failed to update task")
		return
	}
	writeJSON(w, http.StatusOK, h.view(*updated))
}

// Delete handles DELETE /api/tasks/{id}
func (h *TaskHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.tracker.DeleteMaintenanceTask(r.Context(), r.PathValue("id")); err != nil {
		respondErr(w, h.logger, err, "failed to delete task")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type completeRequest struct {
	CompletedDate     *time.Time `json:"completed_date"`
	Cost              float64    `json:"cost"`
	Notes             string     `json:"notes"`
	ServiceProviderID *string    `json:"service_provider_id"`
	Documents         []string   `json:"documents"`
}

// Complete handles POST /api/tasks/{id}/complete. A completion whose log was
// written but whose task update failed answers 500 with the log, and the
// client retries with POST /api/tasks/{id}/retry.
func (h *TaskHandler) Complete(w http.ResponseWriter, r *http.Request) {
	var req completeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Cost < 0 {
		writeError(w, http.StatusBadRequest, "cost must not be negative")
		return
	}
	data := model.CompletionData{
		Cost:              req.Cost,
		Notes:             req.Notes,
		ServiceProviderID: req.ServiceProviderID,
		Documents:         req.Documents,
	}
	if req.CompletedDate != nil {
		data.CompletedDate = req.CompletedDate.UTC()
	}

	id := r.PathValue("id")
	c, err := h.tracker.CompleteMaintenanceTask(r.Context(), id, data)
	if errors.Is(err, tracker.ErrStaleDueDate) {
		h.logger.Error("completion logged without due date update", "task_id", id, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"error": "completion was logged but the due date was not updated, retry the task update",
			"log":   c.Log,
		})
		return
	}
	if err != nil {
		respondErr(w, h.logger, err, "failed to complete task")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"log":  c.Log,
		"task": h.view(*c.Task),
	})
}

// Retry handles POST /api/tasks/{id}/retry
func (h *TaskHandler) Retry(w http.ResponseWriter, r *http.Request) {
	task, err := h.tracker.RetryTaskUpdate(r.Context(), r.PathValue("id"))
	if err != nil {
		respondErr(w, h.logger, err, "failed to update task")
		return
	}
	writeJSON(w, http.StatusOK, h.view(*task))
}

// Logs handles GET /api/tasks/{id}/logs
func (h *TaskHandler) Logs(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, ok := h.tracker.Task(id); !ok {
		writeError(w, http.StatusNotFound, "task not found")
		return
	}
	writeJSON(w, http.StatusOK, orEmpty(h.tracker.GetMaintenanceLogsForTask(id)))
}

// DeleteLog handles DELETE /api/logs/{id}
func (h *TaskHandler) DeleteLog(w http.ResponseWriter, r *http.Request) {
	if err := h.tracker.DeleteMaintenanceLog(r.Context(), r.PathValue("id")); err != nil {
		respondErr(w, h.logger, err, "failed to delete log")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
