package orders

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/cpoe/cpoe/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/orders", h.CreateOrder)
	api.GET("/orders", h.ListOrders)
	api.GET("/orders/:id", h.GetOrder)
	api.POST("/orders/:id/acknowledge", h.AcknowledgeOrder)
	api.POST("/orders/:id/reject", h.RejectOrder)
	api.POST("/orders/:id/resubmit", h.ResubmitOrder)
	api.POST("/orders/:id/cancel", h.CancelOrder)

	api.POST("/orders/:id/tasks/generate", h.GenerateTasks)
	api.POST("/orders/:id/tasks/rollback", h.RollbackTasks)
	api.GET("/orders/:id/tasks", h.ListOrderTasks)

	api.POST("/orders/:id/stop", h.RequestStop)
	api.POST("/orders/:id/stop/confirm", h.ConfirmStop)
	api.POST("/orders/:id/stop/reject", h.RejectStop)

	api.GET("/tasks", h.ListNurseTasks)
	api.GET("/tasks/:id", h.GetTask)
	api.POST("/tasks/:id/transition", h.TransitionTask)

	api.GET("/catalog/slots", h.ListSlotCatalog)
}

// httpError maps the core error taxonomy onto HTTP statuses; the error kind
// is surfaced verbatim.
func httpError(err error) error {
	switch {
	case errors.Is(err, ErrOrderNotFound), errors.Is(err, ErrTaskNotFound), errors.Is(err, ErrCutPointNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrStopAlreadyPending), errors.Is(err, ErrDuplicateGeneration),
		errors.Is(err, ErrIllegalStopTransition), errors.Is(err, ErrIllegalOrderTransition),
		errors.Is(err, ErrIllegalTaskTransition):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, ErrInvalidTimingConfig), errors.Is(err, ErrAllTimesInPast):
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}

// -- Orders --

func (h *Handler) CreateOrder(c echo.Context) error {
	var o ClinicalOrder
	if err := c.Bind(&o); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.CreateOrder(c.Request().Context(), &o); err != nil {
		if errors.Is(err, ErrInvalidTimingConfig) {
			return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
		}
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, o)
}

func (h *Handler) GetOrder(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	o, err := h.svc.GetOrder(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, o)
}

func (h *Handler) ListOrders(c echo.Context) error {
	pg := pagination.FromContext(c)
	if pid := c.QueryParam("patient_id"); pid != "" {
		patientID, err := uuid.Parse(pid)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid patient_id")
		}
		items, total, err := h.svc.ListOrdersByPatient(c.Request().Context(), patientID, pg.Limit, pg.Offset)
		if err != nil {
			return httpError(err)
		}
		return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
	}
	if status := c.QueryParam("status"); status != "" {
		items, total, err := h.svc.ListOrdersByStatus(c.Request().Context(), OrderStatus(status), pg.Limit, pg.Offset)
		if err != nil {
			return httpError(err)
		}
		return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
	}
	return echo.NewHTTPError(http.StatusBadRequest, "patient_id or status query parameter is required")
}

type actorRequest struct {
	NurseID  uuid.UUID `json:"nurse_id"`
	DoctorID uuid.UUID `json:"doctor_id"`
	Reason   string    `json:"reason"`
}

func (h *Handler) AcknowledgeOrder(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req actorRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.NurseID == uuid.Nil {
		return echo.NewHTTPError(http.StatusBadRequest, "nurse_id is required")
	}
	if err := h.svc.AcknowledgeOrder(c.Request().Context(), id, req.NurseID); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) RejectOrder(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req actorRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.NurseID == uuid.Nil {
		return echo.NewHTTPError(http.StatusBadRequest, "nurse_id is required")
	}
	if err := h.svc.RejectOrder(c.Request().Context(), id, req.NurseID, req.Reason); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) ResubmitOrder(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req actorRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.DoctorID == uuid.Nil {
		return echo.NewHTTPError(http.StatusBadRequest, "doctor_id is required")
	}
	if err := h.svc.ResubmitOrder(c.Request().Context(), id, req.DoctorID); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) CancelOrder(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req actorRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.DoctorID == uuid.Nil {
		return echo.NewHTTPError(http.StatusBadRequest, "doctor_id is required")
	}
	if err := h.svc.CancelOrder(c.Request().Context(), id, req.DoctorID); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// -- Task generation --

func (h *Handler) GenerateTasks(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	tasks, err := h.svc.GenerateTasks(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, tasks)
}

func (h *Handler) RollbackTasks(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	removed, err := h.svc.RollbackUnexecuted(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"removed_task_ids": removed})
}

func (h *Handler) ListOrderTasks(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	tasks, err := h.svc.ListTasksByOrder(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, tasks)
}

// -- Stop protocol --

type stopRequest struct {
	DoctorID       uuid.UUID `json:"doctor_id"`
	Reason         string    `json:"reason"`
	CutAfterTaskID uuid.UUID `json:"cut_after_task_id"`
}

func (h *Handler) RequestStop(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req stopRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.DoctorID == uuid.Nil {
		return echo.NewHTTPError(http.StatusBadRequest, "doctor_id is required")
	}
	if req.CutAfterTaskID == uuid.Nil {
		return echo.NewHTTPError(http.StatusBadRequest, "cut_after_task_id is required")
	}
	locked, err := h.svc.RequestStop(c.Request().Context(), id, req.DoctorID, req.Reason, req.CutAfterTaskID)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"locked_task_ids": locked})
}

func (h *Handler) ConfirmStop(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req actorRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.NurseID == uuid.Nil {
		return echo.NewHTTPError(http.StatusBadRequest, "nurse_id is required")
	}
	if err := h.svc.ConfirmStop(c.Request().Context(), id, req.NurseID); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) RejectStop(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req actorRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.NurseID == uuid.Nil {
		return echo.NewHTTPError(http.StatusBadRequest, "nurse_id is required")
	}
	restored, err := h.svc.RejectStop(c.Request().Context(), id, req.NurseID, req.Reason)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"restored_task_ids": restored})
}

// -- Tasks --

func (h *Handler) GetTask(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	t, err := h.svc.GetTask(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, t)
}

type transitionRequest struct {
	Status        TaskStatus      `json:"status"`
	ActorID       uuid.UUID       `json:"actor_id"`
	ResultPayload json.RawMessage `json:"result_payload,omitempty"`
}

func (h *Handler) TransitionTask(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req transitionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Status == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "status is required")
	}
	if req.ActorID == uuid.Nil {
		return echo.NewHTTPError(http.StatusBadRequest, "actor_id is required")
	}
	t, err := h.svc.TransitionTask(c.Request().Context(), id, req.Status, req.ActorID, req.ResultPayload)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, t)
}

// ListNurseTasks is the nurse worklist: tasks assigned to a nurse inside a
// time window, ordered by planned start.
func (h *Handler) ListNurseTasks(c echo.Context) error {
	nid := c.QueryParam("nurse_id")
	if nid == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "nurse_id is required")
	}
	nurseID, err := uuid.Parse(nid)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid nurse_id")
	}
	from, err := time.Parse(time.RFC3339, c.QueryParam("from"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "from must be an RFC 3339 timestamp")
	}
	to, err := time.Parse(time.RFC3339, c.QueryParam("to"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "to must be an RFC 3339 timestamp")
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListTasksByNurse(c.Request().Context(), nurseID, from, to, pg.Limit, pg.Offset)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) ListSlotCatalog(c echo.Context) error {
	return c.JSON(http.StatusOK, Catalog())
}
