package handler

import (
	"bytes"
	"net/http"
	"slices"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/psds-microservice/ticket-desk/internal/auth"
	"github.com/psds-microservice/ticket-desk/internal/export"
	"github.com/psds-microservice/ticket-desk/internal/model"
	"github.com/psds-microservice/ticket-desk/internal/service"
)

// AdminSecretHeader: заголовок с секретом администратора для DELETE.
const AdminSecretHeader = "X-Admin-Secret"

type TicketHandler struct {
	svc service.TicketServicer
}

func NewTicketHandler(svc service.TicketServicer) *TicketHandler {
	return &TicketHandler{svc: svc}
}

type ticketView struct {
	model.Ticket
	Display model.DisplayTag `json:"display"`
}

func toView(t *model.Ticket) ticketView {
	return ticketView{Ticket: *t, Display: service.ClassifyForDisplay(t)}
}

type createTicketRequest struct {
	Customer    string `json:"customer" binding:"required"`
	Category    string `json:"category" binding:"required"`
	Priority    string `json:"priority" binding:"required"`
	Description string `json:"description" binding:"required"`
}

func (h *TicketHandler) Create(c *gin.Context) {
	var req createTicketRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}
	t, err := h.svc.Create(c.Request.Context(), service.CreateInput{
		Customer:    req.Customer,
		Category:    model.Category(req.Category),
		Priority:    model.Priority(req.Priority),
		Description: req.Description,
	})
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": userMessage(err)})
		return
	}
	c.JSON(http.StatusCreated, toView(t))
}

func (h *TicketHandler) Get(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	t, err := h.svc.GetByID(c.Request.Context(), id)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": userMessage(err)})
		return
	}
	c.JSON(http.StatusOK, toView(t))
}

// List отдаёт тикеты с поиском (?q=) и сортировкой (?sort=, ?order=asc|desc, по умолчанию id desc).
func (h *TicketHandler) List(c *gin.Context) {
	seq, err := h.svc.Search(c.Request.Context(), c.Query("q"))
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": userMessage(err)})
		return
	}
	items := slices.Collect(seq)
	sortKey, desc := sortParams(c)
	service.SortTickets(items, sortKey, desc)

	out := make([]ticketView, len(items))
	for i := range items {
		out[i] = toView(&items[i])
	}
	c.JSON(http.StatusOK, gin.H{
		"tickets": out,
		"total":   len(out),
	})
}

type resolveTicketRequest struct {
	Solution string  `json:"solution" binding:"required"`
	Cost     float64 `json:"cost"`
}

func (h *TicketHandler) Resolve(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req resolveTicketRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}
	t, err := h.svc.Resolve(c.Request.Context(), id, req.Solution, req.Cost)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": userMessage(err)})
		return
	}
	c.JSON(http.StatusOK, toView(t))
}

func (h *TicketHandler) Delete(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	ctx := auth.WithClientKey(c.Request.Context(), c.ClientIP())
	if err := h.svc.Delete(ctx, id, c.GetHeader(AdminSecretHeader)); err != nil {
		c.JSON(statusFor(err), gin.H{"error": userMessage(err)})
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *TicketHandler) Stats(c *gin.Context) {
	tickets, err := h.svc.Load(c.Request.Context())
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": userMessage(err)})
		return
	}
	c.JSON(http.StatusOK, service.ComputeStats(tickets))
}

// Export отдаёт таблицу тикетов в xlsx с той же раскраской строк, что и веб-таблица.
func (h *TicketHandler) Export(c *gin.Context) {
	seq, err := h.svc.Search(c.Request.Context(), c.Query("q"))
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": userMessage(err)})
		return
	}
	items := slices.Collect(seq)
	sortKey, desc := sortParams(c)
	service.SortTickets(items, sortKey, desc)

	var buf bytes.Buffer
	if err := export.WriteXLSX(&buf, items, h.svc.CostTracking()); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": userMessage(err)})
		return
	}
	c.Header("Content-Disposition", `attachment; filename="tickets.xlsx"`)
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", buf.Bytes())
}

func parseID(c *gin.Context) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return id, true
}

// sortParams читает ?sort= и ?order=; по умолчанию сначала новые (id desc).
func sortParams(c *gin.Context) (string, bool) {
	key := c.DefaultQuery("sort", service.SortID)
	if !slices.Contains(service.SortKeys, key) {
		key = service.SortID
	}
	return key, !strings.EqualFold(c.Query("order"), "asc")
}
