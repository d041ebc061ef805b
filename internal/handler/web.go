package handler

import (
	"net/http"
	"net/url"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/psds-microservice/ticket-desk/internal/auth"
	"github.com/psds-microservice/ticket-desk/internal/model"
	"github.com/psds-microservice/ticket-desk/internal/service"
)

// WebHandler serves the single-page desk: create form, resolve panel,
// searchable table and the admin delete panel. Every form posts back and
// redirects to the page with a flash message.
type WebHandler struct {
	svc      service.TicketServicer
	brand    string
	logoPath string
}

func NewWebHandler(svc service.TicketServicer, brand, logoPath string) *WebHandler {
	return &WebHandler{svc: svc, brand: brand, logoPath: logoPath}
}

type pageData struct {
	Brand         string
	HasLogo       bool
	Flash         string
	FlashErr      string
	Stats         service.Stats
	Open          []model.Ticket
	All           []model.Ticket
	Rows          []model.Ticket
	Categories    []model.Category
	Priorities    []model.Priority
	Query         string
	Sort          string
	Order         string
	CostTracking  bool
	DeleteEnabled bool
}

// SortHref links a column header; clicking the active column flips the order.
func (p pageData) SortHref(key string) string {
	order := "desc"
	if key == p.Sort && p.Order == "desc" {
		order = "asc"
	}
	v := url.Values{}
	if p.Query != "" {
		v.Set("q", p.Query)
	}
	v.Set("sort", key)
	v.Set("order", order)
	return "/?" + v.Encode()
}

func (h *WebHandler) Index(c *gin.Context) {
	data := pageData{
		Brand:         h.brand,
		HasLogo:       h.hasLogo(),
		Flash:         c.Query("msg"),
		FlashErr:      c.Query("err"),
		Categories:    h.svc.Categories(),
		Priorities:    model.Priorities,
		Query:         c.Query("q"),
		CostTracking:  h.svc.CostTracking(),
		DeleteEnabled: h.svc.DeleteEnabled(),
	}
	var desc bool
	data.Sort, desc = sortParams(c)
	data.Order = "asc"
	if desc {
		data.Order = "desc"
	}

	tickets, err := h.svc.Load(c.Request.Context())
	if err != nil {
		data.FlashErr = userMessage(err)
		c.HTML(statusFor(err), "index.tmpl", data)
		return
	}
	data.Stats = service.ComputeStats(tickets)
	data.Open = service.OpenTickets(tickets)
	data.All = tickets
	data.Rows = slices.Collect(service.Filter(tickets, data.Query))
	service.SortTickets(data.Rows, data.Sort, desc)
	c.HTML(http.StatusOK, "index.tmpl", data)
}

func (h *WebHandler) Create(c *gin.Context) {
	t, err := h.svc.Create(c.Request.Context(), service.CreateInput{
		Customer:    c.PostForm("customer"),
		Category:    model.Category(c.PostForm("category")),
		Priority:    model.Priority(c.PostForm("priority")),
		Description: c.PostForm("description"),
	})
	if err != nil {
		redirectFlash(c, "err", userMessage(err))
		return
	}
	redirectFlash(c, "msg", "Ticket #"+strconv.FormatUint(t.ID, 10)+" registered")
}

func (h *WebHandler) Resolve(c *gin.Context) {
	id, err := strconv.ParseUint(c.PostForm("ticket_id"), 10, 64)
	if err != nil {
		redirectFlash(c, "err", "select a ticket")
		return
	}
	cost := 0.0
	if raw := strings.TrimSpace(c.PostForm("cost")); raw != "" {
		if cost, err = strconv.ParseFloat(raw, 64); err != nil {
			redirectFlash(c, "err", "cost must be a number")
			return
		}
	}
	if _, err := h.svc.Resolve(c.Request.Context(), id, c.PostForm("solution"), cost); err != nil {
		redirectFlash(c, "err", userMessage(err))
		return
	}
	redirectFlash(c, "msg", "Ticket #"+strconv.FormatUint(id, 10)+" resolved")
}

func (h *WebHandler) Delete(c *gin.Context) {
	id, err := strconv.ParseUint(c.PostForm("ticket_id"), 10, 64)
	if err != nil {
		redirectFlash(c, "err", "select a ticket")
		return
	}
	ctx := auth.WithClientKey(c.Request.Context(), c.ClientIP())
	if err := h.svc.Delete(ctx, id, c.PostForm("secret")); err != nil {
		redirectFlash(c, "err", userMessage(err))
		return
	}
	redirectFlash(c, "msg", "Ticket #"+strconv.FormatUint(id, 10)+" deleted")
}

// Logo serves the optional decorative logo.
func (h *WebHandler) Logo(c *gin.Context) {
	if !h.hasLogo() {
		c.Status(http.StatusNotFound)
		return
	}
	c.File(h.logoPath)
}

func (h *WebHandler) hasLogo() bool {
	if h.logoPath == "" {
		return false
	}
	fi, err := os.Stat(h.logoPath)
	return err == nil && !fi.IsDir()
}

func redirectFlash(c *gin.Context, key, text string) {
	c.Redirect(http.StatusSeeOther, "/?"+url.Values{key: {text}}.Encode())
}
