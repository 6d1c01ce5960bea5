package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/kiddies/internal/models"
	"github.com/charlesng35/kiddies/internal/services"
	appErrors "github.com/charlesng35/kiddies/pkg/errors"
	"github.com/charlesng35/kiddies/pkg/response"
)

// CensusHandler records attendance and serves the dashboard and reports.
type CensusHandler struct {
	census *services.CensusService
}

func NewCensusHandler(census *services.CensusService) *CensusHandler {
	return &CensusHandler{census: census}
}

type ageBracketRequest struct {
	Range string `json:"range" validate:"notblank"`
	Count int    `json:"count" validate:"gte=0"`
}

type recordCensusRequest struct {
	Date        string              `json:"date" validate:"required,calendarday"`
	Service     string              `json:"service" validate:"notblank"`
	ServiceID   string              `json:"serviceId" validate:"max=64"`
	ServiceName string              `json:"serviceName"`
	ServiceTime string              `json:"serviceTime"`
	AgeBrackets []ageBracketRequest `json:"ageBrackets" validate:"required,min=1,dive"`
	Teachers    []string            `json:"teachers" validate:"required,min=1"`
	Offering    *float64            `json:"offering" validate:"omitempty,gte=0"`
	Tithe       *float64            `json:"tithe" validate:"omitempty,gte=0"`
}

// GET /api/census/stats
func (h *CensusHandler) Stats(c *gin.Context) {
	stats, err := h.census.DashboardStats(requestContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, stats)
}

// POST /api/census
func (h *CensusHandler) Create(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req recordCensusRequest
	if !bindAndValidate(c, &req) {
		return
	}

	brackets := make([]models.AgeBracket, 0, len(req.AgeBrackets))
	for _, b := range req.AgeBrackets {
		brackets = append(brackets, models.AgeBracket{Range: b.Range, Count: b.Count})
	}

	record, err := h.census.RecordCensus(requestContext(c), services.RecordCensusInput{
		Date:        req.Date,
		Service:     req.Service,
		ServiceID:   req.ServiceID,
		ServiceName: req.ServiceName,
		ServiceTime: req.ServiceTime,
		AgeBrackets: brackets,
		Teachers:    req.Teachers,
		Offering:    req.Offering,
		Tithe:       req.Tithe,
	}, user.ID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.SuccessWithMessage(c, http.StatusCreated, "Census data saved successfully", record)
}

// GET /api/census/dates
func (h *CensusHandler) Dates(c *gin.Context) {
	dates, err := h.census.DistinctDates(requestContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, dates)
}

// GET /api/census/date?date=
func (h *CensusHandler) ByDate(c *gin.Context) {
	raw := strings.TrimSpace(c.Query("date"))
	if raw == "" {
		response.Error(c, appErrors.NewBadRequest("Date is required"))
		return
	}
	day, err := h.census.Calendar().ParseDay(raw)
	if err != nil {
		response.Error(c, appErrors.NewBadRequest("Date must be in YYYY-MM-DD format"))
		return
	}

	records, err := h.census.ForDate(requestContext(c), day)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, records)
}

// GET /api/census/report?startDate=&endDate=
func (h *CensusHandler) Report(c *gin.Context) {
	rawStart := strings.TrimSpace(c.Query("startDate"))
	rawEnd := strings.TrimSpace(c.Query("endDate"))
	if rawStart == "" || rawEnd == "" {
		response.Error(c, appErrors.NewBadRequest("Start date and end date are required"))
		return
	}

	start, err := h.census.Calendar().ParseDay(rawStart)
	if err != nil {
		response.Error(c, appErrors.NewBadRequest("Start date must be in YYYY-MM-DD format"))
		return
	}
	end, err := h.census.Calendar().ParseDay(rawEnd)
	if err != nil {
		response.Error(c, appErrors.NewBadRequest("End date must be in YYYY-MM-DD format"))
		return
	}

	report, err := h.census.Report(requestContext(c), start, end)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, report)
}
