package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/charlesng35/kiddies/internal/cache"
	"github.com/charlesng35/kiddies/internal/calendar"
	"github.com/charlesng35/kiddies/internal/models"
	"github.com/charlesng35/kiddies/pkg/logger"
	"github.com/charlesng35/kiddies/pkg/metrics"
)

const (
	dashboardCachePrefix   = "census:dashboard:"
	dashboardGenerationKey = "census:dashboard:generation"
)

// CensusOption customises CensusService behaviour.
type CensusOption func(*CensusService)

// WithCensusClock injects the time source used for dashboard windows.
func WithCensusClock(clock func() time.Time) CensusOption {
	return func(s *CensusService) {
		s.now = defaultClock(clock)
	}
}

// WithCensusCalendar sets the reference time zone used to bucket records into days.
func WithCensusCalendar(cal *calendar.Calendar) CensusOption {
	return func(s *CensusService) {
		if cal != nil {
			s.cal = cal
		}
	}
}

// WithCensusSettings enables filling service display fields from the configured services.
func WithCensusSettings(settings *SettingsService) CensusOption {
	return func(s *CensusService) {
		s.settings = settings
	}
}

// WithCensusCache keeps computed dashboard stats in store for ttl. Entries are keyed by day
// and by a generation that every recorded census replaces, so a snapshot computed while a
// record was being written is never served after that write. Writes made through a service
// without the cache do not replace the generation.
func WithCensusCache(store cache.Store, ttl time.Duration) CensusOption {
	return func(s *CensusService) {
		if store == nil || ttl <= 0 {
			return
		}
		s.cache = store
		s.cacheTTL = ttl
	}
}

// RecordCensusInput carries one service's attendance submission.
type RecordCensusInput struct {
	Date        string
	Service     string
	ServiceID   string
	ServiceName string
	ServiceTime string
	AgeBrackets []models.AgeBracket
	Teachers    []string
	Offering    *float64
	Tithe       *float64
}

// DateEntry is a distinct census day with its display label.
type DateEntry struct {
	Date        string `json:"date"`
	DisplayDate string `json:"displayDate"`
}

// ServiceRollup is the kid total and record count of one service across a report range.
type ServiceRollup struct {
	Service string `json:"service"`
	Total   int    `json:"total"`
	Count   int    `json:"count"`
}

// DateRollup is the kid total and record count of one day across all services.
type DateRollup struct {
	Date  string `json:"date"`
	Total int    `json:"total"`
	Count int    `json:"count"`
}

// ReportSummary holds the two independent partitions of a report, in first-seen order.
type ReportSummary struct {
	ByService []ServiceRollup `json:"byService"`
	ByDate    []DateRollup    `json:"byDate"`
}

// Report aggregates the census records of an inclusive day range.
type Report struct {
	StartDate    string          `json:"startDate"`
	EndDate      string          `json:"endDate"`
	TotalKids    int             `json:"totalKids"`
	TotalRecords int             `json:"totalRecords"`
	Services     []string        `json:"services"`
	Dates        []string        `json:"dates"`
	Data         []models.Census `json:"data"`
	Summary      ReportSummary   `json:"summary"`
}

// WindowStats summarises one dashboard window.
type WindowStats struct {
	Total   int64 `json:"total"`
	Records int64 `json:"records"`
}

// Dashboard holds the today, week and month windows plus the all-time record count.
type Dashboard struct {
	Today        WindowStats `json:"today"`
	Week         WindowStats `json:"week"`
	Month        WindowStats `json:"month"`
	TotalRecords int64       `json:"totalRecords"`
}

// CensusService records attendance and computes the reporting rollups.
type CensusService struct {
	db       *gorm.DB
	cal      *calendar.Calendar
	settings *SettingsService
	cache    cache.Store
	cacheTTL time.Duration
	now      func() time.Time
	log      *zap.Logger
}

// NewCensusService constructs a CensusService bucketing by UTC days unless configured otherwise.
func NewCensusService(db *gorm.DB, opts ...CensusOption) (*CensusService, error) {
	if db == nil {
		return nil, errors.New("census service: db is required")
	}

	service := &CensusService{
		db:  db,
		cal: calendar.UTC(),
		now: time.Now,
		log: logger.WithModule("census"),
	}
	for _, opt := range opts {
		opt(service)
	}
	return service, nil
}

// Calendar exposes the reference calendar.
func (s *CensusService) Calendar() *calendar.Calendar {
	return s.cal
}

// RecordCensus validates and stores a census record attributed to createdBy.
func (s *CensusService) RecordCensus(ctx context.Context, input RecordCensusInput, createdBy string) (*models.Census, error) {
	ctx = ensureContext(ctx)

	service := strings.TrimSpace(input.Service)
	if strings.TrimSpace(input.Date) == "" || service == "" {
		return nil, validationError("Date and service are required")
	}
	day, err := s.cal.ParseDay(input.Date)
	if err != nil {
		return nil, validationError("Date must be formatted as YYYY-MM-DD")
	}
	if strings.TrimSpace(createdBy) == "" {
		return nil, validationError("Creator is required")
	}

	brackets, err := cleanBrackets(input.AgeBrackets)
	if err != nil {
		return nil, err
	}
	teachers := normaliseStrings(input.Teachers)
	if len(teachers) == 0 {
		return nil, validationError("At least one teacher is required")
	}

	offering, err := nonNegative("Offering", input.Offering)
	if err != nil {
		return nil, err
	}
	tithe, err := nonNegative("Tithe", input.Tithe)
	if err != nil {
		return nil, err
	}

	record := &models.Census{
		Date:        s.cal.Midnight(day),
		Day:         day.String(),
		Service:     service,
		ServiceID:   strings.TrimSpace(input.ServiceID),
		ServiceName: strings.TrimSpace(input.ServiceName),
		ServiceTime: strings.TrimSpace(input.ServiceTime),
		AgeBrackets: brackets,
		Teachers:    teachers,
		Offering:    offering,
		Tithe:       tithe,
		CreatedBy:   createdBy,
	}
	record.TotalKids = record.BracketTotal()

	if err := s.fillServiceDetails(ctx, record); err != nil {
		return nil, err
	}

	if err := s.db.WithContext(ctx).Create(record).Error; err != nil {
		return nil, internalError(fmt.Errorf("census service: create record: %w", err))
	}

	metrics.CensusRecorded.Inc()
	metrics.CensusKids.Add(float64(record.TotalKids))
	s.invalidateDashboard(ctx)

	return record, nil
}

// ForDate returns the records of one calendar day ordered by service.
func (s *CensusService) ForDate(ctx context.Context, day calendar.Day) ([]models.Census, error) {
	ctx = ensureContext(ctx)

	var records []models.Census
	if err := s.db.WithContext(ctx).
		Preload("Creator").
		Where("day = ?", day.String()).
		Order("service ASC").
		Order("created_at ASC").
		Find(&records).Error; err != nil {
		return nil, internalError(fmt.Errorf("census service: records for %s: %w", day, err))
	}
	if records == nil {
		records = []models.Census{}
	}
	return records, nil
}

// DistinctDates lists every day that has records, newest first.
func (s *CensusService) DistinctDates(ctx context.Context) ([]DateEntry, error) {
	ctx = ensureContext(ctx)

	var days []string
	if err := s.db.WithContext(ctx).
		Model(&models.Census{}).
		Distinct("day").
		Order("day DESC").
		Pluck("day", &days).Error; err != nil {
		return nil, internalError(fmt.Errorf("census service: distinct dates: %w", err))
	}

	entries := make([]DateEntry, 0, len(days))
	for _, day := range days {
		entries = append(entries, DateEntry{Date: day, DisplayDate: calendar.Day(day).Display()})
	}
	return entries, nil
}

// Report aggregates the inclusive day range [start, end].
func (s *CensusService) Report(ctx context.Context, start, end calendar.Day) (*Report, error) {
	ctx = ensureContext(ctx)

	if start > end {
		return nil, validationError("Start date must not be after end date")
	}

	var records []models.Census
	if err := s.db.WithContext(ctx).
		Preload("Creator").
		Where("day BETWEEN ? AND ?", start.String(), end.String()).
		Order("day ASC").
		Order("service ASC").
		Order("created_at ASC").
		Find(&records).Error; err != nil {
		return nil, internalError(fmt.Errorf("census service: report %s..%s: %w", start, end, err))
	}

	return buildReport(start, end, records), nil
}

// DashboardStats computes the today, week and month windows anchored at the current time.
func (s *CensusService) DashboardStats(ctx context.Context) (*Dashboard, error) {
	ctx = ensureContext(ctx)

	now := s.now()
	today := s.cal.DayOf(now)
	key, cacheable := s.dashboardKey(ctx, today)
	if cacheable {
		if cached := s.cachedDashboard(ctx, key); cached != nil {
			return cached, nil
		}
	}

	var (
		dashboard Dashboard
		err       error
	)
	if dashboard.Today, err = s.window(ctx, calendar.Range{Start: today, End: today}); err != nil {
		return nil, err
	}
	if dashboard.Week, err = s.window(ctx, s.cal.Week(now)); err != nil {
		return nil, err
	}
	if dashboard.Month, err = s.window(ctx, s.cal.Month(now)); err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Model(&models.Census{}).Count(&dashboard.TotalRecords).Error; err != nil {
		return nil, internalError(fmt.Errorf("census service: count records: %w", err))
	}
	if cacheable {
		s.storeDashboard(ctx, key, &dashboard)
	}
	return &dashboard, nil
}

// dashboardKey names the snapshot for today under the current generation. The generation
// is read before any window is computed.
func (s *CensusService) dashboardKey(ctx context.Context, today calendar.Day) (string, bool) {
	if s.cache == nil {
		return "", false
	}
	generation, found, err := s.cache.Get(ctx, dashboardGenerationKey)
	if err != nil {
		metrics.DashboardCache.WithLabelValues("error").Inc()
		s.log.Warn("read dashboard generation", zap.Error(err))
		return "", false
	}
	if !found {
		generation = []byte("0")
	}
	return dashboardCachePrefix + today.String() + ":" + string(generation), true
}

// Cache failures never fail a request; the dashboard is recomputed from the database instead.
func (s *CensusService) cachedDashboard(ctx context.Context, key string) *Dashboard {
	var dashboard Dashboard
	found, err := cache.GetJSON(ctx, s.cache, key, &dashboard)
	switch {
	case err != nil:
		metrics.DashboardCache.WithLabelValues("error").Inc()
		s.log.Warn("read cached dashboard", zap.Error(err))
		return nil
	case !found:
		metrics.DashboardCache.WithLabelValues("miss").Inc()
		return nil
	}
	metrics.DashboardCache.WithLabelValues("hit").Inc()
	return &dashboard
}

func (s *CensusService) storeDashboard(ctx context.Context, key string, dashboard *Dashboard) {
	if err := cache.SetJSON(ctx, s.cache, key, dashboard, s.cacheTTL); err != nil {
		s.log.Warn("cache dashboard", zap.Error(err))
	}
}

// invalidateDashboard starts a new generation. Snapshots of older generations are never
// read again and expire with their ttl.
func (s *CensusService) invalidateDashboard(ctx context.Context) {
	if s.cache == nil {
		return
	}
	generation, err := uuid.NewV7()
	if err != nil {
		s.log.Warn("new dashboard generation", zap.Error(err))
		return
	}
	if err := s.cache.Set(ctx, dashboardGenerationKey, []byte(generation.String()), 0); err != nil {
		s.log.Warn("replace dashboard generation", zap.Error(err))
	}
}

func (s *CensusService) window(ctx context.Context, r calendar.Range) (WindowStats, error) {
	var stats WindowStats
	err := s.db.WithContext(ctx).
		Model(&models.Census{}).
		Select("COALESCE(SUM(total_kids), 0) AS total, COUNT(*) AS records").
		Where("day BETWEEN ? AND ?", r.Start.String(), r.End.String()).
		Scan(&stats).Error
	if err != nil {
		return WindowStats{}, internalError(fmt.Errorf("census service: window %s..%s: %w", r.Start, r.End, err))
	}
	return stats, nil
}

func (s *CensusService) fillServiceDetails(ctx context.Context, record *models.Census) error {
	if s.settings == nil || record.ServiceID == "" {
		return nil
	}
	if record.ServiceName != "" && record.ServiceTime != "" {
		return nil
	}

	slot, err := s.settings.Service(ctx, record.ServiceID)
	if err != nil {
		return err
	}
	if slot == nil {
		return nil
	}
	record.ServiceName = firstNonEmpty(record.ServiceName, slot.Name)
	record.ServiceTime = firstNonEmpty(record.ServiceTime, slot.Time)
	return nil
}

func buildReport(start, end calendar.Day, records []models.Census) *Report {
	report := &Report{
		StartDate: start.String(),
		EndDate:   end.String(),
		Services:  []string{},
		Dates:     []string{},
		Data:      records,
		Summary: ReportSummary{
			ByService: []ServiceRollup{},
			ByDate:    []DateRollup{},
		},
	}
	if report.Data == nil {
		report.Data = []models.Census{}
	}

	serviceIndex := map[string]int{}
	dateIndex := map[string]int{}

	for i := range records {
		record := &records[i]
		kids := record.BracketTotal()

		report.TotalKids += kids
		report.TotalRecords++

		idx, seen := serviceIndex[record.Service]
		if !seen {
			idx = len(report.Summary.ByService)
			serviceIndex[record.Service] = idx
			report.Services = append(report.Services, record.Service)
			report.Summary.ByService = append(report.Summary.ByService, ServiceRollup{Service: record.Service})
		}
		report.Summary.ByService[idx].Total += kids
		report.Summary.ByService[idx].Count++

		idx, seen = dateIndex[record.Day]
		if !seen {
			idx = len(report.Summary.ByDate)
			dateIndex[record.Day] = idx
			report.Dates = append(report.Dates, record.Day)
			report.Summary.ByDate = append(report.Summary.ByDate, DateRollup{Date: record.Day})
		}
		report.Summary.ByDate[idx].Total += kids
		report.Summary.ByDate[idx].Count++
	}
	return report
}

func cleanBrackets(brackets []models.AgeBracket) ([]models.AgeBracket, error) {
	if len(brackets) == 0 {
		return nil, validationError("At least one age bracket is required")
	}
	out := make([]models.AgeBracket, 0, len(brackets))
	for _, bracket := range brackets {
		bracket.Range = strings.TrimSpace(bracket.Range)
		if bracket.Range == "" {
			return nil, validationError("Each age bracket needs a range")
		}
		if bracket.Count < 0 {
			return nil, validationError("Age bracket counts cannot be negative")
		}
		out = append(out, bracket)
	}
	return out, nil
}

func nonNegative(field string, value *float64) (float64, error) {
	if value == nil {
		return 0, nil
	}
	if *value < 0 {
		return 0, validationError(field + " cannot be negative")
	}
	return *value, nil
}
