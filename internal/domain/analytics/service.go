package analytics

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/medq/medq/pkg/models"
)

const (
	// AvgConsultationMinutes is reported until consultations are timed.
	AvgConsultationMinutes = 25.5

	dashboardDays   = 7
	topSymptomLimit = 5
	exportSymptoms  = 100
	dayLayout       = "2006-01-02"
)

var ErrInvalidRange = errors.New("invalid range")

// TrackedSymptoms are the keywords counted by the dashboard and trends.
var TrackedSymptoms = []string{"headache", "fever", "cough", "pain", "nausea", "fatigue", "dizziness"}

type Service struct {
	repo Repository
	now  func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

func startOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// Dashboard gathers the headline statistics. The independent queries run
// concurrently.
func (s *Service) Dashboard(ctx context.Context) (*models.DashboardStats, error) {
	today := startOfDay(s.now())
	weekStart := today.AddDate(0, 0, -(dashboardDays - 1))

	var (
		total, todayCount int
		daily             map[string]int
		records           []SymptomRecord
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		total, err = s.repo.CountPatients(gctx, time.Time{}, time.Time{})
		return err
	})
	g.Go(func() (err error) {
		todayCount, err = s.repo.CountPatients(gctx, today, today.AddDate(0, 0, 1))
		return err
	})
	g.Go(func() (err error) {
		daily, err = s.repo.DailyCounts(gctx, weekStart)
		return err
	})
	g.Go(func() (err error) {
		records, err = s.repo.Symptoms(gctx, time.Time{})
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("dashboard: %w", err)
	}

	byDate := make([]models.DateCount, 0, dashboardDays)
	for d := weekStart; !d.After(today); d = d.AddDate(0, 0, 1) {
		key := d.Format(dayLayout)
		byDate = append(byDate, models.DateCount{Date: key, Count: daily[key]})
	}

	return &models.DashboardStats{
		TotalPatients:       total,
		TodayPatients:       todayCount,
		AvgConsultationTime: AvgConsultationMinutes,
		TopSymptoms:         topSymptoms(records, topSymptomLimit),
		PatientsByDate:      byDate,
	}, nil
}

// matchSymptoms returns the tracked keywords present in text.
func matchSymptoms(text string) []string {
	lower := strings.ToLower(text)
	var out []string
	for _, kw := range TrackedSymptoms {
		if strings.Contains(lower, kw) {
			out = append(out, kw)
		}
	}
	return out
}

// topSymptoms counts submissions per keyword, highest first. Ties keep the
// TrackedSymptoms order.
func topSymptoms(records []SymptomRecord, limit int) []models.SymptomCount {
	counts := make(map[string]int)
	for _, r := range records {
		for _, kw := range matchSymptoms(r.Symptoms) {
			counts[kw]++
		}
	}
	out := make([]models.SymptomCount, 0, len(counts))
	for _, kw := range TrackedSymptoms {
		if n := counts[kw]; n > 0 {
			out = append(out, models.SymptomCount{Symptom: kw, Count: n})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

// SymptomTrends counts tracked keywords per day over the last days days.
func (s *Service) SymptomTrends(ctx context.Context, days int) (models.SymptomTrends, error) {
	if days < 1 || days > 365 {
		return nil, fmt.Errorf("%w: days must be between 1 and 365", ErrInvalidRange)
	}
	records, err := s.repo.Symptoms(ctx, s.now().UTC().AddDate(0, 0, -days))
	if err != nil {
		return nil, fmt.Errorf("symptom trends: %w", err)
	}
	trends := make(models.SymptomTrends)
	for _, r := range records {
		if strings.TrimSpace(r.Symptoms) == "" {
			continue
		}
		key := r.CreatedAt.UTC().Format(dayLayout)
		day, ok := trends[key]
		if !ok {
			day = make(map[string]int)
			trends[key] = day
		}
		for _, kw := range matchSymptoms(r.Symptoms) {
			day[kw]++
		}
	}
	return trends, nil
}

// ParseRange reads optional YYYY-MM-DD bounds. The end date is inclusive.
func ParseRange(start, end string) (from, to time.Time, err error) {
	if start != "" {
		if from, err = time.Parse(dayLayout, start); err != nil {
			return from, to, fmt.Errorf("%w: start_date must be YYYY-MM-DD", ErrInvalidRange)
		}
	}
	if end != "" {
		if to, err = time.Parse(dayLayout, end); err != nil {
			return from, to, fmt.Errorf("%w: end_date must be YYYY-MM-DD", ErrInvalidRange)
		}
		to = to.AddDate(0, 0, 1)
	}
	if !from.IsZero() && !to.IsZero() && !from.Before(to) {
		return from, to, fmt.Errorf("%w: start_date is after end_date", ErrInvalidRange)
	}
	return from, to, nil
}

var csvHeader = []string{"ID", "Name", "Age", "Gender", "Symptoms", "Duration", "Medications", "Allergies", "Created At"}

// ExportCSV writes every submission in [from, to) as CSV.
func (s *Service) ExportCSV(ctx context.Context, w io.Writer, from, to time.Time) (int, error) {
	patients, err := s.repo.Patients(ctx, from, to)
	if err != nil {
		return 0, fmt.Errorf("export: %w", err)
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return 0, err
	}
	for _, p := range patients {
		if err := cw.Write([]string{
			p.ID.String(),
			p.Name,
			strconv.Itoa(p.Age),
			string(p.Gender),
			truncateSymptoms(p.Symptoms),
			p.Duration,
			orNone(p.Medications),
			orNone(p.Allergies),
			p.CreatedAt.UTC().Format("2006-01-02 15:04:05"),
		}); err != nil {
			return 0, err
		}
	}
	cw.Flush()
	return len(patients), cw.Error()
}

// ExportFilename is the attachment name for an export made at t.
func ExportFilename(t time.Time) string {
	return "medq_analytics_" + t.Format("20060102") + ".csv"
}

func truncateSymptoms(s string) string {
	r := []rune(s)
	if len(r) <= exportSymptoms {
		return s
	}
	return string(r[:exportSymptoms]) + "..."
}

func orNone(s *string) string {
	if s == nil || *s == "" {
		return "None"
	}
	return *s
}
