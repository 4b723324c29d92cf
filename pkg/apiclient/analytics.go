package apiclient

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/medq/medq/pkg/models"
)

type AnalyticsService struct {
	c *Client
}

func (s *AnalyticsService) Dashboard(ctx context.Context) (*models.DashboardStats, error) {
	var out models.DashboardStats
	if err := s.c.do(ctx, request{method: http.MethodGet, path: "/api/analytics/dashboard"}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *AnalyticsService) SymptomTrends(ctx context.Context, days int) (models.SymptomTrends, error) {
	q := url.Values{}
	if days > 0 {
		q.Set("days", strconv.Itoa(days))
	}
	var out models.SymptomTrends
	if err := s.c.do(ctx, request{method: http.MethodGet, path: "/api/analytics/symptoms/trends", query: q}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ExportCSV writes the patient export to w. The dates are passed through
// verbatim (YYYY-MM-DD); empty values are omitted.
func (s *AnalyticsService) ExportCSV(ctx context.Context, startDate, endDate string, w io.Writer) (int64, error) {
	q := url.Values{}
	if startDate != "" {
		q.Set("start_date", startDate)
	}
	if endDate != "" {
		q.Set("end_date", endDate)
	}
	return s.c.download(ctx, request{method: http.MethodGet, path: "/api/analytics/export", query: q}, w)
}

// Watch follows the live intake stream and calls fn for each new patient
// until ctx is cancelled or the server closes the stream.
func (s *AnalyticsService) Watch(ctx context.Context, fn func(models.IntakeEvent)) error {
	res, err := s.c.send(ctx, request{method: http.MethodGet, path: "/api/analytics/stream"})
	if err != nil {
		return err
	}
	defer res.Body.Close()

	sc := bufio.NewScanner(res.Body)
	for sc.Scan() {
		line := sc.Text()
		data, ok := strings.CutPrefix(line, "data: ")
		if !ok {
			continue
		}
		var evt models.IntakeEvent
		if err := json.Unmarshal([]byte(data), &evt); err != nil {
			s.c.logger.Warn().Err(err).Msg("skip malformed intake event")
			continue
		}
		fn(evt)
	}
	if err := sc.Err(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("apiclient: read intake stream: %w", err)
	}
	return nil
}
