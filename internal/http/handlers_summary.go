package http

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"spendlog/internal/core"
)

// The four summary endpoints share one shape of work: load the records,
// aggregate for the requested civil month, marshal. Responses are cached
// by endpoint+generation+month, and concurrent identical requests
// collapse into one computation via singleflight.

func (s *Server) handleSummaryCategories(w http.ResponseWriter, r *http.Request) {
	s.serveSummary(w, r, "categories", func(records []core.Record, ref time.Time) any {
		totals := core.CategoryTotals(records, ref)
		items := make([]map[string]any, 0, len(totals))
		for _, ct := range totals {
			items = append(items, map[string]any{
				"category": ct.Category,
				"total":    ct.Total,
			})
		}
		return map[string]any{"categories": items}
	})
}

func (s *Server) handleSummaryDaily(w http.ResponseWriter, r *http.Request) {
	s.serveSummary(w, r, "daily", func(records []core.Record, ref time.Time) any {
		totals := core.DailyTotals(records, ref, true)
		return map[string]any{"daily": dailyItems(totals)}
	})
}

func (s *Server) handleSummarySeries(w http.ResponseWriter, r *http.Request) {
	s.serveSummary(w, r, "series", func(records []core.Record, ref time.Time) any {
		series := core.CategoryDailySeries(records, ref)
		items := make([]map[string]any, 0, len(series))
		for _, cs := range series {
			items = append(items, map[string]any{
				"category": cs.Category,
				"daily":    dailyItems(cs.Daily),
			})
		}
		return map[string]any{"series": items}
	})
}

func (s *Server) handleSummaryCounts(w http.ResponseWriter, r *http.Request) {
	s.serveSummary(w, r, "counts", func(records []core.Record, ref time.Time) any {
		counts := core.DailyEntryCounts(records, ref)
		return map[string]any{
			"counts":      counts,
			"daysInMonth": core.DaysInMonth(ref),
		}
	})
}

func dailyItems(totals []core.DailyTotal) []map[string]any {
	items := make([]map[string]any, 0, len(totals))
	for _, dt := range totals {
		items = append(items, map[string]any{
			"day":   dt.Day.Format("2006-01-02"),
			"total": dt.Total,
		})
	}
	return items
}

func (s *Server) serveSummary(w http.ResponseWriter, r *http.Request, kind string, aggregate func([]core.Record, time.Time) any) {
	year, month := parseYearMonth(r)
	key := fmt.Sprintf("%s|g%d|%04d-%02d", kind, s.generation.Load(), year, month)

	if data, found := s.summaryCache.Get(key); found {
		slog.DebugContext(r.Context(), "Summary cache hit", "kind", kind, "year", year, "month", month)
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)
		return
	}

	payload, err, _ := s.flight.Do(key, func() (any, error) {
		cctx, cancel := context.WithTimeout(r.Context(), summaryTimeout)
		defer cancel()

		records, err := s.store.ListAll(cctx)
		if err != nil {
			return nil, fmt.Errorf("list records for summary: %w", err)
		}

		ref := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, core.Zone())
		data, err := json.Marshal(aggregate(records, ref))
		if err != nil {
			return nil, fmt.Errorf("marshal summary: %w", err)
		}

		s.summaryCache.Set(key, data)
		return data, nil
	})
	if err != nil {
		slog.ErrorContext(r.Context(), "Summary computation failed",
			"kind", kind, "year", year, "month", month, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to compute summary")
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(payload.([]byte))
}
