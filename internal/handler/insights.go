package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/owenwright/cookies/internal/auth"
	"github.com/owenwright/cookies/internal/model"
	"github.com/owenwright/cookies/internal/store"
)

type InsightsHandler struct {
	insightsStore *store.InsightsStore
	usageStore    *store.UsageStore
}

func NewInsightsHandler(is *store.InsightsStore, us *store.UsageStore) *InsightsHandler {
	return &InsightsHandler{insightsStore: is, usageStore: us}
}

// Daily returns per-day redemption counts over the requested range,
// defaulting to the last 30 days.
func (h *InsightsHandler) Daily(w http.ResponseWriter, r *http.Request) {
	now := time.Now().UTC()
	from := now.AddDate(0, 0, -30)
	to := now

	if v := r.URL.Query().Get("from"); v != "" {
		t, err := parseDateParam(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "from must be RFC3339 or YYYY-MM-DD format")
			return
		}
		from = t
	}
	if v := r.URL.Query().Get("to"); v != "" {
		t, err := parseDateParam(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "to must be RFC3339 or YYYY-MM-DD format")
			return
		}
		to = t
	}

	days, err := h.insightsStore.DailyRedemptions(auth.AccountID(r.Context()), from, to)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	if days == nil {
		days = []model.RedemptionDay{}
	}
	writeJSON(w, http.StatusOK, days)
}

// Totals returns the account's lifetime redemption totals.
func (h *InsightsHandler) Totals(w http.ResponseWriter, r *http.Request) {
	totals, err := h.insightsStore.Totals(auth.AccountID(r.Context()))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, totals)
}

// Sessions returns recent usage sessions, newest first.
func (h *InsightsHandler) Sessions(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 500 {
			writeError(w, http.StatusBadRequest, "limit must be between 1 and 500")
			return
		}
		limit = n
	}

	sessions, err := h.usageStore.ListSessions(auth.AccountID(r.Context()), limit)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	if sessions == nil {
		sessions = []model.UsageSession{}
	}
	writeJSON(w, http.StatusOK, sessions)
}

func parseDateParam(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", s)
}
