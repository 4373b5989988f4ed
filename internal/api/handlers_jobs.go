package api

import (
	"fmt"
	"net/http"
)

func (h *handler) runDailyReminder(w http.ResponseWriter, r *http.Request) {
	sent, err := h.jobs.DailyReminders(r.Context(), h.now())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, JobRunResponse{Message: fmt.Sprintf("%d reminders sent", sent), Sent: sent})
}

func (h *handler) runMonthlyReport(w http.ResponseWriter, r *http.Request) {
	sent, err := h.jobs.MonthlyReports(r.Context(), h.now())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, JobRunResponse{Message: fmt.Sprintf("Monthly reports sent to %d doctors", sent), Sent: sent})
}
