package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// FindMail handles mail lookup requests. email_address_filter is a
// required substring match on the recipient address; subject_filter is an
// optional case-insensitive substring match on the subject. An empty
// result is a 404, not an empty body.
func (h *Handlers) FindMail(w http.ResponseWriter, r *http.Request) {
	addrFilter := r.URL.Query().Get("email_address_filter")
	if addrFilter == "" {
		http.Error(w, "missing email_address_filter query parameter", http.StatusBadRequest)
		return
	}
	subjectFilter := r.URL.Query().Get("subject_filter")
	h.logger.Info("searching mail", "address_filter", addrFilter, "subject_filter", subjectFilter)

	results := h.db.Find(addrFilter, subjectFilter)
	if len(results) == 0 {
		http.Error(w,
			fmt.Sprintf("No mails found for query: %s with filter %s", addrFilter, subjectFilter),
			http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(results); err != nil {
		h.logger.Error("failed to encode find_mail response", "error", err)
	}
}
