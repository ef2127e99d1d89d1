package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/TheophilusNdukwe/Energy-Data-Pipeline/internal/contracts"
)

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{
		"error": message,
	})
}

// statusFor maps engine errors onto HTTP statuses
func statusFor(err error) int {
	switch {
	case errors.Is(err, contracts.ErrIssueNotFound):
		return http.StatusNotFound
	case errors.Is(err, contracts.ErrInvalidStateTransition):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// queryInt parses an optional non-negative integer query parameter
func queryInt(r *http.Request, key string, def int) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, errors.New("invalid '" + key + "' (expected a non-negative integer)")
	}
	return v, nil
}

// querySince accepts RFC3339 'since' or a 'hours' lookback; defaults to the last def
func querySince(r *http.Request, now time.Time, def time.Duration) (time.Time, error) {
	q := r.URL.Query()
	if raw := q.Get("since"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return time.Time{}, errors.New("invalid 'since' (expected RFC3339)")
		}
		return t, nil
	}
	if raw := q.Get("hours"); raw != "" {
		h, err := strconv.Atoi(raw)
		if err != nil || h <= 0 {
			return time.Time{}, errors.New("invalid 'hours' (expected a positive integer)")
		}
		return now.Add(-time.Duration(h) * time.Hour), nil
	}
	return now.Add(-def), nil
}
