package api

import (
	"encoding/json"
	"math"
	"net/http"
	"strconv"

	"github.com/mhpenta/imagestudio"
)

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, info imagestudio.ErrorInfo) {
	writeJSON(w, status, info)
}

func retryAfterSeconds(err *imagestudio.RateLimitError) string {
	return strconv.Itoa(int(math.Ceil(err.RetryAfter.Seconds())))
}
