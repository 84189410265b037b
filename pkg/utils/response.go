package utils

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"
)

// ErrorBody 统一的错误响应结构
type ErrorBody struct {
	Message        string   `json:"message"`
	Error          string   `json:"error,omitempty"`
	ValidScenarios []string `json:"validScenarios,omitempty"`
}

// RespondJSON 发送JSON响应
func RespondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}

// RespondError 发送错误响应
func RespondError(w http.ResponseWriter, status int, message string) {
	RespondJSON(w, status, ErrorBody{Message: message})
}

// RespondServerError 发送 500 响应，仅在非生产环境附带错误细节
func RespondServerError(w http.ResponseWriter, message string, err error, exposeDetail bool) {
	body := ErrorBody{Message: message}
	if exposeDetail && err != nil {
		body.Error = err.Error()
	}
	RespondJSON(w, http.StatusInternalServerError, body)
}
