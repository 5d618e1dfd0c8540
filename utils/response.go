package utils

import (
	"encoding/json"
	"log"
	"net/http"

	"parkhive-bend/apperr"
)

// Response represents a generic response
type Response struct {
	Status  string      `json:"status"`
	Code    int         `json:"code"`
	Data    interface{} `json:"data"`
	Message string      `json:"message"`
	Error   string      `json:"error"`
}

// RespondWithError sends an error response
func RespondWithError(w http.ResponseWriter, code int, msg string) {
	RespondWithJSON(w, code, Response{
		Status: "error",
		Code:   code,
		Error:  msg,
	})
}

// RespondWithOk response
func RespondWithOk(w http.ResponseWriter, msg string) {
	RespondWithJSON(w, http.StatusOK, Response{
		Status:  "success",
		Code:    http.StatusOK,
		Message: msg,
	})
}

// RespondWithJSON ... This
func RespondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, _ := json.Marshal(payload)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

// RespondWithAppError maps an engine error onto its HTTP status. Transient
// payment failures surface as pending-retry so callers know to try again.
func RespondWithAppError(w http.ResponseWriter, err error) {
	kind, ok := apperr.KindOf(err)
	if !ok {
		log.Printf("unclassified error: %v", err)
		RespondWithError(w, http.StatusInternalServerError, "An Error occurred while processing request")
		return
	}

	switch kind {
	case apperr.Validation:
		RespondWithError(w, http.StatusBadRequest, err.Error())
	case apperr.Conflict:
		RespondWithError(w, http.StatusConflict, "Spot no longer available")
	case apperr.InvalidState:
		RespondWithError(w, http.StatusConflict, err.Error())
	case apperr.NotFound:
		RespondWithError(w, http.StatusNotFound, "Record not found")
	case apperr.Forbidden:
		RespondWithError(w, http.StatusForbidden, "Operation not available to user")
	case apperr.PaymentProcessor:
		RespondWithJSON(w, http.StatusBadGateway, Response{
			Status:  "error",
			Code:    http.StatusBadGateway,
			Message: "pending retry",
			Error:   "Payment processor unavailable, operation left pending; please retry",
		})
	default:
		log.Printf("invariant violation: %v", err)
		RespondWithError(w, http.StatusInternalServerError, "An Error occurred while processing request")
	}
}
