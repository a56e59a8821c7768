package controllers

import (
	"encoding/json"
	"net/http"
)

type HealthController struct {
	storeBackend string
}

func NewHealthController(storeBackend string) *HealthController {
	return &HealthController{storeBackend: storeBackend}
}

// HealthCheck reports liveness plus which store backend the process
// settled on at startup (sqlite, or the file store fallback).
func (h *HealthController) HealthCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{
		"status": "ok",
		"store":  h.storeBackend,
	})
}
