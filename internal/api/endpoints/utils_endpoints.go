package endpoints

import (
	"net/http"
)

type UtilsEndpoints interface {
	HelloWorld(http.ResponseWriter, *http.Request) error
	Health(http.ResponseWriter, *http.Request) error
}

type utilsEndpoints struct {
	service string
}

// NewUtilsEndpoints answers liveness probes for the named binary.
func NewUtilsEndpoints(service string) UtilsEndpoints {
	return &utilsEndpoints{service: service}
}

func (h *utilsEndpoints) HelloWorld(w http.ResponseWriter, r *http.Request) error {
	return WriteJSON(w, http.StatusOK, map[string]string{"message": "Hello world"})
}

func (h *utilsEndpoints) Health(w http.ResponseWriter, r *http.Request) error {
	return WriteJSON(w, http.StatusOK, map[string]string{"status": "ok", "service": h.service})
}
