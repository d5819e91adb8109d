package webservice

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/mkock/autolookup/registry"
)

type status struct {
	Status   string          `json:"status"`
	Uptime   string          `json:"uptime"`
	Registry registry.Status `json:"registry"`
}

// handleStatus returns a small JSON struct with information such as service
// uptime and the current quota/throttle state of the registry client.
func (srv *WebServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	uptime := time.Since(srv.startTime).Truncate(time.Second)
	s := status{"running", uptime.String(), srv.client.Status()}
	bytes, err := json.Marshal(s)
	if err != nil {
		srv.JSONError(w, APIError{HTTPCode: http.StatusInternalServerError, Code: errJSONEncoding, Message: err.Error()})
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(bytes)
}
