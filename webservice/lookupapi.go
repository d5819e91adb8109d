package webservice

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/mkock/autolookup/registry"
	"github.com/mkock/autolookup/vehicle"
)

// handleLookup allows vehicle lookups based on registration number or VIN.
// Exactly one of the two query parameters must be provided; the web service
// never guesses which kind of key it was handed.
func (srv *WebServer) handleLookup(w http.ResponseWriter, r *http.Request) {
	regNr := r.URL.Query().Get("regnr")
	vin := r.URL.Query().Get("vin")
	if (regNr == "") == (vin == "") {
		srv.JSONError(w, APIError{
			HTTPCode: http.StatusBadRequest,
			Code:     errValidation,
			Message:  "Provide exactly one of the query parameters 'regnr' and 'vin'",
		})
		return
	}
	var (
		inf vehicle.Info
		err error
	)
	start := time.Now()
	if regNr != "" {
		inf, err = srv.client.LookupRegNr(r.Context(), regNr)
	} else {
		inf, err = srv.client.LookupVIN(r.Context(), vin)
	}
	srv.metrics.observeLookup(start, err)
	if err != nil {
		srv.logger.Warn("lookup failed", "err", err, "requestID", reqID(r.Context()))
		srv.JSONError(w, lookupError(err))
		return
	}
	bytes, err := json.Marshal(vehicleToAPIType(inf))
	if err != nil {
		srv.JSONError(w, APIError{HTTPCode: http.StatusInternalServerError, Code: errJSONEncoding, Message: err.Error()})
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(bytes)
}

// lookupError maps a registry failure onto the HTTP error we serve. Quota and
// throttle failures surface as 429 so callers can apply their own backoff;
// upstream trouble of any kind is a 502 since this service is a gateway to
// the registry.
func lookupError(err error) APIError {
	apiErr, ok := registry.AsAPIError(err)
	if !ok {
		return APIError{HTTPCode: http.StatusInternalServerError, Code: errLookup, Message: err.Error()}
	}
	code := http.StatusBadGateway
	switch apiErr.Kind {
	case registry.BadRequest:
		code = http.StatusBadRequest
	case registry.QuotaExceeded, registry.RateLimited:
		code = http.StatusTooManyRequests
	}
	return APIError{
		HTTPCode: code,
		Code:     errLookup,
		Kind:     apiErr.Kind.String(),
		Message:  apiErr.Message,
		Details:  apiErr.Details,
	}
}
