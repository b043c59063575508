package api

import (
	"net/http"
	"time"
)

type getStatusResponse struct {
	Monitoring    bool       `json:"monitoring"`
	State         string     `json:"state"`
	LastOutcome   string     `json:"lastOutcome"`
	LastCheck     *time.Time `json:"lastCheck,omitempty"`
	InSetup       bool       `json:"inSetup"`
	ActiveClient  string     `json:"activeClient,omitempty"`
	PendingClient string     `json:"pendingClient,omitempty"`
	Ssid          string     `json:"ssid,omitempty"`
}

type postStopSetupResponse struct {
	InSetup bool `json:"inSetup"`
}

func (a *Api) handleGetStatus() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := a.gateway.Status(r.Context())

		res := &getStatusResponse{
			Monitoring:    status.Monitoring,
			State:         status.State.String(),
			LastOutcome:   status.LastOutcome,
			InSetup:       status.InSetup,
			ActiveClient:  status.ActiveClient,
			PendingClient: status.PendingClient,
			Ssid:          status.Ssid,
		}

		if !status.LastCheck.IsZero() {
			res.LastCheck = &status.LastCheck
		}

		a.jsonResponse(w, res, http.StatusOK)
	}
}

func (a *Api) handlePostStopSetup() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a.gateway.StopSetup()

		a.log.Infof("Setup stopped through api")

		a.jsonResponse(w, &postStopSetupResponse{
			InSetup: a.gateway.Status(r.Context()).InSetup,
		}, http.StatusOK)
	}
}
