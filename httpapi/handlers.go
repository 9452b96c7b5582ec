package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/dlr-eoc/min-creds/broker"
)

type serviceOverview struct {
	CredentialsAvailable int `json:"credentials_available"`
	CredentialsInUse     int `json:"credentials_in_use"`
	ClientsWaiting       int `json:"clients_waiting"`
	Total                int `json:"total"`
}

type overviewResponse struct {
	Services map[string]serviceOverview `json:"services"`
}

func (s *Server) handleOverview(w http.ResponseWriter, r *http.Request) {
	resp := overviewResponse{Services: make(map[string]serviceOverview)}
	for _, name := range s.registry.Services() {
		b, ok := s.registry.Broker(name)
		if !ok {
			continue
		}
		ov := b.Overview()
		resp.Services[name] = serviceOverview{
			CredentialsAvailable: ov.CredentialsAvailable,
			CredentialsInUse:     ov.CredentialsInUse,
			ClientsWaiting:       ov.ClientsWaiting,
			Total:                ov.CredentialsAvailable + ov.CredentialsInUse,
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

type getLeaseRequest struct {
	Service string `json:"service"`
}

type getLeaseResponse struct {
	Lease     string `json:"lease"`
	User      string `json:"user"`
	Password  string `json:"password"`
	ExpiresOn string `json:"expires_on"`
}

type errorResponse struct {
	Message string `json:"message"`
}

// slowObtainWarnThreshold is the point at which a client's wait for a
// lease gets logged as a warning.
const slowObtainWarnThreshold = 10 * time.Second

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	var req getLeaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Message: "invalid request body"})
		return
	}

	client := clientName(r)

	b, ok := s.registry.Broker(req.Service)
	if !ok {
		log.WithField("service", req.Service).WithField("client", client).
			Warn("request for unknown service")
		writeJSON(w, http.StatusNotFound, errorResponse{
			Message: fmt.Sprintf("unknown service %q", req.Service),
		})
		return
	}

	waitStart := time.Now().UTC()
	lease, wait, abandon := b.Obtain(waitStart, client)
	if wait != nil {
		select {
		case lease = <-wait:
		case <-r.Context().Done():
			abandon()
			return
		}
	}

	if waited := time.Since(waitStart); waited > slowObtainWarnThreshold {
		log.WithField("client", lease.ClientName).
			WithField("service", req.Service).
			WithField("seconds", waited.Seconds()).
			Warn("obtain waited longer than 10 seconds")
	}

	writeJSON(w, http.StatusOK, getLeaseResponse{
		Lease:     string(lease.ID),
		User:      lease.Credential.User,
		Password:  lease.Credential.Password,
		ExpiresOn: lease.Expiration.ExpiresOn.Format(time.RFC3339),
	})
}

type releaseLeaseRequest struct {
	Lease string `json:"lease"`
}

func (s *Server) handleRelease(w http.ResponseWriter, r *http.Request) {
	var req releaseLeaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Message: "invalid request body"})
		return
	}

	id := broker.LeaseId(req.Lease)
	for _, name := range s.registry.Services() {
		b, ok := s.registry.Broker(name)
		if !ok {
			continue
		}
		info, ok := b.Release(id)
		if !ok {
			continue
		}
		log.WithField("service", name).
			WithField("client", info.ClientName).
			WithField("duration_ms", float64(info.Duration.Microseconds())/1000.0).
			Info("credential released")
		break
	}

	writeJSON(w, http.StatusOK, struct{}{})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
