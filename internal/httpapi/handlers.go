package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/schnitzel/netidentity"
)

const maxBodyBytes = 64 << 10

func (s *Server) input(r *http.Request) netidentity.RequestInput {
	var opts []netidentity.InputOption
	if s.principal != nil {
		opts = append(opts, netidentity.WithPrincipal(s.principal(r)))
	}
	return netidentity.InputFromRequest(r, opts...)
}

func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	in := s.input(r)
	id := s.resolver.Resolve(in)
	if s.reportAll {
		s.reporter.Report(r.Context(), s.resolver.DebugReport(in, id))
	}

	writeJSON(w, http.StatusOK, id.Record().Map())
}

func (s *Server) handleWhoami(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.whoami(r))
}

// whoami resolves address and username only; it never does a reverse lookup.
func (s *Server) whoami(r *http.Request) map[string]string {
	in := s.input(r)
	addr, _ := s.resolver.ExtractIP(in)
	username, method := s.resolver.ExtractUsername(in)

	var id netidentity.Identity
	if addr.IsValid() {
		id.IP = netidentity.Some(addr)
	}
	if username != "" {
		id.Username = netidentity.Some(username)
	}
	id.AuthMethod = method
	record := id.Record()

	return map[string]string{
		"ip":                   record.IPAddress,
		"ipAddress":            record.IPAddress,
		"username":             record.Username,
		"authenticationMethod": record.AuthMethod.String(),
	}
}

// handleUserInfo wraps the whoami record with the time it was produced.
func (s *Server) handleUserInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"user":      s.whoami(r),
		"timestamp": s.now().UTC().Format(time.RFC3339),
	})
}

// handleNetworkInfo serves the full resolution under the legacy key names.
func (s *Server) handleNetworkInfo(w http.ResponseWriter, r *http.Request) {
	in := s.input(r)
	id := s.resolver.Resolve(in)
	if s.reportAll {
		s.reporter.Report(r.Context(), s.resolver.DebugReport(in, id))
	}
	record := id.Record()

	writeJSON(w, http.StatusOK, map[string]string{
		"clientIp":       record.IPAddress,
		"clientHostname": record.Hostname,
		"clientUsername": record.Username,
		"serverInfo":     s.serverName(),
		"userAgent":      record.UserAgent,
	})
}

func (s *Server) handleTest(w http.ResponseWriter, r *http.Request) {
	in := s.input(r)
	id := s.resolver.Resolve(in)
	s.reporter.Report(r.Context(), s.resolver.DebugReport(in, id))

	info := id.Record().Map()
	info["serverInfo"] = s.serverName()

	writeJSON(w, http.StatusOK, info)
}

func (s *Server) handleMerge(w http.ResponseWriter, r *http.Request) {
	var payload selfReportRequest

	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&payload); err != nil {
		msg := "malformed JSON body"
		if errors.Is(err, io.EOF) {
			msg = "request body is empty"
		}
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	if err := s.validate.Struct(payload); err != nil {
		writeError(w, http.StatusBadRequest, validationMessage(err))
		return
	}

	in := s.input(r)
	report := payload.selfReport()

	var merged netidentity.MergedIdentity
	if s.reportAll {
		id := s.resolver.Resolve(in)
		merged = s.resolver.MergeIdentity(id, report)
		s.reporter.Report(r.Context(), s.resolver.DebugReport(in, id).WithMerged(merged))
	} else {
		merged = s.resolver.Merge(in, report)
	}

	writeJSON(w, http.StatusOK, merged.Map())
}

func (s *Server) serverName() string {
	name, err := s.hostname()
	if err != nil || name == "" {
		return netidentity.UnknownHost
	}
	return name
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
