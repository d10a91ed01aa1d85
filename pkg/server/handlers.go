package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"mercator-hq/mixpolicy/pkg/policy/manager"
	"mercator-hq/mixpolicy/pkg/policy/mix"
	"mercator-hq/mixpolicy/pkg/policy/snapshot"
	"mercator-hq/mixpolicy/pkg/telemetry/logging"
)

func (s *Server) handleOpenSession(w http.ResponseWriter, r *http.Request) {
	token := s.manager.OpenSession()
	writeJSON(w, http.StatusCreated, SessionResponse{Token: token.String()})
}

func (s *Server) handleCloseSession(w http.ResponseWriter, r *http.Request) {
	token, err := mix.ParseToken(r.PathValue("token"))
	if err != nil {
		s.writeError(w, r, fmt.Errorf("%w: %v", errMissingToken, err))
		return
	}

	removed, err := s.manager.CloseSession(r.Context(), token)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, CloseSessionResponse{RemovedMixes: removed})
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	token, err := mix.ParseToken(r.PathValue("token"))
	if err != nil {
		s.writeError(w, r, fmt.Errorf("%w: %v", errMissingToken, err))
		return
	}

	events, err := s.manager.Events(token)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if events == nil {
		events = []manager.ActivityEvent{}
	}
	writeJSON(w, http.StatusOK, EventsResponse{Events: events})
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	token, err := requestToken(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	ctx := logging.WithOwner(r.Context(), token.String())
	ids, err := s.manager.RegisterParcel(ctx, token, body)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, RegisterResponse{RegistrationIDs: ids})
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	token, err := requestToken(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	ctx := logging.WithOwner(r.Context(), token.String())
	if err := s.manager.UpdateParcel(ctx, token, r.PathValue("id"), body); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleUnregister(w http.ResponseWriter, r *http.Request) {
	token, err := requestToken(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	ctx := logging.WithOwner(r.Context(), token.String())
	if err := s.manager.Unregister(ctx, token, r.PathValue("id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListMixes(w http.ResponseWriter, r *http.Request) {
	mixes, generation := s.manager.Snapshot()
	fileToken := s.manager.FileToken()

	resp := MixListResponse{Generation: generation, Mixes: make([]MixSummary, 0, len(mixes))}
	for _, m := range mixes {
		criteria := make([]string, len(m.Criteria))
		for i, c := range m.Criteria {
			criteria[i] = c.String()
		}
		resp.Mixes = append(resp.Mixes, MixSummary{
			RegistrationID: m.RegistrationID,
			Type:           m.Type.String(),
			DeviceType:     m.DeviceType.String(),
			RouteFlags:     uint32(m.RouteFlags),
			CallbackFlags:  uint32(m.CallbackFlags),
			Criteria:       criteria,
			State:          s.manager.State(m.RegistrationID).String(),
			FromFile:       m.Token == fileToken,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	stream, err := decodeStream(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.manager.Evaluate(stream))
}

func (s *Server) handleStartStream(w http.ResponseWriter, r *http.Request) {
	stream, err := decodeStream(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	handle, decision := s.manager.StartStream(r.Context(), stream)
	ctx := logging.WithStream(r.Context(), string(handle))
	s.logger.DebugContext(ctx, "stream started",
		"matched", decision.Matched,
		"registration_id", decision.RegistrationID,
		"ambiguous", decision.Ambiguous,
	)
	writeJSON(w, http.StatusCreated, StreamResponse{Handle: string(handle), Decision: decision})
}

func (s *Server) handleStopStream(w http.ResponseWriter, r *http.Request) {
	handle := manager.StreamHandle(r.PathValue("handle"))
	if err := s.manager.StopStream(r.Context(), handle); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	mixes, generation := s.manager.Snapshot()
	// Owner tokens authorize mutations and stay out of the public dump.
	for _, m := range mixes {
		m.Token = mix.Token{}
	}

	snap, err := snapshot.Build(mixes, generation)
	if err != nil {
		s.writeError(w, r, fmt.Errorf("build snapshot: %w", err))
		return
	}
	data, err := snapshot.Marshal(snap)
	if err != nil {
		s.writeError(w, r, fmt.Errorf("encode snapshot: %w", err))
		return
	}

	w.Header().Set("Content-Type", snapshot.ContentType)
	w.Header().Set(SnapshotDigestHeader, snap.Digest)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// requestToken parses the owner token header.
func requestToken(r *http.Request) (mix.Token, error) {
	raw := r.Header.Get(TokenHeader)
	if raw == "" {
		return mix.Token{}, errMissingToken
	}
	token, err := mix.ParseToken(raw)
	if err != nil {
		return mix.Token{}, fmt.Errorf("%w: %v", errMissingToken, err)
	}
	return token, nil
}

func decodeStream(r *http.Request) (mix.Stream, error) {
	var req StreamRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		var maxBytes *http.MaxBytesError
		if errors.As(err, &maxBytes) {
			return mix.Stream{}, err
		}
		return mix.Stream{}, fmt.Errorf("%w: invalid stream request: %v", mix.ErrMalformedInput, err)
	}
	return req.Stream()
}
