package http

import (
	"net/http"

	"shopledger/internal/session"
)

type signInRequest struct {
	ID   string `json:"id" validate:"required,max=128"`
	Name string `json:"name" validate:"max=128"`
	Role string `json:"role" validate:"omitempty,oneof=operator admin"`
}

type sessionResponse struct {
	Phase    string            `json:"phase"`
	Operator *session.Operator `json:"operator,omitempty"`
}

func renderSession(snap session.Snapshot) sessionResponse {
	out := sessionResponse{Phase: snap.Phase.String()}
	if snap.Authenticated() {
		op := snap.Operator
		out.Operator = &op
	}
	return out
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	writeData(w, http.StatusOK, renderSession(s.deps.Session.Current()))
}

// handleSignIn relays a sign-in notification from the auth front-end. While
// the local admin flag is set the notification is ignored and the response
// still shows the local admin session.
func (s *Server) handleSignIn(w http.ResponseWriter, r *http.Request) {
	var req signInRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	s.deps.Broadcaster.Publish(session.Event{
		Kind:     session.SignedIn,
		Operator: session.Operator{ID: req.ID, Name: req.Name, Role: session.Role(req.Role)},
	})
	writeData(w, http.StatusOK, renderSession(s.deps.Session.Current()))
}

func (s *Server) handleSignOut(w http.ResponseWriter, r *http.Request) {
	s.deps.Broadcaster.Publish(session.Event{Kind: session.SignedOut})
	writeData(w, http.StatusOK, renderSession(s.deps.Session.Current()))
}
