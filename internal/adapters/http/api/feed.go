package api

import "net/http"

// feed subscribes the caller to their group's live activity.
func (s *Server) feed(w http.ResponseWriter, r *http.Request) {
	if s.deps.Feed == nil {
		http.NotFound(w, r)
		return
	}
	id, _ := IdentityFrom(r.Context())
	s.deps.Feed.Serve(w, r, id.GroupID, id.PersonID)
}
