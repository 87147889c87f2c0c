package console

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/julienschmidt/httprouter"

	"github.com/xdg/telecommand/internal/clog"
)

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if len(h) < 7 || !strings.EqualFold(h[:7], "Bearer ") {
		return ""
	}
	return strings.TrimSpace(h[7:])
}

// require wraps h so it only runs for tokens holding role. Admin tokens
// satisfy viewer routes.
func (s *Server) require(role string, h httprouter.Handle) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		id, ok := s.tokens[bearerToken(r)]
		if !ok {
			writeError(w, http.StatusUnauthorized, "missing or invalid token")
			return
		}
		if role == RoleAdmin && id.Role != RoleAdmin {
			clog.Warn("console: %s (%s) denied %s %s", id.Name, id.Role, r.Method, r.URL.Path)
			writeError(w, http.StatusForbidden, "admin role required")
			return
		}
		h(w, r, ps)
	}
}

func (s *Server) collectorAuthorized(r *http.Request) bool {
	if s.CollectorToken == "" {
		return true
	}
	return subtle.ConstantTimeCompare([]byte(bearerToken(r)), []byte(s.CollectorToken)) == 1
}
