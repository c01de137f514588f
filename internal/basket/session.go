package basket

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/noah-isme/slowdrip-api/internal/common"
	"github.com/noah-isme/slowdrip-api/internal/obs"
)

// SessionHeader carries the anonymous basket session id.
const SessionHeader = "X-Session-ID"

// SessionMiddleware resolves the basket session for the request. Clients
// without a session id are issued one in the response header.
func SessionMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(SessionHeader))
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}
		w.Header().Set(SessionHeader, id)
		obs.Annotate(r.Context(), "session_id", id)
		next.ServeHTTP(w, r.WithContext(common.WithSessionID(r.Context(), id)))
	})
}
