package httpx

import (
	"net/http"

	"github.com/tasknest/tasknest/internal/procedure"
)

// serveProc runs an authorization chain against the request context and
// writes the result, or the chain's error unmodified.
func serveProc(w http.ResponseWriter, r *http.Request, proc procedure.Proc, status int) {
	out, err := proc(r.Context())
	if err != nil {
		WriteAppError(w, err)
		return
	}
	if out == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	WriteJSON(w, status, out)
}
