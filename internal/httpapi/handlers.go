package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/cardline/timeline-backend/internal/hub"
	"github.com/cardline/timeline-backend/internal/session"
)

// ListLobbies serves the same lobby list the websocket feed pushes, for
// clients that want a plain GET.
func ListLobbies(h *hub.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reply := make(chan []session.Summary, 1)
		h.Inbox() <- hub.ListLobbies{Reply: reply}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(<-reply)
	}
}

func Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}
