package websocket

import (
	"net/http"

	ws "github.com/coder/websocket"

	"github.com/dukerupert/recipecost/internal/auth"
)

// HandleWebSocket upgrades an authenticated request and runs the connection
// as a Hub client for the signed-in user.
func HandleWebSocket(hub *Hub, originPatterns []string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ac, ok := auth.FromContext(r.Context())
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		conn, err := ws.Accept(w, r, &ws.AcceptOptions{
			OriginPatterns: originPatterns,
		})
		if err != nil {
			hub.logger.Warn("websocket accept", "error", err)
			return
		}

		hub.logger.Debug("websocket connected", "user_id", ac.UserID)
		NewClient(hub, conn, ac.UserID).Run(r.Context())
		hub.logger.Debug("websocket disconnected", "user_id", ac.UserID)
	}
}

