package websocket

import (
	"net/http"

	ws "github.com/coder/websocket"
)

// HandleWebSocket upgrades the request and runs the connection as a hub
// client until it drops.
func HandleWebSocket(hub *Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := ws.Accept(w, r, &ws.AcceptOptions{
			InsecureSkipVerify: true, // household LAN clients connect from any origin
		})
		if err != nil {
			hub.logger.Error("websocket accept", "error", err)
			return
		}

		client := NewClient(hub, conn)
		client.Run(r.Context())
	}
}
