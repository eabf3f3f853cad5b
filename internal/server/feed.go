package server

import (
	"net/http"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

// feedMessage wraps every frame sent over the event feed so clients can
// tell quotes and trades apart.
type feedMessage struct {
	Type    string      `json:"type"` // "quote" or "trade"
	Payload interface{} `json:"payload"`
}

// handleFeed streams market quotes and executed trades over a websocket.
func (s *Server) handleFeed(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		s.log.Warn().Err(err).Msg("Websocket upgrade failed")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "feed closed")

	symbols := r.URL.Query()["symbol"]

	quotes := s.market.Subscribe(symbols...)
	defer quotes.Close()
	trades := s.events.Subscribe()
	defer trades.Close()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			conn.Close(websocket.StatusNormalClosure, "")
			return
		case quote, ok := <-quotes.Quotes():
			if !ok {
				// The hub dropped us for lagging.
				conn.Close(websocket.StatusGoingAway, "subscriber too slow")
				return
			}
			if err := wsjson.Write(ctx, conn, feedMessage{Type: "quote", Payload: quote}); err != nil {
				return
			}
		case trade, ok := <-trades.Events():
			if !ok {
				conn.Close(websocket.StatusGoingAway, "subscriber too slow")
				return
			}
			if err := wsjson.Write(ctx, conn, feedMessage{Type: "trade", Payload: trade}); err != nil {
				return
			}
		}
	}
}
