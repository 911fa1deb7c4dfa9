package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/moviehub/notify/internal/errs"
	"github.com/moviehub/notify/internal/ingress"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

const socketsPage = `<!DOCTYPE html>
<html>
<head><title>Send Notification</title></head>
<body>
<h1>Send Notification</h1>
<textarea id="message" rows="12" cols="80"></textarea><br>
<button onclick="send()">Send</button>
<pre id="log"></pre>
<script>
  var ws = new WebSocket("ws://" + location.host + "/api-notify/v1/sockets/ws/send-message");
  ws.onmessage = function (e) {
    document.getElementById("log").textContent += e.data + "\n";
  };
  function send() {
    ws.send(document.getElementById("message").value);
  }
</script>
</body>
</html>`

// socketsIndex serves the manual send page.
func (h *Handlers) socketsIndex(c *gin.Context) {
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(socketsPage))
}

type wsStatusFrame struct {
	Status string `json:"status"`
	Detail string `json:"detail,omitempty"`
	Queue  string `json:"queue,omitempty"`
}

// sendMessageWS upgrades the connection and echoes a status frame for
// every inbound dispatch request. Auth comes from the access_token
// cookie so browser clients work without headers.
func (h *Handlers) sendMessageWS(c *gin.Context) {
	token, err := c.Cookie("access_token")
	if err != nil {
		respondError(c, errs.Auth("missing access_token cookie"))
		return
	}
	userID, err := h.verifier.Verify(token)
	if err != nil {
		respondError(c, err)
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.WithError(err).Error("WebSocket upgrade failed")
		return
	}
	defer func() { _ = conn.Close() }()

	log := h.log.WithField("user_id", userID)
	log.Info("WebSocket session opened")

	for {
		var req ingress.SendRequest
		if err := conn.ReadJSON(&req); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.WithError(err).Warn("WebSocket session ended abnormally")
			}
			return
		}

		result, err := h.ingress.SendMessage(c.Request.Context(), req, requestIDFrom(c))
		if err != nil {
			if writeErr := conn.WriteJSON(wsStatusFrame{Status: "error", Detail: err.Error()}); writeErr != nil {
				return
			}
			continue
		}
		if err := conn.WriteJSON(wsStatusFrame{
			Status: string(result.Status),
			Detail: result.Message,
			Queue:  result.Queue,
		}); err != nil {
			return
		}
	}
}
