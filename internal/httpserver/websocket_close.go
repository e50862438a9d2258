package httpserver

import (
	"errors"
	"log/slog"
	"net"

	"nhooyr.io/websocket"
)

func closeWebsocket(logger *slog.Logger, conn *websocket.Conn, code websocket.StatusCode, reason string) {
	if conn == nil {
		return
	}
	err := conn.Close(code, reason)
	if err == nil || errors.Is(err, net.ErrClosed) || websocket.CloseStatus(err) != -1 {
		return
	}
	if logger != nil {
		logger.Debug("websocket close failed", "err", err)
	}
}
