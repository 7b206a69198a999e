// Package ws streams a playground session to the browser over WebSocket.
//
// Message Types (Server → Client):
//   - snapshot: Console records, recent notices and preview generation on connect
//   - console: A console store event (append or clear)
//   - notice: A user notification
//   - reload: The preview document changed; reload the iframe
//   - pong: Reply to ping
//   - error: A client message was rejected
//
// Message Types (Client → Server):
//   - console: Relay the data a sandboxed preview posted (browser mode)
//   - ping: Keep-alive ping
//
// Example Usage:
//
//	handler := ws.NewHandler(manager, logger, metrics, origins)
//	router.GET("/api/sessions/:id/stream", handler.HandleConnection)
package ws
