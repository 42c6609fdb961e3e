// Package api documents the streamrelay HTTP API. Handlers live in
// api/handlers; routes are wired in cmd/streamrelay.
//
// # Endpoints
//
//	POST /api/v1/chat/stream     SSE stream of chunk records
//	GET  /api/v1/chat/ws         WebSocket stream of chunk records
//	GET  /api/v1/tools           registered tool definitions
//	POST /api/v1/tools/execute   run emitted tool calls
//	GET  /health, /ready, /version
//
// # Chat request
//
//	{"task": "home", "thread_id": "t1", "input": "What's the weather in Paris?"}
//
// # Records
//
// Every chunk is one JSON record:
//
//	{"text": "..."}
//	{"toolCall": {"id": "...", "type": "function", "function": {"name": "...", "arguments": "{...}"}}}
//
// A failure after streaming has started is reported as
//
//	{"error": {"code": "GENERATION_FAILED", "message": "..."}}
//
// Over SSE each record is a "data:" line, error records carry "event: error",
// and the stream ends with "data: [DONE]". Over WebSocket each record is one
// text frame followed by a normal close.
//
// An optional X-Provider-API-Key header overrides the configured provider
// credential for one request.
package api
