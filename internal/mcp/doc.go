// Package mcp implements the JSON-RPC 2.0 tool-calling endpoint for AI clients.
//
// # Overview
//
// AI assistants discover and invoke the gateway's read-only fantasy-league
// tools through a Model Context Protocol style convention: initialize,
// tools/list, and tools/call over HTTP POST. The dispatcher is stateless;
// every request is authenticated and handled independently.
//
// # Protocol
//
// A single endpoint accepts JSON-RPC envelopes:
//
//   - POST /mcp - JSON-RPC requests (initialize, tools/list, ping, tools/call)
//   - GET /mcp - plain server descriptor
//   - GET /.well-known/oauth-protected-resource - auth discovery metadata
//
// Malformed JSON gets code -32700, a jsonrpc field other than "2.0" gets
// -32600, unknown methods get -32601, and bad tools/call params get -32602.
// Requests without an id are notifications and are acknowledged with HTTP
// 202 and no body.
//
// # Authentication
//
// initialize, tools/list, and ping require no credentials. tools/call
// requires a bearer token:
//
//	Authorization: Bearer <token>
//
// A missing token gets HTTP 401 with an "unauthorized" challenge; a rejected
// token gets HTTP 401 with a distinct "invalid_token" challenge. Both carry
// a WWW-Authenticate header and a JSON-RPC error body naming the protected
// resource metadata URL, so caller tooling can find where to authenticate
// without parsing prose. The distinction matters: "never authenticated"
// means start an authorization flow, "token rejected" means the old session
// is dead and a silent retry will not help.
//
// # Tool Execution
//
// Clients call tools/call to execute a tool:
//
//	{
//	  "jsonrpc": "2.0",
//	  "method": "tools/call",
//	  "params": {
//	    "name": "football_standings",
//	    "arguments": {"leagueId": "12345"}
//	  },
//	  "id": 2
//	}
//
// A runtime failure inside the tool is not a protocol error: it comes back
// as a successful JSON-RPC response whose result marks isError true with a
// readable message, so the calling AI can reason about the failure instead
// of the transport swallowing it.
package mcp
