// Package mcp exposes spec sessions as MCP tools over stdio.
//
// The tools wrap the same session manager the HTTP API serves, so an MCP
// client walks a founder through discovery, scoping and spec writing one
// spec_session_send call at a time.
package mcp
