// Package services assembles the specd runtime from configuration.
//
// Build wires the model client, the extraction and search collaborators, the
// three stage agents, the orchestrator and the session manager. The daemon,
// the MCP stdio server and the eval command all start from a Registry so
// they run the same conversation.
package services
