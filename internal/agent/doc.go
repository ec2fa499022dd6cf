// Package agent contains the non-UI model logic shared by chat and research.
//
// It resolves the model and provider configuration, prepares the request
// (including MCP tools for chat), starts streaming completions and runs
// one-shot completions with retries for the research pipeline.
package agent
