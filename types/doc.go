/*
Package types holds the canonical model shared by every streamrelay package.

# Overview

types sits at the bottom of the dependency graph and imports nothing from the
rest of the module. Provider adapters, the orchestration layer and the HTTP
boundary all speak in these types; provider wire formats never leak past an
adapter.

# Core types

  - Message: one conversation turn (system / user / assistant / tool)
  - ToolCall: a tool invocation, sealed once its arguments are complete
  - ToolDefinition: tool name, description and typed parameters
  - Chunk: exactly one of a text fragment or a completed ToolCall
  - ModelConfiguration: optional temperature and output token ceiling
  - Error / ErrorCode: the error taxonomy shared by adapters and orchestration
*/
package types
