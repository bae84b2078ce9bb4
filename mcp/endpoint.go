package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"slices"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/flarexio/docrag"
)

const ToolQueryDocuments = "query_documents"

type JSONRPCRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      mcp.RequestId   `json:"id"`
	Method  mcp.MCPMethod   `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

func ErrorResponse(id mcp.RequestId, code int, message string) mcp.JSONRPCError {
	return mcp.JSONRPCError{
		JSONRPC: mcp.JSONRPC_VERSION,
		ID:      id,
		Error: struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
			Data    any    `json:"data,omitempty"`
		}{
			Code:    code,
			Message: message,
		},
	}
}

type MCPEndpoint func(ctx context.Context, req JSONRPCRequest) mcp.JSONRPCMessage

// MakeEndpoints returns the JSON-RPC methods served for a docrag Service.
func MakeEndpoints(svc docrag.Service) map[mcp.MCPMethod]MCPEndpoint {
	return map[mcp.MCPMethod]MCPEndpoint{
		mcp.MethodInitialize: InitializeEndpoint(svc),
		mcp.MethodPing:       PingEndpoint(svc),
		mcp.MethodToolsList:  ListToolsEndpoint(svc),
		mcp.MethodToolsCall:  CallToolEndpoint(svc),
	}
}

const MCPSERVER_INSTRUCTIONS string = `docrag answers questions from an indexed document collection.

Use the query_documents tool with a natural-language question. The answer is
generated from the most similar document chunks and ends with a Sources line
listing the filenames the context came from.`

func InitializeEndpoint(svc docrag.Service) MCPEndpoint {
	return func(ctx context.Context, req JSONRPCRequest) mcp.JSONRPCMessage {
		var params mcp.InitializeParams
		if err := json.Unmarshal(req.Params, &params); err != nil {
			return ErrorResponse(req.ID, mcp.INVALID_PARAMS, err.Error())
		}

		protocolVersion := mcp.LATEST_PROTOCOL_VERSION
		if clientVersion := params.ProtocolVersion; clientVersion != "" {
			if slices.Contains(mcp.ValidProtocolVersions, clientVersion) {
				protocolVersion = clientVersion
			}
		}

		result := &mcp.InitializeResult{
			ProtocolVersion: protocolVersion,
			Capabilities: mcp.ServerCapabilities{
				Tools: &struct {
					ListChanged bool `json:"listChanged,omitempty"`
				}{},
			},
			ServerInfo: mcp.Implementation{
				Name:    "docrag",
				Version: "1.0.0",
			},
			Instructions: MCPSERVER_INSTRUCTIONS,
		}

		return mcp.JSONRPCResponse{
			JSONRPC: mcp.JSONRPC_VERSION,
			ID:      req.ID,
			Result:  result,
		}
	}
}

func PingEndpoint(svc docrag.Service) MCPEndpoint {
	return func(ctx context.Context, req JSONRPCRequest) mcp.JSONRPCMessage {
		return mcp.JSONRPCResponse{
			JSONRPC: mcp.JSONRPC_VERSION,
			ID:      req.ID,
			Result:  struct{}{}, // empty response
		}
	}
}

func QueryDocumentsTool() mcp.Tool {
	return mcp.NewTool(ToolQueryDocuments,
		mcp.WithDescription("Answer a question using the ingested documents and list the source filenames."),
		mcp.WithString("question",
			mcp.Required(),
			mcp.Description("Natural-language question about the documents"),
		),
	)
}

func ListToolsEndpoint(svc docrag.Service) MCPEndpoint {
	return func(ctx context.Context, req JSONRPCRequest) mcp.JSONRPCMessage {
		result := &mcp.ListToolsResult{
			Tools: []mcp.Tool{
				QueryDocumentsTool(),
			},
		}

		return mcp.JSONRPCResponse{
			JSONRPC: mcp.JSONRPC_VERSION,
			ID:      req.ID,
			Result:  result,
		}
	}
}

type callToolParams struct {
	Name      string `json:"name"`
	Arguments struct {
		Question string `json:"question"`
	} `json:"arguments"`
}

func CallToolEndpoint(svc docrag.Service) MCPEndpoint {
	return func(ctx context.Context, req JSONRPCRequest) mcp.JSONRPCMessage {
		var params callToolParams
		if err := json.Unmarshal(req.Params, &params); err != nil {
			return ErrorResponse(req.ID, mcp.INVALID_PARAMS, err.Error())
		}

		if params.Name != ToolQueryDocuments {
			return ErrorResponse(req.ID, mcp.INVALID_PARAMS, "unknown tool: "+params.Name)
		}

		var result *mcp.CallToolResult

		answer, err := svc.Query(ctx, params.Arguments.Question)
		switch {
		case errors.Is(err, docrag.ErrInvalidQuestion):
			return ErrorResponse(req.ID, mcp.INVALID_PARAMS, err.Error())

		case err != nil:
			result = mcp.NewToolResultError(err.Error())

		default:
			result = mcp.NewToolResultText(FormatAnswer(answer))
		}

		return mcp.JSONRPCResponse{
			JSONRPC: mcp.JSONRPC_VERSION,
			ID:      req.ID,
			Result:  result,
		}
	}
}

func FormatAnswer(answer *docrag.Answer) string {
	sources := "(none)"
	if len(answer.Sources) > 0 {
		sources = strings.Join(answer.Sources, ", ")
	}

	return answer.Answer + "\n\nSources: " + sources
}
