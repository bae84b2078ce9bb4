package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"

	"github.com/flarexio/docrag"
	"github.com/flarexio/docrag/generator"
)

type stubService struct {
	answer *docrag.Answer
	err    error

	question string
}

func (s *stubService) Close() error { return nil }

func (s *stubService) Ingest(ctx context.Context, path string, filename string) (int, error) {
	return 0, errors.New("not supported")
}

func (s *stubService) Query(ctx context.Context, question string) (*docrag.Answer, error) {
	s.question = question

	if s.err != nil {
		return nil, s.err
	}

	return s.answer, nil
}

type toolResult struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	IsError bool `json:"isError"`
}

func decodeResult(t *testing.T, msg mcp.JSONRPCMessage) (toolResult, bool) {
	t.Helper()

	resp, ok := msg.(mcp.JSONRPCResponse)
	if !ok {
		return toolResult{}, false
	}

	bs, err := json.Marshal(resp.Result)
	if err != nil {
		return toolResult{}, false
	}

	var result toolResult
	if err := json.Unmarshal(bs, &result); err != nil {
		return toolResult{}, false
	}

	return result, true
}

func TestUnmarshalInitializeRequest(t *testing.T) {
	assert := assert.New(t)

	input := []byte(`{
	  "jsonrpc": "2.0",
	  "id": 1,
	  "method": "initialize",
	  "params": {
	    "protocolVersion": "2024-11-05",
	    "capabilities": {},
	    "clientInfo": {
	      "name": "ExampleClient",
	      "version": "1.0.0"
	    }
	  }
	}`)

	var req JSONRPCRequest
	if err := json.Unmarshal(input, &req); err != nil {
		assert.Fail(err.Error())
		return
	}

	msg := InitializeEndpoint(&stubService{})(context.Background(), req)

	resp, ok := msg.(mcp.JSONRPCResponse)
	if !assert.True(ok) {
		return
	}

	result, ok := resp.Result.(*mcp.InitializeResult)
	if !assert.True(ok) {
		return
	}

	assert.Equal(mcp.NewRequestId(int64(1)), resp.ID)
	assert.Equal("2024-11-05", result.ProtocolVersion)
	assert.Equal("docrag", result.ServerInfo.Name)
	assert.NotNil(result.Capabilities.Tools)
}

func TestListTools(t *testing.T) {
	assert := assert.New(t)

	req := JSONRPCRequest{
		JSONRPC: mcp.JSONRPC_VERSION,
		ID:      mcp.NewRequestId(int64(2)),
		Method:  mcp.MethodToolsList,
	}

	msg := ListToolsEndpoint(&stubService{})(context.Background(), req)

	resp, ok := msg.(mcp.JSONRPCResponse)
	if !assert.True(ok) {
		return
	}

	result, ok := resp.Result.(*mcp.ListToolsResult)
	if !assert.True(ok) || !assert.Len(result.Tools, 1) {
		return
	}

	tool := result.Tools[0]
	assert.Equal(ToolQueryDocuments, tool.Name)
	assert.Contains(tool.InputSchema.Properties, "question")
	assert.Contains(tool.InputSchema.Required, "question")
}

func callRequest(t *testing.T, input string) JSONRPCRequest {
	t.Helper()

	var req JSONRPCRequest
	if err := json.Unmarshal([]byte(input), &req); err != nil {
		t.Fatal(err)
	}

	return req
}

func TestCallQueryDocuments(t *testing.T) {
	assert := assert.New(t)

	svc := &stubService{
		answer: &docrag.Answer{
			Answer:  "Gophers dig tunnels.",
			Sources: []string{"gophers.pdf", "notes.txt"},
		},
	}

	req := callRequest(t, `{
	  "jsonrpc": "2.0",
	  "id": 3,
	  "method": "tools/call",
	  "params": {
	    "name": "query_documents",
	    "arguments": {"question": "What do gophers do?"}
	  }
	}`)

	result, ok := decodeResult(t, CallToolEndpoint(svc)(context.Background(), req))
	if !assert.True(ok) || !assert.Len(result.Content, 1) {
		return
	}

	assert.Equal("What do gophers do?", svc.question)
	assert.False(result.IsError)
	assert.Equal("text", result.Content[0].Type)
	assert.Equal("Gophers dig tunnels.\n\nSources: gophers.pdf, notes.txt", result.Content[0].Text)
}

func TestCallQueryDocumentsServiceError(t *testing.T) {
	assert := assert.New(t)

	svc := &stubService{
		err: generator.ErrServiceUnavailable,
	}

	req := callRequest(t, `{"jsonrpc":"2.0","id":4,"method":"tools/call",
	  "params":{"name":"query_documents","arguments":{"question":"hi"}}}`)

	result, ok := decodeResult(t, CallToolEndpoint(svc)(context.Background(), req))
	if !assert.True(ok) || !assert.Len(result.Content, 1) {
		return
	}

	assert.True(result.IsError)
	assert.Contains(result.Content[0].Text, "generation service unavailable")
}

func TestCallQueryDocumentsInvalid(t *testing.T) {
	assert := assert.New(t)

	svc := &stubService{
		err: docrag.ErrInvalidQuestion,
	}

	unknown := callRequest(t, `{"jsonrpc":"2.0","id":5,"method":"tools/call",
	  "params":{"name":"get_weather","arguments":{}}}`)

	msg := CallToolEndpoint(svc)(context.Background(), unknown)

	rpcErr, ok := msg.(mcp.JSONRPCError)
	if assert.True(ok) {
		assert.Equal(mcp.INVALID_PARAMS, rpcErr.Error.Code)
	}

	empty := callRequest(t, `{"jsonrpc":"2.0","id":6,"method":"tools/call",
	  "params":{"name":"query_documents","arguments":{"question":" "}}}`)

	msg = CallToolEndpoint(svc)(context.Background(), empty)

	rpcErr, ok = msg.(mcp.JSONRPCError)
	if assert.True(ok) {
		assert.Equal(mcp.INVALID_PARAMS, rpcErr.Error.Code)
		assert.Equal(mcp.NewRequestId(int64(6)), rpcErr.ID)
	}
}

func TestFormatAnswerWithoutSources(t *testing.T) {
	answer := &docrag.Answer{Answer: "No idea.", Sources: []string{}}
	assert.Equal(t, "No idea.\n\nSources: (none)", FormatAnswer(answer))
}
