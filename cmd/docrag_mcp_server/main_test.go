package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/go-kit/kit/endpoint"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/micro"
	"github.com/stretchr/testify/assert"

	"github.com/flarexio/docrag"

	mcpE "github.com/flarexio/docrag/mcp"
	natsT "github.com/flarexio/docrag/transport/nats"
)

type stubService struct{}

func (s *stubService) Close() error { return nil }

func (s *stubService) Ingest(ctx context.Context, path string, filename string) (int, error) {
	return 0, errors.New("not supported")
}

func (s *stubService) Query(ctx context.Context, question string) (*docrag.Answer, error) {
	return &docrag.Answer{Answer: "echo: " + question, Sources: []string{"a.txt"}}, nil
}

func TestStdioMCPServer(t *testing.T) {
	assert := assert.New(t)

	input := strings.Join([]string{
		`{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"2024-11-05"}}`,
		`{"jsonrpc":"2.0","method":"notifications/initialized"}`,
		`{"jsonrpc":"2.0","id":2,"method":"tools/call","params":{"name":"query_documents","arguments":{"question":"hi"}}}`,
		`{"jsonrpc":"2.0","id":3,"method":"resources/list"}`,
		`not json`,
	}, "\n")

	var out bytes.Buffer

	s := NewStdioMCPServer(strings.NewReader(input), &out)
	for method, endpoint := range mcpE.MakeEndpoints(&stubService{}) {
		assert.NoError(s.AddEndpoint(method, endpoint))
	}

	if err := s.Listen(context.Background()); err != nil {
		assert.Fail(err.Error())
		return
	}

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if !assert.Len(lines, 4) {
		return
	}

	var responses []map[string]any
	for _, line := range lines {
		var m map[string]any
		if err := json.Unmarshal([]byte(line), &m); err != nil {
			assert.Fail(err.Error())
			return
		}

		responses = append(responses, m)
	}

	assert.Equal(float64(1), responses[0]["id"])
	assert.Contains(responses[0], "result")

	assert.Equal(float64(2), responses[1]["id"])
	assert.Contains(lines[1], `echo: hi\n\nSources: a.txt`)

	assert.Equal(float64(3), responses[2]["id"])
	assert.Contains(responses[2], "error")

	assert.Contains(responses[3], "error")
}

func TestAddEndpointDuplicate(t *testing.T) {
	s := NewStdioMCPServer(strings.NewReader(""), &bytes.Buffer{})

	endpoints := mcpE.MakeEndpoints(&stubService{})
	for method, endpoint := range endpoints {
		assert.NoError(t, s.AddEndpoint(method, endpoint))
		assert.Error(t, s.AddEndpoint(method, endpoint))
		break
	}
}

// remoteFailure answers like a remote docrag replying with micro error headers.
func remoteFailure(cause error) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		msg := nats.NewMsg("docrag.query")
		msg.Header.Set(micro.ErrorCodeHeader, natsT.ErrorCode(cause))
		msg.Header.Set(micro.ErrorHeader, cause.Error())

		return nil, natsT.Error(msg)
	}
}

func TestProxiedEmptyQuestion(t *testing.T) {
	assert := assert.New(t)

	endpoints := &docrag.EndpointSet{
		Query: remoteFailure(docrag.ErrInvalidQuestion),
	}

	svc := docrag.ProxyMiddleware(endpoints)(nil)

	var req mcpE.JSONRPCRequest
	err := json.Unmarshal([]byte(`{"jsonrpc":"2.0","id":7,"method":"tools/call",
	  "params":{"name":"query_documents","arguments":{"question":"  "}}}`), &req)
	if err != nil {
		assert.Fail(err.Error())
		return
	}

	msg := mcpE.CallToolEndpoint(svc)(context.Background(), req)

	rpcErr, ok := msg.(mcp.JSONRPCError)
	if assert.True(ok) {
		assert.Equal(mcp.INVALID_PARAMS, rpcErr.Error.Code)
	}
}
