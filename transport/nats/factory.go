package nats

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-kit/kit/endpoint"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/micro"

	"github.com/flarexio/docrag"
	"github.com/flarexio/docrag/extract"
	"github.com/flarexio/docrag/generator"
	"github.com/flarexio/docrag/vector"
)

// DefaultRequestTimeout covers a full generation round trip.
const DefaultRequestTimeout = 150 * time.Second

func MakeEndpoints(nc *nats.Conn, prefix string) *docrag.EndpointSet {
	return &docrag.EndpointSet{
		Ingest: IngestEndpoint(nc, prefix+".ingest"),
		Query:  QueryEndpoint(nc, prefix+".query"),
	}
}

// IngestEndpoint reads the local file named by the request and ships its
// bytes to the remote service.
func IngestEndpoint(nc *nats.Conn, topic string) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(docrag.IngestRequest)
		if !ok {
			return nil, errors.New("invalid request")
		}

		filename := req.Filename
		if filename == "" {
			filename = filepath.Base(req.Path)
		}

		data, err := os.ReadFile(req.Path)
		if err != nil {
			return nil, err
		}

		msg := nats.NewMsg(topic)
		msg.Header.Set(HeaderFilename, filename)
		msg.Data = data

		resp, err := requestMsg(ctx, nc, msg)
		if err != nil {
			return nil, err
		}

		var result docrag.IngestResponse
		if err := json.Unmarshal(resp.Data, &result); err != nil {
			return nil, err
		}

		return &result, nil
	}
}

func QueryEndpoint(nc *nats.Conn, topic string) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(docrag.QueryRequest)
		if !ok {
			return nil, errors.New("invalid request")
		}

		data, err := json.Marshal(&req)
		if err != nil {
			return nil, err
		}

		msg := nats.NewMsg(topic)
		msg.Data = data

		resp, err := requestMsg(ctx, nc, msg)
		if err != nil {
			return nil, err
		}

		var answer docrag.Answer
		if err := json.Unmarshal(resp.Data, &answer); err != nil {
			return nil, err
		}

		return &answer, nil
	}
}

func requestMsg(ctx context.Context, nc *nats.Conn, msg *nats.Msg) (*nats.Msg, error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, DefaultRequestTimeout)
		defer cancel()
	}

	resp, err := nc.RequestMsgWithContext(ctx, msg)
	if err != nil {
		return nil, err
	}

	if err := Error(resp); err != nil {
		return nil, err
	}

	return resp, nil
}

// RemoteError is an error reported by a remote docrag through micro error
// headers. It unwraps to the service errors named in its description.
type RemoteError struct {
	Code        string
	Description string

	causes []error
}

func (e *RemoteError) Error() string {
	return e.Code + ":" + e.Description
}

func (e *RemoteError) Unwrap() []error {
	return e.causes
}

var remoteCauses = map[string][]error{
	"400": {docrag.ErrInvalidQuestion, docrag.ErrInvalidFilename},
	"422": {extract.ErrExtraction},
	"503": {vector.ErrIndexUnavailable, docrag.ErrEmbedding, generator.ErrServiceUnavailable},
	"417": {vector.ErrDimensionMismatch, generator.ErrRequestFailed, generator.ErrMissingCredential},
}

func Error(msg *nats.Msg) error {
	if msg == nil {
		return errors.New("nil message")
	}

	code := msg.Header.Get(micro.ErrorCodeHeader)
	if code == "" {
		return nil
	}

	description := msg.Header.Get(micro.ErrorHeader)
	if description == "" {
		description = "unknown error"
	}

	err := &RemoteError{
		Code:        code,
		Description: description,
	}

	for _, cause := range remoteCauses[code] {
		if strings.Contains(description, cause.Error()) {
			err.causes = append(err.causes, cause)
		}
	}

	return err
}
