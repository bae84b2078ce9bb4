package nats

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"

	"github.com/go-kit/kit/endpoint"
	"github.com/nats-io/nats.go/micro"
	"go.uber.org/zap"

	"github.com/flarexio/docrag"
	"github.com/flarexio/docrag/extract"
	"github.com/flarexio/docrag/generator"
	"github.com/flarexio/docrag/vector"
)

const HeaderFilename = "filename"

// ErrorCode maps service errors onto the status codes carried in micro
// error headers.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, docrag.ErrInvalidQuestion),
		errors.Is(err, docrag.ErrInvalidFilename):
		return "400"

	case errors.Is(err, extract.ErrExtraction):
		return "422"

	case errors.Is(err, vector.ErrIndexUnavailable),
		errors.Is(err, docrag.ErrEmbedding),
		errors.Is(err, generator.ErrServiceUnavailable):
		return "503"

	default:
		return "417"
	}
}

// IngestHandler stages the raw message payload into uploadDir under the
// filename carried in the message header.
func IngestHandler(endpoint endpoint.Endpoint, uploadDir string) micro.HandlerFunc {
	log := zap.L().With(
		zap.String("transport", "nats"),
		zap.String("endpoint", "ingest"),
	)

	return func(r micro.Request) {
		filename := r.Headers().Get(HeaderFilename)
		if filename == "" {
			r.Error("400", "filename header is required", nil)
			return
		}

		path, cleanup, err := docrag.StageDocument(uploadDir, filename, bytes.NewReader(r.Data()))
		if err != nil {
			r.Error(ErrorCode(err), err.Error(), nil)
			return
		}
		defer cleanup()

		req := docrag.IngestRequest{
			Path:     path,
			Filename: filename,
		}

		ctx := context.Background()
		resp, err := endpoint(ctx, req)
		if err != nil {
			r.Error(ErrorCode(err), err.Error(), nil)
			return
		}

		if err := r.RespondJSON(&resp); err != nil {
			log.Error(err.Error(), zap.String("filename", filename))
		}
	}
}

func QueryHandler(endpoint endpoint.Endpoint) micro.HandlerFunc {
	return func(r micro.Request) {
		var req docrag.QueryRequest
		if err := json.Unmarshal(r.Data(), &req); err != nil {
			r.Error("400", err.Error(), nil)
			return
		}

		ctx := context.Background()
		resp, err := endpoint(ctx, req)
		if err != nil {
			r.Error(ErrorCode(err), err.Error(), nil)
			return
		}

		r.RespondJSON(&resp)
	}
}
