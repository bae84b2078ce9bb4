package docrag

import (
	"context"
	"errors"

	"github.com/go-kit/kit/endpoint"
)

type EndpointSet struct {
	Ingest endpoint.Endpoint
	Query  endpoint.Endpoint
}

func MakeEndpoints(svc Service) EndpointSet {
	return EndpointSet{
		Ingest: IngestEndpoint(svc),
		Query:  QueryEndpoint(svc),
	}
}

// IngestRequest points at a document already staged on the local filesystem.
type IngestRequest struct {
	Path     string `json:"path"`
	Filename string `json:"filename"`
}

type IngestResponse struct {
	Status string `json:"status"`
	Chunks int    `json:"chunks"`
}

const StatusUploaded = "uploaded"

func IngestEndpoint(svc Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(IngestRequest)
		if !ok {
			return nil, errors.New("invalid request type")
		}

		n, err := svc.Ingest(ctx, req.Path, req.Filename)
		if err != nil {
			return nil, err
		}

		return &IngestResponse{
			Status: StatusUploaded,
			Chunks: n,
		}, nil
	}
}

type QueryRequest struct {
	Question string `json:"question" binding:"required"`
}

func QueryEndpoint(svc Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(QueryRequest)
		if !ok {
			return nil, errors.New("invalid request type")
		}

		return svc.Query(ctx, req.Question)
	}
}
