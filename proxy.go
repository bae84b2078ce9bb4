package docrag

import (
	"context"
	"errors"
)

// ProxyMiddleware turns a remote EndpointSet into a Service.
func ProxyMiddleware(endpoints *EndpointSet) ServiceMiddleware {
	return func(next Service) Service {
		return &proxyMiddleware{
			endpoints: endpoints,
		}
	}
}

type proxyMiddleware struct {
	endpoints *EndpointSet
}

func (mw *proxyMiddleware) Close() error {
	return errors.New("method not implemented")
}

func (mw *proxyMiddleware) Ingest(ctx context.Context, path string, filename string) (int, error) {
	req := IngestRequest{
		Path:     path,
		Filename: filename,
	}

	resp, err := mw.endpoints.Ingest(ctx, req)
	if err != nil {
		return 0, err
	}

	result, ok := resp.(*IngestResponse)
	if !ok {
		return 0, errors.New("invalid response type")
	}

	return result.Chunks, nil
}

func (mw *proxyMiddleware) Query(ctx context.Context, question string) (*Answer, error) {
	req := QueryRequest{
		Question: question,
	}

	resp, err := mw.endpoints.Query(ctx, req)
	if err != nil {
		return nil, err
	}

	answer, ok := resp.(*Answer)
	if !ok {
		return nil, errors.New("invalid response type")
	}

	return answer, nil
}
