package nats

import (
	"github.com/nats-io/nats.go/micro"

	"github.com/flarexio/docrag"
)

func AddEndpoints(group micro.Group, endpoints docrag.EndpointSet, uploadDir string) error {
	if err := group.AddEndpoint("ingest", IngestHandler(endpoints.Ingest, uploadDir)); err != nil {
		return err
	}

	return group.AddEndpoint("query", QueryHandler(endpoints.Query))
}
