package docrag

import (
	"context"

	"go.uber.org/zap"
)

func LoggingMiddleware(log *zap.Logger) ServiceMiddleware {
	log = log.With(
		zap.String("service", "docrag"),
	)

	return func(next Service) Service {
		log.Info("service initialized")

		return &loggingMiddleware{
			log:  log,
			next: next,
		}
	}
}

type loggingMiddleware struct {
	log  *zap.Logger
	next Service
}

func (mw *loggingMiddleware) Close() error {
	log := mw.log.With(
		zap.String("action", "close"),
	)

	err := mw.next.Close()
	if err != nil {
		log.Error(err.Error())
		return err
	}

	log.Info("service closed")
	return nil
}

func (mw *loggingMiddleware) Ingest(ctx context.Context, path string, filename string) (int, error) {
	log := mw.log.With(
		zap.String("action", "ingest"),
		zap.String("filename", filename),
	)

	n, err := mw.next.Ingest(ctx, path, filename)
	if err != nil {
		log.Error(err.Error())
		return 0, err
	}

	log.Info("document ingested", zap.Int("chunks", n))
	return n, nil
}

func (mw *loggingMiddleware) Query(ctx context.Context, question string) (*Answer, error) {
	log := mw.log.With(
		zap.String("action", "query"),
		zap.String("question", question),
	)

	answer, err := mw.next.Query(ctx, question)
	if err != nil {
		log.Error(err.Error())
		return nil, err
	}

	log.Info("question answered", zap.Strings("sources", answer.Sources))
	return answer, nil
}
