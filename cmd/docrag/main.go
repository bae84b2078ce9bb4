package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/micro"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"github.com/flarexio/docrag"
	"github.com/flarexio/docrag/embedding"
	"github.com/flarexio/docrag/extract"
	"github.com/flarexio/docrag/generator"
	"github.com/flarexio/docrag/persistence/chromem"
	"github.com/flarexio/docrag/persistence/pgvector"
	"github.com/flarexio/docrag/persistence/qdrant"
	"github.com/flarexio/docrag/vector"

	mcpE "github.com/flarexio/docrag/mcp"
	httpT "github.com/flarexio/docrag/transport/http"
	natsT "github.com/flarexio/docrag/transport/nats"
)

func main() {
	// .env is optional
	godotenv.Load()

	cmd := &cli.Command{
		Name:  "docrag",
		Usage: "Document question answering service",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "path",
				Usage: "Path to the docrag service directory",
			},
			&cli.StringFlag{
				Name:    "llm-provider",
				Usage:   "Answer generator: mock, ollama or openai",
				Sources: cli.EnvVars("LLM_PROVIDER"),
			},
			&cli.StringFlag{
				Name:    "openai-api-key",
				Usage:   "OpenAI API key",
				Sources: cli.EnvVars("OPENAI_API_KEY"),
			},
			&cli.StringFlag{
				Name:    "vector-driver",
				Usage:   "Vector index driver: chromem, qdrant or pgvector",
				Sources: cli.EnvVars("VECTOR_DRIVER"),
			},
			&cli.StringFlag{
				Name:    "qdrant-url",
				Usage:   "Qdrant REST URL",
				Sources: cli.EnvVars("QDRANT_URL"),
			},
			&cli.StringFlag{
				Name:    "qdrant-api-key",
				Usage:   "Qdrant API key",
				Sources: cli.EnvVars("QDRANT_API_KEY"),
			},
			&cli.StringFlag{
				Name:    "database-url",
				Usage:   "PostgreSQL DSN for the pgvector driver",
				Sources: cli.EnvVars("DATABASE_URL"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "serve",
				Usage: "Serve HTTP, MCP and optionally NATS transports",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "http-addr",
						Usage: "HTTP server address",
						Value: ":8000",
					},
					&cli.StringFlag{
						Name:    "nats",
						Usage:   "NATS server URL, NATS transport is disabled when empty",
						Sources: cli.EnvVars("NATS_URL"),
					},
					&cli.StringFlag{
						Name:  "nats-topic",
						Usage: "NATS subject prefix",
						Value: "docrag",
					},
				},
				Action: serve,
			},
			{
				Name:      "ingest",
				Usage:     "Ingest local documents",
				ArgsUsage: "FILE...",
				Action:    ingest,
			},
			{
				Name:      "query",
				Usage:     "Ask a question against the indexed documents",
				ArgsUsage: "QUESTION",
				Action:    query,
			},
		},
		DefaultCommand: "serve",
	}

	err := cmd.Run(context.Background(), os.Args)
	if err != nil {
		log.Fatal(err.Error())
	}
}

func servicePath(cmd *cli.Command) (string, error) {
	path := cmd.String("path")
	if path != "" {
		return path, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}

	return filepath.Join(homeDir, ".flarex", "docrag"), nil
}

func loadConfig(cmd *cli.Command, path string) (docrag.Config, error) {
	cfg, err := docrag.LoadConfig(filepath.Join(path, "config.yaml"))
	if err != nil {
		return cfg, err
	}

	if provider := cmd.String("llm-provider"); provider != "" {
		cfg.Generator.Provider = generator.Provider(strings.ToLower(provider))
	}

	if key := cmd.String("openai-api-key"); key != "" {
		cfg.Generator.OpenAI.APIKey = key

		if cfg.Embedding.APIKey == "" {
			cfg.Embedding.APIKey = key
		}
	}

	if driver := cmd.String("vector-driver"); driver != "" {
		cfg.Vector.Driver = vector.Driver(strings.ToLower(driver))
	}

	if url := cmd.String("qdrant-url"); url != "" {
		cfg.Vector.URL = url
	}

	if key := cmd.String("qdrant-api-key"); key != "" {
		cfg.Vector.APIKey = key
	}

	if dsn := cmd.String("database-url"); dsn != "" {
		cfg.Vector.DSN = dsn
	}

	persistEmbeddedIndex(&cfg.Vector, path)

	if !filepath.IsAbs(cfg.UploadDir) {
		cfg.UploadDir = filepath.Join(path, cfg.UploadDir)
	}

	return cfg, nil
}

// persistEmbeddedIndex keeps the chromem store on disk under path, so that
// serve, ingest and query invocations share one index.
func persistEmbeddedIndex(cfg *vector.Config, path string) {
	if cfg.Driver != vector.DriverChromem {
		return
	}

	cfg.Persistent = true

	if cfg.Path == "" {
		cfg.Path = filepath.Join(path, "vectors")
	}
}

func openIndex(ctx context.Context, cfg vector.Config) (vector.Index, error) {
	switch cfg.Driver {
	case vector.DriverChromem:
		return chromem.NewChromemIndex(cfg)

	case vector.DriverQdrant:
		return qdrant.NewQdrantIndex(cfg)

	case vector.DriverPGVector:
		return pgvector.NewPGVectorIndex(ctx, cfg)

	default:
		return nil, fmt.Errorf("%w: %s", vector.ErrUnsupportedDriver, cfg.Driver)
	}
}

func buildService(ctx context.Context, cmd *cli.Command) (docrag.Service, docrag.Config, *zap.Logger, error) {
	path, err := servicePath(cmd)
	if err != nil {
		return nil, docrag.Config{}, nil, err
	}

	log, err := zap.NewDevelopment()
	if err != nil {
		return nil, docrag.Config{}, nil, err
	}

	zap.ReplaceGlobals(log)

	cfg, err := loadConfig(cmd, path)
	if err != nil {
		return nil, cfg, log, err
	}

	embedder, err := embedding.New(cfg.Embedding)
	if err != nil {
		return nil, cfg, log, err
	}

	gen, err := generator.New(cfg.Generator)
	if err != nil {
		return nil, cfg, log, err
	}

	index, err := openIndex(ctx, cfg.Vector)
	if err != nil {
		return nil, cfg, log, err
	}

	svc, err := docrag.NewService(ctx, cfg, extract.NewExtractor(log), embedder, index, gen)
	if err != nil {
		index.Close()
		return nil, cfg, log, err
	}

	svc = docrag.LoggingMiddleware(log)(svc)

	log.Info("service ready",
		zap.String("driver", string(cfg.Vector.Driver)),
		zap.String("embedding", string(cfg.Embedding.Provider)),
		zap.String("generator", string(cfg.Generator.Provider)),
	)

	return svc, cfg, log, nil
}

func serve(ctx context.Context, cmd *cli.Command) error {
	svc, cfg, log, err := buildService(ctx, cmd)
	if log != nil {
		defer log.Sync()
	}
	if err != nil {
		return err
	}
	defer svc.Close()

	endpoints := docrag.MakeEndpoints(svc)

	// Add NATS Transport
	if natsURL := cmd.String("nats"); natsURL != "" {
		opts := []nats.Option{
			nats.Name("docrag"),
		}

		path, _ := servicePath(cmd)
		creds := filepath.Join(path, "user.creds")
		if _, err := os.Stat(creds); err == nil {
			opts = append(opts, nats.UserCredentials(creds))
		}

		nc, err := nats.Connect(natsURL, opts...)
		if err != nil {
			return err
		}
		defer nc.Drain()

		srv, err := micro.AddService(nc, micro.Config{
			Name:    "docrag",
			Version: "1.0.0",
		})

		if err != nil {
			return err
		}
		defer srv.Stop()

		root := srv.AddGroup(cmd.String("nats-topic"))
		if err := natsT.AddEndpoints(root, endpoints, cfg.UploadDir); err != nil {
			return err
		}

		log.Info("nats transport enabled", zap.String("topic", cmd.String("nats-topic")))
	}

	// Add HTTP Transport
	{
		r := gin.Default()
		httpT.AddRouters(r, endpoints, cfg.UploadDir)
		httpT.AddStreamableRouters(r, mcpE.MakeEndpoints(svc))

		httpAddr := cmd.String("http-addr")
		go func() {
			if err := r.Run(httpAddr); err != nil {
				log.Error(err.Error())
			}
		}()
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	sign := <-quit

	log.Info("graceful shutdown", zap.String("signal", sign.String()))
	return nil
}

func ingest(ctx context.Context, cmd *cli.Command) error {
	files := cmd.Args().Slice()
	if len(files) == 0 {
		return errors.New("at least one file is required")
	}

	svc, _, log, err := buildService(ctx, cmd)
	if log != nil {
		defer log.Sync()
	}
	if err != nil {
		return err
	}
	defer svc.Close()

	for _, file := range files {
		n, err := svc.Ingest(ctx, file, filepath.Base(file))
		if err != nil {
			return err
		}

		fmt.Printf("%s: %d chunks\n", file, n)
	}

	return nil
}

func query(ctx context.Context, cmd *cli.Command) error {
	question := strings.Join(cmd.Args().Slice(), " ")

	svc, _, log, err := buildService(ctx, cmd)
	if log != nil {
		defer log.Sync()
	}
	if err != nil {
		return err
	}
	defer svc.Close()

	answer, err := svc.Query(ctx, question)
	if err != nil {
		return err
	}

	fmt.Println(mcpE.FormatAnswer(answer))
	return nil
}
