package docrag

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"

	"github.com/flarexio/docrag/embedding"
	"github.com/flarexio/docrag/extract"
	"github.com/flarexio/docrag/generator"
	"github.com/flarexio/docrag/persistence/chromem"
	"github.com/flarexio/docrag/vector"
)

type recordingGenerator struct {
	generator.Generator

	mu      sync.Mutex
	prompts []string
}

func (g *recordingGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	g.mu.Lock()
	g.prompts = append(g.prompts, prompt)
	g.mu.Unlock()

	return g.Generator.Generate(ctx, prompt)
}

func (g *recordingGenerator) last() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	if len(g.prompts) == 0 {
		return ""
	}

	return g.prompts[len(g.prompts)-1]
}

type docragTestSuite struct {
	suite.Suite
	ctx context.Context
	dir string
	gen *recordingGenerator
	svc Service
}

func (suite *docragTestSuite) SetupTest() {
	ctx := context.Background()

	cfg := DefaultConfig()
	cfg.Vector.Collection = "test"

	index, err := chromem.NewChromemIndex(cfg.Vector)
	if err != nil {
		suite.Fail(err.Error())
		return
	}

	gen := &recordingGenerator{Generator: generator.NewMockGenerator()}

	svc, err := NewService(ctx, cfg,
		extract.NewExtractor(nil),
		embedding.NewHashEmbedder(cfg.Embedding.Dimension),
		index,
		gen,
	)
	if err != nil {
		suite.Fail(err.Error())
		return
	}

	suite.ctx = ctx
	suite.dir = suite.T().TempDir()
	suite.gen = gen
	suite.svc = svc
}

func (suite *docragTestSuite) TearDownTest() {
	if suite.svc != nil {
		suite.svc.Close()
	}
}

func (suite *docragTestSuite) ingest(filename string, text string) int {
	path := filepath.Join(suite.dir, filename)
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		suite.FailNow(err.Error())
	}

	n, err := suite.svc.Ingest(suite.ctx, path, filename)
	if err != nil {
		suite.FailNow(err.Error())
	}

	return n
}

const (
	gopherText  = "Gophers dig tunnels underground and store seeds in burrows during winter."
	revenueText = "Quarterly revenue increased in the northern region after marketing campaigns launched."
)

func (suite *docragTestSuite) TestQueryWithoutDocuments() {
	answer, err := suite.svc.Query(suite.ctx, "What is the capital of France?")
	if err != nil {
		suite.Fail(err.Error())
		return
	}

	suite.Contains(answer.Answer, "mock response")
	suite.Contains(answer.Answer, "What is the capital of France?")
	suite.NotNil(answer.Sources)
	suite.Empty(answer.Sources)
	suite.Equal("Please answer: What is the capital of France?", suite.gen.last())
}

func (suite *docragTestSuite) TestIngestAndQuery() {
	suite.Equal(1, suite.ingest("gophers.txt", gopherText))
	suite.Equal(1, suite.ingest("revenue.txt", revenueText))

	answer, err := suite.svc.Query(suite.ctx, "Where do gophers dig tunnels?")
	if err != nil {
		suite.Fail(err.Error())
		return
	}

	// two documents, so ids from separate ingestions must not collide
	suite.Len(answer.Sources, 2)
	suite.Equal("gophers.txt", answer.Sources[0])
	suite.Equal("revenue.txt", answer.Sources[1])

	prompt := suite.gen.last()
	suite.True(strings.HasPrefix(prompt, "Question: Where do gophers dig tunnels?\n\nContext: "+gopherText))
	suite.True(strings.HasSuffix(prompt, "\n\nPlease answer the question based on the context above."))
	suite.Contains(answer.Answer, "mock response")
}

func (suite *docragTestSuite) TestReingestOverwrites() {
	suite.Equal(1, suite.ingest("gophers.txt", gopherText))
	suite.Equal(1, suite.ingest("gophers.txt", gopherText))

	answer, err := suite.svc.Query(suite.ctx, "gophers")
	if err != nil {
		suite.Fail(err.Error())
		return
	}

	suite.Equal([]string{"gophers.txt"}, answer.Sources)
}

func (suite *docragTestSuite) TestContextTruncation() {
	long := strings.Repeat("gopher ", 400)

	suite.Equal(1, suite.ingest("long.txt", long))

	_, err := suite.svc.Query(suite.ctx, "gopher")
	if err != nil {
		suite.Fail(err.Error())
		return
	}

	prompt := suite.gen.last()

	context := strings.TrimPrefix(prompt, "Question: gopher\n\nContext: ")
	context = strings.TrimSuffix(context, "\n\nPlease answer the question based on the context above.")

	suite.Len([]rune(context), 1500)
}

func (suite *docragTestSuite) TestIngestChunkCount() {
	var sb strings.Builder
	for i := 0; i < 600; i++ {
		sb.WriteString("word ")
	}

	suite.Equal(2, suite.ingest("six-hundred.txt", sb.String()))
}

func (suite *docragTestSuite) TestIngestEmptyDocument() {
	suite.Equal(0, suite.ingest("empty.txt", "   \n  "))
}

func (suite *docragTestSuite) TestQueryEmptyQuestion() {
	_, err := suite.svc.Query(suite.ctx, "   ")
	suite.ErrorIs(err, ErrInvalidQuestion)
}

func (suite *docragTestSuite) TestIngestInvalidFilename() {
	_, err := suite.svc.Ingest(suite.ctx, filepath.Join(suite.dir, "x"), "")
	suite.ErrorIs(err, ErrInvalidFilename)
}

func (suite *docragTestSuite) TestIngestExtractionFailure() {
	_, err := suite.svc.Ingest(suite.ctx, filepath.Join(suite.dir, "missing.pdf"), "missing.pdf")
	suite.ErrorIs(err, extract.ErrExtraction)
}

func TestDocragTestSuite(t *testing.T) {
	suite.Run(t, new(docragTestSuite))
}

func TestNewServiceDimensionMismatch(t *testing.T) {
	cfg := DefaultConfig()

	index, err := chromem.NewChromemIndex(cfg.Vector)
	if err != nil {
		assert.Fail(t, err.Error())
		return
	}

	_, err = NewService(context.Background(), cfg,
		extract.NewExtractor(nil),
		embedding.NewHashEmbedder(8),
		index,
		generator.NewMockGenerator(),
	)

	assert.ErrorIs(t, err, vector.ErrDimensionMismatch)
}
