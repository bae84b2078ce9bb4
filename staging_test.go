package docrag

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStageDocument(t *testing.T) {
	assert := assert.New(t)

	dir := filepath.Join(t.TempDir(), "uploads")

	path, cleanup, err := StageDocument(dir, "../../etc/Report.PDF", strings.NewReader("payload"))
	if err != nil {
		assert.Fail(err.Error())
		return
	}

	assert.Equal(dir, filepath.Dir(path))
	assert.Equal(".PDF", filepath.Ext(path))
	assert.NotContains(path, "Report")

	data, err := os.ReadFile(path)
	if err != nil {
		assert.Fail(err.Error())
		return
	}

	assert.Equal("payload", string(data))

	cleanup()

	_, err = os.Stat(path)
	assert.True(os.IsNotExist(err))
}

func TestStageDocumentInvalidFilename(t *testing.T) {
	_, _, err := StageDocument(t.TempDir(), "  ", strings.NewReader("payload"))
	assert.ErrorIs(t, err, ErrInvalidFilename)
}
