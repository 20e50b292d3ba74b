package obslog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupWritesJSONRecordsToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "engine.log")
	logger, cleanup, err := Setup(Config{Level: "info", FilePath: path, MaxSizeMB: 10, MaxFiles: 3})
	require.NoError(t, err)
	defer cleanup()

	logger.Info("index built", "chunks", 42)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"index built"`)
	assert.Contains(t, string(data), `"chunks":42`)
}

func TestSetupWithoutFilePathLogsToStderrOnly(t *testing.T) {
	logger, cleanup, err := Setup(Config{Level: "debug"})
	require.NoError(t, err)
	defer cleanup()
	assert.NotNil(t, logger)
}

func TestRotatingWriterRotatesPastMaxSize(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.log")
	w, err := NewRotatingWriter(path, 0, 2) // maxSize 0 forces rotation on every write
	require.NoError(t, err)
	defer w.Close()

	_, err = w.Write([]byte("first\n"))
	require.NoError(t, err)
	_, err = w.Write([]byte("second\n"))
	require.NoError(t, err)

	_, statErr := os.Stat(path + ".1")
	assert.NoError(t, statErr)
}

func TestRotatingWriterReportsRotatedFileCount(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.log")
	w, err := NewRotatingWriter(path, 0, 3)
	require.NoError(t, err)
	defer w.Close()

	count, err := w.RotatedFileCount()
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	_, err = w.Write([]byte("first\n"))
	require.NoError(t, err)
	_, err = w.Write([]byte("second\n"))
	require.NoError(t, err)

	count, err = w.RotatedFileCount()
	require.NoError(t, err)
	assert.Equal(t, 2, count) // maxSize 0 rotates on both writes: test.log.1 and test.log.2
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, "DEBUG", parseLevel("debug").String())
	assert.Equal(t, "WARN", parseLevel("warn").String())
	assert.Equal(t, "ERROR", parseLevel("error").String())
	assert.Equal(t, "INFO", parseLevel("bogus").String())
}
