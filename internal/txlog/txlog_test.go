package txlog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogger_DisabledIsANoOp(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")
	logger, err := New(dir, false)
	require.NoError(t, err)

	tx := logger.Begin()
	require.NoError(t, tx.WriteRequest([]byte("h"), []byte("b")))
	require.NoError(t, tx.WriteResponse([]byte("h"), []byte("b")))
	require.NoError(t, tx.Finish("cred", "/v1/messages", "200"))

	_, err = os.Stat(dir)
	assert.True(t, os.IsNotExist(err), "a disabled logger must not create its directory")
}

func TestLogger_WritesNumberedFilesAndIndex(t *testing.T) {
	dir := t.TempDir()
	logger, err := New(dir, true)
	require.NoError(t, err)
	defer logger.Close()

	tx := logger.Begin()
	require.NoError(t, tx.WriteRequest([]byte("REQ-HEADER"), []byte("REQ-BODY")))
	require.NoError(t, tx.WriteResponse([]byte("RES-HEADER"), []byte("RES-BODY")))
	require.NoError(t, tx.Finish("cred-1", "/v1/messages", "200"))

	body, err := os.ReadFile(filepath.Join(dir, "0001-req.body"))
	require.NoError(t, err)
	assert.Equal(t, "REQ-BODY", string(body))

	index, err := os.ReadFile(filepath.Join(dir, "index.txt"))
	require.NoError(t, err)
	assert.Contains(t, string(index), "0001\tcred-1\t/v1/messages\t200")
}

func TestLogger_SequenceIncrementsAcrossTransactions(t *testing.T) {
	dir := t.TempDir()
	logger, err := New(dir, true)
	require.NoError(t, err)
	defer logger.Close()

	tx1 := logger.Begin()
	tx2 := logger.Begin()
	assert.NotEqual(t, tx1.prefix, tx2.prefix)
	assert.Equal(t, "0001", tx1.prefix)
	assert.Equal(t, "0002", tx2.prefix)
}
