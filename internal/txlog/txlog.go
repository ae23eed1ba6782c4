// Package txlog implements the optional per-transaction file dumper of
// spec §6: one directory per process run, one numbered file set per
// request. Grounded on the selector package's atomic counter idiom
// (internal/selector's round-robin counter) generalized to a
// per-transaction sequence guarding concurrent writers without a shared
// file handle.
package txlog

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
)

// Logger writes one file set per transaction under Dir, numbered by a
// monotonic sequence (spec §5: "serializes writes through a monotonic
// sequence number... no shared file handle contention").
type Logger struct {
	dir     string
	enabled bool
	seq     atomic.Uint64

	indexMu sync.Mutex
	index   *os.File
}

// New creates dir (if enabled) and opens its index.txt. A disabled Logger
// accepts every call as a no-op, so callers never need to branch on
// whether logging is on.
func New(dir string, enabled bool) (*Logger, error) {
	l := &Logger{dir: dir, enabled: enabled}
	if !enabled {
		return l, nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("txlog: create dir: %w", err)
	}
	f, err := os.OpenFile(filepath.Join(dir, "index.txt"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("txlog: open index: %w", err)
	}
	if _, err := f.WriteString("seq\tcredential\troute\tstatus\n"); err != nil {
		f.Close()
		return nil, err
	}
	l.index = f
	return l, nil
}

// Transaction is one request's file set, returned by Begin.
type Transaction struct {
	logger *Logger
	seq    uint64
	prefix string
}

// Begin reserves the next sequence number and its file prefix.
func (l *Logger) Begin() *Transaction {
	n := l.seq.Add(1)
	return &Transaction{
		logger: l,
		seq:    n,
		prefix: fmt.Sprintf("%04d", n),
	}
}

func (t *Transaction) path(suffix string) string {
	return filepath.Join(t.logger.dir, t.prefix+"-"+suffix)
}

// WriteRequest dumps the request header and body, if logging is enabled.
func (t *Transaction) WriteRequest(header, body []byte) error {
	if !t.logger.enabled {
		return nil
	}
	if err := os.WriteFile(t.path("req.header"), header, 0o644); err != nil {
		return err
	}
	return os.WriteFile(t.path("req.body"), body, 0o644)
}

// WriteResponse dumps the response header and body.
func (t *Transaction) WriteResponse(header, body []byte) error {
	if !t.logger.enabled {
		return nil
	}
	if err := os.WriteFile(t.path("res.header"), header, 0o644); err != nil {
		return err
	}
	return os.WriteFile(t.path("res.body"), body, 0o644)
}

// WriteMeta dumps a flat key=value properties file summarizing the
// transaction (credential id, route, status, etc).
func (t *Transaction) WriteMeta(props map[string]string) error {
	if !t.logger.enabled {
		return nil
	}
	var b []byte
	for k, v := range props {
		b = append(b, []byte(k+"="+v+"\n")...)
	}
	return os.WriteFile(t.path("meta.properties"), b, 0o644)
}

// Finish appends the transaction's one-line summary to index.txt.
func (t *Transaction) Finish(credentialID, route, status string) error {
	if !t.logger.enabled {
		return nil
	}
	t.logger.indexMu.Lock()
	defer t.logger.indexMu.Unlock()
	_, err := fmt.Fprintf(t.logger.index, "%s\t%s\t%s\t%s\n", t.prefix, credentialID, route, status)
	return err
}

// Close releases the index file handle.
func (l *Logger) Close() error {
	if !l.enabled || l.index == nil {
		return nil
	}
	return l.index.Close()
}
