package process

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/xid"
)

// workspace is the scratch directory holding one execution's script.
// It belongs to exactly one Execute call and is removed when that call returns.
type workspace struct {
	dir    string
	script string
}

// newWorkspace creates a fresh directory under parent and writes code into a
// uniquely named script file inside it.
//
// File names look like code_exec_cv37rs3pp9olc6atsptg.py. xid values are
// unique across goroutines and processes, so concurrent executions sharing a
// parent directory never collide.
func newWorkspace(parent, ext, code string) (*workspace, error) {
	dir, err := os.MkdirTemp(parent, "code-exec-*")
	if err != nil {
		return nil, fmt.Errorf("process: creating scratch dir: %w", err)
	}
	dir, err = filepath.Abs(dir)
	if err != nil {
		os.RemoveAll(dir)
		return nil, fmt.Errorf("process: resolving scratch dir: %w", err)
	}

	script := filepath.Join(dir, "code_exec_"+xid.New().String()+ext)
	if err := os.WriteFile(script, []byte(code), 0o600); err != nil {
		os.RemoveAll(dir)
		return nil, fmt.Errorf("process: writing script: %w", err)
	}

	return &workspace{dir: dir, script: script}, nil
}

// remove deletes the scratch directory and everything the child left in it.
func (w *workspace) remove() error {
	return os.RemoveAll(w.dir)
}
