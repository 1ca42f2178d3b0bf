package server

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/caas/audit-substrate/internal/compliance"
)

// PolicyWatcher loads every YAML policy document under dir through PAC at
// startup, then watches dir and recompiles on any change, so a new policy
// version goes live without a restart — the same role CirtusX's
// config.NewWatcher plays for its own config.yaml.
type PolicyWatcher struct {
	dir       string
	validator *compliance.SchemaValidator
	compiler  *compliance.Compiler
	log       *slog.Logger
}

// NewPolicyWatcher constructs a watcher over dir.
func NewPolicyWatcher(dir string, compiler *compliance.Compiler, log *slog.Logger) (*PolicyWatcher, error) {
	validator, err := compliance.NewSchemaValidator()
	if err != nil {
		return nil, fmt.Errorf("construct policy schema validator: %w", err)
	}
	if log == nil {
		log = slog.Default()
	}
	return &PolicyWatcher{dir: dir, validator: validator, compiler: compiler, log: log}, nil
}

// LoadAll compiles every *.yaml/*.yml document under the watched directory.
// A missing directory is not an error: Watch creates it when it starts.
func (w *PolicyWatcher) LoadAll() error {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read policy dir %s: %w", w.dir, err)
	}
	for _, entry := range entries {
		if entry.IsDir() || !isYAML(entry.Name()) {
			continue
		}
		path := filepath.Join(w.dir, entry.Name())
		if err := w.loadOne(path); err != nil {
			w.log.Error("policy document rejected", "path", path, "error", err)
		}
	}
	return nil
}

// Watch blocks (intended to run in its own goroutine) recompiling on every
// create/write event under the watched directory until stop is closed.
func (w *PolicyWatcher) Watch(stop <-chan struct{}) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create fsnotify watcher: %w", err)
	}
	defer watcher.Close()

	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return fmt.Errorf("create policy dir %s: %w", w.dir, err)
	}
	if err := watcher.Add(w.dir); err != nil {
		return fmt.Errorf("watch policy dir %s: %w", w.dir, err)
	}

	for {
		select {
		case <-stop:
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !isYAML(event.Name) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if err := w.loadOne(event.Name); err != nil {
				w.log.Error("policy document rejected", "path", event.Name, "error", err)
				continue
			}
			w.log.Info("recompiled policy document", "path", event.Name)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.log.Error("policy watcher error", "error", err)
		}
	}
}

func (w *PolicyWatcher) loadOne(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	var raw map[string]interface{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("%w: %v", compliance.ErrInvalidInput, err)
	}
	if err := w.validator.ValidateDocument(raw); err != nil {
		return err
	}
	policy, err := compliance.PolicyFromDocument(raw)
	if err != nil {
		return err
	}
	if _, err := w.compiler.Compile(policy); err != nil {
		return err
	}
	return nil
}

func isYAML(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".yaml" || ext == ".yml"
}
