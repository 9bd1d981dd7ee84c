package hooks

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

const defaultDebounceDuration = 200 * time.Millisecond

// fileHook is the on-disk form of a hook definition.
type fileHook struct {
	ID       int               `yaml:"id"`
	Name     string            `yaml:"name"`
	Type     string            `yaml:"type"`
	Template map[string]string `yaml:"template"`
}

type fileHooks struct {
	Hooks []fileHook `yaml:"hooks"`
}

// FileSource reads hook definitions from a YAML file.
type FileSource struct {
	path     string
	debounce time.Duration
}

// NewFileSource creates a source reading path.
func NewFileSource(path string) *FileSource {
	return &FileSource{
		path:     path,
		debounce: defaultDebounceDuration,
	}
}

// Path returns the watched file.
func (s *FileSource) Path() string {
	return s.path
}

// Fetch reads and parses the hook file.
func (s *FileSource) Fetch(ctx context.Context) ([]Record, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("reading hook file: %w", err)
	}

	var doc fileHooks
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing hook file: %w", err)
	}

	records := make([]Record, 0, len(doc.Hooks))
	for _, h := range doc.Hooks {
		tmpl := make(map[string]string, len(h.Template))
		for k, v := range h.Template {
			tmpl[strings.ToUpper(k)] = v
		}
		records = append(records, Record{
			ID:       h.ID,
			Name:     h.Name,
			Type:     h.Type,
			Template: tmpl,
		})
	}

	return records, nil
}

// Watch calls onChange after the hook file is written, created or replaced.
// Bursts of events are collapsed into a single call. Watch blocks until ctx
// is done.
func (s *FileSource) Watch(ctx context.Context, onChange func()) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating fsnotify watcher: %w", err)
	}
	defer watcher.Close()

	// Watch the directory so editors that replace the file are still seen.
	dir := filepath.Dir(s.path)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watching %s: %w", dir, err)
	}

	target := filepath.Clean(s.path)

	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}

			log.Debug().Str("file", event.Name).Str("op", event.Op.String()).Msg("Hook file changed")

			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(s.debounce, onChange)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Warn().Err(err).Str("file", s.path).Msg("Hook file watcher error")
		}
	}
}
