package feed

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/goccy/go-json"

	"github.com/signalsfoundry/threatglobe/internal/logging"
	"github.com/signalsfoundry/threatglobe/model"
)

// ErrMalformed is returned for documents that are neither an event array nor
// an {"attacks": [...]} envelope.
var ErrMalformed = errors.New("feed: malformed attack document")

type envelope struct {
	Attacks []model.AttackEvent `json:"attacks"`
}

// Decode reads an attack document: either a JSON array of events or an
// object with an "attacks" array.
func Decode(r io.Reader) ([]model.AttackEvent, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read attack document: %w", err)
	}
	return decodeBytes(data)
}

func decodeBytes(data []byte) ([]model.AttackEvent, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty", ErrMalformed)
	}
	switch data[0] {
	case '[':
		var events []model.AttackEvent
		if err := json.Unmarshal(data, &events); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		return events, nil
	case '{':
		var env envelope
		if err := json.Unmarshal(data, &env); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		return env.Attacks, nil
	default:
		return nil, fmt.Errorf("%w: unexpected %q", ErrMalformed, data[0])
	}
}

// LoadFile decodes the attack document at path.
func LoadFile(path string) ([]model.AttackEvent, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open attack file: %w", err)
	}
	defer f.Close()
	events, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return events, nil
}

// Watch loads path once, then reloads it whenever it is written, created or
// renamed into place, passing every successful load to fn. Decode failures
// are logged and the previous events stay in effect. Watch returns when ctx
// is done.
func Watch(ctx context.Context, path string, log logging.Logger, fn func([]model.AttackEvent)) error {
	if log == nil {
		log = logging.Noop()
	}
	events, err := LoadFile(path)
	if err != nil {
		return err
	}
	fn(events)

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer w.Close()

	// Watch the directory so editors that replace the file are still seen.
	if err := w.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("watch %s: %w", path, err)
	}
	target := filepath.Clean(path)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			log.Warn(ctx, "attack file watcher error", logging.Err(err))
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			events, err := LoadFile(path)
			if err != nil {
				log.Warn(ctx, "attack file reload failed", logging.String("path", path), logging.Err(err))
				continue
			}
			log.Debug(ctx, "attack file reloaded", logging.String("path", path), logging.Int("events", len(events)))
			fn(events)
		}
	}
}
