// Package watch streams the contents of a shader file as it is edited.
package watch

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// File sends the contents of path now and again after every change, until
// ctx is done, then closes the channel. The parent directory is watched so
// saves that replace the file are seen. Empty or unchanged contents are not
// resent, and a value not yet received is replaced by a newer one.
func File(ctx context.Context, path string) (<-chan string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", path, err)
	}
	initial, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", filepath.Dir(abs), err)
	}

	out := make(chan string, 1)
	last := string(initial)
	out <- last

	go func() {
		defer close(out)
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != abs {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
					continue
				}
				data, err := os.ReadFile(abs)
				if err != nil {
					log.Printf("Warning: failed to reload %s: %v", path, err)
					continue
				}
				// Truncation during a save shows up as an empty read.
				if len(data) == 0 || string(data) == last {
					continue
				}
				last = string(data)
				replace(out, last)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Printf("Warning: file watcher error: %v", err)
			}
		}
	}()
	return out, nil
}

// replace sends s on the single-slot channel, dropping a pending value.
func replace(out chan string, s string) {
	for {
		select {
		case out <- s:
			return
		default:
		}
		select {
		case <-out:
		default:
		}
	}
}
