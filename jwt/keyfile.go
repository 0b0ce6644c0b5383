package jwt

import (
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// keyFile is the on-disk layout read by [LoadKeyFile]:
//
//	method: hs256
//	current: k2
//	keys:
//	  - id: k1
//	    secret: c2VjcmV0LW9uZQ==
//	    activated_at: 2026-01-01T00:00:00Z
//	    expires_at: 2026-02-01T00:00:00Z
//	  - id: k2
//	    secret: c2VjcmV0LXR3bw==
//	    activated_at: 2026-01-15T00:00:00Z
type keyFile struct {
	Method  string         `yaml:"method"`
	Current string         `yaml:"current"`
	Keys    []keyFileEntry `yaml:"keys"`
}

type keyFileEntry struct {
	ID          string `yaml:"id"`
	Secret      string `yaml:"secret"`
	ActivatedAt string `yaml:"activated_at"`
	ExpiresAt   string `yaml:"expires_at,omitempty"`
}

// ParseKeyFile decodes YAML key configuration into a validated [KeyRing].
// Secrets are standard base64.
func ParseKeyFile(data []byte) (*KeyRing, error) {
	var raw keyFile
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode key file: %w", err)
	}

	keys := make([]SigningKey, 0, len(raw.Keys))
	for _, e := range raw.Keys {
		secret, err := base64.StdEncoding.DecodeString(e.Secret)
		if err != nil {
			return nil, fmt.Errorf("key %q: invalid base64 secret: %w", e.ID, err)
		}
		k := SigningKey{ID: e.ID, Secret: secret}
		if e.ActivatedAt != "" {
			at, err := time.Parse(time.RFC3339, e.ActivatedAt)
			if err != nil {
				return nil, fmt.Errorf("key %q: invalid activated_at: %w", e.ID, err)
			}
			k.ActivatedAt = at
		}
		if e.ExpiresAt != "" {
			exp, err := time.Parse(time.RFC3339, e.ExpiresAt)
			if err != nil {
				return nil, fmt.Errorf("key %q: invalid expires_at: %w", e.ID, err)
			}
			k.ExpiresAt = &exp
		}
		keys = append(keys, k)
	}

	return NewKeyRing(SigningMethod(raw.Method), raw.Current, keys...)
}

// LoadKeyFile reads and parses the key file at path.
func LoadKeyFile(path string) (*KeyRing, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read key file: %w", err)
	}
	return ParseKeyFile(data)
}

// FileKeySource serves the key ring loaded from a YAML file and swaps in a
// new ring whenever the file changes on disk. A changed file that fails to
// parse or validate leaves the previous ring in place.
type FileKeySource struct {
	path string
	log  logrus.FieldLogger
	ring atomic.Pointer[KeyRing]

	mu      sync.Mutex
	watcher *fsnotify.Watcher
	done    chan struct{}
	wg      sync.WaitGroup
}

// NewFileKeySource loads path once. Call [FileKeySource.Watch] to enable hot reload.
func NewFileKeySource(path string, log logrus.FieldLogger) (*FileKeySource, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	s := &FileKeySource{path: path, log: log}
	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// KeyRing returns the most recently loaded valid ring.
func (s *FileKeySource) KeyRing() *KeyRing {
	if s == nil {
		return nil
	}
	return s.ring.Load()
}

// Reload re-reads the key file and swaps the ring on success.
func (s *FileKeySource) Reload() error {
	ring, err := LoadKeyFile(s.path)
	if err != nil {
		return err
	}
	prev := s.ring.Swap(ring)
	fields := logrus.Fields{"path": s.path, "current_kid": ring.CurrentID(), "kids": ring.IDs()}
	if prev != nil {
		fields["previous_kid"] = prev.CurrentID()
	}
	s.log.WithFields(fields).Info("signing keys loaded")
	return nil
}

// Watch starts watching the key file's directory. Editors and secret
// mounters usually replace the file rather than write it, so events are
// matched by file name.
func (s *FileKeySource) Watch() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.watcher != nil {
		return errors.New("key file watcher already running")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create key file watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(s.path)); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("watch key file directory: %w", err)
	}

	s.watcher = watcher
	s.done = make(chan struct{})
	s.wg.Add(1)
	go s.run(watcher, s.done)

	return nil
}

func (s *FileKeySource) run(watcher *fsnotify.Watcher, done <-chan struct{}) {
	defer s.wg.Done()

	target := filepath.Clean(s.path)
	for {
		select {
		case <-done:
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if err := s.Reload(); err != nil {
				s.log.WithError(err).WithField("path", s.path).Error("signing key reload rejected; keeping previous key ring")
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			s.log.WithError(err).Warn("key file watcher error")
		}
	}
}

// Close stops the watcher if one is running.
func (s *FileKeySource) Close() error {
	s.mu.Lock()
	watcher := s.watcher
	done := s.done
	s.watcher = nil
	s.done = nil
	s.mu.Unlock()

	if watcher == nil {
		return nil
	}
	close(done)
	err := watcher.Close()
	s.wg.Wait()
	return err
}
