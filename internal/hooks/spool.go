package hooks

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"

	"github.com/Iron-Ham/agentwatch/internal/errors"
	"github.com/Iron-Ham/agentwatch/internal/logging"
)

const (
	spoolExt       = ".json"
	spoolTmpPrefix = ".tmp-"
)

// envelope is the on-disk form of a spooled hook.
type envelope struct {
	AgentID    string          `json:"agent_id"`
	ReceivedAt time.Time       `json:"received_at"`
	Payload    json.RawMessage `json:"payload"`
}

// Spool is a directory of pending hook payloads. Writers are short-lived
// `agentwatch hook` processes; the watch daemon consumes and deletes files.
type Spool struct {
	dir    string
	logger *logging.Logger
	now    func() time.Time
}

// NewSpool creates a Spool rooted at dir.
func NewSpool(dir string, logger *logging.Logger) *Spool {
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Spool{dir: dir, logger: logger.WithComponent("spool"), now: time.Now}
}

// Dir returns the spool directory.
func (s *Spool) Dir() string { return s.dir }

// Write stores one payload. The file appears atomically under its final
// name so a watcher never reads a partial write.
func (s *Spool) Write(agentID string, payload []byte) (string, error) {
	if agentID == "" {
		return "", fmt.Errorf("agent id required")
	}
	if !json.Valid(payload) {
		return "", fmt.Errorf("hook payload is not valid JSON")
	}
	if err := os.MkdirAll(s.dir, 0o700); err != nil {
		return "", fmt.Errorf("create spool dir: %w", err)
	}

	now := s.now()
	data, err := json.Marshal(envelope{AgentID: agentID, ReceivedAt: now, Payload: payload})
	if err != nil {
		return "", err
	}

	tmp, err := os.CreateTemp(s.dir, spoolTmpPrefix+"*")
	if err != nil {
		return "", fmt.Errorf("create spool file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("write spool file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("close spool file: %w", err)
	}

	name := fmt.Sprintf("%020d-%s%s", now.UnixNano(), uuid.NewString(), spoolExt)
	final := filepath.Join(s.dir, name)
	if err := os.Rename(tmpPath, final); err != nil {
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("publish spool file: %w", err)
	}
	return final, nil
}

// Drain processes every pending file in name order, which is arrival order.
func (s *Spool) Drain(ctx context.Context, intake *Intake) (int, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() && isSpoolFile(e.Name()) {
			names = append(names, e.Name())
		}
	}
	slices.Sort(names)

	for _, name := range names {
		s.process(ctx, intake, filepath.Join(s.dir, name))
	}
	return len(names), nil
}

// Watch drains the spool and then processes new files as they appear until
// ctx is cancelled.
func (s *Spool) Watch(ctx context.Context, intake *Intake) error {
	if err := os.MkdirAll(s.dir, 0o700); err != nil {
		return fmt.Errorf("create spool dir: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	if err := watcher.Add(s.dir); err != nil {
		return fmt.Errorf("failed to watch spool dir: %w", err)
	}

	// Files written before the watch started.
	if n, err := s.Drain(ctx, intake); err != nil {
		s.logger.Warn("failed to drain spool", "error", err)
	} else if n > 0 {
		s.logger.Debug("drained spool", "files", n)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			if !isSpoolFile(filepath.Base(event.Name)) {
				continue
			}
			s.process(ctx, intake, event.Name)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.logger.Warn("spool watcher error", "error", err)
		}
	}
}

// process hands one file to the intake and removes it. Unreadable and
// rejected files are removed too so they are not retried forever.
func (s *Spool) process(ctx context.Context, intake *Intake, path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn("failed to read spool file", "path", path, "error", err)
		}
		return
	}
	defer func() {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			s.logger.Warn("failed to remove spool file", "path", path, "error", err)
		}
	}()

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		s.logger.Warn("discarding malformed spool file", "path", path, "error", err)
		return
	}
	if _, err := intake.Handle(ctx, env.AgentID, env.Payload, env.ReceivedAt); err != nil {
		s.logger.Warn("hook rejected", "agent_id", env.AgentID, "error", err,
			"severity", errors.GetSeverity(err).String())
	}
}

func isSpoolFile(name string) bool {
	return strings.HasSuffix(name, spoolExt) && !strings.HasPrefix(name, spoolTmpPrefix)
}
