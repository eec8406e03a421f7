// Package audit keeps an append-only journal of committed task changes in
// <home>/logs/history.jsonl.
package audit

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/basket/tasktrack/internal/bus"
)

const fileName = "history.jsonl"

// Entry is one journal line.
type Entry struct {
	Timestamp string `json:"timestamp"`
	Op        string `json:"op"`
	TaskID    int64  `json:"task_id,omitempty"`
	Rows      int64  `json:"rows"`
	Seq       uint64 `json:"seq"`
}

func Path(homeDir string) string {
	return filepath.Join(homeDir, "logs", fileName)
}

// Journal appends one entry per change event. Entries are only ever appended.
type Journal struct {
	mu   sync.Mutex
	file *os.File
	now  func() time.Time

	bus *bus.Bus
	sub *bus.Subscription
	wg  sync.WaitGroup
}

func Open(homeDir string) (*Journal, error) {
	logDir := filepath.Join(homeDir, "logs")
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(Path(homeDir), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	return &Journal{file: f, now: time.Now}, nil
}

// Record appends an entry for ev.
func (j *Journal) Record(seq uint64, ev bus.TaskChangedEvent) error {
	line, err := json.Marshal(Entry{
		Timestamp: j.now().UTC().Format(time.RFC3339Nano),
		Op:        ev.Op,
		TaskID:    ev.TaskID,
		Rows:      ev.Rows,
		Seq:       seq,
	})
	if err != nil {
		return err
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.file == nil {
		return os.ErrClosed
	}
	_, err = j.file.Write(append(line, '\n'))
	return err
}

// Follow records every task change published on b until Close.
func (j *Journal) Follow(b *bus.Bus) {
	j.bus = b
	j.sub = b.Subscribe(bus.TopicTasksChanged)
	j.wg.Add(1)
	go func() {
		defer j.wg.Done()
		for event := range j.sub.Ch() {
			if ev, ok := event.Payload.(bus.TaskChangedEvent); ok {
				_ = j.Record(event.Seq, ev)
			}
		}
	}()
}

// Close stops following, writes the events already received and closes the
// file.
func (j *Journal) Close() error {
	if j.sub != nil {
		j.bus.Unsubscribe(j.sub)
		j.wg.Wait()
		j.sub = nil
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.file == nil {
		return nil
	}
	err := j.file.Close()
	j.file = nil
	return err
}

// Tail returns the last limit entries, oldest first. A missing journal has no
// entries. Lines that do not parse are skipped.
func Tail(homeDir string, limit int) ([]Entry, error) {
	f, err := os.Open(Path(homeDir))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var entries []Entry
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var e Entry
		if json.Unmarshal(sc.Bytes(), &e) != nil {
			continue
		}
		entries = append(entries, e)
		if limit > 0 && len(entries) > limit {
			entries = entries[1:]
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", fileName, err)
	}
	return entries, nil
}
