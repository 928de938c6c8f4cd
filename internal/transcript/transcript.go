// Package transcript keeps an append-only record of each session's
// conversation log as zstd-compressed JSON lines.
package transcript

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/tatianab/dreamcage/internal/models"
)

// Dir is where transcripts are written. Overridable via config.
var Dir = ".transcripts"

// Line is one transcript record. Markers frame a session; entries carry
// the history log.
type Line struct {
	Time   time.Time            `json:"time"`
	Marker string               `json:"marker,omitempty"` // "start", "reset", "game_over", "victory"
	Player string               `json:"player,omitempty"`
	Entry  *models.HistoryEntry `json:"entry,omitempty"`
}

// Writer appends transcript lines to a single compressed file.
type Writer struct {
	mu  sync.Mutex
	f   *os.File
	enc *zstd.Encoder
	w   *bufio.Writer
}

// NewWriter opens a timestamped transcript file under Dir.
func NewWriter() (*Writer, error) {
	if err := os.MkdirAll(Dir, 0755); err != nil {
		return nil, err
	}

	name := fmt.Sprintf("session-%s.jsonl.zst", time.Now().UTC().Format("2006-01-02-150405"))
	f, err := os.Create(filepath.Join(Dir, name))
	if err != nil {
		return nil, err
	}

	enc, err := zstd.NewWriter(f)
	if err != nil {
		f.Close()
		return nil, err
	}

	return &Writer{f: f, enc: enc, w: bufio.NewWriter(enc)}, nil
}

// Append writes one line and flushes it through the encoder.
func (t *Writer) Append(line Line) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.f == nil {
		return fmt.Errorf("transcript closed")
	}
	if line.Time.IsZero() {
		line.Time = time.Now().UTC()
	}

	b, err := json.Marshal(line)
	if err != nil {
		return err
	}
	if _, err := t.w.Write(b); err != nil {
		return err
	}
	if err := t.w.WriteByte('\n'); err != nil {
		return err
	}
	if err := t.w.Flush(); err != nil {
		return err
	}
	return t.enc.Flush()
}

// SessionStarted records the start-of-session marker. Errors are logged
// rather than returned so a broken transcript never interrupts play.
func (t *Writer) SessionStarted(player string) {
	t.append(Line{Marker: "start", Player: player})
}

// EntryAppended records one history entry.
func (t *Writer) EntryAppended(e models.HistoryEntry) {
	entry := e
	t.append(Line{Entry: &entry})
}

// SessionEnded records a terminal marker: "reset", "game_over" or
// "victory".
func (t *Writer) SessionEnded(marker string) {
	t.append(Line{Marker: marker})
}

func (t *Writer) append(line Line) {
	if err := t.Append(line); err != nil {
		log.Printf("transcript: %v", err)
	}
}

// Close flushes and closes the transcript file.
func (t *Writer) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.f == nil {
		return nil
	}
	if err := t.w.Flush(); err != nil {
		return err
	}
	if err := t.enc.Close(); err != nil {
		return err
	}
	err := t.f.Close()
	t.f = nil
	return err
}

// Read decodes every line of a transcript file, oldest first.
func Read(path string) ([]Line, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return nil, err
	}
	defer dec.Close()

	var lines []Line
	scanner := bufio.NewScanner(dec)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		var line Line
		if err := json.Unmarshal(scanner.Bytes(), &line); err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}
	return lines, scanner.Err()
}
