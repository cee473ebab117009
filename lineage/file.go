package lineage

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/consent-lineage/consent-sync-service/domain"
)

// FileLog appends entries as JSON lines to a single file. Reopening an
// existing file resumes its sequence, so the assigned seq stays unique
// across restarts.
type FileLog struct {
	mu      sync.Mutex
	file    *os.File
	encoder *json.Encoder
	nextSeq int64
}

func OpenFileLog(path string) (*FileLog, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0600)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrStorage, err)
	}
	nextSeq, err := resumeSeq(file)
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("%w: %v", domain.ErrStorage, err)
	}
	return &FileLog{file: file, encoder: json.NewEncoder(file), nextSeq: nextSeq}, nil
}

// resumeSeq scans the existing entries and returns the seq the next
// append gets.
func resumeSeq(file *os.File) (int64, error) {
	last := int64(0)
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var entry Entry
		if err := json.Unmarshal(line, &entry); err != nil {
			return 0, err
		}
		if entry.Seq > last {
			last = entry.Seq
		}
	}
	if err := scanner.Err(); err != nil {
		return 0, err
	}
	return last + 1, nil
}

func (l *FileLog) Append(ctx context.Context, entry Entry) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	entry.Seq = l.nextSeq
	if err := l.encoder.Encode(entry); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrStorage, err)
	}
	l.nextSeq++
	return nil
}

func (l *FileLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.file.Close()
}
