package lineage

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMemoryLog(t *testing.T) {
	ctx := context.Background()

	t.Run("entries keep arrival order even on identical timestamps", func(t *testing.T) {
		log := NewMemoryLog()
		at := time.Date(2024, time.October, 24, 11, 1, 0, 0, time.UTC)

		assert.NoError(t, log.Append(ctx, Entry{SubjectID: "device:1", Transition: "validated", Timestamp: at}))
		assert.NoError(t, log.Append(ctx, Entry{SubjectID: "device:2", Transition: "rejected", Timestamp: at}))

		entries := log.Entries()
		assert.Len(t, entries, 2)
		assert.Equal(t, int64(1), entries[0].Seq)
		assert.Equal(t, int64(2), entries[1].Seq)
		assert.Equal(t, "device:1", entries[0].SubjectID)
	})
}

func TestFileLog(t *testing.T) {
	ctx := context.Background()

	t.Run("it writes one json object per line", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "lineage.log")
		log, err := OpenFileLog(path)
		assert.NoError(t, err)

		at := time.Date(2024, time.October, 24, 11, 1, 0, 0, time.UTC)
		assert.NoError(t, log.Append(ctx, Entry{
			SubjectID:  "device:1234-5678-ABCD",
			Transition: "validated",
			FromState:  "submitted",
			ToState:    "validated",
			Timestamp:  at,
			Actor:      "server",
			UserID:     "device:1234-5678-ABCD",
			Result:     "Access granted",
		}))
		assert.NoError(t, log.Append(ctx, Entry{SubjectID: "device:2", Transition: "rejected", Timestamp: at}))
		assert.NoError(t, log.Close())

		file, err := os.Open(path)
		assert.NoError(t, err)
		defer file.Close()

		var lines []Entry
		scanner := bufio.NewScanner(file)
		for scanner.Scan() {
			var entry Entry
			assert.NoError(t, json.Unmarshal(scanner.Bytes(), &entry))
			lines = append(lines, entry)
		}
		assert.NoError(t, scanner.Err())
		assert.Len(t, lines, 2)
		assert.Equal(t, int64(1), lines[0].Seq)
		assert.Equal(t, "Access granted", lines[0].Result)
		assert.Equal(t, int64(2), lines[1].Seq)
	})

	t.Run("reopening resumes the sequence", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "lineage.log")
		at := time.Date(2024, time.October, 24, 11, 1, 0, 0, time.UTC)

		log, err := OpenFileLog(path)
		assert.NoError(t, err)
		assert.NoError(t, log.Append(ctx, Entry{SubjectID: "device:1", Transition: "validated", Timestamp: at}))
		assert.NoError(t, log.Append(ctx, Entry{SubjectID: "device:1", Transition: "duplicate", Timestamp: at}))
		assert.NoError(t, log.Close())

		log, err = OpenFileLog(path)
		assert.NoError(t, err)
		assert.NoError(t, log.Append(ctx, Entry{SubjectID: "device:2", Transition: "validated", Timestamp: at}))
		assert.NoError(t, log.Close())

		file, err := os.Open(path)
		assert.NoError(t, err)
		defer file.Close()

		var seqs []int64
		scanner := bufio.NewScanner(file)
		for scanner.Scan() {
			var entry Entry
			assert.NoError(t, json.Unmarshal(scanner.Bytes(), &entry))
			seqs = append(seqs, entry.Seq)
		}
		assert.NoError(t, scanner.Err())
		assert.Equal(t, []int64{1, 2, 3}, seqs)
	})
}
