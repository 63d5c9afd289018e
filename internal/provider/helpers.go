package provider

import (
	"bufio"
	"bytes"
	"encoding/json"
	"hash/maphash"
	"os"
	"strings"

	"github.com/tokenuze/tokenuze/internal/timeutil"
	"github.com/tokenuze/tokenuze/internal/types"
)

// MaxSessionFileBytes caps how much of a single session file is read. When
// the cap is hit mid-read, parsing halts cleanly and already-emitted events
// are retained.
const MaxSessionFileBytes = 128 << 20

// maxLineBytes bounds a single JSONL line; Claude logs carry whole tool
// outputs on one line.
const maxLineBytes = 16 << 20

// StreamJSONLines calls handler for every non-empty stripped line of a JSONL
// file. Handler errors are reported to the parse context as record-level
// warnings and the scan continues; they never abort the file.
func (c *ParseContext) StreamJSONLines(path string, maxBytes int64, handler func(line []byte, index int) error) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if maxBytes <= 0 {
		maxBytes = MaxSessionFileBytes
	}

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 256*1024), maxLineBytes)

	var read int64
	index := -1
	for scanner.Scan() {
		index++
		line := scanner.Bytes()
		read += int64(len(line)) + 1
		if read > maxBytes {
			c.Logger.Warn("session file exceeds read cap, truncating",
				"provider", c.Provider, "path", path, "line_index", index)
			return nil
		}
		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}
		if err := handler(line, index); err != nil {
			c.Logger.Warn("record parse failed",
				"provider", c.Provider, "path", path, "line_index", index, "error", err)
		}
	}
	return scanner.Err()
}

// DuplicateNonEmpty returns a trimmed owned copy of s, or "" when s is blank.
func DuplicateNonEmpty(s string) string {
	return strings.TrimSpace(s)
}

// JSONValueToU64 converts integer, float, or numeric-string JSON values into
// a token count; anything else is zero.
func JSONValueToU64(v any) uint64 {
	switch x := v.(type) {
	case float64:
		if x <= 0 {
			return 0
		}
		return uint64(x)
	case string:
		return types.ParseTokenNumber(x)
	case json.Number:
		return types.ParseTokenNumber(x.String())
	case int:
		if x <= 0 {
			return 0
		}
		return uint64(x)
	case int64:
		if x <= 0 {
			return 0
		}
		return uint64(x)
	}
	return 0
}

// AccumulateUsageObject folds a decoded usage object (key → numeric value)
// into acc via the canonical alias table.
func AccumulateUsageObject(acc *types.UsageAccumulator, obj map[string]any) {
	for key, val := range obj {
		acc.ApplyKey(key, JSONValueToU64(val))
	}
}

// Timestamped couples a record's original timestamp text with its bucketing
// date in the run's offset.
type Timestamped struct {
	Text         string
	LocalISODate string
}

// TimestampFromText parses a record timestamp; ok=false means the record
// cannot be bucketed and must be dropped.
func (c *ParseContext) TimestampFromText(text string) (Timestamped, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Timestamped{}, false
	}
	epoch, err := timeutil.ParseISO8601ToUTCSeconds(text)
	if err != nil {
		return Timestamped{}, false
	}
	return Timestamped{
		Text:         text,
		LocalISODate: timeutil.ISODateForOffset(epoch, c.TZOffsetMinutes),
	}, true
}

var dedupeSeed = maphash.MakeSeed()

// FingerprintPair hashes a (message ID, request ID) pair into the 64-bit
// fingerprint the deduper stores.
func FingerprintPair(messageID, requestID string) uint64 {
	return maphash.String(dedupeSeed, messageID) ^ maphash.String(dedupeSeed, requestID)
}
