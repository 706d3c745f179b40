package replay

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"unicode"

	"github.com/roman-kulish/balloon-telemetry/internal/telemetry"
)

// Telemetry log lines can carry large telemetry blocks; allow tokens
// well beyond the bufio.Scanner default.
const maxLineSize = 1 << 20

// ReadRecords loads a telemetry log from disk. The format is detected
// from the first non-whitespace byte: '[' selects a single JSON
// array, anything else selects NDJSON (one JSON object per line).
//
// In NDJSON mode malformed lines and blank lines are skipped; a parse
// error on one line never aborts the stream. A malformed array file
// is an error, since no record boundary survives it. An empty file
// yields an empty slice and no error. An unopenable path returns the
// underlying os error.
func ReadRecords(path string) ([]telemetry.Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	br := bufio.NewReaderSize(f, 64*1024)

	first, err := peekNonSpace(br)
	if err == io.EOF {
		return []telemetry.Record{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	if first == '[' {
		return readArray(br, path)
	}
	return readLines(br), nil
}

// peekNonSpace consumes leading whitespace and reports the first
// significant byte without consuming it.
func peekNonSpace(br *bufio.Reader) (byte, error) {
	for {
		b, err := br.ReadByte()
		if err != nil {
			return 0, err
		}
		if unicode.IsSpace(rune(b)) {
			continue
		}
		if err := br.UnreadByte(); err != nil {
			return 0, err
		}
		return b, nil
	}
}

func readArray(r io.Reader, path string) ([]telemetry.Record, error) {
	var raws []json.RawMessage
	if err := json.NewDecoder(r).Decode(&raws); err != nil {
		return nil, fmt.Errorf("parsing JSON array %s: %w", path, err)
	}

	records := make([]telemetry.Record, 0, len(raws))
	for _, raw := range raws {
		rec, err := telemetry.UnmarshalRecord(raw)
		if err != nil {
			// A non-object element inside a well-formed array; drop
			// it, the surrounding records are still good.
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}

func readLines(r io.Reader) []telemetry.Record {
	var records []telemetry.Record

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 || isBlank(line) {
			continue
		}

		rec, err := telemetry.UnmarshalRecord(line)
		if err != nil {
			continue // ignore bad lines
		}
		records = append(records, rec)
	}

	// A scanner error mid-file (oversized line, read failure) ends
	// the stream early; the records read so far are still usable,
	// matching the lenient per-line policy.
	if records == nil {
		records = []telemetry.Record{}
	}
	return records
}

func isBlank(line []byte) bool {
	for _, b := range line {
		if !unicode.IsSpace(rune(b)) {
			return false
		}
	}
	return true
}
