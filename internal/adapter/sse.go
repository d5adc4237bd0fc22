package adapter

import (
	"bufio"
	"io"
	"strings"
)

const (
	dataPrefix  = "data:"
	doneMarker  = "[DONE]"
	maxLineSize = 1024 * 1024
)

// readDataLines calls fn with the payload of every "data:" line in r until
// the stream ends, fn returns false, or the [DONE] sentinel arrives. Lines
// are buffered until their newline, so payloads split across network reads
// arrive whole. Comment and other field lines are ignored.
func readDataLines(r io.Reader, fn func(payload string) bool) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)

	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if !strings.HasPrefix(line, dataPrefix) {
			continue
		}
		payload := strings.TrimPrefix(strings.TrimPrefix(line, dataPrefix), " ")
		if payload == doneMarker {
			return nil
		}
		if payload == "" {
			continue
		}
		if !fn(payload) {
			return nil
		}
	}
	return scanner.Err()
}
