package openrouter

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

const maxLineSize = 1 << 20

// DeltaStream decodes the SSE body of a streaming completion into content
// deltas.
type DeltaStream struct {
	body    io.ReadCloser
	scanner *bufio.Scanner
	done    bool
}

func newDeltaStream(body io.ReadCloser) *DeltaStream {
	sc := bufio.NewScanner(body)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	return &DeltaStream{body: body, scanner: sc}
}

// Recv returns the next non-empty content delta. It returns io.EOF after the
// [DONE] marker or when the body ends.
func (s *DeltaStream) Recv() (string, error) {
	if s.done {
		return "", io.EOF
	}
	for s.scanner.Scan() {
		line := strings.TrimSpace(s.scanner.Text())
		// Comments (": OPENROUTER PROCESSING") and blank separators.
		if line == "" || strings.HasPrefix(line, ":") {
			continue
		}
		data, ok := strings.CutPrefix(line, "data:")
		if !ok {
			continue
		}
		data = strings.TrimSpace(data)
		if data == "[DONE]" {
			s.done = true
			return "", io.EOF
		}

		var chunk streamChunk
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			return "", fmt.Errorf("decoding stream chunk: %w", err)
		}
		if chunk.Error != nil {
			return "", fmt.Errorf("upstream error: %s", chunk.Error.Message)
		}
		var text strings.Builder
		for _, c := range chunk.Choices {
			text.WriteString(c.Delta.Content)
		}
		if text.Len() > 0 {
			return text.String(), nil
		}
	}
	if err := s.scanner.Err(); err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("reading stream: %w", err)
	}
	s.done = true
	return "", io.EOF
}

// Close releases the underlying response body.
func (s *DeltaStream) Close() error {
	return s.body.Close()
}
