package textract

import (
	"bufio"
	"io"
	"strings"
)

// TextExtractor handles plain text files. Lines within a paragraph are
// joined with spaces.
type TextExtractor struct{}

func (e *TextExtractor) Extract(r io.Reader, filename string) (string, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var out blocks
	var current []string
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			out.add(strings.Join(current, " "))
			current = current[:0]
			continue
		}
		current = append(current, line)
	}
	if err := scanner.Err(); err != nil {
		return "", err
	}
	out.add(strings.Join(current, " "))
	return out.String(), nil
}
