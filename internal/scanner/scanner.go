// Package scanner provides a small cursor over a string, used by the multipart form decoder
// to hunt for boundaries and header lines without allocating per step.
package scanner

import "strings"

// Cursor walks forward over a string, never backward.
type Cursor struct {
	data string
}

// New returns a Cursor positioned at the start of data.
func New(data string) Cursor {
	return Cursor{data: data}
}

// Find returns the offset of the next occurrence of sub, or -1.
func (c *Cursor) Find(sub string) int {
	return strings.Index(c.data, sub)
}

// Consume advances past str if the cursor is currently positioned at it.
func (c *Cursor) Consume(str string) bool {
	if !strings.HasPrefix(c.data, str) {
		return false
	}

	c.data = c.data[len(str):]
	return true
}

// Advance consumes and returns the next n bytes.
func (c *Cursor) Advance(n int) string {
	cut := c.data[:n]
	c.data = c.data[n:]
	return cut
}

// Line consumes up to and including the next "\n", returning the line with any trailing
// "\r\n" or "\n" stripped.
func (c *Cursor) Line() (line string, ok bool) {
	newline := strings.IndexByte(c.data, '\n')
	if newline == -1 {
		return "", false
	}

	line = c.data[:newline]
	c.data = c.data[newline+1:]

	if len(line) > 0 && line[len(line)-1] == '\r' {
		line = line[:len(line)-1]
	}

	return line, true
}

// Empty reports whether the cursor has been exhausted.
func (c *Cursor) Empty() bool {
	return len(c.data) == 0
}
