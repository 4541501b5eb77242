package chatstream

import "bytes"

// Framer splits a byte stream into lines. Bytes after the last newline are
// carried over and prefixed onto the next chunk, so a line split across two
// reads comes out whole.
type Framer struct {
	carry []byte
}

// Feed appends chunk and returns every line it completes, without the line
// terminator.
func (f *Framer) Feed(chunk []byte) []string {
	if len(chunk) == 0 {
		return nil
	}
	f.carry = append(f.carry, chunk...)

	var lines []string
	for {
		i := bytes.IndexByte(f.carry, '\n')
		if i < 0 {
			break
		}
		lines = append(lines, string(bytes.TrimRight(f.carry[:i], "\r")))
		f.carry = f.carry[i+1:]
	}
	if len(f.carry) == 0 {
		f.carry = nil
	}
	return lines
}

// Flush returns the unterminated tail, if any, and resets the framer.
func (f *Framer) Flush() (string, bool) {
	if len(f.carry) == 0 {
		return "", false
	}
	tail := string(bytes.TrimRight(f.carry, "\r"))
	f.carry = nil
	return tail, true
}

// Buffered reports how many bytes are held back.
func (f *Framer) Buffered() int { return len(f.carry) }
