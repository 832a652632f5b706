// Package hexfile decodes and re-encodes hex-text instrument records:
// a comment header written by the deck unit followed by one line of
// uppercase hex per scan, fixed width.
package hexfile

import (
	"bufio"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// ErrorPolicy selects how data lines with the wrong scan length are
// handled. It is a per-call parameter, not a build-time constant.
type ErrorPolicy string

const (
	// PolicyRaise fails the whole decode on the first bad line.
	PolicyRaise ErrorPolicy = "raise"
	// PolicyIgnore skips bad lines and keeps going.
	PolicyIgnore ErrorPolicy = "ignore"
	// PolicyStore is reserved and intentionally unimplemented. It must
	// never silently behave like PolicyIgnore.
	PolicyStore ErrorPolicy = "store"
)

func (p ErrorPolicy) Valid() bool {
	switch p {
	case PolicyRaise, PolicyIgnore, PolicyStore:
		return true
	}
	return false
}

var (
	ErrNoScanLength      = errors.New("no scan length known")
	ErrUnsupportedPolicy = errors.New(`error policy "store" is not implemented`)
)

// ScanLengthError reports a data line whose character count does not
// match the declared scan width.
type ScanLengthError struct {
	Line int // 1-based line number in the input
	Got  int // characters on the line
	Want int // 2 * bytes per scan
}

func (e *ScanLengthError) Error() string {
	return fmt.Sprintf("invalid scan length on line %d: %d chars, want %d", e.Line, e.Got, e.Want)
}

const (
	commentMarker  = "*"
	scanLengthKey  = "number of bytes per scan"
	headerLineTerm = "\r\n"
)

// Frame is one decoded instrument record: the header comment lines in
// original order plus a scan-major byte matrix of fixed-width rows.
type Frame struct {
	BytesPerScan int
	Header       []string

	data  []byte
	scans int
}

func (f *Frame) Scans() int { return f.scans }

// Data returns the scan-major byte matrix as a view into the frame.
func (f *Frame) Data() []byte { return f.data }

// Row returns the raw bytes of scan i as a view into the frame.
func (f *Frame) Row(i int) []byte {
	return f.data[i*f.BytesPerScan : (i+1)*f.BytesPerScan]
}

// HeaderText joins the header comment lines with newlines, matching
// the free-text form carried as dataset provenance.
func (f *Frame) HeaderText() string {
	return strings.Join(f.Header, "\n")
}

// DecodeString is a convenience wrapper around Decode.
func DecodeString(s string, policy ErrorPolicy) (*Frame, error) {
	return Decode(strings.NewReader(s), policy)
}

// Decode parses hex text into a Frame. The header must declare the
// number of bytes per scan before the first data line. Lines starting
// with "*" accumulate as header text. Data lines must be exactly
// 2*BytesPerScan hex characters; shorter or longer lines are handled
// per policy. Invalid hex characters are always fatal.
func Decode(r io.Reader, policy ErrorPolicy) (*Frame, error) {
	switch policy {
	case PolicyRaise, PolicyIgnore:
	case PolicyStore:
		return nil, ErrUnsupportedPolicy
	default:
		return nil, fmt.Errorf("unknown error policy %q", policy)
	}

	f := &Frame{}
	lineLen := 0

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	lineno := 0
	for scanner.Scan() {
		lineno++
		line := scanner.Text()

		if strings.Contains(strings.ToLower(line), scanLengthKey) {
			n, err := parseScanLength(line)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", lineno, err)
			}
			f.BytesPerScan = n
			lineLen = 2 * n
		}

		if strings.HasPrefix(line, commentMarker) {
			f.Header = append(f.Header, line)
			continue
		}

		if f.BytesPerScan == 0 {
			return nil, fmt.Errorf("%w after %d lines", ErrNoScanLength, lineno)
		}

		if len(line) != lineLen {
			if policy == PolicyIgnore {
				continue
			}
			return nil, &ScanLengthError{Line: lineno, Got: len(line), Want: lineLen}
		}

		row, err := hex.DecodeString(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineno, err)
		}
		f.data = append(f.data, row...)
		f.scans++
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading hex input: %w", err)
	}

	return f, nil
}

func parseScanLength(line string) (int, error) {
	_, val, ok := cutString(line, "= ")
	if !ok {
		return 0, fmt.Errorf("malformed scan length declaration %q", line)
	}
	n, err := strconv.Atoi(strings.TrimSpace(val))
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("malformed scan length declaration %q", line)
	}
	return n, nil
}

func cutString(s, sep string) (before, after string, found bool) {
	if i := strings.Index(s, sep); i >= 0 {
		return s[:i], s[i+len(sep):], true
	}
	return s, "", false
}
