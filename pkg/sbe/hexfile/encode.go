package hexfile

import (
	"bufio"
	"encoding/hex"
	"io"
	"strings"
)

// Encode writes the frame back out as hex text: header lines first, in
// their original order, then one uppercase hex line per scan, all with
// CRLF endings. The output is byte-identical to well-formed input, so
// a frame can cross a low-bandwidth link and be reconstituted exactly.
func Encode(w io.Writer, f *Frame) error {
	bw := bufio.NewWriter(w)

	for _, line := range f.Header {
		if _, err := bw.WriteString(line); err != nil {
			return err
		}
		if _, err := bw.WriteString(headerLineTerm); err != nil {
			return err
		}
	}

	buf := make([]byte, 2*f.BytesPerScan)
	for i := 0; i < f.scans; i++ {
		hex.Encode(buf, f.Row(i))
		if _, err := bw.WriteString(strings.ToUpper(string(buf))); err != nil {
			return err
		}
		if _, err := bw.WriteString(headerLineTerm); err != nil {
			return err
		}
	}

	return bw.Flush()
}

// EncodeToString renders the frame as hex text in memory.
func EncodeToString(f *Frame) (string, error) {
	var sb strings.Builder
	if err := Encode(&sb, f); err != nil {
		return "", err
	}
	return sb.String(), nil
}
