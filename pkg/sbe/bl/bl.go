// Package bl parses rosette bottle log files: one comma-delimited line
// per bottle closure referencing the scan range it covers.
package bl

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
)

// maxClosures is the largest physically possible rosette; more entries
// than this is reported but still parsed.
const maxClosures = 36

// Closure is one bottle-firing event.
type Closure struct {
	Seq       int
	Bottle    int
	Time      string // free-text timestamp, kept verbatim
	ScanStart int
	ScanEnd   int
}

// Parse reads a bottle log. Lines without a comma are header text and
// are skipped. Non-incrementing bottle numbers and over-full rosettes
// are data-quality warnings, never errors.
func Parse(r io.Reader) ([]Closure, error) {
	var closures []Closure

	scanner := bufio.NewScanner(r)
	lineno := 0
	for scanner.Scan() {
		lineno++
		line := scanner.Text()
		if !strings.Contains(line, ",") {
			continue
		}

		c, err := parseLine(line)
		if err != nil {
			return nil, fmt.Errorf("bottle log line %d: %w", lineno, err)
		}
		closures = append(closures, c)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading bottle log: %w", err)
	}

	for i := 1; i < len(closures); i++ {
		if closures[i].Bottle <= closures[i-1].Bottle {
			log.Warn().
				Int("seq", closures[i].Seq).
				Int("bottle", closures[i].Bottle).
				Int("previous", closures[i-1].Bottle).
				Msg("bottle number does not increment positively")
		}
	}
	if len(closures) > maxClosures {
		log.Warn().
			Int("closures", len(closures)).
			Msgf("more than %d bottle closures detected", maxClosures)
	}

	return closures, nil
}

func parseLine(line string) (Closure, error) {
	fields := strings.Split(line, ",")
	if len(fields) != 5 {
		return Closure{}, fmt.Errorf("want 5 fields, got %d", len(fields))
	}

	var (
		c   Closure
		err error
	)
	if c.Seq, err = strconv.Atoi(strings.TrimSpace(fields[0])); err != nil {
		return c, fmt.Errorf("bad sequence %q", fields[0])
	}
	if c.Bottle, err = strconv.Atoi(strings.TrimSpace(fields[1])); err != nil {
		return c, fmt.Errorf("bad bottle number %q", fields[1])
	}
	c.Time = strings.TrimSpace(fields[2])
	if c.ScanStart, err = strconv.Atoi(strings.TrimSpace(fields[3])); err != nil {
		return c, fmt.Errorf("bad start scan %q", fields[3])
	}
	if c.ScanEnd, err = strconv.Atoi(strings.TrimSpace(fields[4])); err != nil {
		return c, fmt.Errorf("bad end scan %q", fields[4])
	}
	return c, nil
}
