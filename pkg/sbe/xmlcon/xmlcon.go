// Package xmlcon parses XML instrument-configuration documents: deck
// unit settings plus the ordered channel → sensor map with calibration
// coefficients. Deck software writes these files in a legacy 8-bit
// code page, so the default decode is cp437, not UTF-8.
package xmlcon

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
)

var ErrNoSensorArray = errors.New("configuration has no sensor array")

const coefGroupTag = "Coefficients"

// Sensor is one physical channel position from the configuration.
type Sensor struct {
	// Channel is the 0-based position: frequency channels first, then
	// voltage channels, in physical install order.
	Channel int

	// SensorID is the numeric identity code as written in the file.
	SensorID string

	// Name is the sensor element tag, e.g. "TemperatureSensor".
	Name string

	// Meta holds flat metadata and top-level coefficients
	// (serial number, calibration date, G/H/I/J for frequency sensors).
	Meta map[string]string

	// Groups holds nested named coefficient sets. When a physical
	// sensor carries two sets (old and new calibration), the second
	// occurrence's tag gets a "2" suffix instead of overwriting.
	Groups map[string]map[string]string
}

// CoefSet picks the coefficient mapping an equation should use: the
// suffixed (newer) nested group when present, then the first nested
// group, then the flat metadata.
func (s *Sensor) CoefSet() map[string]string {
	for _, tag := range []string{coefGroupTag + "2", "Calibration" + coefGroupTag + "2"} {
		if g, ok := s.Groups[tag]; ok {
			return g
		}
	}
	for _, tag := range []string{coefGroupTag, "Calibration" + coefGroupTag} {
		if g, ok := s.Groups[tag]; ok {
			return g
		}
	}
	return s.Meta
}

// Config is a parsed instrument configuration.
type Config struct {
	// Settings are the deck-unit settings: tag → trimmed text of the
	// first-level children under the document's first section.
	Settings map[string]string

	// SensorArraySize is the size declared on the sensor array element,
	// kept for cross-validation against len(Sensors).
	SensorArraySize int

	// Sensors is the channel-ordered sensor map.
	Sensors []Sensor
}

// FrequencyChannelsSuppressed reads the deck setting of the same name,
// defaulting to zero when absent or malformed.
func (c *Config) FrequencyChannelsSuppressed() int {
	return c.intSetting("FrequencyChannelsSuppressed")
}

// VoltageWordsSuppressed reads the deck setting of the same name.
func (c *Config) VoltageWordsSuppressed() int {
	return c.intSetting("VoltageWordsSuppressed")
}

func (c *Config) intSetting(key string) int {
	n, err := strconv.Atoi(strings.TrimSpace(c.Settings[key]))
	if err != nil {
		return 0
	}
	return n
}

type xmlNode struct {
	XMLName  xml.Name
	Attrs    []xml.Attr `xml:",any,attr"`
	Content  string     `xml:",chardata"`
	Children []xmlNode  `xml:",any"`
}

func (n *xmlNode) attr(name string) (string, bool) {
	for _, a := range n.Attrs {
		if a.Name.Local == name {
			return a.Value, true
		}
	}
	return "", false
}

func (n *xmlNode) findDescendant(name string) *xmlNode {
	for i := range n.Children {
		c := &n.Children[i]
		if c.XMLName.Local == name {
			return c
		}
		if found := c.findDescendant(name); found != nil {
			return found
		}
	}
	return nil
}

// Parse reads an instrument configuration in cp437.
func Parse(r io.Reader) (*Config, error) {
	return ParseWithEncoding(r, charmap.CodePage437)
}

// ParseWithEncoding reads an instrument configuration using the given
// text encoding. A nil encoding reads the input as-is.
func ParseWithEncoding(r io.Reader, enc encoding.Encoding) (*Config, error) {
	if enc != nil {
		r = enc.NewDecoder().Reader(r)
	}

	var root xmlNode
	dec := xml.NewDecoder(r)
	// The input is already decoded to UTF-8 above; accept whatever
	// charset the document declares without a second conversion.
	dec.CharsetReader = func(charset string, input io.Reader) (io.Reader, error) {
		return input, nil
	}
	if err := dec.Decode(&root); err != nil {
		return nil, fmt.Errorf("parsing configuration XML: %w", err)
	}
	if len(root.Children) == 0 {
		return nil, fmt.Errorf("configuration root %q has no sections", root.XMLName.Local)
	}

	cfg := &Config{Settings: make(map[string]string)}
	section := &root.Children[0]

	for i := range section.Children {
		child := &section.Children[i]
		cfg.Settings[child.XMLName.Local] = strings.TrimSpace(child.Content)
	}

	array := root.findDescendant("SensorArray")
	if array == nil {
		return nil, ErrNoSensorArray
	}
	if size, ok := array.attr("Size"); ok {
		cfg.SensorArraySize, _ = strconv.Atoi(strings.TrimSpace(size))
		cfg.Settings["SensorArraySize"] = strings.TrimSpace(size)
	}

	for i := range array.Children {
		sensor, err := parseSensor(&array.Children[i])
		if err != nil {
			return nil, err
		}
		cfg.Sensors = append(cfg.Sensors, sensor)
	}
	sort.SliceStable(cfg.Sensors, func(i, j int) bool {
		return cfg.Sensors[i].Channel < cfg.Sensors[j].Channel
	})

	if len(cfg.Sensors) != cfg.SensorArraySize {
		log.Warn().
			Int("parsed", len(cfg.Sensors)).
			Int("declared", cfg.SensorArraySize).
			Msg("sensor map size differs from declared array size")
	}

	return cfg, nil
}

func parseSensor(position *xmlNode) (Sensor, error) {
	s := Sensor{
		Meta:   make(map[string]string),
		Groups: make(map[string]map[string]string),
	}

	idx, ok := position.attr("index")
	if !ok {
		return s, fmt.Errorf("sensor position %q has no channel index", position.XMLName.Local)
	}
	var err error
	if s.Channel, err = strconv.Atoi(strings.TrimSpace(idx)); err != nil {
		return s, fmt.Errorf("sensor position has bad channel index %q", idx)
	}
	s.SensorID, _ = position.attr("SensorID")

	if len(position.Children) == 0 {
		// A wired but empty channel; nothing more to record.
		return s, nil
	}

	elem := &position.Children[0]
	s.Name = elem.XMLName.Local
	if id, ok := elem.attr("SensorID"); ok && s.SensorID == "" {
		s.SensorID = id
	}

	for i := range elem.Children {
		entry := &elem.Children[i]
		tag := entry.XMLName.Local

		if strings.Contains(tag, coefGroupTag) {
			coefs := make(map[string]string, len(entry.Children))
			for j := range entry.Children {
				coef := &entry.Children[j]
				coefs[coef.XMLName.Local] = strings.TrimSpace(coef.Content)
			}
			if _, dup := s.Groups[tag]; dup {
				tag += "2"
			}
			s.Groups[tag] = coefs
			continue
		}

		s.Meta[tag] = strings.TrimSpace(entry.Content)
	}

	return s, nil
}
