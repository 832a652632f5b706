package bl

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	in := "RESET Apr 24 2018 05:01:00\n" +
		"1, 1, Apr 24 2018 06:29:42, 4165, 4173\n" +
		"2, 2, Apr 24 2018 06:31:10, 4410, 4418\n" +
		"3, 3, Apr 24 2018 06:33:55, 4801, 4809\n"

	closures, err := Parse(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, closures, 3)

	assert.Equal(t, Closure{
		Seq:       1,
		Bottle:    1,
		Time:      "Apr 24 2018 06:29:42",
		ScanStart: 4165,
		ScanEnd:   4173,
	}, closures[0])
	assert.Equal(t, 4809, closures[2].ScanEnd)
}

func TestParseNonMonotonicBottles(t *testing.T) {
	// A reset rosette restarts numbering; parsed fully, warned only.
	in := "1, 35, Apr 24 2018 06:29:42, 100, 108\n" +
		"2, 1, Apr 24 2018 06:31:10, 200, 208\n"

	closures, err := Parse(strings.NewReader(in))
	require.NoError(t, err)
	assert.Len(t, closures, 2)
}

func TestParseBadLine(t *testing.T) {
	_, err := Parse(strings.NewReader("1, x, Apr 24 2018 06:29:42, 100, 108\n"))
	assert.Error(t, err)

	_, err = Parse(strings.NewReader("1, 2, 3\n"))
	assert.Error(t, err)
}

func TestParseEmpty(t *testing.T) {
	closures, err := Parse(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, closures)
}
