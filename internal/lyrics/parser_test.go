package lyrics

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tejashwikalptaru/lyra/internal/domain"
)

func ms(n int) time.Duration {
	return time.Duration(n) * time.Millisecond
}

func TestParse_SortsAndDropsMalformed(t *testing.T) {
	got := Parse("[01:02.500]Hello\n[00:10.000]World\nnot a line")

	assert.Equal(t, domain.Timeline{
		{Time: ms(10000), Text: "World"},
		{Time: ms(62500), Text: "Hello"},
	}, got)
}

func TestParse_DropsTagsOutOfRange(t *testing.T) {
	got := Parse(strings.Join([]string{
		"[200000000:00.00]far",
		"[00:01.00]near",
		"[999999999:00.00]wrapped",
		"[153722867:59.00]past the limit",
		"[153722867:00.00]edge",
	}, "\n"))

	assert.Equal(t, domain.Timeline{
		{Time: time.Second, Text: "near"},
		{Time: 153722867 * time.Minute, Text: "edge"},
	}, got)
	for _, l := range got {
		assert.GreaterOrEqual(t, l.Time, time.Duration(0))
	}
	assert.Equal(t, 0, Resolve(got, 0))
}

func TestParse_FractionScaledByDigitCount(t *testing.T) {
	cases := []struct {
		tag  string
		want time.Duration
	}{
		{"[00:01.5]", ms(1500)},
		{"[00:01.50]", ms(1500)},
		{"[00:01.500]", ms(1500)},
		{"[00:01.05]", ms(1050)},
		{"[00:01.005]", ms(1005)},
		{"[00:01.5009]", ms(1500)},
		{"[02:00.00]", ms(120000)},
		{"[120:00.00]", 2 * time.Hour},
	}

	for _, tc := range cases {
		t.Run(tc.tag, func(t *testing.T) {
			got := Parse(tc.tag + "line")
			require.Len(t, got, 1)
			assert.Equal(t, tc.want, got[0].Time)
			assert.Equal(t, "line", got[0].Text)
		})
	}
}

func TestParse_ColonFractionSeparator(t *testing.T) {
	got := Parse("[00:03:25]text")
	require.Len(t, got, 1)
	assert.Equal(t, ms(3250), got[0].Time)
}

func TestParse_EmptyInput(t *testing.T) {
	for _, raw := range []string{"", "\n\n", "[ar:Someone]\n[ti:Song]\nplain text"} {
		got := Parse(raw)
		assert.NotNil(t, got)
		assert.Empty(t, got)
	}
}

func TestParse_StableForEqualTimestamps(t *testing.T) {
	got := Parse("[00:05.00]b\n[00:01.00]a\n[00:05.00]c\n[00:05.00]d")

	texts := make([]string, 0, len(got))
	for _, l := range got {
		texts = append(texts, l.Text)
	}
	assert.Equal(t, []string{"a", "b", "c", "d"}, texts)
}

func TestParse_OrderedInputRoundTrips(t *testing.T) {
	raw := "[00:01.00]one\n[00:02.00]two\n[00:02.00]two again\n[00:03.00]three"
	got := Parse(raw)

	require.Len(t, got, 4)
	assert.Equal(t, "one", got[0].Text)
	assert.Equal(t, "two", got[1].Text)
	assert.Equal(t, "two again", got[2].Text)
	assert.Equal(t, "three", got[3].Text)
}

func TestParse_Idempotent(t *testing.T) {
	raw := "[00:09.10]x\n[00:02.20]y\r\n[00:05.30]z"
	assert.Equal(t, Parse(raw), Parse(raw))
}

func TestParse_MultipleTagsShareText(t *testing.T) {
	got := Parse("[00:10.00][00:40.00]chorus\n[00:20.00]verse")

	assert.Equal(t, domain.Timeline{
		{Time: ms(10000), Text: "chorus"},
		{Time: ms(20000), Text: "verse"},
		{Time: ms(40000), Text: "chorus"},
	}, got)
}

func TestParse_TextKeptVerbatim(t *testing.T) {
	got := Parse("[00:01.00]  spaced [not a tag]\r\n[00:02.00]")

	require.Len(t, got, 2)
	assert.Equal(t, "  spaced [not a tag]", got[0].Text)
	assert.Equal(t, "", got[1].Text)
}

func TestParse_TagNotAdjacentIsText(t *testing.T) {
	got := Parse("[00:01.00]see [00:02.00] later")

	require.Len(t, got, 1)
	assert.Equal(t, ms(1000), got[0].Time)
	assert.Equal(t, "see [00:02.00] later", got[0].Text)
}

func TestParseReader(t *testing.T) {
	got, err := ParseReader(strings.NewReader("[00:01.00]a\n[00:00.50]b"))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "b", got[0].Text)
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) {
	return 0, errors.New("disk gone")
}

func TestParseReader_Error(t *testing.T) {
	_, err := ParseReader(failingReader{})
	assert.ErrorContains(t, err, "disk gone")
}
