package dataset

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEDFRoundTrip(t *testing.T) {
	raw := synthRaw([]string{"Fc5.", "Cz..", "Oz.."}, 160, 3,
		Annotation{Onset: 0, Duration: 4.2, Description: "T0"},
		Annotation{Onset: 1.5, Duration: 0.5, Description: "T1"},
		Annotation{Onset: 2.25, Description: "T2"},
	)
	raw.Patient = "X"
	raw.Recording = "synthetic"
	raw.Start = time.Date(2009, 8, 12, 16, 15, 0, 0, time.UTC)

	var buf bytes.Buffer
	require.NoError(t, WriteEDF(&buf, raw))
	require.Zero(t, (buf.Len()-256*5)%2)

	got, err := ReadEDF(&buf)
	require.NoError(t, err)

	assert.Equal(t, 160.0, got.SFreq)
	assert.Equal(t, raw.ChannelNames(), got.ChannelNames())
	assert.Equal(t, "X", got.Patient)
	assert.Equal(t, raw.Start, got.Start)
	if diff := cmp.Diff(raw.Annotations, got.Annotations, cmpopts.EquateApprox(0, 1e-9)); diff != "" {
		t.Fatalf("annotations mismatch (-want +got):\n%s", diff)
	}
	require.Equal(t, raw.Samples(), got.Samples())
	for c := range raw.Data {
		for i := range raw.Data[c] {
			// 16-bit quantization of a ±20 µV range
			assert.InDelta(t, raw.Data[c][i], got.Data[c][i], 1e-8)
		}
	}
}

func TestEDFWriterUsesSingleRecordForPartialSeconds(t *testing.T) {
	raw := synthRaw([]string{"C3"}, 160, 1)
	raw.Data[0] = raw.Data[0][:100]

	var buf bytes.Buffer
	require.NoError(t, WriteEDF(&buf, raw))
	got, err := ReadEDF(&buf)
	require.NoError(t, err)
	assert.Equal(t, 100, got.Samples())
	assert.InDelta(t, 160, got.SFreq, 1e-9)
}

func TestParseTALs(t *testing.T) {
	chunk := []byte("+0\x14\x14\x00+1.5\x150.25\x14T1\x14\x00+3\x14T0\x14T2\x14\x00\x00\x00")
	anns, err := parseTALs(chunk)
	require.NoError(t, err)
	want := []Annotation{
		{Onset: 1.5, Duration: 0.25, Description: "T1"},
		{Onset: 3, Description: "T0"},
		{Onset: 3, Description: "T2"},
	}
	assert.Equal(t, want, anns)
}

func TestReadEDFRejectsTruncatedHeader(t *testing.T) {
	_, err := ReadEDF(strings.NewReader("0       short"))
	require.Error(t, err)
}

func TestFormatField(t *testing.T) {
	assert.Equal(t, "1", formatField(1, 8))
	assert.Equal(t, "-123.456", formatField(-123.456, 8))
	assert.LessOrEqual(t, len(formatField(-12345.6789, 8)), 8)
}
