package dataset

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConcatenateShiftsAnnotations(t *testing.T) {
	a := synthRaw([]string{"C3", "C4"}, 100, 2, Annotation{Onset: 0.5, Description: "T1"})
	b := synthRaw([]string{"C3", "C4"}, 100, 3, Annotation{Onset: 1, Duration: 0.5, Description: "T2"})

	joined, err := Concatenate(a, b)
	require.NoError(t, err)
	assert.Equal(t, 500, joined.Samples())
	assert.InDelta(t, 5.0, joined.Duration(), 1e-12)
	assert.Equal(t, []Annotation{
		{Onset: 0.5, Description: "T1"},
		{Onset: 2, Description: "BAD boundary"},
		{Onset: 2, Description: "EDGE boundary"},
		{Onset: 3, Duration: 0.5, Description: "T2"},
	}, joined.Annotations)
	assert.Equal(t, b.Data[1][0], joined.Data[1][200])
}

func TestConcatenateRejectsMismatch(t *testing.T) {
	a := synthRaw([]string{"C3"}, 100, 1)
	_, err := Concatenate(a, synthRaw([]string{"C4"}, 100, 1))
	require.Error(t, err)
	_, err = Concatenate(a, synthRaw([]string{"C3"}, 160, 1))
	require.Error(t, err)
	_, err = Concatenate()
	require.Error(t, err)
}

func TestStandardizeChannelNames(t *testing.T) {
	raw := synthRaw([]string{"Fc5.", "Fpz.", "Cz..", "Fp1.", "Afz.", "Iz.."}, 10, 1)
	raw.StandardizeChannelNames()
	assert.Equal(t, []string{"FC5", "Fpz", "Cz", "Fp1", "AFz", "Iz"}, raw.ChannelNames())
}

func TestRenameAnnotations(t *testing.T) {
	raw := synthRaw([]string{"C3"}, 10, 1,
		Annotation{Description: "T0"}, Annotation{Description: "T1"}, Annotation{Description: "T2"})
	raw.RenameAnnotations(MotorImageryAnnotations)
	var got []string
	for _, a := range raw.Annotations {
		got = append(got, a.Description)
	}
	assert.Equal(t, []string{"T0", "hands", "feet"}, got)
}

func TestStandardMontagePositions(t *testing.T) {
	m, err := StandardMontage("standard_1005")
	require.NoError(t, err)

	cz, ok := m.Position("Cz")
	require.True(t, ok)
	assert.InDelta(t, headRadius, cz[2], 1e-12)

	c3, _ := m.Position("C3")
	c4, _ := m.Position("C4")
	assert.Less(t, c3[0], 0.0, "odd electrodes sit on the left")
	assert.InDelta(t, -c3[0], c4[0], 1e-12)

	fpz, _ := m.Position("Fpz")
	oz, _ := m.Position("Oz")
	assert.Greater(t, fpz[1], 0.0)
	assert.Less(t, oz[1], 0.0)

	for _, name := range eegbciChannels {
		pos, ok := m.Position(name)
		require.True(t, ok, name)
		norm := math.Sqrt(pos[0]*pos[0] + pos[1]*pos[1] + pos[2]*pos[2])
		assert.InDelta(t, headRadius, norm, 1e-9, name)
	}

	_, err = StandardMontage("biosemi64")
	require.Error(t, err)
}

func TestSetMontageLeavesUnknownChannels(t *testing.T) {
	m, err := StandardMontage("standard_1005")
	require.NoError(t, err)
	raw := synthRaw([]string{"C3", "STI 014"}, 10, 1)
	raw.SetMontage(m)
	assert.NotNil(t, raw.Channels[0].Position)
	assert.Nil(t, raw.Channels[1].Position)
	assert.Same(t, m, raw.Montage)
}

var eegbciChannels = []string{
	"FC5", "FC3", "FC1", "FCz", "FC2", "FC4", "FC6", "C5", "C3", "C1", "Cz", "C2", "C4", "C6",
	"CP5", "CP3", "CP1", "CPz", "CP2", "CP4", "CP6", "Fp1", "Fpz", "Fp2", "AF7", "AF3", "AFz",
	"AF4", "AF8", "F7", "F5", "F3", "F1", "Fz", "F2", "F4", "F6", "F8", "FT7", "FT8", "T7", "T8",
	"T9", "T10", "TP7", "TP8", "P7", "P5", "P3", "P1", "Pz", "P2", "P4", "P6", "P8", "PO7", "PO3",
	"POz", "PO4", "PO8", "O1", "Oz", "O2", "Iz",
}

func TestStandardMontageTemporalSites(t *testing.T) {
	m, err := StandardMontage("standard_1005")
	require.NoError(t, err)

	t7, ok := m.Position("T7")
	require.True(t, ok)
	c3, _ := m.Position("C3")
	c5, _ := m.Position("C5")
	assert.NotEqual(t, c3, t7)
	assert.Less(t, t7[0], c5[0], "T7 lies lateral to C5")
	assert.InDelta(t, 0, t7[1], 1e-12, "T7 lies on the coronal plane")

	ft7, _ := m.Position("FT7")
	fc5, _ := m.Position("FC5")
	assert.Less(t, ft7[0], fc5[0])
	tp8, _ := m.Position("TP8")
	cp6, _ := m.Position("CP6")
	assert.Greater(t, tp8[0], cp6[0])

	t3, ok := m.Position("T3")
	require.True(t, ok)
	assert.Equal(t, t7, t3)
	t5, _ := m.Position("T5")
	p7, _ := m.Position("P7")
	assert.Equal(t, p7, t5)

	t9, _ := m.Position("T9")
	assert.InDelta(t, 0, t9[2], 1e-12, "T9 sits on the equator")

	for _, name := range []string{"Fp3", "Fp4", "FC7", "FT3", "T1", "TP5", "O3", "C7"} {
		_, ok := m.Position(name)
		assert.False(t, ok, name)
	}
}

func TestStandardMontage1020IsSubset(t *testing.T) {
	m1005, err := StandardMontage("standard_1005")
	require.NoError(t, err)
	m1020, err := StandardMontage("standard_1020")
	require.NoError(t, err)

	assert.Less(t, m1020.Len(), m1005.Len())
	_, ok := m1020.Position("AF1")
	assert.False(t, ok)
	_, ok = m1005.Position("AF1")
	assert.True(t, ok)
	for _, name := range eegbciChannels {
		_, ok := m1020.Position(name)
		assert.True(t, ok, name)
	}
}
