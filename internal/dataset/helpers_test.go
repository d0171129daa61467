package dataset

import (
	"math"
	"os"
	"path/filepath"
	"testing"
)

// synthRaw builds a recording whose channel c carries a sine of (c+1)*5 Hz
// with a 20 µV amplitude.
func synthRaw(names []string, sfreq float64, seconds int, anns ...Annotation) *Raw {
	n := int(sfreq) * seconds
	raw := &Raw{SFreq: sfreq, Annotations: anns}
	for c, name := range names {
		raw.Channels = append(raw.Channels, Channel{Name: name, Unit: "uV"})
		data := make([]float64, n)
		for i := range data {
			data[i] = 20e-6 * math.Sin(2*math.Pi*float64(c+1)*5*float64(i)/sfreq)
		}
		raw.Data = append(raw.Data, data)
	}
	return raw
}

func mustWrite(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(""), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}
