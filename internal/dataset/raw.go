package dataset

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Channel describes one recorded signal.
type Channel struct {
	Name       string
	Unit       string
	Transducer string
	Prefilter  string
	// Position is the sensor location in head coordinates (meters), nil
	// until a montage that knows the channel is applied.
	Position *[3]float64
}

// Annotation marks an interval of the recording. Onset and Duration are in seconds.
type Annotation struct {
	Onset       float64
	Duration    float64
	Description string
}

// Raw is a continuous multi-channel recording. Data is channel-major and in volts.
type Raw struct {
	Channels    []Channel
	SFreq       float64
	Data        [][]float64
	Annotations []Annotation

	Patient   string
	Recording string
	Start     time.Time
	Montage   *Montage
}

// Samples returns the number of time points per channel.
func (r *Raw) Samples() int {
	if len(r.Data) == 0 {
		return 0
	}
	return len(r.Data[0])
}

// Duration returns the recording length in seconds.
func (r *Raw) Duration() float64 {
	if r.SFreq == 0 {
		return 0
	}
	return float64(r.Samples()) / r.SFreq
}

// ChannelNames lists channel names in order.
func (r *Raw) ChannelNames() []string {
	names := make([]string, len(r.Channels))
	for i, ch := range r.Channels {
		names[i] = ch.Name
	}
	return names
}

// RenameAnnotations replaces annotation descriptions found in mapping.
func (r *Raw) RenameAnnotations(mapping map[string]string) {
	for i, a := range r.Annotations {
		if to, ok := mapping[a.Description]; ok {
			r.Annotations[i].Description = to
		}
	}
}

// StandardizeChannelNames rewrites EEGBCI labels such as "Fc5." or "Fpz."
// into 10-05 spelling ("FC5", "Fpz").
func (r *Raw) StandardizeChannelNames() {
	for i := range r.Channels {
		r.Channels[i].Name = standardChannelName(r.Channels[i].Name)
	}
}

func standardChannelName(name string) string {
	name = strings.ToUpper(strings.Trim(name, ". "))
	if strings.HasSuffix(name, "Z") {
		name = name[:len(name)-1] + "z"
	}
	if strings.HasPrefix(name, "FP") {
		name = "Fp" + name[2:]
	}
	return name
}

// SetMontage attaches m and assigns positions to every channel m knows.
// Channels missing from m keep a nil position.
func (r *Raw) SetMontage(m *Montage) {
	r.Montage = m
	for i := range r.Channels {
		r.Channels[i].Position = nil
		if m == nil {
			continue
		}
		if pos, ok := m.Position(r.Channels[i].Name); ok {
			p := pos
			r.Channels[i].Position = &p
		}
	}
}

const (
	boundaryBad  = "BAD boundary"
	boundaryEdge = "EDGE boundary"
)

// Concatenate joins recordings end to end. All inputs must share channel
// names and sampling rate. Annotation onsets are shifted to the joined
// timeline and each join is marked with "BAD boundary" and "EDGE boundary".
func Concatenate(raws ...*Raw) (*Raw, error) {
	if len(raws) == 0 {
		return nil, errors.New("concatenate: no recordings")
	}
	first := raws[0]
	out := &Raw{
		Channels:  append([]Channel(nil), first.Channels...),
		SFreq:     first.SFreq,
		Data:      make([][]float64, len(first.Channels)),
		Patient:   first.Patient,
		Recording: first.Recording,
		Start:     first.Start,
		Montage:   first.Montage,
	}
	offset := 0.0
	for k, r := range raws {
		if r.SFreq != first.SFreq {
			return nil, fmt.Errorf("concatenate: recording %d sampled at %g Hz, expected %g Hz", k, r.SFreq, first.SFreq)
		}
		if len(r.Channels) != len(first.Channels) {
			return nil, fmt.Errorf("concatenate: recording %d has %d channels, expected %d", k, len(r.Channels), len(first.Channels))
		}
		for i, ch := range r.Channels {
			if ch.Name != first.Channels[i].Name {
				return nil, fmt.Errorf("concatenate: recording %d channel %d is %q, expected %q", k, i, ch.Name, first.Channels[i].Name)
			}
			out.Data[i] = append(out.Data[i], r.Data[i]...)
		}
		if k > 0 {
			out.Annotations = append(out.Annotations,
				Annotation{Onset: offset, Description: boundaryBad},
				Annotation{Onset: offset, Description: boundaryEdge},
			)
		}
		for _, a := range r.Annotations {
			a.Onset += offset
			out.Annotations = append(out.Annotations, a)
		}
		offset += r.Duration()
	}
	return out, nil
}

// isBad reports whether an annotation marks data to be rejected.
func isBad(desc string) bool {
	return len(desc) >= 3 && strings.EqualFold(desc[:3], "bad")
}

// isIgnored reports whether an annotation never produces an event.
func isIgnored(desc string) bool {
	return isBad(desc) || (len(desc) >= 4 && strings.EqualFold(desc[:4], "edge"))
}
