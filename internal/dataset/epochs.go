package dataset

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"eegmi/internal/tensor"
)

// ErrUnmappedLabel is returned when an event code has no entry in the label map.
var ErrUnmappedLabel = errors.New("event code has no label mapping")

// Event anchors a window: Sample is the onset in the raw timeline.
type Event struct {
	Sample int
	Code   int
}

// Baseline is a correction interval in seconds relative to the event. A nil
// bound means the start (or end) of the window.
type Baseline struct {
	Start *float64
	End   *float64
}

// WindowOptions configures Segment.
type WindowOptions struct {
	Tmin float64
	Tmax float64
	// EventID selects annotation descriptions and their codes. When nil every
	// non-BAD, non-EDGE description is used, coded 1.. in sorted order.
	EventID  map[string]int
	Baseline *Baseline
}

// DefaultWindowOptions returns windows from 1 s before to 4 s after each event.
func DefaultWindowOptions() WindowOptions {
	return WindowOptions{Tmin: -1, Tmax: 4}
}

// Epochs is a set of equal-length windows cut around events.
type Epochs struct {
	Channels []Channel
	SFreq    float64
	// Tmin is the time of the first sample relative to the event.
	Tmin    float64
	Data    [][][]float64 // window, channel, time
	Events  []Event
	EventID map[string]int
}

// Len returns the number of windows.
func (e *Epochs) Len() int {
	return len(e.Data)
}

// Samples returns the number of time points per window.
func (e *Epochs) Samples() int {
	if len(e.Data) == 0 || len(e.Data[0]) == 0 {
		return 0
	}
	return len(e.Data[0][0])
}

// Times returns the time of every sample relative to the event.
func (e *Epochs) Times() []float64 {
	times := make([]float64, e.Samples())
	for i := range times {
		times[i] = e.Tmin + float64(i)/e.SFreq
	}
	return times
}

// Tmax returns the time of the last sample.
func (e *Epochs) Tmax() float64 {
	return e.Tmin + float64(e.Samples()-1)/e.SFreq
}

// Copy returns a deep copy.
func (e *Epochs) Copy() *Epochs {
	out := &Epochs{
		Channels: append([]Channel(nil), e.Channels...),
		SFreq:    e.SFreq,
		Tmin:     e.Tmin,
		Data:     make([][][]float64, len(e.Data)),
		Events:   append([]Event(nil), e.Events...),
		EventID:  make(map[string]int, len(e.EventID)),
	}
	for i, w := range e.Data {
		out.Data[i] = make([][]float64, len(w))
		for c, ch := range w {
			out.Data[i][c] = append([]float64(nil), ch...)
		}
	}
	for k, v := range e.EventID {
		out.EventID[k] = v
	}
	return out
}

// Crop keeps the samples whose time lies within [tmin, tmax].
func (e *Epochs) Crop(tmin, tmax float64) error {
	if tmin > tmax {
		return fmt.Errorf("crop: tmin %g is after tmax %g", tmin, tmax)
	}
	lo, hi := e.timeIndex(tmin, tmax)
	if lo > hi {
		return fmt.Errorf("crop: [%g, %g] is outside the window [%g, %g]", tmin, tmax, e.Tmin, e.Tmax())
	}
	for i := range e.Data {
		for c := range e.Data[i] {
			e.Data[i][c] = e.Data[i][c][lo : hi+1]
		}
	}
	e.Tmin += float64(lo) / e.SFreq
	return nil
}

// timeIndex returns the first and last sample index within [tmin, tmax].
func (e *Epochs) timeIndex(tmin, tmax float64) (int, int) {
	const tol = 1e-9
	times := e.Times()
	lo, hi := len(times), -1
	for i, t := range times {
		if t >= tmin-tol && t <= tmax+tol {
			lo = min(lo, i)
			hi = i
		}
	}
	return lo, hi
}

// Segment cuts raw into windows anchored at annotation events. Windows that
// fall outside the recording or overlap a BAD annotation are dropped.
func Segment(raw *Raw, opts WindowOptions) (*Epochs, error) {
	if raw.SFreq <= 0 {
		return nil, fmt.Errorf("segment: invalid sampling rate %g", raw.SFreq)
	}
	if opts.Tmin > opts.Tmax {
		return nil, fmt.Errorf("segment: tmin %g is after tmax %g", opts.Tmin, opts.Tmax)
	}
	events, eventID := eventsFromAnnotations(raw, opts.EventID)
	if len(events) == 0 {
		return nil, errors.New("segment: no events found")
	}

	startOff := int(math.Round(opts.Tmin * raw.SFreq))
	endOff := int(math.Round(opts.Tmax * raw.SFreq))
	n := raw.Samples()

	var bad [][2]int
	for _, a := range raw.Annotations {
		if isBad(a.Description) {
			s := int(math.Round(a.Onset * raw.SFreq))
			bad = append(bad, [2]int{s, s + int(math.Round(a.Duration*raw.SFreq))})
		}
	}

	ep := &Epochs{
		Channels: append([]Channel(nil), raw.Channels...),
		SFreq:    raw.SFreq,
		Tmin:     float64(startOff) / raw.SFreq,
		EventID:  eventID,
	}
	for _, ev := range events {
		start, end := ev.Sample+startOff, ev.Sample+endOff
		if start < 0 || end >= n || overlaps(bad, start, end) {
			continue
		}
		window := make([][]float64, len(raw.Data))
		for c, ch := range raw.Data {
			window[c] = append([]float64(nil), ch[start:end+1]...)
		}
		ep.Data = append(ep.Data, window)
		ep.Events = append(ep.Events, ev)
	}
	if ep.Len() == 0 {
		return nil, errors.New("segment: every window was dropped")
	}
	if opts.Baseline != nil {
		if err := ep.applyBaseline(*opts.Baseline); err != nil {
			return nil, err
		}
	}
	return ep, nil
}

func overlaps(intervals [][2]int, start, end int) bool {
	for _, iv := range intervals {
		if iv[0] <= end && iv[1] >= start {
			return true
		}
	}
	return false
}

func eventsFromAnnotations(raw *Raw, eventID map[string]int) ([]Event, map[string]int) {
	ids := make(map[string]int)
	if eventID != nil {
		for k, v := range eventID {
			ids[k] = v
		}
	} else {
		var names []string
		for _, a := range raw.Annotations {
			if isIgnored(a.Description) {
				continue
			}
			if _, ok := ids[a.Description]; !ok {
				ids[a.Description] = 0
				names = append(names, a.Description)
			}
		}
		sort.Strings(names)
		for i, name := range names {
			ids[name] = i + 1
		}
	}

	var events []Event
	for _, a := range raw.Annotations {
		code, ok := ids[a.Description]
		if !ok || isIgnored(a.Description) {
			continue
		}
		events = append(events, Event{Sample: int(math.Round(a.Onset * raw.SFreq)), Code: code})
	}
	sort.SliceStable(events, func(i, j int) bool { return events[i].Sample < events[j].Sample })
	return events, ids
}

func (e *Epochs) applyBaseline(b Baseline) error {
	tmin, tmax := e.Tmin, e.Tmax()
	if b.Start != nil {
		tmin = *b.Start
	}
	if b.End != nil {
		tmax = *b.End
	}
	lo, hi := e.timeIndex(tmin, tmax)
	if lo > hi {
		return fmt.Errorf("baseline: [%g, %g] is outside the window", tmin, tmax)
	}
	for _, w := range e.Data {
		for _, ch := range w {
			floats.AddConst(-stat.Mean(ch[lo:hi+1], nil), ch)
		}
	}
	return nil
}

// Evoked is the average of a set of windows.
type Evoked struct {
	Channels []Channel
	SFreq    float64
	Tmin     float64
	Data     [][]float64 // channel, time
	NAve     int
}

// Times returns the time of every sample relative to the event.
func (v *Evoked) Times() []float64 {
	if len(v.Data) == 0 {
		return nil
	}
	times := make([]float64, len(v.Data[0]))
	for i := range times {
		times[i] = v.Tmin + float64(i)/v.SFreq
	}
	return times
}

// Average returns the mean over all windows.
func (e *Epochs) Average() *Evoked {
	ev := &Evoked{
		Channels: append([]Channel(nil), e.Channels...),
		SFreq:    e.SFreq,
		Tmin:     e.Tmin,
		NAve:     e.Len(),
		Data:     make([][]float64, len(e.Channels)),
	}
	for c := range ev.Data {
		ev.Data[c] = make([]float64, e.Samples())
		for _, w := range e.Data {
			floats.Add(ev.Data[c], w[c])
		}
		if ev.NAve > 0 {
			floats.Scale(1/float64(ev.NAve), ev.Data[c])
		}
	}
	return ev
}

// LabelMap translates event codes into class labels.
type LabelMap map[int]int

// DefaultLabelMap maps the two motor-imagery codes 2 and 3 to classes 0 and 1.
func DefaultLabelMap() LabelMap {
	return LabelMap{2: 0, 3: 1}
}

// BuildTrainingSet crops a copy of ep to [cropStart, cropEnd] and returns the
// windows as a (windows, channels, times) tensor with one label per window.
// A nil labels map uses DefaultLabelMap.
func BuildTrainingSet(ep *Epochs, cropStart, cropEnd float64, labels LabelMap) (*tensor.Tensor, []int, error) {
	if labels == nil {
		labels = DefaultLabelMap()
	}
	y := make([]int, len(ep.Events))
	for i, ev := range ep.Events {
		label, ok := labels[ev.Code]
		if !ok {
			return nil, nil, fmt.Errorf("%w: %d", ErrUnmappedLabel, ev.Code)
		}
		y[i] = label
	}

	cropped := ep.Copy()
	if err := cropped.Crop(cropStart, cropEnd); err != nil {
		return nil, nil, err
	}
	x, err := tensor.New(cropped.Len(), len(cropped.Channels), cropped.Samples())
	if err != nil {
		return nil, nil, fmt.Errorf("build training set: %w", err)
	}
	stride := len(cropped.Channels) * cropped.Samples()
	for i, w := range cropped.Data {
		row := x.Data[i*stride : (i+1)*stride]
		for c, ch := range w {
			copy(row[c*cropped.Samples():], ch)
		}
	}
	return x, y, nil
}
