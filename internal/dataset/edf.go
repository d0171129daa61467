package dataset

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"
)

const (
	edfHeaderSize    = 256
	edfSignalSize    = 256
	edfAnnotationTag = "EDF Annotations"
	edfDigitalMin    = -32768
	edfDigitalMax    = 32767
)

// edfSignal is one signal header of an EDF file.
type edfSignal struct {
	label      string
	transducer string
	unit       string
	physMin    float64
	physMax    float64
	digMin     float64
	digMax     float64
	prefilter  string
	samples    int
}

func (s edfSignal) annotation() bool {
	return strings.TrimSpace(s.label) == edfAnnotationTag
}

func (s edfSignal) gain() float64 {
	return (s.physMax - s.physMin) / (s.digMax - s.digMin)
}

// ReadEDF decodes an EDF or EDF+ file. Ordinary signals become channels with
// values in volts; the EDF+ annotation signal becomes Raw.Annotations.
func ReadEDF(r io.Reader) (*Raw, error) {
	br := bufio.NewReader(r)
	head := make([]byte, edfHeaderSize)
	if _, err := io.ReadFull(br, head); err != nil {
		return nil, fmt.Errorf("edf: read header: %w", err)
	}
	f := fieldReader{buf: head}
	f.skip(8)
	patient := f.str(80)
	recording := f.str(80)
	start := parseEDFStart(f.str(8), f.str(8))
	f.skip(8)
	f.skip(44)
	nRecords, err := f.int(8)
	if err != nil {
		return nil, fmt.Errorf("edf: number of records: %w", err)
	}
	recDuration, err := f.float(8)
	if err != nil {
		return nil, fmt.Errorf("edf: record duration: %w", err)
	}
	ns, err := f.int(4)
	if err != nil {
		return nil, fmt.Errorf("edf: number of signals: %w", err)
	}
	if ns <= 0 {
		return nil, fmt.Errorf("edf: invalid number of signals %d", ns)
	}

	sigHead := make([]byte, ns*edfSignalSize)
	if _, err := io.ReadFull(br, sigHead); err != nil {
		return nil, fmt.Errorf("edf: read signal headers: %w", err)
	}
	signals, err := parseEDFSignals(sigHead, ns)
	if err != nil {
		return nil, err
	}

	raw := &Raw{Patient: patient, Recording: recording, Start: start}
	var sfreq float64
	var dataIdx []int
	for _, s := range signals {
		if s.annotation() {
			dataIdx = append(dataIdx, -1)
			continue
		}
		if recDuration <= 0 {
			return nil, fmt.Errorf("edf: invalid record duration %g", recDuration)
		}
		fs := float64(s.samples) / recDuration
		if sfreq == 0 {
			sfreq = fs
		} else if fs != sfreq {
			return nil, fmt.Errorf("edf: signal %q sampled at %g Hz, expected %g Hz", s.label, fs, sfreq)
		}
		if s.digMax == s.digMin {
			return nil, fmt.Errorf("edf: signal %q has empty digital range", s.label)
		}
		dataIdx = append(dataIdx, len(raw.Channels))
		raw.Channels = append(raw.Channels, Channel{
			Name:       s.label,
			Unit:       s.unit,
			Transducer: s.transducer,
			Prefilter:  s.prefilter,
		})
	}
	raw.SFreq = sfreq
	raw.Data = make([][]float64, len(raw.Channels))

	recordSize := 0
	for _, s := range signals {
		recordSize += 2 * s.samples
	}
	record := make([]byte, recordSize)
	for rec := 0; nRecords < 0 || rec < nRecords; rec++ {
		if _, err := io.ReadFull(br, record); err != nil {
			if nRecords < 0 && errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("edf: read record %d: %w", rec, err)
		}
		off := 0
		for i, s := range signals {
			chunk := record[off : off+2*s.samples]
			off += 2 * s.samples
			if dataIdx[i] < 0 {
				anns, err := parseTALs(chunk)
				if err != nil {
					return nil, fmt.Errorf("edf: record %d: %w", rec, err)
				}
				raw.Annotations = append(raw.Annotations, anns...)
				continue
			}
			scale := unitScale(s.unit)
			gain := s.gain()
			ch := dataIdx[i]
			for k := 0; k < s.samples; k++ {
				dig := float64(int16(binary.LittleEndian.Uint16(chunk[2*k:])))
				raw.Data[ch] = append(raw.Data[ch], (s.physMin+(dig-s.digMin)*gain)*scale)
			}
		}
	}
	return raw, nil
}

// WriteEDF encodes raw as an EDF+C file with 16-bit samples. Values are
// converted back to each channel's unit. Annotations are stored in the first
// data record.
func WriteEDF(w io.Writer, raw *Raw) error {
	if raw == nil || len(raw.Channels) == 0 {
		return errors.New("edf: nothing to write")
	}
	if raw.SFreq <= 0 {
		return fmt.Errorf("edf: invalid sampling rate %g", raw.SFreq)
	}
	n := raw.Samples()
	if n == 0 {
		return errors.New("edf: no samples")
	}

	spr := int(raw.SFreq)
	recDuration := 1.0
	nRecords := 0
	if float64(spr) == raw.SFreq && n%spr == 0 {
		nRecords = n / spr
	} else {
		spr = n
		recDuration = float64(n) / raw.SFreq
		nRecords = 1
	}

	tals := make([][]byte, nRecords)
	annBytes := 0
	for rec := range tals {
		var b bytes.Buffer
		fmt.Fprintf(&b, "+%s\x14\x14\x00", formatSeconds(float64(rec)*recDuration))
		if rec == 0 {
			for _, a := range raw.Annotations {
				b.WriteString("+" + formatSeconds(a.Onset))
				if a.Duration > 0 {
					b.WriteString("\x15" + formatSeconds(a.Duration))
				}
				b.WriteString("\x14" + a.Description + "\x14\x00")
			}
		}
		tals[rec] = b.Bytes()
		annBytes = max(annBytes, b.Len())
	}
	annSamples := (annBytes + 1) / 2

	signals := make([]edfSignal, 0, len(raw.Channels)+1)
	for i, ch := range raw.Channels {
		if len(raw.Data[i]) != n {
			return fmt.Errorf("edf: channel %q has %d samples, expected %d", ch.Name, len(raw.Data[i]), n)
		}
		unit := ch.Unit
		if unit == "" {
			unit = "uV"
		}
		scale := unitScale(unit)
		lo, hi := math.Inf(1), math.Inf(-1)
		for _, v := range raw.Data[i] {
			lo = math.Min(lo, v/scale)
			hi = math.Max(hi, v/scale)
		}
		physMin, _ := strconv.ParseFloat(formatField(math.Floor(lo*1000)/1000, 8), 64)
		physMax, _ := strconv.ParseFloat(formatField(math.Ceil(hi*1000)/1000, 8), 64)
		if physMax <= physMin {
			physMax = physMin + 1
		}
		signals = append(signals, edfSignal{
			label:      ch.Name,
			transducer: ch.Transducer,
			unit:       unit,
			physMin:    physMin,
			physMax:    physMax,
			digMin:     edfDigitalMin,
			digMax:     edfDigitalMax,
			prefilter:  ch.Prefilter,
			samples:    spr,
		})
	}
	signals = append(signals, edfSignal{
		label:   edfAnnotationTag,
		physMin: -1, physMax: 1,
		digMin: edfDigitalMin, digMax: edfDigitalMax,
		samples: annSamples,
	})

	bw := bufio.NewWriter(w)
	writeEDFHeader(bw, raw, signals, nRecords, recDuration)

	buf := make([]byte, 2)
	for rec := 0; rec < nRecords; rec++ {
		for i, s := range signals {
			if s.annotation() {
				chunk := make([]byte, 2*s.samples)
				copy(chunk, tals[rec])
				bw.Write(chunk)
				continue
			}
			scale := unitScale(s.unit)
			gain := s.gain()
			for _, v := range raw.Data[i][rec*spr : (rec+1)*spr] {
				dig := math.Round((v/scale-s.physMin)/gain + s.digMin)
				dig = math.Max(edfDigitalMin, math.Min(edfDigitalMax, dig))
				binary.LittleEndian.PutUint16(buf, uint16(int16(dig)))
				bw.Write(buf)
			}
		}
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("edf: write: %w", err)
	}
	return nil
}

func writeEDFHeader(w *bufio.Writer, raw *Raw, signals []edfSignal, nRecords int, recDuration float64) {
	start := raw.Start
	if start.IsZero() {
		start = time.Date(1985, 1, 1, 0, 0, 0, 0, time.UTC)
	}
	field := func(s string, width int) {
		if len(s) > width {
			s = s[:width]
		}
		w.WriteString(s + strings.Repeat(" ", width-len(s)))
	}
	field("0", 8)
	field(raw.Patient, 80)
	field(raw.Recording, 80)
	field(start.Format("02.01.06"), 8)
	field(start.Format("15.04.05"), 8)
	field(strconv.Itoa(edfHeaderSize*(len(signals)+1)), 8)
	field("EDF+C", 44)
	field(strconv.Itoa(nRecords), 8)
	field(formatField(recDuration, 8), 8)
	field(strconv.Itoa(len(signals)), 4)

	for _, s := range signals {
		field(s.label, 16)
	}
	for _, s := range signals {
		field(s.transducer, 80)
	}
	for _, s := range signals {
		field(s.unit, 8)
	}
	for _, s := range signals {
		field(formatField(s.physMin, 8), 8)
	}
	for _, s := range signals {
		field(formatField(s.physMax, 8), 8)
	}
	for _, s := range signals {
		field(strconv.Itoa(int(s.digMin)), 8)
	}
	for _, s := range signals {
		field(strconv.Itoa(int(s.digMax)), 8)
	}
	for _, s := range signals {
		field(s.prefilter, 80)
	}
	for _, s := range signals {
		field(strconv.Itoa(s.samples), 8)
	}
	for range signals {
		field("", 32)
	}
}

func parseEDFSignals(buf []byte, ns int) ([]edfSignal, error) {
	f := fieldReader{buf: buf}
	signals := make([]edfSignal, ns)
	for i := range signals {
		signals[i].label = f.str(16)
	}
	for i := range signals {
		signals[i].transducer = f.str(80)
	}
	for i := range signals {
		signals[i].unit = f.str(8)
	}
	var err error
	for i := range signals {
		if signals[i].physMin, err = f.float(8); err != nil {
			return nil, fmt.Errorf("edf: signal %d physical minimum: %w", i, err)
		}
	}
	for i := range signals {
		if signals[i].physMax, err = f.float(8); err != nil {
			return nil, fmt.Errorf("edf: signal %d physical maximum: %w", i, err)
		}
	}
	for i := range signals {
		if signals[i].digMin, err = f.float(8); err != nil {
			return nil, fmt.Errorf("edf: signal %d digital minimum: %w", i, err)
		}
	}
	for i := range signals {
		if signals[i].digMax, err = f.float(8); err != nil {
			return nil, fmt.Errorf("edf: signal %d digital maximum: %w", i, err)
		}
	}
	for i := range signals {
		signals[i].prefilter = f.str(80)
	}
	for i := range signals {
		if signals[i].samples, err = f.int(8); err != nil {
			return nil, fmt.Errorf("edf: signal %d samples per record: %w", i, err)
		}
	}
	return signals, nil
}

// parseTALs decodes the time-stamped annotation lists of one record. The
// timekeeping TAL (no description) is skipped.
func parseTALs(chunk []byte) ([]Annotation, error) {
	var out []Annotation
	for _, tal := range bytes.Split(chunk, []byte{0}) {
		if len(tal) == 0 {
			continue
		}
		parts := strings.Split(string(tal), "\x14")
		stamp := strings.SplitN(parts[0], "\x15", 2)
		onset, err := strconv.ParseFloat(strings.TrimSpace(stamp[0]), 64)
		if err != nil {
			return nil, fmt.Errorf("annotation onset %q: %w", stamp[0], err)
		}
		duration := 0.0
		if len(stamp) == 2 && strings.TrimSpace(stamp[1]) != "" {
			if duration, err = strconv.ParseFloat(strings.TrimSpace(stamp[1]), 64); err != nil {
				return nil, fmt.Errorf("annotation duration %q: %w", stamp[1], err)
			}
		}
		for _, desc := range parts[1:] {
			if desc == "" {
				continue
			}
			out = append(out, Annotation{Onset: onset, Duration: duration, Description: desc})
		}
	}
	return out, nil
}

func parseEDFStart(date, clock string) time.Time {
	t, err := time.Parse("02.01.06 15.04.05", date+" "+clock)
	if err != nil {
		return time.Time{}
	}
	// EDF years 85-99 are 1985-1999, the rest 2000-2084.
	if t.Year() < 1985 {
		t = t.AddDate(100, 0, 0)
	}
	return t
}

func unitScale(unit string) float64 {
	switch strings.TrimSpace(unit) {
	case "uV", "µV", "μV":
		return 1e-6
	case "mV":
		return 1e-3
	case "nV":
		return 1e-9
	default:
		return 1
	}
}

// formatField renders v in at most width characters.
func formatField(v float64, width int) string {
	for prec := width; prec >= 0; prec-- {
		s := strconv.FormatFloat(v, 'f', prec, 64)
		if strings.Contains(s, ".") {
			s = strings.TrimRight(strings.TrimRight(s, "0"), ".")
		}
		if len(s) <= width {
			return s
		}
	}
	return strconv.FormatFloat(v, 'g', width-6, 64)
}

func formatSeconds(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

type fieldReader struct {
	buf []byte
	off int
}

func (f *fieldReader) skip(n int) {
	f.off += n
}

func (f *fieldReader) str(n int) string {
	s := strings.TrimSpace(string(f.buf[f.off : f.off+n]))
	f.off += n
	return s
}

func (f *fieldReader) int(n int) (int, error) {
	return strconv.Atoi(f.str(n))
}

func (f *fieldReader) float(n int) (float64, error) {
	return strconv.ParseFloat(f.str(n), 64)
}
