package dataset

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// headRadius is the sphere radius of the template montage in meters.
const headRadius = 0.095

// Montage maps channel names to sensor positions in head coordinates
// (x right, y anterior, z superior; meters).
type Montage struct {
	Name      string
	positions map[string][3]float64
}

// Position returns the location of channel name. Lookup is case-insensitive.
func (m *Montage) Position(name string) ([3]float64, bool) {
	pos, ok := m.positions[strings.ToUpper(name)]
	return pos, ok
}

// Len returns the number of known positions.
func (m *Montage) Len() int {
	return len(m.positions)
}

// montageRow describes one row of the 10-05 grid. The midline electrode and
// the electrode where the row meets the 72° ring anchor the row; steps beyond
// the ring drop to the 90° equator at the ring azimuth. Angles are polar
// (from Cz) and azimuth (from the nasion direction), in degrees.
type montageRow struct {
	prefix                 string
	midPolar, midAzimuth   float64
	ringPolar, ringAzimuth float64
	ringStep               int
	// midline adds the "<prefix>Z" electrode.
	midline bool
	// left lists the odd (left) electrode numbers of the 10-20/10-10 set;
	// each has an even right-hand mirror n+1. extra lists the 10-05 additions.
	left, extra []int
}

// The FT, T and TP rows continue the FC, C and CP rows past their sixth
// electrode, so they share those rows' anchors but only carry numbers 7-10.
var montageRows = []montageRow{
	{prefix: "FP", midPolar: 72, midAzimuth: 0, ringPolar: 72, ringAzimuth: 18, ringStep: 1, midline: true, left: []int{1}},
	{prefix: "AF", midPolar: 54, midAzimuth: 0, ringPolar: 72, ringAzimuth: 36, ringStep: 4, midline: true, left: []int{3, 7}, extra: []int{1, 5, 9}},
	{prefix: "F", midPolar: 36, midAzimuth: 0, ringPolar: 72, ringAzimuth: 54, ringStep: 4, midline: true, left: []int{1, 3, 5, 7, 9}},
	{prefix: "FC", midPolar: 18, midAzimuth: 0, ringPolar: 72, ringAzimuth: 72, ringStep: 4, midline: true, left: []int{1, 3, 5}},
	{prefix: "FT", midPolar: 18, midAzimuth: 0, ringPolar: 72, ringAzimuth: 72, ringStep: 4, left: []int{7, 9}},
	{prefix: "C", midPolar: 0, midAzimuth: 0, ringPolar: 72, ringAzimuth: 90, ringStep: 4, midline: true, left: []int{1, 3, 5}},
	{prefix: "T", midPolar: 0, midAzimuth: 0, ringPolar: 72, ringAzimuth: 90, ringStep: 4, left: []int{7, 9}},
	{prefix: "CP", midPolar: 18, midAzimuth: 180, ringPolar: 72, ringAzimuth: 108, ringStep: 4, midline: true, left: []int{1, 3, 5}},
	{prefix: "TP", midPolar: 18, midAzimuth: 180, ringPolar: 72, ringAzimuth: 108, ringStep: 4, left: []int{7, 9}},
	{prefix: "P", midPolar: 36, midAzimuth: 180, ringPolar: 72, ringAzimuth: 126, ringStep: 4, midline: true, left: []int{1, 3, 5, 7, 9}},
	{prefix: "PO", midPolar: 54, midAzimuth: 180, ringPolar: 72, ringAzimuth: 144, ringStep: 4, midline: true, left: []int{3, 7}, extra: []int{1, 5, 9}},
	{prefix: "O", midPolar: 72, midAzimuth: 180, ringPolar: 72, ringAzimuth: 162, ringStep: 1, midline: true, left: []int{1}},
	{prefix: "I", midPolar: 90, midAzimuth: 180, ringPolar: 90, ringAzimuth: 162, ringStep: 1, midline: true, left: []int{1}},
}

// montageAliases maps the old 10-20 temporal names to their 10-10 sites.
var montageAliases = map[string]string{"T3": "T7", "T4": "T8", "T5": "P7", "T6": "P8"}

// StandardMontage returns a spherical template for the 10-05 system
// ("standard_1005") or its 10-10 subset ("standard_1020").
func StandardMontage(name string) (*Montage, error) {
	if name != "standard_1005" && name != "standard_1020" {
		return nil, fmt.Errorf("montage: unknown template %q", name)
	}
	m := &Montage{Name: name, positions: make(map[string][3]float64)}
	for _, row := range montageRows {
		if row.midline {
			m.positions[row.prefix+"Z"] = row.point(0)
		}
		left := row.left
		if name == "standard_1005" {
			left = append(append([]int(nil), row.left...), row.extra...)
		}
		for _, n := range left {
			pos := row.point((n + 1) / 2)
			m.positions[row.prefix+strconv.Itoa(n)] = pos
			pos[0] = -pos[0]
			m.positions[row.prefix+strconv.Itoa(n+1)] = pos
		}
	}
	for alias, site := range montageAliases {
		m.positions[alias] = m.positions[site]
	}
	return m, nil
}

// point returns the position of the electrode step places lateral (to the
// left) of the row's midline electrode.
func (r montageRow) point(step int) [3]float64 {
	mid := sphere(r.midPolar, r.midAzimuth)
	switch {
	case step == 0:
		return scale(mid)
	case step > r.ringStep:
		return scale(sphere(90, r.ringAzimuth))
	}
	ring := sphere(r.ringPolar, r.ringAzimuth)
	return scale(slerp(mid, ring, float64(step)/float64(r.ringStep)))
}

// sphere converts angles in degrees to a unit vector on the left hemisphere.
func sphere(polar, azimuth float64) [3]float64 {
	th := polar * math.Pi / 180
	ph := azimuth * math.Pi / 180
	return [3]float64{-math.Sin(th) * math.Sin(ph), math.Sin(th) * math.Cos(ph), math.Cos(th)}
}

// slerp interpolates along the great circle from a to b.
func slerp(a, b [3]float64, t float64) [3]float64 {
	dot := a[0]*b[0] + a[1]*b[1] + a[2]*b[2]
	omega := math.Acos(math.Max(-1, math.Min(1, dot)))
	if omega < 1e-9 {
		return a
	}
	sa := math.Sin((1-t)*omega) / math.Sin(omega)
	sb := math.Sin(t*omega) / math.Sin(omega)
	return [3]float64{sa*a[0] + sb*b[0], sa*a[1] + sb*b[1], sa*a[2] + sb*b[2]}
}

func scale(v [3]float64) [3]float64 {
	return [3]float64{v[0] * headRadius, v[1] * headRadius, v[2] * headRadius}
}
