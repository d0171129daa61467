// Package viz renders diagnostic plots of band-filtered EEG windows.
package viz

import (
	"errors"
	"fmt"
	"image/color"
	"os"
	"path/filepath"
	"strings"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"eegmi/internal/dataset"
)

// AllBands selects every canonical band present in the mapping.
const AllBands = "all"

// DefaultTitle is used when PlotBand is called with an empty title.
const DefaultTitle = "Brain Wave Signal"

// ErrUnknownBand is returned when the requested band is not in the mapping.
var ErrUnknownBand = errors.New("brain wave not found in the provided epochs")

// PlotBand renders the averaged signal of one band, or of every canonical
// band when band is AllBands, as PNG files in outDir. It returns the paths
// written.
func PlotBand(bands map[string]*dataset.Epochs, band, title, outDir string) ([]string, error) {
	if title == "" {
		title = DefaultTitle
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("plot band: %w", err)
	}

	if band != AllBands {
		ep, ok := bands[band]
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownBand, band)
		}
		path, err := savePlot(ep.Average(), title, band+" Band", outDir, band)
		if err != nil {
			return nil, err
		}
		return []string{path}, nil
	}

	var paths []string
	for _, b := range dataset.Bands {
		ep, ok := bands[b.Name]
		if !ok {
			continue
		}
		heading := fmt.Sprintf("%s Band (%g-%g Hz)", b.Name, b.Low, b.High)
		path, err := savePlot(ep.Average(), title, heading, outDir, b.Name)
		if err != nil {
			return nil, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

func savePlot(ev *dataset.Evoked, title, heading, outDir, band string) (string, error) {
	p, err := EvokedPlot(ev, heading)
	if err != nil {
		return "", err
	}
	name := fmt.Sprintf("%s_%s.png", slug(title), strings.ToLower(band))
	path := filepath.Join(outDir, name)
	if err := p.Save(10*vg.Inch, 4*vg.Inch, path); err != nil {
		return "", fmt.Errorf("save %s: %w", path, err)
	}
	return path, nil
}

// EvokedPlot draws one line per channel of ev in µV against time in seconds.
func EvokedPlot(ev *dataset.Evoked, heading string) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = heading
	p.X.Label.Text = "Time (s)"
	p.Y.Label.Text = "µV"
	p.Add(plotter.NewGrid())

	times := ev.Times()
	for c, ch := range ev.Data {
		pts := make(plotter.XYs, len(ch))
		for i, v := range ch {
			pts[i].X = times[i]
			pts[i].Y = v * 1e6
		}
		line, err := plotter.NewLine(pts)
		if err != nil {
			return nil, fmt.Errorf("channel %s: %w", ev.Channels[c].Name, err)
		}
		line.Color = channelColor(c)
		line.Width = vg.Points(0.5)
		p.Add(line)
	}
	return p, nil
}

func channelColor(i int) color.Color {
	return plotutil.Color(i)
}

func slug(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			return r
		}
		return '_'
	}, s)
}
