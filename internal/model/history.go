package model

import (
	"fmt"
	"io"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"
)

// History holds one value per training epoch for every tracked metric.
// Validation series are empty when training ran without a validation split.
type History struct {
	Loss        []float64 `json:"loss"`
	ValLoss     []float64 `json:"val_loss,omitempty"`
	Accuracy    []float64 `json:"accuracy"`
	ValAccuracy []float64 `json:"val_accuracy,omitempty"`
	AUC         []float64 `json:"auc"`
	ValAUC      []float64 `json:"val_auc,omitempty"`
}

// Epochs returns the number of recorded training epochs.
func (h History) Epochs() int {
	return len(h.Loss)
}

// Metrics returns the tracked series keyed by metric name.
func (h History) Metrics() map[string][]float64 {
	m := map[string][]float64{
		"loss":     h.Loss,
		"accuracy": h.Accuracy,
		"auc":      h.AUC,
	}
	if len(h.ValLoss) > 0 {
		m["val_loss"] = h.ValLoss
		m["val_accuracy"] = h.ValAccuracy
		m["val_auc"] = h.ValAUC
	}
	return m
}

// History returns a copy of the most recent training history.
func (a *ANN) History() (History, error) {
	if a.history == nil {
		return History{}, ErrNotTrained
	}
	h := *a.history
	h.Loss = append([]float64(nil), h.Loss...)
	h.ValLoss = append([]float64(nil), h.ValLoss...)
	h.Accuracy = append([]float64(nil), h.Accuracy...)
	h.ValAccuracy = append([]float64(nil), h.ValAccuracy...)
	h.AUC = append([]float64(nil), h.AUC...)
	h.ValAUC = append([]float64(nil), h.ValAUC...)
	return h, nil
}

// PlotHistory writes a PNG with the loss curves and the accuracy curves side by side.
func (a *ANN) PlotHistory(w io.Writer) error {
	h, err := a.History()
	if err != nil {
		return err
	}
	return WriteHistoryPlot(w, h)
}

// WriteHistoryPlot renders h as a two-panel PNG.
func WriteHistoryPlot(w io.Writer, h History) error {
	lossPlot, err := curvePlot("Loss", "Loss",
		"Training Loss", h.Loss, "Validation Loss", h.ValLoss)
	if err != nil {
		return err
	}
	accPlot, err := curvePlot("Accuracy", "Accuracy",
		"Training Accuracy", h.Accuracy, "Validation Accuracy", h.ValAccuracy)
	if err != nil {
		return err
	}

	img := vgimg.New(12*vg.Inch, 6*vg.Inch)
	dc := draw.New(img)
	tiles := draw.Tiles{
		Rows:      1,
		Cols:      2,
		PadX:      vg.Millimeter * 4,
		PadTop:    vg.Millimeter * 2,
		PadBottom: vg.Millimeter * 2,
		PadLeft:   vg.Millimeter * 2,
		PadRight:  vg.Millimeter * 2,
	}
	canvases := plot.Align([][]*plot.Plot{{lossPlot, accPlot}}, tiles, dc)
	lossPlot.Draw(canvases[0][0])
	accPlot.Draw(canvases[0][1])

	png := vgimg.PngCanvas{Canvas: img}
	if _, err := png.WriteTo(w); err != nil {
		return fmt.Errorf("write history plot: %w", err)
	}
	return nil
}

func curvePlot(title, ylabel, trainName string, train []float64, valName string, val []float64) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Epochs"
	p.Y.Label.Text = ylabel
	p.Legend.Top = true

	series := []interface{}{trainName, epochPoints(train)}
	if len(val) > 0 {
		series = append(series, valName, epochPoints(val))
	}
	if err := plotutil.AddLines(p, series...); err != nil {
		return nil, fmt.Errorf("plot %s: %w", title, err)
	}
	return p, nil
}

func epochPoints(values []float64) plotter.XYs {
	pts := make(plotter.XYs, len(values))
	for i, v := range values {
		pts[i].X = float64(i)
		pts[i].Y = v
	}
	return pts
}
