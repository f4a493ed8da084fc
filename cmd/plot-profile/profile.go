package main

import (
	"fmt"
	"image/color"
	"math"
	"path/filepath"

	"coaster-builder/internal/session"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// RideSample is one recorded frame of a ride.
type RideSample struct {
	Time     float64
	Distance float64 // Arc length from the start of the track
	Height   float64
	Speed    float64
	BankDeg  float64
	Laps     int
}

// Simulate rides s for the given duration at a fixed frame step.
// The session must hold a rideable track.
func Simulate(s *session.Session, seconds, dt float64) ([]RideSample, error) {
	if err := s.SetMode(session.Ride); err != nil {
		return nil, err
	}
	defer s.SetMode(session.Build)

	frames := max(1, int(math.Round(seconds/dt)))
	out := make([]RideSample, 0, frames)
	for i := 1; i <= frames; i++ {
		f := s.Tick(dt)
		if !f.Riding {
			return out, fmt.Errorf("ride stopped after %.2fs", float64(i)*dt)
		}
		out = append(out, RideSample{
			Time:     float64(i) * dt,
			Distance: f.Pose.Sample.Distance,
			Height:   f.Pose.Sample.Position.Y,
			Speed:    f.Speed,
			BankDeg:  f.Pose.Bank * 180 / math.Pi,
			Laps:     f.Laps,
		})
	}
	return out, nil
}

// profileSeries picks one value per sample for plotting against time.
type profileSeries struct {
	file  string
	title string
	label string
	color color.Color
	value func(RideSample) float64
}

var series = []profileSeries{
	{"height.png", "Rider Height", "Height (m)", color.RGBA{R: 60, G: 90, B: 200, A: 255}, func(s RideSample) float64 { return s.Height }},
	{"speed.png", "Ride Speed", "Speed (m/s)", color.RGBA{R: 220, G: 60, B: 40, A: 255}, func(s RideSample) float64 { return s.Speed }},
	{"bank.png", "Bank Angle", "Bank (deg)", color.RGBA{R: 40, G: 160, B: 60, A: 255}, func(s RideSample) float64 { return s.BankDeg }},
}

// WritePlots renders the recorded ride as one PNG per series into outDir
// and returns the written paths.
func WritePlots(name string, samples []RideSample, outDir string) ([]string, error) {
	var written []string
	for _, sr := range series {
		p := plot.New()
		p.Title.Text = fmt.Sprintf("%s - %s", name, sr.title)
		p.X.Label.Text = "Time (s)"
		p.Y.Label.Text = sr.label

		pts := make(plotter.XYs, 0, len(samples))
		for _, s := range samples {
			pts = append(pts, plotter.XY{X: s.Time, Y: sr.value(s)})
		}
		line, err := plotter.NewLine(pts)
		if err != nil {
			return written, err
		}
		line.Color = sr.color
		line.Width = vg.Points(1)
		p.Add(line)
		p.Add(plotter.NewGrid())

		path := filepath.Join(outDir, name+"_"+sr.file)
		if err := p.Save(10*vg.Inch, 4*vg.Inch, path); err != nil {
			return written, fmt.Errorf("save %s plot: %w", sr.title, err)
		}
		written = append(written, path)
	}
	return written, nil
}
