package main

import (
	"flag"
	"fmt"
	"log"
	"math"
	"path/filepath"

	"coaster-builder/internal/track"

	"github.com/google/uuid"
)

// Sample coasters written by this tool. Heights are metres above ground.
var generators = map[string]func() []track.Position{
	"oval":     oval,
	"hills":    hills,
	"helix":    helix,
	"vertical": verticalLoop,
}

// oval is a closed ellipse with a lift hill on the back straight.
func oval() []track.Position {
	const (
		radiusX, radiusZ = 40.0, 25.0
		points           = 16
	)
	var out []track.Position
	for i := 0; i < points; i++ {
		a := 2 * math.Pi * float64(i) / points
		h := 3.0
		// Lift hill on the far side
		if d := math.Abs(a - math.Pi); d < math.Pi/3 {
			h += 12 * math.Cos(d*1.5)
		}
		out = append(out, track.Position{X: radiusX * math.Cos(a), Y: h, Z: radiusZ * math.Sin(a)})
	}
	// Repeat the first point to close the loop
	return append(out, out[0])
}

// hills is an open run of shrinking camelbacks.
func hills() []track.Position {
	out := []track.Position{{X: -60, Y: 2}}
	crest := 25.0
	for i := 0; i < 10; i++ {
		y := 2.0
		if i%2 == 0 {
			y = crest
			crest *= 0.8
		}
		out = append(out, track.Position{X: -50 + 10*float64(i), Y: y})
	}
	return out
}

// helix climbs two full turns.
func helix() []track.Position {
	var out []track.Position
	for i := 0; i <= 16; i++ {
		a := float64(i) * math.Pi / 4
		out = append(out, track.Position{X: 20 * math.Cos(a), Y: 2 + 1.5*float64(i), Z: 20 * math.Sin(a)})
	}
	return out
}

// verticalLoop runs in, over an inverted crest and out, offset sideways so it does not cross itself.
func verticalLoop() []track.Position {
	return []track.Position{
		{X: -30, Y: 2, Z: 0},
		{X: 0, Y: 2, Z: 0},
		{X: 12, Y: 10, Z: 1},
		{X: 6, Y: 20, Z: 2},
		{X: -2, Y: 10, Z: 3},
		{X: 4, Y: 2, Z: 4},
		{X: 40, Y: 2, Z: 4},
	}
}

func main() {
	outDir := flag.String("out", "assets/coasters", "output directory")
	withIDs := flag.Bool("ids", false, "write explicit point ids")
	flag.Parse()

	for name, gen := range generators {
		doc := &track.Document{Name: name}
		for _, p := range gen() {
			rec := track.DocumentPoint{Position: p}
			if *withIDs {
				rec.ID = uuid.NewString()
			}
			doc.Points = append(doc.Points, rec)
		}

		path := filepath.Join(*outDir, name+".json")
		if err := doc.Save(path); err != nil {
			log.Fatal(err)
		}
		fmt.Printf("wrote %s (%d points)\n", path, len(doc.Points))
	}
}
