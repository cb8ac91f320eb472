// Package main provides the geocog CLI.
package main

import (
	"fmt"
	"os"

	"github.com/geocog/geocog/geotiff"
)

const version = "v0.0.1-dev"

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "version":
			fmt.Printf("geocog %s\n", version)
			return
		case "info":
			if len(os.Args) < 3 {
				fmt.Fprintln(os.Stderr, "usage: geocog info <file.tif>")
				os.Exit(2)
			}
			if err := info(os.Args[2]); err != nil {
				fmt.Fprintf(os.Stderr, "geocog: %v\n", err)
				os.Exit(1)
			}
			return
		}
	}

	fmt.Println("geocog - Cloud-Optimized GeoTIFF to tensor decoder")
	fmt.Printf("Version: %s\n\n", version)
	fmt.Println("Commands:")
	fmt.Println("  version        Show version")
	fmt.Println("  info <file>    Show shape, dtype and geotransform of a GeoTIFF")
}

func info(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	r, err := geotiff.NewReader(f)
	if err != nil {
		return err
	}

	width, height := r.Size()
	fmt.Printf("size:   %dx%d, %d level(s)\n", width, height, r.Levels())

	if dtype, err := r.DataType(); err == nil {
		fmt.Printf("dtype:  %s\n", dtype)
	}
	if bands, err := r.BandCount(); err == nil {
		fmt.Printf("bands:  %d\n", bands)
	}
	if nodata, ok := r.NoData(); ok {
		fmt.Printf("nodata: %s\n", nodata)
	}

	tf, err := r.Transform()
	if err != nil {
		fmt.Printf("transform: unavailable (%v)\n", err)
		return nil
	}
	fmt.Printf("transform: (%g, %g, %g, %g, %g, %g)\n", tf.A, tf.B, tf.C, tf.D, tf.E, tf.F)

	xs, ys, err := r.XYCoords()
	if err == nil && len(xs) > 0 && len(ys) > 0 {
		fmt.Printf("x range: %g .. %g\n", xs[0], xs[len(xs)-1])
		fmt.Printf("y range: %g .. %g\n", ys[0], ys[len(ys)-1])
	}
	return nil
}
