// main.go - Application entry point
package main

import "github.com/valpere/aoi_to_mbtiles/cmd"

func main() {
	cmd.Execute()
}
