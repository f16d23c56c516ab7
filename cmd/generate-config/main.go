package main

import (
	"bytes"
	"flag"
	"fmt"
	"os"

	"github.com/debemdeboas/war-room/internal/config"
)

func main() {
	out := flag.String("o", "config.example.yaml", "output file, or - for stdout")
	flag.Parse()

	var buf bytes.Buffer
	if err := config.WriteExample(&buf); err != nil {
		fmt.Fprintf(os.Stderr, "Error generating config: %v\n", err)
		os.Exit(1)
	}

	if *out == "-" {
		os.Stdout.Write(buf.Bytes())
		return
	}
	if err := os.WriteFile(*out, buf.Bytes(), 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing %s: %v\n", *out, err)
		os.Exit(1)
	}
	fmt.Printf("Generated example config: %s\n", *out)
}
