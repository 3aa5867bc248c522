package main

import "github.com/SteelMorgan/condorlog/internal/cli"

// version is set at build time with -ldflags "-X main.version=..."
var version = "0.1.0"

func main() {
	cli.Execute(version)
}
