package main

import "github.com/mcoot/villefarm/internal/cli"

func main() {
	cli.Execute()
}
