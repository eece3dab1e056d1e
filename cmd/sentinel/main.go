package main

import "chainguard-sentinel/internal/cli"

func main() {
	cli.Execute()
}
