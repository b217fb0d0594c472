package main

import "github.com/eklimov/capvid/internal/cli"

func main() {
	cli.Main()
}
