package main

import "propwatch/internal/cli"

func main() {
	cli.Execute()
}
