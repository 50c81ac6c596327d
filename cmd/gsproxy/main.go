package main

import "github.com/avikko/gsproxy/internal/cli"

func main() {
	cli.Execute()
}
