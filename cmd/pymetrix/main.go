package main

import "github.com/mvp-joe/pymetrix/internal/cli"

func main() {
	cli.Execute()
}
