package main

import "github.com/blurkit/blurkit/pkg/cli"

func main() {
	cli.RunCLI()
}
