package main

import "workspace-merge/internal/cli"

func main() {
	cli.Execute()
}
