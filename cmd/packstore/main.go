package main

import "github.com/packstore/packstore/internal/cli"

func main() {
	cli.Execute()
}
