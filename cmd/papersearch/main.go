package main

import "papersearch/internal/cli"

func main() {
	cli.Execute()
}
