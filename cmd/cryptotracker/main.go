package main

import "crypto-tracker/internal/cli"

func main() {
	cli.Execute()
}
