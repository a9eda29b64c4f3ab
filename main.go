package main

import "github.com/gregorybednov/bountychain/cli"

func main() {
	cli.Execute()
}
