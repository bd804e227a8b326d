package main

import "github.com/bradfordvt/P2654Model/cmd/p2654/cmd"

func main() {
	cmd.Execute()
}
