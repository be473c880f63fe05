package main

import "recipehub/cmd/msgctl/cmd"

func main() {
	cmd.Execute()
}
