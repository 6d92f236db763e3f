package main

import "github.com/NoPKT/agentim/cmd"

func main() {
	cmd.Execute()
}
