package main

import "finpilot-server/src/cmd"

func main() {
	cmd.Execute()
}
