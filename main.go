package main

import "github.com/kalshi-sports/live-engine/cmd"

func main() {
	cmd.Execute()
}
