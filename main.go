package main

import "match-relay-backend/cmd"

func main() {
	cmd.Run()
}
