package main

import "arxcore/cmd"

func main() {
	cmd.Execute()
}
