package main

import "otpadm/otpadm/cmd"

func main() {
	cmd.Run()
}
