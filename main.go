package main

import "SonicPlayer/cmd"

func main() {
	cmd.Execute()
}
