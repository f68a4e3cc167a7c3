package main

import "appframe/cmd"

func main() {
	cmd.Execute()
}
