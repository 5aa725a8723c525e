package main

import "github.com/seedwright/seedwright/cmd"

func main() {
	cmd.Execute()
}
