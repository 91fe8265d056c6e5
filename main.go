package main

import "github.com/uvmon/uvmon/cmd"

func main() {
	cmd.Execute()
}
