package main

import "github.com/xvierd/notetime/cmd"

func main() {
	cmd.Execute()
}
