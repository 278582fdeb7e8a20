package main

import "github.com/OpenTraceLab/OpenTraceGCE/cmd/gce/cmd"

func main() {
	cmd.Execute()
}
