package main

import "camperwatch/cmd"

func main() {
	cmd.Execute()
}
