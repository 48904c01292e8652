package main

import "github.com/vuongle/reactobot/cmd"

func main() {
	cmd.Execute()
}
