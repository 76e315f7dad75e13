package main

import "github.com/vurg/notification-service/cmd"

func main() {
	cmd.Execute()
}
