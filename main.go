package main

import "video-match-backend/cmd"

func main() {
	cmd.Run()
}
