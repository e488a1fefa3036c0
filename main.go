package main

import server "github.com/thereayou/loci-chat/cmd/server"

func main() {
	server.NewServer().Run()
}
