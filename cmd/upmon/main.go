package main

import "github.com/HaPhanBaoMinh/upmon/cmd/upmon/cmd"

func main() {
	cmd.Execute()
}
