package main

import (
	"log"

	tool "github.com/arjunms/account-service/internal/tools/accountctl"
)

func main() {
	if err := tool.NewRootCommand().Execute(); err != nil {
		log.Fatal(err)
	}
}
