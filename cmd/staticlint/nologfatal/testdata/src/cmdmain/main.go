package main

import "log"

func main() {
	log.Fatal("allowed in main")
}
