package a

import (
	"errors"
	"log"
)

type fataler struct{}

func (fataler) Fatal(...interface{}) {}

func load() error {
	return errors.New("boom")
}

func Setup() {
	if err := load(); err != nil {
		log.Fatal(err) // want "log.Fatal stops the process from a library; return the error instead"
	}
	log.Panicf("bad %d", 1) // want "log.Panicf stops the process from a library; return the error instead"
	log.Printf("fine")

	var f fataler
	f.Fatal("not the log package")
}
