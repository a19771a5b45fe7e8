package inmemdb

import (
	"sync"

	"github.com/trezcool/madrasa/core/contact"
	"github.com/trezcool/madrasa/core/message"
)

type (
	contactTable struct {
		mutex sync.RWMutex
		table map[string]*contact.Contact
	}

	messageTable struct {
		mutex sync.RWMutex
		table []message.Message // insertion order
	}

	// DB is an in-process database for tests and the inmem engine. Data is lost on exit.
	DB struct {
		contact *contactTable
		message *messageTable
	}
)

func NewDB() *DB {
	return &DB{
		contact: &contactTable{table: make(map[string]*contact.Contact)},
		message: &messageTable{},
	}
}
