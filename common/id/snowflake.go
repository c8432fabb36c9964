package id

import (
	"sync"

	"github.com/bwmarrin/snowflake"
)

var (
	node *snowflake.Node
	once sync.Once
)

// Init initializes the Snowflake node with the given node ID. Call once at
// process startup before any New call.
func Init(nodeID int64) error {
	var err error
	once.Do(func() {
		node, err = snowflake.NewNode(nodeID)
	})
	return err
}

// New generates a time-ordered int64 ID unique across service instances.
func New() int64 {
	return node.Generate().Int64()
}

// NewString returns a new ID in its base58 form, the representation stored
// inside conversation state blobs.
func NewString() string {
	return node.Generate().Base58()
}
