package overlay

import (
	"fmt"

	"attraction-map/models"

	"github.com/bwmarrin/snowflake"
)

// IDGenerator issues ids for records created locally. Ids are time ordered and
// carry the custom_ prefix so they never collide with imported feature ids.
type IDGenerator struct {
	node *snowflake.Node
}

// NewIDGenerator takes a node number in [0, 1023], distinct per concurrently running session.
func NewIDGenerator(node int64) (*IDGenerator, error) {
	n, err := snowflake.NewNode(node)
	if err != nil {
		return nil, fmt.Errorf("snowflake node %d: %w", node, err)
	}
	return &IDGenerator{node: n}, nil
}

func (g *IDGenerator) Next() string {
	return models.LocalIDPrefix + g.node.Generate().String()
}
