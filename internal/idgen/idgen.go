package idgen

import (
	"github.com/bwmarrin/snowflake"
)

// Generator hands out time-ordered int64 ids for users, discussions and comments.
type Generator struct {
	node *snowflake.Node
}

func New(node int64) (*Generator, error) {
	n, err := snowflake.NewNode(node)
	if err != nil {
		return nil, err
	}
	return &Generator{node: n}, nil
}

func (g *Generator) Next() int64 {
	return g.node.Generate().Int64()
}
