package cfgmodel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddNodeAssignsSequentialIDs(t *testing.T) {
	g := &Graph{}
	a := g.AddNode(NodeEntry, 1)
	b := g.AddNode(NodeExit, 5)
	assert.Equal(t, NodeID(0), a.ID)
	assert.Equal(t, NodeID(1), b.ID)
	require.Len(t, g.Nodes, 2)
}

func TestAddEdgeAndSuccessorsPredecessors(t *testing.T) {
	g := &Graph{}
	entry := g.AddNode(NodeEntry, 1)
	exit := g.AddNode(NodeExit, 2)
	g.AddEdge(entry.ID, exit.ID, EdgeFlow)

	succ := g.Successors(entry.ID)
	require.Len(t, succ, 1)
	assert.Equal(t, exit.ID, succ[0].To)

	pred := g.Predecessors(exit.ID)
	require.Len(t, pred, 1)
	assert.Equal(t, entry.ID, pred[0].From)
}

func TestIsExit(t *testing.T) {
	g := &Graph{}
	exit := g.AddNode(NodeExit, 1)
	g.Exits = []NodeID{exit.ID}
	assert.True(t, g.IsExit(exit.ID))
	assert.False(t, g.IsExit(NodeID(99)))
}
