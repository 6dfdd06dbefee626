// Package graph flattens nodes and connections into the view consumed by visualization.
package graph

import "github.com/hyperjump/syntra/internal/models"

// Assemble returns nodes and connections in their given order with embeddings stripped.
// Inputs are not modified. Layout is left to the client.
func Assemble(nodes []*models.KnowledgeNode, connections []*models.Connection) *models.GraphView {
	view := &models.GraphView{
		Nodes:       make([]*models.KnowledgeNode, 0, len(nodes)),
		Connections: make([]*models.Connection, 0, len(connections)),
	}
	for _, n := range nodes {
		view.Nodes = append(view.Nodes, n.Public())
	}
	for _, c := range connections {
		cp := *c
		view.Connections = append(view.Connections, &cp)
	}
	return view
}
