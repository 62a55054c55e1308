package graph

import (
	"encoding/xml"
	"fmt"
	"strconv"
)

// GEXF serialization for external visualization tooling (Gephi and friends).
//
// Nodes and edges are emitted in sorted order, so two builds over an
// unchanged bind/output universe produce byte-identical documents.

// Node display constants. Size grows with in-degree so widely consumed
// services render larger.
const (
	nodeSizeBase      = 65.0
	nodeSizePerDegree = 3.5
)

var nodeColor = gexfColor{R: 51, G: 153, B: 243, A: 0}

type gexfDoc struct {
	XMLName xml.Name  `xml:"gexf"`
	Xmlns   string    `xml:"xmlns,attr"`
	Viz     string    `xml:"xmlns:viz,attr"`
	Version string    `xml:"version,attr"`
	Graph   gexfGraph `xml:"graph"`
}

type gexfGraph struct {
	Mode            string     `xml:"mode,attr"`
	DefaultEdgeType string     `xml:"defaultedgetype,attr"`
	Attributes      gexfAttrs  `xml:"attributes"`
	Nodes           []gexfNode `xml:"nodes>node"`
	Edges           []gexfEdge `xml:"edges>edge"`
}

type gexfAttrs struct {
	Class string     `xml:"class,attr"`
	Attrs []gexfAttr `xml:"attribute"`
}

type gexfAttr struct {
	ID    string `xml:"id,attr"`
	Title string `xml:"title,attr"`
	Type  string `xml:"type,attr"`
}

type gexfNode struct {
	ID        string         `xml:"id,attr"`
	Label     string         `xml:"label,attr"`
	AttValues []gexfAttValue `xml:"attvalues>attvalue"`
	Color     gexfColor      `xml:"viz:color"`
	Size      gexfSize       `xml:"viz:size"`
}

type gexfAttValue struct {
	For   string `xml:"for,attr"`
	Value string `xml:"value,attr"`
}

type gexfColor struct {
	R int `xml:"r,attr"`
	G int `xml:"g,attr"`
	B int `xml:"b,attr"`
	A int `xml:"a,attr"`
}

type gexfSize struct {
	Value string `xml:"value,attr"`
}

type gexfEdge struct {
	ID     string `xml:"id,attr"`
	Source string `xml:"source,attr"`
	Target string `xml:"target,attr"`
}

// GEXF serializes the graph as a GEXF 1.2 document with viz extensions.
func (g *Graph) GEXF() ([]byte, error) {
	doc := gexfDoc{
		Xmlns:   "http://www.gexf.net/1.2draft",
		Viz:     "http://www.gexf.net/1.2draft/viz",
		Version: "1.2",
		Graph: gexfGraph{
			Mode:            "static",
			DefaultEdgeType: "directed",
			Attributes: gexfAttrs{
				Class: "node",
				Attrs: []gexfAttr{
					{ID: "0", Title: "version", Type: "string"},
					{ID: "1", Title: "info", Type: "string"},
				},
			},
		},
	}

	for _, node := range g.Nodes {
		size := nodeSizeBase + nodeSizePerDegree*float64(g.InDegree(node.Identity))
		doc.Graph.Nodes = append(doc.Graph.Nodes, gexfNode{
			ID:    node.Identity,
			Label: node.Identity,
			AttValues: []gexfAttValue{
				{For: "0", Value: node.Version},
				{For: "1", Value: node.Info},
			},
			Color: nodeColor,
			Size:  gexfSize{Value: strconv.FormatFloat(size, 'f', -1, 64)},
		})
	}

	// Nodes are sorted by identity, so edges come out sorted by
	// (consumer, producer) and edge IDs are stable across builds.
	edgeID := 0
	for _, consumer := range g.Nodes {
		for _, producer := range g.ReceivesFrom[consumer.Identity] {
			doc.Graph.Edges = append(doc.Graph.Edges, gexfEdge{
				ID:     strconv.Itoa(edgeID),
				Source: producer,
				Target: consumer.Identity,
			})
			edgeID++
		}
	}

	out, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to serialize graph: %w", err)
	}

	return append([]byte(xml.Header), out...), nil
}
