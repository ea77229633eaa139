package bfl

import (
	"fmt"
	"path"
	"strings"

	"github.com/goccy/go-graphviz"
	"github.com/goccy/go-graphviz/cgraph"
)

//nodeDescription describes an internal node. Every node of a level shares the
//same split, so the label names the level alongside the split rule.
func (m *DecisionTreeClassifier) nodeDescription(batch, target, level int) string {
	t := m.NumTarget
	feature := m.Levels[level].Feature[batch*t+target]
	threshold := m.Levels[level].Threshold[batch*t+target]
	var sb strings.Builder
	sb.WriteString(fmt.Sprintln("level:", level))
	sb.WriteString(fmt.Sprintf("f_%d <= %6.5f", feature, threshold))
	return sb.String()
}

//leafDescription lists the per-class training-row counts of a leaf.
func (m *DecisionTreeClassifier) leafDescription(batch, target, leaf int) string {
	t := m.NumTarget
	u := len(m.UniqueY)
	leafCount := m.LeafCount()
	var sb strings.Builder
	sb.WriteString(fmt.Sprintln("leaf:", leaf))
	for ui, class := range m.UniqueY {
		count := m.Count[((batch*t+target)*u+ui)*leafCount+leaf]
		sb.WriteString(fmt.Sprintf("y=%g: %g\n", class, count))
	}
	return sb.String()
}

func (m *DecisionTreeClassifier) recurrentDraw(g *cgraph.Graph, batch, target, level, code int, parentNode *cgraph.Node) {
	currentNode, err := g.CreateNode(fmt.Sprintf("b%d_t%d_l%d_c%d", batch, target, level, code))
	HandleError(err)

	if parentNode != nil {
		g.CreateEdge("", parentNode, currentNode)
	}

	if level == m.Depth {
		currentNode.Set("label", m.leafDescription(batch, target, code))
		currentNode.Set("shape", "box")
	} else {
		currentNode.Set("label", m.nodeDescription(batch, target, level))
		for choice := 0; choice < m.BranchArity; choice++ {
			m.recurrentDraw(g, batch, target, level+1, code*m.BranchArity+choice, currentNode)
		}
	}
}

//DrawGraph renders the fitted tree of one (batch, target) pair as a graph. The
//tree is oblivious: all nodes of a level share one split, and the leaves carry
//the class counts gathered during the fit.
func (m *DecisionTreeClassifier) DrawGraph(batch, target int) (*graphviz.Graphviz, *cgraph.Graph) {
	graphViz := graphviz.New()
	graph, err := graphViz.Graph()
	HandleError(err)

	m.recurrentDraw(graph, batch, target, 0, 0, nil)

	return graphViz, graph
}

//RenderTrees renders every (batch, target) tree of the fitted model into the
//pictures directory.
func (m *DecisionTreeClassifier) RenderTrees(dumpPrefix, figureType, picturesDirectory string) {
	graphvizType := map[string]graphviz.Format{
		"png": graphviz.PNG,
		"svg": graphviz.SVG,
		"jpg": graphviz.JPG,
	}[figureType]

	b := prodInts(m.BatchShape)
	for batch := 0; batch < b; batch++ {
		for target := 0; target < m.NumTarget; target++ {
			fileName := fmt.Sprintf("%s_b%03d_t%03d.%s", dumpPrefix, batch, target, figureType)
			graphViz, graph := m.DrawGraph(batch, target)
			HandleError(graphViz.RenderFilename(graph, graphvizType, path.Join(picturesDirectory, fileName)))
		}
	}
}
