package client

import "strings"

// Node is one message in the reply forest with its direct replies nested
// beneath it.
type Node struct {
	Message
	Depth   int
	Replies []*Node
}

// BuildForest folds the flat newest-first window into a reply forest.
// Roots keep the served (newest-first) order; each parent's replies keep
// the served order too. A reply whose parent is missing from the window
// (deleted, or outside the loaded page) is promoted to a root rather than
// dropped.
func BuildForest(msgs []Message) []*Node {
	nodes := make(map[int64]*Node, len(msgs))
	for _, m := range msgs {
		nodes[m.ID] = &Node{Message: m}
	}

	var roots []*Node
	for _, m := range msgs {
		n := nodes[m.ID]
		if m.ReplyTo != nil {
			if parent, ok := nodes[*m.ReplyTo]; ok {
				parent.Replies = append(parent.Replies, n)
				continue
			}
		}
		roots = append(roots, n)
	}

	var setDepth func(n *Node, depth int)
	setDepth = func(n *Node, depth int) {
		n.Depth = depth
		for _, r := range n.Replies {
			setDepth(r, depth+1)
		}
	}
	for _, r := range roots {
		setDepth(r, 0)
	}
	return roots
}

// CountReplies returns the size of a node's reply subtree, the number the
// delete confirmation names.
func CountReplies(n *Node) int {
	total := 0
	for _, r := range n.Replies {
		total += 1 + CountReplies(r)
	}
	return total
}

// FindNode locates a message in the forest by id.
func FindNode(roots []*Node, id int64) *Node {
	for _, r := range roots {
		if r.ID == id {
			return r
		}
		if n := FindNode(r.Replies, id); n != nil {
			return n
		}
	}
	return nil
}

// Filter returns the messages matching a case-insensitive substring query
// over content and author name. An empty query matches everything.
func Filter(msgs []Message, query string) []Message {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return msgs
	}
	var out []Message
	for _, m := range msgs {
		if strings.Contains(strings.ToLower(m.Content), query) {
			out = append(out, m)
			continue
		}
		if m.AuthorName != nil && strings.Contains(strings.ToLower(*m.AuthorName), query) {
			out = append(out, m)
		}
	}
	return out
}
