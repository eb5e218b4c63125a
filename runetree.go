package gpt2_bpe

import (
	"strings"
	"unicode/utf8"
)

// RuneNode is a trie over special token strings.
type RuneNode struct {
	rune      rune               // The rune this node represents.
	runes     []rune             // The prior runes that led to this node.
	terminal  bool               // If this node ends a special token.
	childs    map[rune]*RuneNode // The child nodes.
	childsArr []*RuneNode        // The child nodes in an array, for speed
}

func (node *RuneNode) evaluate(r rune) *RuneNode {
	// The array exists while the node has 10 or fewer children, and is
	// faster to scan than the map.
	if node.childsArr != nil {
		for _, child := range node.childsArr {
			if child.rune == r {
				return child
			}
		}
		return nil
	}
	return node.childs[r]
}

// longestMatch returns the byte length of the longest special token that
// prefixes text, or 0.
func (node *RuneNode) longestMatch(text string) int {
	matched := 0
	current := node
	for idx := 0; idx < len(text); {
		r, size := utf8.DecodeRuneInString(text[idx:])
		current = current.evaluate(r)
		if current == nil {
			break
		}
		idx += size
		if current.terminal {
			matched = idx
		}
	}
	return matched
}

// Represent the tree as a string by traversing the tree, and using tree
// characters to represent the tree structure.
func (node *RuneNode) string(level int) string {
	if node == nil {
		return ""
	}
	s := string(node.rune)
	if len(node.childs) == 1 {
		for r := range node.childs {
			s += node.childs[r].string(level)
		}
		return s
	}
	level += 1
	s += "\n"

	idx := 0
	for r := range node.childs {
		childPrefix := strings.Repeat("| ", level-1)
		// If we're the last child, then we prepend with a tree terminator.
		if idx == len(node.childs)-1 {
			childPrefix += "└─"
		} else {
			childPrefix += "├─"
		}
		s += childPrefix + node.childs[r].string(level)
		idx += 1
	}
	return s
}

func (node *RuneNode) String() string {
	return node.string(0)
}

func createRuneTree(specials []string) *RuneNode {
	runeTree := &RuneNode{
		runes:     []rune{},
		childs:    make(map[rune]*RuneNode),
		childsArr: make([]*RuneNode, 0),
	}

	for _, k := range specials {
		keyRunes := []rune(k)
		node := runeTree
		for i, r := range keyRunes {
			childNode, ok := node.childs[r]
			if !ok {
				childNode = &RuneNode{
					rune:      r,
					runes:     keyRunes[:i+1],
					childs:    make(map[rune]*RuneNode),
					childsArr: make([]*RuneNode, 0),
				}
				node.childs[r] = childNode
				if len(node.childs) > 10 {
					// Past 10 children we drop the array and use the map.
					node.childsArr = nil
				} else {
					node.childsArr = append(node.childsArr, childNode)
				}
			}
			if i == len(keyRunes)-1 {
				childNode.terminal = true
			}
			node = childNode
		}
	}
	return runeTree
}
