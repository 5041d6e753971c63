package external

import (
	"encoding/json"
	"fmt"

	"github.com/doml-verifier/mc/internal/metamodel"
)

// jsonNode is the on-disk shape a JSONAdapter document tree is decoded
// from: the same fields as Node, with nested References decoded
// recursively rather than resolved through a separate identity table —
// a document is expected to nest each referenced node inline, exactly
// once for its first occurrence and by a bare {"identity": "..."} stub
// on every later occurrence.
type jsonNode struct {
	Identity   string                 `json:"identity"`
	Name       string                 `json:"name,omitempty"`
	Class      string                 `json:"class,omitempty"`
	Attributes map[string][]string    `json:"attributes,omitempty"`
	References map[string][]*jsonNode `json:"references,omitempty"`
}

// jsonDocument is the top-level shape a JSONAdapter reads: an optional
// explicit version (honored unless the caller's explicit parameter
// overrides it) and the root node of the object tree.
type jsonDocument struct {
	Version string    `json:"version,omitempty"`
	Root    *jsonNode `json:"root"`
}

// JSONAdapter is the concrete Adapter the CLI drives. The real XMI
// deserializer is an out-of-scope collaborator (see Adapter's doc
// comment); JSONAdapter exists so the CLI surface and the rest of the
// pipeline have a genuine, runnable end-to-end path without this module
// taking on UML/XMI parsing. It implements the same version-inference
// and structured-error contract Adapter promises.
type JSONAdapter struct{}

// Parse decodes data as a jsonDocument and converts it to a Node tree.
// A node referenced more than once in the document must be nested in
// full exactly once; every later occurrence is a stub carrying only
// "identity", and is resolved against the first occurrence seen during
// the same Parse call so that shared structure round-trips into shared
// *Node pointers, matching what the Intermediate Model builder's memo
// table expects.
func (JSONAdapter) Parse(data []byte, explicit *metamodel.Version) (*Node, metamodel.Version, error) {
	var doc jsonDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, "", fmt.Errorf("external: malformed JSON document: %w", err)
	}
	if doc.Root == nil {
		return nil, "", fmt.Errorf("external: document has no root node")
	}

	version, err := resolveVersion(explicit, doc.Version)
	if err != nil {
		return nil, "", err
	}

	seen := make(map[string]*Node)
	root, err := convert(doc.Root, seen)
	if err != nil {
		return nil, "", err
	}
	return root, version, nil
}

// resolveVersion honors an explicit caller-supplied version first, then
// the document's own declared version, trying the newest supported
// version only when neither is present — the same precedence order the
// XMI adapter contract describes.
func resolveVersion(explicit *metamodel.Version, declared string) (metamodel.Version, error) {
	if explicit != nil {
		return *explicit, nil
	}
	if declared == "" {
		return metamodel.AllVersions[0], nil
	}
	for _, v := range metamodel.AllVersions {
		if string(v) == declared {
			return v, nil
		}
	}
	return "", fmt.Errorf("external: unrecognized document version %q", declared)
}

func convert(n *jsonNode, seen map[string]*Node) (*Node, error) {
	if n.Class == "" {
		if existing, ok := seen[n.Identity]; ok {
			return existing, nil
		}
		return nil, fmt.Errorf("external: node %q referenced before its full definition", n.Identity)
	}

	out := &Node{
		Identity:   n.Identity,
		Name:       n.Name,
		Class:      n.Class,
		Attributes: n.Attributes,
		References: make(map[string][]*Node, len(n.References)),
	}
	seen[n.Identity] = out

	// Full definitions are converted before identity-only stubs, so a stub
	// may name a node defined under a sibling key whatever the map order.
	for local, children := range n.References {
		out.References[local] = make([]*Node, len(children))
	}
	for _, stubPass := range []bool{false, true} {
		for local, children := range n.References {
			for i, child := range children {
				if (child.Class == "") != stubPass {
					continue
				}
				c, err := convert(child, seen)
				if err != nil {
					return nil, err
				}
				out.References[local][i] = c
			}
		}
	}
	return out, nil
}
