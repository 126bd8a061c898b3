package codec

import (
	"fmt"

	"github.com/Jeffail/gabs/v2"
	"github.com/google/uuid"

	"github.com/AaronLay10/NarrativeEngine/internal/document"
	"github.com/AaronLay10/NarrativeEngine/internal/narrative"
)

// DecodeNode decodes one node object.
func (c *Codec) DecodeNode(doc *gabs.Container) (narrative.Node, error) {
	node, err := create(c.nodes, doc)
	if err != nil {
		return nil, err
	}
	if err := c.populateNode(node, doc); err != nil {
		return nil, err
	}
	return node, nil
}

// DecodeNodes decodes an array of nodes, or a single node object. Any
// failing element fails the whole list.
func (c *Codec) DecodeNodes(doc *gabs.Container) ([]narrative.Node, error) {
	items, ok := document.Array(doc)
	if !ok {
		n, err := c.DecodeNode(doc)
		if err != nil {
			return nil, err
		}
		return []narrative.Node{n}, nil
	}
	nodes := make([]narrative.Node, 0, len(items))
	for i, item := range items {
		n, err := c.DecodeNode(item)
		if err != nil {
			return nil, document.WithPath(err, fmt.Sprintf("[%d]", i))
		}
		nodes = append(nodes, n)
	}
	return nodes, nil
}

func (c *Codec) populateNode(node narrative.Node, doc *gabs.Container) error {
	if err := document.RequireNonNull(doc, "id"); err != nil {
		return err
	}
	guid, err := c.decodeGUID(doc)
	if err != nil {
		return err
	}

	switch n := node.(type) {
	case *narrative.Linear:
		if err := requireNode(doc, "text"); err != nil {
			return err
		}
		if err := populate(doc, n, "id", "text", "nextNode"); err != nil {
			return err
		}
		n.GUID = guid

	case *narrative.Choice:
		if err := document.RequireNonNull(doc, "text", "choices"); err != nil {
			return err
		}
		if err := populate(doc, n, "id", "text"); err != nil {
			return err
		}
		choices, err := decodeList(doc, "choices", c.decodeChoiceOption)
		if err != nil {
			return err
		}
		n.GUID = guid
		n.Choices = choices

	case *narrative.ActionNode:
		if err := requireNode(doc, "actions"); err != nil {
			return err
		}
		if err := populate(doc, n, "id", "text", "nextNode"); err != nil {
			return err
		}
		actions, err := decodeList(doc, "actions", c.DecodeAction)
		if err != nil {
			return err
		}
		n.GUID = guid
		n.Actions = actions

	default:
		return &DecodeError{Field: TypeKey, Err: fmt.Errorf("%w: no schema for %T", ErrUnknownTypeKind, node)}
	}

	if node.Identity().ID == "" {
		return &DecodeError{Field: "id", Err: fmt.Errorf("node id is empty")}
	}
	return nil
}

// requireNode checks the non-null keys plus nextNode, which may be null to
// mark a terminal node.
func requireNode(doc *gabs.Container, keys ...string) error {
	if err := document.RequireNonNull(doc, keys...); err != nil {
		return err
	}
	return document.Require(doc, "nextNode")
}

func (c *Codec) decodeGUID(doc *gabs.Container) (uuid.UUID, error) {
	raw, err := document.String(doc, "guid")
	if err != nil {
		return uuid.Nil, err
	}
	if raw == "" {
		return c.newGUID(), nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, &DecodeError{Field: "guid", Err: err}
	}
	return id, nil
}

func (c *Codec) decodeChoiceOption(doc *gabs.Container) (narrative.ChoiceOption, error) {
	var opt narrative.ChoiceOption
	if err := requireNode(doc, "text"); err != nil {
		return opt, err
	}
	if err := populate(doc, &opt, "text", "nextNode"); err != nil {
		return opt, err
	}
	conds, err := decodeList(doc, "conditions", c.DecodeCondition)
	if err != nil {
		return opt, err
	}
	opt.Conditions = conds
	return opt, nil
}

// EncodeNode renders n with its "type" discriminator.
func (c *Codec) EncodeNode(n narrative.Node) (*gabs.Container, error) {
	if n == nil {
		return nil, fmt.Errorf("encode node: nil node")
	}
	h := n.Identity()
	out := map[string]any{
		TypeKey: string(n.Kind()),
		"guid":  h.GUID.String(),
		"id":    h.ID,
		"text":  n.Text(),
	}

	switch t := n.(type) {
	case *narrative.Linear:
		out["nextNode"] = string(t.Next)

	case *narrative.Choice:
		choices := make([]any, 0, len(t.Choices))
		for i, opt := range t.Choices {
			conds, err := c.encodeConditions(opt.Conditions)
			if err != nil {
				return nil, fmt.Errorf("encode node %q choice %d: %w", h.ID, i, err)
			}
			choices = append(choices, map[string]any{
				"text":       opt.Text,
				"nextNode":   string(opt.Next),
				"conditions": conds,
			})
		}
		out["choices"] = choices

	case *narrative.ActionNode:
		actions := make([]any, 0, len(t.Actions))
		for i, a := range t.Actions {
			doc, err := c.EncodeAction(a)
			if err != nil {
				return nil, fmt.Errorf("encode node %q action %d: %w", h.ID, i, err)
			}
			actions = append(actions, doc.Data())
		}
		out["actions"] = actions
		out["nextNode"] = string(t.Next)

	default:
		return nil, fmt.Errorf("encode node: %w: %T", ErrUnknownTypeKind, n)
	}

	if !c.nodes.Has(string(n.Kind())) {
		return nil, fmt.Errorf("encode node %q: %w: node %q", h.ID, ErrUnknownTypeKind, string(n.Kind()))
	}
	return gabs.Wrap(out), nil
}

// EncodeNodes renders nodes as an array in order.
func (c *Codec) EncodeNodes(nodes []narrative.Node) (*gabs.Container, error) {
	out := make([]any, 0, len(nodes))
	for _, n := range nodes {
		doc, err := c.EncodeNode(n)
		if err != nil {
			return nil, err
		}
		out = append(out, doc.Data())
	}
	return gabs.Wrap(out), nil
}

func (c *Codec) encodeConditions(conds []narrative.Condition) ([]any, error) {
	out := make([]any, 0, len(conds))
	for _, cond := range conds {
		doc, err := c.EncodeCondition(cond)
		if err != nil {
			return nil, err
		}
		out = append(out, doc.Data())
	}
	return out, nil
}
