package orchestrator

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Jeffail/gabs/v2"

	"github.com/AaronLay10/NarrativeEngine/internal/codec"
	"github.com/AaronLay10/NarrativeEngine/internal/document"
	"github.com/AaronLay10/NarrativeEngine/internal/inventory"
	"github.com/AaronLay10/NarrativeEngine/internal/narrative"
	"github.com/AaronLay10/NarrativeEngine/internal/variables"
)

// Story is a loaded story file: the node graph plus the variables and items
// a session starts with.
type Story struct {
	ID      string
	Title   string
	Entry   narrative.NodeRef
	Graph   *narrative.Graph
	Local   []variables.Variable
	Global  []variables.Variable
	Catalog *inventory.Catalog
}

// LoadStory loads a story from a .json, .yaml or .yml file. The file is
// either a bare array of nodes or a versioned story document:
//
//	{"version": 1, "id": ..., "entry": ..., "variables": {"local": [...],
//	 "global": [...]}, "items": [...], "nodes": [...]}
func LoadStory(path string) (*Story, error) {
	doc, err := parseFile(path)
	if err != nil {
		return nil, err
	}

	story, err := DecodeStory(codec.Default(), doc)
	if err != nil {
		return nil, fmt.Errorf("failed to load story %s: %w", path, err)
	}
	if story.ID == "" {
		story.ID = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return story, nil
}

func parseFile(path string) (*gabs.Container, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	var doc *gabs.Container
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		doc, err = codec.Parse(data)
	case ".yaml", ".yml":
		doc, err = codec.ParseYAML(data)
	default:
		return nil, fmt.Errorf("unsupported file extension: %q", filepath.Ext(path))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return doc, nil
}

// AddCatalog adds the items of a separate catalog file to the story.
// Items already declared by the story are an error.
func (s *Story) AddCatalog(path string) error {
	doc, err := parseFile(path)
	if err != nil {
		return err
	}
	extra, err := inventory.LoadCatalog(doc)
	if err != nil {
		return fmt.Errorf("catalog %s: %w", path, err)
	}
	for _, item := range extra.Items() {
		if err := s.Catalog.Add(item); err != nil {
			return fmt.Errorf("catalog %s: %w", path, err)
		}
	}
	return nil
}

// LoadGraph loads only the node graph of a story file.
func LoadGraph(path string) (*narrative.Graph, error) {
	story, err := LoadStory(path)
	if err != nil {
		return nil, err
	}
	return story.Graph, nil
}

// DecodeStory builds a Story from a parsed document. A nil codec uses
// codec.Default.
func DecodeStory(c *codec.Codec, doc *gabs.Container) (*Story, error) {
	if c == nil {
		c = codec.Default()
	}
	story := &Story{}

	nodesDoc := doc
	if _, isArray := document.Array(doc); !isArray {
		if err := document.Require(doc, "version", "nodes"); err != nil {
			return nil, err
		}
		if v := fmt.Sprint(doc.Search("version").Data()); v != "1" {
			return nil, fmt.Errorf("unsupported story version: %s", v)
		}
		var err error
		if story.ID, err = document.String(doc, "id"); err != nil {
			return nil, err
		}
		if story.Title, err = document.String(doc, "title"); err != nil {
			return nil, err
		}
		entry, err := document.String(doc, "entry")
		if err != nil {
			return nil, err
		}
		story.Entry = narrative.NodeRef(entry)

		if story.Local, err = decodeDeclarations(doc, "local"); err != nil {
			return nil, err
		}
		if story.Global, err = decodeDeclarations(doc, "global"); err != nil {
			return nil, err
		}
		if doc.Exists("items") {
			catalog, err := inventory.LoadCatalog(doc)
			if err != nil {
				return nil, err
			}
			story.Catalog = catalog
		}
		nodesDoc = doc.Search("nodes")
		if _, ok := document.Array(nodesDoc); !ok {
			return nil, document.Errorf("nodes", "expected array")
		}
	}

	nodes, err := c.DecodeNodes(nodesDoc)
	if err != nil {
		return nil, document.WithPath(err, "nodes")
	}
	graph, err := narrative.NewGraph(nodes)
	if err != nil {
		return nil, err
	}
	if story.Entry != narrative.None {
		if _, err := graph.Node(story.Entry); err != nil {
			return nil, fmt.Errorf("entry: %w", err)
		}
	}
	story.Graph = graph
	if story.Catalog == nil {
		story.Catalog, _ = inventory.NewCatalog()
	}
	return story, nil
}

func decodeDeclarations(doc *gabs.Container, scope string) ([]variables.Variable, error) {
	section := doc.Search("variables", scope)
	if section == nil || section.Data() == nil {
		return nil, nil
	}
	store := variables.NewStore(scope)
	if err := store.Deserialize(section); err != nil {
		return nil, document.WithPath(err, "variables."+scope)
	}
	return store.Variables(), nil
}
