package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
)

// Document is a permission tree: either a leaf holding an "Allow"/"Deny"
// string, or an object whose keys keep their source order. Source order
// matters for schema documents because it fixes the order in which
// type-value tuples are compiled and later checked.
type Document struct {
	keys     []string
	children map[string]*Document
	leaf     string
	isLeaf   bool
}

func (d *Document) IsLeaf() bool { return d.isLeaf }

func (d *Document) Leaf() string { return d.leaf }

func (d *Document) Keys() []string { return d.keys }

func (d *Document) Child(key string) *Document {
	if d.children == nil {
		return nil
	}
	return d.children[key]
}

// ParseDocument decodes a JSON object into a Document, preserving key order.
func ParseDocument(raw []byte) (*Document, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	doc, err := decodeValue(dec)
	if err != nil {
		return nil, err
	}
	if doc.isLeaf {
		return nil, fmt.Errorf("permission document root must be an object")
	}
	// Reject trailing content
	if dec.More() {
		return nil, fmt.Errorf("unexpected trailing content in permission document")
	}
	return doc, nil
}

func decodeValue(dec *json.Decoder) (*Document, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	switch t := tok.(type) {
	case string:
		return &Document{leaf: t, isLeaf: true}, nil
	case json.Delim:
		if t != '{' {
			return nil, fmt.Errorf("unexpected token %v in permission document", t)
		}
		doc := &Document{children: map[string]*Document{}}
		for dec.More() {
			keyTok, err := dec.Token()
			if err != nil {
				return nil, err
			}
			key, ok := keyTok.(string)
			if !ok {
				return nil, fmt.Errorf("unexpected object key %v in permission document", keyTok)
			}
			child, err := decodeValue(dec)
			if err != nil {
				return nil, err
			}
			if _, dup := doc.children[key]; dup {
				return nil, fmt.Errorf("duplicate key '%s' in permission document", key)
			}
			doc.keys = append(doc.keys, key)
			doc.children[key] = child
		}
		// consume closing '}'
		if _, err := dec.Token(); err != nil {
			return nil, err
		}
		return doc, nil
	default:
		return nil, fmt.Errorf("unexpected value %v in permission document; only nested objects and string leaves are allowed", tok)
	}
}

// FromMap converts a decoded BSON/JSON map into a Document. Key order is not
// recoverable from a map, so keys are sorted; order is irrelevant for stored
// permission documents, which are only ever walked by path.
func FromMap(m map[string]any) (*Document, error) {
	doc := &Document{children: map[string]*Document{}}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		switch v := m[k].(type) {
		case string:
			doc.children[k] = &Document{leaf: v, isLeaf: true}
		case map[string]any:
			child, err := FromMap(v)
			if err != nil {
				return nil, err
			}
			doc.children[k] = child
		default:
			return nil, fmt.Errorf("permission document key '%s' holds a %T; only nested objects and string leaves are allowed", k, m[k])
		}
		doc.keys = append(doc.keys, k)
	}
	return doc, nil
}

// LookupLeaf walks path through the document and returns the leaf value.
// The second result is false when the path is missing or stops short of a leaf.
func LookupLeaf(doc *Document, path []string) (string, bool) {
	cur := doc
	for _, key := range path {
		if cur == nil || cur.isLeaf {
			return "", false
		}
		cur = cur.Child(key)
	}
	if cur == nil || !cur.isLeaf {
		return "", false
	}
	return cur.leaf, true
}

// ValidateDocument checks that doc is structurally isomorphic to the scope
// schema: every schema key present with the same shape, every schema leaf
// answered by an Allow/Deny leaf. Extra keys in doc are ignored.
func ValidateDocument(schemaDoc, doc *Document) error {
	return validateAt(schemaDoc, doc, "")
}

func validateAt(schemaDoc, doc *Document, at string) error {
	for _, key := range schemaDoc.Keys() {
		where := key
		if at != "" {
			where = at + "." + key
		}
		child := doc.Child(key)
		if child == nil {
			return fmt.Errorf("permission document is missing '%s'", where)
		}
		schemaChild := schemaDoc.Child(key)
		if schemaChild.isLeaf {
			if !child.isLeaf {
				return fmt.Errorf("permission document value at '%s' must be a string", where)
			}
			if child.leaf != "Allow" && child.leaf != "Deny" {
				return fmt.Errorf("permission document value at '%s' must be 'Allow' or 'Deny', got '%s'", where, child.leaf)
			}
			continue
		}
		if child.isLeaf {
			return fmt.Errorf("permission document value at '%s' must be an object", where)
		}
		if err := validateAt(schemaChild, child, where); err != nil {
			return err
		}
	}
	return nil
}
