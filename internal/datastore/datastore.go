// Copyright (c) 2026, the confd authors.
//
// SPDX-License-Identifier: LGPL-2.1-only

// Package datastore is component C (spec §4.C): a named, optionally
// cached, persistent datastore — candidate, running or startup —
// backed by a file in the configured format, with an advisory lock
// and snapshot rotation.
//
// Grounded on server/server.go's loadRunning (config.Runfile read
// through github.com/danos/config/load at startup) and session/
// commitmgr.go's writeRunning (os.Create, 0600, then the serialized
// tree) for the persistence shape; the cache/reload split is the
// single-writer in-process analogue of Trillian's storage/cache
// separation noted in SPEC_FULL §2 (not imported — that split is a
// design idea, not an API this engine's single-process model needs).
package datastore

import (
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/opennetd/configd/internal/data"
	"github.com/opennetd/configd/internal/mgmterror"
	"github.com/opennetd/configd/internal/merge"
	"github.com/opennetd/configd/internal/schema"
)

// Format is the on-disk serialization (spec §6 "Datastore file
// format").
type Format int

const (
	FormatXML Format = iota
	FormatJSON
)

// moduleStateName is the sibling element name a datastore file may
// carry at the end of its root element when module-state embedding is
// enabled (spec §6); it is stripped from the in-memory tree on read.
const moduleStateName = "module-state"

// Store is one named datastore (candidate/running/startup). Reads and
// writes all funnel through Write/Root so the cache-or-reload policy
// (spec §4.C "Cache policy") stays centralized.
type Store struct {
	mu sync.Mutex

	Name   string
	path   string
	format Format
	schema *schema.Node

	cacheEnabled bool
	prettyPrint  bool
	embedModule  bool
	moduleState  string // rendered module-state snippet, if embedModule

	root      *data.Node // nil when cache is disabled and nothing is loaded
	lockedBy  string
}

// New constructs a Store. If path doesn't exist yet, the store starts
// out as an empty "config" root.
func New(name, path string, format Format, cacheEnabled bool, schemaRoot *schema.Node) *Store {
	return &Store{
		Name:         name,
		path:         path,
		format:       format,
		schema:       schemaRoot,
		cacheEnabled: cacheEnabled,
	}
}

func (s *Store) SetPrettyPrint(v bool)            { s.prettyPrint = v }
func (s *Store) SetModuleStateEmbedding(v bool)    { s.embedModule = v }
func (s *Store) SetModuleStateSnippet(v string)    { s.moduleState = v }

// Root returns the current tree: the cache if caching is enabled, or
// a fresh reload from disk on every call otherwise (spec §4.C cache
// policy).
func (s *Store) Root() (*data.Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rootLocked()
}

func (s *Store) rootLocked() (*data.Node, error) {
	if s.cacheEnabled && s.root != nil {
		return s.root, nil
	}
	root, err := s.readFile()
	if err != nil {
		return nil, err
	}
	if s.cacheEnabled {
		s.root = root
	}
	return root, nil
}

// Lock acquires the advisory lock for session, failing with in-use if
// another session already holds it (spec §4.C lock/unlock).
func (s *Store) Lock(session string) *mgmterror.Error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lockedBy != "" && s.lockedBy != session {
		return mgmterror.NewInUseError(s.lockedBy)
	}
	s.lockedBy = session
	return nil
}

// Unlock releases the lock if session holds it; releasing a lock the
// caller doesn't hold, or that isn't held at all, is a no-op.
func (s *Store) Unlock(session string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lockedBy == session {
		s.lockedBy = ""
	}
}

// LockedBy returns the holder of the advisory lock, or "" if free.
func (s *Store) LockedBy() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lockedBy
}

// CheckLock fails with in-use if the store is locked by a session
// other than the one attempting the edit.
func (s *Store) CheckLock(session string) *mgmterror.Error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lockedBy != "" && s.lockedBy != session {
		return mgmterror.NewInUseError(s.lockedBy)
	}
	return nil
}

// Write applies mod to the store's tree under op (spec §4.C "write"),
// persisting the result per the cache policy: with caching on, the
// cache becomes the new authoritative tree and is also serialized to
// disk; with caching off, the result is serialized and then
// discarded, so the very next read starts from disk again.
func (s *Store) Write(op data.Op, mod *data.Node, principal string, ac merge.AccessControl) (*data.Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	root, err := s.rootLocked()
	if err != nil {
		return nil, err
	}
	result, err := merge.Merge(root, mod, s.schema, op, principal, ac)
	if err != nil {
		return nil, err
	}
	if err := s.persistLocked(result); err != nil {
		return nil, mgmterror.NewOperationFailedError(err.Error())
	}
	if s.cacheEnabled {
		s.root = result
	} else {
		s.root = nil
	}
	return result, nil
}

// Copy atomically replaces dst's tree with a deep copy of src's
// current tree, and invalidates dst's cache the same way Write does.
func Copy(src, dst *Store) error {
	src.mu.Lock()
	root, err := src.rootLocked()
	srcCopy := root.CopySubtree()
	src.mu.Unlock()
	if err != nil {
		return err
	}

	dst.mu.Lock()
	defer dst.mu.Unlock()
	if err := dst.persistLocked(srcCopy); err != nil {
		return err
	}
	if dst.cacheEnabled {
		dst.root = srcCopy
	} else {
		dst.root = nil
	}
	return nil
}

// Save serializes the store's current tree to path (spec §4.C
// "save").
func (s *Store) Save(path string) error {
	s.mu.Lock()
	root, err := s.rootLocked()
	s.mu.Unlock()
	if err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return s.encode(f, root)
}

// Load parses path and merges (or, if replace, replaces) it into the
// store (spec §4.C "load").
func (s *Store) Load(path string, replace bool) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	mod, err := s.decode(f)
	if err != nil {
		return err
	}

	op := data.OpMerge
	if replace {
		op = data.OpReplace
	}
	_, mergeErr := s.Write(op, mod, "system", nil)
	return mergeErr
}

// Snapshot rotates the N previous snapshots in dir and writes the
// current tree as index 0 (spec §6 "Snapshot directory").
func (s *Store) Snapshot(dir string, n int) error {
	s.mu.Lock()
	root, err := s.rootLocked()
	s.mu.Unlock()
	if err != nil {
		return err
	}

	for i := n - 2; i >= 0; i-- {
		from := filepath.Join(dir, fmt.Sprintf("%d", i))
		to := filepath.Join(dir, fmt.Sprintf("%d", i+1))
		if _, statErr := os.Stat(from); statErr == nil {
			os.Rename(from, to)
		}
	}
	for i := n; ; i++ {
		discard := filepath.Join(dir, fmt.Sprintf("%d", i))
		if _, statErr := os.Stat(discard); statErr != nil {
			break
		}
		os.Remove(discard)
	}

	f, err := os.Create(filepath.Join(dir, "0"))
	if err != nil {
		return err
	}
	defer f.Close()
	return s.encode(f, root)
}

// persistLocked writes root to s.path via a temp file and atomic
// rename (the teacher's writeRunning pattern, generalized to any
// store) and, when module-state embedding is enabled, appends the
// configured snippet as a sibling element that readFile strips back
// out on the next load.
func (s *Store) persistLocked(root *data.Node) error {
	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".tmp-"+filepath.Base(s.path))
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if err := tmp.Chmod(0600); err != nil {
		tmp.Close()
		return err
	}
	if err := s.encode(tmp, root); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpPath, s.path)
}

func (s *Store) readFile() (*data.Node, error) {
	f, err := os.Open(s.path)
	if os.IsNotExist(err) {
		return data.New("config"), nil
	}
	if err != nil {
		return nil, mgmterror.NewOperationFailedError(err.Error())
	}
	defer f.Close()
	root, err := s.decode(f)
	if err != nil {
		return nil, mgmterror.NewOperationFailedError(err.Error())
	}
	return root, nil
}

func (s *Store) encode(w io.Writer, root *data.Node) error {
	if s.embedModule && s.moduleState != "" {
		stamp := data.New(moduleStateName)
		stamp.Body = s.moduleState
		root = root.CopySubtree()
		root.AddChild(stamp)
	}
	switch s.format {
	case FormatJSON:
		return encodeJSON(w, root, s.prettyPrint)
	default:
		return encodeXML(w, root, s.prettyPrint)
	}
}

func (s *Store) decode(r io.Reader) (*data.Node, error) {
	var root *data.Node
	var err error
	switch s.format {
	case FormatJSON:
		root, err = decodeJSON(r, s.schema)
	default:
		root, err = decodeXML(r, s.schema)
	}
	if err != nil {
		return nil, err
	}
	for _, c := range root.Children() {
		if c.Name == moduleStateName {
			data.PurgeSubtree(c)
			break
		}
	}
	return root, nil
}

// EncodeTreeXML and DecodeTreeXML expose the XML tree codec for
// transports (client and server/dispatcher.go) that need to move a single *data.Node
// across the wire without a Store's file-persistence lifecycle
// attached to it.
func EncodeTreeXML(w io.Writer, root *data.Node, pretty bool) error {
	return encodeXML(w, root, pretty)
}

func DecodeTreeXML(r io.Reader, schemaRoot *schema.Node) (*data.Node, error) {
	return decodeXML(r, schemaRoot)
}

// --- XML encoding ---

func encodeXML(w io.Writer, root *data.Node, pretty bool) error {
	enc := xml.NewEncoder(w)
	if pretty {
		enc.Indent("", "  ")
	}
	if err := encodeXMLNode(enc, root); err != nil {
		return err
	}
	return enc.Flush()
}

func encodeXMLNode(enc *xml.Encoder, n *data.Node) error {
	start := xml.StartElement{Name: xml.Name{Local: n.Name}}
	if err := enc.EncodeToken(start); err != nil {
		return err
	}
	if len(n.Children()) == 0 {
		if n.Body != "" {
			if err := enc.EncodeToken(xml.CharData(n.Body)); err != nil {
				return err
			}
		}
	}
	for _, c := range n.Children() {
		if err := encodeXMLNode(enc, c); err != nil {
			return err
		}
	}
	return enc.EncodeToken(xml.EndElement{Name: start.Name})
}

func decodeXML(r io.Reader, schemaRoot *schema.Node) (*data.Node, error) {
	dec := xml.NewDecoder(r)
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			return data.New("config"), nil
		}
		if err != nil {
			return nil, err
		}
		if start, ok := tok.(xml.StartElement); ok {
			root := data.New(start.Name.Local)
			if err := decodeXMLChildren(dec, root, schemaRoot); err != nil {
				return nil, err
			}
			return root, nil
		}
	}
}

func decodeXMLChildren(dec *xml.Decoder, parent *data.Node, parentSn *schema.Node) error {
	for {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			childSn, _ := schema.ResolveByQName(parentSn, t.Name.Local, "")
			child := parent.NewChild(t.Name.Local, childSn)
			if err := decodeXMLChildren(dec, child, childSn); err != nil {
				return err
			}
		case xml.CharData:
			if s := strings.TrimSpace(string(t)); s != "" {
				parent.SetBody(parent.Body + s)
			}
		case xml.EndElement:
			return nil
		}
	}
}

// --- JSON encoding ---

// jsonNode is the generic shape a Node round-trips through: a leaf
// marshals as its body string, anything with children as an object
// whose keys are child names and whose values are either a jsonNode
// or, for a repeated element (list entries, leaf-list), an array of
// them.
func encodeJSON(w io.Writer, root *data.Node, pretty bool) error {
	v := nodeToJSON(root)
	enc := json.NewEncoder(w)
	if pretty {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(v)
}

func nodeToJSON(n *data.Node) interface{} {
	if len(n.Children()) == 0 {
		return n.Body
	}
	obj := make(map[string]interface{})
	counts := make(map[string]int)
	for _, c := range n.Children() {
		counts[c.Name]++
	}
	for _, c := range n.Children() {
		v := nodeToJSON(c)
		if counts[c.Name] > 1 {
			arr, _ := obj[c.Name].([]interface{})
			obj[c.Name] = append(arr, v)
			continue
		}
		obj[c.Name] = v
	}
	return map[string]interface{}{n.Name: obj}
}

func decodeJSON(r io.Reader, schemaRoot *schema.Node) (*data.Node, error) {
	var raw map[string]interface{}
	dec := json.NewDecoder(r)
	if err := dec.Decode(&raw); err != nil {
		if err == io.EOF {
			return data.New("config"), nil
		}
		return nil, err
	}
	for name, v := range raw {
		root := data.New(name)
		if err := jsonToNode(root, schemaRoot, v); err != nil {
			return nil, err
		}
		return root, nil
	}
	return data.New("config"), nil
}

func jsonToNode(n *data.Node, sn *schema.Node, v interface{}) error {
	switch val := v.(type) {
	case string:
		n.SetBody(val)
	case map[string]interface{}:
		for name, cv := range val {
			childSn, _ := schema.ResolveByQName(sn, name, "")
			switch arr := cv.(type) {
			case []interface{}:
				for _, entry := range arr {
					c := n.NewChild(name, childSn)
					if err := jsonToNode(c, childSn, entry); err != nil {
						return err
					}
				}
			default:
				c := n.NewChild(name, childSn)
				if err := jsonToNode(c, childSn, cv); err != nil {
					return err
				}
			}
		}
	}
	return nil
}
