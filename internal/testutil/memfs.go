package testutil

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/garethgeorge/fixnested/internal/fsutil"
)

// MemFS is an in-memory fsutil.FS. Paths are cleaned and resolved from a single root,
// relative paths are treated as relative to that root. Failures can be injected per
// operation and path through Fail, keyed as "<op> <path>" (e.g. "readdir /a").
type MemFS struct {
	mu   sync.Mutex
	root *memNode

	Fail map[string]error
	// Mutations records every successful rename and remove in order.
	Mutations []string
}

var _ fsutil.FS = (*MemFS)(nil)

type memNode struct {
	name     string
	dir      bool
	data     string
	children map[string]*memNode
}

func NewMemFS() *MemFS {
	return &MemFS{
		root: &memNode{name: "/", dir: true, children: map[string]*memNode{}},
		Fail: map[string]error{},
	}
}

func splitPath(p string) []string {
	clean := filepath.ToSlash(filepath.Clean("/" + p))
	if clean == "/" {
		return nil
	}
	return strings.Split(strings.TrimPrefix(clean, "/"), "/")
}

func (m *MemFS) lookup(p string) *memNode {
	n := m.root
	for _, part := range splitPath(p) {
		if !n.dir {
			return nil
		}
		next, ok := n.children[part]
		if !ok {
			return nil
		}
		n = next
	}
	return n
}

func (m *MemFS) injected(op, p string) error {
	if err, ok := m.Fail[op+" "+p]; ok {
		return &fs.PathError{Op: op, Path: p, Err: err}
	}
	return nil
}

// MkdirAll creates a directory and any missing parents.
func (m *MemFS) MkdirAll(p string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mkdirAll(splitPath(p))
}

func (m *MemFS) mkdirAll(parts []string) *memNode {
	n := m.root
	for _, part := range parts {
		next, ok := n.children[part]
		if !ok {
			next = &memNode{name: part, dir: true, children: map[string]*memNode{}}
			n.children[part] = next
		}
		if !next.dir {
			panic(fmt.Sprintf("memfs: %q is a file", part))
		}
		n = next
	}
	return n
}

// WriteFile creates or replaces a file, creating missing parents.
func (m *MemFS) WriteFile(p, data string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	parts := splitPath(p)
	if len(parts) == 0 {
		panic("memfs: cannot write the root")
	}
	parent := m.mkdirAll(parts[:len(parts)-1])
	name := parts[len(parts)-1]
	parent.children[name] = &memNode{name: name, data: data}
}

// Paths lists every path in the filesystem, directories with a trailing slash.
func (m *MemFS) Paths() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	var visit func(prefix string, n *memNode)
	visit = func(prefix string, n *memNode) {
		for name, child := range n.children {
			p := prefix + "/" + name
			if child.dir {
				out = append(out, p+"/")
				visit(p, child)
			} else {
				out = append(out, p)
			}
		}
	}
	visit("", m.root)
	sort.Strings(out)
	return out
}

func (m *MemFS) Stat(name string) (fs.FileInfo, error) {
	return m.Lstat(name)
}

func (m *MemFS) Lstat(name string) (fs.FileInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.injected("stat", name); err != nil {
		return nil, err
	}
	n := m.lookup(name)
	if n == nil {
		return nil, &fs.PathError{Op: "stat", Path: name, Err: fs.ErrNotExist}
	}
	return memInfo{n}, nil
}

func (m *MemFS) ReadDir(name string) ([]fs.DirEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.injected("readdir", name); err != nil {
		return nil, err
	}
	n := m.lookup(name)
	if n == nil {
		return nil, &fs.PathError{Op: "readdir", Path: name, Err: fs.ErrNotExist}
	}
	if !n.dir {
		return nil, &fs.PathError{Op: "readdir", Path: name, Err: syscall.ENOTDIR}
	}
	ents := make([]fs.DirEntry, 0, len(n.children))
	for _, child := range n.children {
		ents = append(ents, memInfo{child})
	}
	sort.Slice(ents, func(i, j int) bool { return ents[i].Name() < ents[j].Name() })
	return ents, nil
}

func (m *MemFS) Rename(oldpath, newpath string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.injected("rename", oldpath); err != nil {
		return err
	}
	src := splitPath(oldpath)
	dst := splitPath(newpath)
	if len(src) == 0 || len(dst) == 0 {
		return &fs.PathError{Op: "rename", Path: oldpath, Err: fs.ErrInvalid}
	}
	if len(dst) > len(src) && strings.Join(dst[:len(src)], "/") == strings.Join(src, "/") {
		return &fs.PathError{Op: "rename", Path: oldpath, Err: syscall.EINVAL}
	}
	srcParent := m.lookup("/" + strings.Join(src[:len(src)-1], "/"))
	dstParent := m.lookup("/" + strings.Join(dst[:len(dst)-1], "/"))
	if srcParent == nil || srcParent.children[src[len(src)-1]] == nil {
		return &fs.PathError{Op: "rename", Path: oldpath, Err: fs.ErrNotExist}
	}
	if dstParent == nil || !dstParent.dir {
		return &fs.PathError{Op: "rename", Path: newpath, Err: fs.ErrNotExist}
	}
	node := srcParent.children[src[len(src)-1]]
	// Same replacement rules as rename(2): files replace files, directories only replace
	// empty directories.
	if existing, ok := dstParent.children[dst[len(dst)-1]]; ok && existing != node {
		switch {
		case existing.dir && !node.dir:
			return &fs.PathError{Op: "rename", Path: newpath, Err: syscall.EISDIR}
		case !existing.dir && node.dir:
			return &fs.PathError{Op: "rename", Path: newpath, Err: syscall.ENOTDIR}
		case existing.dir && len(existing.children) > 0:
			return &fs.PathError{Op: "rename", Path: newpath, Err: syscall.ENOTEMPTY}
		}
	}
	delete(srcParent.children, src[len(src)-1])
	node.name = dst[len(dst)-1]
	dstParent.children[node.name] = node
	m.Mutations = append(m.Mutations, fmt.Sprintf("rename %s %s", oldpath, newpath))
	return nil
}

func (m *MemFS) Remove(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.injected("remove", name); err != nil {
		return err
	}
	parts := splitPath(name)
	if len(parts) == 0 {
		return &fs.PathError{Op: "remove", Path: name, Err: fs.ErrInvalid}
	}
	parent := m.lookup("/" + strings.Join(parts[:len(parts)-1], "/"))
	if parent == nil || parent.children[parts[len(parts)-1]] == nil {
		return &fs.PathError{Op: "remove", Path: name, Err: fs.ErrNotExist}
	}
	n := parent.children[parts[len(parts)-1]]
	if n.dir && len(n.children) > 0 {
		return &fs.PathError{Op: "remove", Path: name, Err: syscall.ENOTEMPTY}
	}
	delete(parent.children, n.name)
	m.Mutations = append(m.Mutations, "remove "+name)
	return nil
}

// memInfo serves as both fs.FileInfo and fs.DirEntry.
type memInfo struct {
	n *memNode
}

func (i memInfo) Name() string { return i.n.name }
func (i memInfo) Size() int64  { return int64(len(i.n.data)) }
func (i memInfo) Mode() fs.FileMode {
	if i.n.dir {
		return fs.ModeDir | 0755
	}
	return 0644
}
func (i memInfo) ModTime() time.Time         { return time.Time{} }
func (i memInfo) IsDir() bool                { return i.n.dir }
func (i memInfo) Sys() any                   { return nil }
func (i memInfo) Type() fs.FileMode          { return i.Mode().Type() }
func (i memInfo) Info() (fs.FileInfo, error) { return i, nil }
