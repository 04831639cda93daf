// Package neurons names the channels carried by the proxy and resolves
// channel selections made by plotters.
package neurons

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/exp/slices"
	"gopkg.in/yaml.v3"
)

// SelectAll is the selection request naming every channel.
const SelectAll = "all"

// ErrEmptySet is returned when a channel set would have no channels.
var ErrEmptySet = errors.New("no channels configured")

// UnknownChannelError is returned when a selection names a channel that the
// network does not have.
type UnknownChannelError struct {
	Name string
}

func (e *UnknownChannelError) Error() string {
	return fmt.Sprintf("neuron %s not in network", e.Name)
}

// Network is the subset of a simulator network description needed to name
// channels.
type Network struct {
	Nodes []Node `json:"Nodes" yaml:"Nodes"`
}

// Node is a single neuron in a Network.
type Node struct {
	ID json.Number `json:"id" yaml:"id"`
}

// Set is an ordered list of unique channel names. The position of a name is
// the index of its count in a raw upstream frame.
type Set struct {
	names []string
	index map[string]int
}

// NewSet builds a Set from names, rejecting empty and duplicate names.
func NewSet(names []string) (*Set, error) {
	if len(names) == 0 {
		return nil, ErrEmptySet
	}
	s := &Set{
		names: make([]string, 0, len(names)),
		index: make(map[string]int, len(names)),
	}
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" {
			return nil, errors.New("empty channel name")
		}
		if _, ok := s.index[n]; ok {
			return nil, errors.Errorf("duplicate channel %q", n)
		}
		s.index[n] = len(s.names)
		s.names = append(s.names, n)
	}
	return s, nil
}

// Len returns the number of channels, which is also the raw frame size.
func (s *Set) Len() int {
	return len(s.names)
}

// Names returns a copy of the channel names in frame order.
func (s *Set) Names() []string {
	return slices.Clone(s.names)
}

// Index returns the frame position of name.
func (s *Set) Index(name string) (int, bool) {
	i, ok := s.index[name]
	return i, ok
}

// Select resolves a comma-separated request against the set and returns the
// frame positions of the requested channels in request order. An empty
// request or "all" selects every channel.
func (s *Set) Select(request string) ([]int, error) {
	request = strings.TrimSpace(request)
	if request == "" || request == SelectAll {
		out := make([]int, len(s.names))
		for i := range out {
			out[i] = i
		}
		return out, nil
	}
	return s.SelectNames(strings.Split(request, ","))
}

// SelectNames is Select for an already split request.
func (s *Set) SelectNames(names []string) ([]int, error) {
	if len(names) == 0 {
		return s.Select(SelectAll)
	}
	out := make([]int, 0, len(names))
	seen := make(map[string]bool, len(names))
	for _, n := range names {
		n = strings.TrimSpace(n)
		if seen[n] {
			return nil, errors.Errorf("channel %q requested twice", n)
		}
		seen[n] = true
		i, ok := s.index[n]
		if !ok {
			return nil, &UnknownChannelError{Name: n}
		}
		out = append(out, i)
	}
	return out, nil
}

// SplitRequest splits a comma-separated selection into trimmed names. "all"
// and the empty string yield nil.
func SplitRequest(request string) []string {
	request = strings.TrimSpace(request)
	if request == "" || request == SelectAll {
		return nil
	}
	parts := strings.Split(request, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		out = append(out, strings.TrimSpace(p))
	}
	return out
}

// Names returns "<prefix><id>" for every id.
func Names(prefix string, ids []int) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = prefix + strconv.Itoa(id)
	}
	return out
}

// Count returns the ids 0..n-1.
func Count(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}

// Aliases returns the numerically sorted node ids of the network.
func (n *Network) Aliases() ([]int, error) {
	ids := make([]int, 0, len(n.Nodes))
	for i, node := range n.Nodes {
		id, err := strconv.Atoi(node.ID.String())
		if err != nil {
			return nil, errors.Wrapf(err, "node %d has a non-integer id %q", i, node.ID)
		}
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids, nil
}

// DecodeNetwork reads a network description. Files ending in .yaml or .yml
// are YAML, everything else is JSON.
func DecodeNetwork(r io.Reader, name string) (*Network, error) {
	n := new(Network)
	switch strings.ToLower(filepath.Ext(name)) {
	case ".yaml", ".yml":
		if err := yaml.NewDecoder(r).Decode(n); err != nil {
			return nil, errors.Wrapf(err, "parsing network %s", name)
		}
	default:
		dec := json.NewDecoder(r)
		dec.UseNumber()
		if err := dec.Decode(n); err != nil {
			return nil, errors.Wrapf(err, "parsing network %s", name)
		}
	}
	if len(n.Nodes) == 0 {
		return nil, errors.Wrapf(ErrEmptySet, "network %s has no nodes", name)
	}
	return n, nil
}
