package neurons

import (
	"strings"
	"testing"

	"github.com/pkg/errors"
	"gotest.tools/assert"
)

const networkJSON = `{
  "Nodes": [
    {"id": 12, "threshold": 1},
    {"id": "3"},
    {"id": 7}
  ],
  "Edges": []
}`

const networkYAML = `
Nodes:
  - id: 2
  - id: 0
  - id: 1
`

func TestAliasesJSON(t *testing.T) {
	n, err := DecodeNetwork(strings.NewReader(networkJSON), "net.json")
	assert.NilError(t, err)
	ids, err := n.Aliases()
	assert.NilError(t, err)
	assert.DeepEqual(t, ids, []int{3, 7, 12})
	assert.DeepEqual(t, Names("n", ids), []string{"n3", "n7", "n12"})
}

func TestAliasesYAML(t *testing.T) {
	n, err := DecodeNetwork(strings.NewReader(networkYAML), "net.yml")
	assert.NilError(t, err)
	ids, err := n.Aliases()
	assert.NilError(t, err)
	assert.DeepEqual(t, ids, []int{0, 1, 2})
}

func TestEmptyNetwork(t *testing.T) {
	_, err := DecodeNetwork(strings.NewReader(`{"Nodes": []}`), "net.json")
	assert.ErrorContains(t, err, "no nodes")
}

func TestSelect(t *testing.T) {
	s, err := NewSet(Names("n", Count(4)))
	assert.NilError(t, err)
	assert.Equal(t, s.Len(), 4)

	all, err := s.Select("all")
	assert.NilError(t, err)
	assert.DeepEqual(t, all, []int{0, 1, 2, 3})

	some, err := s.Select(" n3, n1 ")
	assert.NilError(t, err)
	assert.DeepEqual(t, some, []int{3, 1})

	_, err = s.Select("n1,n9")
	var unknown *UnknownChannelError
	assert.Assert(t, errors.As(err, &unknown))
	assert.Equal(t, unknown.Name, "n9")
	assert.Error(t, err, "neuron n9 not in network")

	_, err = s.Select("n1,n1")
	assert.ErrorContains(t, err, "requested twice")
}

func TestNewSet(t *testing.T) {
	_, err := NewSet(nil)
	assert.Equal(t, err, ErrEmptySet)

	_, err = NewSet([]string{"a", "a"})
	assert.ErrorContains(t, err, "duplicate")

	_, err = NewSet([]string{"a", " "})
	assert.ErrorContains(t, err, "empty channel name")

	s, err := NewSet([]string{"left", "right"})
	assert.NilError(t, err)
	i, ok := s.Index("right")
	assert.Assert(t, ok)
	assert.Equal(t, i, 1)
}

func TestNewSetLargeNetwork(t *testing.T) {
	s, err := NewSet(Names("n", Count(300)))
	assert.NilError(t, err)
	assert.Equal(t, s.Len(), 300)
	i, ok := s.Index("n299")
	assert.Assert(t, ok)
	assert.Equal(t, i, 299)
}

func TestSplitRequest(t *testing.T) {
	assert.Assert(t, SplitRequest("all") == nil)
	assert.Assert(t, SplitRequest("") == nil)
	assert.DeepEqual(t, SplitRequest("n1, n2 ,n3"), []string{"n1", "n2", "n3"})
}
