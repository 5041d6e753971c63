package external

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doml-verifier/mc/internal/metamodel"
)

func TestParseSimpleTree(t *testing.T) {
	doc := `{
		"version": "v2.1",
		"root": {
			"identity": "vm-1",
			"name": "web-vm",
			"class": "infrastructure_VirtualMachine",
			"attributes": {"cpu_count": ["4"]},
			"references": {
				"ifaces": [
					{"identity": "iface-1", "class": "infrastructure_NetworkInterface", "attributes": {"endPoint": ["10.0.0.1:80"]}}
				]
			}
		}
	}`

	root, version, err := JSONAdapter{}.Parse([]byte(doc), nil)
	require.NoError(t, err)
	assert.Equal(t, metamodel.V2_1, version)
	assert.Equal(t, "vm-1", root.Identity)
	assert.Equal(t, "web-vm", root.Name)
	require.Len(t, root.References["ifaces"], 1)
	assert.Equal(t, "iface-1", root.References["ifaces"][0].Identity)
}

func TestParseExplicitVersionOverridesDeclared(t *testing.T) {
	doc := `{"version": "v1.0", "root": {"identity": "a", "class": "infrastructure_VirtualMachine"}}`
	v := metamodel.V2_1
	_, version, err := JSONAdapter{}.Parse([]byte(doc), &v)
	require.NoError(t, err)
	assert.Equal(t, metamodel.V2_1, version)
}

func TestParseNoVersionFallsBackToNewest(t *testing.T) {
	doc := `{"root": {"identity": "a", "class": "infrastructure_VirtualMachine"}}`
	_, version, err := JSONAdapter{}.Parse([]byte(doc), nil)
	require.NoError(t, err)
	assert.Equal(t, metamodel.AllVersions[0], version)
}

func TestParseUnrecognizedVersionFails(t *testing.T) {
	doc := `{"version": "v9.9", "root": {"identity": "a", "class": "infrastructure_VirtualMachine"}}`
	_, _, err := JSONAdapter{}.Parse([]byte(doc), nil)
	assert.Error(t, err)
}

func TestParseMalformedJSONFails(t *testing.T) {
	_, _, err := JSONAdapter{}.Parse([]byte("{not json"), nil)
	assert.Error(t, err)
}

func TestParseMissingRootFails(t *testing.T) {
	_, _, err := JSONAdapter{}.Parse([]byte(`{"version": "v2.1"}`), nil)
	assert.Error(t, err)
}

// TestParseSharedStructureResolvesToSamePointer exercises the stub
// resolution path: a node referenced from two places in the document
// is nested in full once and referred to by identity-only stub
// thereafter, and both occurrences must converge on the same *Node.
func TestParseSharedStructureResolvesToSamePointer(t *testing.T) {
	doc := `{
		"version": "v2.1",
		"root": {
			"identity": "net-1",
			"class": "infrastructure_Network",
			"references": {
				"ifaces": [
					{"identity": "iface-1", "class": "infrastructure_NetworkInterface"}
				],
				"alsoIfaces": [
					{"identity": "iface-1"}
				]
			}
		}
	}`

	root, _, err := JSONAdapter{}.Parse([]byte(doc), nil)
	require.NoError(t, err)
	first := root.References["ifaces"][0]
	second := root.References["alsoIfaces"][0]
	assert.Same(t, first, second)
}

// TestParseStubWithoutPriorDefinitionFails covers the single-reference
// case, which is deterministic regardless of Go's map iteration order
// (unlike a stub and its definition split across two sibling keys on
// the same node).
func TestParseStubWithoutPriorDefinitionFails(t *testing.T) {
	doc := `{
		"version": "v2.1",
		"root": {
			"identity": "net-1",
			"class": "infrastructure_Network",
			"references": {
				"ifaces": [{"identity": "iface-1"}]
			}
		}
	}`

	_, _, err := JSONAdapter{}.Parse([]byte(doc), nil)
	assert.Error(t, err)
}
