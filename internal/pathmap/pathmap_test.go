package pathmap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGet(t *testing.T) {
	tree := map[string]interface{}{
		"user_id": float64(1234),
		"userDetails": map[string]interface{}{
			"name":         "aj",
			"email":        "aj@abc.com",
			"country_code": "IN",
		},
		"items": []interface{}{
			map[string]interface{}{"sku": "A1"},
			map[string]interface{}{"sku": "B2"},
		},
	}

	tests := []struct {
		name string
		path string
		want interface{}
	}{
		{"top level", "user_id", float64(1234)},
		{"dot path", "userDetails.country_code", "IN"},
		{"bracket key", "userDetails[email]", "aj@abc.com"},
		{"quoted bracket key", `userDetails["name"]`, "aj"},
		{"array index", "items[1].sku", "B2"},
		{"dot array index", "items.0.sku", "A1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Get(tree, tt.path, nil))
		})
	}
}

func TestGet_Default(t *testing.T) {
	tree := map[string]interface{}{
		"userDetails": map[string]interface{}{"name": "aj"},
		"items":       []interface{}{"only"},
	}

	assert.Equal(t, "fallback", Get(tree, "missing", "fallback"))
	assert.Equal(t, "fallback", Get(tree, "userDetails.phone", "fallback"))
	assert.Equal(t, "fallback", Get(tree, "userDetails.name.deeper", "fallback"))
	assert.Equal(t, "fallback", Get(tree, "items[5]", "fallback"))
	assert.Nil(t, Get(tree, "missing", nil))
}

func TestHas(t *testing.T) {
	tree := map[string]interface{}{
		"a": map[string]interface{}{"b": nil},
	}

	assert.True(t, Has(tree, "a"))
	assert.True(t, Has(tree, "a.b")) // present even though its value is null
	assert.False(t, Has(tree, "a.c"))
	assert.False(t, Has(tree, "x"))
}

func TestSet_CreatesIntermediateContainers(t *testing.T) {
	tree := map[string]interface{}{}

	Set(tree, "template_data.name", "aj")
	Set(tree, "template_data.tags[1]", "vip")

	assert.Equal(t, map[string]interface{}{
		"template_data": map[string]interface{}{
			"name": "aj",
			"tags": []interface{}{nil, "vip"},
		},
	}, tree)
}

func TestSet_PreservesSiblings(t *testing.T) {
	tree := map[string]interface{}{
		"template_data": map[string]interface{}{
			"name": "aj",
		},
	}

	Set(tree, "template_data.email", "aj@abc.com")

	assert.Equal(t, map[string]interface{}{
		"template_data": map[string]interface{}{
			"name":  "aj",
			"email": "aj@abc.com",
		},
	}, tree)
}

func TestSet_OverwritesScalarWithMap(t *testing.T) {
	tree := map[string]interface{}{"a": "scalar"}

	Set(tree, "a.b", float64(1))

	assert.Equal(t, map[string]interface{}{
		"a": map[string]interface{}{"b": float64(1)},
	}, tree)
}

func TestSet_TopLevel(t *testing.T) {
	tree := map[string]interface{}{"keep": true}
	Set(tree, "added", "v")
	assert.Equal(t, map[string]interface{}{"keep": true, "added": "v"}, tree)
}

func TestSetGet_Roundtrip(t *testing.T) {
	tree := map[string]interface{}{}
	Set(tree, "a[0].b.c", "deep")
	assert.Equal(t, "deep", Get(tree, "a[0].b.c", nil))
	assert.Equal(t, "deep", Get(tree, "a.0.b.c", nil))
}

func TestDeepCopy_Isolation(t *testing.T) {
	original := map[string]interface{}{
		"nested": map[string]interface{}{"k": "v"},
		"list":   []interface{}{float64(1)},
	}

	clone := CopyMap(original)
	require.Equal(t, original, clone)

	Set(clone, "nested.k", "changed")
	Set(clone, "list[0]", float64(9))

	assert.Equal(t, "v", Get(original, "nested.k", nil))
	assert.Equal(t, float64(1), Get(original, "list[0]", nil))
}

func TestCopyMap_NilYieldsWritableMap(t *testing.T) {
	m := CopyMap(nil)
	require.NotNil(t, m)
	Set(m, "k", "v")
	assert.Equal(t, "v", m["k"])
}
