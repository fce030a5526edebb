package canonicaljson

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalSortsKeys(t *testing.T) {
	v := map[string]interface{}{
		"b": 1,
		"a": 2,
		"c": map[string]interface{}{"z": 1, "y": 2},
	}
	got, err := MarshalString(v)
	require.NoError(t, err)
	assert.Equal(t, `{"a":2,"b":1,"c":{"y":2,"z":1}}`, got)
}

func TestMarshalStableAcrossInputOrder(t *testing.T) {
	a := map[string]interface{}{"urls": []interface{}{"x", "y"}, "n": 1}
	b := map[string]interface{}{"n": 1, "urls": []interface{}{"x", "y"}}

	ga, err := Marshal(a)
	require.NoError(t, err)
	gb, err := Marshal(b)
	require.NoError(t, err)
	assert.Equal(t, ga, gb)
}

func TestMarshalNoHTMLEscaping(t *testing.T) {
	got, err := MarshalString(map[string]interface{}{"s": "<a>&</a>"})
	require.NoError(t, err)
	assert.Equal(t, `{"s":"<a>&</a>"}`, got)
}

func TestMarshalStruct(t *testing.T) {
	type sealDoc struct {
		URLs []string `json:"urls"`
	}
	got, err := MarshalString(sealDoc{URLs: []string{"https://b", "https://a"}})
	require.NoError(t, err)
	assert.Equal(t, `{"urls":["https://b","https://a"]}`, got)
}
