package ir

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIRArray_UnmarshalJSON(t *testing.T) {
	var arr IRArray
	err := json.Unmarshal([]byte(`["a",{"host":"h","port":"22"}]`), &arr)
	require.NoError(t, err)

	require.Len(t, arr, 2)
	assert.Equal(t, IRString("a"), arr[0])
	assert.Equal(t, IRRecord{"host": "h", "port": "22"}, arr[1])
}

func TestIRArray_UnmarshalJSON_RejectsNumbers(t *testing.T) {
	var arr IRArray
	err := json.Unmarshal([]byte(`[1]`), &arr)
	assert.Error(t, err)
}

func TestIRRecord_MarshalJSON_SortedKeys(t *testing.T) {
	data, err := json.Marshal(IRRecord{"b": "2", "a": "1"})
	require.NoError(t, err)
	assert.Equal(t, `{"a":"1","b":"2"}`, string(data))
}

func TestCloneArray_CopiesRecords(t *testing.T) {
	rec := IRRecord{"k": "v"}
	orig := IRArray{IRString("s"), rec}

	cp := CloneArray(orig)
	cp[1].(IRRecord)["k"] = "changed"

	assert.Equal(t, "v", rec["k"])
}

func TestWorkflow_AddKeepsOrder(t *testing.T) {
	w := NewWorkflow()
	w.Add("start", ActionSpec{Name: "a"})
	w.Add("next", ActionSpec{Name: "b"})
	w.Add("start", ActionSpec{Name: "c"})

	assert.Equal(t, []string{"start", "next"}, w.Order)
	specs, ok := w.Actions("start")
	require.True(t, ok)
	require.Len(t, specs, 2)
	assert.Equal(t, "c", specs[1].Name)

	_, ok = w.Actions("missing")
	assert.False(t, ok)
}

func TestWorkflow_Declare(t *testing.T) {
	w := NewWorkflow()
	w.Declare("idle")
	w.Add("idle", ActionSpec{Name: "a"})
	w.Declare("idle")

	assert.Equal(t, []string{"idle"}, w.Order)
	specs, ok := w.Actions("idle")
	require.True(t, ok)
	assert.Len(t, specs, 1)
}
