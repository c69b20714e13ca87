package spider

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDataCellGetters(t *testing.T) {
	cell := &DataCell{Data: map[string]interface{}{
		"Task": "quotes",
		"Rule": "parse",
		"Data": map[string]interface{}{"text": "hi"},
	}}

	table, err := cell.GetTableName()
	require.NoError(t, err)
	assert.Equal(t, "quotes", table)

	rec, err := cell.GetRecord()
	require.NoError(t, err)
	assert.Equal(t, "hi", rec["text"])
}

func TestDataCellInvalid(t *testing.T) {
	empty := &DataCell{}
	_, err := empty.GetTaskName()
	assert.ErrorIs(t, err, ErrInvalidCell)
	_, err = empty.GetRecord()
	assert.ErrorIs(t, err, ErrInvalidCell)

	cell := &DataCell{Data: map[string]interface{}{"Task": 1, "Data": "text"}}
	_, err = cell.GetTaskName()
	assert.Error(t, err)
	_, err = cell.GetRuleName()
	assert.Error(t, err)
	_, err = cell.GetRecord()
	assert.Error(t, err)
}

func TestDataCellItemFieldsFromStore(t *testing.T) {
	task := NewTask(WithName("storage-test-fields"))
	task.Rule.Trunk = map[string]*Rule{"parse": {ItemFields: []string{"a", "b"}}}
	TaskStore.Add(task)

	cell := &DataCell{Data: map[string]interface{}{
		"Task": "storage-test-fields",
		"Rule": "parse",
	}}
	assert.Equal(t, []string{"a", "b"}, cell.ItemFields())

	cell.Data["Rule"] = "missing"
	assert.Nil(t, cell.ItemFields())
}
