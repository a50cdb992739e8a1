package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONBRoundTrip(t *testing.T) {
	in := JSONB{"missing_columns": []interface{}{"age"}}
	v, err := in.Value()
	require.NoError(t, err)

	var out JSONB
	require.NoError(t, out.Scan(v))
	assert.Equal(t, in, out)

	require.NoError(t, out.Scan([]byte(`{"a":1}`)))
	assert.Equal(t, JSONB{"a": 1.0}, out)

	require.NoError(t, out.Scan(nil))
	assert.Nil(t, out)

	assert.Error(t, out.Scan(42))
}

func TestTableNames(t *testing.T) {
	assert.Equal(t, "demographics", Client{}.TableName())
	assert.Equal(t, "prediction_results", Prediction{}.TableName())
	assert.Equal(t, "contact_history", Contact{}.TableName())
}
