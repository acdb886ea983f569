package sqlite

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ganot/coursetrace/internal/storage"
)

func item(attrs map[string]string) storage.Item {
	return storage.Item{PartitionKey: "pk", SortKey: "sk", Attributes: attrs}
}

func TestCompile_Empty(t *testing.T) {
	pred, err := compile("")
	require.NoError(t, err)
	require.True(t, pred(item(nil)))
}

func TestCompile_Equality(t *testing.T) {
	pred, err := compile("verb_id = 'completed'")
	require.NoError(t, err)
	require.True(t, pred(item(map[string]string{"verb_id": "completed"})))
	require.False(t, pred(item(map[string]string{"verb_id": "other"})))
}

func TestCompile_MissingAttributeIsFalse(t *testing.T) {
	pred, err := compile("verb_id <> 'completed'")
	require.NoError(t, err)
	require.False(t, pred(item(nil)))
}

func TestCompile_KeyColumns(t *testing.T) {
	pred, err := compile("sort_key = 'sk' AND partition_key = 'pk'")
	require.NoError(t, err)
	require.True(t, pred(item(nil)))
}

func TestCompile_Conjunctions(t *testing.T) {
	pred, err := compile("a = '1' AND b = '2'")
	require.NoError(t, err)
	require.True(t, pred(item(map[string]string{"a": "1", "b": "2"})))
	require.False(t, pred(item(map[string]string{"a": "1", "b": "3"})))

	pred, err = compile("a = '1' OR b = '2'")
	require.NoError(t, err)
	require.True(t, pred(item(map[string]string{"a": "0", "b": "2"})))
	require.False(t, pred(item(map[string]string{"a": "0", "b": "0"})))
}

func TestCompile_AndBindsTighterThanOr(t *testing.T) {
	pred, err := compile("a = '1' OR a = '2' AND b = '9'")
	require.NoError(t, err)
	// Parsed as a='1' OR (a='2' AND b='9').
	require.True(t, pred(item(map[string]string{"a": "1"})))
	require.False(t, pred(item(map[string]string{"a": "2", "b": "0"})))
	require.True(t, pred(item(map[string]string{"a": "2", "b": "9"})))
}

func TestCompile_EscapedQuotes(t *testing.T) {
	pred, err := compile("name = 'it''s'")
	require.NoError(t, err)
	require.True(t, pred(item(map[string]string{"name": "it's"})))
}

func TestCompile_ValueContainingConjunction(t *testing.T) {
	pred, err := compile("name = 'black AND white'")
	require.NoError(t, err)
	require.True(t, pred(item(map[string]string{"name": "black AND white"})))
}

func TestCompile_Ordering(t *testing.T) {
	pred, err := compile("k >= 'b'")
	require.NoError(t, err)
	require.True(t, pred(item(map[string]string{"k": "b"})))
	require.True(t, pred(item(map[string]string{"k": "c"})))
	require.False(t, pred(item(map[string]string{"k": "a"})))
}

func TestCompile_Errors(t *testing.T) {
	for _, expr := range []string{
		"verb_id =",
		"= 'v'",
		"verb_id LIKE 'v'",
		"verb_id = 'unterminated",
		"verb_id = 'v' trailing",
	} {
		_, err := compile(expr)
		require.Error(t, err, "expr %q", expr)
	}
}
