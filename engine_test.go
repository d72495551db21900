package quereus

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dolthub/quereus/sql"
	"github.com/dolthub/quereus/sql/expression"
)

func TestBindParamsStoresArgsZeroIndexed(t *testing.T) {
	ctx := sql.NewEmptyContext()
	bindParams(ctx, []interface{}{"first", "second"}, nil)

	require.Equal(t, []interface{}{"first", "second"}, ctx.Params)
}

func TestBindParamsMatchesParameterReferenceOneBasedIndex(t *testing.T) {
	ctx := sql.NewEmptyContext()
	bindParams(ctx, []interface{}{42}, nil)

	ref := expression.NewParameterReference(1, "", sql.IntegerType)
	v, err := ref.Eval(ctx)
	require.NoError(t, err)
	require.Equal(t, 42, v)
}

func TestBindParamsSetsNamedParams(t *testing.T) {
	ctx := sql.NewEmptyContext()
	bindParams(ctx, nil, map[string]interface{}{"id": 7})

	require.Equal(t, 7, ctx.NamedParams["id"])
}
