package searchindex

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"testing"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"
	"github.com/stretchr/testify/require"
)

// match returns the ids of documents holding every token of q, ascending.
// It reads the backend's storage directly, the way the geocoder's query
// layer would.
func match(t *testing.T, idx Index, q string) []int64 {
	t.Helper()
	tokens := newTokenizer(DefaultConfig()).tokens(q)
	if len(tokens) == 0 {
		return nil
	}

	var ids []int64
	switch x := idx.(type) {
	case *SQLiteIndex:
		quoted := make([]string, len(tokens))
		for i, tok := range tokens {
			quoted[i] = `"` + tok + `"`
		}
		rows, err := x.db.QueryContext(context.Background(),
			`SELECT place_id FROM fts_places WHERE content MATCH ?`, strings.Join(quoted, " "))
		require.NoError(t, err)
		defer rows.Close()
		for rows.Next() {
			var id int64
			require.NoError(t, rows.Scan(&id))
			ids = append(ids, id)
		}
		require.NoError(t, rows.Err())

	case *BleveIndex:
		m := bleve.NewMatchQuery(q)
		m.SetField(contentField)
		m.SetOperator(query.MatchQueryOperatorAnd)
		req := bleve.NewSearchRequest(m)
		req.Size = 100
		result, err := x.index.SearchInContext(context.Background(), req)
		require.NoError(t, err)
		for _, h := range result.Hits {
			id, err := strconv.ParseInt(h.ID, 10, 64)
			require.NoError(t, err)
			ids = append(ids, id)
		}

	default:
		t.Fatalf("unsupported index %T", idx)
	}

	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
