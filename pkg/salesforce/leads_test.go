package salesforce

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClient struct {
	existing []LeadRef
	queries  []string
	inserted [][]map[string]any
	updated  [][]CollectionRecord
	queryErr error
}

func (f *fakeClient) Query(_ context.Context, soql string, out any) error {
	f.queries = append(f.queries, soql)
	if f.queryErr != nil {
		return f.queryErr
	}
	var hits []LeadRef
	for _, r := range f.existing {
		if strings.Contains(soql, "'"+escapeSoql(r.Company)+"'") {
			hits = append(hits, r)
		}
	}
	reflect.ValueOf(out).Elem().Set(reflect.ValueOf(hits))
	return nil
}

func (f *fakeClient) InsertCollection(_ context.Context, _ string, records []map[string]any) ([]CollectionResult, error) {
	f.inserted = append(f.inserted, records)
	out := make([]CollectionResult, len(records))
	for i, rec := range records {
		out[i] = CollectionResult{ID: fmt.Sprintf("new-%v", rec["Company"]), Success: rec["LastName"] != nil}
	}
	return out, nil
}

func (f *fakeClient) UpdateCollection(_ context.Context, _ string, records []CollectionRecord) ([]CollectionResult, error) {
	f.updated = append(f.updated, records)
	out := make([]CollectionResult, len(records))
	for i, rec := range records {
		out[i] = CollectionResult{ID: rec.ID, Success: true}
	}
	return out, nil
}

func TestUpsertByCompany_SplitsInsertsAndUpdates(t *testing.T) {
	t.Parallel()

	fc := &fakeClient{existing: []LeadRef{{ID: "00Q9", Company: "Bob's Spa"}}}
	res, err := UpsertByCompany(context.Background(), fc, "Lead", []map[string]any{
		{"Company": "Acme Dental", "LastName": "Acme Dental"},
		{"Company": "Bob's Spa", "LastName": "Bob's Spa"},
		{"Company": "No Last Name"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Inserted)
	assert.Equal(t, 1, res.Updated)
	require.Len(t, res.Failed, 1)
	assert.Equal(t, "new-No Last Name", res.Failed[0].ID)

	require.Len(t, fc.queries, 1)
	assert.Contains(t, fc.queries[0], `'Bob\'s Spa'`)
	require.Len(t, fc.updated, 1)
	assert.Equal(t, "00Q9", fc.updated[0][0].ID)
}

func TestUpsertByCompany_Batches(t *testing.T) {
	t.Parallel()

	recs := make([]map[string]any, MaxBatchSize+5)
	for i := range recs {
		name := fmt.Sprintf("Biz %d", i)
		recs[i] = map[string]any{"Company": name, "LastName": name}
	}
	fc := &fakeClient{}
	res, err := UpsertByCompany(context.Background(), fc, "Lead", recs)
	require.NoError(t, err)
	assert.Equal(t, MaxBatchSize+5, res.Inserted)
	assert.Len(t, fc.queries, 2)
	require.Len(t, fc.inserted, 2)
	assert.Len(t, fc.inserted[0], MaxBatchSize)
	assert.Len(t, fc.inserted[1], 5)
}

func TestUpsertByCompany_Errors(t *testing.T) {
	t.Parallel()

	_, err := UpsertByCompany(context.Background(), &fakeClient{}, "Lead", []map[string]any{{"LastName": "x"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "has no Company")

	boom := errors.New("session expired")
	_, err = UpsertByCompany(context.Background(), &fakeClient{queryErr: boom}, "Lead", []map[string]any{{"Company": "x"}})
	assert.ErrorIs(t, err, boom)

	res, err := UpsertByCompany(context.Background(), &fakeClient{}, "Lead", nil)
	require.NoError(t, err)
	assert.Zero(t, res.Inserted)
}

func TestEscapeSoql(t *testing.T) {
	t.Parallel()

	assert.Equal(t, `O\'Brien`, escapeSoql("O'Brien"))
	assert.Equal(t, `a\\b`, escapeSoql(`a\b`))
}
