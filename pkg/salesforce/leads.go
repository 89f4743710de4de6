package salesforce

import (
	"context"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
)

// LeadRef is the slice of a Lead sObject needed to match existing records.
type LeadRef struct {
	ID      string `json:"Id" salesforce:"Id"`
	Company string `json:"Company" salesforce:"Company"`
}

// UpsertResult summarizes an UpsertByCompany call.
type UpsertResult struct {
	Inserted int
	Updated  int
	Failed   []CollectionResult
}

// FindByCompany returns the ids of existing records keyed by Company name.
// Names are queried in chunks of MaxBatchSize.
func FindByCompany(ctx context.Context, c Client, sObject string, companies []string) (map[string]string, error) {
	found := make(map[string]string)
	for start := 0; start < len(companies); start += MaxBatchSize {
		end := min(start+MaxBatchSize, len(companies))
		quoted := make([]string, 0, end-start)
		for _, name := range companies[start:end] {
			quoted = append(quoted, "'"+escapeSoql(name)+"'")
		}
		soql := fmt.Sprintf("SELECT Id, Company FROM %s WHERE Company IN (%s)", sObject, strings.Join(quoted, ", "))

		var refs []LeadRef
		if err := c.Query(ctx, soql, &refs); err != nil {
			return nil, eris.Wrapf(err, "sf: find %s by company", sObject)
		}
		for _, r := range refs {
			if _, ok := found[r.Company]; !ok {
				found[r.Company] = r.ID
			}
		}
	}
	return found, nil
}

// UpsertByCompany updates records whose Company already exists and inserts
// the rest, in batches of MaxBatchSize. Every record must carry a Company.
func UpsertByCompany(ctx context.Context, c Client, sObject string, records []map[string]any) (UpsertResult, error) {
	var res UpsertResult
	if len(records) == 0 {
		return res, nil
	}

	names := make([]string, 0, len(records))
	for i, rec := range records {
		name, _ := rec["Company"].(string)
		if name == "" {
			return res, eris.Errorf("sf: record %d has no Company", i)
		}
		names = append(names, name)
	}
	existing, err := FindByCompany(ctx, c, sObject, names)
	if err != nil {
		return res, err
	}

	var inserts []map[string]any
	var updates []CollectionRecord
	for i, rec := range records {
		if id, ok := existing[names[i]]; ok {
			updates = append(updates, CollectionRecord{ID: id, Fields: rec})
			continue
		}
		inserts = append(inserts, rec)
	}

	for start := 0; start < len(inserts); start += MaxBatchSize {
		end := min(start+MaxBatchSize, len(inserts))
		results, err := c.InsertCollection(ctx, sObject, inserts[start:end])
		if err != nil {
			return res, eris.Wrapf(err, "sf: insert %s batch %d-%d", sObject, start, end)
		}
		res.tally(results, &res.Inserted)
	}
	for start := 0; start < len(updates); start += MaxBatchSize {
		end := min(start+MaxBatchSize, len(updates))
		results, err := c.UpdateCollection(ctx, sObject, updates[start:end])
		if err != nil {
			return res, eris.Wrapf(err, "sf: update %s batch %d-%d", sObject, start, end)
		}
		res.tally(results, &res.Updated)
	}
	return res, nil
}

func (r *UpsertResult) tally(results []CollectionResult, ok *int) {
	for _, cr := range results {
		if cr.Success {
			*ok++
			continue
		}
		r.Failed = append(r.Failed, cr)
	}
}

// escapeSoql escapes single quotes in SOQL string literals.
func escapeSoql(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, "'", `\'`)
}
