package store

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/csv"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"unicode"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/googleapi"

	"github.com/dvloznov/wechat-ledger/internal/artifact"
)

// BigQueryStore keeps a report's tables in one BigQuery dataset.
type BigQueryStore struct {
	client  *bigquery.Client
	dataset *bigquery.Dataset
}

// NewBigQuery creates a client for projectID and ensures the dataset exists.
func NewBigQuery(ctx context.Context, projectID, datasetID string) (*BigQueryStore, error) {
	client, err := bigquery.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("NewBigQuery: creating client: %w", err)
	}

	ds := client.Dataset(datasetID)
	if _, err := ds.Metadata(ctx); err != nil {
		if !isNotFound(err) {
			client.Close()
			return nil, fmt.Errorf("NewBigQuery: dataset metadata: %w", err)
		}
		if err := ds.Create(ctx, &bigquery.DatasetMetadata{}); err != nil {
			client.Close()
			return nil, fmt.Errorf("NewBigQuery: create dataset %s: %w", datasetID, err)
		}
	}
	return &BigQueryStore{client: client, dataset: ds}, nil
}

// ReplaceTable runs a CSV load job that truncates the table before writing.
func (s *BigQueryStore) ReplaceTable(ctx context.Context, name string, t *artifact.Table) error {
	cols := Schema(t)

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.WriteAll(t.Rows); err != nil {
		return fmt.Errorf("bigquery: encode %s: %w", name, err)
	}

	schema := make(bigquery.Schema, len(cols))
	for i, c := range cols {
		schema[i] = &bigquery.FieldSchema{Name: c.Name, Type: bigqueryType(c.Type)}
	}

	src := bigquery.NewReaderSource(&buf)
	src.SourceFormat = bigquery.CSV
	src.Schema = schema
	src.AllowQuotedNewlines = true

	loader := s.dataset.Table(name).LoaderFrom(src)
	loader.WriteDisposition = bigquery.WriteTruncate
	loader.CreateDisposition = bigquery.CreateIfNeeded

	job, err := loader.Run(ctx)
	if err != nil {
		return fmt.Errorf("bigquery: run load job for %s: %w", name, err)
	}
	status, err := job.Wait(ctx)
	if err != nil {
		return fmt.Errorf("bigquery: wait for load job: %w", err)
	}
	if err := status.Err(); err != nil {
		return fmt.Errorf("bigquery: load job error: %w", err)
	}
	return nil
}

// RowCount returns the row count from table metadata.
func (s *BigQueryStore) RowCount(ctx context.Context, name string) (int64, error) {
	md, err := s.dataset.Table(name).Metadata(ctx)
	if err != nil {
		return 0, fmt.Errorf("bigquery: table metadata %s: %w", name, err)
	}
	return int64(md.NumRows), nil
}

// Close closes the BigQuery client connection.
func (s *BigQueryStore) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}

// DatasetName derives a valid dataset id from a report name. Dataset ids only
// allow ASCII letters, digits and underscores, so other characters are
// replaced and a short hash of the full name keeps ids distinct.
func DatasetName(prefix, report string) string {
	var b strings.Builder
	for _, r := range report {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	sum := sha256.Sum256([]byte(report))
	name := strings.Trim(b.String(), "_")
	parts := []string{}
	if prefix != "" {
		parts = append(parts, prefix)
	}
	if name != "" {
		parts = append(parts, name)
	}
	parts = append(parts, hex.EncodeToString(sum[:4]))
	return strings.Join(parts, "_")
}

func bigqueryType(t ColumnType) bigquery.FieldType {
	switch t {
	case TypeInteger:
		return bigquery.IntegerFieldType
	case TypeReal:
		return bigquery.FloatFieldType
	default:
		return bigquery.StringFieldType
	}
}

func isNotFound(err error) bool {
	var apiErr *googleapi.Error
	return errors.As(err, &apiErr) && apiErr.Code == http.StatusNotFound
}
