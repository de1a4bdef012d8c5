package lake

import (
	"bufio"
	"bytes"
	"context"

	"github.com/lawrencejones/pglake/pkg/changelog"
	"github.com/lawrencejones/pglake/pkg/sinks/lake/codecs"
	"github.com/lawrencejones/pglake/pkg/sinks/lake/store"
	"github.com/pkg/errors"
)

// maxLineBytes bounds a single serialized row when reading data files
const maxLineBytes = 64 * 1024 * 1024

// encodeDataFile serializes rows as newline delimited JSON, compressed with the codec.
func encodeDataFile(serializer changelog.Serializer, codec codecs.Codec, schema changelog.Schema, rows []changelog.Row) ([]byte, error) {
	var buf bytes.Buffer
	w, err := codec.NewWriter(&buf)
	if err != nil {
		return nil, err
	}

	for idx, row := range rows {
		line, err := serializer.Marshal(schema, row)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to serialize row %d", idx)
		}

		if _, err := w.Write(append(line, '\n')); err != nil {
			return nil, err
		}
	}

	if err := w.Close(); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// readDataFile loads every row of a snapshot's data file.
func readDataFile(ctx context.Context, st store.Store, serializer changelog.Serializer, schema changelog.Schema, snapshot Snapshot) ([]changelog.Row, error) {
	raw, err := st.Get(ctx, snapshot.DataFile)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open data file %s", st.URL(snapshot.DataFile))
	}

	defer raw.Close()

	r, err := snapshot.Compression.NewReader(raw)
	if err != nil {
		return nil, err
	}

	defer r.Close()

	rows := make([]changelog.Row, 0, snapshot.Rows)
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)
	for scanner.Scan() {
		row, err := serializer.Unmarshal(schema, scanner.Bytes())
		if err != nil {
			return nil, errors.Wrapf(err, "corrupt row in data file %s", st.URL(snapshot.DataFile))
		}

		rows = append(rows, row)
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	if int64(len(rows)) != snapshot.Rows {
		return nil, errors.Errorf("data file %s has %d rows, snapshot recorded %d",
			st.URL(snapshot.DataFile), len(rows), snapshot.Rows)
	}

	return rows, nil
}
