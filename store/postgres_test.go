package store

import (
	"context"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/tmarchal/nfparset/parset"
)

const archiveSample = `Observation.contactName=jdoe
Observation.startTime=2022-03-01T08:00:00Z
Observation.stopTime=2022-03-01T10:00:00Z
AnaBeam[0].target=FIELD_A
AnaBeam[0].maList=[0..5]
Beam[0].target=SRC_A
Beam[0].noBeam=0
Output.hd_bitMode=8
`

func newMockStore(t *testing.T) (*Postgres, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewPostgresWithDB(db), mock
}

func sampleParset(t *testing.T) *parset.Parset {
	t.Helper()
	p, err := parset.Parse(strings.NewReader(archiveSample))
	require.NoError(t, err)
	p.Path = "/data/parsets/sample.parset"
	return p
}

func TestRegisterParset(t *testing.T) {
	st, mock := newMockStore(t)
	mock.ExpectQuery("INSERT INTO parsets").
		WithArgs("/data/parsets/sample.parset", "jdoe").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(7))

	id, err := st.RegisterParset(context.Background(), "/data/parsets/sample.parset", "jdoe")
	require.NoError(t, err)
	require.Equal(t, int64(7), id)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRegisterParsetDuplicate(t *testing.T) {
	st, mock := newMockStore(t)
	mock.ExpectQuery("INSERT INTO parsets").
		WillReturnError(&pq.Error{Code: pqUniqueViolation})

	_, err := st.RegisterParset(context.Background(), "/data/parsets/sample.parset", "jdoe")
	require.ErrorIs(t, err, ErrDuplicateEntry)
}

func TestRegisterParsetUnknownSubmitter(t *testing.T) {
	st, mock := newMockStore(t)
	mock.ExpectQuery("INSERT INTO parsets").
		WillReturnError(&pq.Error{Code: pqForeignKeyViolation})

	_, err := st.RegisterParset(context.Background(), "/data/parsets/sample.parset", "ghost")
	require.ErrorIs(t, err, ErrUnknownSubmitter)
}

func TestArchive(t *testing.T) {
	st, mock := newMockStore(t)
	p := sampleParset(t)

	mock.ExpectQuery("INSERT INTO parsets").
		WithArgs(p.Path, "jdoe").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
	// Observation row, then one row per beam.
	mock.ExpectExec("INSERT INTO parset_entities").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO parset_entities").
		WillReturnResult(sqlmock.NewResult(2, 1))
	mock.ExpectExec("INSERT INTO parset_entities").
		WillReturnResult(sqlmock.NewResult(3, 1))

	require.NoError(t, Archive(context.Background(), st, p, zerolog.Nop()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestArchiveDuplicateSkips(t *testing.T) {
	st, mock := newMockStore(t)
	p := sampleParset(t)

	mock.ExpectQuery("INSERT INTO parsets").
		WillReturnError(&pq.Error{Code: pqUniqueViolation})

	// A duplicate ends the archive quietly without entity writes.
	require.NoError(t, Archive(context.Background(), st, p, zerolog.Nop()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestArchiveUnknownSubmitterSkips(t *testing.T) {
	st, mock := newMockStore(t)
	p := sampleParset(t)

	mock.ExpectQuery("INSERT INTO parsets").
		WillReturnError(&pq.Error{Code: pqForeignKeyViolation})

	require.NoError(t, Archive(context.Background(), st, p, zerolog.Nop()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFlattenMergesOutputOverObservation(t *testing.T) {
	p := sampleParset(t)
	merged := flatten(p.Observation)
	for key, value := range flatten(p.Output) {
		merged[key] = value
	}
	require.Equal(t, "jdoe", merged["contactName"])
	require.Equal(t, "8", merged["hd_bitMode"])
}
