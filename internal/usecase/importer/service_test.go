package importer

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kailas-cloud/matchdex/internal/domain"
	"github.com/kailas-cloud/matchdex/internal/domain/profile"
)

type fakeStore struct {
	mu         sync.Mutex
	saved      []profile.Profile
	batchSizes []int
	manyErr    error
	createErr  func(p *profile.Profile) error
}

func (f *fakeStore) CreateMany(_ context.Context, ps []profile.Profile) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batchSizes = append(f.batchSizes, len(ps))
	if f.manyErr != nil {
		return f.manyErr
	}
	f.saved = append(f.saved, ps...)
	return nil
}

func (f *fakeStore) Create(_ context.Context, p *profile.Profile) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		if err := f.createErr(p); err != nil {
			return err
		}
	}
	f.saved = append(f.saved, *p)
	return nil
}

func newTestService(store ProfileWriter, batchSize int) *Service {
	svc := New(store, batchSize, nil)
	svc.now = func() time.Time { return time.UnixMilli(1700000000000) }
	return svc
}

const sampleCSV = `Age,Gender,Marital_Status,Caste,Sect,State,About,Partner_Preference
29,Female,Never Married,Syed,Sunni,Maharashtra,Teacher who loves poetry,Kind and educated
34,Male,Divorced,Pathan,Sunni,Kerala,Engineer,
17,Male,Never Married,,,,Too young,
41,Unknown,,,,,,
`

func TestImport_ValidAndRejectedRows(t *testing.T) {
	store := &fakeStore{}
	svc := newTestService(store, 10)

	sum, err := svc.Import(context.Background(), strings.NewReader(sampleCSV))
	require.NoError(t, err)

	assert.Equal(t, 4, sum.Rows)
	assert.Equal(t, 2, sum.Imported)
	assert.Equal(t, 2, sum.Rejected)
	require.Len(t, sum.Rejections, 2)
	assert.Equal(t, 3, sum.Rejections[0].Row)
	assert.Contains(t, sum.Rejections[0].Reason, "Age")
	assert.Equal(t, 4, sum.Rejections[1].Row)
	assert.Contains(t, sum.Rejections[1].Reason, "Gender")

	require.Len(t, store.saved, 2)
	first := store.saved[0]
	assert.Equal(t, 29, first.Age())
	assert.Equal(t, profile.Female, first.Gender())
	assert.Equal(t, "Maharashtra", first.State())
	assert.False(t, first.Indexed())
	_, err = uuid.Parse(first.ID())
	assert.NoError(t, err)
	assert.NotEqual(t, first.ID(), store.saved[1].ID())
}

func TestImport_HeaderCaseInsensitiveAndUnknownColumns(t *testing.T) {
	store := &fakeStore{}
	svc := newTestService(store, 10)

	in := "\ufeffNAME,age,GENDER,about\nAisha,30.0,female,Reads a lot\n"
	sum, err := svc.Import(context.Background(), strings.NewReader(in))
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Imported)
	require.Len(t, store.saved, 1)
	assert.Equal(t, 30, store.saved[0].Age())
	assert.Equal(t, "Reads a lot", store.saved[0].About())
}

func TestImport_MissingRequiredColumn(t *testing.T) {
	svc := newTestService(&fakeStore{}, 10)

	_, err := svc.Import(context.Background(), strings.NewReader("Age,State\n30,Goa\n"))
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidRequest)
	assert.Contains(t, err.Error(), "gender")
}

func TestImport_EmptyFile(t *testing.T) {
	svc := newTestService(&fakeStore{}, 10)

	_, err := svc.Import(context.Background(), strings.NewReader(""))
	assert.ErrorIs(t, err, domain.ErrInvalidRequest)
}

func TestImport_Batches(t *testing.T) {
	var b strings.Builder
	b.WriteString("Age,Gender\n")
	for range 7 {
		b.WriteString("25,Male\n")
	}
	store := &fakeStore{}
	svc := newTestService(store, 3)

	sum, err := svc.Import(context.Background(), strings.NewReader(b.String()))
	require.NoError(t, err)
	assert.Equal(t, 7, sum.Imported)
	assert.Equal(t, []int{3, 3, 1}, store.batchSizes)
}

func TestImport_BatchFallsBackToRows(t *testing.T) {
	store := &fakeStore{
		manyErr: errors.New("duplicate key in batch"),
		createErr: func(p *profile.Profile) error {
			if p.Age() == 34 {
				return domain.ErrAlreadyExists
			}
			return nil
		},
	}
	svc := newTestService(store, 10)

	sum, err := svc.Import(context.Background(), strings.NewReader(sampleCSV))
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Imported)
	assert.Equal(t, 3, sum.Rejected)
	assert.Equal(t, 2, sum.Rejections[2].Row)
}

func TestImport_StoreOutageStops(t *testing.T) {
	store := &fakeStore{
		manyErr:   errors.New("connection refused"),
		createErr: func(*profile.Profile) error { return errors.New("connection refused") },
	}
	svc := newTestService(store, 1)

	sum, err := svc.Import(context.Background(), strings.NewReader(sampleCSV))
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrServiceUnavailable)
	assert.Equal(t, 0, sum.Imported)
	assert.Equal(t, 1, sum.Rows)
}

func TestImport_MalformedRowRejected(t *testing.T) {
	store := &fakeStore{}
	svc := newTestService(store, 10)

	in := "Age,Gender\n30,\"Male\n"
	sum, err := svc.Import(context.Background(), strings.NewReader(in))
	require.NoError(t, err)
	assert.Equal(t, 0, sum.Imported)
	assert.Equal(t, 1, sum.Rejected)
}

func TestImport_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	svc := newTestService(&fakeStore{}, 10)

	_, err := svc.Import(ctx, strings.NewReader(sampleCSV))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestParseAge(t *testing.T) {
	tests := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{"29", 29, false},
		{"29.0", 29, false},
		{"29.5", 0, true},
		{"", 0, true},
		{"abc", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseAge(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, domain.ErrInvalidRequest)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
