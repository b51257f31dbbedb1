package testutil

import (
	"net/http"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMockDB(t *testing.T) {
	mockDB := NewMockDB(t)
	defer mockDB.Close()

	assert.NotNil(t, mockDB.DB)
	assert.NotNil(t, mockDB.Mock)
	assert.NotNil(t, mockDB.SqlDB)
}

func TestMockDBRunsExpectedQueries(t *testing.T) {
	mockDB := NewMockDB(t)
	defer mockDB.Close()

	mockDB.Mock.ExpectQuery(`SELECT count\(\*\) FROM "invoices"`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))

	var count int64
	err := mockDB.DB.Table("invoices").Count(&count).Error
	require.NoError(t, err)
	assert.EqualValues(t, 3, count)

	mockDB.ExpectationsWereMet(t)
}

func TestNewTestContext(t *testing.T) {
	tc := NewTestContext(t)

	assert.NotNil(t, tc.Context)
	assert.NotNil(t, tc.Recorder)
	assert.NotNil(t, tc.Engine)
	assert.Equal(t, http.MethodGet, tc.Context.Request.Method)
}

func TestTestContextSetHeader(t *testing.T) {
	tc := NewTestContext(t)

	tc.SetHeader("X-Idempotency-Key", "batch-1")

	assert.Equal(t, "batch-1", tc.Context.Request.Header.Get("X-Idempotency-Key"))
}

func TestTestContextResponseCode(t *testing.T) {
	tc := NewTestContext(t)
	tc.Recorder.WriteHeader(http.StatusCreated)

	assert.Equal(t, http.StatusCreated, tc.ResponseCode())
}

func TestNewTestUUID(t *testing.T) {
	uuid1 := NewTestUUID("test-seed")
	uuid2 := NewTestUUID("test-seed")
	uuid3 := NewTestUUID("different-seed")

	assert.Equal(t, uuid1, uuid2)
	assert.NotEqual(t, uuid1, uuid3)
}

func TestTestCustomerID(t *testing.T) {
	customerID := TestCustomerID()

	assert.NotEqual(t, "00000000-0000-0000-0000-000000000000", customerID.String())
	assert.Equal(t, TestCustomerID(), customerID)
}
