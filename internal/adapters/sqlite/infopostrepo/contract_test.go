package infopostrepo

import (
	"testing"

	"github.com/matchi-app/matchi-api/internal/adapters/contracttest"
	"github.com/matchi-app/matchi-api/internal/adapters/sqlite/testutil"
	sqliteuserrepo "github.com/matchi-app/matchi-api/internal/adapters/sqlite/userrepo"
	infopostrepoport "github.com/matchi-app/matchi-api/internal/ports/out/infopostrepo"
	userrepoport "github.com/matchi-app/matchi-api/internal/ports/out/userrepo"
)

func TestContract_SQLiteInfoPostRepo(t *testing.T) {
	db := testutil.OpenMigratedDB(t)

	contracttest.RunInfoPostRepo(
		t,
		func(t *testing.T) (userrepoport.Repository, func()) {
			t.Helper()
			return sqliteuserrepo.NewRepo(db), nil
		},
		func(t *testing.T) (infopostrepoport.Repository, func()) {
			t.Helper()
			return NewRepo(db), nil
		},
	)
}

func TestContract_SQLiteInfoPostAuthorReference(t *testing.T) {
	db := testutil.OpenMigratedDB(t)

	contracttest.RunInfoPostAuthorReference(t, func(t *testing.T) (infopostrepoport.Repository, func()) {
		t.Helper()
		return NewRepo(db), nil
	})
}
