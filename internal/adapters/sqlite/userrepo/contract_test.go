package userrepo

import (
	"testing"

	"github.com/matchi-app/matchi-api/internal/adapters/contracttest"
	"github.com/matchi-app/matchi-api/internal/adapters/sqlite/testutil"
	userrepoport "github.com/matchi-app/matchi-api/internal/ports/out/userrepo"
)

func TestContract_SQLiteUserRepo(t *testing.T) {
	db := testutil.OpenMigratedDB(t)

	contracttest.RunUserRepo(t, func(t *testing.T) (userrepoport.Repository, func()) {
		t.Helper()
		return NewRepo(db), nil
	})
}
