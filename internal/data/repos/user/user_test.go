package user

import (
	"testing"

	"github.com/yungbote/coursebuilder-backend/internal/data/repos/testutil"
	types "github.com/yungbote/coursebuilder-backend/internal/domain"
	"github.com/yungbote/coursebuilder-backend/internal/pkg/pointers"
)

func TestUserRepoUpsertIsTenantScoped(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	dbc := testutil.DBC(tx)
	repo := NewUserRepo(db, testutil.Logger(t))

	a, err := repo.Upsert(dbc, &types.User{WhopUserID: "user_1", WhopCompanyID: "biz_a"})
	if err != nil {
		t.Fatalf("Upsert a: %v", err)
	}
	b, err := repo.Upsert(dbc, &types.User{WhopUserID: "user_1", WhopCompanyID: "biz_b"})
	if err != nil {
		t.Fatalf("Upsert b: %v", err)
	}
	if a.ID == b.ID {
		t.Fatalf("same whop user in two companies must be two rows")
	}

	again, err := repo.Upsert(dbc, &types.User{WhopUserID: "user_1", WhopCompanyID: "biz_a", Email: pointers.String("a@example.com")})
	if err != nil {
		t.Fatalf("Upsert again: %v", err)
	}
	if again.ID != a.ID {
		t.Fatalf("expected existing row %v, got %v", a.ID, again.ID)
	}
	if again.Email == nil || *again.Email != "a@example.com" {
		t.Fatalf("email not refreshed: %v", again.Email)
	}

	rows, err := repo.ListByWhopUserID(dbc, "user_1")
	if err != nil || len(rows) != 2 {
		t.Fatalf("ListByWhopUserID: err=%v len=%d", err, len(rows))
	}
}
