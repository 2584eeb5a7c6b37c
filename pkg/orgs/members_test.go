package orgs

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/agronomy/pkg/rbac"
)

func TestPostgresService_AddMember(t *testing.T) {
	orgID, userID := uuid.New(), uuid.New()

	t.Run("success", func(t *testing.T) {
		service, mock, db := newMockService(t)
		defer db.Close()

		mock.ExpectQuery("INSERT INTO memberships").
			WithArgs(sqlmock.AnyArg(), userID, orgID, "AGRONOMIST").
			WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(time.Now()))

		m, err := service.AddMember(context.Background(), orgID, userID, rbac.RoleAgronomist)
		require.NoError(t, err)
		assert.Equal(t, rbac.RoleAgronomist, m.Role)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("duplicate pair", func(t *testing.T) {
		service, mock, db := newMockService(t)
		defer db.Close()

		mock.ExpectQuery("INSERT INTO memberships").
			WillReturnRows(sqlmock.NewRows([]string{"created_at"}))

		_, err := service.AddMember(context.Background(), orgID, userID, rbac.RoleViewer)
		assert.ErrorIs(t, err, ErrMemberExists)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("invalid role", func(t *testing.T) {
		service, _, db := newMockService(t)
		defer db.Close()

		_, err := service.AddMember(context.Background(), orgID, userID, rbac.Role("SUPERUSER"))
		assert.Error(t, err)
	})
}

func TestPostgresService_ListMembershipsForUser(t *testing.T) {
	service, mock, db := newMockService(t)
	defer db.Close()

	userID := uuid.New()
	orgA, orgB := uuid.New(), uuid.New()
	mock.ExpectQuery(`SELECT (.+) FROM memberships m JOIN organizations o ON o.id = m.organization_id WHERE m.user_id = \$1`).
		WithArgs(userID).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "organization_id", "role", "created_at", "name"}).
			AddRow(uuid.NewString(), userID.String(), orgA.String(), "OWNER", time.Now(), "Org A").
			AddRow(uuid.NewString(), userID.String(), orgB.String(), "VIEWER", time.Now(), "Org B"))

	out, err := service.ListMembershipsForUser(context.Background(), userID)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, orgA, out[0].OrganizationID)
	assert.Equal(t, rbac.RoleOwner, out[0].Role)
	assert.Equal(t, "Org B", out[1].OrganizationName)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresService_ListMembers(t *testing.T) {
	service, mock, db := newMockService(t)
	defer db.Close()

	orgID := uuid.New()
	mock.ExpectQuery(`SELECT (.+) FROM memberships m JOIN users u ON u.id = m.user_id WHERE m.organization_id = \$1`).
		WithArgs(orgID).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "organization_id", "role", "created_at", "email"}).
			AddRow(uuid.NewString(), uuid.NewString(), orgID.String(), "ORG_ADMIN", time.Now(), "admin@example.com"))

	out, err := service.ListMembers(context.Background(), orgID)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "admin@example.com", out[0].UserEmail)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresService_GetMember(t *testing.T) {
	service, mock, db := newMockService(t)
	defer db.Close()

	orgID, userID := uuid.New(), uuid.New()
	mock.ExpectQuery(`SELECT (.+) FROM memberships WHERE organization_id = \$1 AND user_id = \$2`).
		WithArgs(orgID, userID).
		WillReturnError(sql.ErrNoRows)

	_, err := service.GetMember(context.Background(), orgID, userID)
	assert.ErrorIs(t, err, ErrMemberNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresService_UpdateAndRemoveMember(t *testing.T) {
	orgID, userID := uuid.New(), uuid.New()

	t.Run("update role", func(t *testing.T) {
		service, mock, db := newMockService(t)
		defer db.Close()

		mock.ExpectExec(`UPDATE memberships SET role = \$1 WHERE organization_id = \$2 AND user_id = \$3`).
			WithArgs("ORG_ADMIN", orgID, userID).
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, service.UpdateMemberRole(context.Background(), orgID, userID, rbac.RoleOrgAdmin))
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("remove missing member", func(t *testing.T) {
		service, mock, db := newMockService(t)
		defer db.Close()

		mock.ExpectExec(`DELETE FROM memberships WHERE organization_id = \$1 AND user_id = \$2`).
			WithArgs(orgID, userID).
			WillReturnResult(sqlmock.NewResult(0, 0))

		assert.ErrorIs(t, service.RemoveMember(context.Background(), orgID, userID), ErrMemberNotFound)
		require.NoError(t, mock.ExpectationsWereMet())
	})
}
