package postgres

import (
	"errors"
	"fmt"
	"testing"

	"github.com/ganot/quilt-tracker/internal/domain/quilt"
	"github.com/ganot/quilt-tracker/internal/repository"
	"github.com/lib/pq"
	"github.com/stretchr/testify/require"
)

func TestMapWriteError(t *testing.T) {
	tests := []struct {
		code pq.ErrorCode
		want error
	}{
		{codeUniqueViolation, repository.ErrConflict},
		{codeForeignKeyViolation, repository.ErrForeignKeyViolation},
		{codeCheckViolation, repository.ErrInvalidInput},
	}
	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			err := mapWriteError("op", fmt.Errorf("exec: %w", &pq.Error{Code: tt.code}))
			require.ErrorIs(t, err, tt.want)
		})
	}

	plain := errors.New("connection reset")
	err := mapWriteError("op", plain)
	require.ErrorIs(t, err, plain)
	require.NotErrorIs(t, err, repository.ErrConflict)

	err = mapWriteError("op", &pq.Error{Code: "40001"})
	require.NotErrorIs(t, err, repository.ErrConflict)
}

func TestBuildListQuery(t *testing.T) {
	query, args := buildListQuery(quilt.ListOptions{})
	require.Equal(t, `SELECT `+quiltColumns+` FROM quilts ORDER BY name, id`, query)
	require.Empty(t, args)

	query, args = buildListQuery(quilt.ListOptions{
		Statuses: []quilt.Status{quilt.StatusAvailable, quilt.StatusStorage},
		Limit:    10,
		Offset:   20,
	})
	require.Contains(t, query, "WHERE status = ANY($1)")
	require.Contains(t, query, "LIMIT $2 OFFSET $3")
	require.Len(t, args, 3)
	require.Equal(t, 10, args[1])
	require.Equal(t, 20, args[2])
}
