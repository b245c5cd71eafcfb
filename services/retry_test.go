package services

import (
	"errors"
	"fmt"
	"net"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestIsTransientStoreError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"plain error", errors.New("failed to scan standing: wrong type"), false},
		{"net timeout", &net.DNSError{Err: "lookup timed out", IsTimeout: true}, true},
		{"wrapped net error", fmt.Errorf("query: %w", &net.OpError{Op: "dial", Err: errors.New("refused")}), true},
		{"connection exception", &pgconn.PgError{Code: "08006"}, true},
		{"serialization failure", &pgconn.PgError{Code: "40001"}, true},
		{"deadlock detected", &pgconn.PgError{Code: "40P01"}, true},
		{"undefined column", &pgconn.PgError{Code: "42703"}, false},
		{"unique violation", &pgconn.PgError{Code: "23505"}, false},
		{"wrapped pg error", fmt.Errorf("query: %w", &pgconn.PgError{Code: "08003"}), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isTransientStoreError(tt.err))
		})
	}
}
