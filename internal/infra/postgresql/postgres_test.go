package postgresql

import (
	"testing"
	"time"
)

func TestPoolOptionsWithDefaults(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   PoolOptions
		want PoolOptions
	}{
		{
			name: "zero value",
			want: PoolOptions{MaxOpenConns: 25, MaxIdleConns: 5, ConnMaxLifetime: time.Hour},
		},
		{
			name: "explicit values kept",
			in:   PoolOptions{MaxOpenConns: 10, MaxIdleConns: 2, ConnMaxLifetime: time.Minute},
			want: PoolOptions{MaxOpenConns: 10, MaxIdleConns: 2, ConnMaxLifetime: time.Minute},
		},
		{
			name: "idle capped by open",
			in:   PoolOptions{MaxOpenConns: 3, MaxIdleConns: 8},
			want: PoolOptions{MaxOpenConns: 3, MaxIdleConns: 3, ConnMaxLifetime: time.Hour},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := tt.in.withDefaults(); got != tt.want {
				t.Fatalf("withDefaults() = %+v, want %+v", got, tt.want)
			}
		})
	}
}
