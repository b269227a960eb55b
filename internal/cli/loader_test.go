package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRedactDSN(t *testing.T) {
	tests := []struct {
		name   string
		driver string
		dsn    string
		want   string
	}{
		{"sqlite path", "sqlite3", "testdata/blog.db", "testdata/blog.db"},
		{"postgres url", "pgx", "postgres://app:s3cret@db:5432/blog?sslmode=disable", "postgres://app:xxxxx@db:5432/blog?sslmode=disable"},
		{"url without password", "postgres", "postgres://app@db/blog", "postgres://app@db/blog"},
		{"postgres key value", "postgres", "host=db user=app password=s3cret dbname=blog", "host=db user=app password=xxxxx dbname=blog"},
		{"quoted password", "postgres", "host=db password='a b' dbname=blog", "host=db password=xxxxx dbname=blog"},
		{"mysql", "mysql", "app:s3cret@tcp(db:3306)/blog", "app:xxxxx@tcp(db:3306)/blog"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := redactDSN(tt.driver, tt.dsn)
			assert.Equal(t, tt.want, got)
			assert.NotContains(t, got, "s3cret")
		})
	}
}
