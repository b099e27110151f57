package port

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateSQLQuery(t *testing.T) {
	tests := []struct {
		name    string
		query   string
		wantErr bool
	}{
		{"no placeholder", "SELECT app_id, score FROM security", false},
		{"in clause", "SELECT app_id FROM t WHERE app_id IN :app_ids", false},
		{"repeated in clause", "SELECT a FROM t WHERE a IN :app_ids UNION SELECT b FROM u WHERE b IN :app_ids", false},
		{"equality", "SELECT app_id FROM t WHERE app_id = :app_ids", true},
		{"any", "SELECT app_id FROM t WHERE app_id = ANY(:app_ids)", true},
		{"one bound one bare", "SELECT a FROM t WHERE a IN :app_ids AND b = :app_ids", true},
		{"lowercase in", "SELECT app_id FROM t WHERE app_id in :app_ids", true},
		{"longer name", "SELECT app_id FROM t WHERE owner = :app_ids_owner", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateSQLQuery(tt.query)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
		})
	}
}
