package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newViper(values map[string]interface{}) *viper.Viper {
	v := viper.New()
	setDefaults(v)
	for k, val := range values {
		v.Set(k, val)
	}
	return v
}

func TestFromViper_Defaults(t *testing.T) {
	cfg, err := fromViper(newViper(map[string]interface{}{"JWT_SECRET": "secret"}))
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, 100, cfg.DB.MaxOpenConns)
	assert.Equal(t, 25, cfg.DB.MaxIdleConns)
	assert.Equal(t, 60*time.Minute, cfg.DB.ConnMaxLifetime)
	assert.Equal(t, 30*time.Second, cfg.Cache.NearbyTTL)
	assert.True(t, cfg.Cache.Enabled)
	assert.Equal(t, 4, cfg.Notify.Workers)
	assert.Equal(t, 256, cfg.Notify.QueueSize)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr())
	assert.Equal(t, "host=localhost port=5432 user=postgres password= dbname=carpool sslmode=disable", cfg.DB.DSN())
}

func TestFromViper_NonPositivePoolFallsBack(t *testing.T) {
	cfg, err := fromViper(newViper(map[string]interface{}{
		"JWT_SECRET":        "secret",
		"DB_MAX_OPEN_CONNS": 0,
		"NOTIFY_WORKERS":    -3,
	}))
	require.NoError(t, err)
	assert.Equal(t, 100, cfg.DB.MaxOpenConns)
	assert.Equal(t, 4, cfg.Notify.Workers)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		values  map[string]interface{}
		wantErr bool
	}{
		{"jwt with secret", map[string]interface{}{"JWT_SECRET": "s"}, false},
		{"jwt without secret", map[string]interface{}{}, true},
		{"firebase with project", map[string]interface{}{"AUTH_PROVIDER": "firebase", "FIREBASE_PROJECT_ID": "p"}, false},
		{"firebase without credentials", map[string]interface{}{"AUTH_PROVIDER": "firebase"}, true},
		{"unknown provider", map[string]interface{}{"AUTH_PROVIDER": "ldap"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := fromViper(newViper(tt.values))
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
