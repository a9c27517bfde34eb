package config

import (
	"os"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
)

func TestDefaultsApplyVideoLimits(t *testing.T) {
	v := viper.New()
	setDefaults(v)

	cfg := fromViper(v)

	assert.Equal(t, int64(100*1024*1024), cfg.Videos.MaxFileSizeBytes)
	assert.Equal(t, []string{"video/mp4", "video/mkv", "video/avi", "video/webm", "video/mov"}, cfg.Videos.AllowedMIMEs)
	assert.Equal(t, "tm_access_token", cfg.Session.AccessCookie)
	assert.Equal(t, 5*time.Minute, cfg.Session.RefreshWindow)
	assert.False(t, cfg.Session.SecureCookies)
	assert.False(t, cfg.OIDC.Enabled())
}

func TestProductionEnablesSecureCookies(t *testing.T) {
	v := viper.New()
	setDefaults(v)
	v.Set("ENV", EnvProduction)
	v.Set("VIDEO_MAX_FILE_SIZE", -1)
	v.Set("SESSION_REFRESH_WINDOW", "not-a-duration")

	cfg := fromViper(v)

	assert.True(t, cfg.Session.SecureCookies)
	assert.Equal(t, int64(100*1024*1024), cfg.Videos.MaxFileSizeBytes)
	assert.Equal(t, 5*time.Minute, cfg.Session.RefreshWindow)
}

func TestSplitAndTrim(t *testing.T) {
	assert.Nil(t, splitAndTrim(""))
	assert.Equal(t, []string{"a", "b"}, splitAndTrim(" a , ,b "))
}

func TestValidateRejectsDefaultMediaSecretInProduction(t *testing.T) {
	v := viper.New()
	setDefaults(v)
	assert.NoError(t, fromViper(v).Validate())

	v.Set("ENV", EnvProduction)
	assert.Error(t, fromViper(v).Validate())

	v.Set("MEDIA_SIGNED_URL_SECRET", "")
	assert.Error(t, fromViper(v).Validate())

	v.Set("MEDIA_SIGNED_URL_SECRET", "s3cr3t-rotated")
	assert.NoError(t, fromViper(v).Validate())
}

func TestLoadFailsOnDefaultMediaSecretInProduction(t *testing.T) {
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(t.TempDir()); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chdir(wd) })
	t.Setenv("ENV", EnvProduction)
	t.Setenv("MEDIA_SIGNED_URL_SECRET", devMediaSecret)

	cfg, err := Load()
	assert.Nil(t, cfg)
	assert.ErrorContains(t, err, "MEDIA_SIGNED_URL_SECRET")
}
