package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
)

func TestDefaultsMatchTimetableEngine(t *testing.T) {
	v := viper.New()
	setDefaults(v)

	cfg := fromViper(v)
	assert.Equal(t, []string{"Mon", "Tue", "Wed", "Thu", "Fri"}, cfg.Timetable.Days)
	assert.Equal(t, 6, cfg.Timetable.MaxPeriods)
	assert.Equal(t, []string{"101", "102", "LAB-306"}, cfg.Timetable.Rooms)
	assert.Equal(t, 30, cfg.Timetable.Attempts)
	assert.Equal(t, 10*time.Second, cfg.Timetable.GenerationTimeout)
	assert.Equal(t, "LAB", cfg.Timetable.LabMarker)
	assert.Empty(t, cfg.RabbitMQ.DSN)
	assert.Equal(t, "timetable.notifications", cfg.Mail.Queue)
	assert.Equal(t, 465, cfg.Mail.SMTPPort)
}

func TestMailSenderFallsBackToUsername(t *testing.T) {
	t.Setenv("SMTP_USERNAME", "timetable@school.example")
	t.Setenv("TIMETABLE_NOTIFY_RECIPIENTS", "head@school.example, deputy@school.example")

	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)

	cfg := fromViper(v)
	assert.Equal(t, "timetable@school.example", cfg.Mail.From)
	assert.Equal(t, []string{"head@school.example", "deputy@school.example"}, cfg.Mail.Recipients)
}

func TestOverridesFromEnvironment(t *testing.T) {
	t.Setenv("TIMETABLE_DAYS", "Mon, Wed ,Fri")
	t.Setenv("TIMETABLE_ATTEMPTS", "50")
	t.Setenv("TIMETABLE_CACHE_TTL", "not-a-duration")

	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)

	cfg := fromViper(v)
	assert.Equal(t, []string{"Mon", "Wed", "Fri"}, cfg.Timetable.Days)
	assert.Equal(t, 50, cfg.Timetable.Attempts)
	assert.Equal(t, 10*time.Minute, cfg.Timetable.CacheTTL)
}
